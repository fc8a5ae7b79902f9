// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/lifecycle"
	"github.com/danielhkuo/classpoll/middleware"
	"github.com/danielhkuo/classpoll/models"
)

type TeacherHandler struct {
	manager *lifecycle.Manager
	cfg     cliparse.Config
}

func NewTeacherHandler(manager *lifecycle.Manager, cfg cliparse.Config) *TeacherHandler {
	return &TeacherHandler{manager: manager, cfg: cfg}
}

// Register handles POST /teacher/register
func (h *TeacherHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	teacher, err := h.manager.RegisterTeacher(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, teacher)
}

// CreatePoll handles POST /teacher/polls
func (h *TeacherHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePollRequest
	if err := middleware.ParseAndValidate(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	poll, err := h.manager.CreatePoll(r.Context(), req.Title, req.CreatedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, poll)
}

// AskQuestion handles POST /teacher/polls/{pollId}/questions
func (h *TeacherHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("pollId")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "pollId is required")
		return
	}

	var req models.AskQuestionRequest
	if err := middleware.ParseAndValidate(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	question, err := h.manager.AskQuestion(r.Context(), pollID, req.Text, req.Options)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, question)
}

// ListPolls handles GET /teacher/polls?createdBy=
func (h *TeacherHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	polls, err := h.manager.ListPolls(r.Context(), r.URL.Query().Get("createdBy"))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListPollsResponse{Data: polls})
}

// GetPollResults handles GET /teacher/polls/{pollId}/results
func (h *TeacherHandler) GetPollResults(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("pollId")

	poll, results, err := h.manager.GetPollResults(r.Context(), pollID)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.PollResultsResponse{
		Poll:    poll.Title,
		Results: results,
	})
}

// CloseQuestion handles POST /teacher/questions/{questionId}/close
func (h *TeacherHandler) CloseQuestion(w http.ResponseWriter, r *http.Request) {
	tally, _, err := h.manager.ExpireQuestion(r.Context(), r.PathValue("questionId"))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, tally)
}

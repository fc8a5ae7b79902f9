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

type StudentHandler struct {
	manager *lifecycle.Manager
	cfg     cliparse.Config
}

func NewStudentHandler(manager *lifecycle.Manager, cfg cliparse.Config) *StudentHandler {
	return &StudentHandler{manager: manager, cfg: cfg}
}

// Register handles POST /student/register
func (h *StudentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	student, err := h.manager.RegisterStudent(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, student)
}

// GetActiveQuestion handles GET /student/polls/{pollId}/active-question
func (h *StudentHandler) GetActiveQuestion(w http.ResponseWriter, r *http.Request) {
	question, err := h.manager.GetActiveQuestion(r.Context(), r.PathValue("pollId"))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, question)
}

// SubmitAnswer handles POST /student/questions/{questionId}/answer
func (h *StudentHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("questionId")
	if questionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "questionId is required")
		return
	}

	var req models.SubmitAnswerRequest
	if err := middleware.ParseAndValidate(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	answer, err := h.manager.SubmitAnswer(r.Context(), questionID, req.StudentID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, answer)
}

// GetResults handles GET /student/questions/{questionId}/results?studentId=
func (h *StudentHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	tally, err := h.manager.GetResults(r.Context(), r.PathValue("questionId"), r.URL.Query().Get("studentId"))
	if err != nil {
		writeError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.QuestionResultsResponse{
		Question:   tally.Question,
		Options:    tally.Options,
		Counts:     tally.Counts,
		TotalVotes: tally.TotalVotes,
	})
}

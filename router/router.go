// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/classpoll/broadcast"
	"github.com/danielhkuo/classpoll/cliparse"
	"github.com/danielhkuo/classpoll/handlers"
	"github.com/danielhkuo/classpoll/lifecycle"
	"github.com/danielhkuo/classpoll/middleware"
)

func NewRouter(manager *lifecycle.Manager, hub *broadcast.Hub, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	teacherHandler := handlers.NewTeacherHandler(manager, cfg)
	studentHandler := handlers.NewStudentHandler(manager, cfg)
	liveHandler := handlers.NewLiveHandler(hub, manager, cfg)

	api := cfg.APIPrefix

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.JSONResponse(w, http.StatusOK, map[string]string{"status": "OK"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	// Teacher operations
	mux.HandleFunc("POST "+api+"/teacher/register", middleware.WithLogging(teacherHandler.Register))
	mux.HandleFunc("POST "+api+"/teacher/polls", middleware.WithLogging(teacherHandler.CreatePoll))
	mux.HandleFunc("GET "+api+"/teacher/polls", middleware.WithLogging(teacherHandler.ListPolls))
	mux.HandleFunc("POST "+api+"/teacher/polls/{pollId}/questions", middleware.WithLogging(teacherHandler.AskQuestion))
	mux.HandleFunc("GET "+api+"/teacher/polls/{pollId}/results", middleware.WithLogging(teacherHandler.GetPollResults))
	mux.HandleFunc("POST "+api+"/teacher/questions/{questionId}/close", middleware.WithLogging(teacherHandler.CloseQuestion))

	// Student operations
	mux.HandleFunc("POST "+api+"/student/register", middleware.WithLogging(studentHandler.Register))
	mux.HandleFunc("GET "+api+"/student/polls/{pollId}/active-question", middleware.WithLogging(studentHandler.GetActiveQuestion))
	mux.HandleFunc("POST "+api+"/student/questions/{questionId}/answer", middleware.WithLogging(studentHandler.SubmitAnswer))
	mux.HandleFunc("GET "+api+"/student/questions/{questionId}/results", middleware.WithLogging(studentHandler.GetResults))

	// Live channel
	mux.HandleFunc("GET /ws", middleware.WithLogging(liveHandler.ServeWS))
	mux.HandleFunc("GET /events", middleware.WithLogging(liveHandler.ServeSSE))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Welcome to the ClassPoll API"))
	})

	return mux
}

// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status,
duration_ms), and records the request in the
classpoll_http_request_duration_seconds histogram. The wrapped writer still
supports http.Flusher and http.Hijacker, so the SSE and WebSocket endpoints
can be logged too.

# CORS Middleware

Enable cross-origin requests from the configured frontend origins:

	server := http.Server{
		Handler: middleware.CORS(cfg.CORSOrigins)(mux),
	}

Built on github.com/go-chi/cors. Requests from other origins get no CORS
headers.

# JSON Helpers

Write JSON responses:

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse and validate JSON request bodies:

	var req models.AskQuestionRequest
	if err := middleware.ParseAndValidate(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

Validation uses the validate struct tags on the request types
(github.com/go-playground/validator/v10) and names fields by their JSON
names, e.g. "options must have at least 2 entries".

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)
*/
package middleware

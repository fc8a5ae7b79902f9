// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/classpoll/lifecycle"
	"github.com/danielhkuo/classpoll/middleware"
	"github.com/danielhkuo/classpoll/models"
)

// statusFor maps a lifecycle error kind to its HTTP status.
func statusFor(err error) int {
	switch lifecycle.KindOf(err) {
	case lifecycle.KindValidation, lifecycle.KindConflict:
		return http.StatusBadRequest
	case lifecycle.KindNotFound:
		return http.StatusNotFound
	case lifecycle.KindNotYetAvailable:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the client-facing error. Internal failures are logged and
// replaced by a generic message.
func errorBody(err error) (int, models.ErrorResponse) {
	status := statusFor(err)
	message := err.Error()

	var lerr *lifecycle.Error
	if errors.As(err, &lerr) && lerr.Kind != lifecycle.KindInternal {
		message = lerr.Message
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		message = "Internal server error"
	}

	return status, models.ErrorResponse{Error: http.StatusText(status), Message: message}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	middleware.JSONResponse(w, status, body)
}

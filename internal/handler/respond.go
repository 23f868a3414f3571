// internal/handler/respond.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/logger"
)

type APIError struct {
	Code    appErrors.Code `json:"code"`
	Message string         `json:"message"`
	Details any            `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError answers with the error envelope. Untyped errors and storage
// failures are logged and reported without their cause.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := appErrors.As(err)
	if typed == nil {
		typed = appErrors.Wrap(appErrors.CodePersistence, err, "internal error")
	}

	status := appErrors.HTTPStatus(typed.Code)
	if status >= http.StatusInternalServerError {
		logg.Error(ctx, "request failed", err)
	}

	WriteJSON(w, status, ErrorEnvelope{Error: APIError{
		Code:    typed.Code,
		Message: typed.Message,
		Details: typed.Details,
	}})
}

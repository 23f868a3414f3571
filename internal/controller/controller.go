package controller

import (
	"net/http"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/handler"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

type messageResponse struct {
	Message string `json:"message"`
}

// actorOrFail returns the authenticated caller; routes behind Authenticate
// always have one.
func actorOrFail(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := handler.ActorFrom(r.Context())
	if !ok {
		handler.WriteJSON(w, http.StatusUnauthorized, handler.ErrorEnvelope{Error: handler.APIError{
			Code:    appErrors.CodeUnauthorized,
			Message: "missing credentials",
		}})
	}
	return actor, ok
}

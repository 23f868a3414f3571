package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/practicehub-backend/internal/handler"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

type Inbox interface {
	List(ctx context.Context, actor model.Actor) ([]model.UserMessage, error)
	MarkRead(ctx context.Context, actor model.Actor, messageID int64) error
	Delete(ctx context.Context, actor model.Actor, messageID int64) error
}

// MessageController serves the caller's own inbox.
type MessageController struct {
	Inbox  Inbox
	Logger *logger.Logger
}

func (c *MessageController) Mount(_, protected chi.Router) {
	protected.Get("/messages", c.List)
	protected.Post("/messages/{id}/read", c.MarkRead)
	protected.Delete("/messages/{id}", c.Delete)
}

func (c *MessageController) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	msgs, err := c.Inbox.List(r.Context(), actor)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, msgs)
}

func (c *MessageController) MarkRead(w http.ResponseWriter, r *http.Request) {
	c.act(w, r, c.Inbox.MarkRead, "Message marked as read")
}

func (c *MessageController) Delete(w http.ResponseWriter, r *http.Request) {
	c.act(w, r, c.Inbox.Delete, "Message deleted")
}

func (c *MessageController) act(w http.ResponseWriter, r *http.Request, op func(context.Context, model.Actor, int64) error, done string) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	if err := op(r.Context(), actor, id); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, messageResponse{Message: done})
}

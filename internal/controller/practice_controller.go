package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/practicehub-backend/internal/handler"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

type PracticeDirectory interface {
	Create(ctx context.Context, actor model.Actor, name string, description *string) (*model.Practice, error)
	Get(ctx context.Context, id int64) (*model.Practice, error)
	List(ctx context.Context, includeInactive bool) ([]model.Practice, error)
	Update(ctx context.Context, actor model.Actor, id int64, patch model.PracticePatch) (*model.Practice, error)
	Users(ctx context.Context, actor model.Actor, practiceID int64) ([]model.User, error)
	RemoveUser(ctx context.Context, actor model.Actor, practiceID, userID int64) error
}

type PracticeController struct {
	Practices PracticeDirectory
	Logger    *logger.Logger
}

// Mount: listing and reading practices is public so the signup form can
// offer them.
func (c *PracticeController) Mount(public, protected chi.Router) {
	public.Get("/practices", c.List)
	public.Get("/practices/{id}", c.Get)

	protected.Post("/practices", c.Create)
	protected.Patch("/practices/{id}", c.Update)
	protected.Get("/practices/{id}/users", c.Users)
	protected.Delete("/practices/{id}/users/{userID}", c.RemoveUser)
}

type createPracticeRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
}

type updatePracticeRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (c *PracticeController) List(w http.ResponseWriter, r *http.Request) {
	includeInactive, err := handler.QueryBool(r, "include_inactive")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	practices, err := c.Practices.List(r.Context(), includeInactive)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, practices)
}

func (c *PracticeController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	p, err := c.Practices.Get(r.Context(), id)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, p)
}

func (c *PracticeController) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body createPracticeRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	p, err := c.Practices.Create(r.Context(), actor, body.Name, body.Description)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, p)
}

func (c *PracticeController) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	var body updatePracticeRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	p, err := c.Practices.Update(r.Context(), actor, id, model.PracticePatch{
		Name:        body.Name,
		Description: body.Description,
		IsActive:    body.IsActive,
	})
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, p)
}

func (c *PracticeController) Users(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	users, err := c.Practices.Users(r.Context(), actor, id)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, users)
}

func (c *PracticeController) RemoveUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	practiceID, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	userID, err := handler.PathID(r, "userID")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	if err := c.Practices.RemoveUser(r.Context(), actor, practiceID, userID); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package controller

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/practicehub-backend/internal/handler"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/service"
)

// Identity covers sign-up, sessions and the approval workflow.
type Identity interface {
	Signup(ctx context.Context, in service.SignupInput) (*model.User, *model.ApprovalRequest, error)
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Me(ctx context.Context, actor model.Actor) (*model.User, error)
	ChangePassword(ctx context.Context, actor model.Actor, oldPassword, newPassword string) error
	MyRequests(ctx context.Context, username, password string) ([]model.ApprovalRequest, error)
	RequestRoleChange(ctx context.Context, actor model.Actor, requested model.Role) (*model.ApprovalRequest, error)
	ListPending(ctx context.Context, actor model.Actor) ([]model.ApprovalRequest, error)
	Approve(ctx context.Context, actor model.Actor, kind model.RequestKind, id int64) (*model.ApprovalRequest, error)
	Reject(ctx context.Context, actor model.Actor, kind model.RequestKind, id int64, reason string) (*model.ApprovalRequest, error)
}

type AuthController struct {
	Identity Identity
	Logger   *logger.Logger
}

func (c *AuthController) Mount(public, protected chi.Router) {
	public.Post("/auth/signup", c.Signup)
	public.Post("/auth/login", c.Login)
	public.Post("/auth/pending-request", c.MyRequests)

	protected.Get("/auth/me", c.Me)
	protected.Post("/auth/change-password", c.ChangePassword)
	protected.Post("/auth/role-change", c.RequestRoleChange)
	protected.Get("/auth/requests", c.ListPending)
	protected.Post("/auth/requests/{id}/approve", c.Approve)
	protected.Post("/auth/requests/{id}/reject", c.Reject)
}

type signupRequest struct {
	Username      string     `json:"username" validate:"required,min=3,max=150"`
	Email         string     `json:"email" validate:"required,email"`
	FullName      string     `json:"full_name" validate:"max=255"`
	Password      string     `json:"password" validate:"required"`
	PracticeID    int64      `json:"desired_practice_id" validate:"required"`
	RequestedRole model.Role `json:"requested_role" validate:"required"`
}

type signupResponse struct {
	Message string                 `json:"message"`
	User    *model.User            `json:"user"`
	Request *model.ApprovalRequest `json:"request"`
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type roleChangeRequest struct {
	RequestedRole model.Role `json:"requested_role" validate:"required"`
}

type reviewRequest struct {
	RequestType model.RequestKind `json:"request_type" validate:"required"`
	Reason      string            `json:"reason"`
}

func (c *AuthController) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	user, req, err := c.Identity.Signup(r.Context(), service.SignupInput{
		Username:      body.Username,
		Email:         body.Email,
		FullName:      body.FullName,
		Password:      body.Password,
		PracticeID:    body.PracticeID,
		RequestedRole: body.RequestedRole,
	})
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, signupResponse{
		Message: "Registration submitted; an administrator must approve it before you can log in",
		User:    user,
		Request: req,
	})
}

func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	result, err := c.Identity.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, result)
}

func (c *AuthController) MyRequests(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	reqs, err := c.Identity.MyRequests(r.Context(), body.Username, body.Password)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, reqs)
}

func (c *AuthController) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	user, err := c.Identity.Me(r.Context(), actor)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, user)
}

func (c *AuthController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body changePasswordRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	if err := c.Identity.ChangePassword(r.Context(), actor, body.OldPassword, body.NewPassword); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password changed"})
}

func (c *AuthController) RequestRoleChange(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	var body roleChangeRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	req, err := c.Identity.RequestRoleChange(r.Context(), actor, body.RequestedRole)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusCreated, req)
}

func (c *AuthController) ListPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	reqs, err := c.Identity.ListPending(r.Context(), actor)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, reqs)
}

func (c *AuthController) Approve(w http.ResponseWriter, r *http.Request) {
	c.review(w, r, func(ctx context.Context, actor model.Actor, body reviewRequest, id int64) (*model.ApprovalRequest, error) {
		return c.Identity.Approve(ctx, actor, body.RequestType, id)
	})
}

func (c *AuthController) Reject(w http.ResponseWriter, r *http.Request) {
	c.review(w, r, func(ctx context.Context, actor model.Actor, body reviewRequest, id int64) (*model.ApprovalRequest, error) {
		return c.Identity.Reject(ctx, actor, body.RequestType, id, body.Reason)
	})
}

func (c *AuthController) review(w http.ResponseWriter, r *http.Request, op func(context.Context, model.Actor, reviewRequest, int64) (*model.ApprovalRequest, error)) {
	actor, ok := actorOrFail(w, r)
	if !ok {
		return
	}
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	var body reviewRequest
	if err := handler.DecodeJSON(r, &body); err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	req, err := op(r.Context(), actor, body, id)
	if err != nil {
		handler.WriteError(r.Context(), c.Logger, w, err)
		return
	}
	handler.WriteJSON(w, http.StatusOK, req)
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/unclebandit/practicehub-backend/internal/auth"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/repository"
)

const minPasswordLength = 8

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(user *model.User) (string, time.Time, error)
}

// IdentityService owns sign-up, login and the approval workflow that grants
// users a role inside a practice.
type IdentityService struct {
	Store  repository.TxRunner
	Repos  repository.Repositories
	Tokens TokenIssuer
	Logger *logger.Logger
	Now    func() time.Time
}

type SignupInput struct {
	Username      string
	Email         string
	FullName      string
	Password      string
	PracticeID    int64
	RequestedRole model.Role
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

// Signup creates an unapproved user without a role plus a pending
// registration request for the chosen practice.
func (s *IdentityService) Signup(ctx context.Context, in SignupInput) (*model.User, *model.ApprovalRequest, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" {
		return nil, nil, appErrors.NewValidation("username and email are required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, nil, appErrors.Newf(appErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	if in.RequestedRole != model.RoleAdmin && in.RequestedRole != model.RolePracticeUser {
		return nil, nil, appErrors.NewValidation("requested_role must be ADMIN or PRACTICE_USER")
	}
	if err := s.ensureActivePractice(ctx, in.PracticeID); err != nil {
		return nil, nil, err
	}

	taken, err := s.Repos.Users.UsernameOrEmailTaken(ctx, username, email)
	if err != nil {
		return nil, nil, appErrors.Persistence(err, "check username")
	}
	if taken {
		return nil, nil, appErrors.New(appErrors.CodeDuplicateName, "username or email already registered")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, appErrors.Wrap(appErrors.CodeValidation, err, "invalid password")
	}

	now := nowOr(s.Now)
	user := &model.User{
		Username:     username,
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		Role:         model.RoleUnassigned,
		IsActive:     true,
		CreatedAt:    now,
	}
	req := &model.ApprovalRequest{
		Kind:          model.RequestRegistration,
		PracticeID:    in.PracticeID,
		RequestedRole: in.RequestedRole,
		Status:        model.RequestPending,
		RequestedAt:   now,
	}
	err = s.Store.InTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		req.UserID = user.ID
		return repos.Requests.Create(ctx, req)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, nil, appErrors.New(appErrors.CodeDuplicateName, "username or email already registered")
		}
		return nil, nil, appErrors.Persistence(err, "sign up")
	}

	s.Logger.Info(s.Logger.WithUserID(ctx, user.ID), "registration request submitted")
	return user, req, nil
}

// Login checks credentials and approval, stamps last_login and issues a token.
func (s *IdentityService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.checkCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, appErrors.New(appErrors.CodeUnauthorized, "account is disabled")
	}
	if !user.IsApproved || !user.Role.Assigned() {
		return nil, appErrors.New(appErrors.CodeUnauthorized, "account is pending approval")
	}

	now := nowOr(s.Now)
	if err := s.Repos.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, appErrors.Persistence(err, "record login")
	}
	user.LastLogin = &now

	token, expires, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, appErrors.Persistence(err, "issue token")
	}
	return &LoginResult{Token: token, ExpiresAt: expires, User: user}, nil
}

func (s *IdentityService) checkCredentials(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.Repos.Users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if appErrors.Is(err, appErrors.CodeNotFound) {
			return nil, appErrors.New(appErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, appErrors.Persistence(err, "load user")
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, appErrors.New(appErrors.CodeUnauthorized, "invalid credentials")
	}
	return user, nil
}

// Authenticate turns a token's user id into an Actor, re-reading the role so
// revoked or deactivated users lose access before their token expires.
func (s *IdentityService) Authenticate(ctx context.Context, userID int64) (model.Actor, error) {
	user, err := s.Repos.Users.GetByID(ctx, userID)
	if err != nil {
		if appErrors.Is(err, appErrors.CodeNotFound) {
			return model.Actor{}, appErrors.New(appErrors.CodeUnauthorized, "unknown user")
		}
		return model.Actor{}, appErrors.Persistence(err, "load user")
	}
	if !user.IsActive || !user.IsApproved || !user.Role.Assigned() {
		return model.Actor{}, appErrors.New(appErrors.CodeUnauthorized, "account is not active")
	}
	return model.ActorFromUser(user), nil
}

func (s *IdentityService) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	user, err := s.Repos.Users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Persistence(err, "load user")
	}
	return user, nil
}

func (s *IdentityService) ChangePassword(ctx context.Context, actor model.Actor, oldPassword, newPassword string) error {
	user, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, oldPassword) {
		return appErrors.NewValidation("current password is incorrect")
	}
	if len(newPassword) < minPasswordLength {
		return appErrors.Newf(appErrors.CodeValidation, "password must be at least %d characters", minPasswordLength)
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return appErrors.Wrap(appErrors.CodeValidation, err, "invalid password")
	}
	return appErrors.Persistence(s.Repos.Users.UpdatePassword(ctx, user.ID, hash), "update password")
}

// MyRequests lets a not-yet-approved user see their own requests; it checks
// credentials but not approval.
func (s *IdentityService) MyRequests(ctx context.Context, username, password string) ([]model.ApprovalRequest, error) {
	user, err := s.checkCredentials(ctx, username, password)
	if err != nil {
		return nil, err
	}
	reqs, err := s.Repos.Requests.List(ctx, repository.RequestFilter{UserID: user.ID})
	if err != nil {
		return nil, appErrors.Persistence(err, "list requests")
	}
	return reqs, nil
}

func (s *IdentityService) RequestRoleChange(ctx context.Context, actor model.Actor, requested model.Role) (*model.ApprovalRequest, error) {
	if requested != model.RoleAdmin && requested != model.RolePracticeUser {
		return nil, appErrors.NewValidation("requested_role must be ADMIN or PRACTICE_USER")
	}
	if requested == actor.Role {
		return nil, appErrors.NewValidation("requested role equals current role")
	}
	practiceID, ok, err := s.Repos.Practices.PracticeOfUser(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Persistence(err, "load practice assignment")
	}
	if !ok {
		return nil, appErrors.New(appErrors.CodeNoPracticeAssignment, "you are not assigned to any practice")
	}
	pending, err := s.Repos.Requests.HasPending(ctx, model.RequestRoleChange, actor.ID)
	if err != nil {
		return nil, appErrors.Persistence(err, "check pending requests")
	}
	if pending {
		return nil, appErrors.New(appErrors.CodePendingRequestExists, "a role change request is already pending")
	}

	req := &model.ApprovalRequest{
		Kind:          model.RequestRoleChange,
		UserID:        actor.ID,
		PracticeID:    practiceID,
		CurrentRole:   actor.Role,
		RequestedRole: requested,
		Status:        model.RequestPending,
		RequestedAt:   nowOr(s.Now),
	}
	if err := s.Repos.Requests.Create(ctx, req); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.New(appErrors.CodePendingRequestExists, "a role change request is already pending")
		}
		return nil, appErrors.Persistence(err, "create role change request")
	}
	return req, nil
}

// ListPending: super admins see everything pending; admins see pending
// PRACTICE_USER requests for their own practice.
func (s *IdentityService) ListPending(ctx context.Context, actor model.Actor) ([]model.ApprovalRequest, error) {
	filter := repository.RequestFilter{Status: model.RequestPending}
	switch {
	case actor.IsSuperAdmin():
	case actor.IsAdmin():
		practiceID, err := s.adminPractice(ctx, actor)
		if err != nil {
			return nil, err
		}
		filter.PracticeID = practiceID
		filter.RequestedRole = model.RolePracticeUser
	default:
		return nil, appErrors.NewForbidden("insufficient permissions")
	}

	reqs, err := s.Repos.Requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Persistence(err, "list requests")
	}
	return reqs, nil
}

// Approve grants the requested role and assigns the user to the request's
// practice in one unit of work.
func (s *IdentityService) Approve(ctx context.Context, actor model.Actor, kind model.RequestKind, id int64) (*model.ApprovalRequest, error) {
	req, err := s.reviewable(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}

	err = s.Store.InTx(ctx, func(repos repository.Repositories) error {
		ok, err := repos.Requests.Review(ctx, kind, id, model.RequestApproved, actor.ID, nil)
		if err != nil {
			return err
		}
		if !ok {
			return alreadyReviewed(id)
		}
		if err := repos.Users.ApproveRole(ctx, req.UserID, req.RequestedRole); err != nil {
			return err
		}
		return repos.Practices.AssignUser(ctx, req.PracticeID, req.UserID)
	})
	if err != nil {
		return nil, appErrors.Persistence(err, "approve request")
	}

	req.Status = model.RequestApproved
	req.ReviewedBy = &actor.ID
	s.Logger.Info(s.Logger.WithFields(ctx, map[string]any{"request_id": id, "request_type": kind, "approved_user_id": req.UserID}), "request approved")
	return req, nil
}

func (s *IdentityService) Reject(ctx context.Context, actor model.Actor, kind model.RequestKind, id int64, reason string) (*model.ApprovalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.NewValidation("reason is required")
	}
	req, err := s.reviewable(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}

	ok, err := s.Repos.Requests.Review(ctx, kind, id, model.RequestRejected, actor.ID, &reason)
	if err != nil {
		return nil, appErrors.Persistence(err, "reject request")
	}
	if !ok {
		return nil, alreadyReviewed(id)
	}

	req.Status = model.RequestRejected
	req.ReviewedBy = &actor.ID
	req.RejectionReason = &reason
	return req, nil
}

// reviewable loads the request and applies the reviewer rules. Requests
// outside an admin's practice are reported as missing.
func (s *IdentityService) reviewable(ctx context.Context, actor model.Actor, kind model.RequestKind, id int64) (*model.ApprovalRequest, error) {
	if !kind.Valid() {
		return nil, appErrors.Newf(appErrors.CodeValidation, "unknown request_type %q", kind)
	}
	if !actor.IsSuperAdmin() && !actor.IsAdmin() {
		return nil, appErrors.NewForbidden("insufficient permissions")
	}

	req, err := s.Repos.Requests.GetByID(ctx, kind, id)
	if err != nil {
		return nil, appErrors.Persistence(err, "load request")
	}
	if actor.IsAdmin() {
		practiceID, err := s.adminPractice(ctx, actor)
		if err != nil {
			return nil, err
		}
		if req.PracticeID != practiceID {
			return nil, appErrors.NewRequestNotFound(id)
		}
		if req.RequestedRole != model.RolePracticeUser {
			return nil, appErrors.NewForbidden("admins can only handle practice user requests")
		}
	}
	if req.Status != model.RequestPending {
		return nil, alreadyReviewed(id)
	}
	return req, nil
}

func (s *IdentityService) adminPractice(ctx context.Context, actor model.Actor) (int64, error) {
	practiceID, ok, err := s.Repos.Practices.PracticeOfUser(ctx, actor.ID)
	if err != nil {
		return 0, appErrors.Persistence(err, "load practice assignment")
	}
	if !ok {
		return 0, appErrors.New(appErrors.CodeNoPracticeAssignment, "admin not assigned to any practice")
	}
	return practiceID, nil
}

func (s *IdentityService) ensureActivePractice(ctx context.Context, id int64) error {
	p, err := s.Repos.Practices.GetByID(ctx, id)
	if err != nil {
		return appErrors.Persistence(err, "load practice")
	}
	if !p.IsActive {
		return appErrors.NewPracticeNotFound(id)
	}
	return nil
}

func alreadyReviewed(id int64) error {
	return appErrors.Newf(appErrors.CodeRequestAlreadyReviewed, "request %d has already been reviewed", id)
}

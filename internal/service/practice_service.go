package service

import (
	"context"
	"strings"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/repository"
)

type PracticeService struct {
	Practices repository.PracticeRepositoryInterface
	Logger    *logger.Logger
}

func (s *PracticeService) Create(ctx context.Context, actor model.Actor, name string, description *string) (*model.Practice, error) {
	if !actor.IsSuperAdmin() {
		return nil, appErrors.NewForbidden("only super admins can create practices")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.NewValidation("name is required")
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	p := &model.Practice{Name: name, Description: description, IsActive: true}
	if err := s.Practices.Create(ctx, p); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, duplicatePractice(name)
		}
		return nil, appErrors.Persistence(err, "create practice")
	}
	s.Logger.Info(s.Logger.WithField(ctx, "practice_id", p.ID), "practice created")
	return p, nil
}

func (s *PracticeService) Get(ctx context.Context, id int64) (*model.Practice, error) {
	p, err := s.Practices.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Persistence(err, "load practice")
	}
	return p, nil
}

func (s *PracticeService) List(ctx context.Context, includeInactive bool) ([]model.Practice, error) {
	practices, err := s.Practices.List(ctx, includeInactive)
	if err != nil {
		return nil, appErrors.Persistence(err, "list practices")
	}
	return practices, nil
}

// Update applies the patch field by field with the same rules as Create.
func (s *PracticeService) Update(ctx context.Context, actor model.Actor, id int64, patch model.PracticePatch) (*model.Practice, error) {
	if !actor.IsSuperAdmin() {
		return nil, appErrors.NewForbidden("only super admins can update practices")
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, appErrors.NewValidation("name cannot be empty")
		}
		if name != p.Name {
			if err := s.ensureNameFree(ctx, name, p.ID); err != nil {
				return nil, err
			}
			p.Name = name
		}
	}
	if patch.Description != nil {
		p.Description = patch.Description
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}

	if err := s.Practices.Update(ctx, p); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, duplicatePractice(p.Name)
		}
		return nil, appErrors.Persistence(err, "update practice")
	}
	return p, nil
}

func (s *PracticeService) Users(ctx context.Context, actor model.Actor, practiceID int64) ([]model.User, error) {
	if err := s.authorizeRoster(ctx, actor, practiceID); err != nil {
		return nil, err
	}
	users, err := s.Practices.ListUsers(ctx, practiceID)
	if err != nil {
		return nil, appErrors.Persistence(err, "list practice users")
	}
	return users, nil
}

func (s *PracticeService) RemoveUser(ctx context.Context, actor model.Actor, practiceID, userID int64) error {
	if err := s.authorizeRoster(ctx, actor, practiceID); err != nil {
		return err
	}
	if err := s.Practices.RemoveUser(ctx, practiceID, userID); err != nil {
		return appErrors.Persistence(err, "remove practice user")
	}
	s.Logger.Info(s.Logger.WithFields(ctx, map[string]any{"practice_id": practiceID, "removed_user_id": userID}), "user removed from practice")
	return nil
}

// authorizeRoster: super admins manage any roster, admins only their own practice's.
func (s *PracticeService) authorizeRoster(ctx context.Context, actor model.Actor, practiceID int64) error {
	if _, err := s.Get(ctx, practiceID); err != nil {
		return err
	}
	if actor.IsSuperAdmin() {
		return nil
	}
	if actor.IsAdmin() {
		own, ok, err := s.Practices.PracticeOfUser(ctx, actor.ID)
		if err != nil {
			return appErrors.Persistence(err, "load practice assignment")
		}
		if ok && own == practiceID {
			return nil
		}
	}
	return appErrors.NewForbidden("not authorized to manage this practice")
}

func (s *PracticeService) ensureNameFree(ctx context.Context, name string, excludeID int64) error {
	taken, err := s.Practices.NameExists(ctx, name, excludeID)
	if err != nil {
		return appErrors.Persistence(err, "check practice name")
	}
	if taken {
		return duplicatePractice(name)
	}
	return nil
}

func duplicatePractice(name string) error {
	return appErrors.Newf(appErrors.CodeDuplicateName, "practice with name %q already exists", name)
}

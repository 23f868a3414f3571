// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/repository"
)

type CampaignService struct {
	Store  repository.TxRunner
	Repos  repository.Repositories
	Logger *logger.Logger
	Now    func() time.Time
}

type CreateCampaignInput struct {
	Name          string
	Content       string
	Description   *string
	DeliveryType  model.DeliveryType
	TargetRoles   model.Roles
	PracticeIDs   []int64
	ScheduledDate *time.Time
}

// UpdateCampaignInput is a patch; nil fields are left untouched.
type UpdateCampaignInput struct {
	Name         *string
	Content      *string
	Description  *string
	DeliveryType *model.DeliveryType
	TargetRoles  model.Roles
	PracticeIDs  []int64
}

type CampaignDetails struct {
	*model.Campaign
	Stats model.DeliveryStats `json:"stats"`
}

type CampaignPage struct {
	Campaigns  []*model.Campaign `json:"campaigns"`
	Pagination Pagination        `json:"pagination"`
}

// CreateCampaign validates everything before writing, then persists the
// campaign, its associations, its schedule and a CREATED entry atomically.
func (s *CampaignService) CreateCampaign(ctx context.Context, actor model.Actor, in CreateCampaignInput) (*model.Campaign, error) {
	if !actor.IsSuperAdmin() && !actor.IsAdmin() {
		return nil, appErrors.NewForbidden("only administrators can create campaigns")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, appErrors.NewValidation("name is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, appErrors.NewValidation("content is required")
	}
	if !in.DeliveryType.Valid() {
		return nil, appErrors.Newf(appErrors.CodeValidation, "unknown delivery type %q", in.DeliveryType)
	}
	if err := validateTargetRoles(actor, in.TargetRoles); err != nil {
		return nil, err
	}
	now := nowOr(s.Now)
	if err := validateSchedule(in.DeliveryType, in.ScheduledDate, now); err != nil {
		return nil, err
	}

	taken, err := s.Repos.Campaigns.NameExists(ctx, name, 0)
	if err != nil {
		return nil, appErrors.Persistence(err, "check campaign name")
	}
	if taken {
		return nil, appErrors.Newf(appErrors.CodeDuplicateName, "campaign with name %q already exists", name)
	}

	practiceIDs, err := s.targetPractices(ctx, actor, in.PracticeIDs)
	if err != nil {
		return nil, err
	}

	c := &model.Campaign{
		Name:         name,
		Content:      in.Content,
		Description:  in.Description,
		CampaignType: model.CampaignTypeCustom,
		DeliveryType: in.DeliveryType,
		Status:       model.CampaignDraft,
		CreatedBy:    actor.ID,
		TargetRoles:  dedupeRoles(in.TargetRoles),
		CreatedAt:    now,
	}
	if actor.IsSuperAdmin() {
		c.CampaignType = model.CampaignTypeDefault
	}
	for _, id := range practiceIDs {
		c.PracticeAssociations = append(c.PracticeAssociations, model.CampaignPracticeAssociation{PracticeID: id})
	}
	if in.DeliveryType == model.DeliveryScheduled {
		c.Schedules = []model.CampaignSchedule{{ScheduledDate: in.ScheduledDate.UTC(), Status: model.SchedulePending}}
	}

	err = s.Store.InTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Campaigns.Create(ctx, c); err != nil {
			return err
		}
		return repos.History.Record(ctx, &model.CampaignHistory{
			CampaignID:  c.ID,
			Action:      model.ActionCreated,
			Details:     fmt.Sprintf("Campaign '%s' created", c.Name),
			PerformedBy: actor.ID,
			CreatedAt:   now,
		})
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Newf(appErrors.CodeDuplicateName, "campaign with name %q already exists", name)
		}
		return nil, appErrors.Persistence(err, "create campaign")
	}

	s.Logger.Info(s.Logger.WithCampaignID(ctx, c.ID), "campaign created")
	return c, nil
}

// targetPractices: super admins choose any existing active practices;
// everyone else is pinned to their own assignment whatever they asked for.
func (s *CampaignService) targetPractices(ctx context.Context, actor model.Actor, requested []int64) ([]int64, error) {
	if !actor.IsSuperAdmin() {
		practiceID, ok, err := s.Repos.Practices.PracticeOfUser(ctx, actor.ID)
		if err != nil {
			return nil, appErrors.Persistence(err, "load practice assignment")
		}
		if !ok {
			return nil, appErrors.New(appErrors.CodeNoPracticeAssignment, "you are not assigned to any practice")
		}
		return []int64{practiceID}, nil
	}

	ids := dedupeIDs(requested)
	if len(ids) == 0 {
		return nil, appErrors.NewValidation("at least one target practice is required")
	}
	for _, id := range ids {
		p, err := s.Repos.Practices.GetByID(ctx, id)
		if err != nil {
			return nil, appErrors.Persistence(err, "load practice")
		}
		if !p.IsActive {
			return nil, appErrors.NewPracticeNotFound(id)
		}
	}
	return ids, nil
}

// UpdateCampaign applies a patch to a DRAFT campaign.
func (s *CampaignService) UpdateCampaign(ctx context.Context, actor model.Actor, id int64, in UpdateCampaignInput) (*model.Campaign, error) {
	c, err := s.Repos.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Persistence(err, "load campaign")
	}
	if !canModifyCampaign(actor, c) {
		return nil, appErrors.NewForbidden("not authorized to modify this campaign")
	}
	if c.Status != model.CampaignDraft {
		return nil, notDraft(c)
	}

	changed := []string{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, appErrors.NewValidation("name cannot be empty")
		}
		if name != c.Name {
			taken, err := s.Repos.Campaigns.NameExists(ctx, name, c.ID)
			if err != nil {
				return nil, appErrors.Persistence(err, "check campaign name")
			}
			if taken {
				return nil, appErrors.Newf(appErrors.CodeDuplicateName, "campaign with name %q already exists", name)
			}
			c.Name = name
			changed = append(changed, "name")
		}
	}
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, appErrors.NewValidation("content cannot be empty")
		}
		c.Content = *in.Content
		changed = append(changed, "content")
	}
	if in.Description != nil {
		c.Description = in.Description
		changed = append(changed, "description")
	}
	if in.DeliveryType != nil && *in.DeliveryType != c.DeliveryType {
		// schedules are fixed at creation
		return nil, appErrors.NewValidation("delivery type cannot be changed after creation")
	}
	if in.TargetRoles != nil {
		if err := validateTargetRoles(actor, in.TargetRoles); err != nil {
			return nil, err
		}
		c.TargetRoles = dedupeRoles(in.TargetRoles)
		changed = append(changed, "target_roles")
	}

	var practiceIDs []int64
	if in.PracticeIDs != nil && actor.IsSuperAdmin() {
		if practiceIDs, err = s.targetPractices(ctx, actor, in.PracticeIDs); err != nil {
			return nil, err
		}
		changed = append(changed, "target_practices")
	}

	now := nowOr(s.Now)
	err = s.Store.InTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Campaigns.Update(ctx, c); err != nil {
			return err
		}
		if practiceIDs != nil {
			if err := repos.Campaigns.ReplacePracticeAssociations(ctx, c.ID, practiceIDs); err != nil {
				return err
			}
		}
		details := "Campaign details updated"
		if len(changed) > 0 {
			details = "Campaign details updated: " + strings.Join(changed, ", ")
		}
		return repos.History.Record(ctx, &model.CampaignHistory{
			CampaignID:  c.ID,
			Action:      model.ActionUpdated,
			Details:     details,
			PerformedBy: actor.ID,
			CreatedAt:   now,
		})
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Newf(appErrors.CodeDuplicateName, "campaign with name %q already exists", c.Name)
		}
		return nil, appErrors.Persistence(err, "update campaign")
	}

	updated, err := s.Repos.Campaigns.GetByID(ctx, c.ID)
	if err != nil {
		return nil, appErrors.Persistence(err, "reload campaign")
	}
	return updated, nil
}

// DeleteCampaign records DELETED and then removes the campaign; the cascade
// takes that history row with it.
func (s *CampaignService) DeleteCampaign(ctx context.Context, actor model.Actor, id int64) error {
	c, err := s.Repos.Campaigns.GetByID(ctx, id)
	if err != nil {
		return appErrors.Persistence(err, "load campaign")
	}
	if !canModifyCampaign(actor, c) {
		return appErrors.NewForbidden("not authorized to delete this campaign")
	}

	err = s.Store.InTx(ctx, func(repos repository.Repositories) error {
		if err := repos.History.Record(ctx, &model.CampaignHistory{
			CampaignID:  c.ID,
			Action:      model.ActionDeleted,
			Details:     fmt.Sprintf("Campaign '%s' deleted", c.Name),
			PerformedBy: actor.ID,
			CreatedAt:   nowOr(s.Now),
		}); err != nil {
			return err
		}
		return repos.Campaigns.Delete(ctx, c.ID)
	})
	if err != nil {
		return appErrors.Persistence(err, "delete campaign")
	}
	s.Logger.Info(s.Logger.WithCampaignID(ctx, id), "campaign deleted")
	return nil
}

// ListCampaigns fetches the campaigns the actor may see, with pagination.
func (s *CampaignService) ListCampaigns(ctx context.Context, actor model.Actor, page, pageSize int, status model.CampaignStatus) (*CampaignPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	campaigns, total, err := s.Repos.Campaigns.List(ctx, visibilityFor(actor, status), offset, pageSize)
	if err != nil {
		return nil, appErrors.Persistence(err, "list campaigns")
	}
	return &CampaignPage{
		Campaigns:  campaigns,
		Pagination: newPagination(page, pageSize, total),
	}, nil
}

func visibilityFor(actor model.Actor, status model.CampaignStatus) repository.CampaignFilter {
	filter := repository.CampaignFilter{Status: status}
	switch {
	case actor.IsSuperAdmin():
		filter.Visibility = repository.VisibleAll
	case actor.IsAdmin():
		filter.Visibility = repository.VisibleDefaultAndOwn
		filter.OwnerID = actor.ID
	default:
		filter.Visibility = repository.VisibleNone
	}
	return filter
}

// canView mirrors the list visibility rule for a single campaign.
func canView(actor model.Actor, c *model.Campaign) bool {
	switch {
	case actor.IsSuperAdmin():
		return true
	case actor.IsAdmin():
		return c.CampaignType == model.CampaignTypeDefault || c.CreatedBy == actor.ID
	default:
		return false
	}
}

func (s *CampaignService) visibleCampaign(ctx context.Context, actor model.Actor, id int64) (*model.Campaign, error) {
	c, err := s.Repos.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Persistence(err, "load campaign")
	}
	if !canView(actor, c) {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

// GetCampaignDetails returns the campaign with its associations, schedules and inbox stats.
func (s *CampaignService) GetCampaignDetails(ctx context.Context, actor model.Actor, id int64) (*CampaignDetails, error) {
	c, err := s.visibleCampaign(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.Repos.Campaigns.Stats(ctx, id)
	if err != nil {
		return nil, appErrors.Persistence(err, "load campaign stats")
	}
	return &CampaignDetails{Campaign: c, Stats: stats}, nil
}

// History returns the campaign's audit trail, newest first.
func (s *CampaignService) History(ctx context.Context, actor model.Actor, id int64) ([]model.CampaignHistory, error) {
	if _, err := s.visibleCampaign(ctx, actor, id); err != nil {
		return nil, err
	}
	entries, err := s.Repos.History.ListForCampaign(ctx, id)
	if err != nil {
		return nil, appErrors.Persistence(err, "load campaign history")
	}
	return entries, nil
}

func validateTargetRoles(actor model.Actor, roles model.Roles) error {
	if len(roles) == 0 {
		return appErrors.NewValidation("at least one target role is required")
	}
	for _, r := range roles {
		if !r.Assigned() {
			return appErrors.Newf(appErrors.CodeValidation, "unknown target role %q", r)
		}
		if actor.IsAdmin() && r != model.RolePracticeUser {
			return appErrors.NewValidation("admins can only target practice users")
		}
	}
	return nil
}

func validateSchedule(delivery model.DeliveryType, date *time.Time, now time.Time) error {
	switch delivery {
	case model.DeliveryScheduled:
		if date == nil {
			return appErrors.New(appErrors.CodeInvalidSchedule, "scheduled_date is required for scheduled campaigns")
		}
		if !date.After(now) {
			return appErrors.New(appErrors.CodeInvalidSchedule, "scheduled_date must be in the future")
		}
	case model.DeliveryImmediate:
		if date != nil {
			return appErrors.New(appErrors.CodeScheduledDateNotAllowed, "scheduled_date is not allowed for immediate campaigns")
		}
	}
	return nil
}

func dedupeRoles(roles model.Roles) model.Roles {
	out := make(model.Roles, 0, len(roles))
	for _, r := range roles {
		if !out.Contains(r) {
			out = append(out, r)
		}
	}
	return out
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

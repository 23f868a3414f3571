package service

import (
	"context"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/logger"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/repository"
)

// DeliveryService resolves campaign audiences and fans content out into
// recipients' inboxes, either on request or when a schedule falls due.
type DeliveryService struct {
	Store  repository.TxRunner
	Repos  repository.Repositories
	Logger *logger.Logger
	Now    func() time.Time
}

type SendResult struct {
	CampaignID int64                `json:"campaign_id"`
	ScheduleID int64                `json:"schedule_id,omitempty"`
	Recipients int                  `json:"recipients_count"`
	Status     model.CampaignStatus `json:"status"`
	SentAt     time.Time            `json:"sent_at"`
}

func (r *SendResult) Message() string {
	return fmt.Sprintf("Campaign sent successfully to %d users", r.Recipients)
}

// ResolveTargets computes the campaign's audience from the current roster:
// users assigned to any associated practice, holding a targeted role, active
// and approved. Distinct by user id, ordered by id.
func (s *DeliveryService) ResolveTargets(ctx context.Context, c *model.Campaign) ([]model.User, error) {
	users, err := resolveTargets(ctx, s.Repos, c)
	if err != nil {
		return nil, appErrors.Persistence(err, "resolve campaign audience")
	}
	return users, nil
}

func resolveTargets(ctx context.Context, repos repository.Repositories, c *model.Campaign) ([]model.User, error) {
	userIDs, err := repos.Practices.UserIDsInPractices(ctx, c.PracticeIDs())
	if err != nil {
		return nil, err
	}
	candidates, err := repos.Users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(candidates))
	targets := make([]model.User, 0, len(candidates))
	for _, u := range candidates {
		if !c.TargetRoles.Contains(u.Role) || !u.Eligible() {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		targets = append(targets, u)
	}
	return targets, nil
}

// SendImmediate delivers an IMMEDIATE campaign now.
func (s *DeliveryService) SendImmediate(ctx context.Context, actor model.Actor, campaignID int64) (*SendResult, error) {
	ctx = s.Logger.WithCampaignID(ctx, campaignID)

	c, err := s.Repos.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, appErrors.Persistence(err, "load campaign")
	}
	if c.Status != model.CampaignDraft {
		return nil, notDraft(c)
	}
	if c.DeliveryType != model.DeliveryImmediate {
		return nil, appErrors.Newf(appErrors.CodeWrongDeliveryType,
			"campaign %d is %s; only IMMEDIATE campaigns can be sent directly", c.ID, c.DeliveryType)
	}
	if !canModifyCampaign(actor, c) {
		return nil, appErrors.NewForbidden("not authorized to send this campaign")
	}

	if err := s.claim(ctx, c); err != nil {
		return nil, err
	}
	return s.deliver(ctx, c, actor.ID, nil)
}

// FindDueSchedules lists pending schedules due at now whose campaign is still DRAFT.
func (s *DeliveryService) FindDueSchedules(ctx context.Context, now time.Time) ([]int64, error) {
	ids, err := s.Repos.Schedules.FindDue(ctx, now)
	if err != nil {
		return nil, appErrors.Persistence(err, "find due schedules")
	}
	return ids, nil
}

// ProcessSchedule delivers the campaign behind one due schedule. Each call is
// its own unit of work; a failure here never touches other schedules.
func (s *DeliveryService) ProcessSchedule(ctx context.Context, scheduleID int64) (*SendResult, error) {
	ctx = s.Logger.WithField(ctx, "schedule_id", scheduleID)

	sched, err := s.Repos.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Persistence(err, "load schedule")
	}
	if sched.Status != model.SchedulePending {
		return nil, appErrors.Newf(appErrors.CodeNotDraft, "schedule %d is already %s", sched.ID, sched.Status)
	}

	c, err := s.Repos.Campaigns.GetByID(ctx, sched.CampaignID)
	if err != nil {
		return nil, appErrors.Persistence(err, "load campaign")
	}
	ctx = s.Logger.WithCampaignID(ctx, c.ID)
	if c.Status != model.CampaignDraft {
		return nil, notDraft(c)
	}

	if err := s.claim(ctx, c); err != nil {
		return nil, err
	}
	// scheduled sends are attributed to the campaign's creator
	return s.deliver(ctx, c, c.CreatedBy, sched)
}

// claim commits DRAFT -> IN_PROGRESS on its own before any recipient work.
// Losing the conditional update means another sender got there first.
func (s *DeliveryService) claim(ctx context.Context, c *model.Campaign) error {
	won, err := s.Repos.Campaigns.TransitionStatus(ctx, c.ID, model.CampaignDraft, model.CampaignInProgress)
	if err != nil {
		return appErrors.Persistence(err, "mark campaign in progress")
	}
	if !won {
		return appErrors.Newf(appErrors.CodeNotDraft, "campaign %d is no longer DRAFT", c.ID)
	}
	c.Status = model.CampaignInProgress
	return nil
}

// deliver resolves the audience and writes every inbox row, the COMPLETED
// status, the schedule outcome and the SENT history entry as one unit. On
// any failure that unit rolls back and the campaign is marked FAILED.
//
// The campaign is already IN_PROGRESS, so the work is detached from the
// caller's cancellation: it always ends COMPLETED or FAILED.
func (s *DeliveryService) deliver(ctx context.Context, c *model.Campaign, performedBy int64, sched *model.CampaignSchedule) (*SendResult, error) {
	ctx = context.WithoutCancel(ctx)
	sentAt := nowOr(s.Now)
	result := &SendResult{CampaignID: c.ID, SentAt: sentAt}
	if sched != nil {
		result.ScheduleID = sched.ID
	}

	err := s.Store.InTx(ctx, func(repos repository.Repositories) error {
		targets, err := resolveTargets(ctx, repos, c)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return appErrors.Newf(appErrors.CodeEmptyAudience, "no eligible recipients for campaign %d", c.ID)
		}

		msgs := make([]model.UserMessage, 0, len(targets))
		for _, u := range targets {
			msgs = append(msgs, model.UserMessage{
				UserID:     u.ID,
				CampaignID: c.ID,
				Content:    c.Content,
				CreatedAt:  sentAt,
			})
		}
		if err := repos.Messages.BulkCreate(ctx, msgs); err != nil {
			return err
		}

		won, err := repos.Campaigns.TransitionStatus(ctx, c.ID, model.CampaignInProgress, model.CampaignCompleted)
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("campaign %d left IN_PROGRESS during delivery", c.ID)
		}
		if sched != nil {
			if err := repos.Schedules.MarkProcessed(ctx, sched.ID, sentAt); err != nil {
				return err
			}
		}

		result.Recipients = len(targets)
		return repos.History.Record(ctx, &model.CampaignHistory{
			CampaignID:  c.ID,
			Action:      model.ActionSent,
			Details:     result.Message(),
			PerformedBy: performedBy,
			CreatedAt:   sentAt,
		})
	})
	if err != nil {
		s.Logger.Error(ctx, "campaign delivery failed", err)
		s.fail(ctx, c, performedBy, sched, err)
		return nil, appErrors.Persistence(err, "deliver campaign")
	}

	c.Status = model.CampaignCompleted
	result.Status = c.Status
	s.Logger.Info(s.Logger.WithField(ctx, "recipients", result.Recipients), "campaign delivered")
	return result, nil
}

// fail moves the campaign to FAILED and records why, in a unit of its own so
// it survives the rollback of the delivery unit.
func (s *DeliveryService) fail(ctx context.Context, c *model.Campaign, performedBy int64, sched *model.CampaignSchedule, cause error) {
	at := nowOr(s.Now)
	reason := failureReason(cause)

	err := s.Store.InTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Campaigns.TransitionStatus(ctx, c.ID, model.CampaignInProgress, model.CampaignFailed); err != nil {
			return err
		}
		if sched != nil {
			if err := repos.Schedules.MarkFailed(ctx, sched.ID, reason, at); err != nil {
				return err
			}
		}
		return repos.History.Record(ctx, &model.CampaignHistory{
			CampaignID:  c.ID,
			Action:      model.ActionFailed,
			Details:     "Campaign delivery failed: " + reason,
			PerformedBy: performedBy,
			CreatedAt:   at,
		})
	})
	if err != nil {
		s.Logger.Error(ctx, "failed to record campaign failure", err)
		return
	}
	c.Status = model.CampaignFailed
}

func failureReason(err error) string {
	if typed := appErrors.As(err); typed != nil {
		return typed.Message
	}
	return err.Error()
}

func notDraft(c *model.Campaign) error {
	return appErrors.Newf(appErrors.CodeNotDraft, "campaign %d is %s, not DRAFT", c.ID, c.Status)
}

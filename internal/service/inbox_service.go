package service

import (
	"context"
	"time"

	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
	"github.com/unclebandit/practicehub-backend/internal/repository"
)

// InboxService exposes a user's own delivered messages. Every call is scoped
// to the actor; another user's message behaves exactly like a missing one.
type InboxService struct {
	Messages repository.UserMessageRepositoryInterface
	Now      func() time.Time
}

func (s *InboxService) List(ctx context.Context, actor model.Actor) ([]model.UserMessage, error) {
	msgs, err := s.Messages.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Persistence(err, "list messages")
	}
	return msgs, nil
}

func (s *InboxService) MarkRead(ctx context.Context, actor model.Actor, messageID int64) error {
	return appErrors.Persistence(s.Messages.MarkRead(ctx, messageID, actor.ID, nowOr(s.Now)), "mark message read")
}

func (s *InboxService) Delete(ctx context.Context, actor model.Actor, messageID int64) error {
	return appErrors.Persistence(s.Messages.SoftDelete(ctx, messageID, actor.ID, nowOr(s.Now)), "delete message")
}

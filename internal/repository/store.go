package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/practicehub-backend/internal/db"
)

// Repositories groups every repository bound to the same connection or transaction.
type Repositories struct {
	Campaigns CampaignRepositoryInterface
	Schedules ScheduleRepositoryInterface
	History   HistoryRepositoryInterface
	Messages  UserMessageRepositoryInterface
	Users     UserRepositoryInterface
	Practices PracticeRepositoryInterface
	Requests  RequestRepositoryInterface
}

// TxRunner runs fn as one unit of work; every write made through the
// repositories it receives commits or rolls back together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(repos Repositories) error) error
}

func New(q db.DBTX) Repositories {
	return Repositories{
		Campaigns: &CampaignRepository{DB: q},
		Schedules: &ScheduleRepository{DB: q},
		History:   &HistoryRepository{DB: q},
		Messages:  &UserMessageRepository{DB: q},
		Users:     &UserRepository{DB: q},
		Practices: &PracticeRepository{DB: q},
		Requests:  &RequestRepository{DB: q},
	}
}

// Store hands out auto-commit repositories and transactional units of work.
type Store struct {
	Repositories
	DB *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{Repositories: New(conn), DB: conn}
}

func (s *Store) InTx(ctx context.Context, fn func(repos Repositories) error) error {
	return db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		return fn(New(tx))
	})
}

var _ TxRunner = (*Store)(nil)

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/unclebandit/practicehub-backend/internal/db"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

type ScheduleRepositoryInterface interface {
	GetByID(ctx context.Context, id int64) (*model.CampaignSchedule, error)
	FindDue(ctx context.Context, now time.Time) ([]int64, error)
	MarkProcessed(ctx context.Context, id int64, executedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, message string, at time.Time) error
}

type ScheduleRepository struct {
	DB db.DBTX
}

const scheduleColumns = `id, campaign_id, scheduled_date, status, execution_time, error_message, created_at`

func scanSchedule(row rowScanner) (*model.CampaignSchedule, error) {
	var s model.CampaignSchedule
	if err := row.Scan(&s.ID, &s.CampaignID, &s.ScheduledDate, &s.Status, &s.ExecutionTime, &s.ErrorMessage, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ScheduleRepository) GetByID(ctx context.Context, id int64) (*model.CampaignSchedule, error) {
	s, err := scanSchedule(r.DB.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM campaign_schedules WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewScheduleNotFound(id)
		}
		return nil, err
	}
	return s, nil
}

// FindDue returns pending schedules whose time has come and whose campaign
// has not been sent yet, oldest first.
func (r *ScheduleRepository) FindDue(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT s.id
		FROM campaign_schedules s
		JOIN campaigns c ON c.id = s.campaign_id
		WHERE s.status=$1 AND s.scheduled_date <= $2 AND c.status=$3
		ORDER BY s.scheduled_date, s.id`,
		model.SchedulePending, now, model.CampaignDraft)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ScheduleRepository) MarkProcessed(ctx context.Context, id int64, executedAt time.Time) error {
	return r.finish(ctx, id, model.ScheduleProcessed, nil, executedAt)
}

func (r *ScheduleRepository) MarkFailed(ctx context.Context, id int64, message string, at time.Time) error {
	return r.finish(ctx, id, model.ScheduleFailed, &message, at)
}

func (r *ScheduleRepository) finish(ctx context.Context, id int64, status model.ScheduleStatus, message *string, at time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaign_schedules SET status=$1, error_message=$2, execution_time=$3 WHERE id=$4 AND status=$5`,
		status, message, at, id, model.SchedulePending)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Newf(appErrors.CodeNotFound, "pending schedule with ID %d not found", id)
	}
	return nil
}

var _ ScheduleRepositoryInterface = (*ScheduleRepository)(nil)

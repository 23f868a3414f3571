package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/practicehub-backend/internal/db"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

// CampaignVisibility selects which campaigns a list query may return.
type CampaignVisibility int

const (
	VisibleNone CampaignVisibility = iota
	VisibleAll
	// VisibleDefaultAndOwn shows every DEFAULT campaign plus the owner's CUSTOM ones.
	VisibleDefaultAndOwn
)

type CampaignFilter struct {
	Visibility CampaignVisibility
	OwnerID    int64
	Status     model.CampaignStatus
}

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int64) (*model.Campaign, error)
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	Update(ctx context.Context, c *model.Campaign) error
	ReplacePracticeAssociations(ctx context.Context, campaignID int64, practiceIDs []int64) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter CampaignFilter, offset, limit int) ([]*model.Campaign, int, error)

	// Status machine
	TransitionStatus(ctx context.Context, id int64, from, to model.CampaignStatus) (bool, error)

	// Inbox rows produced by the campaign
	Stats(ctx context.Context, campaignID int64) (model.DeliveryStats, error)
}

type CampaignRepository struct {
	DB db.DBTX
}

const campaignColumns = `id, name, content, description, campaign_type, delivery_type, status, created_by, target_roles, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	err := row.Scan(&c.ID, &c.Name, &c.Content, &c.Description, &c.CampaignType, &c.DeliveryType,
		&c.Status, &c.CreatedBy, &c.TargetRoles, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

// Create inserts the campaign with its practice associations and schedules.
// Callers run it inside a transaction so the aggregate lands atomically.
func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	query := `
		INSERT INTO campaigns (name, content, description, campaign_type, delivery_type, status, created_by, target_roles, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query, c.Name, c.Content, c.Description, c.CampaignType,
		c.DeliveryType, c.Status, c.CreatedBy, c.TargetRoles, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	for i := range c.PracticeAssociations {
		a := &c.PracticeAssociations[i]
		a.CampaignID = c.ID
		a.CreatedAt = c.CreatedAt
		err := r.DB.QueryRowContext(ctx,
			`INSERT INTO campaign_practice_associations (campaign_id, practice_id, created_at) VALUES ($1, $2, $3) RETURNING id`,
			c.ID, a.PracticeID, a.CreatedAt).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("insert practice association: %w", err)
		}
	}

	for i := range c.Schedules {
		s := &c.Schedules[i]
		s.CampaignID = c.ID
		if s.Status == "" {
			s.Status = model.SchedulePending
		}
		s.CreatedAt = c.CreatedAt
		err := r.DB.QueryRowContext(ctx,
			`INSERT INTO campaign_schedules (campaign_id, scheduled_date, status, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
			c.ID, s.ScheduledDate, s.Status, s.CreatedAt).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("insert schedule: %w", err)
		}
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}

	if c.PracticeAssociations, err = r.practiceAssociations(ctx, id); err != nil {
		return nil, err
	}
	if c.Schedules, err = r.schedules(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) practiceAssociations(ctx context.Context, campaignID int64) ([]model.CampaignPracticeAssociation, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT a.id, a.campaign_id, a.practice_id, p.name, a.created_at
		FROM campaign_practice_associations a
		JOIN practices p ON p.id = a.practice_id
		WHERE a.campaign_id=$1
		ORDER BY a.id`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CampaignPracticeAssociation{}
	for rows.Next() {
		var a model.CampaignPracticeAssociation
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.PracticeID, &a.PracticeName, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *CampaignRepository) schedules(ctx context.Context, campaignID int64) ([]model.CampaignSchedule, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM campaign_schedules WHERE campaign_id=$1 ORDER BY scheduled_date`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CampaignSchedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *CampaignRepository) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM campaigns WHERE name=$1 AND id<>$2)`, name, excludeID).Scan(&exists)
	return exists, err
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	now := time.Now().UTC()
	query := `
		UPDATE campaigns
		SET name=$1, content=$2, description=$3, delivery_type=$4, target_roles=$5, updated_at=$6
		WHERE id=$7
	`
	res, err := r.DB.ExecContext(ctx, query, c.Name, c.Content, c.Description, c.DeliveryType, c.TargetRoles, now, c.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	c.UpdatedAt = &now
	return nil
}

func (r *CampaignRepository) ReplacePracticeAssociations(ctx context.Context, campaignID int64, practiceIDs []int64) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_practice_associations WHERE campaign_id=$1`, campaignID); err != nil {
		return err
	}
	if len(practiceIDs) == 0 {
		return nil
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO campaign_practice_associations (campaign_id, practice_id)
		SELECT $1, unnest($2::bigint[])`, campaignID, pq.Array(practiceIDs))
	return err
}

// Delete removes the campaign; associations, schedules, history and inbox
// rows go with it through ON DELETE CASCADE.
func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return nil
}

func (r *CampaignRepository) List(ctx context.Context, filter CampaignFilter, offset, limit int) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	if filter.Visibility == VisibleNone {
		return campaigns, 0, nil
	}

	where := ` WHERE 1=1`
	args := []any{}
	argPos := 1

	if filter.Visibility == VisibleDefaultAndOwn {
		where += fmt.Sprintf(" AND (campaign_type=$%d OR (campaign_type=$%d AND created_by=$%d))", argPos, argPos+1, argPos+2)
		args = append(args, model.CampaignTypeDefault, model.CampaignTypeCustom, filter.OwnerID)
		argPos += 3
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return campaigns, total, nil
}

// ====================== Status machine ======================

// TransitionStatus moves the campaign from one status to another only if it
// is still in the expected one. The conditional update is the guard that lets
// exactly one of several concurrent senders win.
func (r *CampaignRepository) TransitionStatus(ctx context.Context, id int64, from, to model.CampaignStatus) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("illegal campaign transition %s -> %s", from, to)
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3 AND status=$4`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ====================== Stats ======================

func (r *CampaignRepository) Stats(ctx context.Context, campaignID int64) (model.DeliveryStats, error) {
	var stats model.DeliveryStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_read),
		       COUNT(*) FILTER (WHERE is_deleted)
		FROM user_messages
		WHERE campaign_id=$1`, campaignID).Scan(&stats.Recipients, &stats.Read, &stats.Deleted)
	return stats, err
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)

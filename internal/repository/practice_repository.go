package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/unclebandit/practicehub-backend/internal/db"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

type PracticeRepositoryInterface interface {
	Create(ctx context.Context, p *model.Practice) error
	GetByID(ctx context.Context, id int64) (*model.Practice, error)
	NameExists(ctx context.Context, name string, excludeID int64) (bool, error)
	List(ctx context.Context, includeInactive bool) ([]model.Practice, error)
	Update(ctx context.Context, p *model.Practice) error

	// Roster
	UserIDsInPractices(ctx context.Context, practiceIDs []int64) ([]int64, error)
	PracticeOfUser(ctx context.Context, userID int64) (int64, bool, error)
	AssignUser(ctx context.Context, practiceID, userID int64) error
	ListUsers(ctx context.Context, practiceID int64) ([]model.User, error)
	RemoveUser(ctx context.Context, practiceID, userID int64) error
}

type PracticeRepository struct {
	DB db.DBTX
}

const practiceColumns = `id, name, description, is_active, created_at, updated_at`

func scanPractice(row rowScanner) (*model.Practice, error) {
	var p model.Practice
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PracticeRepository) Create(ctx context.Context, p *model.Practice) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return r.DB.QueryRowContext(ctx,
		`INSERT INTO practices (name, description, is_active, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		p.Name, p.Description, p.IsActive, p.CreatedAt).Scan(&p.ID)
}

func (r *PracticeRepository) GetByID(ctx context.Context, id int64) (*model.Practice, error) {
	p, err := scanPractice(r.DB.QueryRowContext(ctx, `SELECT `+practiceColumns+` FROM practices WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewPracticeNotFound(id)
		}
		return nil, err
	}
	return p, nil
}

func (r *PracticeRepository) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM practices WHERE name=$1 AND id<>$2)`, name, excludeID).Scan(&exists)
	return exists, err
}

func (r *PracticeRepository) List(ctx context.Context, includeInactive bool) ([]model.Practice, error) {
	query := `SELECT ` + practiceColumns + ` FROM practices`
	if !includeInactive {
		query += ` WHERE is_active=TRUE`
	}
	query += ` ORDER BY name`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Practice{}
	for rows.Next() {
		p, err := scanPractice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PracticeRepository) Update(ctx context.Context, p *model.Practice) error {
	now := time.Now().UTC()
	res, err := r.DB.ExecContext(ctx,
		`UPDATE practices SET name=$1, description=$2, is_active=$3, updated_at=$4 WHERE id=$5`,
		p.Name, p.Description, p.IsActive, now, p.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewPracticeNotFound(p.ID)
	}
	p.UpdatedAt = &now
	return nil
}

// ====================== Roster ======================

// UserIDsInPractices returns the distinct users assigned to any of the practices.
func (r *PracticeRepository) UserIDsInPractices(ctx context.Context, practiceIDs []int64) ([]int64, error) {
	ids := []int64{}
	if len(practiceIDs) == 0 {
		return ids, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM practice_user_assignments WHERE practice_id = ANY($1) ORDER BY user_id`,
		pq.Array(practiceIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PracticeRepository) PracticeOfUser(ctx context.Context, userID int64) (int64, bool, error) {
	var practiceID int64
	err := r.DB.QueryRowContext(ctx,
		`SELECT practice_id FROM practice_user_assignments WHERE user_id=$1`, userID).Scan(&practiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return practiceID, true, nil
}

// AssignUser gives the user exactly one practice, replacing any previous one.
func (r *PracticeRepository) AssignUser(ctx context.Context, practiceID, userID int64) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO practice_user_assignments (practice_id, user_id, assigned_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET practice_id=EXCLUDED.practice_id, assigned_at=EXCLUDED.assigned_at`,
		practiceID, userID)
	return err
}

func (r *PracticeRepository) ListUsers(ctx context.Context, practiceID int64) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.full_name, u.password, u.role, u.is_active, u.is_approved, u.last_login, u.created_at
		FROM users u
		JOIN practice_user_assignments a ON a.user_id = u.id
		WHERE a.practice_id=$1
		ORDER BY u.username`, practiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *PracticeRepository) RemoveUser(ctx context.Context, practiceID, userID int64) error {
	res, err := r.DB.ExecContext(ctx,
		`DELETE FROM practice_user_assignments WHERE practice_id=$1 AND user_id=$2`, practiceID, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.Newf(appErrors.CodeNotFound, "user %d is not assigned to practice %d", userID, practiceID)
	}
	return nil
}

var _ PracticeRepositoryInterface = (*PracticeRepository)(nil)

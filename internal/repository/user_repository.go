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

type UserRepositoryInterface interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []int64) ([]model.User, error)
	UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	ApproveRole(ctx context.Context, id int64, role model.Role) error
}

type UserRepository struct {
	DB db.DBTX
}

const userColumns = `id, username, email, full_name, password, role, is_active, is_approved, last_login, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.IsApproved, &u.LastLogin, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO users (username, email, full_name, password, role, is_active, is_approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, u.Username, u.Email, u.FullName, u.PasswordHash, u.Role,
		u.IsActive, u.IsApproved, u.CreatedAt).Scan(&u.ID)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewUserNotFound(id)
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=$1`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Newf(appErrors.CodeNotFound, "user %q not found", username)
		}
		return nil, err
	}
	return u, nil
}

// GetByIDs returns the users that exist among ids, ordered by id.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.User, error) {
	users := []model.User{}
	if len(ids) == 0 {
		return users, nil
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *UserRepository) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, error) {
	var taken bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username=$1 OR email=$2)`, username, email).Scan(&taken)
	return taken, err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.exec(ctx, id, `UPDATE users SET password=$1, updated_at=NOW() WHERE id=$2`, hash, id)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, id, `UPDATE users SET last_login=$1 WHERE id=$2`, at, id)
}

// ApproveRole grants the role and marks the user approved.
func (r *UserRepository) ApproveRole(ctx context.Context, id int64, role model.Role) error {
	return r.exec(ctx, id, `UPDATE users SET role=$1, is_approved=TRUE, updated_at=NOW() WHERE id=$2`, role, id)
}

func (r *UserRepository) exec(ctx context.Context, id int64, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return appErrors.NewUserNotFound(id)
	}
	return nil
}

var _ UserRepositoryInterface = (*UserRepository)(nil)

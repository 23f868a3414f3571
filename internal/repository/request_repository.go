package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/unclebandit/practicehub-backend/internal/db"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

// RequestFilter narrows a request listing; zero values mean "any".
type RequestFilter struct {
	Status        model.RequestStatus
	UserID        int64
	PracticeID    int64
	RequestedRole model.Role
}

type RequestRepositoryInterface interface {
	Create(ctx context.Context, req *model.ApprovalRequest) error
	GetByID(ctx context.Context, kind model.RequestKind, id int64) (*model.ApprovalRequest, error)
	HasPending(ctx context.Context, kind model.RequestKind, userID int64) (bool, error)
	List(ctx context.Context, filter RequestFilter) ([]model.ApprovalRequest, error)
	Review(ctx context.Context, kind model.RequestKind, id int64, status model.RequestStatus, reviewerID int64, reason *string) (bool, error)
}

type RequestRepository struct {
	DB db.DBTX
}

// Registration requests have no from_role column; NULL scans to RoleUnassigned.
func requestSource(kind model.RequestKind) (table, fromRole string, err error) {
	switch kind {
	case model.RequestRegistration:
		return "user_registration_requests", "NULL", nil
	case model.RequestRoleChange:
		return "role_change_requests", "from_role", nil
	default:
		return "", "", fmt.Errorf("unknown request kind %q", kind)
	}
}

func requestSelect(kind model.RequestKind) (string, error) {
	table, fromRole, err := requestSource(kind)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`SELECT id, user_id, practice_id, %s, requested_role, status, reviewed_by, rejection_reason, requested_at FROM %s`,
		fromRole, table), nil
}

func scanRequest(row rowScanner, kind model.RequestKind) (*model.ApprovalRequest, error) {
	req := model.ApprovalRequest{Kind: kind}
	if err := row.Scan(&req.ID, &req.UserID, &req.PracticeID, &req.CurrentRole, &req.RequestedRole,
		&req.Status, &req.ReviewedBy, &req.RejectionReason, &req.RequestedAt); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RequestRepository) Create(ctx context.Context, req *model.ApprovalRequest) error {
	if req.Status == "" {
		req.Status = model.RequestPending
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	switch req.Kind {
	case model.RequestRegistration:
		return r.DB.QueryRowContext(ctx, `
			INSERT INTO user_registration_requests (user_id, practice_id, requested_role, status, requested_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			req.UserID, req.PracticeID, req.RequestedRole, req.Status, req.RequestedAt).Scan(&req.ID)
	case model.RequestRoleChange:
		return r.DB.QueryRowContext(ctx, `
			INSERT INTO role_change_requests (user_id, practice_id, from_role, requested_role, status, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			req.UserID, req.PracticeID, req.CurrentRole, req.RequestedRole, req.Status, req.RequestedAt).Scan(&req.ID)
	default:
		return fmt.Errorf("unknown request kind %q", req.Kind)
	}
}

func (r *RequestRepository) GetByID(ctx context.Context, kind model.RequestKind, id int64) (*model.ApprovalRequest, error) {
	query, err := requestSelect(kind)
	if err != nil {
		return nil, err
	}
	req, err := scanRequest(r.DB.QueryRowContext(ctx, query+` WHERE id=$1`, id), kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewRequestNotFound(id)
		}
		return nil, err
	}
	return req, nil
}

func (r *RequestRepository) HasPending(ctx context.Context, kind model.RequestKind, userID int64) (bool, error) {
	table, _, err := requestSource(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = r.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE user_id=$1 AND status=$2)`, table),
		userID, model.RequestPending).Scan(&exists)
	return exists, err
}

// List returns matching requests of both kinds, newest first.
func (r *RequestRepository) List(ctx context.Context, filter RequestFilter) ([]model.ApprovalRequest, error) {
	out := []model.ApprovalRequest{}
	for _, kind := range []model.RequestKind{model.RequestRegistration, model.RequestRoleChange} {
		reqs, err := r.list(ctx, kind, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, reqs...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (r *RequestRepository) list(ctx context.Context, kind model.RequestKind, filter RequestFilter) ([]model.ApprovalRequest, error) {
	query, err := requestSelect(kind)
	if err != nil {
		return nil, err
	}
	query += ` WHERE 1=1`
	args := []any{}
	argPos := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.UserID != 0 {
		query += fmt.Sprintf(" AND user_id=$%d", argPos)
		args = append(args, filter.UserID)
		argPos++
	}
	if filter.PracticeID != 0 {
		query += fmt.Sprintf(" AND practice_id=$%d", argPos)
		args = append(args, filter.PracticeID)
		argPos++
	}
	if filter.RequestedRole != model.RoleUnassigned {
		query += fmt.Sprintf(" AND requested_role=$%d", argPos)
		args = append(args, string(filter.RequestedRole))
	}
	query += ` ORDER BY requested_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ApprovalRequest{}
	for rows.Next() {
		req, err := scanRequest(rows, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// Review settles a pending request; false means it was no longer pending.
func (r *RequestRepository) Review(ctx context.Context, kind model.RequestKind, id int64, status model.RequestStatus, reviewerID int64, reason *string) (bool, error) {
	table, _, err := requestSource(kind)
	if err != nil {
		return false, err
	}
	res, err := r.DB.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status=$1, reviewed_by=$2, rejection_reason=$3 WHERE id=$4 AND status=$5`, table),
		status, reviewerID, reason, id, model.RequestPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var _ RequestRepositoryInterface = (*RequestRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/practicehub-backend/internal/db"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

// insertBatchSize keeps a multi-row insert well under Postgres' parameter limit.
const insertBatchSize = 1000

type UserMessageRepositoryInterface interface {
	BulkCreate(ctx context.Context, msgs []model.UserMessage) error
	ListForUser(ctx context.Context, userID int64) ([]model.UserMessage, error)
	MarkRead(ctx context.Context, id, userID int64, at time.Time) error
	SoftDelete(ctx context.Context, id, userID int64, at time.Time) error
}

type UserMessageRepository struct {
	DB db.DBTX
}

// BulkCreate inserts every message with multi-row INSERTs. It must run in the
// caller's transaction so the whole batch lands or none of it does.
func (r *UserMessageRepository) BulkCreate(ctx context.Context, msgs []model.UserMessage) error {
	for start := 0; start < len(msgs); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		batch := msgs[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO user_messages (user_id, campaign_id, content, created_at) VALUES `)
		args := make([]any, 0, len(batch)*4)
		for i, m := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			p := i * 4
			fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", p+1, p+2, p+3, p+4)
			args = append(args, m.UserID, m.CampaignID, m.Content, m.CreatedAt)
		}
		if _, err := r.DB.ExecContext(ctx, sb.String(), args...); err != nil {
			return fmt.Errorf("insert user messages: %w", err)
		}
	}
	return nil
}

func (r *UserMessageRepository) ListForUser(ctx context.Context, userID int64) ([]model.UserMessage, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT m.id, m.user_id, m.campaign_id, c.name, m.content, m.is_read, m.is_deleted, m.read_at, m.deleted_at, m.created_at
		FROM user_messages m
		JOIN campaigns c ON c.id = m.campaign_id
		WHERE m.user_id=$1 AND m.is_deleted=FALSE
		ORDER BY m.created_at DESC, m.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.UserMessage{}
	for rows.Next() {
		var m model.UserMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.CampaignID, &m.CampaignName, &m.Content,
			&m.IsRead, &m.IsDeleted, &m.ReadAt, &m.DeletedAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MarkRead keeps the first read_at on repeated calls.
func (r *UserMessageRepository) MarkRead(ctx context.Context, id, userID int64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE user_messages
		SET is_read=TRUE, read_at=COALESCE(read_at, $1)
		WHERE id=$2 AND user_id=$3 AND is_deleted=FALSE`, at, id, userID)
	return ownedRowUpdated(res, err, id)
}

func (r *UserMessageRepository) SoftDelete(ctx context.Context, id, userID int64, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE user_messages
		SET is_deleted=TRUE, deleted_at=$1
		WHERE id=$2 AND user_id=$3 AND is_deleted=FALSE`, at, id, userID)
	return ownedRowUpdated(res, err, id)
}

func ownedRowUpdated(res sql.Result, err error, id int64) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return appErrors.NewMessageNotFound(id)
	}
	return nil
}

var _ UserMessageRepositoryInterface = (*UserMessageRepository)(nil)

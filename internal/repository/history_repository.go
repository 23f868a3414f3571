package repository

import (
	"context"

	"github.com/unclebandit/practicehub-backend/internal/db"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

// HistoryRepositoryInterface is append-only: rows are never updated and only
// disappear with their campaign.
type HistoryRepositoryInterface interface {
	Record(ctx context.Context, h *model.CampaignHistory) error
	ListForCampaign(ctx context.Context, campaignID int64) ([]model.CampaignHistory, error)
}

type HistoryRepository struct {
	DB db.DBTX
}

func (r *HistoryRepository) Record(ctx context.Context, h *model.CampaignHistory) error {
	query := `
		INSERT INTO campaign_history (campaign_id, action, details, performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.DB.QueryRowContext(ctx, query, h.CampaignID, h.Action, h.Details, h.PerformedBy, h.CreatedAt).Scan(&h.ID)
}

func (r *HistoryRepository) ListForCampaign(ctx context.Context, campaignID int64) ([]model.CampaignHistory, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, campaign_id, action, details, performed_by, created_at
		FROM campaign_history
		WHERE campaign_id=$1
		ORDER BY created_at DESC, id DESC`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.CampaignHistory{}
	for rows.Next() {
		var h model.CampaignHistory
		if err := rows.Scan(&h.ID, &h.CampaignID, &h.Action, &h.Details, &h.PerformedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

var _ HistoryRepositoryInterface = (*HistoryRepository)(nil)

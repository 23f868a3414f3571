// internal/model/user_message.go
package model

import "time"

type UserMessage struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	CampaignID   int64      `db:"campaign_id" json:"campaign_id"`
	CampaignName string     `db:"campaign_name" json:"campaign_name,omitempty"`
	Content      string     `db:"content" json:"content"`
	IsRead       bool       `db:"is_read" json:"is_read"`
	IsDeleted    bool       `db:"is_deleted" json:"-"`
	ReadAt       *time.Time `db:"read_at" json:"read_at,omitempty"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// internal/model/campaign.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type CampaignType string

const (
	CampaignTypeDefault CampaignType = "DEFAULT"
	CampaignTypeCustom  CampaignType = "CUSTOM"
)

type DeliveryType string

const (
	DeliveryImmediate DeliveryType = "IMMEDIATE"
	DeliveryScheduled DeliveryType = "SCHEDULED"
)

func (d DeliveryType) Valid() bool {
	return d == DeliveryImmediate || d == DeliveryScheduled
}

type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "DRAFT"
	CampaignInProgress CampaignStatus = "IN_PROGRESS"
	CampaignCompleted  CampaignStatus = "COMPLETED"
	CampaignFailed     CampaignStatus = "FAILED"
)

// CanTransitionTo encodes the delivery state machine:
// DRAFT -> IN_PROGRESS -> COMPLETED | FAILED.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case CampaignDraft:
		return next == CampaignInProgress
	case CampaignInProgress:
		return next == CampaignCompleted || next == CampaignFailed
	case CampaignCompleted, CampaignFailed:
		return false
	default:
		return false
	}
}

func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignFailed
}

type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "PENDING"
	ScheduleProcessed ScheduleStatus = "PROCESSED"
	ScheduleFailed    ScheduleStatus = "FAILED"
)

// History actions.
const (
	ActionCreated = "CREATED"
	ActionUpdated = "UPDATED"
	ActionSent    = "SENT"
	ActionFailed  = "FAILED"
	ActionDeleted = "DELETED"
)

// Roles is stored as a JSON array and treated as a set when targeting.
type Roles []Role

func (r Roles) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Role(r))
}

func (r *Roles) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Roles{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("roles: unsupported scan type %T", src)
	}
	var out []Role
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("roles: %w", err)
	}
	*r = out
	return nil
}

func (r Roles) Contains(role Role) bool {
	for _, candidate := range r {
		if candidate == role {
			return true
		}
	}
	return false
}

type Campaign struct {
	ID           int64          `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Content      string         `db:"content" json:"content"`
	Description  *string        `db:"description" json:"description,omitempty"`
	CampaignType CampaignType   `db:"campaign_type" json:"campaign_type"`
	DeliveryType DeliveryType   `db:"delivery_type" json:"delivery_type"`
	Status       CampaignStatus `db:"status" json:"status"`
	CreatedBy    int64          `db:"created_by" json:"created_by"`
	TargetRoles  Roles          `db:"target_roles" json:"target_roles"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    *time.Time     `db:"updated_at" json:"updated_at,omitempty"`

	PracticeAssociations []CampaignPracticeAssociation `json:"practice_associations"`
	Schedules            []CampaignSchedule            `json:"schedules"`
}

// PracticeIDs returns the distinct practice ids the campaign is associated with.
func (c *Campaign) PracticeIDs() []int64 {
	seen := make(map[int64]struct{}, len(c.PracticeAssociations))
	ids := make([]int64, 0, len(c.PracticeAssociations))
	for _, a := range c.PracticeAssociations {
		if _, ok := seen[a.PracticeID]; ok {
			continue
		}
		seen[a.PracticeID] = struct{}{}
		ids = append(ids, a.PracticeID)
	}
	return ids
}

type CampaignPracticeAssociation struct {
	ID           int64     `db:"id" json:"id"`
	CampaignID   int64     `db:"campaign_id" json:"campaign_id"`
	PracticeID   int64     `db:"practice_id" json:"practice_id"`
	PracticeName string    `db:"practice_name" json:"practice_name,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type CampaignSchedule struct {
	ID            int64          `db:"id" json:"id"`
	CampaignID    int64          `db:"campaign_id" json:"campaign_id"`
	ScheduledDate time.Time      `db:"scheduled_date" json:"scheduled_date"`
	Status        ScheduleStatus `db:"status" json:"status"`
	ExecutionTime *time.Time     `db:"execution_time" json:"execution_time,omitempty"`
	ErrorMessage  *string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

type CampaignHistory struct {
	ID          int64     `db:"id" json:"id"`
	CampaignID  int64     `db:"campaign_id" json:"campaign_id"`
	Action      string    `db:"action" json:"action"`
	Details     string    `db:"details" json:"details"`
	PerformedBy int64     `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DeliveryStats counts inbox rows produced by a campaign.
type DeliveryStats struct {
	Recipients int `json:"recipients"`
	Read       int `json:"read"`
	Deleted    int `json:"deleted"`
}

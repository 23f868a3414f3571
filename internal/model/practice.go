package model

import "time"

type Practice struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

type PracticeUserAssignment struct {
	ID         int64     `db:"id" json:"id"`
	PracticeID int64     `db:"practice_id" json:"practice_id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// PracticePatch carries the fields an update may change; nil means untouched.
type PracticePatch struct {
	Name        *string
	Description *string
	IsActive    *bool
}

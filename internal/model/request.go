package model

import "time"

type RequestKind string

const (
	RequestRegistration RequestKind = "registration"
	RequestRoleChange   RequestKind = "role_change"
)

func (k RequestKind) Valid() bool {
	return k == RequestRegistration || k == RequestRoleChange
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestApproved RequestStatus = "APPROVED"
	RequestRejected RequestStatus = "REJECTED"
)

// ApprovalRequest covers both registration and role-change requests; they
// share every reviewed field and differ only in their table and CurrentRole.
type ApprovalRequest struct {
	ID              int64         `db:"id" json:"id"`
	Kind            RequestKind   `json:"request_type"`
	UserID          int64         `db:"user_id" json:"user_id"`
	PracticeID      int64         `db:"practice_id" json:"practice_id"`
	CurrentRole     Role          `db:"from_role" json:"current_role,omitempty"`
	RequestedRole   Role          `db:"requested_role" json:"requested_role"`
	Status          RequestStatus `db:"status" json:"status"`
	ReviewedBy      *int64        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	RequestedAt     time.Time     `db:"requested_at" json:"requested_at"`
}

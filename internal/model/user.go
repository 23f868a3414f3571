// internal/model/user.go
package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Role is a closed set; RoleUnassigned is the state of a user whose
// registration has not been approved yet and maps to NULL in storage.
type Role string

const (
	RoleUnassigned   Role = ""
	RoleSuperAdmin   Role = "SUPER_ADMIN"
	RoleAdmin        Role = "ADMIN"
	RolePracticeUser Role = "PRACTICE_USER"
)

var assignableRoles = []Role{RoleSuperAdmin, RoleAdmin, RolePracticeUser}

// ParseRole accepts only assignable roles.
func ParseRole(s string) (Role, error) {
	for _, r := range assignableRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return RoleUnassigned, fmt.Errorf("unknown role %q", s)
}

func (r Role) Assigned() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RolePracticeUser:
		return true
	default:
		return false
	}
}

func (r Role) Value() (driver.Value, error) {
	if r == RoleUnassigned {
		return nil, nil
	}
	return string(r), nil
}

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = RoleUnassigned
	case []byte:
		*r = Role(v)
	case string:
		*r = Role(v)
	default:
		return fmt.Errorf("role: unsupported scan type %T", src)
	}
	return nil
}

type User struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	FullName     string     `db:"full_name" json:"full_name"`
	PasswordHash string     `db:"password" json:"-"`
	Role         Role       `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	IsApproved   bool       `db:"is_approved" json:"is_approved"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Eligible reports whether the user may receive campaign messages.
func (u *User) Eligible() bool {
	return u.IsActive && u.IsApproved
}

// Actor is the authenticated caller threaded explicitly into every service call.
type Actor struct {
	ID       int64
	Role     Role
	IsActive bool
}

func (a Actor) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role, IsActive: u.IsActive}
}

package tenancy

import (
	"errors"
	"time"
)

// MembershipKind distinguishes the profile a membership row represents.
type MembershipKind string

const (
	KindAdmin   MembershipKind = "ADMIN"
	KindTeacher MembershipKind = "TEACHER"
	KindStudent MembershipKind = "STUDENT"
)

// PositionPrincipal marks the school's designated full-access staff member.
// At most one active membership per school carries it.
const PositionPrincipal = "PRINCIPAL"

// ErrAdminLimitReached signals the subscription's admin quota is full. The
// wrapped message names the tier and the limit.
var ErrAdminLimitReached = errors.New("tenancy: admin limit reached")

// Membership relates a user to a school through a role-specific profile.
// Students keep their rows after leaving a school (active=false, EndedAt set)
// so transcript reads keep working; staff rows are ended on removal and no
// longer authorize anything.
type Membership struct {
	ID        int64          `json:"id"`
	SchoolID  int64          `json:"school_id"`
	UserID    int64          `json:"user_id"`
	Kind      MembershipKind `json:"kind"`
	Position  string         `json:"position,omitempty"`
	Active    bool           `json:"active"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
}

// IsStaff reports whether the membership belongs to the permission matrix's
// audience (admins and teachers).
func (m Membership) IsStaff() bool {
	return m.Kind == KindAdmin || m.Kind == KindTeacher
}

// CreateMembershipInput carries the fields for a new membership row.
type CreateMembershipInput struct {
	SchoolID int64
	UserID   int64
	Kind     MembershipKind
	Position string
}

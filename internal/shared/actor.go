package shared

import "strings"

// Role identifies the platform-level role carried in a token.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleSchoolAdmin Role = "SCHOOL_ADMIN"
	RoleTeacher     Role = "TEACHER"
	RoleStudent     Role = "STUDENT"
)

// ParseRole normalizes a raw role claim. Unknown values return false.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	case RoleSchoolAdmin:
		return RoleSchoolAdmin, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// IsStaff reports whether the role is subject to the permission matrix.
func (r Role) IsStaff() bool {
	return r == RoleSchoolAdmin || r == RoleTeacher
}

// Actor is the identity resolved from a verified bearer token. It is
// reconstructed per request and never persisted.
type Actor struct {
	UserID   int64
	Role     Role
	SchoolID int64 // 0 when the token carries no school claim
	Email    string
}

// IsSuperAdmin reports whether the actor bypasses tenant scoping.
func (a Actor) IsSuperAdmin() bool {
	return a.Role == RoleSuperAdmin
}

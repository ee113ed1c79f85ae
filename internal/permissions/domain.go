package permissions

import (
	"errors"
	"fmt"
)

// ErrInvalidGrant marks a grant pair that names an unknown resource or
// access type.
var ErrInvalidGrant = errors.New("permissions: invalid grant")

// Resource is a data domain staff permissions are scoped to.
type Resource string

const (
	ResourceStudents      Resource = "STUDENTS"
	ResourceGrades        Resource = "GRADES"
	ResourceTimetables    Resource = "TIMETABLES"
	ResourceSessions      Resource = "SESSIONS"
	ResourceAttendance    Resource = "ATTENDANCE"
	ResourceAnnouncements Resource = "ANNOUNCEMENTS"
	ResourceFinances      Resource = "FINANCES"
	ResourceReports       Resource = "REPORTS"
	ResourceStaff         Resource = "STAFF"
)

// Resources lists every resource in catalog order.
func Resources() []Resource {
	return []Resource{
		ResourceStudents,
		ResourceGrades,
		ResourceTimetables,
		ResourceSessions,
		ResourceAttendance,
		ResourceAnnouncements,
		ResourceFinances,
		ResourceReports,
		ResourceStaff,
	}
}

// AccessType is the privilege level of a grant. Levels are discrete: WRITE
// does not imply READ, each required level must be granted explicitly.
type AccessType string

const (
	AccessRead  AccessType = "READ"
	AccessWrite AccessType = "WRITE"
	AccessAdmin AccessType = "ADMIN"
)

// AccessTypes lists every access type.
func AccessTypes() []AccessType {
	return []AccessType{AccessRead, AccessWrite, AccessAdmin}
}

// ParseResource validates a raw resource name.
func ParseResource(raw string) (Resource, bool) {
	for _, r := range Resources() {
		if string(r) == raw {
			return r, true
		}
	}
	return "", false
}

// ParseAccessType validates a raw access type.
func ParseAccessType(raw string) (AccessType, bool) {
	for _, t := range AccessTypes() {
		if string(t) == raw {
			return t, true
		}
	}
	return "", false
}

// GrantPair is one (resource, type) authorization.
type GrantPair struct {
	Resource Resource   `json:"resource"`
	Type     AccessType `json:"access_type"`
}

func (p GrantPair) key() string {
	return string(p.Resource) + ":" + string(p.Type)
}

// NormalizePairs validates pairs against the catalog and drops duplicates,
// preserving input order.
func NormalizePairs(pairs []GrantPair) ([]GrantPair, error) {
	seen := make(map[string]struct{}, len(pairs))
	normalized := make([]GrantPair, 0, len(pairs))
	for _, pair := range pairs {
		if _, ok := ParseResource(string(pair.Resource)); !ok {
			return nil, fmt.Errorf("%w: unknown resource %q", ErrInvalidGrant, pair.Resource)
		}
		if _, ok := ParseAccessType(string(pair.Type)); !ok {
			return nil, fmt.Errorf("%w: unknown access type %q", ErrInvalidGrant, pair.Type)
		}
		if _, dup := seen[pair.key()]; dup {
			continue
		}
		seen[pair.key()] = struct{}{}
		normalized = append(normalized, pair)
	}
	return normalized, nil
}

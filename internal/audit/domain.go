package audit

import "time"

// Event is a security-relevant occurrence worth keeping: cross-tenant
// denials, grant replacements, tier changes, credit spends.
type Event struct {
	ID       int64          `json:"id"`
	EventID  string         `json:"event_id"`
	ActorID  int64          `json:"actor_id"`
	SchoolID int64          `json:"school_id"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Reason   string         `json:"reason,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"occurred_at"`
}

// Filter narrows the timeline query.
type Filter struct {
	SchoolID int64
	Action   string
	Reason   string
	Limit    int
	Offset   int
}

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository writes and reads the audit_events table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record persists the event. Callers treat this as best-effort; a failed
// insert must never turn an authorization decision around.
func (r *Repository) Record(ctx context.Context, event Event) error {
	if r == nil {
		return errors.New("audit: repository not initialised")
	}
	if event.Action == "" || event.Entity == "" || event.EntityID == "" {
		return errors.New("audit: event requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("audit: marshal meta: %w", err)
	}
	eventID := event.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	occurredAt := event.At
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO audit_events (event_id, actor_id, school_id, action, entity, entity_id, reason, meta, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		eventID, event.ActorID, event.SchoolID, event.Action, event.Entity, event.EntityID, event.Reason, metaJSON, occurredAt)
	if err != nil {
		return fmt.Errorf("audit: record event: %w", err)
	}
	return nil
}

// List returns a page of events, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Event, int, error) {
	where := `WHERE ($1 = 0 OR school_id = $1) AND ($2 = '' OR action = $2) AND ($3 = '' OR reason = $3)`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_events `+where,
		filter.SchoolID, filter.Action, filter.Reason).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count events: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT id, event_id, actor_id, school_id, action, entity, entity_id, reason, meta, occurred_at
		FROM audit_events `+where+`
		ORDER BY occurred_at DESC, id DESC
		LIMIT $4 OFFSET $5`,
		filter.SchoolID, filter.Action, filter.Reason, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var (
			event Event
			meta  []byte
		)
		if err := rows.Scan(&event.ID, &event.EventID, &event.ActorID, &event.SchoolID, &event.Action, &event.Entity, &event.EntityID, &event.Reason, &meta, &event.At); err != nil {
			return nil, 0, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &event.Meta); err != nil {
				return nil, 0, fmt.Errorf("audit: unmarshal meta: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

package permissions

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arunika-edu/arunika-edu/internal/platform/db"
)

// Store provides PostgreSQL backed persistence for permission grants.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListGrants returns the staff member's grant set.
func (s *Store) ListGrants(ctx context.Context, schoolID, staffID int64) ([]GrantPair, error) {
	rows, err := s.pool.Query(ctx, `SELECT resource, access_type FROM permission_grants
		WHERE school_id = $1 AND staff_id = $2
		ORDER BY resource, access_type`, schoolID, staffID)
	if err != nil {
		return nil, fmt.Errorf("permissions: list grants: %w", err)
	}
	defer rows.Close()
	var pairs []GrantPair
	for rows.Next() {
		var pair GrantPair
		if err := rows.Scan(&pair.Resource, &pair.Type); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// ReplaceGrants swaps the staff member's whole grant set in one transaction.
// Readers never observe a state where old and new grants coexist.
func (s *Store) ReplaceGrants(ctx context.Context, schoolID, staffID int64, pairs []GrantPair) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM permission_grants WHERE school_id = $1 AND staff_id = $2`, schoolID, staffID); err != nil {
			return err
		}
		for _, pair := range pairs {
			if _, err := tx.Exec(ctx, `INSERT INTO permission_grants (school_id, staff_id, resource, access_type)
				VALUES ($1, $2, $3, $4)`, schoolID, staffID, pair.Resource, pair.Type); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("permissions: replace grants: %w", err)
	}
	return nil
}

// RemoveGrants deletes the staff member's grant set.
func (s *Store) RemoveGrants(ctx context.Context, schoolID, staffID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM permission_grants WHERE school_id = $1 AND staff_id = $2`, schoolID, staffID); err != nil {
		return fmt.Errorf("permissions: remove grants: %w", err)
	}
	return nil
}

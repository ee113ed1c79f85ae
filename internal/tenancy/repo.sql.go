package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Repository provides PostgreSQL backed persistence for memberships.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const membershipColumns = `id, school_id, user_id, kind, position, active, started_at, ended_at`

func scanMembership(row pgx.Row) (Membership, error) {
	var m Membership
	if err := row.Scan(&m.ID, &m.SchoolID, &m.UserID, &m.Kind, &m.Position, &m.Active, &m.StartedAt, &m.EndedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, shared.ErrNotFound
		}
		return Membership{}, err
	}
	return m, nil
}

// GetMembership returns the user's membership in the school, preferring an
// active row and otherwise the most recent historical one.
func (r *Repository) GetMembership(ctx context.Context, schoolID, userID int64) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE school_id = $1 AND user_id = $2
		ORDER BY active DESC, started_at DESC LIMIT 1`, schoolID, userID)
	return scanMembership(row)
}

// LatestEnrollment returns a student's most recent enrollment, preferring an
// active one. Used as the legacy-token fallback for students.
func (r *Repository) LatestEnrollment(ctx context.Context, userID int64) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE user_id = $1 AND kind = $2
		ORDER BY active DESC, started_at DESC LIMIT 1`, userID, KindStudent)
	return scanMembership(row)
}

// ActiveStaffMembership returns the user's current staff membership. Used as
// the legacy-token fallback for admins and teachers.
func (r *Repository) ActiveStaffMembership(ctx context.Context, userID int64) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE user_id = $1 AND kind IN ($2, $3) AND active
		ORDER BY started_at DESC LIMIT 1`, userID, KindAdmin, KindTeacher)
	return scanMembership(row)
}

// StaffMembership returns the user's active staff row in the school. Claim
// verification: ended staff rows no longer authorize anything.
func (r *Repository) StaffMembership(ctx context.Context, schoolID, userID int64) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE school_id = $1 AND user_id = $2 AND kind IN ($3, $4) AND active
		ORDER BY started_at DESC LIMIT 1`, schoolID, userID, KindAdmin, KindTeacher)
	return scanMembership(row)
}

// StudentEnrollment returns the student's enrollment in the school, active or
// historical. Historical rows keep transcript reads working after the student
// leaves.
func (r *Repository) StudentEnrollment(ctx context.Context, schoolID, userID int64) (Membership, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE school_id = $1 AND user_id = $2 AND kind = $3
		ORDER BY active DESC, started_at DESC LIMIT 1`, schoolID, userID, KindStudent)
	return scanMembership(row)
}

// IsPrincipal reports whether the user holds the school's principal position
// on an active membership.
func (r *Repository) IsPrincipal(ctx context.Context, schoolID, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM memberships
		WHERE school_id = $1 AND user_id = $2 AND position = $3 AND active
	)`, schoolID, userID, PositionPrincipal).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("tenancy: principal lookup: %w", err)
	}
	return exists, nil
}

// CountActiveAdmins counts the school's active admin memberships for the
// subscription capacity check.
func (r *Repository) CountActiveAdmins(ctx context.Context, schoolID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memberships
		WHERE school_id = $1 AND kind = $2 AND active`, schoolID, KindAdmin).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("tenancy: count admins: %w", err)
	}
	return count, nil
}

// CreateMembership inserts a membership row. A second active row for the same
// (school, user, kind) maps to httpx.ErrDuplicate.
func (r *Repository) CreateMembership(ctx context.Context, input CreateMembershipInput) (Membership, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO memberships (school_id, user_id, kind, position, active, started_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		RETURNING `+membershipColumns,
		input.SchoolID, input.UserID, input.Kind, input.Position)
	m, err := scanMembership(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Membership{}, httpx.ErrDuplicate
		}
		return Membership{}, fmt.Errorf("tenancy: create membership: %w", err)
	}
	return m, nil
}

// EndMembership deactivates the user's active memberships in the school and
// stamps ended_at. Returns shared.ErrNotFound when nothing was active.
func (r *Repository) EndMembership(ctx context.Context, schoolID, userID int64, endedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE memberships
		SET active = FALSE, ended_at = $3
		WHERE school_id = $1 AND user_id = $2 AND active`, schoolID, userID, endedAt)
	if err != nil {
		return fmt.Errorf("tenancy: end membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListBySchool returns a page of the school's memberships, newest first.
func (r *Repository) ListBySchool(ctx context.Context, schoolID int64, limit, offset int) ([]Membership, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memberships WHERE school_id = $1`, schoolID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("tenancy: count memberships: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE school_id = $1
		ORDER BY started_at DESC, id DESC
		LIMIT $2 OFFSET $3`, schoolID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("tenancy: list memberships: %w", err)
	}
	defer rows.Close()
	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.SchoolID, &m.UserID, &m.Kind, &m.Position, &m.Active, &m.StartedAt, &m.EndedAt); err != nil {
			return nil, 0, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

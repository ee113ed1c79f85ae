package schools

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Repository provides PostgreSQL backed persistence for school records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const schoolColumns = `id, name, slug, address, active, created_at, updated_at`

func scanSchool(row pgx.Row) (School, error) {
	var s School
	if err := row.Scan(&s.ID, &s.Name, &s.Slug, &s.Address, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return School{}, shared.ErrNotFound
		}
		return School{}, err
	}
	return s, nil
}

// Create inserts a school row. A taken slug maps to httpx.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, school School) (School, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO schools (name, slug, address, active, created_at, updated_at)
		VALUES ($1, $2, $3, TRUE, NOW(), NOW())
		RETURNING `+schoolColumns,
		school.Name, school.Slug, school.Address)
	created, err := scanSchool(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return School{}, httpx.ErrDuplicate
		}
		return School{}, fmt.Errorf("schools: create: %w", err)
	}
	return created, nil
}

// Get returns the school by id.
func (r *Repository) Get(ctx context.Context, id int64) (School, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id)
	return scanSchool(row)
}

// List returns a page of schools ordered by name.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]School, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schools`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("schools: count: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+schoolColumns+` FROM schools
		ORDER BY name, id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("schools: list: %w", err)
	}
	defer rows.Close()
	var out []School
	for rows.Next() {
		var s School
		if err := rows.Scan(&s.ID, &s.Name, &s.Slug, &s.Address, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

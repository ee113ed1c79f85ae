package schools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// ErrInvalidName signals a school name that cannot produce a usable slug.
var ErrInvalidName = errors.New("schools: name must contain letters or digits")

// ServiceRepository is the persistence surface the service needs.
type ServiceRepository interface {
	Create(ctx context.Context, school School) (School, error)
	Get(ctx context.Context, id int64) (School, error)
	List(ctx context.Context, limit, offset int) ([]School, int, error)
}

// AuditPort records school lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, event audit.Event) error
}

// Service owns tenant record lifecycle.
type Service struct {
	repo  ServiceRepository
	audit AuditPort
}

// NewService builds a Service. The audit port may be nil.
func NewService(repo ServiceRepository, auditor AuditPort) *Service {
	return &Service{repo: repo, audit: auditor}
}

// CreateInput carries a new tenant request.
type CreateInput struct {
	Name    string
	Address string
	ActorID int64
}

// Create registers a new school. The slug is derived from the name; a name
// that folds down to nothing is rejected.
func (s *Service) Create(ctx context.Context, input CreateInput) (School, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return School{}, ErrInvalidName
	}
	slug := Slugify(name)
	if slug == "" {
		return School{}, fmt.Errorf("%w: %q", ErrInvalidName, input.Name)
	}

	created, err := s.repo.Create(ctx, School{Name: name, Slug: slug, Address: strings.TrimSpace(input.Address)})
	if err != nil {
		return School{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Event{
			ActorID:  input.ActorID,
			SchoolID: created.ID,
			Action:   "schools:created",
			Entity:   "school",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"slug": created.Slug},
		})
	}
	return created, nil
}

// Get returns one school.
func (s *Service) Get(ctx context.Context, id int64) (School, error) {
	if id <= 0 {
		return School{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns a page of schools.
func (s *Service) List(ctx context.Context, page, perPage int) ([]School, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	out, total, err := s.repo.List(ctx, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(pagination.Page, pagination.PerPage, total), nil
}

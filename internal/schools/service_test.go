package schools

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

type memorySchoolRepo struct {
	mu      sync.Mutex
	rows    []School
	nextID  int64
	listErr error
}

func (m *memorySchoolRepo) Create(_ context.Context, school School) (School, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Slug == school.Slug {
			return School{}, httpx.ErrDuplicate
		}
	}
	m.nextID++
	school.ID = m.nextID
	school.Active = true
	school.CreatedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	school.UpdatedAt = school.CreatedAt
	m.rows = append(m.rows, school)
	return school, nil
}

func (m *memorySchoolRepo) Get(_ context.Context, id int64) (School, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.ID == id {
			return existing, nil
		}
	}
	return School{}, shared.ErrNotFound
}

func (m *memorySchoolRepo) List(_ context.Context, limit, offset int) ([]School, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	total := len(m.rows)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]School, end-offset)
	copy(page, m.rows[offset:end])
	return page, total, nil
}

type memoryAudit struct {
	events []audit.Event
}

func (m *memoryAudit) Record(_ context.Context, event audit.Event) error {
	m.events = append(m.events, event)
	return nil
}

func TestServiceCreate(t *testing.T) {
	repo := &memorySchoolRepo{}
	auditor := &memoryAudit{}
	svc := NewService(repo, auditor)

	school, err := svc.Create(context.Background(), CreateInput{Name: "  SMA Pérmata Bangsa ", Address: "Jl. Merdeka 1", ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, "SMA Pérmata Bangsa", school.Name)
	require.Equal(t, "sma-permata-bangsa", school.Slug)
	require.True(t, school.Active)

	require.Len(t, auditor.events, 1)
	require.Equal(t, "schools:created", auditor.events[0].Action)
	require.Equal(t, school.ID, auditor.events[0].SchoolID)
}

func TestServiceCreate_RejectsUnusableName(t *testing.T) {
	svc := NewService(&memorySchoolRepo{}, nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "!!!"})
	require.ErrorIs(t, err, ErrInvalidName)

	_, err = svc.Create(context.Background(), CreateInput{Name: "   "})
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestServiceCreate_DuplicateSlug(t *testing.T) {
	repo := &memorySchoolRepo{}
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "Harapan Bangsa"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Name: "Harapan   Bangsa!"})
	require.ErrorIs(t, err, httpx.ErrDuplicate, "names that slug identically collide")
}

func TestServiceList(t *testing.T) {
	repo := &memorySchoolRepo{}
	svc := NewService(repo, nil)
	for _, name := range []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon"} {
		_, err := svc.Create(context.Background(), CreateInput{Name: name + " Academy"})
		require.NoError(t, err)
	}

	page, pagination, err := svc.List(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, 5, pagination.Total)
	require.Equal(t, 3, pagination.TotalPages)
}

func TestServiceGet_NotFound(t *testing.T) {
	svc := NewService(&memorySchoolRepo{}, nil)

	_, err := svc.Get(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

type memoryUserStore struct {
	mu     sync.Mutex
	rows   []User
	nextID int64
}

func (m *memoryUserStore) CreateUser(_ context.Context, user User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Email == user.Email {
			return User{}, httpx.ErrDuplicate
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.Active = true
	user.CreatedAt = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	user.UpdatedAt = user.CreatedAt
	m.rows = append(m.rows, user)
	return user, nil
}

func (m *memoryUserStore) GetUser(_ context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.ID == id {
			return existing, nil
		}
	}
	return User{}, shared.ErrNotFound
}

func (m *memoryUserStore) ListUsers(_ context.Context, limit, offset int) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := len(m.rows)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([]User, end-offset)
	copy(page, m.rows[offset:end])
	return page, total, nil
}

func (m *memoryUserStore) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.rows {
		if existing.ID == id {
			m.rows[i].Active = active
			return nil
		}
	}
	return shared.ErrNotFound
}

func (m *memoryUserStore) FindByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.Email == email {
			return existing, nil
		}
	}
	return User{}, shared.ErrNotFound
}

type memoryAudit struct {
	events []audit.Event
}

func (m *memoryAudit) Record(_ context.Context, event audit.Event) error {
	m.events = append(m.events, event)
	return nil
}

func TestServiceCreate(t *testing.T) {
	store := &memoryUserStore{}
	auditor := &memoryAudit{}
	svc := NewService(store, auditor)

	user, err := svc.Create(context.Background(), CreateInput{
		Email:    " Dewi@Arunika.ID ",
		Name:     "Dewi Lestari",
		Role:     "teacher",
		Password: "correct horse battery",
		ActorID:  1,
	})
	require.NoError(t, err)
	require.Equal(t, "dewi@arunika.id", user.Email)
	require.Equal(t, shared.RoleTeacher, user.Role)
	require.True(t, user.Active)

	require.NotEqual(t, "correct horse battery", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct horse battery")))

	require.Len(t, auditor.events, 1)
	require.Equal(t, "users:created", auditor.events[0].Action)
}

func TestServiceCreate_UnknownRole(t *testing.T) {
	svc := NewService(&memoryUserStore{}, nil)

	_, err := svc.Create(context.Background(), CreateInput{
		Email:    "x@arunika.id",
		Name:     "X",
		Role:     "JANITOR",
		Password: "irrelevant-password",
	})
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestServiceSetActive(t *testing.T) {
	store := &memoryUserStore{}
	auditor := &memoryAudit{}
	svc := NewService(store, auditor)

	created, err := svc.Create(context.Background(), CreateInput{
		Email:    "dewi@arunika.id",
		Name:     "Dewi Lestari",
		Role:     "SCHOOL_ADMIN",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	updated, err := svc.SetActive(context.Background(), 1, created.ID, false)
	require.NoError(t, err)
	require.False(t, updated.Active)
	require.Equal(t, "users:deactivated", auditor.events[len(auditor.events)-1].Action)

	updated, err = svc.SetActive(context.Background(), 1, created.ID, true)
	require.NoError(t, err)
	require.True(t, updated.Active)
	require.Equal(t, "users:activated", auditor.events[len(auditor.events)-1].Action)

	_, err = svc.SetActive(context.Background(), 1, 999, false)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

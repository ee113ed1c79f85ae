package users

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// ErrUnknownRole signals a role value outside the platform set.
var ErrUnknownRole = errors.New("users: unknown role")

// Store is the persistence surface the service needs.
type Store interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditPort records account lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, event audit.Event) error
}

// Service owns platform account lifecycle.
type Service struct {
	store Store
	audit AuditPort
}

// NewService builds a Service. The audit port may be nil.
func NewService(store Store, auditor AuditPort) *Service {
	return &Service{store: store, audit: auditor}
}

// CreateInput carries a new account request. Password arrives in clear and is
// hashed here; it is never stored or logged as-is.
type CreateInput struct {
	Email    string
	Name     string
	Role     string
	Password string
	ActorID  int64
}

// Create registers an account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	role, ok := shared.ParseRole(input.Role)
	if !ok {
		return User{}, ErrUnknownRole
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	created, err := s.store.CreateUser(ctx, User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         strings.TrimSpace(input.Name),
		Role:         role,
		PasswordHash: string(hash),
	})
	if err != nil {
		return User{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Event{
			ActorID:  input.ActorID,
			Action:   "users:created",
			Entity:   "user",
			EntityID: strconv.FormatInt(created.ID, 10),
			Meta:     map[string]any{"role": string(created.Role)},
		})
	}
	return created, nil
}

// List returns a page of accounts.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	pagination := shared.NewPagination(page, perPage, 0)
	out, total, err := s.store.ListUsers(ctx, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return out, shared.NewPagination(pagination.Page, pagination.PerPage, total), nil
}

// SetActive flips an account's active flag. Deactivation is the platform's
// kill switch for a compromised or departed account: the next token refresh
// fails and staff claim re-verification stops honoring memberships.
func (s *Service) SetActive(ctx context.Context, actorID, userID int64, active bool) (User, error) {
	if err := s.store.SetActive(ctx, userID, active); err != nil {
		return User{}, err
	}
	action := "users:deactivated"
	if active {
		action = "users:activated"
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, audit.Event{
			ActorID:  actorID,
			Action:   action,
			Entity:   "user",
			EntityID: strconv.FormatInt(userID, 10),
		})
	}
	return s.store.GetUser(ctx, userID)
}

package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/arunika-edu/arunika-edu/internal/identity"
	"github.com/arunika-edu/arunika-edu/internal/shared"
	"github.com/arunika-edu/arunika-edu/internal/tenancy"
	"github.com/arunika-edu/arunika-edu/internal/users"
)

// UserSource looks up platform accounts for credential and refresh checks.
type UserSource interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// MembershipSource resolves the school stamped into fresh tokens. Actors
// without a resolvable school get a token with no school claim; the tenancy
// guard then applies its membership fallback per request.
type MembershipSource interface {
	ActiveStaffMembership(ctx context.Context, userID int64) (tenancy.Membership, error)
	LatestEnrollment(ctx context.Context, userID int64) (tenancy.Membership, error)
}

// Service authenticates credentials and issues token pairs.
type Service struct {
	users       UserSource
	memberships MembershipSource
	tokens      *identity.TokenService
}

// NewService constructs a Service.
func NewService(userSource UserSource, memberships MembershipSource, tokens *identity.TokenService) *Service {
	return &Service{users: userSource, memberships: memberships, tokens: tokens}
}

// Login validates email/password credentials and mints a token pair. Every
// failure mode collapses into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (identity.TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return identity.TokenPair{}, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return identity.TokenPair{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return identity.TokenPair{}, shared.ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

// Refresh trades a refresh token for a fresh pair. The account must still
// exist and be active, so deactivating an account cuts its sessions off at
// the next refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (identity.TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, identity.KindRefresh)
	if err != nil {
		return identity.TokenPair{}, shared.ErrInvalidCredentials
	}
	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return identity.TokenPair{}, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return identity.TokenPair{}, shared.ErrInvalidCredentials
	}
	return s.issue(ctx, user)
}

func (s *Service) issue(ctx context.Context, user users.User) (identity.TokenPair, error) {
	actor := shared.Actor{UserID: user.ID, Role: user.Role, Email: user.Email}
	schoolID, err := s.resolveSchool(ctx, actor)
	switch {
	case err == nil:
		actor.SchoolID = schoolID
	case !errors.Is(err, shared.ErrNotFound):
		return identity.TokenPair{}, err
	}
	return s.tokens.Issue(actor)
}

// resolveSchool picks the school claim for a fresh token: staff carry their
// active staff membership, students their latest enrollment. Super-admins
// operate globally and carry none.
func (s *Service) resolveSchool(ctx context.Context, actor shared.Actor) (int64, error) {
	switch {
	case actor.Role.IsStaff():
		m, err := s.memberships.ActiveStaffMembership(ctx, actor.UserID)
		if err != nil {
			return 0, err
		}
		return m.SchoolID, nil
	case actor.Role == shared.RoleStudent:
		m, err := s.memberships.LatestEnrollment(ctx, actor.UserID)
		if err != nil {
			return 0, err
		}
		return m.SchoolID, nil
	}
	return 0, shared.ErrNotFound
}

package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService("test-secret", 15*time.Minute, 24*time.Hour, "arunika-test")
	require.NoError(t, err)
	return svc
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc := newTestTokenService(t)
	actor := shared.Actor{UserID: 41, Role: shared.RoleTeacher, SchoolID: 7, Email: "guru@sekolah.sch.id"}

	pair, err := svc.Issue(actor)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, int64((15 * time.Minute).Seconds()), pair.ExpiresIn)

	claims, err := svc.Verify(pair.AccessToken, KindAccess)
	require.NoError(t, err)

	got, err := claims.Actor()
	require.NoError(t, err)
	require.Equal(t, actor, got)
}

func TestTokenService_RejectsWrongKind(t *testing.T) {
	svc := newTestTokenService(t)
	pair, err := svc.Issue(shared.Actor{UserID: 1, Role: shared.RoleStudent, SchoolID: 3})
	require.NoError(t, err)

	_, err = svc.Verify(pair.RefreshToken, KindAccess)
	require.ErrorIs(t, err, ErrWrongTokenKind)

	_, err = svc.Verify(pair.AccessToken, KindRefresh)
	require.ErrorIs(t, err, ErrWrongTokenKind)
}

func TestTokenService_RejectsTamperedToken(t *testing.T) {
	svc := newTestTokenService(t)
	pair, err := svc.Issue(shared.Actor{UserID: 1, Role: shared.RoleSchoolAdmin, SchoolID: 3})
	require.NoError(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	_, err = svc.Verify(tampered, KindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsForeignSecret(t *testing.T) {
	svc := newTestTokenService(t)
	other, err := NewTokenService("another-secret", time.Minute, time.Hour, "arunika-test")
	require.NoError(t, err)

	pair, err := other.Issue(shared.Actor{UserID: 9, Role: shared.RoleSuperAdmin})
	require.NoError(t, err)

	_, err = svc.Verify(pair.AccessToken, KindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenService_RejectsExpiredToken(t *testing.T) {
	svc, err := NewTokenService("test-secret", time.Nanosecond, time.Nanosecond, "arunika-test")
	require.NoError(t, err)

	pair, err := svc.Issue(shared.Actor{UserID: 2, Role: shared.RoleTeacher, SchoolID: 1})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = svc.Verify(pair.AccessToken, KindAccess)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaims_ActorRejectsUnknownRole(t *testing.T) {
	claims := &Claims{UserID: 4, Role: "JANITOR"}
	_, err := claims.Actor()
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenService_Validation(t *testing.T) {
	_, err := NewTokenService("", time.Minute, time.Hour, "arunika")
	require.Error(t, err)

	_, err = NewTokenService("secret", 0, time.Hour, "arunika")
	require.Error(t, err)
}

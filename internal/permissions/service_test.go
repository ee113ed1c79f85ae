package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

type memoryAudit struct {
	events []audit.Event
}

func (m *memoryAudit) Record(_ context.Context, event audit.Event) error {
	m.events = append(m.events, event)
	return nil
}

func TestService_ReplaceGrants(t *testing.T) {
	store := newMemoryGrantStore()
	recorder := &memoryAudit{}
	service := NewService(store, nil, &stubPrincipals{}, recorder, nil)

	pairs := []GrantPair{
		{Resource: ResourceStudents, Type: AccessRead},
		{Resource: ResourceStudents, Type: AccessRead},
		{Resource: ResourceGrades, Type: AccessWrite},
	}
	normalized, err := service.ReplaceGrants(context.Background(), 1, 30, pairs, 99)
	require.NoError(t, err)
	require.Equal(t, []GrantPair{
		{Resource: ResourceStudents, Type: AccessRead},
		{Resource: ResourceGrades, Type: AccessWrite},
	}, normalized, "duplicates are dropped, order preserved")
	require.Equal(t, normalized, store.sets[grantSetKey(1, 30)])

	require.Len(t, recorder.events, 1)
	require.Equal(t, "permissions:grants_replaced", recorder.events[0].Action)
	require.Equal(t, int64(99), recorder.events[0].ActorID)
}

func TestService_ReplaceGrantsEmptySetRevokesAll(t *testing.T) {
	store := newMemoryGrantStore()
	store.sets[grantSetKey(1, 30)] = []GrantPair{{Resource: ResourceStudents, Type: AccessRead}}
	service := NewService(store, nil, &stubPrincipals{}, nil, nil)

	normalized, err := service.ReplaceGrants(context.Background(), 1, 30, nil, 99)
	require.NoError(t, err)
	require.Empty(t, normalized)
	require.Empty(t, store.sets[grantSetKey(1, 30)])
}

func TestService_ReplaceGrantsRefusesPrincipal(t *testing.T) {
	store := newMemoryGrantStore()
	service := NewService(store, nil, &stubPrincipals{principalUserID: 9}, nil, nil)

	_, err := service.ReplaceGrants(context.Background(), 1, 9, []GrantPair{{Resource: ResourceStudents, Type: AccessRead}}, 99)
	require.ErrorIs(t, err, shared.ErrPrincipalImmutable)
	require.Zero(t, store.replaceCalls, "principal grants are never written")
}

func TestService_ReplaceGrantsRejectsUnknownPairs(t *testing.T) {
	service := NewService(newMemoryGrantStore(), nil, &stubPrincipals{}, nil, nil)

	_, err := service.ReplaceGrants(context.Background(), 1, 30, []GrantPair{{Resource: "LIBRARY", Type: AccessRead}}, 99)
	require.ErrorIs(t, err, ErrInvalidGrant)

	_, err = service.ReplaceGrants(context.Background(), 1, 30, []GrantPair{{Resource: ResourceStudents, Type: "OWN"}}, 99)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestService_RemoveGrants(t *testing.T) {
	store := newMemoryGrantStore()
	store.sets[grantSetKey(1, 30)] = []GrantPair{{Resource: ResourceStudents, Type: AccessRead}}
	cache := newTestCache(t)
	cache.Set(context.Background(), 1, 30, store.sets[grantSetKey(1, 30)])
	recorder := &memoryAudit{}
	service := NewService(store, cache, &stubPrincipals{}, recorder, nil)

	require.NoError(t, service.RemoveGrants(context.Background(), 1, 30))
	require.NotContains(t, store.sets, grantSetKey(1, 30))

	_, cached := cache.Get(context.Background(), 1, 30)
	require.False(t, cached, "cached set is invalidated")

	require.Len(t, recorder.events, 1)
	require.Equal(t, "permissions:grants_removed", recorder.events[0].Action)
}

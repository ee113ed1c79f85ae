package permissions

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

type stubPrincipals struct {
	principalUserID int64
	err             error
	calls           int
}

func (s *stubPrincipals) IsPrincipal(_ context.Context, _, userID int64) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.principalUserID != 0 && userID == s.principalUserID, nil
}

type memoryGrantStore struct {
	sets         map[string][]GrantPair
	err          error
	listCalls    int
	replaceCalls int
}

func newMemoryGrantStore() *memoryGrantStore {
	return &memoryGrantStore{sets: make(map[string][]GrantPair)}
}

func grantSetKey(schoolID, staffID int64) string {
	return fmt.Sprintf("%d:%d", schoolID, staffID)
}

func (m *memoryGrantStore) ListGrants(_ context.Context, schoolID, staffID int64) ([]GrantPair, error) {
	m.listCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.sets[grantSetKey(schoolID, staffID)], nil
}

func (m *memoryGrantStore) ReplaceGrants(_ context.Context, schoolID, staffID int64, pairs []GrantPair) error {
	m.replaceCalls++
	if m.err != nil {
		return m.err
	}
	m.sets[grantSetKey(schoolID, staffID)] = pairs
	return nil
}

func (m *memoryGrantStore) RemoveGrants(_ context.Context, schoolID, staffID int64) error {
	if m.err != nil {
		return m.err
	}
	delete(m.sets, grantSetKey(schoolID, staffID))
	return nil
}

func newTestCache(t *testing.T) *GrantCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewGrantCache(client, time.Minute)
}

func TestResolver_PrincipalOverride(t *testing.T) {
	principals := &stubPrincipals{principalUserID: 9}
	store := newMemoryGrantStore()
	resolver := NewResolver(principals, store, nil)
	actor := shared.Actor{UserID: 9, Role: shared.RoleSchoolAdmin, SchoolID: 1}

	for _, resource := range Resources() {
		for _, accessType := range AccessTypes() {
			allowed, err := resolver.HasPermission(context.Background(), actor, 1, resource, accessType)
			require.NoError(t, err)
			require.True(t, allowed, "%s/%s", resource, accessType)
		}
	}
	require.Zero(t, store.listCalls, "principal access is not grant-backed")
	require.Empty(t, store.sets, "no stored grants exist for a principal")
}

func TestResolver_SuperAdminOverride(t *testing.T) {
	store := newMemoryGrantStore()
	resolver := NewResolver(&stubPrincipals{}, store, nil)
	actor := shared.Actor{UserID: 1, Role: shared.RoleSuperAdmin}

	allowed, err := resolver.HasPermission(context.Background(), actor, 4, ResourceFinances, AccessAdmin)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Zero(t, store.listCalls)
}

func TestResolver_GrantExactness(t *testing.T) {
	store := newMemoryGrantStore()
	store.sets[grantSetKey(1, 30)] = []GrantPair{{Resource: ResourceStudents, Type: AccessRead}}
	resolver := NewResolver(&stubPrincipals{}, store, nil)
	actor := shared.Actor{UserID: 30, Role: shared.RoleTeacher, SchoolID: 1}

	cases := []struct {
		resource Resource
		required AccessType
		want     bool
	}{
		{ResourceStudents, AccessRead, true},
		{ResourceStudents, AccessWrite, false},
		{ResourceStudents, AccessAdmin, false},
		{ResourceGrades, AccessRead, false},
	}
	for _, tc := range cases {
		allowed, err := resolver.HasPermission(context.Background(), actor, 1, tc.resource, tc.required)
		require.NoError(t, err)
		require.Equal(t, tc.want, allowed, "%s/%s", tc.resource, tc.required)
	}
}

func TestResolver_FailsClosedOnStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")

	t.Run("grant store", func(t *testing.T) {
		store := newMemoryGrantStore()
		store.err = storeErr
		resolver := NewResolver(&stubPrincipals{}, store, nil)

		allowed, err := resolver.HasPermission(context.Background(), shared.Actor{UserID: 2, Role: shared.RoleTeacher}, 1, ResourceStudents, AccessRead)
		require.ErrorIs(t, err, storeErr)
		require.False(t, allowed)
	})

	t.Run("principal source", func(t *testing.T) {
		resolver := NewResolver(&stubPrincipals{err: storeErr}, newMemoryGrantStore(), nil)

		allowed, err := resolver.HasPermission(context.Background(), shared.Actor{UserID: 2, Role: shared.RoleTeacher}, 1, ResourceStudents, AccessRead)
		require.ErrorIs(t, err, storeErr)
		require.False(t, allowed)
	})
}

func TestResolver_CacheReadThrough(t *testing.T) {
	store := newMemoryGrantStore()
	store.sets[grantSetKey(1, 30)] = []GrantPair{{Resource: ResourceGrades, Type: AccessWrite}}
	cache := newTestCache(t)
	resolver := NewResolver(&stubPrincipals{}, store, cache)
	actor := shared.Actor{UserID: 30, Role: shared.RoleTeacher, SchoolID: 1}

	allowed, err := resolver.HasPermission(context.Background(), actor, 1, ResourceGrades, AccessWrite)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 1, store.listCalls)

	allowed, err = resolver.HasPermission(context.Background(), actor, 1, ResourceGrades, AccessRead)
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 1, store.listCalls, "second decision is served from cache")

	// A replace through the service invalidates the cached set.
	service := NewService(store, cache, &stubPrincipals{}, nil, nil)
	_, err = service.ReplaceGrants(context.Background(), 1, 30, []GrantPair{{Resource: ResourceGrades, Type: AccessRead}}, 99)
	require.NoError(t, err)

	allowed, err = resolver.HasPermission(context.Background(), actor, 1, ResourceGrades, AccessRead)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 2, store.listCalls, "invalidation forces a store reload")
}

func TestResolver_EmptyGrantSetIsCached(t *testing.T) {
	store := newMemoryGrantStore()
	cache := newTestCache(t)
	resolver := NewResolver(&stubPrincipals{}, store, cache)
	actor := shared.Actor{UserID: 31, Role: shared.RoleTeacher, SchoolID: 1}

	for i := 0; i < 2; i++ {
		allowed, err := resolver.HasPermission(context.Background(), actor, 1, ResourceStudents, AccessRead)
		require.NoError(t, err)
		require.False(t, allowed)
	}
	require.Equal(t, 1, store.listCalls, "an empty set is a cacheable answer")
}

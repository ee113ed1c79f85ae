package permissions

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

func requestWithScope(actor shared.Actor, schoolID int64) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
	ctx := shared.ContextWithActor(req.Context(), actor)
	ctx = shared.ContextWithSchoolID(ctx, schoolID)
	return req.WithContext(ctx)
}

func TestMiddlewareRequire_Allows(t *testing.T) {
	store := newMemoryGrantStore()
	store.sets[grantSetKey(1, 30)] = []GrantPair{{Resource: ResourceStudents, Type: AccessRead}}
	mw := Middleware{Resolver: NewResolver(&stubPrincipals{}, store, nil)}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	mw.Require(ResourceStudents, AccessRead)(next).ServeHTTP(rec, requestWithScope(shared.Actor{UserID: 30, Role: shared.RoleTeacher, SchoolID: 1}, 1))

	require.True(t, called)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddlewareRequire_DeniesWithReason(t *testing.T) {
	mw := Middleware{Resolver: NewResolver(&stubPrincipals{}, newMemoryGrantStore(), nil)}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	rec := httptest.NewRecorder()
	mw.Require(ResourceStudents, AccessWrite)(next).ServeHTTP(rec, requestWithScope(shared.Actor{UserID: 30, Role: shared.RoleTeacher, SchoolID: 1}, 1))

	require.Equal(t, http.StatusForbidden, rec.Code)
	var problem struct {
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "permission_denied", problem.Reason)
}

func TestMiddlewareRequire_FailsClosedOnStoreError(t *testing.T) {
	store := newMemoryGrantStore()
	store.err = errors.New("connection refused")
	mw := Middleware{Resolver: NewResolver(&stubPrincipals{}, store, nil)}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	rec := httptest.NewRecorder()
	mw.Require(ResourceStudents, AccessRead)(next).ServeHTTP(rec, requestWithScope(shared.Actor{UserID: 30, Role: shared.RoleTeacher, SchoolID: 1}, 1))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMiddlewareRequire_MissingScope(t *testing.T) {
	mw := Middleware{Resolver: NewResolver(&stubPrincipals{}, newMemoryGrantStore(), nil)}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	t.Run("no actor", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
		mw.Require(ResourceStudents, AccessRead)(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no tenant binding", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/students", nil)
		req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: 30, Role: shared.RoleTeacher}))
		mw.Require(ResourceStudents, AccessRead)(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

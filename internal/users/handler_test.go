package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/arunika-edu/arunika-edu/internal/shared"
)

func newUsersRouter(t *testing.T) (chi.Router, *memoryUserStore) {
	t.Helper()
	store := &memoryUserStore{}
	router := chi.NewRouter()
	NewHandler(nil, NewService(store, &memoryAudit{})).MountRoutes(router)
	return router, store
}

func doJSON(t *testing.T, router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	operator := shared.Actor{UserID: 1, Role: shared.RoleSuperAdmin}
	req = req.WithContext(shared.ContextWithActor(req.Context(), operator))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateUser(t *testing.T) {
	router, _ := newUsersRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/", `{"email":"dewi@arunika.id","name":"Dewi Lestari","role":"TEACHER","password":"correct horse battery"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var user User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.Equal(t, "dewi@arunika.id", user.Email)
	require.NotZero(t, user.ID)
	require.NotContains(t, rec.Body.String(), "password", "hash must not serialize")
}

func TestHandlerCreateUser_Rejections(t *testing.T) {
	router, _ := newUsersRouter(t)

	t.Run("short password", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/", `{"email":"a@b.id","name":"A","role":"TEACHER","password":"short"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/", `{"email":"a@b.id","name":"Abe","role":"JANITOR","password":"long-enough-pass"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := `{"email":"dup@arunika.id","name":"Dup","role":"STUDENT","password":"long-enough-pass"}`
		require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/", body).Code)
		require.Equal(t, http.StatusConflict, doJSON(t, router, http.MethodPost, "/", body).Code)
	})
}

func TestHandlerListUsers(t *testing.T) {
	router, _ := newUsersRouter(t)
	for _, email := range []string{"a@arunika.id", "b@arunika.id", "c@arunika.id"} {
		rec := doJSON(t, router, http.MethodPost, "/", `{"email":"`+email+`","name":"Staff","role":"TEACHER","password":"long-enough-pass"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/?per_page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []User            `json:"data"`
		Meta shared.Pagination `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, 3, body.Meta.Total)
}

func TestHandlerSetActive(t *testing.T) {
	router, store := newUsersRouter(t)
	created := doJSON(t, router, http.MethodPost, "/", `{"email":"dewi@arunika.id","name":"Dewi","role":"SCHOOL_ADMIN","password":"long-enough-pass"}`)
	require.Equal(t, http.StatusCreated, created.Code)

	rec := doJSON(t, router, http.MethodPatch, "/1", `{"active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var user User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	require.False(t, user.Active)
	require.False(t, store.rows[0].Active)

	t.Run("missing flag", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, "/1", `{}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPatch, "/99", `{"active":true}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

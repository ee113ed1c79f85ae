package tenancy

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/arunika-edu/arunika-edu/internal/observability"
	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// SchoolHeader optionally names the school a request wants to act on.
// Cross-tenant values are rejected for everyone but super-admins.
const SchoolHeader = "X-School-ID"

// Middleware binds requests to a school via the guard.
type Middleware struct {
	Guard   *Guard
	Metrics *observability.Metrics
}

// Bind authorizes the actor against the optionally requested school and
// stores the bound school id on the context. Runs after identity middleware.
func (m Middleware) Bind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := shared.ActorFromContext(r.Context())
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing authenticated actor")
			return
		}
		requested, err := requestedSchoolID(r)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid school id")
			return
		}
		bound, err := m.Guard.Authorize(r.Context(), actor, requested)
		if err != nil {
			m.Metrics.RecordDecision(false, shared.ReasonCode(err))
			httpx.RespondError(w, err)
			return
		}
		m.Metrics.RecordDecision(true, "")
		next.ServeHTTP(w, r.WithContext(shared.ContextWithSchoolID(r.Context(), bound)))
	})
}

// requestedSchoolID reads the optional school id from the header or the
// school_id query parameter. Zero means "whatever the actor is bound to".
func requestedSchoolID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get(SchoolHeader))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("school_id"))
	}
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

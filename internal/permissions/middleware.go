package permissions

import (
	"log/slog"
	"net/http"

	"github.com/arunika-edu/arunika-edu/internal/observability"
	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Middleware wires declarative permission requirements onto routes.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Require allows the request through only when the actor holds the exact
// (resource, required) grant, is the school's principal, or is a
// super-admin. Runs after the tenancy binding middleware.
func (m Middleware) Require(resource Resource, required AccessType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing authenticated actor")
				return
			}
			schoolID, ok := shared.SchoolIDFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "request is not tenant-bound")
				return
			}
			allowed, err := m.Resolver.HasPermission(r.Context(), actor, schoolID, resource, required)
			if err != nil {
				// Store failure: deny, never grant.
				if m.Logger != nil {
					m.Logger.Error("permission check failed", slog.Any("error", err),
						slog.String("resource", string(resource)), slog.String("required", string(required)))
				}
				m.Metrics.RecordDecision(false, "")
				httpx.RespondError(w, err)
				return
			}
			if !allowed {
				m.Metrics.RecordDecision(false, shared.ReasonCode(shared.ErrPermissionDenied))
				httpx.RespondError(w, shared.ErrPermissionDenied)
				return
			}
			m.Metrics.RecordDecision(true, "")
			next.ServeHTTP(w, r)
		})
	}
}

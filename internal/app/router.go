package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/auth"
	"github.com/arunika-edu/arunika-edu/internal/entitlements"
	"github.com/arunika-edu/arunika-edu/internal/identity"
	"github.com/arunika-edu/arunika-edu/internal/observability"
	"github.com/arunika-edu/arunika-edu/internal/permissions"
	"github.com/arunika-edu/arunika-edu/internal/schools"
	"github.com/arunika-edu/arunika-edu/internal/shared"
	"github.com/arunika-edu/arunika-edu/internal/tenancy"
	"github.com/arunika-edu/arunika-edu/internal/users"
	"github.com/arunika-edu/arunika-edu/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config
	Tokens *identity.TokenService

	TenantBinding tenancy.Middleware
	Permissions   permissions.Middleware

	AuthHandler         *auth.Handler
	SchoolsHandler      *schools.Handler
	UsersHandler        *users.Handler
	MembersHandler      *tenancy.Handler
	PermissionsHandler  *permissions.Handler
	EntitlementsHandler *entitlements.Handler
	WebhookHandler      *entitlements.WebhookHandler
	AuditHandler        *audit.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router. Route groups encode the decision
// order: authenticate the actor, bind the school, then check permissions.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/webhooks", params.WebhookHandler.MountRoutes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(identity.RequireActor(params.Tokens))

		r.Route("/schools", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(identity.RequireRole(shared.RoleSuperAdmin))
				params.SchoolsHandler.MountAdminRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(params.TenantBinding.Bind)
				params.SchoolsHandler.MountTenantRoutes(r)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(identity.RequireRole(shared.RoleSuperAdmin))
			params.UsersHandler.MountRoutes(r)
		})

		r.Route("/members", func(r chi.Router) {
			r.Use(params.TenantBinding.Bind)
			r.Group(func(r chi.Router) {
				r.Use(params.Permissions.Require(permissions.ResourceStaff, permissions.AccessRead))
				params.MembersHandler.MountReadRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(params.Permissions.Require(permissions.ResourceStaff, permissions.AccessAdmin))
				params.MembersHandler.MountManageRoutes(r)
			})
		})

		r.Route("/permissions", func(r chi.Router) {
			r.Use(params.TenantBinding.Bind)
			params.PermissionsHandler.MountRoutes(r)
			r.Group(func(r chi.Router) {
				r.Use(params.Permissions.Require(permissions.ResourceStaff, permissions.AccessAdmin))
				params.PermissionsHandler.MountGrantRoutes(r)
			})
		})

		r.Route("/entitlements", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(params.TenantBinding.Bind)
				params.EntitlementsHandler.MountRoutes(r)
			})
			r.Group(func(r chi.Router) {
				r.Use(identity.RequireRole(shared.RoleSuperAdmin))
				params.EntitlementsHandler.MountAdminRoutes(r)
			})
		})

		r.Route("/audit", func(r chi.Router) {
			r.Use(params.TenantBinding.Bind)
			r.Use(params.Permissions.Require(permissions.ResourceReports, permissions.AccessRead))
			params.AuditHandler.MountRoutes(r)
		})
	})

	r.Route("/jobs", params.JobHandler.MountRoutes)

	return r
}

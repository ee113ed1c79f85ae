package permissions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Handler wires HTTP endpoints for permission administration.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	capacity *CapacityChecker
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, capacity *CapacityChecker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, capacity: capacity}
}

// MountRoutes registers the read-only reference routes available to any
// tenant-bound actor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/catalog", h.catalog)
	r.Get("/admin-capacity", h.adminCapacity)
}

// MountGrantRoutes registers grant inspection and replacement. The router
// mounts them behind the staff-admin requirement.
func (h *Handler) MountGrantRoutes(r chi.Router) {
	r.Get("/staff/{staffID}", h.getGrants)
	r.Put("/staff/{staffID}", h.replaceGrants)
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"resources":    Resources(),
		"access_types": AccessTypes(),
	})
}

func (h *Handler) adminCapacity(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := requireSchool(w, r)
	if !ok {
		return
	}
	capacity, err := h.capacity.CheckAdminLimit(r.Context(), schoolID)
	if err != nil {
		h.logger.Error("admin capacity", slog.Any("error", err), slog.Int64("school_id", schoolID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, capacity)
}

func (h *Handler) getGrants(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := requireSchool(w, r)
	if !ok {
		return
	}
	staffID, ok := staffParam(w, r)
	if !ok {
		return
	}
	pairs, err := h.service.ListGrants(r.Context(), schoolID, staffID)
	if err != nil {
		h.logger.Error("list grants", slog.Any("error", err), slog.Int64("school_id", schoolID))
		httpx.RespondError(w, err)
		return
	}
	if pairs == nil {
		pairs = []GrantPair{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": pairs})
}

type replaceGrantsRequest struct {
	Grants []GrantPair `json:"grants"`
}

func (h *Handler) replaceGrants(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := requireSchool(w, r)
	if !ok {
		return
	}
	staffID, ok := staffParam(w, r)
	if !ok {
		return
	}
	var req replaceGrantsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	normalized, err := h.service.ReplaceGrants(r.Context(), schoolID, staffID, req.Grants, actor.UserID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidGrant):
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		case errors.Is(err, shared.ErrPrincipalImmutable):
			httpx.RespondError(w, err)
		default:
			h.logger.Error("replace grants", slog.Any("error", err), slog.Int64("school_id", schoolID))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": normalized})
}

func requireSchool(w http.ResponseWriter, r *http.Request) (int64, bool) {
	schoolID, ok := shared.SchoolIDFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "request is not tenant-bound")
		return 0, false
	}
	if schoolID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "school scope required: pass X-School-ID or school_id")
		return 0, false
	}
	return schoolID, true
}

func staffParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	staffID, err := strconv.ParseInt(chi.URLParam(r, "staffID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid staff id")
		return 0, false
	}
	return staffID, true
}

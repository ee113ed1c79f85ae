package schools

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Handler wires HTTP endpoints for tenant records.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountAdminRoutes registers the platform-level school routes. The router
// mounts them behind the super-admin gate.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
}

// MountTenantRoutes registers school routes that run inside a bound tenant.
func (h *Handler) MountTenantRoutes(r chi.Router) {
	r.Get("/current", h.current)
}

type createSchoolRequest struct {
	Name    string `json:"name" validate:"required,min=3"`
	Address string `json:"address"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createSchoolRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	school, err := h.service.Create(r.Context(), CreateInput{
		Name:    req.Name,
		Address: req.Address,
		ActorID: actor.UserID,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidName) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		if !errors.Is(err, httpx.ErrDuplicate) {
			h.logger.Error("create school", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, school)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, perPage := shared.PageRequest(r, 20, 100)
	out, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list schools", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []School{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data": out,
		"meta": pagination,
	})
}

// current returns the school the request is bound to.
func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := shared.SchoolIDFromContext(r.Context())
	if !ok || schoolID == 0 {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "request is not bound to a school")
		return
	}
	school, err := h.service.Get(r.Context(), schoolID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("get current school", slog.Any("error", err), slog.Int64("school_id", schoolID))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, school)
}

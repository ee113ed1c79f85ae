package tenancy

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Handler wires HTTP endpoints for membership management.
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

// MountReadRoutes registers the membership listing. The router mounts it
// behind the staff-read requirement.
func (h *Handler) MountReadRoutes(r chi.Router) {
	r.Get("/", h.list)
}

// MountManageRoutes registers membership mutations. The router mounts them
// behind the staff-admin requirement.
func (h *Handler) MountManageRoutes(r chi.Router) {
	r.Post("/admins", h.addAdmin)
	r.Delete("/{userID}", h.removeStaff)
}

type addAdminRequest struct {
	UserID   int64  `json:"user_id" validate:"required"`
	Position string `json:"position" validate:"omitempty,oneof=PRINCIPAL"`
}

func (h *Handler) addAdmin(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := boundSchool(w, r)
	if !ok {
		return
	}
	var req addAdminRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	membership, err := h.service.AddAdmin(r.Context(), schoolID, AddAdminInput{
		UserID:   req.UserID,
		Position: req.Position,
		ActorID:  actor.UserID,
	})
	if err != nil {
		if errors.Is(err, ErrAdminLimitReached) {
			httpx.ProblemWithReason(w, http.StatusConflict, "Conflict", err.Error(), "admin_limit_reached")
			return
		}
		h.logger.Error("add admin", slog.Any("error", err), slog.Int64("school_id", schoolID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, membership)
}

func (h *Handler) removeStaff(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := boundSchool(w, r)
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())

	if err := h.service.RemoveStaff(r.Context(), schoolID, userID, actor.UserID); err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("remove staff", slog.Any("error", err), slog.Int64("school_id", schoolID))
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := boundSchool(w, r)
	if !ok {
		return
	}
	page, perPage := shared.PageRequest(r, 20, 100)
	members, pagination, err := h.service.List(r.Context(), schoolID, page, perPage)
	if err != nil {
		h.logger.Error("list memberships", slog.Any("error", err), slog.Int64("school_id", schoolID))
		httpx.RespondError(w, err)
		return
	}
	if members == nil {
		members = []Membership{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data": members,
		"meta": pagination,
	})
}

// boundSchool fetches the tenant binding; super-admins in global scope must
// name a school explicitly.
func boundSchool(w http.ResponseWriter, r *http.Request) (int64, bool) {
	schoolID, ok := shared.SchoolIDFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "request is not tenant-bound")
		return 0, false
	}
	if schoolID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "school scope required: pass "+SchoolHeader+" or school_id")
		return 0, false
	}
	return schoolID, true
}

package entitlements

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Handler wires HTTP endpoints for subscription, tool and credit state.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	ledger    *Ledger
	queue     SyncEnqueuer
	validator *validator.Validate
}

// NewHandler constructs a Handler. The queue may be nil when the sync
// endpoint is not mounted.
func NewHandler(logger *slog.Logger, service *Service, ledger *Ledger, queue SyncEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, ledger: ledger, queue: queue, validator: validator.New()}
}

// MountRoutes registers tenant-facing entitlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/subscription", h.subscription)
	r.Get("/tools", h.listTools)
	r.Get("/tools/{slug}", h.checkTool)
	r.Post("/credits", h.spendCredits)
}

// MountAdminRoutes registers operator-only routes; the router guards them
// with the super-admin requirement.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/sync", h.syncTier)
}

func (h *Handler) subscription(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := requireSchool(w, r)
	if !ok {
		return
	}
	sub, err := h.service.Subscription(r.Context(), schoolID)
	if err != nil {
		h.logger.Error("load subscription", slog.Any("error", err), slog.Int64("school_id", schoolID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sub)
}

func (h *Handler) listTools(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := requireSchool(w, r)
	if !ok {
		return
	}
	tools, err := h.service.ListEntitlements(r.Context(), schoolID)
	if err != nil {
		h.logger.Error("list entitlements", slog.Any("error", err), slog.Int64("school_id", schoolID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": tools})
}

func (h *Handler) checkTool(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := requireSchool(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	decision, err := h.service.CheckAccess(r.Context(), schoolID, slug)
	if err != nil {
		h.logger.Error("check tool access", slog.Any("error", err),
			slog.Int64("school_id", schoolID), slog.String("tool", slug))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToolEntitlement{Slug: slug, Decision: decision})
}

type spendRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) spendCredits(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := requireSchool(w, r)
	if !ok {
		return
	}
	var req spendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	result, err := h.ledger.Spend(r.Context(), schoolID, req.Amount, req.Reason)
	if err != nil {
		h.logger.Error("spend credits", slog.Any("error", err), slog.Int64("school_id", schoolID))
		httpx.RespondError(w, err)
		return
	}
	if !result.Granted {
		httpx.ProblemWithReason(w, http.StatusPaymentRequired, "Payment Required", result.Message, ReasonInsufficientCredits)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type syncRequest struct {
	SchoolID int64  `json:"school_id" validate:"required"`
	Tier     string `json:"tier" validate:"required"`
}

func (h *Handler) syncTier(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	tier, err := ParseTier(req.Tier)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown tier "+req.Tier)
		return
	}
	if err := h.queue.EnqueueTierSync(r.Context(), req.SchoolID, tier); err != nil {
		h.logger.Error("enqueue tier sync", slog.Any("error", err), slog.Int64("school_id", req.SchoolID))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
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

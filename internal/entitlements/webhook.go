package entitlements

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// EventTierChanged is the billing provider's tier-change event type. Other
// event types are acknowledged and dropped.
const EventTierChanged = "subscription.tier_changed"

// Deduper keeps redelivered webhook events from running twice.
type Deduper interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// SyncEnqueuer hands tier syncs to the background queue.
type SyncEnqueuer interface {
	EnqueueTierSync(ctx context.Context, schoolID int64, tier Tier) error
}

// WebhookHandler receives billing events. Processing is enqueue-only: the
// worker runs the sync, whose idempotence makes queue retries safe.
type WebhookHandler struct {
	logger    *slog.Logger
	dedupe    Deduper
	queue     SyncEnqueuer
	validator *validator.Validate
}

// NewWebhookHandler constructs the webhook handler.
func NewWebhookHandler(logger *slog.Logger, dedupe Deduper, queue SyncEnqueuer) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{logger: logger, dedupe: dedupe, queue: queue, validator: validator.New()}
}

// MountRoutes registers webhook routes.
func (h *WebhookHandler) MountRoutes(r chi.Router) {
	r.Post("/billing", h.billing)
}

type billingEvent struct {
	EventID  string `json:"event_id" validate:"required"`
	Type     string `json:"type" validate:"required"`
	SchoolID int64  `json:"school_id" validate:"required"`
	Tier     string `json:"tier"`
}

func (h *WebhookHandler) billing(w http.ResponseWriter, r *http.Request) {
	var event billingEvent
	if err := httpx.DecodeJSON(r, &event); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(event); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if event.Type != EventTierChanged {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	tier, err := ParseTier(event.Tier)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown tier "+event.Tier)
		return
	}

	if err := h.dedupe.CheckAndInsert(r.Context(), event.EventID, "billing"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.JSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
		h.logger.Error("webhook dedupe", slog.Any("error", err), slog.String("event_id", event.EventID))
		httpx.RespondError(w, err)
		return
	}

	if err := h.queue.EnqueueTierSync(r.Context(), event.SchoolID, tier); err != nil {
		// Release the key so the provider's retry is accepted.
		_ = h.dedupe.Delete(r.Context(), event.EventID)
		h.logger.Error("enqueue tier sync", slog.Any("error", err),
			slog.String("event_id", event.EventID), slog.Int64("school_id", event.SchoolID))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/arunika-edu/arunika-edu/internal/platform/httpx"
	"github.com/arunika-edu/arunika-edu/internal/shared"
)

// Lister reads the event timeline.
type Lister interface {
	List(ctx context.Context, filter Filter) ([]Event, int, error)
}

// Handler serves the audit timeline.
type Handler struct {
	logger *slog.Logger
	repo   Lister
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo Lister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/events", h.listEvents)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := shared.SchoolIDFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "request is not tenant-bound")
		return
	}
	page, perPage := shared.PageRequest(r, 20, 100)
	filter := Filter{
		SchoolID: schoolID,
		Action:   strings.TrimSpace(r.URL.Query().Get("action")),
		Reason:   strings.TrimSpace(r.URL.Query().Get("reason")),
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	}
	events, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list audit events", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data": events,
		"meta": shared.NewPagination(page, perPage, total),
	})
}

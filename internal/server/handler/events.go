package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/server/middleware"
)

// EventReplayer returns persisted events after a sequence number.
type EventReplayer interface {
	Since(ctx context.Context, actor domain.Actor, seq uint64, limit int) ([]domain.Event, error)
}

// EventHandler serves event replay for reconnecting displays.
type EventHandler struct {
	events EventReplayer
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(events EventReplayer, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logHandler(logger, "events")}
}

// ListEvents returns the events committed after ?after=<seq>.
// GET /api/auction/events
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be a sequence number")
			return
		}
		after = n
	}
	events, err := h.events.Since(r.Context(), middleware.ActorFrom(r.Context()), after, parseListOpts(r).Limit)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

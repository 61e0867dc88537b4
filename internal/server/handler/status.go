package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/basket"
)

// StatusHandler reports runtime information about the service.
type StatusHandler struct {
	mode       string
	eventSlug  string
	depth      float64
	thresholds basket.Thresholds
	startedAt  time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, eventSlug string, depth float64, thresholds basket.Thresholds) *StatusHandler {
	return &StatusHandler{
		mode:       mode,
		eventSlug:  eventSlug,
		depth:      depth,
		thresholds: thresholds,
		startedAt:  time.Now().UTC(),
	}
}

// Status returns the current service configuration and uptime.
// GET /api/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"event_slug":     h.eventSlug,
		"depth":          h.depth,
		"buy_threshold":  h.thresholds.Low,
		"sell_threshold": h.thresholds.High,
		"started_at":     h.startedAt.Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

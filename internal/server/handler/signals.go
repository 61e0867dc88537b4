package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// SignalHandler serves recorded divergence signals from Postgres and the
// durable Redis stream.
type SignalHandler struct {
	signals   domain.SignalStore
	bus       domain.SignalBus
	stream    string
	eventSlug string
	logger    *slog.Logger
}

// NewSignalHandler creates a SignalHandler. The bus may be nil, in which
// case the stream catch-up endpoint reports 503.
func NewSignalHandler(signals domain.SignalStore, bus domain.SignalBus, stream, eventSlug string, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		signals:   signals,
		bus:       bus,
		stream:    stream,
		eventSlug: eventSlug,
		logger:    logger,
	}
}

// ListRecent returns the most recent signals, newest first.
// GET /api/signals/recent
func (h *SignalHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	signals, err := h.signals.ListRecent(r.Context(), h.eventSlug, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list signals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_slug": h.eventSlug,
		"count":      len(signals),
		"signals":    signals,
	})
}

// streamEntry is one durable stream message in API form. The payload is the
// signal event exactly as it was appended by the evaluation pipeline.
type streamEntry struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// StreamCatchUp reads signal events from the durable Redis stream so
// consumers can replay transitions they missed. The after parameter is the
// last stream ID the caller has seen ("0" reads from the beginning).
// GET /api/signals/stream
func (h *SignalHandler) StreamCatchUp(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "signal stream not available")
		return
	}

	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	count := parseLimit(r, 100, 1000)

	msgs, err := h.bus.StreamRead(r.Context(), h.stream, after, count)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "signal stream read failed",
			slog.String("stream", h.stream),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read signal stream")
		return
	}

	entries := make([]streamEntry, 0, len(msgs))
	lastID := after
	for _, m := range msgs {
		payload := m.Payload
		if !json.Valid(payload) {
			// Stream payloads are JSON written by the evaluator; quote
			// anything else so the response stays well-formed.
			quoted, err := json.Marshal(string(payload))
			if err != nil {
				continue
			}
			payload = quoted
		}
		entries = append(entries, streamEntry{ID: m.ID, Payload: payload})
		lastID = m.ID
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stream":  h.stream,
		"count":   len(entries),
		"last_id": lastID,
		"entries": entries,
	})
}

// parseLimit reads the limit query parameter with a default and a cap.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

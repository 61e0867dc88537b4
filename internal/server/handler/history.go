package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// HistoryHandler serves the persisted basket evaluation history.
type HistoryHandler struct {
	store     domain.BasketStore
	eventSlug string
	logger    *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(store domain.BasketStore, eventSlug string, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:     store,
		eventSlug: eventSlug,
		logger:    logger,
	}
}

// List returns basket snapshots newest first. Supports limit, offset, since,
// and until query parameters.
// GET /api/history
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	snaps, err := h.store.ListRecent(r.Context(), h.eventSlug, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event_slug": h.eventSlug,
		"count":      len(snaps),
		"snapshots":  snaps,
	})
}

// Get returns a single basket snapshot by ID.
// GET /api/history/{id}
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing snapshot id")
		return
	}

	snap, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get snapshot failed",
			slog.String("snapshot_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load snapshot")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

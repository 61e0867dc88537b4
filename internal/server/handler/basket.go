package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// BasketHandler serves the current state of the tracked basket.
type BasketHandler struct {
	cache     domain.BasketCache
	store     domain.BasketStore
	eventSlug string
	logger    *slog.Logger
}

// NewBasketHandler creates a BasketHandler. The cache is consulted first;
// on a miss the most recent history row is served instead. The store may be
// nil (monitor mode without Postgres), in which case a cache miss is a 404.
func NewBasketHandler(cache domain.BasketCache, store domain.BasketStore, eventSlug string, logger *slog.Logger) *BasketHandler {
	return &BasketHandler{
		cache:     cache,
		store:     store,
		eventSlug: eventSlug,
		logger:    logger,
	}
}

// GetLatest returns the most recently evaluated basket snapshot.
// GET /api/basket
func (h *BasketHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.latest(r)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no basket snapshot available yet")
			return
		}
		h.logger.ErrorContext(r.Context(), "get latest basket failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load basket")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ListOutcomes returns the per-outcome quotes from the latest snapshot.
// GET /api/outcomes
func (h *BasketHandler) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	snap, err := h.latest(r)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no basket snapshot available yet")
			return
		}
		h.logger.ErrorContext(r.Context(), "list outcomes failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load outcomes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"event_slug":   snap.EventSlug,
		"evaluated_at": snap.EvaluatedAt,
		"depth":        snap.Depth,
		"outcomes":     snap.Outcomes,
	})
}

func (h *BasketHandler) latest(r *http.Request) (domain.BasketSnapshot, error) {
	if h.cache != nil {
		snap, err := h.cache.GetLatest(r.Context(), h.eventSlug)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.BasketSnapshot{}, err
		}
	}

	if h.store == nil {
		return domain.BasketSnapshot{}, domain.ErrNotFound
	}

	snaps, err := h.store.ListRecent(r.Context(), h.eventSlug, domain.ListOpts{Limit: 1})
	if err != nil {
		return domain.BasketSnapshot{}, err
	}
	if len(snaps) == 0 {
		return domain.BasketSnapshot{}, domain.ErrNotFound
	}
	return snaps[0], nil
}

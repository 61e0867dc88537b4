package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/basketwatch/internal/basket"
	"github.com/alanyoungcy/basketwatch/internal/domain"
	"github.com/alanyoungcy/basketwatch/internal/pricing"
)

const (
	// BasketChannel carries every evaluated snapshot (pub/sub, ephemeral).
	BasketChannel = "baskets"
	// SignalStream keeps classification transitions durably (Redis stream).
	SignalStream = "basket_signals"
)

// BookSource fetches current order books for a batch of outcome tokens.
// The CLOB REST client implements it; stream mode substitutes the Redis
// orderbook cache via CachedBookSource.
type BookSource interface {
	GetBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderbookSnapshot, error)
}

// SignalNotifier delivers signal transitions to operators. *notify.Notifier
// implements it.
type SignalNotifier interface {
	NotifySignal(ctx context.Context, snap domain.BasketSnapshot) error
}

// BasketConfig holds the evaluation parameters for one tracked basket.
type BasketConfig struct {
	Depth      float64
	Thresholds basket.Thresholds
}

// BasketService runs the per-cycle evaluation pipeline: resolve each
// outcome's book at the configured depth, evaluate the basket against the
// thresholds, then fan the result out to the cache, history store, signal
// bus, and notifier. Signal rows and notifications fire only on
// classification transitions, not on every cycle.
type BasketService struct {
	books     BookSource
	bookCache domain.OrderbookCache
	cache     domain.BasketCache
	store     domain.BasketStore
	signals   domain.SignalStore
	bus       domain.SignalBus
	notifier  SignalNotifier
	cfg       BasketConfig
	logger    *slog.Logger

	mu   sync.Mutex
	last map[string]domain.Classification // event slug -> previous classification
}

// NewBasketService creates a BasketService. The cache, store, signal store,
// bus, and notifier may be nil; evaluation still runs and the corresponding
// fan-out step is skipped.
func NewBasketService(
	books BookSource,
	bookCache domain.OrderbookCache,
	cache domain.BasketCache,
	store domain.BasketStore,
	signals domain.SignalStore,
	bus domain.SignalBus,
	notifier SignalNotifier,
	cfg BasketConfig,
	logger *slog.Logger,
) *BasketService {
	return &BasketService{
		books:     books,
		bookCache: bookCache,
		cache:     cache,
		store:     store,
		signals:   signals,
		bus:       bus,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "basket_service")),
		last:      make(map[string]domain.Classification),
	}
}

// EvaluateEvent fetches order books for every outcome of the event, builds
// the basket snapshot, and runs the fan-out. It returns the snapshot even
// when parts of the fan-out fail; fan-out errors are logged, not returned,
// so a flaky store does not stop the evaluation loop.
func (s *BasketService) EvaluateEvent(ctx context.Context, ev domain.Event) (domain.BasketSnapshot, error) {
	tokenIDs := make([]string, 0, len(ev.Outcomes))
	for _, o := range ev.Outcomes {
		tokenIDs = append(tokenIDs, o.TokenID)
	}

	books, err := s.books.GetBooks(ctx, tokenIDs)
	if err != nil {
		return domain.BasketSnapshot{}, fmt.Errorf("basket_service: fetch books: %w", err)
	}

	if s.bookCache != nil {
		for tokenID, snap := range books {
			if err := s.bookCache.SetSnapshot(ctx, tokenID, snap); err != nil {
				s.logger.WarnContext(ctx, "orderbook cache write failed",
					slog.String("token_id", tokenID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	snap := s.Build(ev, books)
	s.fanOut(ctx, snap)
	return snap, nil
}

// Build resolves depth-weighted quotes for every outcome from the given
// books and evaluates the basket. It is pure apart from the generated ID
// and timestamp, and never touches the network.
func (s *BasketService) Build(ev domain.Event, books map[string]domain.OrderbookSnapshot) domain.BasketSnapshot {
	quotes := make([]domain.OutcomeQuote, 0, len(ev.Outcomes))

	for _, o := range ev.Outcomes {
		quote := domain.OutcomeQuote{
			OutcomeID: o.OutcomeID,
			Name:      o.Name,
		}

		book, ok := books[o.TokenID]
		if ok {
			// Resolution failures (thin book, malformed levels) leave the
			// side invalid; the evaluator treats that as unpriced.
			quote.Bid, _ = pricing.ResolveQuote(book.Bids, pricing.SideBid, s.cfg.Depth)
			quote.Ask, _ = pricing.ResolveQuote(book.Asks, pricing.SideAsk, s.cfg.Depth)
		}

		quotes = append(quotes, quote)
	}

	return domain.BasketSnapshot{
		ID:          uuid.NewString(),
		EventSlug:   ev.Slug,
		Outcomes:    quotes,
		Signal:      basket.Evaluate(quotes, s.cfg.Thresholds),
		Depth:       s.cfg.Depth,
		EvaluatedAt: time.Now().UTC(),
	}
}

// fanOut pushes an evaluated snapshot to the cache, history store, and bus,
// and handles classification transitions.
func (s *BasketService) fanOut(ctx context.Context, snap domain.BasketSnapshot) {
	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "basket cache write failed",
				slog.String("snapshot_id", snap.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.store != nil {
		if err := s.store.Insert(ctx, snap); err != nil {
			s.logger.ErrorContext(ctx, "basket history insert failed",
				slog.String("snapshot_id", snap.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(snapshotEvent(snap))
		if err == nil {
			if err := s.bus.Publish(ctx, BasketChannel, payload); err != nil {
				s.logger.WarnContext(ctx, "basket publish failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.handleTransition(ctx, snap)

	s.logger.InfoContext(ctx, "basket evaluated",
		slog.String("event_slug", snap.EventSlug),
		slog.String("classification", string(snap.Signal.Classification)),
		slog.Float64("sum_bids", snap.Signal.SumBids),
		slog.Float64("sum_asks", snap.Signal.SumAsks),
		slog.Float64("profit", snap.Signal.Profit),
		slog.Bool("partial", snap.Signal.Partial),
	)
}

// handleTransition records and announces classification changes. The first
// observation of an event counts as a transition only when it is actionable.
func (s *BasketService) handleTransition(ctx context.Context, snap domain.BasketSnapshot) {
	s.mu.Lock()
	prev, seen := s.last[snap.EventSlug]
	s.last[snap.EventSlug] = snap.Signal.Classification
	s.mu.Unlock()

	current := snap.Signal.Classification
	if seen && prev == current {
		return
	}
	if !seen && current == domain.ClassificationBalanced {
		return
	}

	if s.signals != nil && current != domain.ClassificationBalanced {
		rec := domain.SignalRecord{
			ID:             uuid.NewString(),
			EventSlug:      snap.EventSlug,
			Classification: current,
			Profit:         snap.Signal.Profit,
			SumBids:        snap.Signal.SumBids,
			SumAsks:        snap.Signal.SumAsks,
			SnapshotID:     snap.ID,
			DetectedAt:     snap.EvaluatedAt,
		}
		if err := s.signals.Insert(ctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "signal insert failed",
				slog.String("signal_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		payload, err := json.Marshal(snapshotEvent(snap))
		if err == nil {
			if err := s.bus.StreamAppend(ctx, SignalStream, payload); err != nil {
				s.logger.WarnContext(ctx, "signal stream append failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifySignal(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "signal notification failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "basket classification changed",
		slog.String("event_slug", snap.EventSlug),
		slog.String("from", string(prev)),
		slog.String("to", string(current)),
	)
}

// snapshotEvent is the JSON shape published to the bus and stream.
func snapshotEvent(snap domain.BasketSnapshot) map[string]any {
	return map[string]any{
		"event":          "basket_evaluated",
		"snapshot_id":    snap.ID,
		"event_slug":     snap.EventSlug,
		"classification": string(snap.Signal.Classification),
		"profit":         snap.Signal.Profit,
		"sum_bids":       snap.Signal.SumBids,
		"sum_asks":       snap.Signal.SumAsks,
		"partial":        snap.Signal.Partial,
		"evaluated_at":   snap.EvaluatedAt.Format(time.RFC3339Nano),
	}
}

// CachedBookSource adapts a domain.OrderbookCache into a BookSource so
// stream mode can evaluate from WS-maintained books instead of REST calls.
// Tokens without a cached snapshot are omitted from the result map.
type CachedBookSource struct {
	Cache domain.OrderbookCache
}

// GetBooks reads each token's snapshot from the cache.
func (c CachedBookSource) GetBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderbookSnapshot, error) {
	books := make(map[string]domain.OrderbookSnapshot, len(tokenIDs))
	for _, id := range tokenIDs {
		snap, err := c.Cache.GetSnapshot(ctx, id)
		if err != nil {
			continue
		}
		books[id] = snap
	}
	return books, nil
}

var _ BookSource = CachedBookSource{}

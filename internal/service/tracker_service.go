package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// EventSource resolves an event slug to its markets. The Gamma client
// implements it.
type EventSource interface {
	GetEventBySlug(ctx context.Context, slug string) (domain.Event, []domain.Market, error)
}

// clobRateKey is the rate-limiter bucket guarding CLOB REST traffic.
const clobRateKey = "clob_rest"

// TrackerConfig holds the discovery and polling parameters.
type TrackerConfig struct {
	EventSlug     string
	Outcomes      []string // configured outcome names to track
	PollInterval  time.Duration
	EventTTL      time.Duration // discovery cache TTL
	RESTRateLimit int           // CLOB requests per second
}

// TrackerService discovers the tracked event's outcome tokens and drives the
// REST polling loop. Discovery results are cached so the Gamma API is hit at
// most once per TTL; each poll cycle is rate-limited before it touches the
// CLOB.
type TrackerService struct {
	events  EventSource
	cache   domain.EventCache
	limiter domain.RateLimiter
	baskets *BasketService
	cfg     TrackerConfig
	logger  *slog.Logger
}

// NewTrackerService creates a TrackerService. The event cache and rate
// limiter may be nil, in which case discovery is uncached and polling is
// unthrottled.
func NewTrackerService(
	events EventSource,
	cache domain.EventCache,
	limiter domain.RateLimiter,
	baskets *BasketService,
	cfg TrackerConfig,
	logger *slog.Logger,
) *TrackerService {
	return &TrackerService{
		events:  events,
		cache:   cache,
		limiter: limiter,
		baskets: baskets,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "tracker_service")),
	}
}

// Discover resolves the configured slug to an event with one tracked outcome
// per configured name. Cached results are used when fresh; a cache miss
// falls through to the Gamma API and repopulates the cache.
func (s *TrackerService) Discover(ctx context.Context) (domain.Event, error) {
	if s.cache != nil {
		ev, err := s.cache.Get(ctx, s.cfg.EventSlug)
		if err == nil && len(ev.Outcomes) > 0 {
			return ev, nil
		}
	}

	ev, markets, err := s.events.GetEventBySlug(ctx, s.cfg.EventSlug)
	if err != nil {
		return domain.Event{}, fmt.Errorf("tracker_service: discover %s: %w", s.cfg.EventSlug, err)
	}

	ev.Outcomes = matchOutcomes(s.cfg.Outcomes, markets)
	if len(ev.Outcomes) < len(s.cfg.Outcomes) {
		s.logger.WarnContext(ctx, "not all configured outcomes matched a market",
			slog.String("event_slug", s.cfg.EventSlug),
			slog.Int("configured", len(s.cfg.Outcomes)),
			slog.Int("matched", len(ev.Outcomes)),
		)
	}

	if s.cache != nil && len(ev.Outcomes) > 0 {
		if err := s.cache.Set(ctx, ev, s.cfg.EventTTL); err != nil {
			s.logger.WarnContext(ctx, "event cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "event discovered",
		slog.String("event_slug", ev.Slug),
		slog.String("title", ev.Title),
		slog.Int("outcomes", len(ev.Outcomes)),
	)
	return ev, nil
}

// Run polls the CLOB for the tracked event until ctx is cancelled. One
// evaluation cycle runs immediately on start; subsequent cycles follow the
// configured interval. Cycle errors are logged and the loop continues.
func (s *TrackerService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "tracker started",
		slog.String("event_slug", s.cfg.EventSlug),
		slog.Duration("poll_interval", s.cfg.PollInterval),
	)
	defer s.logger.InfoContext(context.WithoutCancel(ctx), "tracker stopped")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.ErrorContext(ctx, "evaluation cycle failed",
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one discover-throttle-evaluate pass.
func (s *TrackerService) Cycle(ctx context.Context) error {
	ev, err := s.Discover(ctx)
	if err != nil {
		return err
	}
	if len(ev.Outcomes) == 0 {
		return fmt.Errorf("tracker_service: event %s: %w", s.cfg.EventSlug, domain.ErrIncompleteBasket)
	}

	if s.limiter != nil {
		limit := s.cfg.RESTRateLimit
		if limit <= 0 {
			limit = 1
		}
		for {
			allowed, err := s.limiter.Allow(ctx, clobRateKey, limit, time.Second)
			if err != nil {
				// A broken limiter should not halt tracking.
				s.logger.WarnContext(ctx, "rate limiter unavailable",
					slog.String("error", err.Error()),
				)
				break
			}
			if allowed {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
	}

	_, err = s.baskets.EvaluateEvent(ctx, ev)
	return err
}

// matchOutcomes pairs configured outcome names with event markets. A market
// matches when its question contains the configured name's significant part
// (the name with any trailing parenthetical stripped), case-insensitively.
// Each market is consumed at most once.
func matchOutcomes(names []string, markets []domain.Market) []domain.TrackedOutcome {
	used := make([]bool, len(markets))
	outcomes := make([]domain.TrackedOutcome, 0, len(names))

	for _, name := range names {
		needle := strings.ToLower(searchTerm(name))
		if needle == "" {
			continue
		}
		for i, m := range markets {
			if used[i] {
				continue
			}
			if !strings.Contains(strings.ToLower(m.Question), needle) {
				continue
			}
			tokenID := m.YesTokenID()
			if tokenID == "" {
				continue
			}
			outcomes = append(outcomes, domain.TrackedOutcome{
				OutcomeID: m.ConditionID,
				Name:      name,
				MarketID:  m.ID,
				TokenID:   tokenID,
			})
			used[i] = true
			break
		}
	}
	return outcomes
}

// searchTerm strips a trailing parenthetical like "(PSD)" from a configured
// outcome name, leaving the part worth matching against market questions.
func searchTerm(name string) string {
	if i := strings.LastIndex(name, "("); i > 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/basketwatch/internal/basket"
	"github.com/alanyoungcy/basketwatch/internal/domain"
	"github.com/alanyoungcy/basketwatch/internal/feed"
	"github.com/alanyoungcy/basketwatch/internal/platform/polymarket"
	"github.com/alanyoungcy/basketwatch/internal/server"
	"github.com/alanyoungcy/basketwatch/internal/server/handler"
	"github.com/alanyoungcy/basketwatch/internal/server/ws"
	"github.com/alanyoungcy/basketwatch/internal/service"
)

// TrackMode polls the CLOB REST API for the tracked event's order books,
// evaluates the basket every cycle, and serves the HTTP API.
func (a *App) TrackMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting track mode")

	g, ctx := errgroup.WithContext(ctx)

	clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost)
	gamma := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost)

	baskets := a.newBasketService(deps, clob)
	tracker := a.newTrackerService(deps, gamma, baskets)

	g.Go(func() error {
		return tracker.Run(ctx)
	})

	a.startServer(ctx, g, deps)
	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// StreamMode maintains order books from the Polymarket WebSocket feed and
// re-evaluates the basket whenever a full book snapshot arrives. A periodic
// re-evaluation from the cache covers quiet stretches where only
// incremental level updates flow.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting stream mode")

	g, ctx := errgroup.WithContext(ctx)

	clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost)
	gamma := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost)

	baskets := a.newBasketService(deps, &service.CachedBookSource{Cache: deps.BookCache})
	tracker := a.newTrackerService(deps, gamma, baskets)

	// Resolve the tracked outcomes before subscribing.
	ev, err := tracker.Discover(ctx)
	if err != nil {
		return err
	}
	tokenIDs := make([]string, 0, len(ev.Outcomes))
	for _, o := range ev.Outcomes {
		tokenIDs = append(tokenIDs, o.TokenID)
	}

	// Seed the book cache via REST so the first evaluation does not have to
	// wait for full snapshots on the socket.
	if books, err := clob.GetBooks(ctx, tokenIDs); err != nil {
		a.logger.WarnContext(ctx, "initial book fetch failed",
			slog.String("error", err.Error()),
		)
	} else {
		for tokenID, snap := range books {
			if err := deps.BookCache.SetSnapshot(ctx, tokenID, snap); err != nil {
				a.logger.WarnContext(ctx, "book cache seed failed",
					slog.String("token_id", tokenID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	wsFeed := feed.NewPolymarketWSFeed(
		a.cfg.Polymarket.WsHost,
		tokenIDs,
		func(ctx context.Context, snap domain.OrderbookSnapshot) {
			if err := deps.BookCache.SetSnapshot(ctx, snap.TokenID, snap); err != nil {
				a.logger.WarnContext(ctx, "book cache write failed",
					slog.String("token_id", snap.TokenID),
					slog.String("error", err.Error()),
				)
				return
			}
			if _, err := baskets.EvaluateEvent(ctx, ev); err != nil {
				a.logger.ErrorContext(ctx, "evaluation failed",
					slog.String("error", err.Error()),
				)
			}
		},
		func(ctx context.Context, change domain.PriceChange) {
			if err := deps.BookCache.UpdateLevel(ctx, change.TokenID, change.Side, change.Price, change.Size); err != nil {
				a.logger.WarnContext(ctx, "book level update failed",
					slog.String("token_id", change.TokenID),
					slog.String("error", err.Error()),
				)
			}
		},
		a.logger,
	)
	g.Go(func() error {
		defer wsFeed.Close()
		return wsFeed.Run(ctx)
	})

	// Periodic evaluation from the cache picks up the incremental level
	// updates between full snapshots.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Tracker.PollInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := baskets.EvaluateEvent(ctx, ev); err != nil {
					a.logger.ErrorContext(ctx, "evaluation failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})

	a.startServer(ctx, g, deps)
	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// MonitorMode serves the HTTP API against existing data without running any
// evaluation loop. Useful for dashboards pointed at a tracker running
// elsewhere against the same Redis and Postgres.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the REST polling loop, the WebSocket book maintenance, the
// HTTP API, and the archival sweep together. Polling and streaming share
// the same BasketService, so transition state is consistent between them.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	clob := polymarket.NewClobClient(a.cfg.Polymarket.ClobHost)
	gamma := polymarket.NewGammaClient(a.cfg.Polymarket.GammaHost)

	baskets := a.newBasketService(deps, clob)
	tracker := a.newTrackerService(deps, gamma, baskets)

	g.Go(func() error {
		return tracker.Run(ctx)
	})

	// Keep the Redis book cache warm from the socket when a WS host is
	// configured. Evaluation stays on the polling cadence.
	if a.cfg.Polymarket.WsHost != "" {
		ev, err := tracker.Discover(ctx)
		if err != nil {
			return err
		}
		tokenIDs := make([]string, 0, len(ev.Outcomes))
		for _, o := range ev.Outcomes {
			tokenIDs = append(tokenIDs, o.TokenID)
		}

		wsFeed := feed.NewPolymarketWSFeed(
			a.cfg.Polymarket.WsHost,
			tokenIDs,
			func(ctx context.Context, snap domain.OrderbookSnapshot) {
				if err := deps.BookCache.SetSnapshot(ctx, snap.TokenID, snap); err != nil {
					a.logger.WarnContext(ctx, "book cache write failed",
						slog.String("token_id", snap.TokenID),
						slog.String("error", err.Error()),
					)
				}
			},
			func(ctx context.Context, change domain.PriceChange) {
				if err := deps.BookCache.UpdateLevel(ctx, change.TokenID, change.Side, change.Price, change.Size); err != nil {
					a.logger.WarnContext(ctx, "book level update failed",
						slog.String("token_id", change.TokenID),
						slog.String("error", err.Error()),
					)
				}
			},
			a.logger,
		)
		g.Go(func() error {
			defer wsFeed.Close()
			return wsFeed.Run(ctx)
		})
	}

	a.startServer(ctx, g, deps)
	a.startArchiveLoop(ctx, g, deps)

	return g.Wait()
}

// newBasketService builds the shared evaluation service for a mode.
func (a *App) newBasketService(deps *Dependencies, books service.BookSource) *service.BasketService {
	return service.NewBasketService(
		books,
		deps.BookCache,
		deps.BasketCache,
		deps.BasketStore,
		deps.SignalStore,
		deps.SignalBus,
		deps.Notifier,
		service.BasketConfig{
			Depth: a.cfg.Tracker.Depth,
			Thresholds: basket.Thresholds{
				Low:  a.cfg.Tracker.ThresholdLow,
				High: a.cfg.Tracker.ThresholdHigh,
			},
		},
		a.logger,
	)
}

// newTrackerService builds the discovery and polling service for a mode.
func (a *App) newTrackerService(deps *Dependencies, gamma *polymarket.GammaClient, baskets *service.BasketService) *service.TrackerService {
	return service.NewTrackerService(
		gamma,
		deps.EventCache,
		deps.RateLimiter,
		baskets,
		service.TrackerConfig{
			EventSlug:     a.cfg.Tracker.EventSlug,
			Outcomes:      a.cfg.Tracker.Outcomes,
			PollInterval:  a.cfg.Tracker.PollInterval(),
			EventTTL:      a.cfg.Tracker.EventTTL(),
			RESTRateLimit: a.cfg.Tracker.RESTRateLimit,
		},
		a.logger,
	)
}

// startServer adds the HTTP server and WebSocket hub goroutines to the
// errgroup when the server is enabled. The server is shut down gracefully
// when the context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		EventSlug: a.cfg.Tracker.EventSlug,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	thresholds := basket.Thresholds{
		Low:  a.cfg.Tracker.ThresholdLow,
		High: a.cfg.Tracker.ThresholdHigh,
	}
	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, a.cfg.Tracker.EventSlug, a.cfg.Tracker.Depth, thresholds),
		Basket:  handler.NewBasketHandler(deps.BasketCache, deps.BasketStore, a.cfg.Tracker.EventSlug, a.logger),
		History: handler.NewHistoryHandler(deps.BasketStore, a.cfg.Tracker.EventSlug, a.logger),
		Signals: handler.NewSignalHandler(deps.SignalStore, deps.SignalBus, service.SignalStream, a.cfg.Tracker.EventSlug, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startArchiveLoop adds the periodic cold-storage sweep to the errgroup
// when archival is enabled. Each sweep uploads rows older than the
// retention window to S3 and deletes them from Postgres only after the
// upload succeeded.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Archive.Interval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				a.runArchiveSweep(ctx, deps)
			}
		}
	})
}

func (a *App) runArchiveSweep(ctx context.Context, deps *Dependencies) {
	cutoff := time.Now().UTC().Add(-a.cfg.Archive.Retention())

	archived, err := deps.Archiver.ArchiveBaskets(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "basket archive failed",
			slog.String("error", err.Error()),
		)
	} else if archived > 0 {
		deleted, err := deps.BasketStore.DeleteBefore(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "basket history prune failed",
				slog.String("error", err.Error()),
			)
		}
		a.logger.InfoContext(ctx, "basket history archived",
			slog.Int64("archived", archived),
			slog.Int64("deleted", deleted),
		)
	}

	archived, err = deps.Archiver.ArchiveSignals(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "signal archive failed",
			slog.String("error", err.Error()),
		)
	} else if archived > 0 {
		deleted, err := deps.SignalStore.DeleteBefore(ctx, cutoff)
		if err != nil {
			a.logger.ErrorContext(ctx, "signal history prune failed",
				slog.String("error", err.Error()),
			)
		}
		a.logger.InfoContext(ctx, "signal history archived",
			slog.Int64("archived", archived),
			slog.Int64("deleted", deleted),
		)
	}
}

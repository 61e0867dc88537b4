package domain

import (
	"context"
	"time"
)

// OrderbookCache stores live orderbook state per outcome token.
type OrderbookCache interface {
	SetSnapshot(ctx context.Context, tokenID string, snap OrderbookSnapshot) error
	GetSnapshot(ctx context.Context, tokenID string) (OrderbookSnapshot, error)
	UpdateLevel(ctx context.Context, tokenID string, side string, price, size float64) error
	GetBBO(ctx context.Context, tokenID string) (bestBid, bestAsk float64, err error)
}

// BasketCache holds the most recent basket snapshot for fast API reads.
type BasketCache interface {
	SetLatest(ctx context.Context, snap BasketSnapshot) error
	GetLatest(ctx context.Context, eventSlug string) (BasketSnapshot, error)
}

// EventCache holds discovered event metadata (slug -> outcome tokens) so the
// Gamma API is not hit on every polling cycle.
type EventCache interface {
	Set(ctx context.Context, ev Event, ttl time.Duration) error
	Get(ctx context.Context, slug string) (Event, error)
	Invalidate(ctx context.Context, slug string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

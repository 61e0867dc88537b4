package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// defaultBasketTTL bounds staleness of the cached snapshot when no TTL is
// configured. Readers that see ErrNotFound fall back to the database.
const defaultBasketTTL = 10 * time.Minute

// BasketCache implements domain.BasketCache using a single JSON value per
// event at key "basket:{slug}:latest".
type BasketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBasketCache creates a BasketCache backed by the given Client. A
// non-positive ttl falls back to the default.
func NewBasketCache(c *Client, ttl time.Duration) *BasketCache {
	if ttl <= 0 {
		ttl = defaultBasketTTL
	}
	return &BasketCache{rdb: c.Underlying(), ttl: ttl}
}

func latestBasketKey(slug string) string {
	return "basket:" + slug + ":latest"
}

// SetLatest stores the most recent basket snapshot for an event.
func (bc *BasketCache) SetLatest(ctx context.Context, snap domain.BasketSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal basket %s: %w", snap.EventSlug, err)
	}
	if err := bc.rdb.Set(ctx, latestBasketKey(snap.EventSlug), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set latest basket %s: %w", snap.EventSlug, err)
	}
	return nil
}

// GetLatest retrieves the most recent basket snapshot for an event.
// It returns domain.ErrNotFound when no snapshot is cached.
func (bc *BasketCache) GetLatest(ctx context.Context, eventSlug string) (domain.BasketSnapshot, error) {
	data, err := bc.rdb.Get(ctx, latestBasketKey(eventSlug)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BasketSnapshot{}, domain.ErrNotFound
		}
		return domain.BasketSnapshot{}, fmt.Errorf("redis: get latest basket %s: %w", eventSlug, err)
	}

	var snap domain.BasketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.BasketSnapshot{}, fmt.Errorf("redis: unmarshal basket %s: %w", eventSlug, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.BasketCache = (*BasketCache)(nil)

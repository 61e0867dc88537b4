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

// EventCache implements domain.EventCache using JSON values keyed by slug.
// Caching discovered events keeps the Gamma API off the hot polling path.
//
// Key schema:
//
//	event:{slug} - string value containing JSON-serialized Event
type EventCache struct {
	rdb *redis.Client
}

// NewEventCache creates an EventCache backed by the given Client.
func NewEventCache(c *Client) *EventCache {
	return &EventCache{rdb: c.Underlying()}
}

func eventKey(slug string) string {
	return "event:" + slug
}

// Set stores a discovered event with the given TTL.
func (ec *EventCache) Set(ctx context.Context, ev domain.Event, ttl time.Duration) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", ev.Slug, err)
	}
	if err := ec.rdb.Set(ctx, eventKey(ev.Slug), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set event %s: %w", ev.Slug, err)
	}
	return nil
}

// Get retrieves a cached event by slug. It returns domain.ErrNotFound when
// the slug is not cached or the entry has expired.
func (ec *EventCache) Get(ctx context.Context, slug string) (domain.Event, error) {
	data, err := ec.rdb.Get(ctx, eventKey(slug)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("redis: get event %s: %w", slug, err)
	}

	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.Event{}, fmt.Errorf("redis: unmarshal event %s: %w", slug, err)
	}
	return ev, nil
}

// Invalidate removes a cached event, forcing rediscovery on the next cycle.
func (ec *EventCache) Invalidate(ctx context.Context, slug string) error {
	if err := ec.rdb.Del(ctx, eventKey(slug)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate event %s: %w", slug, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.EventCache = (*EventCache)(nil)

package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BasketStore persists the evaluated basket history.
type BasketStore interface {
	Insert(ctx context.Context, snap BasketSnapshot) error
	GetByID(ctx context.Context, id string) (BasketSnapshot, error)
	ListRecent(ctx context.Context, eventSlug string, opts ListOpts) ([]BasketSnapshot, error)
	ListBefore(ctx context.Context, before time.Time) ([]BasketSnapshot, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SignalRecord is one buy/sell classification transition worth keeping.
type SignalRecord struct {
	ID             string
	EventSlug      string
	Classification Classification
	Profit         float64
	SumBids        float64
	SumAsks        float64
	SnapshotID     string
	DetectedAt     time.Time
}

// SignalStore persists basket signal transitions.
type SignalStore interface {
	Insert(ctx context.Context, rec SignalRecord) error
	ListRecent(ctx context.Context, eventSlug string, limit int) ([]SignalRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]SignalRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

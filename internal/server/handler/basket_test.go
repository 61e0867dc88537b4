package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBasketCache struct {
	snap domain.BasketSnapshot
	err  error
}

func (f *fakeBasketCache) SetLatest(ctx context.Context, snap domain.BasketSnapshot) error {
	f.snap = snap
	return nil
}

func (f *fakeBasketCache) GetLatest(ctx context.Context, eventSlug string) (domain.BasketSnapshot, error) {
	if f.err != nil {
		return domain.BasketSnapshot{}, f.err
	}
	return f.snap, nil
}

type fakeBasketStore struct {
	snaps []domain.BasketSnapshot
	err   error
}

func (f *fakeBasketStore) Insert(ctx context.Context, snap domain.BasketSnapshot) error {
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeBasketStore) GetByID(ctx context.Context, id string) (domain.BasketSnapshot, error) {
	for _, s := range f.snaps {
		if s.ID == id {
			return s, nil
		}
	}
	return domain.BasketSnapshot{}, domain.ErrNotFound
}

func (f *fakeBasketStore) ListRecent(ctx context.Context, eventSlug string, opts domain.ListOpts) ([]domain.BasketSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if opts.Limit > 0 && len(f.snaps) > opts.Limit {
		return f.snaps[:opts.Limit], nil
	}
	return f.snaps, nil
}

func (f *fakeBasketStore) ListBefore(ctx context.Context, before time.Time) ([]domain.BasketSnapshot, error) {
	return f.snaps, nil
}

func (f *fakeBasketStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func testSnapshot(id string) domain.BasketSnapshot {
	return domain.BasketSnapshot{
		ID:        id,
		EventSlug: "test-election",
		Outcomes: []domain.OutcomeQuote{
			{OutcomeID: "o1", Name: "Candidate A", Bid: domain.DepthPrice{Price: 0.40, Valid: true}, Ask: domain.DepthPrice{Price: 0.42, Valid: true}},
			{OutcomeID: "o2", Name: "Candidate B", Bid: domain.DepthPrice{Price: 0.55, Valid: true}, Ask: domain.DepthPrice{Price: 0.57, Valid: true}},
		},
		Signal: domain.BasketSignal{
			Classification: domain.ClassificationBalanced,
			SumBids:        0.95,
			SumAsks:        0.99,
			PricedBids:     2,
			PricedAsks:     2,
			Total:          2,
		},
		Depth:       100,
		EvaluatedAt: time.Now().UTC(),
	}
}

func TestGetLatestServesCachedSnapshot(t *testing.T) {
	cache := &fakeBasketCache{snap: testSnapshot("snap-1")}
	h := NewBasketHandler(cache, &fakeBasketStore{}, "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/basket", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got domain.BasketSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "snap-1" {
		t.Errorf("snapshot ID = %q, want %q", got.ID, "snap-1")
	}
	if got.Signal.SumAsks != 0.99 {
		t.Errorf("SumAsks = %v, want 0.99", got.Signal.SumAsks)
	}
}

func TestGetLatestFallsBackToStore(t *testing.T) {
	cache := &fakeBasketCache{err: domain.ErrNotFound}
	store := &fakeBasketStore{snaps: []domain.BasketSnapshot{testSnapshot("snap-2")}}
	h := NewBasketHandler(cache, store, "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/basket", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got domain.BasketSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "snap-2" {
		t.Errorf("snapshot ID = %q, want %q", got.ID, "snap-2")
	}
}

func TestGetLatestReturns404WhenEmpty(t *testing.T) {
	cache := &fakeBasketCache{err: domain.ErrNotFound}
	h := NewBasketHandler(cache, &fakeBasketStore{}, "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.GetLatest(rec, httptest.NewRequest(http.MethodGet, "/api/basket", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestListOutcomesShapesResponse(t *testing.T) {
	cache := &fakeBasketCache{snap: testSnapshot("snap-3")}
	h := NewBasketHandler(cache, &fakeBasketStore{}, "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.ListOutcomes(rec, httptest.NewRequest(http.MethodGet, "/api/outcomes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		EventSlug string                `json:"event_slug"`
		Depth     float64               `json:"depth"`
		Outcomes  []domain.OutcomeQuote `json:"outcomes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.EventSlug != "test-election" {
		t.Errorf("event_slug = %q, want %q", got.EventSlug, "test-election")
	}
	if got.Depth != 100 {
		t.Errorf("depth = %v, want 100", got.Depth)
	}
	if len(got.Outcomes) != 2 {
		t.Errorf("outcomes length = %d, want 2", len(got.Outcomes))
	}
}

func TestHistoryGetByID(t *testing.T) {
	store := &fakeBasketStore{snaps: []domain.BasketSnapshot{testSnapshot("snap-4")}}
	h := NewHistoryHandler(store, "test-election", discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/history/{id}", h.Get)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/snap-4", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status for missing id = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHistoryListHonoursLimit(t *testing.T) {
	store := &fakeBasketStore{snaps: []domain.BasketSnapshot{
		testSnapshot("a"), testSnapshot("b"), testSnapshot("c"),
	}}
	h := NewHistoryHandler(store, "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		Count     int                     `json:"count"`
		Snapshots []domain.BasketSnapshot `json:"snapshots"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Count != 2 {
		t.Errorf("count = %d, want 2", got.Count)
	}
}

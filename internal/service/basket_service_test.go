package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/basket"
	"github.com/alanyoungcy/basketwatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBookSource struct {
	books map[string]domain.OrderbookSnapshot
	err   error
	calls int
}

func (f *fakeBookSource) GetBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderbookSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.OrderbookSnapshot, len(tokenIDs))
	for _, id := range tokenIDs {
		if snap, ok := f.books[id]; ok {
			out[id] = snap
		}
	}
	return out, nil
}

type fakeBasketStore struct {
	domain.BasketStore
	inserted []domain.BasketSnapshot
}

func (f *fakeBasketStore) Insert(ctx context.Context, snap domain.BasketSnapshot) error {
	f.inserted = append(f.inserted, snap)
	return nil
}

type fakeSignalStore struct {
	domain.SignalStore
	inserted []domain.SignalRecord
}

func (f *fakeSignalStore) Insert(ctx context.Context, rec domain.SignalRecord) error {
	f.inserted = append(f.inserted, rec)
	return nil
}

type fakeBasketCache struct {
	latest map[string]domain.BasketSnapshot
}

func (f *fakeBasketCache) SetLatest(ctx context.Context, snap domain.BasketSnapshot) error {
	if f.latest == nil {
		f.latest = make(map[string]domain.BasketSnapshot)
	}
	f.latest[snap.EventSlug] = snap
	return nil
}

func (f *fakeBasketCache) GetLatest(ctx context.Context, eventSlug string) (domain.BasketSnapshot, error) {
	snap, ok := f.latest[eventSlug]
	if !ok {
		return domain.BasketSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

type fakeBus struct {
	published []string
	streamed  []string
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	f.streamed = append(f.streamed, stream)
	return nil
}

func (f *fakeBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeNotifier struct {
	notified []domain.Classification
}

func (f *fakeNotifier) NotifySignal(ctx context.Context, snap domain.BasketSnapshot) error {
	f.notified = append(f.notified, snap.Signal.Classification)
	return nil
}

func testEvent() domain.Event {
	return domain.Event{
		ID:    "ev1",
		Slug:  "test-election",
		Title: "Test Election",
		Outcomes: []domain.TrackedOutcome{
			{OutcomeID: "c1", Name: "Alpha", MarketID: "m1", TokenID: "t1"},
			{OutcomeID: "c2", Name: "Beta", MarketID: "m2", TokenID: "t2"},
		},
	}
}

// deepBook builds a one-sided book with a single level deep enough to fill
// any reasonable target.
func deepBook(tokenID string, bid, ask float64) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		TokenID:   tokenID,
		Bids:      []domain.PriceLevel{{Price: bid, Size: 10000}},
		Asks:      []domain.PriceLevel{{Price: ask, Size: 10000}},
		BestBid:   bid,
		BestAsk:   ask,
		Timestamp: time.Now(),
	}
}

func newTestService(books *fakeBookSource, store *fakeBasketStore, signals *fakeSignalStore, cache *fakeBasketCache, bus *fakeBus, notifier *fakeNotifier) *BasketService {
	cfg := BasketConfig{
		Depth:      100,
		Thresholds: basket.DefaultThresholds(),
	}
	// Convert nil concrete pointers to nil interfaces so the service's
	// `!= nil` guards see them as absent rather than as typed-nil values.
	var (
		cacheI    domain.BasketCache
		storeI    domain.BasketStore
		signalsI  domain.SignalStore
		busI      domain.SignalBus
		notifierI SignalNotifier
	)
	if cache != nil {
		cacheI = cache
	}
	if store != nil {
		storeI = store
	}
	if signals != nil {
		signalsI = signals
	}
	if bus != nil {
		busI = bus
	}
	if notifier != nil {
		notifierI = notifier
	}
	return NewBasketService(books, nil, cacheI, storeI, signalsI, busI, notifierI, cfg, discardLogger())
}

func TestBuildResolvesQuotes(t *testing.T) {
	books := map[string]domain.OrderbookSnapshot{
		"t1": deepBook("t1", 0.40, 0.42),
		"t2": deepBook("t2", 0.55, 0.57),
	}
	svc := newTestService(&fakeBookSource{books: books}, nil, nil, nil, nil, nil)

	snap := svc.Build(testEvent(), books)

	if snap.ID == "" {
		t.Error("snapshot ID not set")
	}
	if snap.EventSlug != "test-election" {
		t.Errorf("EventSlug = %q", snap.EventSlug)
	}
	if len(snap.Outcomes) != 2 {
		t.Fatalf("got %d outcomes", len(snap.Outcomes))
	}
	if !snap.Outcomes[0].Bid.Valid || snap.Outcomes[0].Bid.Price != 0.40 {
		t.Errorf("outcome 0 bid = %+v", snap.Outcomes[0].Bid)
	}
	if !snap.Outcomes[1].Ask.Valid || snap.Outcomes[1].Ask.Price != 0.57 {
		t.Errorf("outcome 1 ask = %+v", snap.Outcomes[1].Ask)
	}
	// 0.42 + 0.57 = 0.99 and 0.40 + 0.55 = 0.95: inside the band.
	if snap.Signal.Classification != domain.ClassificationBalanced {
		t.Errorf("classification = %q", snap.Signal.Classification)
	}
}

func TestBuildMissingBookLeavesOutcomeUnpriced(t *testing.T) {
	books := map[string]domain.OrderbookSnapshot{
		"t1": deepBook("t1", 0.40, 0.42),
	}
	svc := newTestService(&fakeBookSource{books: books}, nil, nil, nil, nil, nil)

	snap := svc.Build(testEvent(), books)

	if snap.Outcomes[1].Bid.Valid || snap.Outcomes[1].Ask.Valid {
		t.Error("outcome without a book should be unpriced")
	}
	if !snap.Signal.Partial {
		t.Error("snapshot should be partial")
	}
	if snap.Signal.Classification != domain.ClassificationBalanced {
		t.Errorf("partial basket classified %q", snap.Signal.Classification)
	}
}

func TestEvaluateEventFanOut(t *testing.T) {
	// Asks sum to 0.80: a clear buy.
	books := &fakeBookSource{books: map[string]domain.OrderbookSnapshot{
		"t1": deepBook("t1", 0.38, 0.40),
		"t2": deepBook("t2", 0.38, 0.40),
	}}
	store := &fakeBasketStore{}
	signals := &fakeSignalStore{}
	cache := &fakeBasketCache{}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}
	svc := newTestService(books, store, signals, cache, bus, notifier)

	snap, err := svc.EvaluateEvent(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("EvaluateEvent: %v", err)
	}

	if snap.Signal.Classification != domain.ClassificationBuy {
		t.Fatalf("classification = %q, want buy", snap.Signal.Classification)
	}
	if len(store.inserted) != 1 {
		t.Errorf("history inserts = %d, want 1", len(store.inserted))
	}
	if _, err := cache.GetLatest(context.Background(), "test-election"); err != nil {
		t.Errorf("latest snapshot not cached: %v", err)
	}
	if len(bus.published) != 1 || bus.published[0] != "baskets" {
		t.Errorf("published = %v", bus.published)
	}
	// First actionable observation is a transition.
	if len(signals.inserted) != 1 {
		t.Fatalf("signal inserts = %d, want 1", len(signals.inserted))
	}
	if signals.inserted[0].SnapshotID != snap.ID {
		t.Errorf("signal snapshot ID = %q, want %q", signals.inserted[0].SnapshotID, snap.ID)
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != domain.ClassificationBuy {
		t.Errorf("notified = %v", notifier.notified)
	}
	if len(bus.streamed) != 1 || bus.streamed[0] != "basket_signals" {
		t.Errorf("streamed = %v", bus.streamed)
	}
}

func TestTransitionsFireOnlyOnChange(t *testing.T) {
	books := &fakeBookSource{books: map[string]domain.OrderbookSnapshot{
		"t1": deepBook("t1", 0.38, 0.40),
		"t2": deepBook("t2", 0.38, 0.40),
	}}
	store := &fakeBasketStore{}
	signals := &fakeSignalStore{}
	bus := &fakeBus{}
	notifier := &fakeNotifier{}
	svc := newTestService(books, store, signals, nil, bus, notifier)

	ctx := context.Background()
	ev := testEvent()

	// Two identical buy cycles: one signal, one notification.
	for i := 0; i < 2; i++ {
		if _, err := svc.EvaluateEvent(ctx, ev); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if len(signals.inserted) != 1 {
		t.Errorf("signal inserts after repeat = %d, want 1", len(signals.inserted))
	}
	if len(notifier.notified) != 1 {
		t.Errorf("notifications after repeat = %d, want 1", len(notifier.notified))
	}
	// History still gets every snapshot.
	if len(store.inserted) != 2 {
		t.Errorf("history inserts = %d, want 2", len(store.inserted))
	}

	// Market moves back inside the band: notification fires (cleared) but no
	// signal row is written for balanced.
	books.books = map[string]domain.OrderbookSnapshot{
		"t1": deepBook("t1", 0.48, 0.50),
		"t2": deepBook("t2", 0.48, 0.50),
	}
	if _, err := svc.EvaluateEvent(ctx, ev); err != nil {
		t.Fatalf("balanced cycle: %v", err)
	}
	if len(signals.inserted) != 1 {
		t.Errorf("signal inserts after clear = %d, want 1", len(signals.inserted))
	}
	if len(notifier.notified) != 2 || notifier.notified[1] != domain.ClassificationBalanced {
		t.Errorf("notified = %v", notifier.notified)
	}
}

func TestFirstBalancedObservationIsQuiet(t *testing.T) {
	books := &fakeBookSource{books: map[string]domain.OrderbookSnapshot{
		"t1": deepBook("t1", 0.48, 0.50),
		"t2": deepBook("t2", 0.48, 0.50),
	}}
	signals := &fakeSignalStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(books, nil, signals, nil, nil, notifier)

	if _, err := svc.EvaluateEvent(context.Background(), testEvent()); err != nil {
		t.Fatalf("EvaluateEvent: %v", err)
	}
	if len(signals.inserted) != 0 {
		t.Errorf("signal inserts = %d, want 0", len(signals.inserted))
	}
	if len(notifier.notified) != 0 {
		t.Errorf("notifications = %d, want 0", len(notifier.notified))
	}
}

func TestCachedBookSourceSkipsMissingTokens(t *testing.T) {
	cache := &fakeOrderbookCache{books: map[string]domain.OrderbookSnapshot{
		"t1": deepBook("t1", 0.40, 0.42),
	}}
	src := CachedBookSource{Cache: cache}

	books, err := src.GetBooks(context.Background(), []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("GetBooks: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("got %d books, want 1", len(books))
	}
	if _, ok := books["t1"]; !ok {
		t.Error("t1 missing from result")
	}
}

type fakeOrderbookCache struct {
	books map[string]domain.OrderbookSnapshot
}

func (f *fakeOrderbookCache) SetSnapshot(ctx context.Context, tokenID string, snap domain.OrderbookSnapshot) error {
	if f.books == nil {
		f.books = make(map[string]domain.OrderbookSnapshot)
	}
	f.books[tokenID] = snap
	return nil
}

func (f *fakeOrderbookCache) GetSnapshot(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	snap, ok := f.books[tokenID]
	if !ok {
		return domain.OrderbookSnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

func (f *fakeOrderbookCache) UpdateLevel(ctx context.Context, tokenID string, side string, price, size float64) error {
	return nil
}

func (f *fakeOrderbookCache) GetBBO(ctx context.Context, tokenID string) (float64, float64, error) {
	snap, ok := f.books[tokenID]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	return snap.BestBid, snap.BestAsk, nil
}

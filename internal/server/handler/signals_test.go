package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

type fakeSignalStore struct {
	recs []domain.SignalRecord
}

func (f *fakeSignalStore) Insert(ctx context.Context, rec domain.SignalRecord) error {
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeSignalStore) ListRecent(ctx context.Context, eventSlug string, limit int) ([]domain.SignalRecord, error) {
	if limit > 0 && len(f.recs) > limit {
		return f.recs[:limit], nil
	}
	return f.recs, nil
}

func (f *fakeSignalStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SignalRecord, error) {
	return f.recs, nil
}

func (f *fakeSignalStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeSignalBus struct {
	messages []domain.StreamMessage
	lastID   string
	count    int
}

func (f *fakeSignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return nil
}

func (f *fakeSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeSignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return nil
}

func (f *fakeSignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	f.lastID = lastID
	f.count = count
	var out []domain.StreamMessage
	for _, m := range f.messages {
		if m.ID > lastID {
			out = append(out, m)
		}
		if len(out) == count {
			break
		}
	}
	return out, nil
}

func TestSignalsListRecent(t *testing.T) {
	store := &fakeSignalStore{recs: []domain.SignalRecord{
		{ID: "sig-1", EventSlug: "test-election", Classification: domain.ClassificationBuy, Profit: 0.05},
	}}
	h := NewSignalHandler(store, nil, "basket_signals", "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/signals/recent", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got struct {
		Count   int                   `json:"count"`
		Signals []domain.SignalRecord `json:"signals"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Count != 1 || got.Signals[0].ID != "sig-1" {
		t.Errorf("unexpected response: %+v", got)
	}
}

func TestStreamCatchUpReplaysAfterID(t *testing.T) {
	bus := &fakeSignalBus{messages: []domain.StreamMessage{
		{ID: "1-0", Payload: []byte(`{"classification":"buy"}`)},
		{ID: "2-0", Payload: []byte(`{"classification":"balanced"}`)},
	}}
	h := NewSignalHandler(&fakeSignalStore{}, bus, "basket_signals", "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.StreamCatchUp(rec, httptest.NewRequest(http.MethodGet, "/api/signals/stream?after=1-0", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if bus.lastID != "1-0" {
		t.Errorf("stream read from %q, want %q", bus.lastID, "1-0")
	}

	var got struct {
		Count   int    `json:"count"`
		LastID  string `json:"last_id"`
		Entries []struct {
			ID      string          `json:"id"`
			Payload json.RawMessage `json:"payload"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Count != 1 {
		t.Fatalf("count = %d, want 1", got.Count)
	}
	if got.Entries[0].ID != "2-0" {
		t.Errorf("entry ID = %q, want %q", got.Entries[0].ID, "2-0")
	}
	if got.LastID != "2-0" {
		t.Errorf("last_id = %q, want %q", got.LastID, "2-0")
	}
}

func TestStreamCatchUpDefaultsToBeginning(t *testing.T) {
	bus := &fakeSignalBus{messages: []domain.StreamMessage{
		{ID: "1-0", Payload: []byte(`{"classification":"sell"}`)},
	}}
	h := NewSignalHandler(&fakeSignalStore{}, bus, "basket_signals", "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.StreamCatchUp(rec, httptest.NewRequest(http.MethodGet, "/api/signals/stream", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if bus.lastID != "0" {
		t.Errorf("stream read from %q, want %q", bus.lastID, "0")
	}
}

func TestStreamCatchUpWithoutBus(t *testing.T) {
	h := NewSignalHandler(&fakeSignalStore{}, nil, "basket_signals", "test-election", discardLogger())

	rec := httptest.NewRecorder()
	h.StreamCatchUp(rec, httptest.NewRequest(http.MethodGet, "/api/signals/stream", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

type fakeBlobWriter struct {
	objects map[string][]byte
}

func newFakeBlobWriter() *fakeBlobWriter {
	return &fakeBlobWriter{objects: make(map[string][]byte)}
}

func (f *fakeBlobWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = buf
	return nil
}

func (f *fakeBlobWriter) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	return f.Put(ctx, path, data, "")
}

type fakeBasketArchiveStore struct {
	snaps []domain.BasketSnapshot
}

func (f *fakeBasketArchiveStore) ListBefore(ctx context.Context, before time.Time) ([]domain.BasketSnapshot, error) {
	var out []domain.BasketSnapshot
	for _, s := range f.snaps {
		if s.EvaluatedAt.Before(before) {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeSignalArchiveStore struct {
	recs []domain.SignalRecord
}

func (f *fakeSignalArchiveStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SignalRecord, error) {
	var out []domain.SignalRecord
	for _, r := range f.recs {
		if r.DetectedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func archivedSnapshot(id string, at time.Time) domain.BasketSnapshot {
	return domain.BasketSnapshot{
		ID:          id,
		EventSlug:   "test-election",
		EvaluatedAt: at,
	}
}

func TestArchiveBasketsWritesJSONL(t *testing.T) {
	writer := newFakeBlobWriter()
	old := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeBasketArchiveStore{snaps: []domain.BasketSnapshot{
		archivedSnapshot("row-1", old),
		archivedSnapshot("row-2", old.Add(time.Hour)),
	}}
	arch := NewArchiver(writer, store, &fakeSignalArchiveStore{})

	n, err := arch.ArchiveBaskets(context.Background(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ArchiveBaskets: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived = %d, want 2", n)
	}
	if len(writer.objects) != 1 {
		t.Fatalf("objects written = %d, want 1", len(writer.objects))
	}
	for path, data := range writer.objects {
		if !strings.HasPrefix(path, "archive/baskets/2026-08/") {
			t.Errorf("object key = %q, want archive/baskets/2026-08/ prefix", path)
		}
		if lines := bytes.Count(data, []byte("\n")); lines != 2 {
			t.Errorf("JSONL lines = %d, want 2", lines)
		}
	}
}

func TestArchiveBasketsEmptyWritesNothing(t *testing.T) {
	writer := newFakeBlobWriter()
	arch := NewArchiver(writer, &fakeBasketArchiveStore{}, &fakeSignalArchiveStore{})

	n, err := arch.ArchiveBaskets(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("ArchiveBaskets: %v", err)
	}
	if n != 0 {
		t.Errorf("archived = %d, want 0", n)
	}
	if len(writer.objects) != 0 {
		t.Errorf("objects written = %d, want 0", len(writer.objects))
	}
}

// Two sweeps in the same month must land on distinct keys. The caller
// prunes archived rows from the primary store after each upload, so a
// shared key would let the second upload replace the object holding rows
// that no longer exist anywhere else.
func TestSweepsInSameMonthKeepEarlierArchives(t *testing.T) {
	writer := newFakeBlobWriter()
	rowA := archivedSnapshot("row-A", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	rowB := archivedSnapshot("row-B", time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC))
	store := &fakeBasketArchiveStore{snaps: []domain.BasketSnapshot{rowA, rowB}}
	arch := NewArchiver(writer, store, &fakeSignalArchiveStore{})

	// First sweep picks up only row-A; the caller then deletes it.
	if _, err := arch.ArchiveBaskets(context.Background(), rowA.EvaluatedAt.Add(time.Hour)); err != nil {
		t.Fatalf("sweep 1: %v", err)
	}
	store.snaps = []domain.BasketSnapshot{rowB}

	// Second sweep, next day, picks up row-B.
	if _, err := arch.ArchiveBaskets(context.Background(), rowB.EvaluatedAt.Add(time.Hour)); err != nil {
		t.Fatalf("sweep 2: %v", err)
	}

	if len(writer.objects) != 2 {
		t.Fatalf("objects after two sweeps = %d, want 2", len(writer.objects))
	}

	var sawA, sawB bool
	for _, data := range writer.objects {
		if bytes.Contains(data, []byte("row-A")) {
			sawA = true
		}
		if bytes.Contains(data, []byte("row-B")) {
			sawB = true
		}
	}
	if !sawA {
		t.Error("row-A missing from cold storage after the second sweep")
	}
	if !sawB {
		t.Error("row-B missing from cold storage after the second sweep")
	}
}

func TestArchivePathUniquePerCutoff(t *testing.T) {
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	p1 := archivePath("signals", base)
	p2 := archivePath("signals", base.Add(24*time.Hour))

	if p1 == p2 {
		t.Fatalf("cutoffs a day apart share key %q", p1)
	}
	if !strings.HasPrefix(p1, "archive/signals/2026-08/") || !strings.HasPrefix(p2, "archive/signals/2026-08/") {
		t.Errorf("keys %q, %q not partitioned under archive/signals/2026-08/", p1, p2)
	}
}

package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// Narrow store interfaces required by the archiver. The Postgres stores
// satisfy these implicitly through their ListBefore methods; the archiver
// does not need the full store surface.

// BasketArchiveStore provides read access to basket history for archival.
type BasketArchiveStore interface {
	// ListBefore returns all basket snapshots evaluated strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.BasketSnapshot, error)
}

// SignalArchiveStore provides read access to signal history for archival.
type SignalArchiveStore interface {
	// ListBefore returns all signals detected strictly before the given
	// cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.SignalRecord, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for old
// records, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	baskets BasketArchiveStore
	signals SignalArchiveStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, baskets BasketArchiveStore, signals SignalArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		baskets: baskets,
		signals: signals,
	}
}

// ArchiveBaskets queries all basket snapshots before the cutoff, serializes
// them to JSONL, and uploads the file to S3 under archive/baskets/.
// It returns the count of archived records.
func (a *ArchiveImpl) ArchiveBaskets(ctx context.Context, before time.Time) (int64, error) {
	snaps, err := a.baskets.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive baskets query: %w", err)
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(snaps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive baskets marshal: %w", err)
	}

	path := archivePath("baskets", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive baskets upload: %w", err)
	}

	return int64(len(snaps)), nil
}

// ArchiveSignals queries all signals before the cutoff, serializes them to
// JSONL, and uploads the file to S3 under archive/signals/.
// It returns the count of archived records.
func (a *ArchiveImpl) ArchiveSignals(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.signals.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals marshal: %w", err)
	}

	path := archivePath("signals", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive signals upload: %w", err)
	}

	return int64(len(recs)), nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time and suffixed with the full cutoff so every
// sweep writes a fresh object. Put overwrites; if two sweeps in the same
// month shared a key, the second upload would replace rows the first sweep
// had already pruned from the primary store.
//
//	archive/baskets/2026-08/20260829T120000Z.jsonl
//	archive/signals/2026-08/20260829T120000Z.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl",
		kind,
		before.UTC().Format("2006-01"),
		before.UTC().Format("20060102T150405Z"),
	)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

const signalSelectCols = `id, event_slug, classification, profit,
	sum_bids, sum_asks, snapshot_id, detected_at`

// Insert stores one signal transition.
func (s *SignalStore) Insert(ctx context.Context, rec domain.SignalRecord) error {
	const query = `
		INSERT INTO signal_history (
			id, event_slug, classification, profit,
			sum_bids, sum_asks, snapshot_id, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var snapshotID *string
	if rec.SnapshotID != "" {
		snapshotID = &rec.SnapshotID
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.EventSlug, string(rec.Classification), rec.Profit,
		rec.SumBids, rec.SumAsks, snapshotID, rec.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert signal %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the most recent signals for an event, newest first.
func (s *SignalStore) ListRecent(ctx context.Context, eventSlug string, limit int) ([]domain.SignalRecord, error) {
	query := `SELECT ` + signalSelectCols + `
		FROM signal_history WHERE event_slug = $1 ORDER BY detected_at DESC`
	args := []any{eventSlug}

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent signals: %w", err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

// ListBefore returns all signals detected before the cutoff, oldest first.
func (s *SignalStore) ListBefore(ctx context.Context, before time.Time) ([]domain.SignalRecord, error) {
	query := `SELECT ` + signalSelectCols + `
		FROM signal_history WHERE detected_at < $1 ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return collectSignals(rows)
}

// DeleteBefore removes signals detected before the cutoff and returns the
// number of deleted rows.
func (s *SignalStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM signal_history WHERE detected_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete signals before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func collectSignals(rows pgx.Rows) ([]domain.SignalRecord, error) {
	var recs []domain.SignalRecord
	for rows.Next() {
		var rec domain.SignalRecord
		var classification string
		var snapshotID *string

		if err := rows.Scan(
			&rec.ID, &rec.EventSlug, &classification, &rec.Profit,
			&rec.SumBids, &rec.SumAsks, &snapshotID, &rec.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal: %w", err)
		}

		rec.Classification = domain.Classification(classification)
		if snapshotID != nil {
			rec.SnapshotID = *snapshotID
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: signal rows: %w", err)
	}
	return recs, nil
}

// Compile-time interface check.
var _ domain.SignalStore = (*SignalStore)(nil)

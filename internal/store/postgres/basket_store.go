package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// BasketStore implements domain.BasketStore using PostgreSQL. Outcome quotes
// are stored as JSONB; signal fields are broken out into columns so history
// queries can filter and aggregate without unpacking JSON.
type BasketStore struct {
	pool *pgxpool.Pool
}

// NewBasketStore creates a new BasketStore backed by the given connection pool.
func NewBasketStore(pool *pgxpool.Pool) *BasketStore {
	return &BasketStore{pool: pool}
}

const basketSelectCols = `id, event_slug, classification, profit,
	sum_bids, sum_asks, priced_bids, priced_asks, total_outcomes, partial,
	depth, outcomes, evaluated_at`

// Insert stores one evaluated basket snapshot.
func (s *BasketStore) Insert(ctx context.Context, snap domain.BasketSnapshot) error {
	const query = `
		INSERT INTO basket_history (
			id, event_slug, classification, profit,
			sum_bids, sum_asks, priced_bids, priced_asks, total_outcomes, partial,
			depth, outcomes, evaluated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12, $13
		)`

	outcomes, err := json.Marshal(snap.Outcomes)
	if err != nil {
		return fmt.Errorf("postgres: marshal outcomes %s: %w", snap.ID, err)
	}

	_, err = s.pool.Exec(ctx, query,
		snap.ID, snap.EventSlug, string(snap.Signal.Classification), snap.Signal.Profit,
		snap.Signal.SumBids, snap.Signal.SumAsks, snap.Signal.PricedBids, snap.Signal.PricedAsks,
		snap.Signal.Total, snap.Signal.Partial,
		snap.Depth, outcomes, snap.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert basket %s: %w", snap.ID, err)
	}
	return nil
}

// GetByID retrieves one basket snapshot. It returns domain.ErrNotFound when
// no row matches.
func (s *BasketStore) GetByID(ctx context.Context, id string) (domain.BasketSnapshot, error) {
	query := `SELECT ` + basketSelectCols + ` FROM basket_history WHERE id = $1`

	snap, err := scanBasket(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BasketSnapshot{}, domain.ErrNotFound
		}
		return domain.BasketSnapshot{}, fmt.Errorf("postgres: get basket %s: %w", id, err)
	}
	return snap, nil
}

// ListRecent returns basket snapshots for an event ordered newest first.
func (s *BasketStore) ListRecent(ctx context.Context, eventSlug string, opts domain.ListOpts) ([]domain.BasketSnapshot, error) {
	query := `SELECT ` + basketSelectCols + ` FROM basket_history WHERE event_slug = $1`
	args := []any{eventSlug}

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND evaluated_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND evaluated_at < $%d", len(args))
	}

	query += " ORDER BY evaluated_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent baskets: %w", err)
	}
	defer rows.Close()

	return collectBaskets(rows)
}

// ListBefore returns all basket snapshots evaluated before the cutoff,
// oldest first. The archiver uses this to page history into cold storage.
func (s *BasketStore) ListBefore(ctx context.Context, before time.Time) ([]domain.BasketSnapshot, error) {
	query := `SELECT ` + basketSelectCols + `
		FROM basket_history WHERE evaluated_at < $1 ORDER BY evaluated_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list baskets before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return collectBaskets(rows)
}

// DeleteBefore removes basket snapshots evaluated before the cutoff and
// returns the number of deleted rows.
func (s *BasketStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM basket_history WHERE evaluated_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete baskets before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

type basketRow interface {
	Scan(dest ...any) error
}

func scanBasket(row basketRow) (domain.BasketSnapshot, error) {
	var snap domain.BasketSnapshot
	var classification string
	var outcomes []byte

	if err := row.Scan(
		&snap.ID, &snap.EventSlug, &classification, &snap.Signal.Profit,
		&snap.Signal.SumBids, &snap.Signal.SumAsks, &snap.Signal.PricedBids, &snap.Signal.PricedAsks,
		&snap.Signal.Total, &snap.Signal.Partial,
		&snap.Depth, &outcomes, &snap.EvaluatedAt,
	); err != nil {
		return domain.BasketSnapshot{}, err
	}

	snap.Signal.Classification = domain.Classification(classification)
	if len(outcomes) > 0 {
		if err := json.Unmarshal(outcomes, &snap.Outcomes); err != nil {
			return domain.BasketSnapshot{}, fmt.Errorf("unmarshal outcomes: %w", err)
		}
	}
	return snap, nil
}

func collectBaskets(rows pgx.Rows) ([]domain.BasketSnapshot, error) {
	var snaps []domain.BasketSnapshot
	for rows.Next() {
		snap, err := scanBasket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan basket: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: basket rows: %w", err)
	}
	return snaps, nil
}

// Compile-time interface check.
var _ domain.BasketStore = (*BasketStore)(nil)

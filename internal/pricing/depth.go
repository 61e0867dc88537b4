// Package pricing implements the depth-weighted top-of-book price resolver.
// It is pure computation: no I/O, no caching, no shared state.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// Side selects which side of the book is being priced. The side determines
// the priority order in which resting levels are consumed.
type Side string

const (
	// SideBid prices the buyer side: levels are consumed from the highest
	// price down, the order most favorable to a seller hitting the book.
	SideBid Side = "bid"
	// SideAsk prices the seller side: levels are consumed from the lowest
	// price up, cheapest liquidity first.
	SideAsk Side = "ask"
)

// Resolve computes the volume-weighted average execution price to fill
// targetVolume against the given resting levels. Levels need not be
// pre-sorted; Resolve sorts a copy with the side-appropriate comparator
// before walking the book.
//
// If the book holds strictly less total size than targetVolume, Resolve
// returns domain.ErrInsufficientDepth: a partial average would understate
// the cost of actually trading the depth target, and 0.0 is a legitimate
// price that must never double as a missing-liquidity marker.
//
// Malformed input (non-positive target, a level with Size <= 0 or Price
// outside [0,1], NaN/Inf anywhere) yields domain.ErrInvalidLevel rather
// than being clamped.
func Resolve(levels []domain.PriceLevel, side Side, targetVolume float64) (float64, error) {
	if !(targetVolume > 0) || math.IsInf(targetVolume, 0) {
		return 0, fmt.Errorf("pricing: target volume %v: %w", targetVolume, domain.ErrInvalidLevel)
	}
	if side != SideBid && side != SideAsk {
		return 0, fmt.Errorf("pricing: unknown side %q: %w", side, domain.ErrInvalidLevel)
	}
	for _, lvl := range levels {
		if err := validateLevel(lvl); err != nil {
			return 0, err
		}
	}
	if len(levels) == 0 {
		return 0, domain.ErrInsufficientDepth
	}

	sorted := make([]domain.PriceLevel, len(levels))
	copy(sorted, levels)
	if side == SideAsk {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })
	} else {
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price > sorted[j].Price })
	}

	var filled, weightedCost float64
	for _, lvl := range sorted {
		take := math.Min(targetVolume-filled, lvl.Size)
		weightedCost += lvl.Price * take
		filled += take
		if filled >= targetVolume {
			break
		}
	}

	if filled < targetVolume {
		return 0, domain.ErrInsufficientDepth
	}
	return weightedCost / filled, nil
}

// ResolveQuote resolves one side of a book into a domain.DepthPrice,
// translating ErrInsufficientDepth into an invalid (missing) price while
// still surfacing validation errors to the caller.
func ResolveQuote(levels []domain.PriceLevel, side Side, targetVolume float64) (domain.DepthPrice, error) {
	price, err := Resolve(levels, side, targetVolume)
	switch {
	case err == nil:
		return domain.DepthPrice{Price: price, Valid: true}, nil
	case errors.Is(err, domain.ErrInsufficientDepth):
		return domain.DepthPrice{}, nil
	default:
		return domain.DepthPrice{}, err
	}
}

func validateLevel(lvl domain.PriceLevel) error {
	if math.IsNaN(lvl.Price) || math.IsInf(lvl.Price, 0) || lvl.Price < 0 || lvl.Price > 1 {
		return fmt.Errorf("pricing: price %v out of [0,1]: %w", lvl.Price, domain.ErrInvalidLevel)
	}
	if math.IsNaN(lvl.Size) || math.IsInf(lvl.Size, 0) || lvl.Size <= 0 {
		return fmt.Errorf("pricing: size %v must be positive: %w", lvl.Size, domain.ErrInvalidLevel)
	}
	return nil
}

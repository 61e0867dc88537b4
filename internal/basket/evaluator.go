// Package basket evaluates a set of per-outcome depth prices against the
// fair value of 1.0 and classifies the result as a buy-the-basket signal, a
// sell-the-basket signal, or balanced.
package basket

import "github.com/alanyoungcy/basketwatch/internal/domain"

// Default tolerance band around the fair value of 1.0.
const (
	DefaultLowThreshold  = 0.97
	DefaultHighThreshold = 1.03
)

// Thresholds bound the tolerance band. A sum of asks strictly below Low
// triggers a buy signal; a sum of bids strictly above High triggers a sell
// signal. Equality with either threshold is balanced.
type Thresholds struct {
	Low  float64
	High float64
}

// DefaultThresholds returns the standard 0.97/1.03 band.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

// Evaluate sums the valid bids and asks across outcomes and classifies the
// basket. It is a total function: every input yields a BasketSignal.
//
// Missing sides are excluded from the sums rather than treated as zero, and
// a basket missing any outcome on the driving side never classifies as buy
// or sell — the partial sums are still reported for display. The buy signal
// is driven by the acquisition cost (sum of asks) and the sell signal by
// the liquidation value (sum of bids).
func Evaluate(quotes []domain.OutcomeQuote, th Thresholds) domain.BasketSignal {
	sig := domain.BasketSignal{
		Classification: domain.ClassificationBalanced,
		Total:          len(quotes),
	}

	for _, q := range quotes {
		if q.Bid.Valid {
			sig.SumBids += q.Bid.Price
			sig.PricedBids++
		}
		if q.Ask.Valid {
			sig.SumAsks += q.Ask.Price
			sig.PricedAsks++
		}
	}
	sig.Partial = sig.PricedBids < sig.Total || sig.PricedAsks < sig.Total

	if sig.Total == 0 {
		sig.Partial = true
		return sig
	}

	switch {
	case sig.PricedAsks == sig.Total && sig.SumAsks < th.Low:
		sig.Classification = domain.ClassificationBuy
		sig.Profit = 1 - sig.SumAsks
	case sig.PricedBids == sig.Total && sig.SumBids > th.High:
		sig.Classification = domain.ClassificationSell
		sig.Profit = sig.SumBids - 1
	}

	return sig
}

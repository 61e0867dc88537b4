package domain

import "time"

// DepthPrice is a resolved depth-weighted price for one side of one outcome.
// Valid is false when the book could not fill the depth target; a zero price
// with Valid=true is a legitimate quote and must not be conflated with it.
type DepthPrice struct {
	Price float64
	Valid bool
}

// OutcomeQuote bundles the resolved bid and ask for one outcome of the
// tracked event at a single depth target.
type OutcomeQuote struct {
	OutcomeID string
	Name      string
	Bid       DepthPrice
	Ask       DepthPrice
}

// Classification labels the basket relative to the fair value of 1.0.
type Classification string

const (
	// ClassificationBuy means the basket can be acquired below par: the sum
	// of asks is under the low threshold.
	ClassificationBuy Classification = "buy"
	// ClassificationSell means the basket can be liquidated above par: the
	// sum of bids is over the high threshold.
	ClassificationSell Classification = "sell"
	// ClassificationBalanced means the basket sums sit inside the tolerance
	// band (or insufficient outcomes are priced to say otherwise).
	ClassificationBalanced Classification = "balanced"
)

// BasketSignal is the evaluator's verdict on one set of outcome quotes.
type BasketSignal struct {
	Classification Classification
	// Profit is the estimated risk-free profit per basket unit:
	// 1 - SumAsks for a buy, SumBids - 1 for a sell, 0 when balanced.
	Profit     float64
	SumBids    float64
	SumAsks    float64
	PricedBids int // outcomes with a valid bid
	PricedAsks int // outcomes with a valid ask
	Total      int // outcomes in the basket
	// Partial is true when at least one outcome is missing a valid price on
	// either side. Partial baskets never classify as buy or sell.
	Partial bool
}

// BasketSnapshot is one full evaluation cycle: every outcome quote plus the
// derived signal, frozen at EvaluatedAt. Snapshots are immutable once built.
type BasketSnapshot struct {
	ID          string
	EventSlug   string
	Outcomes    []OutcomeQuote
	Signal      BasketSignal
	Depth       float64
	EvaluatedAt time.Time
}

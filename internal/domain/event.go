package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Market represents one Polymarket prediction market (one outcome of the
// tracked event, as a Yes/No pair of tokens).
type Market struct {
	ID          string
	Question    string
	Slug        string
	Outcomes    [2]string // e.g. ["Yes","No"]
	TokenIDs    [2]string // ERC-1155 token IDs (76-digit strings)
	ConditionID string
	Volume      float64
	Status      MarketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// YesTokenID returns the token ID for the Yes side, which prices the outcome
// itself. Falls back to the first token when outcome labels are unusual.
func (m Market) YesTokenID() string {
	for i, o := range m.Outcomes {
		if o == "Yes" {
			return m.TokenIDs[i]
		}
	}
	return m.TokenIDs[0]
}

// TrackedOutcome binds one configured outcome name to the market and token
// that price it. Built once per discovery pass by the tracker.
type TrackedOutcome struct {
	OutcomeID string // stable identifier: the market's condition ID
	Name      string // display name, e.g. a candidate
	MarketID  string
	TokenID   string // Yes-side token whose book is priced
}

// Event is the tracked election event: a basket of outcomes whose fair-value
// prices should sum to 1.0.
type Event struct {
	ID       string
	Slug     string
	Title    string
	Outcomes []TrackedOutcome
}

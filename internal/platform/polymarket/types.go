package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBookLevel is one price level as returned by the CLOB book endpoint.
// Prices and sizes are decimal strings on the wire.
type APIBookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is an orderbook as returned by GET /book.
type APIBook struct {
	Market    string         `json:"market"`
	AssetID   string         `json:"asset_id"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
	Hash      string         `json:"hash"`
	Timestamp string         `json:"timestamp"` // Unix milliseconds as string
}

// ToDomainSnapshot converts the wire book into a domain snapshot. Levels
// that fail to parse are skipped; BestBid/BestAsk are derived from the
// parsed levels rather than trusted from the API.
func (b *APIBook) ToDomainSnapshot() domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{
		TokenID:   b.AssetID,
		Bids:      parseLevels(b.Bids),
		Asks:      parseLevels(b.Asks),
		Timestamp: time.Now().UTC(),
	}
	if ms, err := strconv.ParseInt(b.Timestamp, 10, 64); err == nil && ms > 0 {
		snap.Timestamp = time.UnixMilli(ms).UTC()
	}
	for _, lvl := range snap.Bids {
		if lvl.Price > snap.BestBid {
			snap.BestBid = lvl.Price
		}
	}
	for i, lvl := range snap.Asks {
		if i == 0 || lvl.Price < snap.BestAsk {
			snap.BestAsk = lvl.Price
		}
	}
	return snap
}

func parseLevels(in []APIBookLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, lvl := range in {
		price, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			continue
		}
		size, err := strconv.ParseFloat(lvl.Size, 64)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Size: size})
	}
	return out
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIEvent represents an event as returned by the Polymarket Gamma API.
// An event groups one or more related markets.
type APIEvent struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Active      flexBool    `json:"active"`
	Closed      bool        `json:"closed"`
	Markets     []APIMarket `json:"markets"`
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	ConditionID   string   `json:"conditionId"`
	Slug          string   `json:"slug"`
	Active        flexBool `json:"active"`
	Closed        bool     `json:"closed"`
	Outcomes      string   `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	ClobTokenIDs  string   `json:"clobTokenIds"`  // JSON-encoded token ID array
	OutcomePrices string   `json:"outcomePrices"` // JSON-encoded price strings
	Volume        string   `json:"volume"`
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
}

// ToDomainMarket converts an APIMarket to a domain.Market, decoding the
// JSON-encoded outcome and token arrays.
func (m *APIMarket) ToDomainMarket() domain.Market {
	market := domain.Market{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		ConditionID: m.ConditionID,
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err == nil {
		for i := 0; i < len(outcomes) && i < 2; i++ {
			market.Outcomes[i] = outcomes[i]
		}
	}

	var tokenIDs []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokenIDs); err == nil {
		for i := 0; i < len(tokenIDs) && i < 2; i++ {
			market.TokenIDs[i] = tokenIDs[i]
		}
	}

	if v, err := strconv.ParseFloat(m.Volume, 64); err == nil {
		market.Volume = v
	}

	switch {
	case m.Closed:
		market.Status = domain.MarketStatusClosed
	case bool(m.Active):
		market.Status = domain.MarketStatusActive
	default:
		market.Status = domain.MarketStatusSettled
	}

	if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		market.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		market.UpdatedAt = t
	}

	return market
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is a subscription command sent to the market WebSocket.
type WSCommand struct {
	Type    string   `json:"type"`    // "subscribe" / "unsubscribe"
	Channel string   `json:"channel"` // "book", "price_change"
	Assets  []string `json:"assets_ids"`
}

// wsEnvelope is the common shape of incoming WebSocket messages; EventType
// selects the concrete payload.
type wsEnvelope struct {
	EventType string `json:"event_type"`
}

// wsBookMessage is a full book snapshot pushed on the "book" channel.
type wsBookMessage struct {
	EventType string         `json:"event_type"`
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []APIBookLevel `json:"bids"`
	Asks      []APIBookLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
}

// wsPriceChangeMessage is an incremental level update on "price_change".
type wsPriceChangeMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Side      string `json:"side"` // "BUY" or "SELL"
	Timestamp string `json:"timestamp"`
}

func (m *wsBookMessage) toDomainSnapshot() domain.OrderbookSnapshot {
	book := APIBook{
		Market:    m.Market,
		AssetID:   m.AssetID,
		Bids:      m.Bids,
		Asks:      m.Asks,
		Timestamp: m.Timestamp,
	}
	return book.ToDomainSnapshot()
}

func (m *wsPriceChangeMessage) toDomain() domain.PriceChange {
	change := domain.PriceChange{
		TokenID:   m.AssetID,
		Side:      strings.ToUpper(m.Side),
		Timestamp: time.Now().UTC(),
	}
	if p, err := strconv.ParseFloat(m.Price, 64); err == nil {
		change.Price = p
	}
	if s, err := strconv.ParseFloat(m.Size, 64); err == nil {
		change.Size = s
	}
	if ms, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil && ms > 0 {
		change.Timestamp = time.UnixMilli(ms).UTC()
	}
	return change
}

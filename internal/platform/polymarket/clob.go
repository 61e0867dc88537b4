package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/basketwatch/internal/domain"
)

// ClobClient is the REST client for the public, unauthenticated endpoints of
// the Polymarket CLOB (Central Limit Order Book) API: order books and
// per-token prices. basketwatch never places orders, so no signing or API
// key derivation is wired here.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetBook fetches the full order book for one outcome token.
func (c *ClobClient) GetBook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/book?"+params.Encode())
	if err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var apiBook APIBook
	if err := json.Unmarshal(body, &apiBook); err != nil {
		return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	snap := apiBook.ToDomainSnapshot()
	if snap.TokenID == "" {
		snap.TokenID = tokenID
	}
	return snap, nil
}

// GetBooks fetches order books for multiple outcome tokens in one request
// via POST /books. Tokens missing from the response are absent from the
// returned map, not an error.
func (c *ClobClient) GetBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderbookSnapshot, error) {
	if len(tokenIDs) == 0 {
		return map[string]domain.OrderbookSnapshot{}, nil
	}

	reqBody := make([]map[string]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		reqBody = append(reqBody, map[string]string{"token_id": id})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: marshal books request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/books", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: create books request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: books request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: read books response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("polymarket/clob: books HTTP %d: %s", resp.StatusCode, truncate(body))
	}

	var apiBooks []APIBook
	if err := json.Unmarshal(body, &apiBooks); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode books: %w", err)
	}

	out := make(map[string]domain.OrderbookSnapshot, len(apiBooks))
	for i := range apiBooks {
		snap := apiBooks[i].ToDomainSnapshot()
		if snap.TokenID != "" {
			out[snap.TokenID] = snap
		}
	}
	return out, nil
}

// GetMidpoint fetches the midpoint price for a token.
func (c *ClobClient) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/midpoint?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: get midpoint %s: %w", tokenID, err)
	}

	var result struct {
		Mid string `json:"mid"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode midpoint: %w", err)
	}

	var mid float64
	if _, err := fmt.Sscanf(result.Mid, "%g", &mid); err != nil {
		return 0, fmt.Errorf("polymarket/clob: parse midpoint %q: %w", result.Mid, err)
	}
	return mid, nil
}

// doGet performs a GET request against the CLOB API and returns the raw body.
func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, domain.ErrRateLimited
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body))
	}

	return body, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Package lidoapi reads off-chain protocol statistics published by Lido.
package lidoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultStatsURL is the public statistics endpoint.
const DefaultStatsURL = "https://solana.lido.fi/api/stats"

// Amount is a value quoted in SOL and USD.
type Amount struct {
	Sol decimal.Decimal `json:"sol"`
	USD decimal.Decimal `json:"usd"`
}

// Stats is the payload of the statistics endpoint.
type Stats struct {
	APR                decimal.Decimal `json:"apr"`
	StSolAccountsEmpty int64           `json:"numberOfStSolAccountsEmpty"`
	StSolAccountsTotal int64           `json:"numberOfStSolAccountsTotal"`
	SolPriceUSD        decimal.Decimal `json:"solPriceInUsd"`
	Stakers            int64           `json:"stakers"`
	TotalRewards       Amount          `json:"totalRewards"`
	TotalStaked        Amount          `json:"totalStaked"`
}

// Client fetches Stats over HTTP.
type Client struct {
	url    string
	client *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a statistics client. An empty url selects DefaultStatsURL.
func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultStatsURL
	}
	c := &Client{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats fetches the current statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get stats: status %d: %s", resp.StatusCode, body)
	}

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}

// Package datasource is the engine's fetch boundary: an HTTP client for the
// network-data contract plus the single normalization step that turns loose
// upstream payloads into one typed shape.
//
// Everything downstream of this package works with domain.Dataset and never
// branches on input shape ambiguity: tolerating the `links` alias for
// `edges`, loose timestamp formats, and out-of-range risk scores happens here
// and nowhere else.
package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flowscope/internal/config"
	"flowscope/internal/domain"
)

// FetchError is a network/data-source failure. It is retry-capable: the
// caller keeps the last good dataset and offers the user a retry.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("data source returned status %d", e.Status)
	}
	return fmt.Sprintf("data source unreachable: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client fetches network data from the configured source.
type Client struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewClient creates a data-source client.
func NewClient(cfg config.SourceConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:     logger,
	}
}

// NetworkData fetches and normalizes one dataset.
func (c *Client) NetworkData(ctx context.Context, f domain.Filters) (*domain.Dataset, error) {
	u := c.baseURL + "/api/network/data?" + filterQuery(f).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	return Normalize(body)
}

// PatternAnalysis fetches the informational pattern panel data.
func (c *Client) PatternAnalysis(ctx context.Context, f domain.Filters) ([]domain.Pattern, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal filters: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/network/patterns", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Status: resp.StatusCode}
	}

	var out struct {
		Results []domain.Pattern `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode patterns: %w", err)
	}
	return out.Results, nil
}

func filterQuery(f domain.Filters) url.Values {
	q := url.Values{}
	if f.FocusAccount != "" {
		q.Set("focus_account", f.FocusAccount)
	}
	if f.Depth > 0 {
		q.Set("depth", strconv.Itoa(f.Depth))
	}
	if !f.MinAmount.IsZero() {
		q.Set("min_amount", f.MinAmount.String())
	}
	if f.RiskLevel != "" {
		q.Set("risk_level", f.RiskLevel)
	}
	if f.Currency != "" {
		q.Set("currency", f.Currency)
	}
	if f.WindowDays > 0 {
		q.Set("window_days", strconv.Itoa(f.WindowDays))
	}
	return q
}

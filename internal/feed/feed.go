// Package feed implements the candle.Feed interface against the venue's
// HTTP candle endpoint: a plain GET with symbol/interval/limit query
// params, defensive number parsing since the endpoint mixes string and
// numeric JSON fields, and a chronological-order guarantee on return.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/perpgrid/gridbot/internal/candle"
)

// HTTPFeed fetches OHLCV candles from the venue's /candles endpoint.
type HTTPFeed struct {
	base string
	hc   *http.Client
}

// NewHTTPFeed builds a feed against base (the same API_URL the exchange
// adapter uses), with its own HTTP client using a 10s timeout.
func NewHTTPFeed(base string) *HTTPFeed {
	return &HTTPFeed{base: strings.TrimRight(base, "/"), hc: &http.Client{Timeout: 10 * time.Second}}
}

type candleRow struct {
	Time   string `json:"time"`
	Open   any    `json:"open"`
	High   any    `json:"high"`
	Low    any    `json:"low"`
	Close  any    `json:"close"`
	Volume any    `json:"volume"`
}

// GetCandles implements candle.Feed.
func (f *HTTPFeed) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]candle.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	if limit <= 0 {
		limit = 100
	}
	q.Set("limit", strconv.Itoa(limit))

	u := fmt.Sprintf("%s/candles?%s", f.base, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: request candles: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("feed: candles %d: %s", resp.StatusCode, string(b))
	}

	var rows []candleRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("feed: decode candles: %w", err)
	}

	if len(rows) < limit {
		return nil, fmt.Errorf("feed: got %d candles, want %d", len(rows), limit)
	}

	out := make([]candle.Candle, 0, len(rows))
	for _, r := range rows {
		out = append(out, candle.Candle{
			Open:     parseFloat(r.Open),
			High:     parseFloat(r.High),
			Low:      parseFloat(r.Low),
			Close:    parseFloat(r.Close),
			Interval: parseTime(r.Time),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interval.Before(out[j].Interval) })
	return out, nil
}

func parseFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC()
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC()
	}
	return time.Time{}
}

// Package candle defines the OHLCV type and the external feed interface
// the indicator engine depends on. The underlying data source a Feed
// implementation talks to is up to the caller; internal/feed provides an
// HTTP-backed one.
package candle

import (
	"context"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Interval time.Time
}

// Feed is the external collaborator that supplies recent candles. A
// conforming implementation returns candles ordered oldest-first, is
// finite and not restartable per call, and returns an error rather than a
// short slice when it cannot satisfy limit.
type Feed interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

package indicator

import (
	"context"
	"fmt"
	"time"

	"github.com/perpgrid/gridbot/internal/candle"
	"github.com/perpgrid/gridbot/internal/errs"
)

// Period is the lookback used for both RSI and ADX.
const Period = 14

// MinCandles is the minimum history the engine requires before it will
// produce a snapshot.
const MinCandles = 2*Period + 20

// Snapshot is everything the risk gate and the operator need from one
// tick's indicator pass. EMA9/EMA21 are supplemental context and are not
// consulted by the risk gate's decision table.
type Snapshot struct {
	RSI      float64
	ADX      float64
	EMA9     float64
	EMA21    float64
	Price    float64
	Interval time.Time
}

// Engine fetches recent candles from an external feed and computes RSI(14)
// and Wilder ADX(14), plus auxiliary EMAs for observability.
type Engine struct {
	feed      candle.Feed
	symbol    string
	timeframe string
}

// NewEngine binds an Engine to a feed and the symbol/timeframe it should
// request candles for.
func NewEngine(feed candle.Feed, symbol, timeframe string) *Engine {
	return &Engine{feed: feed, symbol: symbol, timeframe: timeframe}
}

// Snapshot fetches candles and computes the current indicator set. It
// returns errs.ErrFeedUnavailable (wrapped) if the feed errors or returns
// fewer than MinCandles candles.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	candles, err := e.feed.GetCandles(ctx, e.symbol, e.timeframe, MinCandles)
	if err != nil {
		return Snapshot{}, fmt.Errorf("indicator: fetch candles: %w", errs.ErrFeedUnavailable)
	}
	if len(candles) < MinCandles {
		return Snapshot{}, fmt.Errorf("indicator: got %d candles, need %d: %w", len(candles), MinCandles, errs.ErrFeedUnavailable)
	}

	rsi, err := RSI(candles, Period)
	if err != nil {
		return Snapshot{}, fmt.Errorf("indicator: rsi: %w", errs.ErrFeedUnavailable)
	}
	adx, err := ADX(candles, Period)
	if err != nil {
		return Snapshot{}, fmt.Errorf("indicator: adx: %w", errs.ErrFeedUnavailable)
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	last := candles[len(candles)-1]

	return Snapshot{
		RSI:      rsi,
		ADX:      adx,
		EMA9:     ema(closes, 9),
		EMA21:    ema(closes, 21),
		Price:    last.Close,
		Interval: last.Interval,
	}, nil
}

// ema returns the final value of an exponential moving average over
// closes with the given period, matching the standard ewm(span=period,
// adjust=False) construction used for the EMA9/EMA21 auxiliary fields.
func ema(closes []float64, period int) float64 {
	if len(closes) == 0 {
		return 0
	}
	alpha := 2.0 / (float64(period) + 1.0)
	v := closes[0]
	for i := 1; i < len(closes); i++ {
		v = v + alpha*(closes[i]-v)
	}
	return v
}

package indicator

import "github.com/perpgrid/gridbot/internal/candle"

// RSI computes the Wilder-smoothed Relative Strength Index over the last
// period candles (the standard 14). It requires at least period+1 candles;
// the caller (engine.go) enforces the stricter 2*period+20 minimum the
// spec requires for the whole indicator set.
func RSI(candles []candle.Candle, period int) (float64, error) {
	if len(candles) < period+1 {
		return 0, errNotEnoughData
	}
	diffs := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		diffs[i-1] = candles[i].Close - candles[i-1].Close
	}

	gains := make([]float64, len(diffs))
	losses := make([]float64, len(diffs))
	for i, d := range diffs {
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	avgGainSeries := wilderSmooth(gains, period)
	avgLossSeries := wilderSmooth(losses, period)
	avgGain := avgGainSeries[len(avgGainSeries)-1]
	avgLoss := avgLossSeries[len(avgLossSeries)-1]

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}

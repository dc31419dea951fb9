package indicator

import (
	"errors"
	"math"

	"github.com/perpgrid/gridbot/internal/candle"
)

var errNotEnoughData = errors.New("indicator: not enough candles")

// ADX computes the Wilder-smoothed Average Directional Index over the last
// period candles (the standard 14). Every smoothing step — true range,
// +DM, -DM, and the final DX series — uses Wilder smoothing throughout; a
// simple moving average in place of any one of them roughly doubles the
// result, which is why this is tested explicitly (see adx_test.go).
func ADX(candles []candle.Candle, period int) (float64, error) {
	if len(candles) < 2*period {
		return 0, errNotEnoughData
	}
	n := len(candles)
	tr := make([]float64, n-1)
	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)

	for i := 1; i < n; i++ {
		h, l, prevC := candles[i].High, candles[i].Low, candles[i-1].Close
		tr[i-1] = max3(h-l, math.Abs(h-prevC), math.Abs(l-prevC))

		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		var pdm, mdm float64
		switch {
		case upMove > downMove && upMove > 0:
			pdm = upMove
		case downMove > upMove && downMove > 0:
			mdm = downMove
		}
		plusDM[i-1] = pdm
		minusDM[i-1] = mdm
	}

	trSmooth := wilderSmooth(tr, period)
	plusDMSmooth := wilderSmooth(plusDM, period)
	minusDMSmooth := wilderSmooth(minusDM, period)

	dx := make([]float64, len(trSmooth))
	for i := range trSmooth {
		if trSmooth[i] == 0 {
			dx[i] = 0
			continue
		}
		plusDI := 100 * plusDMSmooth[i] / trSmooth[i]
		minusDI := 100 * minusDMSmooth[i] / trSmooth[i]
		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}

	adxSeries := wilderSmooth(dx, period)
	if len(adxSeries) == 0 {
		return 0, errNotEnoughData
	}
	return adxSeries[len(adxSeries)-1], nil
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

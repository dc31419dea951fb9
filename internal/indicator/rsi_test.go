package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/perpgrid/gridbot/internal/candle"
)

func closesToCandles(closes []float64) []candle.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]candle.Candle, len(closes))
	for i, c := range closes {
		out[i] = candle.Candle{Open: c, High: c, Low: c, Close: c, Interval: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestRSIAllGainsIsOneHundred(t *testing.T) {
	closes := make([]float64, 16)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	got, err := RSI(closesToCandles(closes), 14)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}
	if got != 100 {
		t.Fatalf("RSI = %v, want 100 for a monotonically rising series", got)
	}
}

func TestRSIFlatSeriesIsOneHundred(t *testing.T) {
	// avg_loss == 0 with no movement at all also hits the RSI=100 branch,
	// same as the all-gains case, rather than a divide by zero.
	closes := make([]float64, 16)
	for i := range closes {
		closes[i] = 100
	}
	got, err := RSI(closesToCandles(closes), 14)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}
	if got != 100 {
		t.Fatalf("RSI = %v, want 100", got)
	}
}

func TestRSIMixedSeriesIsBounded(t *testing.T) {
	closes := []float64{
		100, 99, 101, 100.5, 99.5, 98.7, 100.2, 101.1,
		100.8, 99.9, 99.2, 100.6, 101.4, 100.9, 100.1,
	}
	got, err := RSI(closesToCandles(closes), 14)
	if err != nil {
		t.Fatalf("RSI: %v", err)
	}
	if got < 0 || got > 100 {
		t.Fatalf("RSI = %v, out of [0,100]", got)
	}
	if math.IsNaN(got) {
		t.Fatal("RSI is NaN")
	}
}

func TestRSIRejectsShortHistory(t *testing.T) {
	closes := []float64{100, 101, 102}
	_, err := RSI(closesToCandles(closes), 14)
	if err == nil {
		t.Fatal("expected an error for fewer than period+1 candles")
	}
}

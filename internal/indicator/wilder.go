package indicator

// wilderSmooth applies Wilder's recursive smoothing (equivalent to an EMA
// with alpha = 1/period, decay span 2*period-1) to values, seeding the
// first smoothed value with the simple average of the first period inputs.
// It returns the seed followed by one smoothed value per input after the
// seed window (len(values)-period+1 values); the inputs inside the seed
// window have no output of their own.
func wilderSmooth(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)

	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)
	out = append(out, seed)

	prev := seed
	for i := period; i < len(values); i++ {
		prev = prev + (values[i]-prev)/float64(period)
		out = append(out, prev)
	}
	return out
}

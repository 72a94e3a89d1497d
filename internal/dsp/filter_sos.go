package dsp

// applySOSOnePass runs one forward pass of the biquad cascade over signal,
// each section using Direct-Form-II transposed state, returning a new
// slice of the same length.
func applySOSOnePass(biquads []Biquad, signal []float64) []float64 {
	out := make([]float64, len(signal))
	copy(out, signal)
	for _, bq := range biquads {
		var z1, z2 float64
		for i, x := range out {
			y := bq.B0*x + z1
			z1 = bq.B1*x - bq.A1*y + z2
			z2 = bq.B2*x - bq.A2*y
			out[i] = y
		}
	}
	return out
}

// reverse returns a new slice with signal's elements in reverse order.
func reverse(signal []float64) []float64 {
	out := make([]float64, len(signal))
	for i, v := range signal {
		out[len(signal)-1-i] = v
	}
	return out
}

// BatchFilter applies the SOS cascade forward-then-backward (filtfilt),
// producing zero net phase shift at the cost of doubling the effective
// order (spec.md §4.6, option 1). If signal is shorter than a settling
// transient heuristic (6x the number of cascaded sections), the input is
// returned unchanged — a warning condition, never a hard error, per
// spec.md §4.6.
func BatchFilter(biquads []Biquad, signal []float32) ([]float32, bool) {
	minLen := 3 * len(biquads) * 2
	if minLen < 1 {
		minLen = 1
	}
	if len(signal) < minLen {
		out := make([]float32, len(signal))
		copy(out, signal)
		return out, false
	}

	f64 := make([]float64, len(signal))
	for i, v := range signal {
		f64[i] = float64(v)
	}

	forward := applySOSOnePass(biquads, f64)
	backward := applySOSOnePass(biquads, reverse(forward))
	result := reverse(backward)

	out := make([]float32, len(result))
	for i, v := range result {
		out[i] = float32(v)
	}
	return out, true
}

package dsp

import "sync"

// StreamingFilter applies a cascaded-biquad Direct-Form-II IIR filter,
// retaining per-section state between Apply calls so a frame stream filters
// correctly with lower latency than BatchFilter, at the cost of non-zero
// phase distortion (spec.md §4.6, option 2).
type StreamingFilter struct {
	mu      sync.Mutex
	params  DesignParams
	biquads []Biquad
	state   []streamState
}

type streamState struct {
	z1, z2 float64
}

// NewStreamingFilter designs and constructs a streaming filter.
func NewStreamingFilter(p DesignParams) (*StreamingFilter, error) {
	biquads, err := Design(p)
	if err != nil {
		return nil, err
	}
	return &StreamingFilter{
		params:  p,
		biquads: biquads,
		state:   make([]streamState, len(biquads)),
	}, nil
}

// Apply filters a copy of signal (sample state carries across calls;
// signal itself is left unmodified) and returns it as a same-length slice.
func (f *StreamingFilter) Apply(signal []float32) []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]float32, len(signal))
	copy(out, signal)

	for si, bq := range f.biquads {
		st := &f.state[si]
		for i, x32 := range out {
			x := float64(x32)
			y := bq.B0*x + st.z1
			st.z1 = bq.B1*x - bq.A1*y + st.z2
			st.z2 = bq.B2*x - bq.A2*y
			out[i] = float32(y)
		}
	}
	return out
}

// UpdateConfig redesigns the filter if p differs from the current
// parameters, discarding cached SOS coefficients and resetting state
// (spec.md §4.6: "SOS coefficients are cached and invalidated on
// update_config"). Returns whether anything changed.
func (f *StreamingFilter) UpdateConfig(p DesignParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p == f.params {
		return false, nil
	}
	biquads, err := Design(p)
	if err != nil {
		return false, err
	}
	f.params = p
	f.biquads = biquads
	f.state = make([]streamState, len(biquads))
	return true, nil
}

// Reset zeroes all section state without changing the design.
func (f *StreamingFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.state {
		f.state[i] = streamState{}
	}
}

// Params returns the current design parameters.
func (f *StreamingFilter) Params() DesignParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.params
}

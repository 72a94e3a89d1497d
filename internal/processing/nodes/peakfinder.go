package nodes

import (
	"sync"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/dsp"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// PeakFinderParams is the decoded configuration (spec.md §6: "Peak
// finder: {window_size, averaging, band, floor, window}").
type PeakFinderParams struct {
	WindowSize int
	Averaging  int
	BandLoHz   float64
	BandHiHz   float64
	Floor      float64
	Window     dsp.WindowFunction
}

func defaultPeakFinderParams() PeakFinderParams {
	return PeakFinderParams{WindowSize: 4096, Averaging: 1, BandLoHz: 0, BandHiHz: 24000, Floor: 1e-3, Window: dsp.WindowRectangular}
}

func decodePeakFinderParams(raw map[string]any) PeakFinderParams {
	p := defaultPeakFinderParams()
	if v, ok := numericValue(raw["window_size"]); ok {
		p.WindowSize = int(v)
	}
	if v, ok := numericValue(raw["averaging"]); ok {
		p.Averaging = int(v)
	}
	if band, ok := raw["band"].([]any); ok && len(band) == 2 {
		if lo, ok := numericValue(band[0]); ok {
			p.BandLoHz = lo
		}
		if hi, ok := numericValue(band[1]); ok {
			p.BandHiHz = hi
		}
	}
	if v, ok := numericValue(raw["floor"]); ok {
		p.Floor = v
	}
	if v, ok := raw["window"].(string); ok {
		p.Window = dsp.WindowFunction(v)
	}
	return p
}

// PeakFinder is a computing node (spec.md §4.2): accumulates samples into
// an internal FFT analyser and, once enough samples have arrived, writes
// the band-limited spectral peak to the shared analytical bus. Input
// passes through unchanged (spec.md §8 property 3).
type PeakFinder struct {
	processing.BaseNode

	bus *computing.Bus

	mu       sync.Mutex
	params   PeakFinderParams
	analyzer *dsp.Analyzer
	pending  []float64
}

// NewPeakFinderFactory returns a registry Factory bound to bus, so the
// daemon supervisor's single computing.Bus instance is threaded into every
// peak-finder node without any package-level global (spec.md §9).
func NewPeakFinderFactory(bus *computing.Bus) func(id string, raw map[string]any) (processing.Node, error) {
	return func(id string, raw map[string]any) (processing.Node, error) {
		params := decodePeakFinderParams(raw)
		return &PeakFinder{
			BaseNode: processing.NewBaseNode(id, "peak_finder", processing.FamilyComputing),
			bus:      bus,
			params:   params,
			analyzer: dsp.NewAnalyzer(params.WindowSize, params.Window, params.Averaging),
		}, nil
	}
}

func (p *PeakFinder) AcceptsKind(k processing.Kind) bool {
	switch k {
	case processing.KindDualChannel, processing.KindSingleChannel, processing.KindAudioFrame:
		return true
	default:
		return false
	}
}

func (p *PeakFinder) OutputKindFor(k processing.Kind) (processing.Kind, bool) {
	if p.AcceptsKind(k) {
		return k, true
	}
	return "", false
}

func mixDown(a, b []float32) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = (float64(a[i]) + float64(b[i])) / 2
	}
	return out
}

func toFloat64(samples []float32) []float64 {
	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = float64(v)
	}
	return out
}

func (p *PeakFinder) Process(input processing.Data) (processing.Data, error) {
	var samples []float64
	var sampleRate int

	switch v := input.(type) {
	case processing.DualChannel:
		samples, sampleRate = mixDown(v.ChannelA, v.ChannelB), v.SampleRate
	case processing.AudioFrame:
		samples, sampleRate = mixDown(v.ChannelA, v.ChannelB), v.SampleRate
	case processing.SingleChannel:
		samples, sampleRate = toFloat64(v.Samples), v.SampleRate
	default:
		return input, nil
	}

	p.mu.Lock()
	p.pending = append(p.pending, samples...)
	windowSize := p.params.WindowSize
	var window []float64
	if len(p.pending) >= windowSize {
		window = p.pending[:windowSize]
		p.pending = p.pending[windowSize:]
	}
	analyzer := p.analyzer
	lo, hi, floor := p.params.BandLoHz, p.params.BandHiHz, p.params.Floor
	p.mu.Unlock()

	if window == nil {
		return input, nil
	}

	spectrum, err := analyzer.Analyze(window, sampleRate)
	if err != nil {
		return input, nil // signal-too-short: this window is dropped without logging, never fatal
	}

	_, freq, amplitude, coherence, found := dsp.FindPeak(spectrum, lo, hi)
	if !found || amplitude < floor {
		return input, nil
	}

	p.bus.WritePeak(p.ID(), computing.PeakResult{
		FrequencyHz:    freq,
		Amplitude:      amplitude,
		Timestamp:      time.Now(),
		CoherenceScore: coherence,
	})

	return input, nil
}

func (p *PeakFinder) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
	p.analyzer.Reset()
}

func (p *PeakFinder) SupportsHotReload() bool { return true }

func (p *PeakFinder) UpdateConfig(raw map[string]any) (bool, error) {
	newParams := decodePeakFinderParams(raw)
	p.mu.Lock()
	defer p.mu.Unlock()
	if newParams == p.params {
		return false, nil
	}
	p.params = newParams
	p.analyzer.Reconfigure(newParams.WindowSize, newParams.Window, newParams.Averaging)
	p.pending = nil
	return true, nil
}

func (p *PeakFinder) CloneShape() processing.Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &PeakFinder{
		BaseNode: processing.NewBaseNode(p.ID(), "peak_finder", processing.FamilyComputing),
		bus:      p.bus,
		params:   p.params,
		analyzer: dsp.NewAnalyzer(p.params.WindowSize, p.params.Window, p.params.Averaging),
	}
}

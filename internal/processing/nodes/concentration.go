package nodes

import (
	"sync"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// ConcentrationParams is the decoded configuration (spec.md §6:
// "Concentration: {coefficients, binding, min_amplitude, max_ppm,
// temperature_compensation}").
type ConcentrationParams struct {
	Coefficients            [5]float64
	Binding                 string // bound peak-finder node id, or "" for unbound
	MinAmplitudeThreshold   float64
	MaxPPM                  float64
	TemperatureCompensation bool
}

func decodeConcentrationParams(raw map[string]any) ConcentrationParams {
	p := ConcentrationParams{MaxPPM: 10000}
	if coeffs, ok := raw["coefficients"].([]any); ok {
		for i := 0; i < len(coeffs) && i < 5; i++ {
			if v, ok := numericValue(coeffs[i]); ok {
				p.Coefficients[i] = v
			}
		}
	}
	if v, ok := raw["binding"].(string); ok {
		p.Binding = v
	}
	if v, ok := numericValue(raw["min_amplitude"]); ok {
		p.MinAmplitudeThreshold = v
	}
	if v, ok := numericValue(raw["max_ppm"]); ok {
		p.MaxPPM = v
	}
	if v, ok := raw["temperature_compensation"].(bool); ok {
		p.TemperatureCompensation = v
	}
	return p
}

// Concentration is a computing node (spec.md §4.3): reads a bound or
// most-recently-updated PeakResult, evaluates a 4th-degree polynomial in
// amplitude, clamps to [0, max_ppm], writes a ConcentrationResult, and
// back-annotates the source PeakResult. Pass-through on the signal.
type Concentration struct {
	processing.BaseNode

	bus *computing.Bus

	mu     sync.Mutex
	params ConcentrationParams
}

// NewConcentrationFactory binds bus the same way peak-finder nodes do.
func NewConcentrationFactory(bus *computing.Bus) func(id string, raw map[string]any) (processing.Node, error) {
	return func(id string, raw map[string]any) (processing.Node, error) {
		return &Concentration{
			BaseNode: processing.NewBaseNode(id, "concentration", processing.FamilyComputing),
			bus:      bus,
			params:   decodeConcentrationParams(raw),
		}, nil
	}
}

func (c *Concentration) AcceptsKind(processing.Kind) bool { return true }

func (c *Concentration) OutputKindFor(k processing.Kind) (processing.Kind, bool) { return k, true }

func evalPolynomial(coeffs [5]float64, amplitude float64) float64 {
	a := amplitude
	return coeffs[0] + coeffs[1]*a + coeffs[2]*a*a + coeffs[3]*a*a*a + coeffs[4]*a*a*a*a
}

func clampPPM(v, maxPPM float64) float64 {
	if v < 0 {
		return 0
	}
	if v > maxPPM {
		return maxPPM
	}
	return v
}

func (c *Concentration) Process(input processing.Data) (processing.Data, error) {
	c.mu.Lock()
	params := c.params
	c.mu.Unlock()

	sourceID, peak, ok := c.resolveSource(params.Binding)
	if !ok {
		return input, nil
	}
	if peak.Amplitude < params.MinAmplitudeThreshold {
		return input, nil
	}

	ppm := clampPPM(evalPolynomial(params.Coefficients, peak.Amplitude), params.MaxPPM)

	c.bus.WriteConcentration(c.ID(), computing.ConcentrationResult{
		ConcentrationPPM:       ppm,
		SourcePeakFinderID:     sourceID,
		PolynomialCoefficients: params.Coefficients,
		SourceAmplitude:        peak.Amplitude,
		SourceFrequency:        peak.FrequencyHz,
		TemperatureCompensated: params.TemperatureCompensation,
		Timestamp:              time.Now(),
	})
	c.bus.AnnotatePeakConcentration(sourceID, ppm)

	return input, nil
}

func (c *Concentration) resolveSource(binding string) (string, computing.PeakResult, bool) {
	if binding != "" {
		peak, ok := c.bus.Peak(binding)
		return binding, peak, ok
	}
	return c.bus.LatestPeak()
}

func (c *Concentration) SupportsHotReload() bool { return true }

func (c *Concentration) UpdateConfig(raw map[string]any) (bool, error) {
	newParams := decodeConcentrationParams(raw)
	c.mu.Lock()
	defer c.mu.Unlock()
	if newParams == c.params {
		return false, nil
	}
	c.params = newParams
	return true, nil
}

func (c *Concentration) CloneShape() processing.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &Concentration{
		BaseNode: processing.NewBaseNode(c.ID(), "concentration", processing.FamilyComputing),
		bus:      c.bus,
		params:   c.params,
	}
}

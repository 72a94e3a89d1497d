package thermal

import (
	"sort"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
)

// TemperatureConverter turns a raw ADC count into a Celsius reading. The
// conversion kind is fixed at construction time from conf.TempConversionConfig
// (spec.md §6: "linear" | "polynomial" | "lut").
type TemperatureConverter struct {
	cfg conf.TempConversionConfig
}

func NewTemperatureConverter(cfg conf.TempConversionConfig) *TemperatureConverter {
	return &TemperatureConverter{cfg: cfg}
}

// Convert maps a raw ADC count to Celsius.
func (c *TemperatureConverter) Convert(raw int) float64 {
	resBits := c.cfg.ADCResolutionBits
	if resBits <= 0 {
		resBits = 12
	}
	maxCounts := float64(int(1)<<uint(resBits) - 1)
	vref := c.cfg.VRef
	if vref == 0 {
		vref = 3.3
	}
	voltage := (float64(raw) / maxCounts) * vref

	switch c.cfg.Kind {
	case "polynomial":
		return evalPoly(c.cfg.Coefficients, voltage)
	case "lut":
		return lookupLUT(c.cfg.LUTVoltages, c.cfg.LUTCelsius, voltage)
	default: // "linear"
		return evalLinear(c.cfg.Coefficients, voltage)
	}
}

// evalLinear applies coefficients [offset, scale]: celsius = offset + scale*voltage.
func evalLinear(coeffs []float64, voltage float64) float64 {
	offset, scale := 0.0, 100.0
	if len(coeffs) > 0 {
		offset = coeffs[0]
	}
	if len(coeffs) > 1 {
		scale = coeffs[1]
	}
	return offset + scale*voltage
}

// evalPoly evaluates celsius = sum(coeffs[i] * voltage^i).
func evalPoly(coeffs []float64, voltage float64) float64 {
	var result, power float64 = 0, 1
	for _, c := range coeffs {
		result += c * power
		power *= voltage
	}
	return result
}

// lookupLUT linearly interpolates celsius between the two bracketing
// voltage/celsius pairs. Points must be sorted ascending by voltage;
// readings outside the table clamp to the nearest endpoint.
func lookupLUT(voltages, celsius []float64, v float64) float64 {
	n := len(voltages)
	if n == 0 {
		return 0
	}
	if n == 1 || v <= voltages[0] {
		return celsius[0]
	}
	if v >= voltages[n-1] {
		return celsius[n-1]
	}
	idx := sort.SearchFloat64s(voltages, v)
	lo, hi := idx-1, idx
	span := voltages[hi] - voltages[lo]
	if span == 0 {
		return celsius[lo]
	}
	frac := (v - voltages[lo]) / span
	return celsius[lo] + frac*(celsius[hi]-celsius[lo])
}

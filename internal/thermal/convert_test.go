package thermal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
)

func TestTemperatureConverterLinear(t *testing.T) {
	c := NewTemperatureConverter(conf.TempConversionConfig{
		Kind: "linear", Coefficients: []float64{-10, 50}, VRef: 5, ADCResolutionBits: 10,
	})
	// raw = 1023 (max) -> voltage = 5 -> celsius = -10 + 50*5 = 240
	assert.InDelta(t, 240.0, c.Convert(1023), 1e-6)
	assert.InDelta(t, -10.0, c.Convert(0), 1e-6)
}

func TestTemperatureConverterPolynomial(t *testing.T) {
	c := NewTemperatureConverter(conf.TempConversionConfig{
		Kind: "polynomial", Coefficients: []float64{0, 2, 1}, VRef: 1, ADCResolutionBits: 8,
	})
	// raw=255 -> voltage=1 -> celsius = 0 + 2*1 + 1*1^2 = 3
	assert.InDelta(t, 3.0, c.Convert(255), 1e-6)
}

func TestTemperatureConverterLUTInterpolates(t *testing.T) {
	c := NewTemperatureConverter(conf.TempConversionConfig{
		Kind:              "lut",
		LUTVoltages:       []float64{0, 1, 2},
		LUTCelsius:        []float64{-40, 25, 125},
		VRef:              2,
		ADCResolutionBits: 8,
	})
	// raw=128 (of 255) -> voltage ~ 1.0039 -> between 25 and 125, close to 25
	got := c.Convert(128)
	assert.Greater(t, got, 24.0)
	assert.Less(t, got, 30.0)
}

func TestTemperatureConverterLUTClampsOutsideRange(t *testing.T) {
	c := NewTemperatureConverter(conf.TempConversionConfig{
		Kind:              "lut",
		LUTVoltages:       []float64{1, 2},
		LUTCelsius:        []float64{10, 20},
		VRef:              5,
		ADCResolutionBits: 8,
	})
	assert.Equal(t, 10.0, c.Convert(0))
	assert.Equal(t, 20.0, c.Convert(255))
}

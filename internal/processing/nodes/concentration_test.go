package nodes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

func TestConcentrationEvaluatesPolynomialAndAnnotatesSource(t *testing.T) {
	bus := computing.NewBus()
	bus.WritePeak("pf1", computing.PeakResult{Amplitude: 0.5, FrequencyHz: 2000, Timestamp: time.Now()})

	factory := NewConcentrationFactory(bus)
	node, err := factory("conc1", map[string]any{
		"coefficients": []any{0.0, 100.0, 0.0, 0.0, 0.0}, // ppm = 100 * amplitude
		"binding":      "pf1",
	})
	require.NoError(t, err)

	frame := processing.SingleChannel{Samples: []float32{0, 0, 0}, SampleRate: 48000}
	out, err := node.Process(frame)
	require.NoError(t, err)
	assert.Equal(t, frame, out)

	result, ok := bus.Concentration("conc1")
	require.True(t, ok)
	assert.InDelta(t, 50.0, result.ConcentrationPPM, 1e-9)
	assert.Equal(t, "pf1", result.SourcePeakFinderID)

	peak, ok := bus.Peak("pf1")
	require.True(t, ok)
	require.NotNil(t, peak.ConcentrationPPM)
	assert.InDelta(t, 50.0, *peak.ConcentrationPPM, 1e-9)
}

func TestConcentrationSkipsBelowMinAmplitude(t *testing.T) {
	bus := computing.NewBus()
	bus.WritePeak("pf1", computing.PeakResult{Amplitude: 0.01, Timestamp: time.Now()})

	factory := NewConcentrationFactory(bus)
	node, err := factory("conc1", map[string]any{
		"coefficients":  []any{0.0, 100.0, 0.0, 0.0, 0.0},
		"binding":       "pf1",
		"min_amplitude": 0.1,
	})
	require.NoError(t, err)

	_, err = node.Process(processing.SingleChannel{})
	require.NoError(t, err)

	_, ok := bus.Concentration("conc1")
	assert.False(t, ok)
}

func TestConcentrationClampsToMaxPPM(t *testing.T) {
	bus := computing.NewBus()
	bus.WritePeak("pf1", computing.PeakResult{Amplitude: 10, Timestamp: time.Now()})

	factory := NewConcentrationFactory(bus)
	node, err := factory("conc1", map[string]any{
		"coefficients": []any{0.0, 1000.0, 0.0, 0.0, 0.0},
		"binding":      "pf1",
		"max_ppm":      500.0,
	})
	require.NoError(t, err)

	_, err = node.Process(processing.SingleChannel{})
	require.NoError(t, err)

	result, ok := bus.Concentration("conc1")
	require.True(t, ok)
	assert.Equal(t, 500.0, result.ConcentrationPPM)
}

func TestConcentrationUnboundUsesLatestPeak(t *testing.T) {
	bus := computing.NewBus()
	bus.WritePeak("old", computing.PeakResult{Amplitude: 1, Timestamp: time.Now().Add(-time.Hour)})
	bus.WritePeak("new", computing.PeakResult{Amplitude: 0.2, Timestamp: time.Now()})

	factory := NewConcentrationFactory(bus)
	node, err := factory("conc1", map[string]any{"coefficients": []any{0.0, 10.0, 0.0, 0.0, 0.0}})
	require.NoError(t, err)

	_, err = node.Process(processing.SingleChannel{})
	require.NoError(t, err)

	result, ok := bus.Concentration("conc1")
	require.True(t, ok)
	assert.Equal(t, "new", result.SourcePeakFinderID)
}

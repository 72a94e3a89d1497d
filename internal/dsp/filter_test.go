package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rms(signal []float32) float64 {
	var sum float64
	for _, v := range signal {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(signal)))
}

func sineF32(freq float64, amplitude float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestButterworthBandpassScenario(t *testing.T) {
	// spec.md §8 scenario (v).
	const sampleRate = 48000
	params := DesignParams{
		Family:     FamilyButterworth,
		Shape:      ShapeBandpass,
		SampleRate: sampleRate,
		Order:      4,
		Low:        300,
		High:       3000,
	}
	biquads, err := Design(params)
	require.NoError(t, err)
	require.NotEmpty(t, biquads)

	n := int(0.05 * sampleRate)

	passband := sineF32(1500, 0.5, sampleRate, n)
	passOut, applied := BatchFilter(biquads, passband)
	require.True(t, applied)
	assert.GreaterOrEqual(t, rms(passOut), 0.5*rms(passband))

	stopband := sineF32(8000, 0.5, sampleRate, n)
	stopOut, applied := BatchFilter(biquads, stopband)
	require.True(t, applied)
	assert.Less(t, rms(stopOut), 0.10*rms(stopband))
}

func TestDesignRejectsOutOfRangeCutoff(t *testing.T) {
	_, err := Design(DesignParams{
		Family: FamilyButterworth, Shape: ShapeLowpass,
		SampleRate: 48000, Order: 2, Cutoff: 30000,
	})
	require.Error(t, err)
}

func TestDesignRejectsInvalidOrder(t *testing.T) {
	_, err := Design(DesignParams{
		Family: FamilyButterworth, Shape: ShapeLowpass,
		SampleRate: 48000, Order: 0, Cutoff: 1000,
	})
	require.Error(t, err)
}

func TestBatchFilterReturnsInputUnchangedWhenTooShort(t *testing.T) {
	biquads := []Biquad{{B0: 1, B1: 0, B2: 0, A1: 0, A2: 0}}
	signal := []float32{0.1, 0.2, 0.3}
	out, applied := BatchFilter(biquads, signal)
	assert.False(t, applied)
	assert.Equal(t, signal, out)
}

func TestStreamingFilterRetainsStateAcrossCalls(t *testing.T) {
	f, err := NewStreamingFilter(DesignParams{
		Family: FamilyButterworth, Shape: ShapeLowpass,
		SampleRate: 48000, Order: 2, Cutoff: 1000,
	})
	require.NoError(t, err)

	full := sineF32(500, 0.5, 48000, 1000)
	oneShot := f.Apply(full)

	f2, err := NewStreamingFilter(f.Params())
	require.NoError(t, err)
	chunked := make([]float32, 0, len(full))
	for i := 0; i < len(full); i += 100 {
		chunked = append(chunked, f2.Apply(full[i:i+100])...)
	}

	require.Equal(t, len(oneShot), len(chunked))
	for i := range oneShot {
		assert.InDelta(t, oneShot[i], chunked[i], 1e-4)
	}
}

func TestStreamingFilterUpdateConfigResetsState(t *testing.T) {
	p := DesignParams{Family: FamilyButterworth, Shape: ShapeLowpass, SampleRate: 48000, Order: 2, Cutoff: 1000}
	f, err := NewStreamingFilter(p)
	require.NoError(t, err)

	_ = f.Apply(sineF32(500, 0.5, 48000, 200))

	changed, err := f.UpdateConfig(DesignParams{Family: FamilyButterworth, Shape: ShapeLowpass, SampleRate: 48000, Order: 2, Cutoff: 2000})
	require.NoError(t, err)
	assert.True(t, changed)

	sameAgain, err := f.UpdateConfig(DesignParams{Family: FamilyButterworth, Shape: ShapeLowpass, SampleRate: 48000, Order: 2, Cutoff: 2000})
	require.NoError(t, err)
	assert.False(t, sameAgain)
}

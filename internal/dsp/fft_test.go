package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineSignal(freq float64, amplitude float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestAnalyzeUnitAmplitudeSineBinAligned(t *testing.T) {
	const sampleRate = 48000
	const n = 4096
	// bin-aligned frequency: k * sampleRate / n
	freq := 2000.0 // 2000 is not exactly bin aligned at 48000/4096, pick aligned bin
	binHz := float64(sampleRate) / float64(n)
	freq = math.Round(freq/binHz) * binHz

	signal := sineSignal(freq, 1.0, sampleRate, n)
	a := NewAnalyzer(n, WindowRectangular, 1)

	spec, err := a.Analyze(signal, sampleRate)
	require.NoError(t, err)

	idx, _, amplitude, _, found := FindPeak(spec, freq-50, freq+50)
	require.True(t, found)
	assert.InDelta(t, 1.0, amplitude, 1e-2)

	for _, off := range []int{-5, 5} {
		j := idx + off
		if j >= 0 && j < len(spec.Amplitudes) {
			assert.Less(t, spec.Amplitudes[j]*5, amplitude)
		}
	}
}

func TestAnalyzeSignalTooShortErrors(t *testing.T) {
	a := NewAnalyzer(4096, WindowHann, 1)
	_, err := a.Analyze(make([]float64, 100), 48000)
	require.Error(t, err)
}

func TestPeakDetectionScenario(t *testing.T) {
	// spec.md §8 scenario (i): 2000 Hz sine, amplitude 0.5, 4096 samples,
	// rectangular window, band [1000, 3000].
	const sampleRate = 48000
	const n = 4096
	signal := sineSignal(2000, 0.5, sampleRate, n)

	a := NewAnalyzer(n, WindowRectangular, 1)
	spec, err := a.Analyze(signal, sampleRate)
	require.NoError(t, err)

	_, freq, amplitude, _, found := FindPeak(spec, 1000, 3000)
	require.True(t, found)
	assert.InDelta(t, 2000, freq, 12)
	assert.InDelta(t, 0.5, amplitude, 0.05)
}

func TestGetAmplitudeAtRequiresPriorAnalysis(t *testing.T) {
	a := NewAnalyzer(1024, WindowRectangular, 1)
	_, err := a.GetAmplitudeAt(1000)
	require.Error(t, err)
}

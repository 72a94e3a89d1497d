package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
)

// SpectrumData is the result of one FFT analysis: the first N/2 bins'
// frequency, amplitude, and phase (spec.md §4.7).
type SpectrumData struct {
	Frequencies []float64
	Amplitudes  []float64
	Phases      []float64
	SampleRate  int
}

// Analyzer computes windowed FFTs of a fixed frame size, optionally
// averaging the last N complex spectra before reporting amplitude/phase.
// Not safe for concurrent use — each peak-finder node owns one instance.
type Analyzer struct {
	frameSize  int
	window     WindowFunction
	windowVals []float64
	fft        *fourier.FFT

	averages int
	history  *CircularBuffer[[]complex128]

	lastSpectrum *SpectrumData
}

// NewAnalyzer builds an analyser for the given frame size and window
// function. frameSize is used as given: neither this constructor nor the
// peak-finder node checks that it is a power of two in [1024, 8192].
func NewAnalyzer(frameSize int, window WindowFunction, averages int) *Analyzer {
	if averages < 1 {
		averages = 1
	}
	return &Analyzer{
		frameSize:  frameSize,
		window:     window,
		windowVals: BuildWindow(window, frameSize),
		fft:        fourier.NewFFT(frameSize),
		averages:   averages,
		history:    NewCircularBuffer[[]complex128](averages),
	}
}

// Reconfigure changes frame size, window, or averaging count and clears the
// averaging ring and any cached spectrum, per spec.md §4.7.
func (a *Analyzer) Reconfigure(frameSize int, window WindowFunction, averages int) {
	if averages < 1 {
		averages = 1
	}
	a.frameSize = frameSize
	a.window = window
	a.windowVals = BuildWindow(window, frameSize)
	a.fft = fourier.NewFFT(frameSize)
	a.averages = averages
	a.history = NewCircularBuffer[[]complex128](averages)
	a.lastSpectrum = nil
}

// Reset clears the averaging ring and cached spectrum without changing
// configuration.
func (a *Analyzer) Reset() {
	a.history = NewCircularBuffer[[]complex128](a.averages)
	a.lastSpectrum = nil
}

// FrameSize reports the configured FFT window length.
func (a *Analyzer) FrameSize() int { return a.frameSize }

// Analyze runs one FFT over signal (which must have at least FrameSize
// samples; only the first FrameSize are used) and returns the averaged
// spectrum. SignalTooShort is returned as a CategoryFFT error.
func (a *Analyzer) Analyze(signal []float64, sampleRate int) (*SpectrumData, error) {
	if len(signal) < a.frameSize {
		return nil, errors.New(fmt.Errorf("signal length %d shorter than frame size %d", len(signal), a.frameSize)).
			Component("fft").Category(errors.CategoryFFT).Build()
	}

	windowed := ApplyWindow(signal[:a.frameSize], a.windowVals)
	coeffs := a.fft.Coefficients(nil, windowed)
	coeffs = coeffs[:a.frameSize/2] // keep only the first N/2 bins
	a.history.Push(coeffs)

	summed := make([]complex128, len(coeffs))
	spectra := a.history.Iter()
	for _, s := range spectra {
		for i, c := range s {
			summed[i] += c
		}
	}
	n := float64(len(spectra))

	bins := len(coeffs)
	frequencies := make([]float64, bins)
	amplitudes := make([]float64, bins)
	phases := make([]float64, bins)
	for i, c := range summed {
		avg := c / complex(n, 0)
		frequencies[i] = float64(i) * float64(sampleRate) / float64(a.frameSize)
		amplitudes[i] = 2 * cmplx.Abs(avg) / float64(a.frameSize)
		phases[i] = cmplx.Phase(avg)
	}

	spectrum := &SpectrumData{
		Frequencies: frequencies,
		Amplitudes:  amplitudes,
		Phases:      phases,
		SampleRate:  sampleRate,
	}
	a.lastSpectrum = spectrum
	return spectrum, nil
}

// GetAmplitudeAt snaps freqHz to the nearest analysed bin and returns its
// amplitude. Errors if no spectrum has been computed yet.
func (a *Analyzer) GetAmplitudeAt(freqHz float64) (float64, error) {
	if a.lastSpectrum == nil {
		return 0, errors.New(fmt.Errorf("no spectrum computed yet")).
			Component("fft").Category(errors.CategoryFFT).Build()
	}
	best := 0
	bestDiff := math.Abs(a.lastSpectrum.Frequencies[0] - freqHz)
	for i, f := range a.lastSpectrum.Frequencies {
		if d := math.Abs(f - freqHz); d < bestDiff {
			bestDiff = d
			best = i
		}
	}
	return a.lastSpectrum.Amplitudes[best], nil
}

// FindPeak returns the index, frequency, amplitude, and a heuristic
// coherence score (peak-vs-neighbour-average ratio, clamped to [0,1]) of
// the tallest bin within [loHz, hiHz] inclusive.
func FindPeak(spec *SpectrumData, loHz, hiHz float64) (idx int, freq, amplitude, coherence float64, found bool) {
	best := -1
	var bestAmp float64
	for i, f := range spec.Frequencies {
		if f < loHz || f > hiHz {
			continue
		}
		if best == -1 || spec.Amplitudes[i] > bestAmp {
			best = i
			bestAmp = spec.Amplitudes[i]
		}
	}
	if best == -1 {
		return 0, 0, 0, 0, false
	}

	neighborSum, neighborCount := 0.0, 0
	for _, off := range []int{-2, -1, 1, 2} {
		j := best + off
		if j >= 0 && j < len(spec.Amplitudes) {
			neighborSum += spec.Amplitudes[j]
			neighborCount++
		}
	}
	coh := 1.0
	if neighborCount > 0 && bestAmp > 0 {
		avgNeighbor := neighborSum / float64(neighborCount)
		coh = 1 - avgNeighbor/bestAmp
		if coh < 0 {
			coh = 0
		}
		if coh > 1 {
			coh = 1
		}
	}
	return best, spec.Frequencies[best], bestAmp, coh, true
}

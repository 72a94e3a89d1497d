package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
)

// FilterFamily selects the analog prototype used before the bilinear
// transform (spec.md §4.6).
type FilterFamily string

const (
	FamilyButterworth FilterFamily = "butter"
	FamilyChebyshevI  FilterFamily = "cheby"
	FamilyElliptic    FilterFamily = "elliptic"
)

// FilterShape selects lowpass, highpass, or bandpass.
type FilterShape string

const (
	ShapeLowpass  FilterShape = "low"
	ShapeHighpass FilterShape = "high"
	ShapeBandpass FilterShape = "band"
)

// Biquad holds one second-order section's coefficients, normalized so a0=1
// (spec.md glossary: SOS).
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// DesignParams fully describes one filter design request.
type DesignParams struct {
	Family      FilterFamily
	Shape       FilterShape
	SampleRate  float64
	Order       int
	Cutoff      float64 // lowpass/highpass cutoff, Hz
	Low, High   float64 // bandpass edges, Hz
	RippleDB    float64 // Chebyshev/Elliptic passband ripple, (0,10] dB
	AttenuationDB float64 // Elliptic stopband attenuation, (0,120] dB
}

// Validate checks the ranges spec.md §4.6 requires.
func (p DesignParams) Validate() error {
	nyquist := p.SampleRate / 2
	switch p.Shape {
	case ShapeLowpass, ShapeHighpass:
		if p.Cutoff <= 0 || p.Cutoff >= nyquist {
			return errors.New(fmt.Errorf("cutoff %.2f Hz out of range (0, %.2f)", p.Cutoff, nyquist)).
				Component("dsp-filter").Category(errors.CategoryFilter).Build()
		}
	case ShapeBandpass:
		if p.Low <= 0 || p.High >= nyquist || p.Low >= p.High {
			return errors.New(fmt.Errorf("band [%.2f, %.2f] Hz invalid for nyquist %.2f", p.Low, p.High, nyquist)).
				Component("dsp-filter").Category(errors.CategoryFilter).Build()
		}
	default:
		return errors.New(fmt.Errorf("unknown filter shape %q", p.Shape)).
			Component("dsp-filter").Category(errors.CategoryFilter).Build()
	}
	if p.Order < 1 || p.Order > 20 {
		return errors.New(fmt.Errorf("order %d out of range [1, 20]", p.Order)).
			Component("dsp-filter").Category(errors.CategoryFilter).Build()
	}
	if p.Family != FamilyButterworth {
		if p.RippleDB <= 0 || p.RippleDB > 10 {
			return errors.New(fmt.Errorf("ripple %.2f dB out of range (0, 10]", p.RippleDB)).
				Component("dsp-filter").Category(errors.CategoryFilter).Build()
		}
	}
	if p.Family == FamilyElliptic {
		if p.AttenuationDB <= 0 || p.AttenuationDB > 120 {
			return errors.New(fmt.Errorf("attenuation %.2f dB out of range (0, 120]", p.AttenuationDB)).
				Component("dsp-filter").Category(errors.CategoryFilter).Build()
		}
	}
	return nil
}

// Design builds the cascaded SOS biquads for the given parameters via an
// analog lowpass prototype, frequency transform, and bilinear transform.
//
// Elliptic (Cauer) design needs Jacobi elliptic functions to place
// transmission zeros correctly; none of the reference libraries in this
// module's dependency pack provide them. As a documented approximation,
// FamilyElliptic reuses the Chebyshev Type I pole placement (equiripple
// passband) without stopband zeros — it will not reach the same
// attenuation per order as a true elliptic design; its response is the
// same as FamilyChebyshevI's for equal order and ripple, and it keeps the
// same construction API.
func Design(p DesignParams) ([]Biquad, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	poles := analogPrototypePoles(p.Family, p.Order, p.RippleDB)

	switch p.Shape {
	case ShapeLowpass:
		wc := 2 * math.Pi * p.Cutoff
		return bilinearFromAnalogLP(poles, wc, p.SampleRate)
	case ShapeHighpass:
		wc := 2 * math.Pi * p.Cutoff
		return bilinearFromAnalogHP(poles, wc, p.SampleRate)
	case ShapeBandpass:
		wlo := 2 * math.Pi * p.Low
		whi := 2 * math.Pi * p.High
		return bilinearFromAnalogBP(poles, wlo, whi, p.SampleRate)
	default:
		return nil, errors.New(fmt.Errorf("unsupported shape %q", p.Shape)).
			Component("dsp-filter").Category(errors.CategoryFilter).Build()
	}
}

// analogPrototypePoles returns the normalized (wc=1 rad/s) analog lowpass
// poles for the given family and order.
func analogPrototypePoles(family FilterFamily, order int, rippleDB float64) []complex128 {
	poles := make([]complex128, order)
	switch family {
	case FamilyChebyshevI, FamilyElliptic:
		eps := math.Sqrt(math.Pow(10, rippleDB/10) - 1)
		v0 := math.Asinh(1/eps) / float64(order)
		for k := 0; k < order; k++ {
			theta := math.Pi * (2*float64(k) + 1) / (2 * float64(order))
			re := -math.Sinh(v0) * math.Sin(theta)
			im := math.Cosh(v0) * math.Cos(theta)
			poles[k] = complex(re, im)
		}
	default: // Butterworth
		for k := 0; k < order; k++ {
			theta := math.Pi * (2*float64(k) + float64(order) + 1) / (2 * float64(order))
			poles[k] = complex(math.Cos(theta), math.Sin(theta))
		}
	}
	return poles
}

// bilinearFromAnalogLP scales the normalized prototype to cutoff wc
// (rad/s, pre-warped), applies the bilinear transform, and groups the
// resulting digital poles/zeros into SOS biquads.
func bilinearFromAnalogLP(protoPoles []complex128, wc, fs float64) ([]Biquad, error) {
	warped := 2 * fs * math.Tan(wc/(2*fs))
	analogPoles := make([]complex128, len(protoPoles))
	for i, p := range protoPoles {
		analogPoles[i] = p * complex(warped, 0)
	}
	// all-pole lowpass: zeros at z=-1 (Nyquist) of appropriate multiplicity.
	zZeros := make([]complex128, len(analogPoles))
	for i := range zZeros {
		zZeros[i] = complex(-1, 0)
	}
	zPoles, gain := bilinearPoles(analogPoles, fs)
	return assembleSOS(zZeros, zPoles, gain)
}

func bilinearFromAnalogHP(protoPoles []complex128, wc, fs float64) ([]Biquad, error) {
	warped := 2 * fs * math.Tan(wc/(2*fs))
	analogPoles := make([]complex128, len(protoPoles))
	for i, p := range protoPoles {
		// lowpass -> highpass: s -> wc/s
		analogPoles[i] = complex(warped, 0) / p
	}
	zZeros := make([]complex128, len(analogPoles))
	for i := range zZeros {
		zZeros[i] = complex(1, 0)
	}
	zPoles, gain := bilinearPoles(analogPoles, fs)
	biquads, err := assembleSOSAt(zZeros, zPoles, gain, -1)
	return biquads, err
}

func bilinearFromAnalogBP(protoPoles []complex128, wlo, whi, fs float64) ([]Biquad, error) {
	wloW := 2 * fs * math.Tan(wlo/(2*fs))
	whiW := 2 * fs * math.Tan(whi/(2*fs))
	bw := whiW - wloW
	w0 := math.Sqrt(wloW * whiW)

	analogPoles := make([]complex128, 0, 2*len(protoPoles))
	zZeros := make([]complex128, 0, 2*len(protoPoles))
	for _, p := range protoPoles {
		// lowpass -> bandpass: s -> (s^2 + w0^2) / (bw*s), solved per-pole
		// as a quadratic in s.
		bp := p * complex(bw, 0)
		disc := cmplx.Sqrt(bp*bp - 4*complex(w0*w0, 0))
		analogPoles = append(analogPoles, (bp+disc)/2, (bp-disc)/2)
		zZeros = append(zZeros, complex(1, 0), complex(-1, 0))
	}
	zPoles, gain := bilinearPoles(analogPoles, fs)
	return assembleSOS(zZeros, zPoles, gain)
}

// bilinearPoles maps analog s-plane poles to the z-plane via
// z = (2fs + s) / (2fs - s), returning the mapped poles and the DC (or
// Nyquist, for highpass callers who pre-placed zeros accordingly) gain
// normalization factor of 1 — callers normalize gain in assembleSOS.
func bilinearPoles(analogPoles []complex128, fs float64) ([]complex128, float64) {
	k := 2 * fs
	zPoles := make([]complex128, len(analogPoles))
	for i, s := range analogPoles {
		zPoles[i] = (complex(k, 0) + s) / (complex(k, 0) - s)
	}
	return zPoles, 1
}

// assembleSOS pairs complex-conjugate zero/pole pairs into real biquads and
// normalizes overall gain to unity at DC (z=1) — the lowpass/bandpass
// convention.
func assembleSOS(zeros, poles []complex128, gain float64) ([]Biquad, error) {
	return assembleSOSAt(zeros, poles, gain, 1)
}

// assembleSOSAt is assembleSOS with an explicit normalization point on the
// unit circle (1 for DC, -1 for Nyquist — used by highpass).
func assembleSOSAt(zeros, poles []complex128, _ float64, normalizeZ float64) ([]Biquad, error) {
	if len(zeros) != len(poles) {
		// Pad zeros at the origin-adjacent point is unnecessary here since
		// callers always produce equal-length zero/pole lists.
		return nil, errors.New(fmt.Errorf("internal error: %d zeros vs %d poles", len(zeros), len(poles))).
			Component("dsp-filter").Category(errors.CategoryFilter).Build()
	}

	biquads := make([]Biquad, 0, (len(poles)+1)/2)
	usedPoles := make([]bool, len(poles))
	usedZeros := make([]bool, len(zeros))

	for i := 0; i < len(poles); i++ {
		if usedPoles[i] {
			continue
		}
		usedPoles[i] = true
		p1 := poles[i]
		var p2 complex128 = complex(0, 0)
		hasP2 := false
		if imag(p1) != 0 {
			// find conjugate partner
			for j := i + 1; j < len(poles); j++ {
				if !usedPoles[j] && isConjugate(poles[j], p1) {
					p2 = poles[j]
					usedPoles[j] = true
					hasP2 = true
					break
				}
			}
		}

		z1, z2 := pickZeroPair(zeros, usedZeros, imag(p1) != 0)

		var a1, a2 float64
		if hasP2 {
			a1 = -2 * real(p1)
			a2 = real(p1)*real(p1) + imag(p1)*imag(p1)
		} else {
			a1 = -real(p1)
			a2 = 0
			_ = p2
		}

		var b0, b1, b2 float64
		if z2 != nil {
			b0 = 1
			b1 = -real(z1) - real(*z2)
			b2 = real(z1)*real(*z2) - imag(z1)*imag(*z2)
		} else {
			b0 = 1
			b1 = -real(z1)
			b2 = 0
		}

		biquads = append(biquads, Biquad{B0: b0, B1: b1, B2: b2, A1: a1, A2: a2})
	}

	normalizeGainAt(biquads, normalizeZ)
	return biquads, nil
}

func isConjugate(a, b complex128) bool {
	const eps = 1e-9
	return math.Abs(real(a)-real(b)) < eps && math.Abs(imag(a)+imag(b)) < eps
}

// pickZeroPair consumes one or two still-unused zeros, preferring a
// conjugate pair when wantPair is set (matching a complex pole pair).
func pickZeroPair(zeros []complex128, used []bool, wantPair bool) (complex128, *complex128) {
	var first complex128
	firstIdx := -1
	for i, z := range zeros {
		if !used[i] {
			first = z
			firstIdx = i
			break
		}
	}
	if firstIdx == -1 {
		return complex(0, 0), nil
	}
	used[firstIdx] = true
	if !wantPair {
		return first, nil
	}
	for i := firstIdx + 1; i < len(zeros); i++ {
		if !used[i] {
			used[i] = true
			z2 := zeros[i]
			return first, &z2
		}
	}
	return first, nil
}

// normalizeGainAt scales b-coefficients so the cascade has unity gain at
// z=normalizeZ (1 for DC, -1 for Nyquist).
func normalizeGainAt(biquads []Biquad, z float64) {
	gain := 1.0
	for _, bq := range biquads {
		num := bq.B0 + bq.B1*z + bq.B2*z*z
		den := 1 + bq.A1*z + bq.A2*z*z
		if den != 0 {
			gain *= num / den
		}
	}
	if gain == 0 {
		return
	}
	scale := 1 / gain
	// apply the correction to the first section only
	if len(biquads) > 0 {
		biquads[0].B0 *= scale
		biquads[0].B1 *= scale
		biquads[0].B2 *= scale
	}
}

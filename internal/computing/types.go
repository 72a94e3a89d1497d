// Package computing implements the analytical shared-state bus that
// computing nodes write to and action nodes read from (spec.md §3, §9).
package computing

import "time"

// PeakResult is one peak-finder node's latest measurement.
type PeakResult struct {
	FrequencyHz      float64
	Amplitude        float64 // [0, 1]
	ConcentrationPPM *float64
	Timestamp        time.Time
	CoherenceScore   float64 // [0, 1]
	Metadata         map[string]any
}

// ConcentrationResult is one concentration node's latest computed value.
type ConcentrationResult struct {
	ConcentrationPPM      float64
	SourcePeakFinderID    string
	SpectralLineID        *string
	PolynomialCoefficients [5]float64
	SourceAmplitude       float64
	SourceFrequency       float64
	TemperatureCompensated bool
	Timestamp             time.Time
	Metadata              map[string]any
}

// ActionHistoryEntry records one poll of the shared bus by an action node
// (spec.md §3: "created when an action node polls the bus, destroyed when
// the ring evicts it").
type ActionHistoryEntry struct {
	Timestamp          time.Time
	PeakData           *PeakResult
	ConcentrationData  *ConcentrationResult
	SourceNodeID       string
	Metadata           map[string]any
}

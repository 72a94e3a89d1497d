// Package processing implements the typed DAG of DSP nodes that routes
// audio frames from acquisition through analysis to sinks and actions
// (spec.md §3, §4.1).
package processing

import "fmt"

// Kind tags the concrete shape carried by a Data value.
type Kind string

const (
	KindAudioFrame          Kind = "audio_frame"
	KindDualChannel         Kind = "dual_channel"
	KindSingleChannel       Kind = "single_channel"
	KindPhotoacousticResult Kind = "photoacoustic_result"
)

// Data is the single currency of the processing graph — a tagged union
// over the four shapes in spec.md §3.
type Data interface {
	Kind() Kind
	FrameNumberValue() uint64
}

// AudioFrame is the raw shape produced by the acquisition source: two
// equal-length channels from a differential microphone pair.
type AudioFrame struct {
	ChannelA, ChannelB []float32
	SampleRate         int
	TimestampMs        int64
	FrameNumber        uint64
}

func (f AudioFrame) Kind() Kind                { return KindAudioFrame }
func (f AudioFrame) FrameNumberValue() uint64  { return f.FrameNumber }

// DualChannel is the post-filter two-channel shape (same layout as
// AudioFrame, distinct tag so nodes can require "already processed"
// input).
type DualChannel struct {
	ChannelA, ChannelB []float32
	SampleRate         int
	TimestampMs        int64
	FrameNumber        uint64
}

func (d DualChannel) Kind() Kind               { return KindDualChannel }
func (d DualChannel) FrameNumberValue() uint64 { return d.FrameNumber }

// SingleChannel is a mixed-down or single-microphone signal.
type SingleChannel struct {
	Samples     []float32
	SampleRate  int
	TimestampMs int64
	FrameNumber uint64
}

func (s SingleChannel) Kind() Kind               { return KindSingleChannel }
func (s SingleChannel) FrameNumberValue() uint64 { return s.FrameNumber }

// ResultMetadata carries a photoacoustic measurement's derived quantities.
type ResultMetadata struct {
	FrequencyHz      float64
	Amplitude        float64
	ConcentrationPPM *float64
	TimestampMs      int64
	Extra            map[string]any
}

// PhotoacousticResult wraps the signal that produced a measurement
// together with its derived metadata; emitted by computing nodes that
// choose to pass an annotated value downstream instead of (or in addition
// to) writing the shared bus.
type PhotoacousticResult struct {
	Signal      Data
	Metadata    ResultMetadata
	FrameNumber uint64
}

func (p PhotoacousticResult) Kind() Kind               { return KindPhotoacousticResult }
func (p PhotoacousticResult) FrameNumberValue() uint64 { return p.FrameNumber }

// ValidateDualChannel checks the invariants spec.md §3 requires of any
// dual-channel shape: equal channel lengths and a positive sample rate.
func ValidateDualChannel(a, b []float32, sampleRate int) error {
	if len(a) != len(b) {
		return fmt.Errorf("channel length mismatch: %d vs %d", len(a), len(b))
	}
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	return nil
}

// Clip clamps a sample to [-1, 1]. Per spec.md §3, values outside that
// range indicate an upstream fault and MUST be clipped by sinks rather
// than silently propagated.
func Clip(x float32) float32 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	default:
		return x
	}
}

// ClipAll clips every sample of signal in place and returns it.
func ClipAll(signal []float32) []float32 {
	for i, x := range signal {
		signal[i] = Clip(x)
	}
	return signal
}

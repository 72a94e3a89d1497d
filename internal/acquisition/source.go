// Package acquisition produces the AudioFrame values the processing graph
// consumes (spec.md §3, §5): a live microphone source, a deterministic
// generator source for tests and calibration, and a bounded fan-out that
// lets multiple consumers (the graph executor, a calibration tap) read the
// same stream without one slow consumer stalling the others.
package acquisition

import (
	"context"

	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// Source produces a stream of stereo audio frames until its context is
// cancelled or Stop is called. Mirrors the teacher's AudioSource
// interface shape (ID/Start/Stop/AudioOutput/Errors/IsActive).
type Source interface {
	ID() string
	Start(ctx context.Context) error
	Stop() error
	AudioOutput() <-chan processing.AudioFrame
	Errors() <-chan error
	IsActive() bool
	SampleRate() int
}

package thermal

import (
	"sync"

	"github.com/sctg-development/photoacoustic-go/internal/dsp"
)

// SharedState holds one regulator's introspectable state behind an RWMutex:
// writers are the regulator's own loop goroutine, readers are the HTTP
// introspection surface (spec.md §5: "thermal shared state is RW lock with
// FIFO-truncated fixed-capacity ring").
type SharedState struct {
	mu      sync.RWMutex
	state   RegulatorState
	history *dsp.CircularBuffer[ThermalDataPoint]
}

// NewSharedState creates state for a regulator with a history ring sized
// for historyHours at the given sampling frequency.
func NewSharedState(id, name string, samplingHz, historyHours float64) *SharedState {
	capacity := int(samplingHz * historyHours * 3600)
	if capacity <= 0 {
		capacity = 1
	}
	return &SharedState{
		state: RegulatorState{
			ID:     id,
			Name:   name,
			Status: StatusUninitialized,
		},
		history: dsp.NewCircularBuffer[ThermalDataPoint](capacity),
	}
}

// Snapshot returns a copy of the current state.
func (s *SharedState) Snapshot() RegulatorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// History returns the retained data points, oldest first.
func (s *SharedState) History() []ThermalDataPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Iter()
}

// SetStatus updates the status and the accompanying message, whatever the
// status (an empty message clears it).
func (s *SharedState) SetStatus(status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Status = status
	s.state.ErrorMessage = message
}

// SetGains mirrors the PID's current gains/setpoint into the introspectable
// state so an HTTP reader doesn't need to touch the PID controller itself.
func (s *SharedState) SetGains(kp, ki, kd, setpoint float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Kp, s.state.Ki, s.state.Kd, s.state.Setpoint = kp, ki, kd, setpoint
}

// RecordConsecutiveErrors sets the current consecutive-error count,
// exposed for operators watching for a regulator approaching its
// escalation threshold.
func (s *SharedState) RecordConsecutiveErrors(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ConsecutiveErrors = n
}

// Append records a new sample, updating the "latest" view and pushing onto
// the bounded history ring.
func (s *SharedState) Append(point ThermalDataPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastSample = point
	s.state.HasSample = true
	s.history.Push(point)
}

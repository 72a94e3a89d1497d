package thermal

import "time"

// Status describes a regulator's run state (spec.md §4.9). The zero value
// is Uninitialized.
type Status int

const (
	StatusUninitialized Status = iota
	StatusInitializing
	StatusRunning
	StatusError
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusInitializing:
		return "initializing"
	case StatusRunning:
		return "running"
	case StatusError:
		return "error"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ThermalDataPoint is one sample appended to a regulator's history ring
// (spec.md §4.9, §6: "thermal status per regulator + history").
type ThermalDataPoint struct {
	Timestamp     time.Time
	TemperatureC  float64
	Setpoint      float64
	Output        float64
	PIDComponents PIDComponents
	RawADCCounts  int
}

// RegulatorState is the introspectable snapshot of one running regulator
// (spec.md §6: thermal status endpoint).
type RegulatorState struct {
	ID                string
	Name              string
	Status            Status
	ErrorMessage      string
	LastSample        ThermalDataPoint
	HasSample         bool
	Kp, Ki, Kd        float64
	Setpoint          float64
	ConsecutiveErrors int
}

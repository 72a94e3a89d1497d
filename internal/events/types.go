// Package events provides an asynchronous, non-blocking dispatch bus for
// action triggers, decoupling the action node (which must never stall the
// processing graph) from slow side-effecting drivers (MQTT publish, a
// future external script call).
package events

import "time"

// TriggerKind enumerates the trigger variants from spec.md §4.4.
type TriggerKind string

const (
	TriggerConcentrationThreshold TriggerKind = "concentration_threshold"
	TriggerAmplitudeThreshold     TriggerKind = "amplitude_threshold"
	TriggerFrequencyDeviation     TriggerKind = "frequency_deviation"
	TriggerDataTimeout            TriggerKind = "data_timeout"
	TriggerCustom                 TriggerKind = "custom"
)

// Trigger is the payload dispatched through the bus to action drivers.
type Trigger struct {
	EventID      string
	Kind         TriggerKind
	ActionID     string
	SourceNodeID string
	Value        float64
	Threshold    float64
	Expected     float64
	Tolerance    float64
	ElapsedS     float64
	TimeoutS     float64
	CustomID     string
	CustomJSON   map[string]any
	Timestamp    time.Time
}

// Driver consumes dispatched triggers and performs the side effect (log
// line, MQTT publish, relay toggle, ...). Drivers must not block the bus
// worker for longer than they can afford — long calls should apply their
// own timeout.
type Driver interface {
	Name() string
	Handle(t Trigger) error
}

// BusStats mirrors the bus's atomically-updated counters for introspection.
type BusStats struct {
	Received  uint64
	Dispatched uint64
	Dropped   uint64
	DriverErrors uint64
}

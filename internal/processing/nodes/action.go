package nodes

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/dsp"
	"github.com/sctg-development/photoacoustic-go/internal/events"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// ActionParams is the decoded configuration: monitored_nodes,
// buffer_capacity, thresholds {concentration_ppm, amplitude},
// data_timeout_s and min_interval_s. An update_interval_ms key is not read.
type ActionParams struct {
	MonitoredNodes   []string
	BufferCapacity   int
	ConcentrationPPM *float64
	Amplitude        *float64
	DataTimeoutS     float64
	MinIntervalS     float64
}

func decodeActionParams(raw map[string]any) ActionParams {
	p := ActionParams{BufferCapacity: 64, DataTimeoutS: 30}
	if nodes, ok := raw["monitored_nodes"].([]any); ok {
		for _, n := range nodes {
			if s, ok := n.(string); ok {
				p.MonitoredNodes = append(p.MonitoredNodes, s)
			}
		}
	}
	if v, ok := numericValue(raw["buffer_capacity"]); ok {
		p.BufferCapacity = int(v)
	}
	if thresholds, ok := raw["thresholds"].(map[string]any); ok {
		if v, ok := numericValue(thresholds["concentration_ppm"]); ok {
			p.ConcentrationPPM = &v
		}
		if v, ok := numericValue(thresholds["amplitude"]); ok {
			p.Amplitude = &v
		}
	}
	if v, ok := numericValue(raw["data_timeout_s"]); ok {
		p.DataTimeoutS = v
	}
	if v, ok := numericValue(raw["min_interval_s"]); ok {
		p.MinIntervalS = v
	}
	return p
}

// Action is a reference action node (spec.md §4.4): pass-through on the
// signal, reads the shared analytical bus under a non-blocking try-read,
// and dispatches triggers to the event bus when a monitored threshold is
// crossed or a monitored node's data goes stale.
type Action struct {
	processing.BaseNode

	computingBus *computing.Bus
	eventBus     *events.Bus
	logger       *slog.Logger

	mu        sync.Mutex
	params    ActionParams
	history   *dsp.CircularBuffer[computing.ActionHistoryEntry]
	lastFired time.Time
}

// NewActionFactory binds both buses the same way the computing-node
// factories bind the analytical bus.
func NewActionFactory(computingBus *computing.Bus, eventBus *events.Bus) func(id string, raw map[string]any) (processing.Node, error) {
	return func(id string, raw map[string]any) (processing.Node, error) {
		params := decodeActionParams(raw)
		return &Action{
			BaseNode:     processing.NewBaseNode(id, "action", processing.FamilyAction),
			computingBus: computingBus,
			eventBus:     eventBus,
			logger:       logging.ForComponent("action"),
			params:       params,
			history:      dsp.NewCircularBuffer[computing.ActionHistoryEntry](params.BufferCapacity),
		}, nil
	}
}

func (a *Action) AcceptsKind(processing.Kind) bool { return true }

func (a *Action) OutputKindFor(k processing.Kind) (processing.Kind, bool) { return k, true }

// Process implements the borrow-safety pattern from spec.md §4.4/§9:
// clone the snapshot while holding the bus's read lock for the minimum
// time, release it, then mutate self (history, trigger dispatch).
func (a *Action) Process(input processing.Data) (processing.Data, error) {
	snapshot, ok := a.computingBus.TrySnapshot()
	if !ok {
		return input, nil // contention: skip this tick, per spec.md §5
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	for _, nodeID := range a.params.MonitoredNodes {
		peak, hasPeak := snapshot.Peaks[nodeID]
		if !hasPeak {
			continue
		}
		a.recordHistory(nodeID, &peak, nil, now)
		a.evaluateThresholds(nodeID, peak, now)
		if peak.IsStale(time.Duration(a.params.DataTimeoutS*float64(time.Second)), now) {
			a.fire(events.Trigger{
				Kind:         events.TriggerDataTimeout,
				ActionID:     a.ID(),
				SourceNodeID: nodeID,
				ElapsedS:     now.Sub(peak.Timestamp).Seconds(),
				TimeoutS:     a.params.DataTimeoutS,
				Timestamp:    now,
			})
		}
	}

	return input, nil
}

func (a *Action) recordHistory(nodeID string, peak *computing.PeakResult, conc *computing.ConcentrationResult, now time.Time) {
	a.history.Push(computing.ActionHistoryEntry{
		Timestamp:         now,
		PeakData:          peak,
		ConcentrationData: conc,
		SourceNodeID:      nodeID,
	})
}

func (a *Action) evaluateThresholds(nodeID string, peak computing.PeakResult, now time.Time) {
	if a.params.Amplitude != nil && peak.Amplitude >= *a.params.Amplitude {
		a.fire(events.Trigger{
			Kind:         events.TriggerAmplitudeThreshold,
			ActionID:     a.ID(),
			SourceNodeID: nodeID,
			Value:        peak.Amplitude,
			Threshold:    *a.params.Amplitude,
			Timestamp:    now,
		})
	}
	if a.params.ConcentrationPPM != nil && peak.ConcentrationPPM != nil && *peak.ConcentrationPPM >= *a.params.ConcentrationPPM {
		a.fire(events.Trigger{
			Kind:         events.TriggerConcentrationThreshold,
			ActionID:     a.ID(),
			SourceNodeID: nodeID,
			Value:        *peak.ConcentrationPPM,
			Threshold:    *a.params.ConcentrationPPM,
			Timestamp:    now,
		})
	}
}

// fire applies the per-action minimum-interval rate limit (spec.md §4.4)
// before publishing to the event bus.
func (a *Action) fire(t events.Trigger) bool {
	if a.params.MinIntervalS > 0 && !a.lastFired.IsZero() {
		if t.Timestamp.Sub(a.lastFired).Seconds() < a.params.MinIntervalS {
			return false
		}
	}
	fired := a.eventBus.TryPublish(t)
	if fired {
		a.lastFired = t.Timestamp
	} else {
		a.logger.Warn("trigger dropped by event bus", "action_id", a.ID(), "kind", t.Kind)
	}
	return fired
}

// TriggerAction exposes the manual trigger entry point named in spec.md
// §4.4 ("trigger_action(trigger) returning whether the action fired").
func (a *Action) TriggerAction(t events.Trigger) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	t.ActionID = a.ID()
	return a.fire(t)
}

// History returns a copy of the action-history ring, oldest first.
func (a *Action) History() []computing.ActionHistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Iter()
}

func (a *Action) SupportsHotReload() bool { return true }

func (a *Action) UpdateConfig(raw map[string]any) (bool, error) {
	newParams := decodeActionParams(raw)
	a.mu.Lock()
	defer a.mu.Unlock()
	if sameActionParams(newParams, a.params) {
		return false, nil
	}
	if newParams.BufferCapacity != a.params.BufferCapacity {
		a.history.Resize(newParams.BufferCapacity)
	}
	a.params = newParams
	return true, nil
}

func sameActionParams(a, b ActionParams) bool {
	if a.BufferCapacity != b.BufferCapacity || a.DataTimeoutS != b.DataTimeoutS || a.MinIntervalS != b.MinIntervalS {
		return false
	}
	if len(a.MonitoredNodes) != len(b.MonitoredNodes) {
		return false
	}
	for i := range a.MonitoredNodes {
		if a.MonitoredNodes[i] != b.MonitoredNodes[i] {
			return false
		}
	}
	return floatPtrEqual(a.ConcentrationPPM, b.ConcentrationPPM) && floatPtrEqual(a.Amplitude, b.Amplitude)
}

func floatPtrEqual(a, b *float64) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func (a *Action) CloneShape() processing.Node {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &Action{
		BaseNode:     processing.NewBaseNode(a.ID(), "action", processing.FamilyAction),
		computingBus: a.computingBus,
		eventBus:     a.eventBus,
		logger:       a.logger,
		params:       a.params,
		history:      dsp.NewCircularBuffer[computing.ActionHistoryEntry](a.params.BufferCapacity),
	}
}

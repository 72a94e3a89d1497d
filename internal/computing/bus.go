package computing

import (
	"sync"
	"time"
)

// Bus is the reader-writer-locked analytical state shared between
// computing nodes (writers) and action nodes / HTTP handlers (readers).
// Exactly one Bus is owned by the daemon supervisor and handed to nodes as
// a capability (spec.md §3, §9: "never hold the lock across async
// awaits" — every method here returns before any caller can await).
type Bus struct {
	mu             sync.RWMutex
	peaks          map[string]PeakResult
	concentrations map[string]ConcentrationResult
}

// NewBus constructs an empty analytical bus.
func NewBus() *Bus {
	return &Bus{
		peaks:          make(map[string]PeakResult),
		concentrations: make(map[string]ConcentrationResult),
	}
}

// WritePeak inserts or replaces the PeakResult for nodeID. Writers hold the
// lock only for the duration of the map insert (spec.md §5).
func (b *Bus) WritePeak(nodeID string, r PeakResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.peaks[nodeID] = r
}

// AnnotatePeakConcentration back-writes ConcentrationPPM onto an existing
// PeakResult without disturbing its other fields (spec.md §4.3, §9: "a
// second writer to the same shared map", not a graph cycle). Returns false
// if nodeID has no entry yet.
func (b *Bus) AnnotatePeakConcentration(nodeID string, ppm float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.peaks[nodeID]
	if !ok {
		return false
	}
	r.ConcentrationPPM = &ppm
	b.peaks[nodeID] = r
	return true
}

// WriteConcentration inserts or replaces the ConcentrationResult for
// nodeID.
func (b *Bus) WriteConcentration(nodeID string, r ConcentrationResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.concentrations[nodeID] = r
}

// Peak returns a copy of the PeakResult for nodeID and whether it exists.
func (b *Bus) Peak(nodeID string) (PeakResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.peaks[nodeID]
	return r, ok
}

// Concentration returns a copy of the ConcentrationResult for nodeID.
func (b *Bus) Concentration(nodeID string) (ConcentrationResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.concentrations[nodeID]
	return r, ok
}

// LatestPeak returns the most recently updated PeakResult across all
// nodes, used by concentration nodes left unbound to a specific
// peak-finder id (spec.md §4.3).
func (b *Bus) LatestPeak() (string, PeakResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var bestID string
	var best PeakResult
	found := false
	for id, r := range b.peaks {
		if !found || r.Timestamp.After(best.Timestamp) {
			bestID, best, found = id, r, true
		}
	}
	return bestID, best, found
}

// TrySnapshot attempts a non-blocking read of the full bus state, per the
// action-node borrow-safety pattern (spec.md §4.4, §9): clone while
// holding the read lock for the minimum time, release, then let the caller
// mutate itself. Returns false if the bus is currently write-locked.
func (b *Bus) TrySnapshot() (Snapshot, bool) {
	if !b.mu.TryRLock() {
		return Snapshot{}, false
	}
	defer b.mu.RUnlock()

	peaks := make(map[string]PeakResult, len(b.peaks))
	for k, v := range b.peaks {
		peaks[k] = v
	}
	concentrations := make(map[string]ConcentrationResult, len(b.concentrations))
	for k, v := range b.concentrations {
		concentrations[k] = v
	}
	return Snapshot{Peaks: peaks, Concentrations: concentrations, Taken: time.Now()}, true
}

// Snapshot returns a blocking (read-locked) copy of the whole bus —
// used by the HTTP introspection surface, which is not on the processing
// hot path and may wait briefly for a writer.
func (b *Bus) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	peaks := make(map[string]PeakResult, len(b.peaks))
	for k, v := range b.peaks {
		peaks[k] = v
	}
	concentrations := make(map[string]ConcentrationResult, len(b.concentrations))
	for k, v := range b.concentrations {
		concentrations[k] = v
	}
	return Snapshot{Peaks: peaks, Concentrations: concentrations, Taken: time.Now()}
}

// Snapshot is an immutable point-in-time copy of the bus.
type Snapshot struct {
	Peaks          map[string]PeakResult
	Concentrations map[string]ConcentrationResult
	Taken          time.Time
}

// IsStale reports whether a PeakResult was last updated more than maxAge
// ago (spec.md §3: "staleness queries are defined by 'updated within last
// N seconds'").
func (r PeakResult) IsStale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(r.Timestamp) > maxAge
}

package nodes

import (
	"github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/events"
	"github.com/sctg-development/photoacoustic-go/internal/processing"
)

// RegisterBuiltins registers every built-in node type (spec.md §4.2–§4.5)
// into registry, threading the shared analytical bus and event bus into
// the node types that need them via the factory-closure capability
// pattern — no package-level globals (spec.md §9).
func RegisterBuiltins(registry *processing.Registry, computingBus *computing.Bus, eventBus *events.Bus) {
	registry.Register("source_acquisition", NewSourceAcquisition)
	registry.Register("filter", NewFilter)
	registry.Register("peak_finder", NewPeakFinderFactory(computingBus))
	registry.Register("concentration", NewConcentrationFactory(computingBus))
	registry.Register("action", NewActionFactory(computingBus, eventBus))
	registry.Register("record", NewRecord)
}

// Package nodes implements the built-in processing-graph node types
// (spec.md §4.2–§4.5) on top of internal/processing's Node capability
// interface.
package nodes

import "github.com/sctg-development/photoacoustic-go/internal/processing"

// SourceAcquisition is the designated input node: the daemon's graph
// executor task already pulled the frame from the acquisition fan-out
// before calling Graph.Execute, so this node's Process is an identity
// pass-through that exists only to occupy the graph's input slot and
// clip any out-of-range samples per spec.md §3.
type SourceAcquisition struct {
	processing.BaseNode
}

// NewSourceAcquisition builds a source node. params is accepted for
// registry-signature symmetry but unused — live sample data arrives via
// the frame argument to Graph.Execute, not through node configuration.
func NewSourceAcquisition(id string, _ map[string]any) (processing.Node, error) {
	return &SourceAcquisition{BaseNode: processing.NewBaseNode(id, "source_acquisition", processing.FamilySource)}, nil
}

func (n *SourceAcquisition) AcceptsKind(k processing.Kind) bool {
	return k == processing.KindAudioFrame
}

func (n *SourceAcquisition) OutputKindFor(k processing.Kind) (processing.Kind, bool) {
	if k == processing.KindAudioFrame {
		return processing.KindAudioFrame, true
	}
	return "", false
}

func (n *SourceAcquisition) Process(input processing.Data) (processing.Data, error) {
	frame, ok := input.(processing.AudioFrame)
	if !ok {
		return input, nil
	}
	processing.ClipAll(frame.ChannelA)
	processing.ClipAll(frame.ChannelB)
	return frame, nil
}

func (n *SourceAcquisition) CloneShape() processing.Node {
	clone, _ := NewSourceAcquisition(n.ID(), nil)
	return clone
}

package processing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identityNode passes AudioFrame through unchanged, used as a minimal
// stand-in for a source/sink in graph-construction tests.
type identityNode struct {
	BaseNode
	accept Kind
}

func newIdentityNode(id string, _ map[string]any) (Node, error) {
	return &identityNode{BaseNode: NewBaseNode(id, "identity", FamilyTransform), accept: KindAudioFrame}, nil
}

func (n *identityNode) Process(input Data) (Data, error) { return input, nil }
func (n *identityNode) AcceptsKind(k Kind) bool           { return k == n.accept }
func (n *identityNode) OutputKindFor(k Kind) (Kind, bool) { return k, k == n.accept }
func (n *identityNode) CloneShape() Node                  { c := *n; return &c }

func newActionStubNode(id string, _ map[string]any) (Node, error) {
	return &identityNode{BaseNode: NewBaseNode(id, "action_stub", FamilyAction), accept: KindAudioFrame}, nil
}

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register("identity", newIdentityNode)
	r.Register("action_stub", newActionStubNode)
	return r
}

func TestBuildGraphExecutesLinearChain(t *testing.T) {
	g, err := BuildGraph(testRegistry(), "in", []NodeDescriptor{
		{ID: "in", Type: "identity"},
		{ID: "mid", Type: "identity"},
		{ID: "out", Type: "identity"},
	}, []EdgeDescriptor{{From: "in", To: "mid"}, {From: "mid", To: "out"}})
	require.NoError(t, err)

	results, err := g.Execute(AudioFrame{ChannelA: []float32{1}, ChannelB: []float32{1}, FrameNumber: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].FrameNumberValue())
}

func TestBuildGraphRejectsMissingInputNode(t *testing.T) {
	_, err := BuildGraph(testRegistry(), "", []NodeDescriptor{{ID: "a", Type: "identity"}}, nil)
	assert.Error(t, err)
}

func TestBuildGraphRejectsCycle(t *testing.T) {
	_, err := BuildGraph(testRegistry(), "a", []NodeDescriptor{
		{ID: "a", Type: "identity"}, {ID: "b", Type: "identity"},
	}, []EdgeDescriptor{{From: "a", To: "b"}, {From: "b", To: "a"}})
	assert.Error(t, err)
}

func TestBuildGraphRejectsFanIn(t *testing.T) {
	_, err := BuildGraph(testRegistry(), "a", []NodeDescriptor{
		{ID: "a", Type: "identity"}, {ID: "b", Type: "identity"}, {ID: "c", Type: "identity"},
	}, []EdgeDescriptor{{From: "a", To: "c"}, {From: "b", To: "c"}})
	assert.Error(t, err)
}

func TestBuildGraphRejectsUnreachableNode(t *testing.T) {
	_, err := BuildGraph(testRegistry(), "a", []NodeDescriptor{
		{ID: "a", Type: "identity"}, {ID: "orphan", Type: "identity"},
	}, nil)
	assert.Error(t, err)
}

func TestGraphGetStatisticsTracksFramesProcessed(t *testing.T) {
	g, err := BuildGraph(testRegistry(), "in", []NodeDescriptor{{ID: "in", Type: "identity"}}, nil)
	require.NoError(t, err)

	_, err = g.Execute(AudioFrame{FrameNumber: 1})
	require.NoError(t, err)
	_, err = g.Execute(AudioFrame{FrameNumber: 2})
	require.NoError(t, err)

	stats := g.GetStatistics()
	assert.Equal(t, uint64(2), stats["in"].FramesProcessed)
}

func TestGraphNodesByFamilyFindsActionNodes(t *testing.T) {
	g, err := BuildGraph(testRegistry(), "in", []NodeDescriptor{
		{ID: "in", Type: "identity"}, {ID: "act", Type: "action_stub"},
	}, []EdgeDescriptor{{From: "in", To: "act"}})
	require.NoError(t, err)

	ids := g.NodesByFamily(FamilyAction)
	assert.Equal(t, []string{"act"}, ids)
	assert.Empty(t, g.NodesByFamily(FamilySink))
}

func TestGraphUpdateNodeConfigUsesRegistryFallbackWhenNotHotReloadable(t *testing.T) {
	g, err := BuildGraph(testRegistry(), "in", []NodeDescriptor{{ID: "in", Type: "identity"}}, nil)
	require.NoError(t, err)

	changed, err := g.UpdateNodeConfig("in", "identity", map[string]any{})
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestGraphUpdateNodeConfigRejectsUnknownNode(t *testing.T) {
	g, err := BuildGraph(testRegistry(), "in", []NodeDescriptor{{ID: "in", Type: "identity"}}, nil)
	require.NoError(t, err)

	_, err = g.UpdateNodeConfig("missing", "identity", nil)
	assert.Error(t, err)
}

func TestRegistryBuildReturnsErrorForUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build("nonexistent", "x", nil)
	assert.Error(t, err)
}

func TestRegistryHasReflectsRegistration(t *testing.T) {
	r := testRegistry()
	assert.True(t, r.Has("identity"))
	assert.False(t, r.Has(fmt.Sprintf("not-%s", "registered")))
}

package processing

import (
	"fmt"
	"sync"
	"time"
)

// NodeDescriptor is a graph-build-time node specification.
type NodeDescriptor struct {
	ID     string
	Type   string
	Params map[string]any
}

// EdgeDescriptor connects two node ids.
type EdgeDescriptor struct {
	From, To string
}

// Stats is a per-node execution snapshot (spec.md §4.1: "frames_processed,
// frames_errored, cumulative processing time, last processing time, peak
// processing time").
type Stats struct {
	FramesProcessed          uint64
	FramesErrored            uint64
	CumulativeProcessingTime time.Duration
	LastProcessingTime       time.Duration
	PeakProcessingTime       time.Duration
}

// Graph is a validated, topologically-ordered DAG of nodes (spec.md §3,
// §4.1). The node table is guarded by mu: Execute holds the read lock for
// the whole frame and UpdateNodeConfig takes the write lock, so a
// reconfiguration always lands between frames (spec.md §5).
type Graph struct {
	registry *Registry

	mu    sync.RWMutex
	nodes map[string]Node

	successors   map[string][]string
	predecessors map[string]string // empty string = no predecessor (input node)
	order        []string          // cached topological order
	inputNodeID  string
	terminals    []string // cached, stable order

	statsMu sync.Mutex
	stats   map[string]*Stats
}

// BuildGraph validates node descriptors and edges and constructs a Graph,
// or returns a *ValidationError naming the specific failure (spec.md §4.1,
// §8 property 1: "never panics").
func BuildGraph(registry *Registry, inputNodeID string, nodeCfgs []NodeDescriptor, edgeCfgs []EdgeDescriptor) (*Graph, error) {
	if inputNodeID == "" {
		return nil, newValidationError(ErrNoInputNode, "", "no input node designated")
	}

	nodes := make(map[string]Node, len(nodeCfgs))
	for _, nc := range nodeCfgs {
		if _, dup := nodes[nc.ID]; dup {
			return nil, newValidationError(ErrDuplicateNodeID, nc.ID, "duplicate node id")
		}
		if !registry.Has(nc.Type) {
			return nil, newValidationError(ErrUnknownNodeType, nc.ID, fmt.Sprintf("unknown node type %q", nc.Type))
		}
		n, err := registry.Build(nc.Type, nc.ID, nc.Params)
		if err != nil {
			return nil, err
		}
		nodes[nc.ID] = n
	}

	if _, ok := nodes[inputNodeID]; !ok {
		return nil, newValidationError(ErrNoInputNode, inputNodeID, "designated input node does not exist")
	}

	successors := make(map[string][]string, len(nodes))
	predecessors := make(map[string]string, len(nodes))
	for id := range nodes {
		successors[id] = nil
		predecessors[id] = ""
	}

	for _, e := range edgeCfgs {
		if _, ok := nodes[e.From]; !ok {
			return nil, newValidationError(ErrUnknownEdgeEndpoint, e.From, "edge references unknown node")
		}
		if _, ok := nodes[e.To]; !ok {
			return nil, newValidationError(ErrUnknownEdgeEndpoint, e.To, "edge references unknown node")
		}
		if predecessors[e.To] != "" {
			return nil, newValidationError(ErrFanInNotAllowed, e.To, "node already has a predecessor")
		}
		predecessors[e.To] = e.From
		successors[e.From] = append(successors[e.From], e.To)
	}

	order, err := topoSort(inputNodeID, nodes, successors)
	if err != nil {
		return nil, err
	}

	if err := checkReachability(inputNodeID, nodes, successors); err != nil {
		return nil, err
	}

	if err := checkTypeCompatibility(order, nodes, predecessors); err != nil {
		return nil, err
	}

	var terminals []string
	for _, id := range order {
		if len(successors[id]) == 0 {
			terminals = append(terminals, id)
		}
	}

	stats := make(map[string]*Stats, len(nodes))
	for id := range nodes {
		stats[id] = &Stats{}
	}

	return &Graph{
		registry:     registry,
		nodes:        nodes,
		successors:   successors,
		predecessors: predecessors,
		order:        order,
		inputNodeID:  inputNodeID,
		terminals:    terminals,
		stats:        stats,
	}, nil
}

// topoSort returns nodes in dependency order via Kahn's algorithm,
// starting from the input node. Any node unreachable from the input is
// still included at the end (reachability is flagged separately so the
// error kind names the real problem).
func topoSort(inputNodeID string, nodes map[string]Node, successors map[string][]string) ([]string, error) {
	inDegree := make(map[string]int, len(nodes))
	for id := range nodes {
		inDegree[id] = 0
	}
	for _, succs := range successors {
		for _, s := range succs {
			inDegree[s]++
		}
	}

	queue := []string{inputNodeID}
	visited := make(map[string]bool, len(nodes))
	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, id)
		for _, s := range successors[id] {
			if visited[s] {
				// with fan-in capped at one, an edge back to an already
				// ordered node (the input included) closes a cycle
				return nil, newValidationError(ErrCycleDetected, s, "edge back to an already-ordered node forms a cycle")
			}
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
			}
		}
	}

	// any node with unresolved in-degree > 0 reachable through the
	// remaining graph indicates a cycle.
	if len(order) < len(nodes) {
		remaining := len(nodes) - len(order)
		hasCycleEdge := false
		for id, deg := range inDegree {
			if !visited[id] && deg > 0 {
				hasCycleEdge = true
				break
			}
		}
		if hasCycleEdge {
			return nil, newValidationError(ErrCycleDetected, "", fmt.Sprintf("%d node(s) not reachable without forming a cycle", remaining))
		}
		// remaining nodes are simply disconnected from the input; append
		// them in arbitrary stable order for completeness, reachability
		// validation reports the real defect.
		for id := range nodes {
			if !visited[id] {
				order = append(order, id)
			}
		}
	}
	return order, nil
}

func checkReachability(inputNodeID string, nodes map[string]Node, successors map[string][]string) error {
	visited := map[string]bool{inputNodeID: true}
	queue := []string{inputNodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, s := range successors[id] {
			if !visited[s] {
				visited[s] = true
				queue = append(queue, s)
			}
		}
	}
	for id := range nodes {
		if len(successors[id]) == 0 && !visited[id] {
			return newValidationError(ErrUnreachableOutput, id, "no path from input node to this terminal node")
		}
	}
	return nil
}

func checkTypeCompatibility(order []string, nodes map[string]Node, predecessors map[string]string) error {
	// Probe each node's declared output kind for every kind it accepts as
	// input, to cross-check against a downstream node's accepted kinds
	// without needing an actual frame at build time.
	allKinds := []Kind{KindAudioFrame, KindDualChannel, KindSingleChannel, KindPhotoacousticResult}

	for _, id := range order {
		pred := predecessors[id]
		if pred == "" {
			continue
		}
		upstream := nodes[pred]
		downstream := nodes[id]

		compatible := false
		for _, k := range allKinds {
			outKind, ok := upstream.OutputKindFor(k)
			if !ok {
				continue
			}
			if downstream.AcceptsKind(outKind) {
				compatible = true
				break
			}
		}
		if !compatible {
			return newValidationError(ErrTypeMismatch, id, fmt.Sprintf("no compatible output shape from predecessor %q", pred))
		}
	}
	return nil
}

// Execute runs one frame through the graph per spec.md §4.1's execution
// contract, returning the outputs of all terminal nodes in stable order.
func (g *Graph) Execute(frame Data) ([]Data, error) {
	// held for the whole frame, so UpdateNodeConfig's write lock can only
	// land between frames
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodes := g.nodes
	order := g.order
	successors := g.successors
	predecessors := g.predecessors

	outputs := make(map[string]Data, len(order))
	outputs[g.inputNodeID] = frame

	for _, id := range order {
		var input Data
		if id == g.inputNodeID {
			input = frame
		} else {
			pred := predecessors[id]
			if pred == "" {
				continue // disconnected node, nothing to feed it
			}
			input = outputs[pred]
		}

		node := nodes[id]
		if !node.AcceptsKind(input.Kind()) {
			return nil, newValidationError(ErrTypeMismatch, id,
				fmt.Sprintf("node declared it would not accept shape %q at runtime", input.Kind()))
		}

		start := time.Now()
		result, err := node.Process(input)
		elapsed := time.Since(start)
		g.recordStats(id, elapsed, err == nil)

		if err != nil {
			return nil, fmt.Errorf("node %q: %w", id, err)
		}
		outputs[id] = result
		_ = successors // reserved for future fan-out ordering refinements
	}

	results := make([]Data, 0, len(g.terminals))
	for _, id := range g.terminals {
		if out, ok := outputs[id]; ok {
			results = append(results, out)
		}
	}
	return results, nil
}

func (g *Graph) recordStats(id string, elapsed time.Duration, ok bool) {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	s := g.stats[id]
	if s == nil {
		s = &Stats{}
		g.stats[id] = s
	}
	if ok {
		s.FramesProcessed++
	} else {
		s.FramesErrored++
	}
	s.CumulativeProcessingTime += elapsed
	s.LastProcessingTime = elapsed
	if elapsed > s.PeakProcessingTime {
		s.PeakProcessingTime = elapsed
	}
	observeNodeExecution(id, elapsed.Seconds(), ok)
}

// GetStatistics returns a snapshot of every node's execution counters.
func (g *Graph) GetStatistics() map[string]Stats {
	g.statsMu.Lock()
	defer g.statsMu.Unlock()
	out := make(map[string]Stats, len(g.stats))
	for id, s := range g.stats {
		out[id] = *s
	}
	return out
}

// Nodes returns the node ids and their edges, for HTTP introspection.
func (g *Graph) Nodes() (ids []string, edges []EdgeDescriptor) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for id := range g.nodes {
		ids = append(ids, id)
	}
	for from, succs := range g.successors {
		for _, to := range succs {
			edges = append(edges, EdgeDescriptor{From: from, To: to})
		}
	}
	return ids, edges
}

// NodesByFamily returns the ids of every node with the given Family, in no
// particular order — used by the HTTP introspection surface's action-node
// listing (spec.md §6).
func (g *Graph) NodesByFamily(family Family) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []string
	for id, n := range g.nodes {
		if n.Family() == family {
			ids = append(ids, id)
		}
	}
	return ids
}

// UpdateNodeConfig applies a hot-reload to one node (spec.md §4.1). If the
// node doesn't support in-place reconfiguration, a fresh instance of the
// same type is constructed and swapped in under the write lock, which is
// only ever taken between frames.
func (g *Graph) UpdateNodeConfig(nodeID, nodeType string, params map[string]any) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[nodeID]
	if !ok {
		return false, newValidationError(ErrUnknownEdgeEndpoint, nodeID, "no such node")
	}

	if node.SupportsHotReload() {
		return node.UpdateConfig(params)
	}

	replacement, err := g.registry.Build(nodeType, nodeID, params)
	if err != nil {
		return false, err
	}
	g.nodes[nodeID] = replacement
	return true, nil
}

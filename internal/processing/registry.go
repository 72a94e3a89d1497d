package processing

import (
	"fmt"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
)

// Factory constructs a node of a registered type from its id and decoded
// parameters (spec.md §6: "type-specific parameters decoded by that
// node's factory").
type Factory func(id string, params map[string]any) (Node, error)

// Registry maps a configuration type-tag to the factory that builds it.
// The daemon supervisor owns one Registry, populated at startup with the
// built-in node types from internal/processing/nodes.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under typeTag, overwriting any previous
// registration — later registrations win, which lets tests substitute
// fakes for built-in types.
func (r *Registry) Register(typeTag string, f Factory) {
	r.factories[typeTag] = f
}

// Build constructs a node, returning CategoryGraphValidation ("unknown
// node type") if typeTag was never registered.
func (r *Registry) Build(typeTag, id string, params map[string]any) (Node, error) {
	f, ok := r.factories[typeTag]
	if !ok {
		return nil, errors.New(fmt.Errorf("unknown node type %q", typeTag)).
			Component("processing-graph").Category(errors.CategoryGraphValidation).
			NodeContext(id, typeTag).Build()
	}
	return f(id, params)
}

// Has reports whether typeTag is registered.
func (r *Registry) Has(typeTag string) bool {
	_, ok := r.factories[typeTag]
	return ok
}

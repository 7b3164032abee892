package engine

import (
	"fmt"
	"sort"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
)

// Registry holds the configured engines keyed by name. Immutable after
// construction, safe for concurrent reads.
type Registry struct {
	engines map[contractx.EngineName]contractx.Engine
	def     contractx.EngineName
}

func NewRegistry(engines ...contractx.Engine) *Registry {
	r := &Registry{engines: make(map[contractx.EngineName]contractx.Engine, len(engines))}
	for _, e := range engines {
		if e == nil {
			continue
		}
		r.engines[e.Name()] = e
	}

	// graph is the default when configured, otherwise any registered engine
	if _, ok := r.engines[contractx.EngineGraph]; ok {
		r.def = contractx.EngineGraph
	} else {
		for _, name := range r.Names() {
			r.def = name
			break
		}
	}
	return r
}

// Get resolves an engine by name. An empty name resolves to the default.
func (r *Registry) Get(name contractx.EngineName) (contractx.Engine, error) {
	if name == "" {
		name = r.def
	}
	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", contractx.ErrUnknownEngine, name)
	}
	return e, nil
}

// Names returns the registered engine names in stable order.
func (r *Registry) Names() []contractx.EngineName {
	names := make([]contractx.EngineName, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// All returns the registered engines in name order.
func (r *Registry) All() []contractx.Engine {
	engines := make([]contractx.Engine, 0, len(r.engines))
	for _, name := range r.Names() {
		engines = append(engines, r.engines[name])
	}
	return engines
}

// Default returns the default engine name.
func (r *Registry) Default() contractx.EngineName { return r.def }

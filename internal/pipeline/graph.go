package pipeline

import (
	"fmt"
	"sort"
	"time"

	"slicehouse/pkg/errors"
)

// Graph is the dependency DAG over base tables and derived-table definitions.
// It must be validated before planning; validation computes the topological
// order used everywhere else.
type Graph struct {
	base       map[string]bool
	defs       map[string]*Definition
	order      []string // topo order of definition names, upstream first
	dependents map[string][]string
	validated  bool
}

// NewGraph creates a graph whose leaves are the given base tables.
func NewGraph(baseTables []string) *Graph {
	base := make(map[string]bool, len(baseTables))
	for _, name := range baseTables {
		base[name] = true
	}
	return &Graph{
		base:       base,
		defs:       make(map[string]*Definition),
		dependents: make(map[string][]string),
	}
}

// Add registers a derived-table definition. Names must be unique across both
// definitions and base tables.
func (g *Graph) Add(def *Definition) error {
	if g.base[def.Name] {
		return errors.New(errors.ErrCodePipelineDuplicate,
			fmt.Sprintf("definition %s collides with a base table", def.Name))
	}
	if _, exists := g.defs[def.Name]; exists {
		return errors.New(errors.ErrCodePipelineDuplicate,
			fmt.Sprintf("duplicate definition %s", def.Name))
	}
	if def.Build == nil {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("definition %s has no build function", def.Name))
	}
	if len(def.Inputs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("definition %s has no inputs", def.Name))
	}
	g.defs[def.Name] = def
	g.validated = false
	return nil
}

// Validate checks for unknown inputs and cycles, then computes the
// topological order and the dependents index.
func (g *Graph) Validate() error {
	for name, def := range g.defs {
		for _, input := range def.Inputs {
			if !g.base[input] {
				if _, ok := g.defs[input]; !ok {
					return errors.New(errors.ErrCodePipelineUnknownInput,
						fmt.Sprintf("definition %s depends on unknown table %s", name, input)).
						WithContext("definition", name)
				}
			}
		}
	}

	// Kahn's algorithm over definitions; base tables have no in-edges.
	indeg := make(map[string]int, len(g.defs))
	dependents := make(map[string][]string)
	for name, def := range g.defs {
		for _, input := range def.Inputs {
			dependents[input] = append(dependents[input], name)
			if _, ok := g.defs[input]; ok {
				indeg[name]++
			}
		}
	}
	for _, deps := range dependents {
		sort.Strings(deps)
	}

	var queue []string
	for name := range g.defs {
		if indeg[name] == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(g.defs))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		var ready []string
		for _, dep := range dependents[name] {
			indeg[dep]--
			if indeg[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(order) != len(g.defs) {
		var stuck []string
		for name := range g.defs {
			if indeg[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return errors.New(errors.ErrCodePipelineCycle,
			fmt.Sprintf("dependency cycle involving %v", stuck))
	}

	g.order = order
	g.dependents = dependents
	g.validated = true
	return nil
}

// Definitions returns all definitions in topological order, upstream first.
// The graph must have been validated.
func (g *Graph) Definitions() []*Definition {
	out := make([]*Definition, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.defs[name])
	}
	return out
}

// Definition returns the named definition.
func (g *Graph) Definition(name string) (*Definition, bool) {
	def, ok := g.defs[name]
	return def, ok
}

// IsBase reports whether name is a base table.
func (g *Graph) IsBase(name string) bool { return g.base[name] }

// Dependents returns the names of tables that read directly from name.
func (g *Graph) Dependents(name string) []string { return g.dependents[name] }

// EffectiveLag returns the freshness target the table must actually meet: its
// own lag, tightened by every downstream consumer's effective lag. A gold
// table with a 1h lag cannot be satisfied by a silver input that only
// refreshes daily.
func (g *Graph) EffectiveLag(name string) time.Duration {
	def, ok := g.defs[name]
	if !ok {
		return 0
	}
	lag := def.Lag
	for _, dep := range g.dependents[name] {
		if depLag := g.EffectiveLag(dep); depLag < lag {
			lag = depLag
		}
	}
	return lag
}

// MinLag returns the smallest effective lag across all definitions, which is
// the natural scheduler tick. Zero when the graph is empty.
func (g *Graph) MinLag() time.Duration {
	var min time.Duration
	for name := range g.defs {
		lag := g.EffectiveLag(name)
		if min == 0 || lag < min {
			min = lag
		}
	}
	return min
}

// Package domain contains the core domain models and business logic for
// workflows, job instances, and their dependency graph.
package domain

import (
	"cmp"
	"iter"
	"slices"

	"go.trai.ch/zerr"
)

// Graph represents the dependency graph of job instances for one workflow run.
type Graph struct {
	instances      map[InternedString]JobInstance
	dependents     map[InternedString][]InternedString
	executionOrder []InternedString
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		instances:  make(map[InternedString]JobInstance),
		dependents: make(map[InternedString][]InternedString),
	}
}

// Add inserts a job instance into the graph.
// It returns an error if an instance with the same key already exists.
func (g *Graph) Add(inst *JobInstance) error {
	if _, exists := g.instances[inst.Key]; exists {
		return zerr.With(ErrDuplicateJob, "job", inst.Key.String())
	}
	g.instances[inst.Key] = *inst
	return nil
}

// Count returns the number of instances in the graph.
func (g *Graph) Count() int {
	return len(g.instances)
}

// Get returns the instance with the given key.
func (g *Graph) Get(key InternedString) (JobInstance, bool) {
	inst, ok := g.instances[key]
	return inst, ok
}

// Validate checks for cycles and unknown needs references using a topological
// sort. It populates the execution order and the reverse edge index.
func (g *Graph) Validate() error {
	g.executionOrder = make([]InternedString, 0, len(g.instances))
	g.dependents = make(map[InternedString][]InternedString, len(g.instances))
	visited := make(map[InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		inst, exists := g.instances[u]
		if !exists {
			return zerr.With(ErrMissingDependency, "needs", u.String())
		}

		for _, need := range inst.Needs {
			g.dependents[need] = append(g.dependents[need], u)
			if visited[need] == 1 {
				return g.buildCycleError(path, need)
			}
			if visited[need] == 0 {
				if err := visit(need); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	// Sorted roots keep the execution order stable across runs.
	keys := make([]InternedString, 0, len(g.instances))
	for key := range g.instances {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareInterned)

	for _, key := range keys {
		if visited[key] == 0 {
			if err := visit(key); err != nil {
				return err
			}
		}
	}

	for _, deps := range g.dependents {
		slices.SortFunc(deps, compareInterned)
	}

	return nil
}

func compareInterned(a, b InternedString) int {
	return cmp.Compare(a.String(), b.String())
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []InternedString, need InternedString) error {
	cyclePath := ""
	startIdx := -1
	for i, node := range path {
		if node == need {
			startIdx = i
			break
		}
	}
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += need.String()
	return zerr.With(ErrCycleDetected, "cycle", cyclePath)
}

// Walk returns an iterator that yields instances in execution order.
// It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[JobInstance] {
	return func(yield func(JobInstance) bool) {
		for _, key := range g.executionOrder {
			if !yield(g.instances[key]) {
				return
			}
		}
	}
}

// Dependents returns the instances that depend on the given key, in stable
// order. Validate must have run first.
func (g *Graph) Dependents(key InternedString) []InternedString {
	return g.dependents[key]
}

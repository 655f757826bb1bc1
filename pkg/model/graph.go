package model

import (
	"sort"
	"strings"
)

// ErrCyclicGraph indicates the task dependencies form a cycle
var ErrCyclicGraph = ErrInvalidSpec.WrapMessage("task dependencies form a cycle")

// Graph is the upstream adjacency of a task selection: task name to the
// names of the tasks it waits on.
type Graph map[string][]string

// Graph builds the adjacency for the full spec
func (s *Spec) Graph() Graph {
	g := make(Graph, len(s.Tasks))
	for _, t := range s.Tasks {
		up := make([]string, len(t.Upstream))
		copy(up, t.Upstream)
		g[t.Name] = up
	}
	return g
}

// Sorted returns task names in topological order. Ties are broken by
// name so the order is reproducible across runs.
func (g Graph) Sorted() ([]string, error) {
	indegree := make(map[string]int, len(g))
	downstream := make(map[string][]string, len(g))
	for name, ups := range g {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, up := range ups {
			indegree[name]++
			downstream[up] = append(downstream[up], name)
		}
	}

	ready := make([]string, 0, len(g))
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		next := downstream[name]
		sort.Strings(next)
		for _, d := range next {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(g) {
		var cycle []string
		for name, deg := range indegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, ErrCyclicGraph.WrapMessage("involving: %s", strings.Join(cycle, ", "))
	}
	return order, nil
}

// Restrict drops tasks outside keep, removing them from the upstream
// lists of the survivors as well.
func (g Graph) Restrict(keep map[string]bool) Graph {
	out := make(Graph, len(keep))
	for name, ups := range g {
		if !keep[name] {
			continue
		}
		kept := make([]string, 0, len(ups))
		for _, up := range ups {
			if keep[up] {
				kept = append(kept, up)
			}
		}
		out[name] = kept
	}
	return out
}

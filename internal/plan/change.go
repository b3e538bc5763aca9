// Package plan implements the preview→apply pipeline shared by the
// backfill tasks. A builder diffs current against canonical field values
// and emits Change nodes with dependency edges; the applier expands a user
// selection to a dependency-closed set and commits it in dependency order.
package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Action selects the write shape for a change.
type Action string

const (
	// ActionUpsert may create the document; Before is absent and
	// DocumentID may be freshly generated.
	ActionUpsert Action = "upsert"
	// ActionMerge updates fields on an existing document.
	ActionMerge Action = "merge"
)

// Change is one proposed document mutation in a plan.
type Change struct {
	ID         string
	Collection string
	DocumentID string
	Action     Action
	Before     map[string]interface{}
	Data       map[string]interface{}
	Label      string
	DependsOn  []string
}

// Plan is a builder's output: an ordered set of changes for one task.
type Plan struct {
	Task    Task
	Scope   string
	Changes []Change
}

// Graph is the dependency adjacency over a plan's changes. Construction
// rejects unknown edges and cycles, so a built Graph is always a DAG.
type Graph struct {
	changes map[string]*Change
	forward map[string][]string // change id -> its dependsOn
	reverse map[string][]string // change id -> its dependents
	order   []string            // ids in plan order, for determinism
}

// NewGraph builds the adjacency maps and validates the DAG invariant.
func NewGraph(changes []Change) (*Graph, error) {
	g := &Graph{
		changes: make(map[string]*Change, len(changes)),
		forward: make(map[string][]string, len(changes)),
		reverse: make(map[string][]string, len(changes)),
	}
	for i := range changes {
		c := &changes[i]
		if c.ID == "" {
			return nil, fmt.Errorf("change %d has no id", i)
		}
		if _, dup := g.changes[c.ID]; dup {
			return nil, fmt.Errorf("duplicate change id %q", c.ID)
		}
		g.changes[c.ID] = c
		g.order = append(g.order, c.ID)
	}
	for _, c := range g.changes {
		for _, dep := range c.DependsOn {
			if _, ok := g.changes[dep]; !ok {
				return nil, fmt.Errorf("change %q depends on unknown change %q", c.ID, dep)
			}
			g.forward[c.ID] = append(g.forward[c.ID], dep)
			g.reverse[dep] = append(g.reverse[dep], c.ID)
		}
	}
	if cycle := g.findCycle(); len(cycle) > 0 {
		return nil, fmt.Errorf("circular dependency: %s", strings.Join(cycle, " -> "))
	}
	return g, nil
}

// Change looks up a node by id.
func (g *Graph) Change(id string) (*Change, bool) {
	c, ok := g.changes[id]
	return c, ok
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.changes) }

// ForwardClosure returns the given ids plus all transitive dependsOn
// ancestors: everything that must also apply for the selection to be
// internally consistent.
func (g *Graph) ForwardClosure(ids ...string) map[string]bool {
	return g.closure(g.forward, ids)
}

// ReverseClosure returns the given ids plus all transitive dependents:
// everything that must also be removed when the ids are deselected.
func (g *Graph) ReverseClosure(ids ...string) map[string]bool {
	return g.closure(g.reverse, ids)
}

func (g *Graph) closure(adj map[string][]string, ids []string) map[string]bool {
	seen := make(map[string]bool)
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := g.changes[id]; ok && !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// TopoOrder returns all change ids in a dependency-valid order: a node
// appears only after everything it depends on. Deterministic: ties are
// broken by plan order.
func (g *Graph) TopoOrder() []string {
	indegree := make(map[string]int, len(g.changes))
	for id := range g.changes {
		indegree[id] = len(g.forward[id])
	}

	var ready []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	position := make(map[string]int, len(g.order))
	for i, id := range g.order {
		position[id] = i
	}

	out := make([]string, 0, len(g.changes))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, dependent := range g.reverse[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return out
}

// findCycle runs DFS over dependsOn edges and returns a cycle path if one
// exists.
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	var path []string
	var cycle []string

	var dfs func(string) bool
	dfs = func(id string) bool {
		visited[id] = true
		inStack[id] = true
		path = append(path, id)

		for _, dep := range g.forward[id] {
			if !visited[dep] {
				if dfs(dep) {
					return true
				}
			} else if inStack[dep] {
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle = append(append([]string{}, path[start:]...), dep)
				return true
			}
		}

		inStack[id] = false
		path = path[:len(path)-1]
		return false
	}

	for _, id := range g.order {
		if !visited[id] {
			path = path[:0]
			if dfs(id) {
				return cycle
			}
		}
	}
	return nil
}

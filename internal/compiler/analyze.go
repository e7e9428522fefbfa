package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/plaited/behavioral/internal/ir"
)

// Warning levels.
const (
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Warning is a static analysis finding. Warnings never stop compilation:
// a bounded request chain or an event only triggered by host code may be
// intentional.
type Warning struct {
	Path    []string `json:"path,omitempty"` // event cycle: ["tick", "tick"]
	Thread  string   `json:"thread,omitempty"`
	Message string   `json:"message"`
	Level   string   `json:"level"`
}

// Analyze reports event cycles and waits that can never be satisfied.
//
// The event graph has an edge A → B when a thread resumed by A next
// requests B. A strongly connected component is a chain of selections
// that can feed itself without any external trigger. It is a warning when
// one of its edges belongs to a forever thread (the super-step only ends
// at the max steps guard) and info otherwise.
//
// A wait is unsatisfiable when no thread requests the event and the
// program does not make it public.
func Analyze(spec *ir.ProgramSpec) []Warning {
	graph := buildEventGraph(spec)

	var warnings []Warning
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	warnings = append(warnings, unsatisfiedWaits(spec)...)
	return warnings
}

// eventGraph maps event → requested event → whether any edge comes from
// a forever thread.
type eventGraph map[string]map[string]bool

func (g eventGraph) addEdge(from, to string, unbounded bool) {
	if g[from] == nil {
		g[from] = make(map[string]bool)
	}
	if _, ok := g[to]; !ok {
		g[to] = make(map[string]bool)
	}
	g[from][to] = g[from][to] || unbounded
}

// successors returns the neighbors of node in sorted order.
func (g eventGraph) successors(node string) []string {
	out := make([]string, 0, len(g[node]))
	for n := range g[node] {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func buildEventGraph(spec *ir.ProgramSpec) eventGraph {
	graph := make(eventGraph)

	for _, t := range spec.Threads {
		loops := t.Forever || t.Repeat > 1
		for i, step := range t.Steps {
			next := i + 1
			if next == len(t.Steps) {
				if !loops {
					continue
				}
				next = 0
			}
			for _, from := range resumers(step) {
				for _, r := range t.Steps[next].Request {
					graph.addEdge(from, r.Name, t.Forever)
				}
			}
		}
	}
	return graph
}

// resumers lists the event names that move a thread past step.
func resumers(step ir.StepSpec) []string {
	var names []string
	for _, r := range step.Request {
		names = append(names, r.Name)
	}
	for _, w := range step.WaitFor {
		names = append(names, w.Name)
	}
	return names
}

func hasSelfLoop(node string, graph eventGraph) bool {
	_, ok := graph[node][node]
	return ok
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes and neighbors are visited in sorted order so the result is stable.
func tarjanSCC(graph eventGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph.successors(v) {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	slices.SortFunc(sccs, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return sccs
}

func cycleSCCToWarning(scc []string, graph eventGraph) Warning {
	members := make(map[string]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	level := LevelInfo
	for _, from := range scc {
		for to, unbounded := range graph[from] {
			if members[to] && unbounded {
				level = LevelWarning
			}
		}
	}

	var path []string
	if len(scc) == 1 {
		path = []string{scc[0], scc[0]}
	} else {
		path = reconstructCyclePath(scc, graph)
	}

	msg := fmt.Sprintf("Requests can chain without external triggers: %s", strings.Join(path, " → "))
	if level == LevelWarning {
		msg = fmt.Sprintf("Unbounded request cycle: %s", strings.Join(path, " → "))
	}
	return Warning{Path: path, Message: msg, Level: level}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph eventGraph) []string {
	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph.successors(current) {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}

func unsatisfiedWaits(spec *ir.ProgramSpec) []Warning {
	available := make(map[string]bool)
	for _, name := range spec.Public {
		available[name] = true
	}
	for _, t := range spec.Threads {
		for _, s := range t.Steps {
			for _, r := range s.Request {
				available[r.Name] = true
			}
		}
	}

	var warnings []Warning
	for _, t := range spec.Threads {
		reported := make(map[string]bool)
		for _, s := range t.Steps {
			for _, w := range s.WaitFor {
				if available[w.Name] || reported[w.Name] {
					continue
				}
				reported[w.Name] = true
				warnings = append(warnings, Warning{
					Thread:  t.Name,
					Message: fmt.Sprintf("Thread %q waits for %q, which no thread requests and the program does not make public", t.Name, w.Name),
					Level:   LevelWarning,
				})
			}
		}
	}
	return warnings
}

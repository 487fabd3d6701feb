package learnpath

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// CheckMode selects what happens to a path whose prerequisites are inconsistent.
type CheckMode string

const (
	// CheckOff skips the prerequisite check.
	CheckOff CheckMode = "off"
	// CheckWarn logs problems and returns the path unchanged.
	CheckWarn CheckMode = "warn"
	// CheckStrict rejects a path with any problem.
	CheckStrict CheckMode = "strict"
)

// maxSuggestionDistance bounds the edit distance of "did you mean" hints.
const maxSuggestionDistance = 3

// UnknownRef is a prerequisite that names no node in the path.
type UnknownRef struct {
	NodeID     string
	Ref        string
	Suggestion string
}

// ForwardRef is a prerequisite that appears later in the path than its dependant.
type ForwardRef struct {
	NodeID string
	Ref    string
}

// Report lists prerequisite problems. The zero Report is clean.
type Report struct {
	Duplicates []string
	Unknown    []UnknownRef
	Forward    []ForwardRef
	SelfRefs   []string
	Cycles     [][]string
}

// Empty reports whether no problems were found.
func (r Report) Empty() bool {
	return len(r.Duplicates) == 0 && len(r.Unknown) == 0 && len(r.Forward) == 0 &&
		len(r.SelfRefs) == 0 && len(r.Cycles) == 0
}

// Problems renders each finding as one line.
func (r Report) Problems() []string {
	var out []string
	for _, id := range r.Duplicates {
		out = append(out, fmt.Sprintf("duplicate node_id %q", id))
	}
	for _, id := range r.SelfRefs {
		out = append(out, fmt.Sprintf("node %q lists itself as a prerequisite", id))
	}
	for _, u := range r.Unknown {
		line := fmt.Sprintf("node %q requires unknown node %q", u.NodeID, u.Ref)
		if u.Suggestion != "" {
			line += fmt.Sprintf(" (did you mean %q?)", u.Suggestion)
		}
		out = append(out, line)
	}
	for _, f := range r.Forward {
		out = append(out, fmt.Sprintf("node %q requires %q, which appears later in the path", f.NodeID, f.Ref))
	}
	for _, c := range r.Cycles {
		out = append(out, "prerequisite cycle: "+strings.Join(c, " -> "))
	}
	return out
}

func (r Report) String() string {
	return strings.Join(r.Problems(), "; ")
}

// CheckPrerequisites inspects the prerequisite graph of nodes. Prerequisites
// must name an earlier node of the same path.
func CheckPrerequisites(nodes []Node) Report {
	var rep Report
	position := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := position[n.NodeID]; dup {
			rep.Duplicates = append(rep.Duplicates, n.NodeID)
			continue
		}
		position[n.NodeID] = i
	}

	ids := make([]string, 0, len(position))
	for id := range position {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, n := range nodes {
		for _, ref := range n.Prerequisites {
			if ref == n.NodeID {
				rep.SelfRefs = append(rep.SelfRefs, n.NodeID)
				continue
			}
			pos, ok := position[ref]
			if !ok {
				rep.Unknown = append(rep.Unknown, UnknownRef{NodeID: n.NodeID, Ref: ref, Suggestion: suggest(ref, ids)})
				continue
			}
			if pos > i {
				rep.Forward = append(rep.Forward, ForwardRef{NodeID: n.NodeID, Ref: ref})
			}
		}
	}

	rep.Cycles = findCycles(nodes, position)
	return rep
}

// suggest returns the closest known id within maxSuggestionDistance.
func suggest(ref string, ids []string) string {
	best, bestDist := "", maxSuggestionDistance+1
	lower := strings.ToLower(ref)
	for _, id := range ids {
		d := levenshtein.Distance(lower, strings.ToLower(id), nil)
		if d < bestDist {
			best, bestDist = id, d
		}
	}
	return best
}

// findCycles runs a depth-first search over prerequisite edges and returns
// each distinct cycle once, starting from its first node in path order.
func findCycles(nodes []Node, position map[string]int) [][]string {
	const (
		unvisited = iota
		active
		done
	)
	edges := make(map[string][]string, len(position))
	for _, n := range nodes {
		if _, seen := edges[n.NodeID]; seen {
			continue
		}
		var deps []string
		for _, ref := range n.Prerequisites {
			if _, ok := position[ref]; ok && ref != n.NodeID {
				deps = append(deps, ref)
			}
		}
		edges[n.NodeID] = deps
	}

	state := make(map[string]int, len(position))
	var stack []string
	var cycles [][]string
	seen := make(map[string]bool)

	var visit func(id string)
	visit = func(id string) {
		state[id] = active
		stack = append(stack, id)
		for _, dep := range edges[id] {
			switch state[dep] {
			case unvisited:
				visit(dep)
			case active:
				start := 0
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == dep {
						start = i
						break
					}
				}
				cycle := canonicalCycle(stack[start:], position)
				key := strings.Join(cycle, "\x00")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, append(cycle, cycle[0]))
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, n := range nodes {
		if state[n.NodeID] == unvisited {
			visit(n.NodeID)
		}
	}
	return cycles
}

// canonicalCycle rotates a cycle so it starts at the node earliest in the path.
func canonicalCycle(cycle []string, position map[string]int) []string {
	first := 0
	for i, id := range cycle {
		if position[id] < position[cycle[first]] {
			first = i
		}
	}
	out := make([]string, 0, len(cycle)+1)
	out = append(out, cycle[first:]...)
	out = append(out, cycle[:first]...)
	return out
}

package pipeline

import (
	"fmt"
	"strings"
)

// ViolationKind classifies one class of structural or semantic defect.
type ViolationKind string

const (
	UnresolvedSuccessor     ViolationKind = "UnresolvedSuccessor"
	MissingOrAmbiguousEntry ViolationKind = "MissingOrAmbiguousEntry"
	CycleDetected           ViolationKind = "CycleDetected"
	InvalidSettings         ViolationKind = "InvalidSettings"
	PortMismatch            ViolationKind = "PortMismatch"
	DuplicateName           ViolationKind = "DuplicateName"
)

// Violation is one defect found in a graph. Node is empty for graph-wide
// defects such as a missing entry point.
type Violation struct {
	Kind   ViolationKind `json:"kind"`
	Node   string        `json:"node,omitempty"`
	Detail string        `json:"detail"`
}

func (v Violation) String() string {
	if v.Node == "" {
		return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
	}
	return fmt.Sprintf("%s (%s): %s", v.Kind, v.Node, v.Detail)
}

// ValidationError carries the complete violation list of one failed
// validation pass, so the operator sees every problem at once.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "invalid topology: " + strings.Join(parts, "; ")
}

// Validate checks g against every structural and schema rule and returns all
// violations found, never just the first. It is pure: the graph is not
// mutated. An empty result means g may be handed to the emitter.
func Validate(g *Graph) []Violation {
	var vs []Violation

	byName := make(map[string]*Node, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, dup := byName[n.Name]; dup {
			vs = append(vs, Violation{Kind: DuplicateName, Node: n.Name, Detail: "node name used more than once"})
			continue
		}
		byName[n.Name] = n
	}

	incoming := make(map[string]int, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Next == "" {
			continue
		}
		if _, ok := byName[n.Next]; !ok {
			vs = append(vs, Violation{Kind: UnresolvedSuccessor, Node: n.Name, Detail: fmt.Sprintf("successor %q does not exist", n.Next)})
			continue
		}
		incoming[n.Next]++
	}

	var entries []string
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if incoming[n.Name] == 0 {
			entries = append(entries, n.Name)
		}
	}
	switch {
	case len(g.Nodes) == 0:
		vs = append(vs, Violation{Kind: MissingOrAmbiguousEntry, Detail: "graph has no nodes"})
	case len(entries) == 0:
		vs = append(vs, Violation{Kind: MissingOrAmbiguousEntry, Detail: "no entry node: every node is referenced as a successor"})
	case len(entries) > 1:
		vs = append(vs, Violation{Kind: MissingOrAmbiguousEntry, Detail: fmt.Sprintf("%d entry candidates: %s", len(entries), strings.Join(entries, ", "))})
	}

	// Walk the chain from each entry. A revisit within one walk is a direct
	// cycle; crossing into another walk's territory is a merge, already
	// covered by the ambiguous-entry violation above.
	visited := make(map[string]bool, len(byName))
	for _, entry := range entries {
		local := make(map[string]bool)
		for n := byName[entry]; n != nil; {
			if local[n.Name] {
				vs = append(vs, Violation{Kind: CycleDetected, Node: n.Name, Detail: "successor chain revisits this node"})
				break
			}
			if visited[n.Name] {
				break
			}
			local[n.Name] = true
			visited[n.Name] = true
			if n.Next == "" {
				break
			}
			n = byName[n.Next]
		}
	}
	// Every node has at most one successor, so anything unreachable from an
	// entry keeps an incoming edge from another unreachable node; in a finite
	// graph that is a detached cycle.
	if len(visited) < len(byName) {
		var missed []string
		for i := range g.Nodes {
			name := g.Nodes[i].Name
			if byName[name] != nil && !visited[name] {
				missed = append(missed, name)
			}
		}
		vs = append(vs, Violation{Kind: CycleDetected, Detail: "nodes unreachable from any entry: " + strings.Join(missed, ", ")})
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if err := CheckSettings(n.Type, n.Settings); err != nil {
			vs = append(vs, Violation{Kind: InvalidSettings, Node: n.Name, Detail: err.Error()})
		}
	}

	// This system always forwards a port to itself; a listener whose paired
	// connector differs signals a construction bug, not a configuration.
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Type != KindTcpListener {
			continue
		}
		peer := byName[n.Next]
		if n.Next == "" || peer == nil || peer.Type != KindTcpConnector {
			vs = append(vs, Violation{Kind: PortMismatch, Node: n.Name, Detail: "listener is not chained to a connector"})
			continue
		}
		lp, lok := portOf(n.Settings)
		cp, cok := portOf(peer.Settings)
		if lok && cok && lp != cp {
			vs = append(vs, Violation{Kind: PortMismatch, Node: n.Name, Detail: fmt.Sprintf("listens on %d but %s connects to %d", lp, peer.Name, cp)})
		}
	}

	return vs
}

// portOf reads the port setting, accepting the float64 produced by JSON
// round-trips alongside the int the builder writes.
func portOf(settings map[string]any) (int, bool) {
	switch v := settings["port"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

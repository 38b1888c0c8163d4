package pipeline

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func dedupPorts(ports []int) []int {
	seen := make(map[int]bool, len(ports))
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func TestBuildProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genOctet := gen.IntRange(0, 255)
	genPorts := gen.SliceOf(gen.IntRange(1, 65535))
	genRole := gen.OneConstOf(RoleInitiator, RoleResponder)

	properties.Property("building either role validates clean", prop.ForAll(
		func(role Role, a, b, c, d, e, f, g, h int, ports []int) bool {
			local := fmt.Sprintf("%d.%d.%d.%d", a, b, c, d)
			remote := fmt.Sprintf("%d.%d.%d.%d", e, f, g, h)
			if role == RoleResponder {
				ports = nil
			}
			graph, err := Build(role, local, remote, dedupPorts(ports), Options{})
			if err != nil {
				return false
			}
			return len(Validate(graph)) == 0
		},
		genRole, genOctet, genOctet, genOctet, genOctet, genOctet, genOctet, genOctet, genOctet, genPorts,
	))

	properties.Property("the successor chain is one path covering every node", prop.ForAll(
		func(ports []int) bool {
			graph, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", dedupPorts(ports), Options{})
			if err != nil {
				return false
			}
			incoming := map[string]int{}
			for _, n := range graph.Nodes {
				if n.Next != "" {
					incoming[n.Next]++
				}
			}
			entries := 0
			for _, n := range graph.Nodes {
				if incoming[n.Name] == 0 {
					entries++
				}
				if incoming[n.Name] > 1 {
					return false
				}
			}
			if entries != 1 || graph.Nodes[0].Name != NodeTun {
				return false
			}
			steps := 0
			for n := graph.Lookup(NodeTun); n != nil; n = graph.Lookup(n.Next) {
				steps++
				if steps > len(graph.Nodes) {
					return false
				}
				if n.Next == "" {
					break
				}
			}
			return steps == len(graph.Nodes)
		},
		genPorts,
	))

	properties.Property("port pairs extend the backbone pairwise in order", prop.ForAll(
		func(ports []int) bool {
			ports = dedupPorts(ports)
			graph, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", ports, Options{})
			if err != nil {
				return false
			}
			if len(graph.Nodes) != 6+2*len(ports) {
				return false
			}
			for i, p := range ports {
				in := graph.Nodes[6+2*i]
				out := graph.Nodes[7+2*i]
				if in.Name != fmt.Sprintf("input%d", i+1) || in.Type != KindTcpListener {
					return false
				}
				if out.Name != fmt.Sprintf("output%d", i+1) || out.Type != KindTcpConnector {
					return false
				}
				if in.Settings["port"] != p || out.Settings["port"] != p {
					return false
				}
			}
			return true
		},
		genPorts,
	))

	properties.Property("responder documents always hold six nodes", prop.ForAll(
		func(a, b, c, d int) bool {
			graph, err := Build(RoleResponder, fmt.Sprintf("%d.%d.%d.%d", a, b, c, d), "1.2.3.4", nil, Options{})
			if err != nil {
				return false
			}
			return len(graph.Nodes) == 6
		},
		genOctet, genOctet, genOctet, genOctet,
	))

	properties.Property("documents round-trip byte for byte", prop.ForAll(
		func(ports []int) bool {
			graph, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", dedupPorts(ports), Options{})
			if err != nil {
				return false
			}
			doc, err := Encode(graph)
			if err != nil {
				return false
			}
			parsed, err := Decode(doc)
			if err != nil {
				return false
			}
			again, err := Encode(parsed)
			if err != nil {
				return false
			}
			return string(doc) == string(again)
		},
		genPorts,
	))

	properties.TestingRun(t)
}

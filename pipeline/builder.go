package pipeline

import (
	"fmt"
	"net"
	"strings"
)

// InputError aggregates every invalid build input so the operator can fix
// them all in one pass instead of replaying the generation per mistake.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

// Build derives the pipeline graph for one side of the tunnel.
//
// localIP is always the caller's own public address and remoteIP the other
// side's; the two roles produce the same backbone shape with those parameters
// swapped. The initiator additionally gets one TcpListener/TcpConnector pair
// per requested port, continuing the chain after the raw socket and named
// input{i}/output{i} in ascending order. The responder carries traffic only
// and takes no ports.
func Build(role Role, localIP, remoteIP string, ports []int, opts Options) (*Graph, error) {
	opts = opts.withDefaults()

	var problems []string
	if role != RoleInitiator && role != RoleResponder {
		problems = append(problems, fmt.Sprintf("unrecognized role %q", string(role)))
	}
	if err := checkIPv4(localIP); err != nil {
		problems = append(problems, "local address: "+err.Error())
	}
	if err := checkIPv4(remoteIP); err != nil {
		problems = append(problems, "remote address: "+err.Error())
	}
	if role == RoleResponder && len(ports) > 0 {
		problems = append(problems, "responder does not take forwarded ports")
	}
	seen := make(map[int]bool, len(ports))
	for _, p := range ports {
		if p < 1 || p > 65535 {
			problems = append(problems, fmt.Sprintf("port %d out of range 1-65535", p))
			continue
		}
		if seen[p] {
			problems = append(problems, fmt.Sprintf("port %d requested twice", p))
		}
		seen[p] = true
	}

	var privSelf, privPeer string
	var maskBits int
	if role == RoleInitiator || role == RoleResponder {
		var err error
		privSelf, privPeer, maskBits, err = privateHosts(role, opts.PrivateCIDR)
		if err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return nil, &InputError{Problems: problems}
	}

	g := &Graph{Name: string(role)}
	rawNext := ""
	if len(ports) > 0 {
		rawNext = "input1"
	}
	g.Nodes = append(g.Nodes,
		Node{
			Name: NodeTun,
			Type: KindTunDevice,
			Settings: map[string]any{
				"device-name": opts.DeviceName,
				"device-ip":   fmt.Sprintf("%s/%d", privSelf, maskBits),
			},
			Next: NodeSrcUp,
		},
		Node{
			Name: NodeSrcUp,
			Type: KindIpOverrider,
			Settings: map[string]any{
				"direction": "up",
				"mode":      "source-ip",
				"ipv4":      localIP,
			},
			Next: NodeDstUp,
		},
		Node{
			Name: NodeDstUp,
			Type: KindIpOverrider,
			Settings: map[string]any{
				"direction": "up",
				"mode":      "dest-ip",
				"ipv4":      remoteIP,
			},
			Next: NodeProtoSwap,
		},
		Node{
			Name: NodeProtoSwap,
			Type: KindIpManipulator,
			Settings: map[string]any{
				"protoswap": opts.ProtoSwap,
			},
			Next: NodeSrcDown,
		},
		Node{
			Name: NodeSrcDown,
			Type: KindIpOverrider,
			Settings: map[string]any{
				"direction": "down",
				"mode":      "source-ip",
				"ipv4":      privPeer,
			},
			Next: NodeRawSocket,
		},
		Node{
			Name: NodeRawSocket,
			Type: KindRawSocket,
			Settings: map[string]any{
				// Always filter by the side we expect encapsulated traffic
				// from, i.e. the remote public address, on both roles.
				"capture-filter-mode": "source-ip",
				"capture-ip":          remoteIP,
			},
			Next: rawNext,
		},
	)

	for i, p := range ports {
		in := fmt.Sprintf("input%d", i+1)
		out := fmt.Sprintf("output%d", i+1)
		outNext := ""
		if i < len(ports)-1 {
			outNext = fmt.Sprintf("input%d", i+2)
		}
		g.Nodes = append(g.Nodes,
			Node{
				Name: in,
				Type: KindTcpListener,
				Settings: map[string]any{
					"address": "0.0.0.0",
					"port":    p,
					"nodelay": true,
				},
				Next: out,
			},
			Node{
				Name: out,
				Type: KindTcpConnector,
				Settings: map[string]any{
					"address": privPeer,
					"port":    p,
					"nodelay": true,
				},
				Next: outNext,
			},
		)
	}

	return g, nil
}

func checkIPv4(s string) error {
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil || strings.Count(s, ".") != 3 {
		return fmt.Errorf("%q is not a dotted-quad IPv4 address", s)
	}
	return nil
}

// privateHosts derives the role's own and peer addresses inside the private
// transfer network: the first host is the initiator, the second the responder.
func privateHosts(role Role, cidr string) (self, peer string, maskBits int, err error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil || ipnet.IP.To4() == nil {
		return "", "", 0, fmt.Errorf("private network %q is not an IPv4 CIDR", cidr)
	}
	ones, _ := ipnet.Mask.Size()
	if ones > 30 {
		return "", "", 0, fmt.Errorf("private network %q has no room for two hosts", cidr)
	}
	base := ipnet.IP.To4()
	first := net.IPv4(base[0], base[1], base[2], base[3]+1).String()
	second := net.IPv4(base[0], base[1], base[2], base[3]+2).String()
	if role == RoleResponder {
		return second, first, ones, nil
	}
	return first, second, ones, nil
}

// Package pipeline builds, validates and serializes the node-pipeline
// configuration consumed by the external packet-tunneling engine. The engine
// reads an ordered node list; each node names its successor, carries
// kind-specific settings, and the whole chain moves traffic between a TUN
// device and a raw socket with address and protocol rewrites in between.
package pipeline

// Role selects which side of the tunnel a topology is generated for.
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleResponder Role = "responder"
)

// Kind is one of the engine's node types.
type Kind string

const (
	KindTunDevice     Kind = "TunDevice"
	KindIpOverrider   Kind = "IpOverrider"
	KindIpManipulator Kind = "IpManipulator"
	KindRawSocket     Kind = "RawSocket"
	KindTcpListener   Kind = "TcpListener"
	KindTcpConnector  Kind = "TcpConnector"
)

// Canonical backbone node names, in chain order.
const (
	NodeTun       = "tun"
	NodeSrcUp     = "srcip_up"
	NodeDstUp     = "dstip_up"
	NodeProtoSwap = "protoswap"
	NodeSrcDown   = "srcip_down"
	NodeRawSocket = "rawsocket"
)

// Node is one stage of the engine pipeline. Next is the name of the node
// receiving this node's output; an empty Next means the stage is terminal.
type Node struct {
	Name     string         `json:"name"`
	Type     Kind           `json:"type"`
	Settings map[string]any `json:"settings"`
	Next     string         `json:"next,omitempty"`
}

// Graph is the ordered node list plus the topology name (the role that
// produced it). The engine processes Nodes strictly in slice order, so
// insertion order is part of the contract, not a presentation detail.
type Graph struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
}

// Lookup returns the node with the given name, or nil.
func (g *Graph) Lookup(name string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].Name == name {
			return &g.Nodes[i]
		}
	}
	return nil
}

// Options carries the tunable construction parameters. Zero values fall back
// to the defaults below.
type Options struct {
	DeviceName  string // TUN interface name
	PrivateCIDR string // private transfer network, a /24 by default
	ProtoSwap   int    // IP protocol number the tunnel masquerades as
}

const (
	DefaultDeviceName  = "wtun0"
	DefaultPrivateCIDR = "10.10.0.0/24"
	DefaultProtoSwap   = 62
)

func (o Options) withDefaults() Options {
	if o.DeviceName == "" {
		o.DeviceName = DefaultDeviceName
	}
	if o.PrivateCIDR == "" {
		o.PrivateCIDR = DefaultPrivateCIDR
	}
	if o.ProtoSwap == 0 {
		o.ProtoSwap = DefaultProtoSwap
	}
	return o
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainNames(g *Graph) []string {
	names := make([]string, len(g.Nodes))
	for i := range g.Nodes {
		names[i] = g.Nodes[i].Name
	}
	return names
}

func TestBuildInitiator(t *testing.T) {
	g, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", []int{443, 8443}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "initiator", g.Name)
	require.Len(t, g.Nodes, 10)
	assert.Equal(t, []string{
		NodeTun, NodeSrcUp, NodeDstUp, NodeProtoSwap, NodeSrcDown, NodeRawSocket,
		"input1", "output1", "input2", "output2",
	}, chainNames(g))

	tun := g.Lookup(NodeTun)
	require.NotNil(t, tun)
	assert.Equal(t, KindTunDevice, tun.Type)
	assert.Equal(t, "wtun0", tun.Settings["device-name"])
	assert.Equal(t, "10.10.0.1/24", tun.Settings["device-ip"])

	srcUp := g.Lookup(NodeSrcUp)
	require.NotNil(t, srcUp)
	assert.Equal(t, "up", srcUp.Settings["direction"])
	assert.Equal(t, "source-ip", srcUp.Settings["mode"])
	assert.Equal(t, "1.2.3.4", srcUp.Settings["ipv4"])

	dstUp := g.Lookup(srcUp.Next)
	require.NotNil(t, dstUp)
	assert.Equal(t, "dest-ip", dstUp.Settings["mode"])
	assert.Equal(t, "5.6.7.8", dstUp.Settings["ipv4"])

	manip := g.Lookup(NodeProtoSwap)
	require.NotNil(t, manip)
	assert.Equal(t, KindIpManipulator, manip.Type)
	assert.Equal(t, DefaultProtoSwap, manip.Settings["protoswap"])

	srcDown := g.Lookup(NodeSrcDown)
	require.NotNil(t, srcDown)
	assert.Equal(t, "down", srcDown.Settings["direction"])
	assert.Equal(t, "10.10.0.2", srcDown.Settings["ipv4"])

	raw := g.Lookup(NodeRawSocket)
	require.NotNil(t, raw)
	assert.Equal(t, "source-ip", raw.Settings["capture-filter-mode"])
	assert.Equal(t, "5.6.7.8", raw.Settings["capture-ip"])
	assert.Equal(t, "input1", raw.Next)

	input1 := g.Lookup("input1")
	require.NotNil(t, input1)
	assert.Equal(t, KindTcpListener, input1.Type)
	assert.Equal(t, "0.0.0.0", input1.Settings["address"])
	assert.Equal(t, 443, input1.Settings["port"])
	assert.Equal(t, "output1", input1.Next)

	output1 := g.Lookup("output1")
	require.NotNil(t, output1)
	assert.Equal(t, KindTcpConnector, output1.Type)
	assert.Equal(t, "10.10.0.2", output1.Settings["address"])
	assert.Equal(t, 443, output1.Settings["port"])
	assert.Equal(t, "input2", output1.Next)

	output2 := g.Lookup("output2")
	require.NotNil(t, output2)
	assert.Equal(t, 8443, output2.Settings["port"])
	assert.Empty(t, output2.Next)
}

func TestBuildResponder(t *testing.T) {
	g, err := Build(RoleResponder, "5.6.7.8", "1.2.3.4", nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, "responder", g.Name)
	require.Len(t, g.Nodes, 6)

	tun := g.Lookup(NodeTun)
	require.NotNil(t, tun)
	assert.Equal(t, "10.10.0.2/24", tun.Settings["device-ip"])

	srcUp := g.Lookup(NodeSrcUp)
	require.NotNil(t, srcUp)
	assert.Equal(t, "5.6.7.8", srcUp.Settings["ipv4"])

	dstUp := g.Lookup(NodeDstUp)
	require.NotNil(t, dstUp)
	assert.Equal(t, "1.2.3.4", dstUp.Settings["ipv4"])

	srcDown := g.Lookup(NodeSrcDown)
	require.NotNil(t, srcDown)
	assert.Equal(t, "10.10.0.1", srcDown.Settings["ipv4"])

	// The responder filters by the side it expects encapsulated traffic
	// from, i.e. the initiator's public address.
	raw := g.Lookup(NodeRawSocket)
	require.NotNil(t, raw)
	assert.Equal(t, "1.2.3.4", raw.Settings["capture-ip"])
	assert.Empty(t, raw.Next)
}

func TestBuildInitiatorZeroPorts(t *testing.T) {
	g, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", nil, Options{})
	require.NoError(t, err)
	require.Len(t, g.Nodes, 6)
	assert.Empty(t, g.Lookup(NodeRawSocket).Next)
	assert.Empty(t, Validate(g))
}

func TestBuildOptions(t *testing.T) {
	opts := Options{DeviceName: "wtun9", PrivateCIDR: "192.168.77.0/24", ProtoSwap: 89}
	g, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", []int{80}, opts)
	require.NoError(t, err)

	assert.Equal(t, "wtun9", g.Lookup(NodeTun).Settings["device-name"])
	assert.Equal(t, "192.168.77.1/24", g.Lookup(NodeTun).Settings["device-ip"])
	assert.Equal(t, 89, g.Lookup(NodeProtoSwap).Settings["protoswap"])
	assert.Equal(t, "192.168.77.2", g.Lookup(NodeSrcDown).Settings["ipv4"])
	assert.Equal(t, "192.168.77.2", g.Lookup("output1").Settings["address"])
	assert.Empty(t, Validate(g))
}

func TestBuildInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		role   Role
		local  string
		remote string
		ports  []int
		want   string
	}{
		{"unknown role", Role("relay"), "1.2.3.4", "5.6.7.8", nil, "unrecognized role"},
		{"empty role", Role(""), "1.2.3.4", "5.6.7.8", nil, "unrecognized role"},
		{"out of range octet", RoleInitiator, "999.1.1.1", "5.6.7.8", nil, "local address"},
		{"ipv6 literal", RoleInitiator, "1.2.3.4", "2001:db8::1", nil, "remote address"},
		{"hostname", RoleInitiator, "example.com", "5.6.7.8", nil, "local address"},
		{"empty remote", RoleInitiator, "1.2.3.4", "", nil, "remote address"},
		{"port zero", RoleInitiator, "1.2.3.4", "5.6.7.8", []int{0}, "out of range"},
		{"port above range", RoleInitiator, "1.2.3.4", "5.6.7.8", []int{65536}, "out of range"},
		{"duplicate port", RoleInitiator, "1.2.3.4", "5.6.7.8", []int{443, 8443, 443}, "requested twice"},
		{"responder with ports", RoleResponder, "5.6.7.8", "1.2.3.4", []int{443}, "responder does not take"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := Build(tc.role, tc.local, tc.remote, tc.ports, Options{})
			require.Nil(t, g)
			var inputErr *InputError
			require.ErrorAs(t, err, &inputErr)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestBuildReportsAllProblemsTogether(t *testing.T) {
	_, err := Build(Role("relay"), "bad", "999.1.1.1", []int{0, 70000}, Options{})
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Len(t, inputErr.Problems, 5)
}

func TestBuildBadPrivateNetwork(t *testing.T) {
	_, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", nil, Options{PrivateCIDR: "not-a-cidr"})
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)

	_, err = Build(RoleInitiator, "1.2.3.4", "5.6.7.8", nil, Options{PrivateCIDR: "10.10.0.0/31"})
	require.ErrorAs(t, err, &inputErr)
	assert.Contains(t, err.Error(), "no room")
}

func TestBuildAcceptsEqualEndpoints(t *testing.T) {
	// A degenerate but well-formed pair must still produce a valid graph.
	g, err := Build(RoleInitiator, "1.2.3.4", "1.2.3.4", []int{22}, Options{})
	require.NoError(t, err)
	assert.Empty(t, Validate(g))
}

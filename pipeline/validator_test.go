package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overriderSettings(direction, mode, ip string) map[string]any {
	return map[string]any{"direction": direction, "mode": mode, "ipv4": ip}
}

func violationKinds(vs []Violation) []ViolationKind {
	kinds := make([]ViolationKind, len(vs))
	for i, v := range vs {
		kinds[i] = v.Kind
	}
	return kinds
}

func TestValidateBuiltGraphsAreClean(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		ports []int
	}{
		{"initiator with ports", RoleInitiator, []int{443, 8443, 22}},
		{"initiator without ports", RoleInitiator, nil},
		{"responder", RoleResponder, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := Build(tc.role, "1.2.3.4", "5.6.7.8", tc.ports, Options{})
			require.NoError(t, err)
			assert.Empty(t, Validate(g))
		})
	}
}

func TestValidateUnresolvedSuccessor(t *testing.T) {
	g := &Graph{Name: "initiator", Nodes: []Node{
		{Name: "a", Type: KindIpOverrider, Settings: overriderSettings("up", "source-ip", "1.2.3.4"), Next: "ghost"},
	}}
	vs := Validate(g)
	require.Len(t, vs, 1)
	assert.Equal(t, UnresolvedSuccessor, vs[0].Kind)
	assert.Equal(t, "a", vs[0].Node)
	assert.Contains(t, vs[0].Detail, "ghost")
}

func TestValidateAmbiguousEntry(t *testing.T) {
	g := &Graph{Name: "initiator", Nodes: []Node{
		{Name: "a", Type: KindIpOverrider, Settings: overriderSettings("up", "source-ip", "1.2.3.4")},
		{Name: "b", Type: KindIpOverrider, Settings: overriderSettings("up", "dest-ip", "5.6.7.8")},
	}}
	vs := Validate(g)
	require.Len(t, vs, 1)
	assert.Equal(t, MissingOrAmbiguousEntry, vs[0].Kind)
	assert.Contains(t, vs[0].Detail, "2 entry candidates")
}

func TestValidateEmptyGraph(t *testing.T) {
	vs := Validate(&Graph{Name: "initiator"})
	require.Len(t, vs, 1)
	assert.Equal(t, MissingOrAmbiguousEntry, vs[0].Kind)
}

func TestValidateDirectCycle(t *testing.T) {
	g := &Graph{Name: "initiator", Nodes: []Node{
		{Name: "start", Type: KindIpOverrider, Settings: overriderSettings("up", "source-ip", "1.2.3.4"), Next: "a"},
		{Name: "a", Type: KindIpOverrider, Settings: overriderSettings("up", "dest-ip", "5.6.7.8"), Next: "b"},
		{Name: "b", Type: KindIpOverrider, Settings: overriderSettings("down", "source-ip", "10.10.0.2"), Next: "a"},
	}}
	vs := Validate(g)
	require.Len(t, vs, 1)
	assert.Equal(t, CycleDetected, vs[0].Kind)
	assert.Equal(t, "a", vs[0].Node)
}

func TestValidateDetachedCycle(t *testing.T) {
	// A pure two-node loop has no entry at all; both the entry rule and the
	// cycle rule must fire.
	g := &Graph{Name: "initiator", Nodes: []Node{
		{Name: "a", Type: KindIpOverrider, Settings: overriderSettings("up", "source-ip", "1.2.3.4"), Next: "b"},
		{Name: "b", Type: KindIpOverrider, Settings: overriderSettings("up", "dest-ip", "5.6.7.8"), Next: "a"},
	}}
	kinds := violationKinds(Validate(g))
	assert.Contains(t, kinds, MissingOrAmbiguousEntry)
	assert.Contains(t, kinds, CycleDetected)
}

func TestValidateSelfLoop(t *testing.T) {
	g := &Graph{Name: "initiator", Nodes: []Node{
		{Name: "start", Type: KindIpOverrider, Settings: overriderSettings("up", "source-ip", "1.2.3.4"), Next: "a"},
		{Name: "a", Type: KindIpOverrider, Settings: overriderSettings("up", "dest-ip", "5.6.7.8"), Next: "a"},
	}}
	kinds := violationKinds(Validate(g))
	assert.Contains(t, kinds, CycleDetected)
}

func TestValidateInvalidSettings(t *testing.T) {
	tests := []struct {
		name     string
		node     Node
		wantText string
	}{
		{
			"missing required key",
			Node{Name: "n", Type: KindIpOverrider, Settings: map[string]any{"direction": "up", "mode": "source-ip"}},
			"ipv4 is required",
		},
		{
			"value outside enumeration",
			Node{Name: "n", Type: KindIpOverrider, Settings: overriderSettings("sideways", "source-ip", "1.2.3.4")},
			"direction must be one of",
		},
		{
			"malformed address",
			Node{Name: "n", Type: KindRawSocket, Settings: map[string]any{"capture-filter-mode": "source-ip", "capture-ip": "999.1.1.1"}},
			"capture-ip must be an IPv4 address",
		},
		{
			"wrongly typed value",
			Node{Name: "n", Type: KindTcpConnector, Settings: map[string]any{"address": "10.10.0.2", "port": "443", "nodelay": true}},
			"settings",
		},
		{
			"unknown kind",
			Node{Name: "n", Type: Kind("Teleport"), Settings: map[string]any{}},
			"unknown node kind",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := &Graph{Name: "initiator", Nodes: []Node{tc.node}}
			vs := Validate(g)
			require.Len(t, vs, 1)
			assert.Equal(t, InvalidSettings, vs[0].Kind)
			assert.Equal(t, "n", vs[0].Node)
			assert.Contains(t, vs[0].Detail, tc.wantText)
		})
	}
}

func TestValidatePortMismatch(t *testing.T) {
	listener := func(port int, next string) Node {
		return Node{Name: "input1", Type: KindTcpListener,
			Settings: map[string]any{"address": "0.0.0.0", "port": port, "nodelay": true}, Next: next}
	}
	connector := func(port int) Node {
		return Node{Name: "output1", Type: KindTcpConnector,
			Settings: map[string]any{"address": "10.10.0.2", "port": port, "nodelay": true}}
	}

	t.Run("diverging pair", func(t *testing.T) {
		g := &Graph{Name: "initiator", Nodes: []Node{listener(443, "output1"), connector(8443)}}
		vs := Validate(g)
		require.Len(t, vs, 1)
		assert.Equal(t, PortMismatch, vs[0].Kind)
		assert.Contains(t, vs[0].Detail, "443")
		assert.Contains(t, vs[0].Detail, "8443")
	})

	t.Run("listener without connector", func(t *testing.T) {
		g := &Graph{Name: "initiator", Nodes: []Node{listener(443, "")}}
		vs := Validate(g)
		require.Len(t, vs, 1)
		assert.Equal(t, PortMismatch, vs[0].Kind)
		assert.Contains(t, vs[0].Detail, "not chained to a connector")
	})
}

func TestValidateDuplicateName(t *testing.T) {
	g := &Graph{Name: "initiator", Nodes: []Node{
		{Name: "a", Type: KindIpOverrider, Settings: overriderSettings("up", "source-ip", "1.2.3.4"), Next: "b"},
		{Name: "b", Type: KindIpOverrider, Settings: overriderSettings("up", "dest-ip", "5.6.7.8")},
		{Name: "b", Type: KindIpOverrider, Settings: overriderSettings("down", "source-ip", "10.10.0.1")},
	}}
	kinds := violationKinds(Validate(g))
	assert.Contains(t, kinds, DuplicateName)
}

func TestValidateReportsAllViolationsTogether(t *testing.T) {
	g, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", []int{443}, Options{})
	require.NoError(t, err)

	// Break several things at once: dangling successor, diverging pair,
	// broken settings.
	g.Lookup("output1").Next = "ghost"
	g.Lookup("output1").Settings["port"] = 8443
	delete(g.Lookup(NodeProtoSwap).Settings, "protoswap")

	kinds := violationKinds(Validate(g))
	assert.Contains(t, kinds, UnresolvedSuccessor)
	assert.Contains(t, kinds, PortMismatch)
	assert.Contains(t, kinds, InvalidSettings)
	assert.GreaterOrEqual(t, len(kinds), 3)
}

func TestValidateDoesNotMutate(t *testing.T) {
	g, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", []int{443}, Options{})
	require.NoError(t, err)

	before, err := Encode(g)
	require.NoError(t, err)
	Validate(g)
	after, err := Encode(g)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

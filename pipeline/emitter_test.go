package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDocumentShape(t *testing.T) {
	g, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", []int{443, 8443}, Options{})
	require.NoError(t, err)

	doc, err := Encode(g)
	require.NoError(t, err)

	var raw struct {
		Name  string           `json:"name"`
		Nodes []map[string]any `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(doc, &raw))

	assert.Equal(t, "initiator", raw.Name)
	require.Len(t, raw.Nodes, 10)

	// Emission order mirrors insertion order: backbone in chain order, then
	// the port pairs ascending.
	wantOrder := []string{
		NodeTun, NodeSrcUp, NodeDstUp, NodeProtoSwap, NodeSrcDown, NodeRawSocket,
		"input1", "output1", "input2", "output2",
	}
	for i, n := range raw.Nodes {
		assert.Equal(t, wantOrder[i], n["name"])
	}

	// Terminal nodes carry no next key at all.
	last := raw.Nodes[len(raw.Nodes)-1]
	_, hasNext := last["next"]
	assert.False(t, hasNext)

	first := raw.Nodes[0]
	assert.Equal(t, string(KindTunDevice), first["type"])
	assert.Equal(t, NodeSrcUp, first["next"])
}

func TestEncodeResponderScenario(t *testing.T) {
	g, err := Build(RoleResponder, "5.6.7.8", "1.2.3.4", nil, Options{})
	require.NoError(t, err)

	doc, err := Encode(g)
	require.NoError(t, err)

	parsed, err := Decode(doc)
	require.NoError(t, err)

	assert.Equal(t, "responder", parsed.Name)
	require.Len(t, parsed.Nodes, 6)
	raw := parsed.Lookup(NodeRawSocket)
	require.NotNil(t, raw)
	assert.Equal(t, "1.2.3.4", raw.Settings["capture-ip"])
}

func TestRoundTrip(t *testing.T) {
	for _, ports := range [][]int{nil, {443}, {443, 8443, 22}} {
		g, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", ports, Options{})
		require.NoError(t, err)

		doc, err := Encode(g)
		require.NoError(t, err)

		parsed, err := Decode(doc)
		require.NoError(t, err)

		// Structure survives: names, kinds and successor links match.
		require.Len(t, parsed.Nodes, len(g.Nodes))
		for i := range g.Nodes {
			assert.Equal(t, g.Nodes[i].Name, parsed.Nodes[i].Name)
			assert.Equal(t, g.Nodes[i].Type, parsed.Nodes[i].Type)
			assert.Equal(t, g.Nodes[i].Next, parsed.Nodes[i].Next)
		}

		// A re-parsed graph still validates and re-encodes byte-identically,
		// which pins the settings down without caring that JSON numbers come
		// back as float64.
		assert.Empty(t, Validate(parsed))
		again, err := Encode(parsed)
		require.NoError(t, err)
		assert.Equal(t, string(doc), string(again))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("{"))
	assert.Error(t, err)
	_, err = Decode([]byte(`{"name": 3}`))
	assert.Error(t, err)
}

func TestDecodedNumbersAreUsable(t *testing.T) {
	g, err := Build(RoleInitiator, "1.2.3.4", "5.6.7.8", []int{443}, Options{})
	require.NoError(t, err)

	doc, err := Encode(g)
	require.NoError(t, err)
	parsed, err := Decode(doc)
	require.NoError(t, err)

	// JSON hands numbers back as float64; the validator and the port check
	// must cope with both representations.
	in := parsed.Lookup("input1")
	require.NotNil(t, in)
	assert.Equal(t, float64(443), in.Settings["port"])
	p, ok := portOf(in.Settings)
	require.True(t, ok)
	assert.Equal(t, 443, p)
}

package pipeline

import (
	"bytes"
	"encoding/json"
)

// Encode serializes the graph into the engine's configuration document:
// a top-level name plus the node list in insertion order. The engine walks
// the list as given, so order is preserved exactly, backbone first, then the
// port pairs in ascending index order.
//
// By the time Encode runs the graph is assumed valid; a graph that failed
// validation must never get here.
func Encode(g *Graph) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses an emitted document back into a graph. Generated documents
// round-trip exactly: Encode(Decode(doc)) reproduces doc byte for byte.
func Decode(doc []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

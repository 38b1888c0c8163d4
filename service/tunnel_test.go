package service

import (
	"errors"
	"os"
	"path"
	"testing"

	"github.com/mahdipatriot/PacketTunnel/pipeline"

	"github.com/stretchr/testify/require"
)

func TestCompileResponder(t *testing.T) {
	var svc TunnelService
	doc, err := svc.Compile("responder", "5.6.7.8", "1.2.3.4", nil, pipeline.Options{})
	require.NoError(t, err)

	graph, err := pipeline.Decode(doc)
	require.NoError(t, err)
	require.Equal(t, "responder", graph.Name)
	require.Len(t, graph.Nodes, 6)
}

func TestCompileInitiatorPortPairs(t *testing.T) {
	var svc TunnelService
	doc, err := svc.Compile("initiator", "1.2.3.4", "5.6.7.8", []int{443, 8443}, pipeline.Options{})
	require.NoError(t, err)

	graph, err := pipeline.Decode(doc)
	require.NoError(t, err)
	require.Len(t, graph.Nodes, 10)

	out := graph.Lookup("output1")
	require.NotNil(t, out)
	require.Equal(t, "10.10.0.2", out.Settings["address"])
	require.EqualValues(t, 443, out.Settings["port"])
}

func TestCompileCollectsAllInputProblems(t *testing.T) {
	var svc TunnelService
	_, err := svc.Compile("director", "999.1.1.1", "5.6.7.8", []int{0, 443, 443}, pipeline.Options{})
	require.Error(t, err)

	var inputErr *pipeline.InputError
	require.ErrorAs(t, err, &inputErr)
	require.Len(t, inputErr.Problems, 4)
}

func TestCompileResponderRejectsPorts(t *testing.T) {
	var svc TunnelService
	_, err := svc.Compile("responder", "5.6.7.8", "1.2.3.4", []int{443}, pipeline.Options{})

	var inputErr *pipeline.InputError
	require.ErrorAs(t, err, &inputErr)
}

func TestWriteDocumentAtomic(t *testing.T) {
	dir := t.TempDir()
	docPath := path.Join(dir, "conf", "edge.json")

	var svc TunnelService
	err := svc.WriteDocument(docPath, []byte(`{"name":"initiator"}`))
	require.NoError(t, err)

	data, err := os.ReadFile(docPath)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"initiator"}`, string(data))

	entries, err := os.ReadDir(path.Dir(docPath))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp file may remain next to the document")
}

func TestWriteDocumentFailureWrapsPath(t *testing.T) {
	dir := t.TempDir()
	blocker := path.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	var svc TunnelService
	err := svc.WriteDocument(path.Join(blocker, "edge.json"), []byte("{}"))
	require.Error(t, err)

	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	require.Contains(t, writeErr.Error(), "edge.json")
	require.NotNil(t, errors.Unwrap(writeErr))
}

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePorts(t *testing.T) {
	ports, err := parsePorts("443, 8443,9000")
	require.NoError(t, err)
	require.Equal(t, []int{443, 8443, 9000}, ports)

	ports, err = parsePorts("443,,8443")
	require.NoError(t, err)
	require.Equal(t, []int{443, 8443}, ports)

	_, err = parsePorts("443,abc")
	require.Error(t, err)
}

func TestJoinPorts(t *testing.T) {
	require.Equal(t, "443,8443", joinPorts([]int{443, 8443}))
	require.Equal(t, "", joinPorts(nil))
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	profilePath := filepath.Join(dir, "edge.yaml")
	content := "role: initiator\n" +
		"local: 1.2.3.4\n" +
		"remote: 5.6.7.8\n" +
		"ports: [443, 8443]\n" +
		"protoswap: 17\n"
	require.NoError(t, os.WriteFile(profilePath, []byte(content), 0o644))

	profile, err := loadProfile(profilePath)
	require.NoError(t, err)
	require.Equal(t, "initiator", profile.Role)
	require.Equal(t, "1.2.3.4", profile.Local)
	require.Equal(t, "5.6.7.8", profile.Remote)
	require.Equal(t, []int{443, 8443}, profile.Ports)
	require.Equal(t, 17, profile.ProtoSwap)

	_, err = loadProfile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadProfileRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	profilePath := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(profilePath, []byte("ports: [443"), 0o644))

	_, err := loadProfile(profilePath)
	require.Error(t, err)
}

package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionAndName(t *testing.T) {
	require.Equal(t, "PacketTunnel", GetName())
	version := GetVersion()
	require.NotEmpty(t, version)
	require.False(t, strings.ContainsAny(version, " \n"))
}

func TestLogLevel(t *testing.T) {
	t.Setenv("PT_DEBUG", "")
	t.Setenv("PT_LOG_LEVEL", "")
	require.Equal(t, Info, GetLogLevel())

	t.Setenv("PT_LOG_LEVEL", "warn")
	require.Equal(t, Warn, GetLogLevel())

	t.Setenv("PT_DEBUG", "true")
	require.Equal(t, Debug, GetLogLevel())
	require.True(t, IsDebug())
}

func TestDBPath(t *testing.T) {
	t.Setenv("PT_DB_FOLDER", "")
	require.Equal(t, "db", GetDBFolderPath())
	require.Equal(t, "db/packettunnel.db", GetDBPath())

	t.Setenv("PT_DB_FOLDER", "/var/lib/packettunnel")
	require.Equal(t, "/var/lib/packettunnel/packettunnel.db", GetDBPath())
}

func TestEngineDir(t *testing.T) {
	t.Setenv("PT_ENGINE_DIR", "")
	require.Equal(t, "/usr/local/packettunnel", GetEngineDir())

	t.Setenv("PT_ENGINE_DIR", "/opt/engine")
	require.Equal(t, "/opt/engine", GetEngineDir())
}

package telegram

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	command, args := parseCommand("/compile initiator 1.2.3.4 5.6.7.8 443,8443")
	require.Equal(t, "/compile", command)
	require.Equal(t, []string{"initiator", "1.2.3.4", "5.6.7.8", "443,8443"}, args)

	command, args = parseCommand("/status")
	require.Equal(t, "/status", command)
	require.Empty(t, args)

	command, args = parseCommand("   ")
	require.Equal(t, "", command)
	require.Nil(t, args)
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSettings(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		settings map[string]any
		wantErr  string
	}{
		{
			"tun device ok",
			KindTunDevice,
			map[string]any{"device-name": "wtun0", "device-ip": "10.10.0.1/24"},
			"",
		},
		{
			"tun device bare address",
			KindTunDevice,
			map[string]any{"device-name": "wtun0", "device-ip": "10.10.0.1"},
			"device-ip must be an IPv4 CIDR",
		},
		{
			"overrider ok",
			KindIpOverrider,
			map[string]any{"direction": "down", "mode": "dest-ip", "ipv4": "10.10.0.1"},
			"",
		},
		{
			"overrider bad mode",
			KindIpOverrider,
			map[string]any{"direction": "up", "mode": "both", "ipv4": "10.10.0.1"},
			"mode must be one of",
		},
		{
			"manipulator ok",
			KindIpManipulator,
			map[string]any{"protoswap": 62},
			"",
		},
		{
			"manipulator accepts json numbers",
			KindIpManipulator,
			map[string]any{"protoswap": float64(62)},
			"",
		},
		{
			"manipulator zero protocol",
			KindIpManipulator,
			map[string]any{"protoswap": 0},
			"protoswap must be 1 or greater",
		},
		{
			"manipulator protocol too large",
			KindIpManipulator,
			map[string]any{"protoswap": 256},
			"protoswap must be 255 or less",
		},
		{
			"raw socket ok",
			KindRawSocket,
			map[string]any{"capture-filter-mode": "source-ip", "capture-ip": "5.6.7.8"},
			"",
		},
		{
			"raw socket wrong filter mode",
			KindRawSocket,
			map[string]any{"capture-filter-mode": "dest-ip", "capture-ip": "5.6.7.8"},
			`capture-filter-mode must be "source-ip"`,
		},
		{
			"listener ok",
			KindTcpListener,
			map[string]any{"address": "0.0.0.0", "port": 443, "nodelay": true},
			"",
		},
		{
			"listener missing nodelay",
			KindTcpListener,
			map[string]any{"address": "0.0.0.0", "port": 443},
			"nodelay is required",
		},
		{
			"listener port out of range",
			KindTcpListener,
			map[string]any{"address": "0.0.0.0", "port": 65536, "nodelay": false},
			"port must be 65535 or less",
		},
		{
			"connector string port",
			KindTcpConnector,
			map[string]any{"address": "10.10.0.2", "port": "443", "nodelay": true},
			"settings",
		},
		{
			"extra keys tolerated",
			KindTcpConnector,
			map[string]any{"address": "10.10.0.2", "port": 443, "nodelay": false, "fastopen": true},
			"",
		},
		{
			"unknown kind",
			Kind("Teleport"),
			map[string]any{},
			"unknown node kind",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckSettings(tc.kind, tc.settings)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// nodelay=false must satisfy the required-key rule: presence matters, not
// truth.
func TestCheckSettingsNodelayFalse(t *testing.T) {
	err := CheckSettings(KindTcpListener, map[string]any{"address": "0.0.0.0", "port": 22, "nodelay": false})
	require.NoError(t, err)
}

package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/downloader/types"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		cfg      config.ClientConfig
		wantType types.ClientType
		wantErr  bool
	}{
		{config.ClientConfig{Name: "s", Type: "sabnzbd", Host: "h", Port: 1, APIKey: "k"}, types.ClientTypeSABnzbd, false},
		{config.ClientConfig{Name: "n", Type: "nzbget", Host: "h", Port: 1}, types.ClientTypeNZBGet, false},
		{config.ClientConfig{Name: "q", Type: "qbittorrent", Host: "h", Port: 1}, types.ClientTypeQBittorrent, false},
		{config.ClientConfig{Name: "t", Type: "transmission", Host: "h", Port: 1}, types.ClientTypeTransmission, false},
		{config.ClientConfig{Name: "x", Type: "rtorrent", Host: "h", Port: 1}, "", true},
		{config.ClientConfig{Name: "s", Type: "sabnzbd", Host: "h", Port: 1}, "", true}, // missing api key
	}

	for _, tt := range tests {
		client, err := NewClient(tt.cfg)
		if tt.wantErr {
			assert.ErrorIs(t, err, types.ErrInvalidConfig)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.wantType, client.Type())
	}
}

func TestClientForProtocol(t *testing.T) {
	sab, err := NewClient(config.ClientConfig{Name: "s", Type: "sabnzbd", Host: "h", Port: 1, APIKey: "k"})
	require.NoError(t, err)
	qbit, err := NewClient(config.ClientConfig{Name: "q", Type: "qbittorrent", Host: "h", Port: 1})
	require.NoError(t, err)

	clients := []Client{sab, qbit}

	got, ok := ClientForProtocol(clients, types.ProtocolTorrent)
	require.True(t, ok)
	assert.Equal(t, "q", got.Name())

	got, ok = ClientForProtocol(clients, types.ProtocolUsenet)
	require.True(t, ok)
	assert.Equal(t, "s", got.Name())

	_, ok = ClientForProtocol([]Client{sab}, types.ProtocolTorrent)
	assert.False(t, ok)
}

func TestReadyForPostProcess(t *testing.T) {
	tests := []struct {
		state    types.State
		seedWait bool
		want     bool
	}{
		{types.StateComplete, true, true},
		{types.StateComplete, false, true},
		{types.StateSeeding, false, true},
		{types.StateSeeding, true, false},
		{types.StateActive, false, false},
		{types.StateQueued, false, false},
		{types.StateFailed, false, false},
	}
	for _, tt := range tests {
		tr := &types.Transfer{State: tt.state}
		assert.Equal(t, tt.want, ReadyForPostProcess(tr, tt.seedWait), "%s seedWait=%v", tt.state, tt.seedWait)
	}
}

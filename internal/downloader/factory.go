// Package downloader builds and fronts the download client adapters.
package downloader

import (
	"fmt"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/downloader/nzbget"
	"github.com/shelfstream/shelfstream/internal/downloader/qbittorrent"
	"github.com/shelfstream/shelfstream/internal/downloader/sabnzbd"
	"github.com/shelfstream/shelfstream/internal/downloader/transmission"
	"github.com/shelfstream/shelfstream/internal/downloader/types"
)

// Re-export the shared types for convenience.
type (
	Client       = types.Client
	ClientType   = types.ClientType
	Protocol     = types.Protocol
	Submission   = types.Submission
	Transfer     = types.Transfer
	State        = types.State
	Capabilities = types.Capabilities
)

// NewClient creates a download client from its configuration. Configuration
// errors are reported here, before any network call.
func NewClient(cfg config.ClientConfig) (Client, error) {
	switch types.ClientType(cfg.Type) {
	case types.ClientTypeSABnzbd:
		return sabnzbd.New(sabnzbd.Config{
			Name:     cfg.Name,
			Host:     cfg.Host,
			Port:     cfg.Port,
			APIKey:   cfg.APIKey,
			UseSSL:   cfg.UseSSL,
			Category: cfg.Category,
		})
	case types.ClientTypeNZBGet:
		return nzbget.New(nzbget.Config{
			Name:     cfg.Name,
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			UseSSL:   cfg.UseSSL,
			Category: cfg.Category,
		})
	case types.ClientTypeQBittorrent:
		return qbittorrent.New(qbittorrent.Config{
			Name:     cfg.Name,
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			UseSSL:   cfg.UseSSL,
			Category: cfg.Category,
		})
	case types.ClientTypeTransmission:
		return transmission.New(transmission.Config{
			Name:     cfg.Name,
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			UseSSL:   cfg.UseSSL,
		})
	default:
		return nil, fmt.Errorf("%w: unknown client type %q", types.ErrInvalidConfig, cfg.Type)
	}
}

// ClientForProtocol picks the first enabled client matching the protocol.
func ClientForProtocol(clients []Client, protocol Protocol) (Client, bool) {
	for _, c := range clients {
		if c.Protocol() == protocol {
			return c, true
		}
	}
	return nil, false
}

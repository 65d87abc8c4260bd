// Package provider builds search providers from configuration. Results are
// untrusted advertisements; the search package normalizes and scores them
// before anything acts on one.
package provider

import (
	"errors"
	"fmt"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/provider/newznab"
	"github.com/shelfstream/shelfstream/internal/provider/rssfeed"
	"github.com/shelfstream/shelfstream/internal/provider/types"
)

// Re-export the shared types for convenience.
type (
	Protocol = types.Protocol
	Result   = types.Result
	Searcher = types.Searcher
)

const (
	ProtocolUsenet  = types.ProtocolUsenet
	ProtocolTorrent = types.ProtocolTorrent
	ProtocolDirect  = types.ProtocolDirect
)

// ErrUnknownType is returned by New for an unrecognized provider type.
var ErrUnknownType = errors.New("provider: unknown provider type")

// New builds a Searcher from its configuration.
func New(cfg config.ProviderConfig, log *logger.Logger) (Searcher, error) {
	switch cfg.Type {
	case "newznab":
		return newznab.New(cfg, log), nil
	case "torznab":
		return newznab.NewTorznab(cfg, log), nil
	case "rss":
		return rssfeed.New(cfg, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}

// Enabled builds Searchers for every enabled provider in the list, skipping
// (and logging) any that fail to construct.
func Enabled(cfgs []config.ProviderConfig, log *logger.Logger) []Searcher {
	var out []Searcher
	for _, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		s, err := New(cfg, log)
		if err != nil {
			log.Warn().Str("provider", cfg.Name).Err(err).Msg("Skipping provider")
			continue
		}
		out = append(out, s)
	}
	return out
}

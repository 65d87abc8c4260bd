// Package rssfeed implements a plain RSS/JSON feed provider. Magazine feeds
// and small indexers without a newznab API publish this way; the feed is
// fetched whole and filtered client-side, so Search ignores no query but
// leaves relevance to the scorer.
package rssfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/provider/types"
)

// Provider fetches and parses a single configured feed URL.
type Provider struct {
	name       string
	feedURL    string
	priority   int
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a feed provider from provider configuration.
func New(cfg config.ProviderConfig, log *logger.Logger) *Provider {
	return &Provider{
		name:       cfg.Name,
		feedURL:    cfg.URL,
		priority:   cfg.Priority,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.WithComponent("rssfeed"),
	}
}

// Name returns the configured provider name.
func (p *Provider) Name() string { return p.name }

// Priority returns the configured provider priority.
func (p *Provider) Priority() int { return p.priority }

// Search fetches the feed and returns every entry. Feeds have no query
// parameter; downstream filtering decides what is relevant.
func (p *Provider) Search(ctx context.Context, _ string) ([]types.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, application/json, text/xml")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}

	results, err := ParseFeed(body, p.name)
	if err != nil {
		return nil, err
	}

	p.log.Debug().Str("provider", p.name).Int("entries", len(results)).Msg("Feed fetched")
	return results, nil
}

// inferProtocol guesses the transfer protocol from the download URL and the
// enclosure MIME type.
func inferProtocol(downloadURL, mimeType string) types.Protocol {
	switch {
	case strings.HasPrefix(downloadURL, "magnet:"),
		strings.HasSuffix(downloadURL, ".torrent"),
		strings.Contains(mimeType, "bittorrent"):
		return types.ProtocolTorrent
	case strings.HasSuffix(downloadURL, ".nzb"),
		strings.Contains(mimeType, "nzb"):
		return types.ProtocolUsenet
	default:
		return types.ProtocolDirect
	}
}

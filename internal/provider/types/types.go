// Package types holds the shared provider result types, kept separate so
// provider implementations and the factory can both import them.
package types

import (
	"context"
	"time"
)

// Protocol identifies how a result's payload is fetched.
type Protocol string

const (
	ProtocolUsenet  Protocol = "usenet"
	ProtocolTorrent Protocol = "torrent"
	ProtocolDirect  Protocol = "direct"
)

// Result is a raw search result as advertised by a provider. Fields other
// than Title and DownloadURL are best-effort and frequently missing or lying.
type Result struct {
	GUID        string
	Title       string
	Contributor string // separate author/creator field, when the feed has one
	DownloadURL string
	InfoURL     string
	Size        int64 // bytes; 0 when unknown
	SizeText    string
	PublishDate time.Time
	Provider    string
	Protocol    Protocol
	Seeders     int
	Category    string
}

// Searcher is a single search provider.
type Searcher interface {
	Name() string
	Priority() int
	Search(ctx context.Context, query string) ([]Result, error)
}

// Package search fans a wanted item's query out over the enabled providers,
// normalizes the raw results into candidates, scores them against the item,
// and ranks the survivors.
package search

import (
	"time"

	"github.com/shelfstream/shelfstream/internal/provider"
)

// Candidate is a normalized, scored search result for one wanted item.
type Candidate struct {
	GUID        string
	Title       string
	Contributor string
	DownloadURL string
	Size        int64
	PublishDate time.Time
	Provider    string
	Priority    int
	Protocol    provider.Protocol
	Seeders     int
	Format      string // detected content extension, lowercase without dot

	// Scores on a 0-100 scale, filled in by the scorer.
	TitleScore       int
	ContributorScore int
	Score            int
	Acceptable       bool
}

// ProviderError records one provider's failure within a batch. Provider
// failures never fail the batch.
type ProviderError struct {
	Provider string
	Err      error
}

// BatchStats accumulates per-batch counters. A new value is created per
// dispatch call; nothing here is global.
type BatchStats struct {
	ProvidersQueried int
	ProviderErrors   []ProviderError
	RawResults       int
	Filtered         int
	Acceptable       int
	Elapsed          time.Duration
	AbandonedEarly   bool
}

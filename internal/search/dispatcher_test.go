package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/provider"
)

type fakeProvider struct {
	name     string
	priority int
	results  []provider.Result
	err      error
	delay    time.Duration
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Priority() int { return f.priority }

func (f *fakeProvider) Search(ctx context.Context, _ string) ([]provider.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func testDispatcher(providers ...provider.Searcher) *Dispatcher {
	cfg := config.Default()
	cfg.Search.ProviderTimeout = 2 * time.Second
	return NewDispatcher(providers, cfg.Search, NewScorer(cfg.Matching), logger.Nop())
}

func TestDispatch_FanOutAndRank(t *testing.T) {
	item := &catalog.WantedItem{Kind: catalog.KindBook, Title: "Dune", Contributor: "Frank Herbert"}

	a := &fakeProvider{name: "a", results: []provider.Result{
		{Title: "Dune - Frank Herbert.epub", DownloadURL: "u1", Provider: "a"},
	}}
	b := &fakeProvider{name: "b", results: []provider.Result{
		{Title: "Dune 2 - Movie Novelization", DownloadURL: "u2", Provider: "b"},
	}}

	candidates, stats := testDispatcher(a, b).Dispatch(context.Background(), item)

	require.Len(t, candidates, 2)
	assert.Equal(t, 2, stats.ProvidersQueried)
	assert.Equal(t, 2, stats.RawResults)
	assert.Equal(t, 1, stats.Acceptable)
	assert.Empty(t, stats.ProviderErrors)

	assert.Equal(t, "Dune - Frank Herbert", candidates[0].Title)
	assert.True(t, candidates[0].Acceptable)
	assert.False(t, candidates[1].Acceptable)
}

func TestDispatch_ProviderFailureContained(t *testing.T) {
	item := &catalog.WantedItem{Kind: catalog.KindBook, Title: "Dune", Contributor: "Frank Herbert"}

	ok := &fakeProvider{name: "ok", results: []provider.Result{
		{Title: "Dune - Frank Herbert.epub", DownloadURL: "u1", Provider: "ok"},
	}}
	broken := &fakeProvider{name: "broken", err: errors.New("connection refused")}

	candidates, stats := testDispatcher(ok, broken).Dispatch(context.Background(), item)

	require.Len(t, candidates, 1)
	require.Len(t, stats.ProviderErrors, 1)
	assert.Equal(t, "broken", stats.ProviderErrors[0].Provider)
}

func TestDispatch_ProviderTimeoutContained(t *testing.T) {
	item := &catalog.WantedItem{Kind: catalog.KindBook, Title: "Dune"}

	slow := &fakeProvider{name: "slow", delay: 5 * time.Second}
	cfg := config.Default()
	cfg.Search.ProviderTimeout = 50 * time.Millisecond
	d := NewDispatcher([]provider.Searcher{slow}, cfg.Search, NewScorer(cfg.Matching), logger.Nop())

	candidates, stats := d.Dispatch(context.Background(), item)
	assert.Empty(t, candidates)
	require.Len(t, stats.ProviderErrors, 1)
}

func TestDispatch_EarlyAbandon(t *testing.T) {
	item := &catalog.WantedItem{Kind: catalog.KindBook, Title: "Dune", Contributor: "Frank Herbert"}

	fast := &fakeProvider{name: "fast", results: []provider.Result{
		{Title: "Dune - Frank Herbert.epub", DownloadURL: "u1", Provider: "fast"},
	}}
	slow := &fakeProvider{name: "slow", delay: 3 * time.Second}

	cfg := config.Default()
	cfg.Search.StopAtFirstMatch = true
	cfg.Search.ProviderTimeout = 5 * time.Second
	d := NewDispatcher([]provider.Searcher{fast, slow}, cfg.Search, NewScorer(cfg.Matching), logger.Nop())

	start := time.Now()
	candidates, stats := d.Dispatch(context.Background(), item)

	assert.True(t, stats.AbandonedEarly)
	assert.Less(t, time.Since(start), 2*time.Second)
	require.NotEmpty(t, candidates)
	// The abandoned slow provider is not recorded as a failure.
	assert.Empty(t, stats.ProviderErrors)
}

func TestFilter(t *testing.T) {
	cfg := config.Default().Search
	cfg.MinSizeMB = 1
	cfg.MaxSizeMB = 100

	item := &catalog.WantedItem{
		Kind:            catalog.KindBook,
		Title:           "Dune",
		AcceptedFormats: []string{"epub"},
		RejectWords:     []string{"sample"},
	}

	candidates := []Candidate{
		{GUID: "keep", Format: "epub", Size: 10 << 20, Title: "Dune"},
		{GUID: "too-small", Format: "epub", Size: 100 << 10, Title: "Dune"},
		{GUID: "too-big", Format: "epub", Size: 500 << 20, Title: "Dune"},
		{GUID: "wrong-format", Format: "pdf", Size: 10 << 20, Title: "Dune"},
		{GUID: "rejected-word", Format: "epub", Size: 10 << 20, Title: "Dune SAMPLE chapter"},
		{GUID: "unknown-size", Format: "epub", Size: 0, Title: "Dune"},
		{GUID: "unknown-format", Format: "", Size: 10 << 20, Title: "Dune"},
	}

	got := Filter(item, cfg, candidates)
	var ids []string
	for _, c := range got {
		ids = append(ids, c.GUID)
	}
	assert.Equal(t, []string{"keep", "unknown-size", "unknown-format"}, ids)
}

func TestFilter_MagazineExpression(t *testing.T) {
	cfg := config.Default().Search

	substr := &catalog.WantedItem{
		Kind:            catalog.KindMagazine,
		Title:           "Linux Format",
		MatchExpression: "linux format",
	}
	re := &catalog.WantedItem{
		Kind:            catalog.KindMagazine,
		Title:           "Linux Format",
		MatchExpression: `Linux Format \d{4}`,
		Regex:           true,
	}

	candidates := []Candidate{
		{GUID: "issue", Title: "Linux Format 2024-05"},
		{GUID: "other", Title: "Windows Weekly 12"},
	}

	got := Filter(substr, cfg, append([]Candidate(nil), candidates...))
	require.Len(t, got, 1)
	assert.Equal(t, "issue", got[0].GUID)

	got = Filter(re, cfg, append([]Candidate(nil), candidates...))
	require.Len(t, got, 1)
	assert.Equal(t, "issue", got[0].GUID)
}

func TestBuildQuery(t *testing.T) {
	book := &catalog.WantedItem{Kind: catalog.KindBook, Title: "Dune", Contributor: "Frank Herbert"}
	assert.Equal(t, "frank herbert dune", BuildQuery(book))

	mag := &catalog.WantedItem{Kind: catalog.KindMagazine, Title: "Linux Format", Contributor: "Future plc"}
	assert.Equal(t, "linux format", BuildQuery(mag))
}

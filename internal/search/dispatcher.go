package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/provider"
)

// Dispatcher fans one item's query out over the enabled providers.
// Stateless per call; safe for concurrent use.
type Dispatcher struct {
	providers []provider.Searcher
	cfg       config.SearchConfig
	scorer    *Scorer
	log       *logger.Logger
}

// NewDispatcher creates a dispatcher over the given providers.
func NewDispatcher(providers []provider.Searcher, cfg config.SearchConfig, scorer *Scorer, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		providers: providers,
		cfg:       cfg,
		scorer:    scorer,
		log:       log.WithComponent("search"),
	}
}

// Dispatch queries every provider concurrently and returns the filtered,
// scored, ranked candidates for the item. Individual provider failures are
// recorded in the stats and never fail the batch. When stop-at-first-match
// is configured, outstanding provider queries are abandoned as soon as one
// candidate clears the download threshold.
func (d *Dispatcher) Dispatch(ctx context.Context, item *catalog.WantedItem) ([]Candidate, BatchStats) {
	start := time.Now()
	query := BuildQuery(item)

	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(batchCtx)
	g.SetLimit(d.cfg.MaxConcurrent)

	var (
		mu         sync.Mutex
		candidates []Candidate
		stats      BatchStats
	)
	stats.ProvidersQueried = len(d.providers)

	for _, p := range d.providers {
		p := p
		g.Go(func() error {
			pctx := gctx
			if d.cfg.ProviderTimeout > 0 {
				var pcancel context.CancelFunc
				pctx, pcancel = context.WithTimeout(gctx, d.cfg.ProviderTimeout)
				defer pcancel()
			}

			results, err := p.Search(pctx, query)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				// Abandoned providers after an early stop are not failures.
				if batchCtx.Err() == nil {
					stats.ProviderErrors = append(stats.ProviderErrors, ProviderError{
						Provider: p.Name(),
						Err:      err,
					})
					d.log.Warn().Str("provider", p.Name()).Err(err).Msg("Provider search failed")
				}
				return nil
			}

			stats.RawResults += len(results)
			batch := make([]Candidate, 0, len(results))
			for _, r := range results {
				c := Normalize(r)
				c.Priority = p.Priority()
				batch = append(batch, c)
			}
			batch = Filter(item, d.cfg, batch)
			d.scorer.ScoreAll(item, batch)
			candidates = append(candidates, batch...)

			if d.cfg.StopAtFirstMatch {
				for _, c := range batch {
					if c.Acceptable && c.Score >= highConfidence(d.scorer.cfg) {
						stats.AbandonedEarly = true
						cancel()
						break
					}
				}
			}
			return nil
		})
	}
	g.Wait()

	stats.Filtered = len(candidates)
	for _, c := range candidates {
		if c.Acceptable {
			stats.Acceptable++
		}
	}
	Rank(candidates)

	stats.Elapsed = time.Since(start)
	d.log.Debug().
		Str("item", item.Title).
		Int("raw", stats.RawResults).
		Int("acceptable", stats.Acceptable).
		Dur("elapsed", stats.Elapsed).
		Msg("Search batch complete")
	return candidates, stats
}

func highConfidence(cfg config.MatchingConfig) int {
	if cfg.DownloadRatio > 0 {
		return cfg.DownloadRatio
	}
	return 90
}

// Package acquire orchestrates the search half of the pipeline: fan out a
// wanted item's query, pick the best candidate, hand it to a download
// client, and advance the item's lifecycle state.
package acquire

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/decisioning"
	"github.com/shelfstream/shelfstream/internal/downloader"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/notification"
	"github.com/shelfstream/shelfstream/internal/outcome"
	"github.com/shelfstream/shelfstream/internal/search"
)

// Service runs search batches. Safe for concurrent use; the per-item grab
// lock keeps overlapping batches from double-submitting an item.
type Service struct {
	store      catalog.Store
	dispatcher *search.Dispatcher
	clients    []downloader.Client
	locks      *decisioning.GrabLock
	bus        *notification.Bus
	log        *logger.Logger
}

// NewService creates the acquisition service.
func NewService(store catalog.Store, dispatcher *search.Dispatcher, clients []downloader.Client, bus *notification.Bus, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		clients:    clients,
		locks:      decisioning.NewGrabLock(),
		bus:        bus,
		log:        log.WithComponent("acquire"),
	}
}

// RunSearchBatch processes each item once and returns one outcome per item.
// Safe to invoke repeatedly: items that are locked, not searchable, or
// already handled come back as skipped, never double-submitted.
func (s *Service) RunSearchBatch(ctx context.Context, items []*catalog.WantedItem) []outcome.Outcome {
	outcomes := make([]outcome.Outcome, 0, len(items))
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		o := s.searchOne(ctx, item)
		s.bus.Publish(o)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (s *Service) searchOne(ctx context.Context, item *catalog.WantedItem) outcome.Outcome {
	o := outcome.Outcome{ItemID: item.ID, ItemTitle: item.Title, At: time.Now()}

	if !item.Status.IsSearchable() {
		o.Disposition = outcome.DispositionSkipped
		o.Reason = "item is not in a searchable state"
		return o
	}
	if !s.locks.TryAcquire(item.ID) {
		o.Disposition = outcome.DispositionSkipped
		o.Reason = "item is locked by another batch"
		return o
	}
	defer s.locks.Release(item.ID)

	// An operator may have changed the item since it was listed.
	current, err := s.store.MatchOne(ctx, catalog.MatchCriteria{ID: item.ID})
	if err != nil {
		o.Disposition = outcome.DispositionError
		o.Reason = "catalog lookup failed: " + err.Error()
		return o
	}
	if !current.Status.IsSearchable() {
		o.Disposition = outcome.DispositionSkipped
		o.Reason = "status changed to " + string(current.Status)
		return o
	}

	candidates, stats := s.dispatcher.Dispatch(ctx, item)
	if len(stats.ProviderErrors) > 0 {
		s.log.Debug().Str("item", item.Title).
			Int("providerErrors", len(stats.ProviderErrors)).
			Msg("Batch completed with provider errors")
	}

	best := decisioning.SelectBest(candidates, s.clients)
	if best == nil {
		o.Disposition = outcome.DispositionNoMatch
		o.Reason = "no candidate cleared the match thresholds"
		return o
	}

	client, _ := decisioning.ClientFor(s.clients, best)
	downloadID, err := client.Submit(ctx, downloader.Submission{
		Name: best.Title,
		URL:  best.DownloadURL,
	})
	if err != nil {
		o.Disposition = outcome.DispositionError
		o.Provider = best.Provider
		o.ClientName = client.Name()
		o.Reason = "submission failed: " + err.Error()
		s.log.Warn().Str("item", item.Title).Str("client", client.Name()).
			Err(err).Msg("Candidate submission failed")
		return o
	}
	if downloadID == "" {
		// Back-end gave no handle; correlate with a generated one.
		downloadID = uuid.New().String()
	}

	err = s.store.UpsertStatus(ctx, item.ID, catalog.StatusWanted, catalog.StatusSnatched, catalog.StatusFields{
		DownloadID: downloadID,
		ClientName: client.Name(),
	})
	if err != nil {
		// Lost the race with an external status change; withdraw the
		// submission so the stale item does not download anyway.
		if cancelErr := client.Remove(ctx, downloadID, true); cancelErr != nil {
			s.log.Warn().Str("item", item.Title).Str("downloadId", downloadID).
				Err(cancelErr).Msg("Failed to withdraw submission after status race")
		}
		o.Disposition = outcome.DispositionSkipped
		o.Reason = "status changed during submission: " + err.Error()
		return o
	}

	s.log.Info().Str("item", item.Title).Str("provider", best.Provider).
		Str("client", client.Name()).Int("score", best.Score).
		Msg("Candidate snatched")

	o.Disposition = outcome.DispositionSnatched
	o.Provider = best.Provider
	o.ClientName = client.Name()
	o.DownloadID = downloadID
	return o
}

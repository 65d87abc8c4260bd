package postprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/decisioning"
	"github.com/shelfstream/shelfstream/internal/downloader"
	dltypes "github.com/shelfstream/shelfstream/internal/downloader/types"
	"github.com/shelfstream/shelfstream/internal/enrich"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/metadata"
	"github.com/shelfstream/shelfstream/internal/notification"
	"github.com/shelfstream/shelfstream/internal/outcome"
	"github.com/shelfstream/shelfstream/internal/unpack"
)

const lockFileName = ".postprocess.lock"

// Service runs the post-process pass: scan completed-transfer directories,
// match payloads to outstanding catalog items, validate, organize, and
// advance the lifecycle. A pass is idempotent; directories another pass
// holds, or payloads that resolve to nothing, are left untouched.
type Service struct {
	store     catalog.Store
	scanner   *Scanner
	matcher   *Matcher
	organizer *Organizer
	reader    *metadata.Reader
	enricher  *enrich.Service
	clients   []dltypes.Client
	bus       *notification.Bus
	locks     *decisioning.GrabLock
	cfg       *config.Config
	log       *logger.Logger
}

// NewService wires a post-process service. The enricher is optional; without
// one, organizing simply uses whatever the catalog and payload provide.
func NewService(store catalog.Store, clients []dltypes.Client, enricher *enrich.Service, bus *notification.Bus, cfg *config.Config, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		scanner:   NewScanner(log),
		matcher:   NewMatcher(store, cfg.Matching, log),
		organizer: NewOrganizer(cfg.Folders, cfg.Naming, log),
		reader:    metadata.NewReader(log),
		enricher:  enricher,
		clients:   clients,
		bus:       bus,
		locks:     decisioning.NewGrabLock(),
		cfg:       cfg,
		log:       log.WithComponent("postprocess"),
	}
}

// DiscoverDirs collects directories ready for a pass: completed transfers
// reported by the download clients plus subdirectories of the downloads
// folder. A client that cannot be reached contributes nothing.
func (s *Service) DiscoverDirs(ctx context.Context) []string {
	seen := make(map[string]struct{})
	var dirs []string
	add := func(dir string) {
		if dir == "" {
			return
		}
		if _, dup := seen[dir]; dup {
			return
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	for _, client := range s.clients {
		transfers, err := client.List(ctx)
		if err != nil {
			s.log.Warn().Str("client", client.Name()).Err(err).
				Msg("Failed to list transfers, skipping client this pass")
			continue
		}
		for i := range transfers {
			if downloader.ReadyForPostProcess(&transfers[i], s.cfg.PostProcess.SeedWait) {
				add(transfers[i].Path)
			}
		}
	}

	entries, err := os.ReadDir(s.cfg.Folders.Downloads)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
				add(filepath.Join(s.cfg.Folders.Downloads, entry.Name()))
			}
		}
	}

	sort.Strings(dirs)
	return dirs
}

// RunPass processes each directory and returns one outcome per payload that
// was acted on. Every outcome is also published on the bus.
func (s *Service) RunPass(ctx context.Context, dirs []string) []outcome.Outcome {
	outstanding, err := s.store.FindWantedItems(ctx, "", catalog.StatusSnatched)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load outstanding items, skipping pass")
		return nil
	}
	if len(outstanding) == 0 && len(dirs) == 0 {
		return nil
	}

	outcomes := s.sweepFailed(ctx, outstanding)
	for _, o := range outcomes {
		s.bus.Publish(o)
	}

	for _, dir := range dirs {
		if ctx.Err() != nil {
			break
		}
		if o := s.processDir(ctx, dir, outstanding); o != nil {
			o.At = time.Now()
			s.bus.Publish(*o)
			outcomes = append(outcomes, *o)
		}
	}

	CleanupEmptyDirs(s.cfg.Folders.Downloads)
	return outcomes
}

// sweepFailed returns permanently failed transfers' items to Wanted so the
// next search batch picks them up again. The dead transfer is removed from
// the client, best effort.
func (s *Service) sweepFailed(ctx context.Context, outstanding []*catalog.WantedItem) []outcome.Outcome {
	byHandle := make(map[string]*catalog.WantedItem)
	for _, item := range outstanding {
		if item.DownloadID != "" {
			byHandle[item.ClientName+"\x00"+item.DownloadID] = item
		}
	}
	if len(byHandle) == 0 {
		return nil
	}

	var outcomes []outcome.Outcome
	for _, client := range s.clients {
		transfers, err := client.List(ctx)
		if err != nil {
			continue
		}
		for _, t := range transfers {
			if t.State != dltypes.StateFailed {
				continue
			}
			item, ok := byHandle[client.Name()+"\x00"+t.ID]
			if !ok {
				continue
			}

			err := s.store.UpsertStatus(ctx, item.ID, catalog.StatusSnatched,
				catalog.StatusWanted, catalog.StatusFields{Message: t.Message})
			if err != nil {
				s.log.Warn().Str("item", item.ID).Err(err).
					Msg("Failed to re-queue item for a dead transfer")
				continue
			}
			if client.Capabilities().Remove {
				if err := client.Remove(ctx, t.ID, true); err != nil {
					s.log.Debug().Str("transfer", t.ID).Err(err).
						Msg("Failed to remove dead transfer")
				}
			}

			s.log.Info().Str("item", item.ID).Str("title", item.Title).
				Str("transfer", t.ID).Msg("Transfer failed, item returned to wanted")
			outcomes = append(outcomes, outcome.Outcome{
				ItemID:      item.ID,
				ItemTitle:   item.Title,
				Disposition: outcome.DispositionError,
				ClientName:  client.Name(),
				DownloadID:  t.ID,
				Reason:      failureReason(t.Message),
				At:          time.Now(),
			})
		}
	}
	return outcomes
}

func failureReason(message string) string {
	if message == "" {
		return "download failed, item returned to wanted"
	}
	return "download failed: " + message
}

// processDir handles one completed-transfer directory. A nil return means
// the directory produced nothing to report this pass (still downloading,
// locked by another process, or no usable content).
func (s *Service) processDir(ctx context.Context, dir string, outstanding []*catalog.WantedItem) *outcome.Outcome {
	dirLock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := dirLock.TryLock()
	if err != nil || !locked {
		s.log.Debug().Str("dir", dir).Msg("Directory locked by another pass, skipping")
		return nil
	}
	defer func() {
		dirLock.Unlock()
		os.Remove(dirLock.Path())
	}()

	payload, err := s.scanner.Scan(dir)
	if err != nil {
		return &outcome.Outcome{
			Disposition: outcome.DispositionError,
			Reason:      err.Error(),
		}
	}
	if len(payload.Content) == 0 {
		s.log.Debug().Str("dir", dir).Msg("No content files yet, leaving for a later pass")
		return nil
	}

	meta := s.reader.Resolve(representative(payload.Content), payload.Sidecars)

	match := s.matcher.Match(ctx, meta, outstanding)
	if match.Item == nil {
		// Multi-part payloads often name their files by chapter; the transfer
		// directory itself usually still carries the work's name.
		dirMeta := metadata.GuessFromName(filepath.Base(dir))
		if retry := s.matcher.Match(ctx, dirMeta, outstanding); retry.Item != nil {
			match = retry
		}
	}
	if match.Item == nil {
		return &outcome.Outcome{
			ItemTitle:   meta.Title,
			Disposition: outcome.DispositionUnmatched,
			Reason:      match.Reason,
		}
	}
	item := match.Item

	if !s.locks.TryAcquire(item.ID) {
		return &outcome.Outcome{
			ItemID:      item.ID,
			ItemTitle:   item.Title,
			Disposition: outcome.DispositionSkipped,
			Reason:      "item is being processed elsewhere",
		}
	}
	defer s.locks.Release(item.ID)

	// Re-read immediately before committing anything; an operator may have
	// ignored or re-queued the item since the match.
	current, err := s.store.MatchOne(ctx, catalog.MatchCriteria{ID: item.ID})
	if err != nil {
		return s.errorOutcome(item, err)
	}
	if current.Status != catalog.StatusSnatched {
		return &outcome.Outcome{
			ItemID:      item.ID,
			ItemTitle:   item.Title,
			Disposition: outcome.DispositionSkipped,
			Reason:      "item status changed externally",
		}
	}

	accepted := acceptedFiles(item, payload.Content)
	if len(accepted) == 0 {
		return &outcome.Outcome{
			ItemID:      item.ID,
			ItemTitle:   item.Title,
			Disposition: outcome.DispositionRejectedFormat,
			Reason:      "no content file in an accepted format",
		}
	}

	if reason := s.checkSize(accepted); reason != "" {
		return &outcome.Outcome{
			ItemID:      item.ID,
			ItemTitle:   item.Title,
			Disposition: outcome.DispositionRejectedSize,
			Reason:      reason,
		}
	}

	// Best-effort series lookup before naming; missing info never blocks.
	if s.enricher != nil && item.SeriesName == "" && item.WorkpageURL != "" {
		if info := s.enricher.Enrich(ctx, item.WorkpageURL); info != nil {
			item.SeriesName = info.Series
			item.SeriesNum = info.SeriesNum
			if meta.ISBN == "" {
				meta.ISBN = info.ISBN
			}
		}
	}

	destPath, err := s.place(item, accepted, payload.Sidecars, meta)
	if err != nil {
		if errors.Is(err, errMultiFile) {
			return &outcome.Outcome{
				ItemID:      item.ID,
				ItemTitle:   item.Title,
				Disposition: outcome.DispositionSkipped,
				Reason:      "multiple content files and single-file policy is reject",
			}
		}
		return s.errorOutcome(item, err)
	}

	// The move is confirmed; only now does the lifecycle advance.
	err = s.store.UpsertStatus(ctx, item.ID, catalog.StatusSnatched, catalog.StatusHave,
		catalog.StatusFields{LibraryPath: destPath})
	if err != nil {
		s.log.Error().Str("item", item.ID).Err(err).
			Msg("Content organized but status update failed")
		return s.errorOutcome(item, err)
	}

	s.log.Info().Str("item", item.ID).Str("title", item.Title).Str("path", destPath).
		Msg("Payload accepted")
	return &outcome.Outcome{
		ItemID:      item.ID,
		ItemTitle:   item.Title,
		Disposition: outcome.DispositionAccepted,
		Path:        destPath,
	}
}

var errMultiFile = errors.New("multiple content files")

// place organizes the accepted files and returns the library path. Audio
// payloads move as a set; other kinds resolve to a single file, applying the
// configured single-file policy when several candidates remain.
func (s *Service) place(item *catalog.WantedItem, accepted, sidecars []string, meta metadata.Metadata) (string, error) {
	if item.Kind == catalog.KindAudio {
		dir, _, err := s.organizer.PlaceSet(item, accepted, sidecars, meta)
		return dir, err
	}

	content := accepted[0]
	if len(accepted) > 1 {
		switch s.cfg.PostProcess.SingleFilePolicy {
		case "largest":
			content = largestFile(accepted)
		case "newest":
			content = newestFile(accepted)
		default:
			return "", errMultiFile
		}
	}

	dest, _, err := s.organizer.Place(item, content, sidecars, meta)
	return dest, err
}

func (s *Service) errorOutcome(item *catalog.WantedItem, err error) *outcome.Outcome {
	return &outcome.Outcome{
		ItemID:      item.ID,
		ItemTitle:   item.Title,
		Disposition: outcome.DispositionError,
		Reason:      err.Error(),
	}
}

// checkSize validates every accepted file against the configured window.
// A zero bound disables that side of the window.
func (s *Service) checkSize(files []string) string {
	min := int64(s.cfg.Search.MinSizeMB) << 20
	max := int64(s.cfg.Search.MaxSizeMB) << 20
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if min > 0 && info.Size() < min {
			return "content file below the minimum size"
		}
		if max > 0 && info.Size() > max {
			return "content file above the maximum size"
		}
	}
	return ""
}

// acceptedFiles filters content files down to the item's accepted formats.
// Audio items take audio files only, so a stray pdf in an audiobook payload
// is not mistaken for the content.
func acceptedFiles(item *catalog.WantedItem, content []string) []string {
	var out []string
	for _, f := range content {
		ext := filepath.Ext(f)
		if item.Kind == catalog.KindAudio && !unpack.IsAudioExt(ext) {
			continue
		}
		if item.AcceptsFormat(ext) {
			out = append(out, f)
		}
	}
	return out
}

// representative picks the file metadata is read from: an epub if there is
// one (embedded OPF), else any non-audio content file, else the first file.
func representative(content []string) string {
	for _, f := range content {
		if strings.EqualFold(filepath.Ext(f), ".epub") {
			return f
		}
	}
	for _, f := range content {
		if !unpack.IsAudioExt(filepath.Ext(f)) {
			return f
		}
	}
	return content[0]
}

func largestFile(files []string) string {
	best := files[0]
	var bestSize int64 = -1
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.Size() > bestSize {
			best, bestSize = f, info.Size()
		}
	}
	return best
}

func newestFile(files []string) string {
	best := files[0]
	var bestTime time.Time
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.ModTime().After(bestTime) {
			best, bestTime = f, info.ModTime()
		}
	}
	return best
}

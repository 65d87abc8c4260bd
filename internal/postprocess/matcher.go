package postprocess

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/fuzzy"
	"github.com/shelfstream/shelfstream/internal/logger"
	"github.com/shelfstream/shelfstream/internal/metadata"
)

// MatchOutcome is the matcher's verdict for one payload.
type MatchOutcome struct {
	Item   *catalog.WantedItem // nil when unmatched
	Score  int
	Reason string // why no item was chosen, when Item is nil
}

// Matcher resolves extracted payload metadata to at most one outstanding
// catalog item. An ambiguous near-tie is a rejection, never a guess.
type Matcher struct {
	store catalog.Store
	cfg   config.MatchingConfig
	log   *logger.Logger
}

// NewMatcher creates a matcher.
func NewMatcher(store catalog.Store, cfg config.MatchingConfig, log *logger.Logger) *Matcher {
	return &Matcher{store: store, cfg: cfg, log: log.WithComponent("match")}
}

// Match resolves meta against the outstanding items. An exact ISBN hit wins
// outright; otherwise the best fuzzy score must clear the match threshold and
// beat the runner-up by the configured margin.
func (m *Matcher) Match(ctx context.Context, meta metadata.Metadata, outstanding []*catalog.WantedItem) MatchOutcome {
	if meta.ISBN != "" {
		if item, err := m.store.MatchOne(ctx, catalog.MatchCriteria{ISBN: meta.ISBN}); err == nil {
			if item.Status == catalog.StatusSnatched {
				return MatchOutcome{Item: item, Score: 100}
			}
			m.log.Debug().Str("isbn", meta.ISBN).Str("status", string(item.Status)).
				Msg("ISBN matches an item that is not awaiting content")
		} else if !errors.Is(err, catalog.ErrNotFound) {
			m.log.Warn().Err(err).Msg("ISBN lookup failed, falling back to fuzzy match")
		}
	}

	var (
		best, second int
		bestItem     *catalog.WantedItem
	)
	for _, item := range outstanding {
		score := m.scoreItem(item, meta)
		if score > best {
			second = best
			best = score
			bestItem = item
		} else if score > second {
			second = score
		}
	}

	switch {
	case bestItem == nil || best < m.cfg.MatchRatio:
		return MatchOutcome{Score: best, Reason: "no outstanding item scored above the match threshold"}
	case best-second < m.cfg.AmbiguityMargin:
		m.log.Info().Str("title", meta.Title).Int("best", best).Int("second", second).
			Msg("Refusing ambiguous match")
		return MatchOutcome{Score: best, Reason: "ambiguous match, score margin too small"}
	default:
		return MatchOutcome{Item: bestItem, Score: best}
	}
}

// scoreItem scores one outstanding item against payload metadata on the
// 0-100 scale.
func (m *Matcher) scoreItem(item *catalog.WantedItem, meta metadata.Metadata) int {
	if item.Kind == catalog.KindMagazine && item.MatchExpression != "" {
		if magazineExpressionMatches(item, meta.Title) {
			return 100
		}
		return 0
	}

	if meta.Contributor != "" && item.Contributor != "" {
		titleScore := fuzzy.TokenSetRatio(item.Title, meta.Title)
		contribScore := fuzzy.TokenSetRatio(item.Contributor, meta.Contributor)
		if contribScore < m.cfg.ContributorRatio {
			// Same title by a different contributor is not this item.
			return 0
		}
		return (titleScore*7 + contribScore*3) / 10
	}

	// No contributor on one side: compare against the item's combined string
	// so a payload titled "Author - Title" still lines up.
	wanted := item.Title
	if item.Contributor != "" {
		wanted = item.Contributor + " " + item.Title
	}
	return fuzzy.TokenSetRatio(wanted, meta.Title)
}

// magazineExpressionMatches applies a subscription's match expression: a
// case-insensitive regex when the item says so, else a normalized substring.
func magazineExpressionMatches(item *catalog.WantedItem, title string) bool {
	if item.Regex {
		re, err := regexp.Compile("(?i)" + item.MatchExpression)
		if err != nil {
			return false
		}
		return re.MatchString(title)
	}
	return strings.Contains(fuzzy.Normalize(title), fuzzy.Normalize(item.MatchExpression))
}

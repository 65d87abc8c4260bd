package search

import (
	"sort"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/fuzzy"
)

// Scorer computes match scores for candidates against a wanted item.
type Scorer struct {
	cfg config.MatchingConfig
}

// NewScorer creates a scorer with the given thresholds.
func NewScorer(cfg config.MatchingConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score fills in the candidate's similarity scores and acceptability.
//
// When the raw result carries a distinct contributor field, title and
// contributor are compared field-for-field and each must clear its own
// threshold. When it does not (most indexers cram everything into one title
// line), the wanted item's combined "contributor title" string is compared
// against the advertised title instead. The combined comparison keeps a bare
// subset hit like "Dune" in "Dune 2 - Movie Novelization" from scoring as a
// full match, since the missing contributor tokens drag the ratio down.
func (s *Scorer) Score(item *catalog.WantedItem, c *Candidate) {
	if c.Contributor != "" && item.Contributor != "" {
		c.TitleScore = fuzzy.TokenSetRatio(item.Title, c.Title)
		c.ContributorScore = fuzzy.TokenSetRatio(item.Contributor, c.Contributor)
		// Weighted blend, title dominant.
		c.Score = (c.TitleScore*7 + c.ContributorScore*3) / 10
		c.Acceptable = c.TitleScore >= s.cfg.TitleRatio &&
			c.ContributorScore >= s.cfg.ContributorRatio
		return
	}

	wanted := item.Title
	if item.Contributor != "" {
		wanted = item.Contributor + " " + item.Title
	}
	c.TitleScore = fuzzy.TokenSetRatio(wanted, c.Title)
	c.ContributorScore = 0
	c.Score = c.TitleScore
	c.Acceptable = c.TitleScore >= s.cfg.TitleRatio
}

// ScoreAll scores every candidate in place.
func (s *Scorer) ScoreAll(item *catalog.WantedItem, candidates []Candidate) {
	for i := range candidates {
		s.Score(item, &candidates[i])
	}
}

// Rank orders candidates best-first: score descending, then recency
// descending, then size ascending (a smaller in-window release beats an
// oversized one), with provider priority as the final tiebreak.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PublishDate.Equal(b.PublishDate) {
			return a.PublishDate.After(b.PublishDate)
		}
		if a.Size != b.Size {
			if a.Size == 0 {
				return false
			}
			if b.Size == 0 {
				return true
			}
			return a.Size < b.Size
		}
		return a.Priority > b.Priority
	})
}

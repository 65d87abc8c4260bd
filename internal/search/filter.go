package search

import (
	"regexp"
	"strings"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/fuzzy"
)

// Filter applies the post-filters a provider cannot be trusted to apply
// itself: size window, accepted formats, rejected words, and (for magazine
// subscriptions) the match expression. Returns the surviving candidates.
func Filter(item *catalog.WantedItem, cfg config.SearchConfig, candidates []Candidate) []Candidate {
	var magRegex *regexp.Regexp
	if item.Kind == catalog.KindMagazine && item.Regex && item.MatchExpression != "" {
		// An invalid expression matches nothing rather than everything.
		magRegex, _ = regexp.Compile("(?i)" + item.MatchExpression)
	}

	minBytes := int64(cfg.MinSizeMB) << 20
	maxBytes := int64(cfg.MaxSizeMB) << 20

	out := candidates[:0]
	for _, c := range candidates {
		if c.Size > 0 {
			if minBytes > 0 && c.Size < minBytes {
				continue
			}
			if maxBytes > 0 && c.Size > maxBytes {
				continue
			}
		}
		if c.Format != "" && !item.AcceptsFormat(c.Format) {
			continue
		}
		if containsRejectWord(c.Title, item.RejectWords) {
			continue
		}
		if item.Kind == catalog.KindMagazine && item.MatchExpression != "" {
			if item.Regex {
				if magRegex == nil || !magRegex.MatchString(c.Title) {
					continue
				}
			} else if !strings.Contains(
				fuzzy.Normalize(c.Title), fuzzy.Normalize(item.MatchExpression)) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func containsRejectWord(title string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	normalized := " " + fuzzy.Normalize(title) + " "
	for _, w := range words {
		w = fuzzy.Normalize(w)
		if w == "" {
			continue
		}
		if strings.Contains(normalized, " "+w+" ") {
			return true
		}
	}
	return false
}

// BuildQuery constructs the free-text provider query for an item. Books and
// audio editions combine contributor and title tokens; magazine
// subscriptions query on the bare title and rely on the match expression
// post-filter for issue selection.
func BuildQuery(item *catalog.WantedItem) string {
	if item.Kind == catalog.KindMagazine {
		return fuzzy.Normalize(item.Title)
	}
	if item.Contributor == "" {
		return fuzzy.Normalize(item.Title)
	}
	return fuzzy.Normalize(item.Contributor + " " + item.Title)
}

// Package fuzzy provides token-set string similarity used by both the
// search scorer and the post-process matcher.
package fuzzy

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	apostropheRegex    = regexp.MustCompile(`[''\x60\x{2018}\x{2019}\x{02BC}]`)
	specialCharsRegex  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	multipleSpaceRegex = regexp.MustCompile(`\s+`)
)

// Normalize converts a string to a normalized form for comparison.
// It strips accents and apostrophes (within-word punctuation), lowercases,
// replaces remaining special characters with spaces, and collapses runs of
// whitespace. Apostrophes are stripped rather than replaced with spaces so
// that "Earthsea's End" and "Earthseas End" normalize identically.
func Normalize(s string) string {
	normalized := stripAccents(s)
	normalized = strings.ToLower(normalized)
	normalized = apostropheRegex.ReplaceAllString(normalized, "")
	normalized = specialCharsRegex.ReplaceAllString(normalized, " ")
	normalized = multipleSpaceRegex.ReplaceAllString(normalized, " ")
	return strings.TrimSpace(normalized)
}

// stripAccents decomposes to NFD and drops combining marks.
func stripAccents(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokens returns the normalized token set of a string, duplicates collapsed,
// in sorted order.
func Tokens(s string) []string {
	fields := strings.Fields(Normalize(s))
	if len(fields) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// TokenSetRatio computes an order- and duplicate-insensitive similarity
// between two strings on a 0-100 scale. Identical token sets score 100,
// disjoint token sets score 0, and a string whose tokens are a subset of the
// other's scores 100 (so "Dune" fully matches "Dune - Frank Herbert").
func TokenSetRatio(a, b string) int {
	ta := Tokens(a)
	tb := Tokens(b)

	if len(ta) == 0 && len(tb) == 0 {
		return 100
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inA := make(map[string]struct{}, len(ta))
	for _, t := range ta {
		inA[t] = struct{}{}
	}

	var common, onlyB []string
	inBoth := make(map[string]struct{})
	for _, t := range tb {
		if _, ok := inA[t]; ok {
			common = append(common, t)
			inBoth[t] = struct{}{}
		} else {
			onlyB = append(onlyB, t)
		}
	}
	if len(common) == 0 {
		return 0
	}
	var onlyA []string
	for _, t := range ta {
		if _, ok := inBoth[t]; !ok {
			onlyA = append(onlyA, t)
		}
	}

	base := strings.Join(common, " ")
	full1 := joinNonEmpty(base, strings.Join(onlyA, " "))
	full2 := joinNonEmpty(base, strings.Join(onlyB, " "))

	best := ratio(base, full1)
	if r := ratio(base, full2); r > best {
		best = r
	}
	if r := ratio(full1, full2); r > best {
		best = r
	}
	return best
}

func joinNonEmpty(a, b string) string {
	if b == "" {
		return a
	}
	return a + " " + b
}

// ratio is a longest-common-subsequence similarity on a 0-100 scale,
// equivalent to the classic SequenceMatcher ratio.
func ratio(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	// Single-row LCS table.
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[lb]
	// 100 * 2*lcs/(la+lb), rounded to nearest.
	return (200*lcs + (la+lb)/2) / (la + lb)
}

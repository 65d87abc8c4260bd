package metadata

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// "Title (Author)" with the parenthetical at the end.
	titleParenAuthorRegex = regexp.MustCompile(`^(.+?)\s*\(([^)]+)\)\s*$`)
	// Release-group noise like "v5.0" or "retail" after the title.
	versionNoiseRegex = regexp.MustCompile(`(?i)\s+v\d+(\.\d+)*$`)
)

// GuessFromName applies the filename heuristics to an arbitrary name, such
// as a completed-transfer directory whose parts carry chapter names instead
// of the work's title.
func GuessFromName(name string) Metadata {
	return fromFilename(name)
}

// fromFilename guesses title and contributor from a bare filename.
// Recognized shapes, tried in order: "Author - Title", "Title (Author)",
// and a plain title. Underscores are treated as spaces throughout.
func fromFilename(name string) Metadata {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ReplaceAll(base, "_", " ")
	base = versionNoiseRegex.ReplaceAllString(base, "")
	base = strings.TrimSpace(base)
	if base == "" {
		return Metadata{}
	}

	if parts := strings.SplitN(base, " - ", 2); len(parts) == 2 {
		left := strings.TrimSpace(parts[0])
		right := strings.TrimSpace(parts[1])
		if left != "" && right != "" {
			return Metadata{Contributor: left, Title: right}
		}
	}

	if m := titleParenAuthorRegex.FindStringSubmatch(base); m != nil {
		title := strings.TrimSpace(m[1])
		author := strings.TrimSpace(m[2])
		if title != "" && author != "" && !looksLikeYear(author) {
			return Metadata{Title: title, Contributor: author}
		}
	}

	return Metadata{Title: base}
}

func looksLikeYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

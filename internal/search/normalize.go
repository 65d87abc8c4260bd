package search

import (
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shelfstream/shelfstream/internal/provider"
)

// contentExtensions are the formats the pipeline recognizes in advertised
// titles and download URLs.
var contentExtensions = []string{
	"epub", "mobi", "azw3", "pdf", "cbz", "cbr",
	"mp3", "m4a", "m4b", "flac", "ogg",
}

var (
	// Noise providers append to advertised titles: bracketed tags like
	// [eBook], (v1.2), {EN}, and retail suffixes.
	bracketNoiseRegex = regexp.MustCompile(`[\[({][^\])}]*[\])}]`)
	sizeTokenRegex    = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:[KMGT]i?B)\b`)
)

// epochSentinel is used when a result's publish date cannot be parsed, so
// unparsable dates rank oldest instead of failing the record.
var epochSentinel = time.Unix(0, 0).UTC()

// Normalize maps a raw provider result into a Candidate. Scores are zero
// until the scorer runs.
func Normalize(r provider.Result) Candidate {
	c := Candidate{
		GUID:        r.GUID,
		Title:       cleanTitle(r.Title),
		Contributor: strings.TrimSpace(r.Contributor),
		DownloadURL: r.DownloadURL,
		Size:        r.Size,
		PublishDate: r.PublishDate,
		Provider:    r.Provider,
		Protocol:    r.Protocol,
		Seeders:     r.Seeders,
		Format:      detectFormat(r.Title, r.DownloadURL),
	}

	if c.Size == 0 && r.SizeText != "" {
		if n, err := humanize.ParseBytes(r.SizeText); err == nil {
			c.Size = int64(n)
		}
	}
	if c.Size == 0 {
		// Some feeds only mention the size inside the title text.
		if m := sizeTokenRegex.FindString(r.Title); m != "" {
			if n, err := humanize.ParseBytes(m); err == nil {
				c.Size = int64(n)
			}
		}
	}

	if c.PublishDate.IsZero() {
		c.PublishDate = epochSentinel
	}
	return c
}

// cleanTitle strips source noise from an advertised title: bracketed tags,
// size tokens, and a trailing content extension.
func cleanTitle(title string) string {
	t := bracketNoiseRegex.ReplaceAllString(title, " ")
	t = sizeTokenRegex.ReplaceAllString(t, " ")
	for _, ext := range contentExtensions {
		if n := len(t) - len(ext) - 1; n > 0 && t[n] == '.' && strings.EqualFold(t[n+1:], ext) {
			t = t[:n]
			break
		}
	}
	return strings.Join(strings.Fields(t), " ")
}

// detectFormat returns the first recognized content extension found in the
// title or the download URL, or "".
func detectFormat(title, downloadURL string) string {
	for _, s := range []string{title, downloadURL} {
		lower := strings.ToLower(s)
		for _, ext := range contentExtensions {
			if strings.HasSuffix(lower, "."+ext) || strings.Contains(lower, "."+ext+"?") {
				return ext
			}
		}
	}
	return ""
}

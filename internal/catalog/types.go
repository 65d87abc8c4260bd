// Package catalog defines the wanted-item model and the store interface the
// acquisition pipeline consumes. The pipeline only reads, matches, and
// upserts status; the storage engine itself is replaceable.
package catalog

import (
	"strings"
	"time"
)

// ItemKind identifies what kind of catalog entry an item is.
type ItemKind string

const (
	KindBook     ItemKind = "book"
	KindAudio    ItemKind = "audio"
	KindMagazine ItemKind = "magazine"
)

// Status is a catalog item's acquisition lifecycle state.
type Status string

const (
	StatusSkipped  Status = "Skipped"
	StatusIgnored  Status = "Ignored"
	StatusWanted   Status = "Wanted"
	StatusSnatched Status = "Snatched"
	StatusHave     Status = "Have"
	StatusOpen     Status = "Open"
)

// IsTerminal reports whether content is present and the status is sticky.
// Terminal statuses are never auto-overwritten by a later submission.
func (s Status) IsTerminal() bool {
	return s == StatusHave || s == StatusOpen
}

// IsSearchable reports whether the item is eligible for auto-search.
func (s Status) IsSearchable() bool {
	return s == StatusWanted
}

// CanTransition reports whether the pipeline may move an item from one
// status to another. Operator actions (marking Ignored, forcing a re-search
// of a terminal item) are outside the pipeline and not constrained here.
func CanTransition(from, to Status) bool {
	switch {
	case from == to:
		return false
	case to == StatusIgnored:
		return true
	case from == StatusWanted && to == StatusSnatched:
		return true
	case from == StatusSnatched && to == StatusHave:
		return true
	case from == StatusSnatched && to == StatusWanted:
		return true
	default:
		return false
	}
}

// WantedItem identifies a catalog entry eligible for acquisition.
// Owned by the catalog; the pipeline only reads it.
type WantedItem struct {
	ID          string   `json:"id"`
	Kind        ItemKind `json:"kind"`
	Title       string   `json:"title"`
	Contributor string   `json:"contributor"`

	// Optional secondary identifiers.
	ISBN       string  `json:"isbn,omitempty"`
	SeriesName string  `json:"seriesName,omitempty"`
	SeriesNum  float64 `json:"seriesNum,omitempty"`

	// Magazine subscriptions carry a match expression instead of relying on
	// fuzzy title similarity: either a regex (when Regex is true) or a plain
	// case-insensitive substring.
	MatchExpression string   `json:"matchExpression,omitempty"`
	Regex           bool     `json:"regex,omitempty"`
	RejectWords     []string `json:"rejectWords,omitempty"`

	// AcceptedFormats is the set of content extensions (without dot) the
	// operator accepts for this item, e.g. {"epub", "mobi"}.
	AcceptedFormats []string `json:"acceptedFormats"`

	// LibraryRoot is the root directory content for this item is placed under.
	LibraryRoot string `json:"libraryRoot"`

	// WorkpageURL is an optional public page for the work, scraped for
	// series and ISBN hints the catalog entry is missing.
	WorkpageURL string `json:"workpageUrl,omitempty"`

	// DownloadID and ClientName identify the outstanding transfer while the
	// item is Snatched. Written by the pipeline on submission.
	DownloadID string `json:"downloadId,omitempty"`
	ClientName string `json:"clientName,omitempty"`

	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// AcceptsFormat reports whether ext (with or without a leading dot) is in the
// item's accepted-format set. An empty set accepts everything.
func (w *WantedItem) AcceptsFormat(ext string) bool {
	if len(w.AcceptedFormats) == 0 {
		return true
	}
	for len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	for _, f := range w.AcceptedFormats {
		if strings.EqualFold(f, ext) {
			return true
		}
	}
	return false
}

// MatchCriteria selects at most one wanted item.
type MatchCriteria struct {
	ID   string
	ISBN string
}

// StatusFields carries optional columns updated together with a status change.
type StatusFields struct {
	DownloadID  string
	ClientName  string
	LibraryPath string
	Message     string
}

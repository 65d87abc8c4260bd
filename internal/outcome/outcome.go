// Package outcome defines the per-item result record both pipeline passes
// emit. Every rejection carries enough context to diagnose without rerunning.
package outcome

import (
	"time"
)

// Disposition classifies how a pipeline pass ended for one item or payload.
type Disposition string

const (
	// DispositionSnatched: a search candidate was submitted to a client.
	DispositionSnatched Disposition = "snatched"
	// DispositionAccepted: a payload was matched, validated, and organized.
	DispositionAccepted Disposition = "accepted"
	// DispositionNoMatch: no search candidate cleared the thresholds.
	DispositionNoMatch Disposition = "no-match"
	// DispositionUnmatched: a payload resolved to no item, or ambiguously.
	DispositionUnmatched Disposition = "unmatched"
	// DispositionRejectedFormat: the payload's format is not accepted.
	DispositionRejectedFormat Disposition = "rejected-format"
	// DispositionRejectedSize: the payload is outside the size window.
	DispositionRejectedSize Disposition = "rejected-size"
	// DispositionSkipped: the item was locked or externally changed mid-pass.
	DispositionSkipped Disposition = "skipped"
	// DispositionError: a transport or filesystem error stopped this item.
	DispositionError Disposition = "error"
)

// Outcome is one item's result from a search batch or post-process pass.
type Outcome struct {
	ItemID      string
	ItemTitle   string
	Disposition Disposition
	Provider    string // search pass: the winning provider
	ClientName  string // search pass: the client the payload went to
	DownloadID  string
	Path        string // post-process pass: the final library path
	Reason      string // human-readable detail for rejections and errors
	At          time.Time
}

// OK reports whether the pipeline advanced the item.
func (o Outcome) OK() bool {
	return o.Disposition == DispositionSnatched || o.Disposition == DispositionAccepted
}

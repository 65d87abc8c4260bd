// Package types defines shared types for download clients.
package types

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
)

// Typed client errors. Transient errors (timeout, refused) are retryable;
// auth and config errors are surfaced to the operator instead.
var (
	ErrTimeout       = errors.New("download client timeout")
	ErrConnRefused   = errors.New("download client connection refused")
	ErrAuthFailed    = errors.New("download client authentication failed")
	ErrInvalidConfig = errors.New("invalid download client configuration")
	ErrUnsupported   = errors.New("operation not supported by this client")
	ErrNotFound      = errors.New("transfer not found")
)

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnRefused)
}

// ClassifyNetError maps a transport error onto the typed taxonomy, keeping
// the original error wrapped. Non-network errors pass through unchanged.
func ClassifyNetError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Join(ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.Join(ErrConnRefused, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTimeout, err)
	}
	return err
}

// Protocol represents the download protocol.
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
)

// ClientType represents the type of download client.
type ClientType string

const (
	ClientTypeSABnzbd      ClientType = "sabnzbd"
	ClientTypeNZBGet       ClientType = "nzbget"
	ClientTypeQBittorrent  ClientType = "qbittorrent"
	ClientTypeTransmission ClientType = "transmission"
)

// ProtocolForClient returns the protocol for a given client type.
func ProtocolForClient(clientType ClientType) Protocol {
	switch clientType {
	case ClientTypeQBittorrent, ClientTypeTransmission:
		return ProtocolTorrent
	case ClientTypeSABnzbd, ClientTypeNZBGet:
		return ProtocolUsenet
	default:
		return ""
	}
}

// Capabilities describes what a client implementation supports.
type Capabilities struct {
	Submit     bool
	Status     bool
	Cancel     bool
	Remove     bool
	Seeding    bool // reports seeding states after completion
	RemoveData bool // can delete downloaded data on remove
}

// Submission describes one payload handed to a client.
type Submission struct {
	Name        string // display name for the transfer
	URL         string // URL to nzb/torrent file, or magnet link
	FileContent []byte // raw nzb/torrent content, when already fetched
	Category    string // override the client's configured category
}

// State is a client-neutral transfer state.
type State string

const (
	StateQueued   State = "queued"
	StateActive   State = "active"
	StatePaused   State = "paused"
	StateSeeding  State = "seeding"
	StateComplete State = "complete"
	StateFailed   State = "failed"
	StateUnknown  State = "unknown"
)

// seedingStates are the back-end state names that mean the payload is fully
// downloaded but the swarm transfer is still open.
var seedingStates = map[string]struct{}{
	"uploading": {},
	"stalledup": {},
	"seeding":   {},
	"queuedup":  {},
}

// IsSeedingStateName reports whether a raw back-end state name means the
// transfer is seeding.
func IsSeedingStateName(raw string) bool {
	_, ok := seedingStates[strings.ToLower(raw)]
	return ok
}

// HasContent reports whether the payload is fully present on disk.
func (s State) HasContent() bool {
	return s == StateComplete || s == StateSeeding
}

// Transfer is a download as reported by a client.
type Transfer struct {
	ID       string
	Name     string
	State    State
	RawState string  // back-end state name, for diagnostics
	Progress float64 // 0-100
	Size     int64
	Path     string // content path on the client's filesystem
	Ratio    float64
	Message  string
}

// Client is the common surface every download client adapter implements.
// Implementations map their back-end's vocabulary onto Transfer/State and
// the typed error taxonomy; callers never see back-end specifics.
type Client interface {
	Name() string
	Type() ClientType
	Protocol() Protocol
	Capabilities() Capabilities

	// Test verifies connectivity and credentials without side effects.
	Test(ctx context.Context) error

	// Submit hands a payload to the client and returns its transfer ID.
	// Submitting a payload the back-end already has is success, returning
	// the existing ID, when the back-end deduplicates.
	Submit(ctx context.Context, sub Submission) (string, error)

	// Status reports one transfer, or ErrNotFound.
	Status(ctx context.Context, id string) (*Transfer, error)

	// List reports all transfers in the client's queue and history.
	List(ctx context.Context) ([]Transfer, error)

	// Cancel stops a transfer but keeps any downloaded data.
	Cancel(ctx context.Context, id string) error

	// Remove deletes a transfer, and its data when deleteFiles is set.
	Remove(ctx context.Context, id string, deleteFiles bool) error
}

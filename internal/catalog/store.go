package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup matches no item.
var ErrNotFound = errors.New("catalog: item not found")

// ErrStaleStatus is returned by UpsertStatus when the expected current status
// no longer matches, meaning an external collaborator changed the item
// mid-pipeline. Callers re-read and decide whether the transition still holds.
var ErrStaleStatus = errors.New("catalog: status changed externally")

// Store is the catalog access surface the pipeline consumes. Calls are atomic
// individually but not transactional across calls; callers must tolerate a
// concurrent external status change by re-checking before committing.
type Store interface {
	// FindWantedItems returns items of the given kind in the given status.
	// An empty kind matches all kinds.
	FindWantedItems(ctx context.Context, kind ItemKind, status Status) ([]*WantedItem, error)

	// MatchOne returns the single item matching the criteria, or ErrNotFound.
	MatchOne(ctx context.Context, criteria MatchCriteria) (*WantedItem, error)

	// UpsertStatus transitions an item to newStatus and updates the supplied
	// fields. When expect is non-empty the update only applies if the stored
	// status still equals expect; otherwise ErrStaleStatus is returned.
	UpsertStatus(ctx context.Context, itemID string, expect, newStatus Status, fields StatusFields) error
}

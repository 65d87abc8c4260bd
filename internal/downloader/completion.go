package downloader

import (
	"github.com/shelfstream/shelfstream/internal/downloader/types"
)

// ReadyForPostProcess reports whether a transfer's payload may be picked up
// by the post-process pass. Usenet transfers are ready once complete. Swarm
// transfers that are still seeding have their full payload on disk, but when
// seed-wait is configured they are held back until the client closes the
// transfer, so post-processing never races an open swarm session.
func ReadyForPostProcess(t *types.Transfer, seedWait bool) bool {
	switch t.State {
	case types.StateComplete:
		return true
	case types.StateSeeding:
		return !seedWait
	default:
		return false
	}
}

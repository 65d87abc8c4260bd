package decisioning

import (
	"github.com/shelfstream/shelfstream/internal/downloader"
	dltypes "github.com/shelfstream/shelfstream/internal/downloader/types"
	"github.com/shelfstream/shelfstream/internal/provider"
	"github.com/shelfstream/shelfstream/internal/search"
)

// SelectBest picks the candidate to submit from a scored, ranked list.
// Candidates MUST be pre-sorted best-first. A candidate is only selected
// when it is acceptable and a configured client can carry its protocol.
// Returns nil when nothing qualifies.
func SelectBest(candidates []search.Candidate, clients []downloader.Client) *search.Candidate {
	for i := range candidates {
		c := &candidates[i]
		if !c.Acceptable {
			// Ranked by score, so nothing further down qualifies either.
			return nil
		}
		if _, ok := clientFor(clients, c.Protocol); !ok {
			continue
		}
		return c
	}
	return nil
}

// ClientFor returns the download client that will carry a candidate.
func ClientFor(clients []downloader.Client, c *search.Candidate) (downloader.Client, bool) {
	return clientFor(clients, c.Protocol)
}

func clientFor(clients []downloader.Client, p provider.Protocol) (downloader.Client, bool) {
	switch p {
	case provider.ProtocolUsenet:
		return downloader.ClientForProtocol(clients, dltypes.ProtocolUsenet)
	case provider.ProtocolTorrent:
		return downloader.ClientForProtocol(clients, dltypes.ProtocolTorrent)
	default:
		return nil, false
	}
}

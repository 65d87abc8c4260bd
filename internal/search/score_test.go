package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shelfstream/shelfstream/internal/catalog"
	"github.com/shelfstream/shelfstream/internal/config"
)

func testMatching() config.MatchingConfig {
	return config.Default().Matching
}

func TestScore_TitleOnlyResult(t *testing.T) {
	scorer := NewScorer(testMatching())
	item := &catalog.WantedItem{Title: "Dune", Contributor: "Frank Herbert"}

	good := Candidate{Title: "Dune - Frank Herbert"}
	scorer.Score(item, &good)
	assert.True(t, good.Acceptable)
	assert.GreaterOrEqual(t, good.Score, 90)

	// A bare title overlap without the contributor tokens must not pass.
	bad := Candidate{Title: "Dune 2 - Movie Novelization"}
	scorer.Score(item, &bad)
	assert.False(t, bad.Acceptable)
	assert.Less(t, bad.Score, 80)
}

func TestScore_SeparateContributorField(t *testing.T) {
	scorer := NewScorer(testMatching())
	item := &catalog.WantedItem{Title: "Dune", Contributor: "Frank Herbert"}

	good := Candidate{Title: "Dune", Contributor: "Herbert, Frank"}
	scorer.Score(item, &good)
	assert.Equal(t, 100, good.TitleScore)
	assert.Equal(t, 100, good.ContributorScore)
	assert.True(t, good.Acceptable)

	wrongAuthor := Candidate{Title: "Dune", Contributor: "Brian Herbert"}
	scorer.Score(item, &wrongAuthor)
	assert.Equal(t, 100, wrongAuthor.TitleScore)
	assert.False(t, wrongAuthor.Acceptable)
}

func TestScore_NoContributorOnItem(t *testing.T) {
	scorer := NewScorer(testMatching())
	item := &catalog.WantedItem{Title: "Linux Format", Kind: catalog.KindMagazine}

	c := Candidate{Title: "Linux Format"}
	scorer.Score(item, &c)
	assert.True(t, c.Acceptable)
	assert.Equal(t, 100, c.Score)
}

func TestRank(t *testing.T) {
	now := time.Now()
	candidates := []Candidate{
		{GUID: "old-high", Score: 95, PublishDate: now.Add(-48 * time.Hour)},
		{GUID: "low", Score: 60, PublishDate: now},
		{GUID: "new-high", Score: 95, PublishDate: now},
		{GUID: "new-high-big", Score: 95, PublishDate: now, Size: 5 << 20},
	}
	candidates[2].Size = 1 << 20

	Rank(candidates)

	assert.Equal(t, "new-high", candidates[0].GUID) // smaller size wins the tie
	assert.Equal(t, "new-high-big", candidates[1].GUID)
	assert.Equal(t, "old-high", candidates[2].GUID)
	assert.Equal(t, "low", candidates[3].GUID)
}

func TestRank_ProviderPriorityTiebreak(t *testing.T) {
	now := time.Now()
	candidates := []Candidate{
		{GUID: "low-pri", Score: 90, PublishDate: now, Size: 100, Priority: 1},
		{GUID: "high-pri", Score: 90, PublishDate: now, Size: 100, Priority: 9},
	}
	Rank(candidates)
	assert.Equal(t, "high-pri", candidates[0].GUID)
}

func TestRank_UnknownSizeRanksLast(t *testing.T) {
	now := time.Now()
	candidates := []Candidate{
		{GUID: "unknown", Score: 90, PublishDate: now, Size: 0},
		{GUID: "known", Score: 90, PublishDate: now, Size: 10 << 20},
	}
	Rank(candidates)
	assert.Equal(t, "known", candidates[0].GUID)
}

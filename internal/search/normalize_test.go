package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shelfstream/shelfstream/internal/provider"
)

func TestNormalize_CleansTitle(t *testing.T) {
	c := Normalize(provider.Result{
		Title:       "Dune - Frank Herbert [eBook] (retail).epub",
		DownloadURL: "https://x.example.com/get/1.nzb",
	})
	assert.Equal(t, "Dune - Frank Herbert", c.Title)
	assert.Equal(t, "epub", c.Format)
}

func TestNormalize_SizeFallbacks(t *testing.T) {
	fromText := Normalize(provider.Result{Title: "x", SizeText: "1.4 GB"})
	assert.InDelta(t, 1.4e9, float64(fromText.Size), 1e8)

	fromTitle := Normalize(provider.Result{Title: "Some Mag 2024-01 150 MB pdf"})
	assert.InDelta(t, 150e6, float64(fromTitle.Size), 1e6)

	explicit := Normalize(provider.Result{Title: "x 99 GB", Size: 1024})
	assert.Equal(t, int64(1024), explicit.Size)
}

func TestNormalize_EpochSentinelForMissingDate(t *testing.T) {
	c := Normalize(provider.Result{Title: "x"})
	assert.Equal(t, time.Unix(0, 0).UTC(), c.PublishDate)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, "epub", detectFormat("Dune.epub", ""))
	assert.Equal(t, "pdf", detectFormat("Dune", "https://x/get/dune.pdf?key=1"))
	assert.Equal(t, "m4b", detectFormat("Dune Unabridged.m4b", ""))
	assert.Equal(t, "", detectFormat("Dune", "https://x/get/dune.nzb"))
}

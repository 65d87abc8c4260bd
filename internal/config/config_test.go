package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	// A named config file that does not exist is an error; an unnamed one
	// falls back to defaults.
	require.Error(t, err)

	cfg = Default()
	assert.Equal(t, 80, cfg.Matching.MatchRatio)
	assert.Equal(t, 90, cfg.Matching.DownloadRatio)
	assert.Equal(t, 90, cfg.Matching.TitleRatio)
	assert.Equal(t, 95, cfg.Matching.ContributorRatio)
	assert.Equal(t, 5, cfg.Matching.AmbiguityMargin)
	assert.Equal(t, "$Author/$Title", cfg.Naming.BookFolder)
	assert.Equal(t, "reject", cfg.PostProcess.SingleFilePolicy)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
database:
  path: /tmp/test.db
matching:
  match_ratio: 70
search:
  provider_timeout: 45s
providers:
  - name: indexer-a
    type: newznab
    url: https://indexer-a.example.com
    api_key: abc
    enabled: true
download_clients:
  - name: sab
    type: sabnzbd
    host: localhost
    port: 8080
    api_key: xyz
    enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 70, cfg.Matching.MatchRatio)
	assert.Equal(t, 90, cfg.Matching.DownloadRatio) // default preserved
	assert.Equal(t, 45*time.Second, cfg.Search.ProviderTimeout)
	require.Len(t, cfg.Providers, 1)
	assert.Equal(t, "newznab", cfg.Providers[0].Type)
	require.Len(t, cfg.Clients, 1)
	assert.Equal(t, "sabnzbd", cfg.Clients[0].Type)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Matching.MatchRatio = 150
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.PostProcess.SingleFilePolicy = "keep-all"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Search.MinSizeMB = 500
	cfg.Search.MaxSizeMB = 100
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Clients = []ClientConfig{
		{Name: "dup", Type: "sabnzbd", Host: "a", Port: 1},
		{Name: "dup", Type: "nzbget", Host: "b", Port: 2},
	}
	assert.Error(t, cfg.Validate())
}

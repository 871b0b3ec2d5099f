package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "facetidx-chunker", cfg.Chunker.Command)
	assert.Equal(t, 10000, cfg.Embedding.CacheSize)
	assert.Equal(t, 5, cfg.Search.MaxHits)
	assert.InDelta(t, 0.7, cfg.Search.MinScore, 1e-9)
	assert.Contains(t, cfg.Root, ".facetidx")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facetidx.yaml")
	content := `
root: /tmp/idx
chunker:
  command: my-chunker
  args: ["--json"]
search:
  max_hits: 12
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/idx", cfg.Root)
	assert.Equal(t, "my-chunker", cfg.Chunker.Command)
	assert.Equal(t, []string{"--json"}, cfg.Chunker.Args)
	assert.Equal(t, 12, cfg.Search.MaxHits)
	assert.InDelta(t, 0.7, cfg.Search.MinScore, 1e-9, "unset keys keep defaults")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicitly named config file must exist")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FACETIDX_ROOT", "/var/facetidx")
	t.Setenv("FACETIDX_SEARCH_MAX_HITS", "20")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/facetidx", cfg.Root)
	assert.Equal(t, 20, cfg.Search.MaxHits)
}

func TestDocumenterKeyFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.Documenter.APIKey)
}

func TestValidateWarnings(t *testing.T) {
	cfg := &Config{
		Root:    "/tmp/idx",
		Chunker: ChunkerConfig{Command: "chunker"},
		Search:  SearchConfig{MinScore: 0.7},
	}
	cfg.Documenter.APIKey = "sk-test"
	assert.Empty(t, cfg.Validate())

	cfg.Chunker.Command = ""
	cfg.Search.MinScore = 1.5
	warnings := cfg.Validate()
	assert.Len(t, warnings, 2)
}

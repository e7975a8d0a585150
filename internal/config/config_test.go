package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("CRATEPROV_AI_PROVIDER", "")
	t.Setenv("CRATEPROV_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAuthor, cfg.Crate.Author)
	assert.Equal(t, BackendJSON, cfg.Crate.Backend)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 2, cfg.Lineage.MaxDepth)
	assert.Empty(t, cfg.AI.APIKey)
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	yml := `
crate:
  root: ./study
  author: Ada Lovelace
  reference_crates: [../raw]
  backend: sqlite
capture:
  excluded_patterns: [".venv"]
ai:
  provider: openai
  timeout: 5s
lineage:
  max_depth: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("CRATEPROV_AI_PROVIDER", "")
	t.Setenv("CRATEPROV_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "./study", cfg.Crate.Root)
	assert.Equal(t, "Ada Lovelace", cfg.Crate.Author)
	assert.Equal(t, []string{"../raw"}, cfg.Crate.ReferenceCrates)
	assert.Equal(t, BackendSQLite, cfg.Crate.Backend)
	assert.Equal(t, []string{".venv"}, cfg.Capture.ExcludedPatterns)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 4, cfg.Lineage.MaxDepth)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, DefaultKeywords, cfg.Crate.Keywords)

	t.Setenv("CRATEPROV_AI_PROVIDER", "ollama")
	t.Setenv("CRATEPROV_API_KEY", "override")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "override", cfg.AI.APIKey)
}

func TestLoadConfig_ZeroDepthIsKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte("lineage:\n  max_depth: 0\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Lineage.MaxDepth)

	require.NoError(t, os.WriteFile(path, []byte("lineage:\n  max_depth: -3\n"), 0o644))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Lineage.MaxDepth)
}

package config

// Test Plan:
// - no config file present: Load returns spec defaults
// - a config file overrides a subset of fields, leaving the rest default
// - an explicit yaml null on force_delimiter_for_languages resolves to
//   Cleared, not Absent
// - an environment variable overrides both defaults and the file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, Default().Server, cfg.Server)
	assert.Equal(t, StateAbsent, cfg.Chunker.ForceDelimiterForLanguages.State())
	assert.Equal(t, StateAbsent, cfg.Failover.BackupProfile.State())
}

func TestLoad_FileOverridesSubsetOfFields(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, `
server:
  port: 9000
chunker:
  semantic_importance_threshold: 0.5
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Chunker.SemanticImportanceThreshold)
	// untouched fields keep their defaults
	assert.Equal(t, Default().Server.ManagementPort, cfg.Server.ManagementPort)
	assert.True(t, cfg.Chunker.PreferSemantic)
}

func TestLoad_ExplicitNullResolvesToCleared(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, `
chunker:
  force_delimiter_for_languages: null
failover:
  backup_profile: null
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	assert.True(t, cfg.Chunker.ForceDelimiterForLanguages.IsCleared())
	assert.True(t, cfg.Failover.BackupProfile.IsCleared())
}

func TestLoad_FileSettingAnActualValueResolvesToExplicit(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, `
chunker:
  force_delimiter_for_languages:
    - cobol
failover:
  backup_profile: minimal
`)

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)

	langs, ok := cfg.Chunker.ForceDelimiterForLanguages.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"cobol"}, langs)

	profile, ok := cfg.Failover.BackupProfile.Get()
	require.True(t, ok)
	assert.Equal(t, "minimal", profile)
}

func TestLoad_EnvironmentVariableOverridesFileAndDefaults(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, "server:\n  port: 9000\n")

	t.Setenv("CODEWEAVER_SERVER_PORT", "9500")

	cfg, err := NewLoader(root).Load()
	require.NoError(t, err)
	assert.Equal(t, 9500, cfg.Server.Port)
}

func writeConfigFile(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, ".codeweaver")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o644))
}

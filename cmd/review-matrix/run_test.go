// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/review-matrix/internal/checkpoint"
	"github.com/pdiddy/review-matrix/internal/config"
	"github.com/pdiddy/review-matrix/internal/secrets"
)

func setRunConfig(t *testing.T, dataDir string) {
	t.Helper()
	t.Cleanup(viper.Reset)
	t.Cleanup(func() { loadedSecrets = nil })

	v := viper.GetViper()
	config.SetDefaults(v)
	v.Set("data_dir", dataDir)
	v.Set("search_criteria.keywords", []string{"graph"})
	loadedSecrets = secrets.Set{}
}

func TestPrepareRunMissingKeyCreatesNothing(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	setRunConfig(t, dataDir)
	t.Setenv(config.GoogleAPIKeyEnv, "")

	_, _, err := prepareRun("")
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
	assert.NoDirExists(t, dataDir)
}

func TestPrepareRunCreatesRunWithSnapshot(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	setRunConfig(t, dataDir)
	t.Setenv(config.GoogleAPIKeyEnv, "g-key")

	cfg, run, err := prepareRun("")
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
	assert.Equal(t, dataDir, filepath.Dir(run.Root))
	assert.FileExists(t, run.Path(checkpoint.ConfigFile))

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

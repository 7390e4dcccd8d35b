// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManagedConfig() Config {
	cfg := DefaultConfig()
	cfg.ReposBaseDir = "/repos"
	cfg.QdrantURL = "http://localhost:6334"
	cfg.EmbeddingBaseURL = "http://localhost:8080/v1"
	cfg.EmbeddingAPIKey = "test-key"
	return cfg
}

func TestConfig_Validate_OK(t *testing.T) {
	cfg := validManagedConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate_MissingReposBaseDir(t *testing.T) {
	cfg := validManagedConfig()
	cfg.ReposBaseDir = ""
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_ManagedRequiresQdrantURL(t *testing.T) {
	cfg := validManagedConfig()
	cfg.QdrantURL = ""
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_LocalRequiresSurrealFields(t *testing.T) {
	cfg := validManagedConfig()
	cfg.VectorBackend = BackendLocal
	assert.Error(t, cfg.Validate())

	cfg.SurrealURL = "http://localhost:8000"
	cfg.SurrealNS = "ns"
	cfg.SurrealDB = "db"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_UnknownBackend(t *testing.T) {
	cfg := validManagedConfig()
	cfg.VectorBackend = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsNonPositiveNumbers(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.EmbeddingDim = 0 },
		func(c *Config) { c.BatchSize = 0 },
		func(c *Config) { c.RateLimit = 0 },
		func(c *Config) { c.MaxFileSizeBytes = 0 },
	}
	for _, mutate := range cases {
		cfg := validManagedConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate())
	}
}

func TestConfig_CollectionFor(t *testing.T) {
	cfg := DefaultConfig()
	name, ok := cfg.CollectionFor("markdown")
	require.True(t, ok)
	assert.Equal(t, "docs", name)

	_, ok = cfg.CollectionFor("cobol")
	assert.False(t, ok)
}

func TestConfig_CheckpointFrequencyFor_DefaultsWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	freq := cfg.CheckpointFrequencyFor("typescript")
	assert.Equal(t, cfg.DefaultCheckpointFrequency, freq)

	cfg.CheckpointFrequencies = map[string]CheckpointFrequency{
		"typescript": {EveryNFiles: 5},
	}
	freq = cfg.CheckpointFrequencyFor("typescript")
	assert.Equal(t, 5, freq.EveryNFiles)
}

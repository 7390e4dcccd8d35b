// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"fmt"
	"time"
)

// VectorBackendKind selects which vector backend implementation a Config targets.
type VectorBackendKind string

const (
	BackendManaged VectorBackendKind = "managed"
	BackendLocal   VectorBackendKind = "local"
)

// RetryPolicy controls exponential backoff for the embedding client.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	JitterFraction float64
}

// CheckpointFrequency controls how often the checkpoint is written for a
// given language: every N files, or on every batch.
type CheckpointFrequency struct {
	EveryNFiles      int
	CheckpointBatches bool
}

// Config is the single immutable value handed to every component. It is
// validated at construction; missing required credentials fail fast with a
// precise error naming the field.
type Config struct {
	ReposBaseDir string

	VectorBackend   VectorBackendKind
	QdrantURL       string
	QdrantAPIKey    string
	SurrealURL      string
	SurrealNS       string
	SurrealDB       string
	SurrealUser     string
	SurrealPass     string

	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string
	EmbeddingDim     int

	BatchSize        int
	RateLimit        int // max in-flight embedding calls
	RequestTimeout   time.Duration
	Retry            RetryPolicy

	MaxFileSizeBytes int64
	SkipDirs         map[string]bool

	// LanguageCollections maps a language tag to a vector collection name.
	LanguageCollections map[string]string
	DomainPatterns      []DomainPattern

	// CheckpointFrequencies maps a language tag to its checkpoint cadence.
	// Languages absent from the map use DefaultCheckpointFrequency.
	CheckpointFrequencies   map[string]CheckpointFrequency
	DefaultCheckpointFrequency CheckpointFrequency

	CheckpointPath string
}

// DefaultConfig returns a Config with the documented defaults. Callers still
// must supply ReposBaseDir and backend/embedding credentials before Validate
// will pass.
func DefaultConfig() Config {
	return Config{
		VectorBackend:  BackendManaged,
		EmbeddingModel: "text-embedding-3-large",
		EmbeddingDim:   4096,

		BatchSize:      32,
		RateLimit:      4,
		RequestTimeout: 120 * time.Second,
		Retry: RetryPolicy{
			MaxRetries:     3,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.2,
		},

		MaxFileSizeBytes: 500_000,
		SkipDirs: map[string]bool{
			".git": true, "node_modules": true, "vendor": true,
			"dist": true, "build": true, "bin": true, "out": true,
			".idea": true, ".vscode": true, ".next": true, ".nuxt": true,
			".cache": true, "coverage": true, "tmp": true, ".tmp": true,
		},

		LanguageCollections: map[string]string{
			"systemslang": "code_systemslang",
			"typescript":  "code_typescript",
			"javascript":  "code_javascript",
			"solidity":    "code_solidity",
			"markdown":    "docs",
			"yaml":        "config",
			"hcl":         "config",
		},
		DomainPatterns: DefaultDomainPatterns(),

		DefaultCheckpointFrequency: CheckpointFrequency{EveryNFiles: 25},
		CheckpointPath:             "./ingestion_checkpoint.json",
	}
}

// Validate fails fast with a precise error naming the first missing
// required field: configuration errors are fatal at startup, not discovered
// mid-run.
func (c *Config) Validate() error {
	if c.ReposBaseDir == "" {
		return fmt.Errorf("config: repos_base_dir is required")
	}
	switch c.VectorBackend {
	case BackendManaged:
		if c.QdrantURL == "" {
			return fmt.Errorf("config: QDRANT_URL is required for managed vector backend")
		}
	case BackendLocal:
		if c.SurrealURL == "" {
			return fmt.Errorf("config: SURREALDB_URL is required for local vector backend")
		}
		if c.SurrealNS == "" {
			return fmt.Errorf("config: SURREALDB_NS is required for local vector backend")
		}
		if c.SurrealDB == "" {
			return fmt.Errorf("config: SURREALDB_DB is required for local vector backend")
		}
	default:
		return fmt.Errorf("config: unknown vector backend %q (want %q or %q)", c.VectorBackend, BackendManaged, BackendLocal)
	}
	if c.EmbeddingBaseURL == "" {
		return fmt.Errorf("config: embedding base url is required")
	}
	if c.EmbeddingAPIKey == "" {
		return fmt.Errorf("config: embedding api key is required")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive, got %d", c.EmbeddingDim)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch size must be positive, got %d", c.BatchSize)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("config: rate limit must be positive, got %d", c.RateLimit)
	}
	if c.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("config: max file size must be positive, got %d", c.MaxFileSizeBytes)
	}
	if len(c.LanguageCollections) == 0 {
		return fmt.Errorf("config: language_collections map must not be empty")
	}
	return nil
}

// CollectionFor resolves the vector collection name for a language tag. The
// second return is false when the language has no configured mapping, which
// is itself a configuration error the caller should surface.
func (c *Config) CollectionFor(language string) (string, bool) {
	name, ok := c.LanguageCollections[language]
	return name, ok
}

// CheckpointFrequencyFor resolves the per-language checkpoint cadence.
func (c *Config) CheckpointFrequencyFor(language string) CheckpointFrequency {
	if f, ok := c.CheckpointFrequencies[language]; ok {
		return f
	}
	return c.DefaultCheckpointFrequency
}

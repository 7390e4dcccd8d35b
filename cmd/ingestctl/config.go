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

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

const (
	defaultConfigDir  = ".ingestctl"
	defaultConfigFile = "project.yaml"
)

// FileConfig is the on-disk shape of .ingestctl/project.yaml. It mirrors
// ingest.Config's fields but in YAML-friendly form; secrets may be left
// blank here and supplied via environment variables instead.
type FileConfig struct {
	ReposBaseDir string `yaml:"repos_base_dir"`

	VectorBackend string `yaml:"vector_backend"` // managed|local
	Qdrant        struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key,omitempty"`
	} `yaml:"qdrant"`
	SurrealDB struct {
		URL  string `yaml:"url"`
		NS   string `yaml:"ns"`
		DB   string `yaml:"db"`
		User string `yaml:"user,omitempty"`
		Pass string `yaml:"pass,omitempty"`
	} `yaml:"surrealdb"`

	Embedding struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key,omitempty"`
		Model   string `yaml:"model"`
		Dim     int    `yaml:"dimensions"`
	} `yaml:"embedding"`

	BatchSize        int   `yaml:"batch_size,omitempty"`
	RateLimit        int   `yaml:"rate_limit,omitempty"`
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes,omitempty"`

	LanguageCollections map[string]string `yaml:"language_collections,omitempty"`
	CheckpointPath      string            `yaml:"checkpoint_path,omitempty"`
}

// LoadFileConfig reads and decodes path, defaulting to
// ./.ingestctl/project.yaml when path is empty.
func LoadFileConfig(path string) (*FileConfig, error) {
	if path == "" {
		path = defaultConfigDir + string(os.PathSeparator) + defaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &fc, nil
}

// ToIngestConfig merges file-config values onto ingest.DefaultConfig(),
// then overlays environment variables for credentials, matching the
// documented QDRANT_URL/QDRANT_API_KEY/SURREALDB_*/OPENAI_API_KEY precedence:
// env wins over the file, the file wins over defaults.
func (fc *FileConfig) ToIngestConfig() ingest.Config {
	cfg := ingest.DefaultConfig()

	if fc.ReposBaseDir != "" {
		cfg.ReposBaseDir = fc.ReposBaseDir
	}
	if fc.VectorBackend != "" {
		cfg.VectorBackend = ingest.VectorBackendKind(fc.VectorBackend)
	}
	cfg.QdrantURL = fc.Qdrant.URL
	cfg.QdrantAPIKey = fc.Qdrant.APIKey
	cfg.SurrealURL = fc.SurrealDB.URL
	cfg.SurrealNS = fc.SurrealDB.NS
	cfg.SurrealDB = fc.SurrealDB.DB
	cfg.SurrealUser = fc.SurrealDB.User
	cfg.SurrealPass = fc.SurrealDB.Pass

	cfg.EmbeddingBaseURL = fc.Embedding.BaseURL
	cfg.EmbeddingAPIKey = fc.Embedding.APIKey
	if fc.Embedding.Model != "" {
		cfg.EmbeddingModel = fc.Embedding.Model
	}
	if fc.Embedding.Dim > 0 {
		cfg.EmbeddingDim = fc.Embedding.Dim
	}

	if fc.BatchSize > 0 {
		cfg.BatchSize = fc.BatchSize
	}
	if fc.RateLimit > 0 {
		cfg.RateLimit = fc.RateLimit
	}
	if fc.MaxFileSizeBytes > 0 {
		cfg.MaxFileSizeBytes = fc.MaxFileSizeBytes
	}
	if len(fc.LanguageCollections) > 0 {
		cfg.LanguageCollections = fc.LanguageCollections
	}
	if fc.CheckpointPath != "" {
		cfg.CheckpointPath = fc.CheckpointPath
	}

	applyEnvOverrides(&cfg)
	return cfg
}

func applyEnvOverrides(cfg *ingest.Config) {
	if v := os.Getenv("INGESTCTL_REPOS_BASE_DIR"); v != "" {
		cfg.ReposBaseDir = v
	}
	if v := os.Getenv("VECTOR_BACKEND"); v != "" {
		cfg.VectorBackend = ingest.VectorBackendKind(v)
	}
	if v := os.Getenv("QDRANT_URL"); v != "" {
		cfg.QdrantURL = v
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.QdrantAPIKey = v
	}
	if v := os.Getenv("SURREALDB_URL"); v != "" {
		cfg.SurrealURL = v
	}
	if v := os.Getenv("SURREALDB_NS"); v != "" {
		cfg.SurrealNS = v
	}
	if v := os.Getenv("SURREALDB_DB"); v != "" {
		cfg.SurrealDB = v
	}
	if v := os.Getenv("SURREALDB_USER"); v != "" {
		cfg.SurrealUser = v
	}
	if v := os.Getenv("SURREALDB_PASS"); v != "" {
		cfg.SurrealPass = v
	}
	if v := os.Getenv("EMBEDDING_BASE_URL"); v != "" {
		cfg.EmbeddingBaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.EmbeddingAPIKey = v
	}
	if v := os.Getenv("EMBEDDING_REQUEST_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			cfg.RequestTimeout = d
		}
	}
}

// WriteDefaultFileConfig writes a starter .ingestctl/project.yaml to path,
// used by the "init" subcommand.
func WriteDefaultFileConfig(path string) error {
	if path == "" {
		path = defaultConfigDir + string(os.PathSeparator) + defaultConfigFile
	}
	dir := defaultConfigDir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}

	fc := FileConfig{
		ReposBaseDir:  "./repos",
		VectorBackend: "managed",
	}
	fc.Qdrant.URL = "http://localhost:6334"
	fc.Embedding.BaseURL = "http://localhost:8080/v1"
	fc.Embedding.Model = "text-embedding-3-large"
	fc.Embedding.Dim = 4096

	data, err := yaml.Marshal(fc)
	if err != nil {
		return fmt.Errorf("config: encode default: %w", err)
	}
	return os.WriteFile(path, data, 0o640)
}

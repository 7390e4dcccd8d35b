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

// Package storage turns embedded chunks into vector points and drives their
// collection-grouped upsert through a vectorstore.Backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/kraklabs/ingestctl/pkg/ingest"
	"github.com/kraklabs/ingestctl/pkg/ingest/vectorstore"
)

// Manager validates embedded chunks, builds their vector points, groups them
// by destination collection, and upserts each group.
type Manager struct {
	backend vectorstore.Backend
	cfg     ingest.Config
	logger  *slog.Logger
}

// NewManager constructs a Manager bound to a backend and the language-to-
// collection mapping in cfg.
func NewManager(backend vectorstore.Backend, cfg ingest.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: backend, cfg: cfg, logger: logger}
}

// Embedded pairs one chunk with its vector, as produced by the batch
// processor after a successful embedding call.
type Embedded struct {
	Chunk  ingest.Chunk
	Vector []float32
}

// Store validates, groups, and upserts a set of embedded chunks. It returns
// the number of points actually upserted (validation failures are dropped,
// not fatal) and the first upsert error encountered, if any.
func (m *Manager) Store(ctx context.Context, items []Embedded) (int, error) {
	byCollection := make(map[string][]vectorstore.Point)

	for _, item := range items {
		point, err := m.buildPoint(item)
		if err != nil {
			m.logger.Warn("storage.drop_point", "file_path", item.Chunk.FilePath, "item_name", item.Chunk.ItemName, "err", err)
			continue
		}
		collection, ok := m.cfg.CollectionFor(item.Chunk.Language)
		if !ok {
			m.logger.Warn("storage.drop_point", "file_path", item.Chunk.FilePath, "err", fmt.Sprintf("no collection configured for language %q", item.Chunk.Language))
			continue
		}
		byCollection[collection] = append(byCollection[collection], point)
	}

	stored := 0
	for collection, points := range byCollection {
		if err := m.backend.EnsureCollection(ctx, collection, m.cfg.EmbeddingDim); err != nil {
			return stored, fmt.Errorf("storage: ensure collection %s: %w", collection, err)
		}
		if err := m.upsertWithRetry(ctx, collection, points); err != nil {
			return stored, fmt.Errorf("storage: upsert into %s: %w", collection, err)
		}
		stored += len(points)
	}
	return stored, nil
}

// upsertWithRetry retries exactly once on failure before surfacing the
// error, matching the "vector store upsert failure: retry once, then fail
// the batch" rule.
func (m *Manager) upsertWithRetry(ctx context.Context, collection string, points []vectorstore.Point) error {
	err := m.backend.Upsert(ctx, collection, points)
	if err == nil {
		return nil
	}
	m.logger.Warn("storage.upsert_retry", "collection", collection, "err", err)
	return m.backend.Upsert(ctx, collection, points)
}

// buildPoint converts one embedded chunk into a vector point, validating
// the vector's dimension and numeric well-formedness. The point id is
// derived deterministically from the chunk hash so re-ingesting identical
// content produces the identical id, making storage idempotent.
func (m *Manager) buildPoint(item Embedded) (vectorstore.Point, error) {
	chunk := item.Chunk
	if err := chunk.Validate(); err != nil {
		return vectorstore.Point{}, fmt.Errorf("invalid chunk: %w", err)
	}
	if len(item.Vector) != m.cfg.EmbeddingDim {
		return vectorstore.Point{}, fmt.Errorf("vector dimension %d != configured %d", len(item.Vector), m.cfg.EmbeddingDim)
	}
	for _, v := range item.Vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return vectorstore.Point{}, fmt.Errorf("vector contains NaN/Inf")
		}
	}

	id := chunk.ChunkHash()
	payload := map[string]any{
		"content":          chunk.Content,
		"language":         chunk.Language,
		"item_type":        chunk.ItemType,
		"item_name":        chunk.ItemName,
		"file_path":        chunk.FilePath,
		"start_line":       chunk.StartLine,
		"end_line":         chunk.EndLine,
		"repo_id":          chunk.RepoID,
		"repo_component":   chunk.RepoComponent,
		"business_domain":  chunk.BusinessDomain,
		"complexity_score": chunk.ComplexityScore,
		"chunk_hash":       id,
	}
	for k, v := range chunk.Metadata {
		payload["meta_"+k] = v
	}

	return vectorstore.Point{ID: id, Vector: item.Vector, Payload: payload}, nil
}

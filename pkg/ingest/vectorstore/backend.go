// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vectorstore defines the pluggable vector backend capability and
// its two concrete implementations: a managed remote store (Qdrant) and a
// local store (SurrealDB).
package vectorstore

import "context"

// Point is one vector plus its payload, ready for upsert. ID is a
// deterministic string derived from the owning chunk's hash so re-ingesting
// unchanged content is a no-op replace rather than a duplicate insert.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is one scored hit from a similarity query.
type SearchResult struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// CollectionStats summarizes a collection's current size.
type CollectionStats struct {
	Name        string
	PointCount  uint64
	VectorSize  uint64
}

// Backend is the capability every vector store implementation satisfies.
// Component code (storage manager, CLI) depends only on this interface, not
// on Qdrant or SurrealDB directly.
type Backend interface {
	// EnsureCollection creates the named collection with the given vector
	// dimension if it does not already exist. Idempotent.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// Upsert inserts-or-replaces a batch of points in one call. All points
	// in the batch belong to the same collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search runs a k-nearest-neighbor query, optionally restricted by an
	// equality filter on payload fields.
	Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]SearchResult, error)

	// CollectionStats reports the current point count and vector size.
	CollectionStats(ctx context.Context, collection string) (CollectionStats, error)

	// ListCollections enumerates every collection known to the backend.
	ListCollections(ctx context.Context) ([]string, error)

	// Close releases any held connection resources.
	Close() error
}

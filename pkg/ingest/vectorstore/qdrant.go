// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantBackend is the managed remote Backend, grounded on
// intelligencedev-manifold's qdrant_vector.go: same DSN-to-gRPC-config
// translation, same distance-metric switch, and the same deterministic
// UUID-from-id convention (Qdrant point ids must be a UUID or a positive
// integer, so a non-UUID chunk hash is rehashed through uuid.NewSHA1).
type QdrantBackend struct {
	client *qdrant.Client
	metric string
}

// NewQdrantBackend dials a Qdrant instance over gRPC. dsn is of the form
// "http://host:6334" or "https://host:6334?api_key=...".
func NewQdrantBackend(dsn, apiKey, metric string) (*QdrantBackend, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/qdrant: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := parsed.Port()
	if portStr == "" {
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/qdrant: invalid port in dsn: %w", err)
	}

	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	} else if k := parsed.Query().Get("api_key"); k != "" {
		cfg.APIKey = k
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/qdrant: create client: %w", err)
	}

	if metric == "" {
		metric = "cosine"
	}
	return &QdrantBackend{client: client, metric: metric}, nil
}

func (q *QdrantBackend) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("vectorstore/qdrant: check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if dimension <= 0 {
		return fmt.Errorf("vectorstore/qdrant: dimension must be positive, got %d", dimension)
	}

	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: distance,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore/qdrant: create collection %s: %w", collection, err)
	}
	return nil
}

func (q *QdrantBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	pbPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		pointUUID := pointUUIDFor(p.ID)
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		if pointUUID != p.ID {
			payload["_original_id"] = p.ID
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		pbPoints = append(pbPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         pbPoints,
	})
	if err != nil {
		return fmt.Errorf("vectorstore/qdrant: upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

func (q *QdrantBackend) Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]SearchResult, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)

	var queryFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for field, value := range filter {
			must = append(must, qdrant.NewMatch(field, value))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}

	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore/qdrant: search %s: %w", collection, err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		id := hit.Id.GetUuid()
		payload := make(map[string]any)
		for k, v := range hit.Payload {
			if k == "_original_id" {
				id = v.GetStringValue()
				continue
			}
			payload[k] = v.GetStringValue()
		}
		results = append(results, SearchResult{ID: id, Score: float64(hit.Score), Payload: payload})
	}
	return results, nil
}

func (q *QdrantBackend) CollectionStats(ctx context.Context, collection string) (CollectionStats, error) {
	info, err := q.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return CollectionStats{}, fmt.Errorf("vectorstore/qdrant: collection info %s: %w", collection, err)
	}
	stats := CollectionStats{Name: collection}
	if info.GetPointsCount() != 0 {
		stats.PointCount = info.GetPointsCount()
	}
	if cfg := info.GetConfig(); cfg != nil {
		if params := cfg.GetParams(); params != nil {
			if vp := params.GetVectorsConfig().GetParams(); vp != nil {
				stats.VectorSize = vp.GetSize()
			}
		}
	}
	return stats, nil
}

func (q *QdrantBackend) ListCollections(ctx context.Context) ([]string, error) {
	names, err := q.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("vectorstore/qdrant: list collections: %w", err)
	}
	return names, nil
}

func (q *QdrantBackend) Close() error {
	return q.client.Close()
}

// pointUUIDFor maps an arbitrary chunk-hash id onto a Qdrant-legal point id:
// Qdrant only accepts UUIDs or unsigned integers, so a non-UUID id is
// deterministically rehashed through uuid.NewSHA1, same as the id already
// being a valid UUID would pass through unchanged.
func pointUUIDFor(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

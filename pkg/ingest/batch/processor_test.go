// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ingestctl/pkg/ingest"
	"github.com/kraklabs/ingestctl/pkg/ingest/storage"
	"github.com/kraklabs/ingestctl/pkg/ingest/vectorstore"
)

type fakeEmbedder struct {
	mu        sync.Mutex
	failBatch map[int]error // batch call number (0-based) -> error to return
	call      int
	dim       int
}

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	n := f.call
	f.call++
	f.mu.Unlock()

	if err, ok := f.failBatch[n]; ok {
		return nil, err
	}
	vectors := make([][]float32, len(inputs))
	for i := range inputs {
		vectors[i] = make([]float32, f.dim)
	}
	return vectors, nil
}

type fakeVectorBackend struct {
	mu       sync.Mutex
	upserted int
}

func (f *fakeVectorBackend) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	return nil
}
func (f *fakeVectorBackend) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted += len(points)
	return nil
}
func (f *fakeVectorBackend) Search(ctx context.Context, collection string, vector []float32, k int, filter map[string]string) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (f *fakeVectorBackend) CollectionStats(ctx context.Context, collection string) (vectorstore.CollectionStats, error) {
	return vectorstore.CollectionStats{}, nil
}
func (f *fakeVectorBackend) ListCollections(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeVectorBackend) Close() error                                          { return nil }

func testBatchConfig() ingest.Config {
	cfg := ingest.DefaultConfig()
	cfg.EmbeddingDim = 2
	cfg.BatchSize = 2
	cfg.RateLimit = 3
	cfg.LanguageCollections = map[string]string{"rust": "chunks_rust"}
	return cfg
}

func makeChunks(n int) []ingest.Chunk {
	chunks := make([]ingest.Chunk, n)
	for i := range chunks {
		chunks[i] = ingest.Chunk{
			Content:   "fn f() {}",
			Language:  "rust",
			ItemType:  "function",
			ItemName:  "f",
			FilePath:  "src/lib.rs",
			StartLine: i + 1,
			EndLine:   i + 1,
			RepoID:    "repo-a",
		}
	}
	return chunks
}

func TestProcessor_Run_AllBatchesSucceed(t *testing.T) {
	cfg := testBatchConfig()
	embedder := &fakeEmbedder{dim: cfg.EmbeddingDim, failBatch: map[int]error{}}
	backend := &fakeVectorBackend{}
	store := storage.NewManager(backend, cfg, nil)
	p := NewProcessor(cfg, embedder, store, nil)

	result, err := p.Run(context.Background(), makeChunks(6), nil)
	require.NoError(t, err)
	assert.Equal(t, 6, result.ChunksProcessed)
	assert.Equal(t, 6, result.ChunksStored)
	assert.Equal(t, 0, result.BatchesFailed)
	assert.Equal(t, 6, backend.upserted)
}

func TestProcessor_Run_FailedBatchContributesZeroStoredChunks(t *testing.T) {
	cfg := testBatchConfig()
	embedder := &fakeEmbedder{dim: cfg.EmbeddingDim, failBatch: map[int]error{0: errors.New("embedding provider down")}}
	backend := &fakeVectorBackend{}
	store := storage.NewManager(backend, cfg, nil)
	p := NewProcessor(cfg, embedder, store, nil)

	result, err := p.Run(context.Background(), makeChunks(2), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunksProcessed)
	assert.Equal(t, 0, result.ChunksStored)
	assert.Equal(t, 1, result.BatchesFailed)
	assert.Equal(t, 0, backend.upserted)
}

func TestProcessor_Run_LengthMismatchFailsWholeBatch(t *testing.T) {
	cfg := testBatchConfig()
	cfg.BatchSize = 2
	embedder := &mismatchEmbedder{dim: cfg.EmbeddingDim}
	backend := &fakeVectorBackend{}
	store := storage.NewManager(backend, cfg, nil)
	p := NewProcessor(cfg, embedder, store, nil)

	result, err := p.Run(context.Background(), makeChunks(2), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunksStored)
	assert.Equal(t, 1, result.BatchesFailed)
}

type mismatchEmbedder struct{ dim int }

func (m *mismatchEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	// Always returns one fewer vector than requested.
	vectors := make([][]float32, len(inputs)-1)
	for i := range vectors {
		vectors[i] = make([]float32, m.dim)
	}
	return vectors, nil
}

func TestProcessor_Run_InvokesCheckpointCallbackPerBatch(t *testing.T) {
	cfg := testBatchConfig()
	embedder := &fakeEmbedder{dim: cfg.EmbeddingDim, failBatch: map[int]error{}}
	backend := &fakeVectorBackend{}
	store := storage.NewManager(backend, cfg, nil)
	p := NewProcessor(cfg, embedder, store, nil)

	var mu sync.Mutex
	var calls []int
	var lastFiles []string
	checkpointFn := func(n int, lastFile string) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, n)
		lastFiles = append(lastFiles, lastFile)
	}

	_, err := p.Run(context.Background(), makeChunks(4), checkpointFn)
	require.NoError(t, err)
	assert.Len(t, calls, 2) // two batches of size 2
	assert.Equal(t, []string{"src/lib.rs", "src/lib.rs"}, lastFiles)
}

func TestProcessor_Run_CheckpointCallbackFiresInBatchSubmissionOrder(t *testing.T) {
	cfg := testBatchConfig()
	cfg.BatchSize = 1
	cfg.RateLimit = 4
	embedder := &fakeEmbedder{dim: cfg.EmbeddingDim, failBatch: map[int]error{}}
	backend := &fakeVectorBackend{}
	store := storage.NewManager(backend, cfg, nil)
	p := NewProcessor(cfg, embedder, store, nil)

	chunks := make([]ingest.Chunk, 8)
	for i := range chunks {
		chunks[i] = ingest.Chunk{
			Content:   "fn f() {}",
			Language:  "rust",
			ItemType:  "function",
			ItemName:  "f",
			FilePath:  fmt.Sprintf("src/file_%02d.rs", i),
			StartLine: 1,
			EndLine:   1,
			RepoID:    "repo-a",
		}
	}

	var mu sync.Mutex
	var lastFiles []string
	checkpointFn := func(n int, lastFile string) {
		mu.Lock()
		defer mu.Unlock()
		lastFiles = append(lastFiles, lastFile)
	}

	_, err := p.Run(context.Background(), chunks, checkpointFn)
	require.NoError(t, err)
	want := make([]string, 8)
	for i := range want {
		want[i] = fmt.Sprintf("src/file_%02d.rs", i)
	}
	assert.Equal(t, want, lastFiles, "checkpoint callback must observe batches in submission order even though workers finish out of order")
}

func TestProcessor_Run_CheckpointCallbackStopsAfterAFailedBatch(t *testing.T) {
	cfg := testBatchConfig()
	cfg.BatchSize = 1
	cfg.RateLimit = 1
	embedder := &fakeEmbedder{dim: cfg.EmbeddingDim, failBatch: map[int]error{1: errors.New("embedding provider down")}}
	backend := &fakeVectorBackend{}
	store := storage.NewManager(backend, cfg, nil)
	p := NewProcessor(cfg, embedder, store, nil)

	chunks := make([]ingest.Chunk, 4)
	for i := range chunks {
		chunks[i] = ingest.Chunk{
			Content:   "fn f() {}",
			Language:  "rust",
			ItemType:  "function",
			ItemName:  "f",
			FilePath:  fmt.Sprintf("src/file_%02d.rs", i),
			StartLine: 1,
			EndLine:   1,
			RepoID:    "repo-a",
		}
	}

	var mu sync.Mutex
	var lastFiles []string
	checkpointFn := func(n int, lastFile string) {
		mu.Lock()
		defer mu.Unlock()
		lastFiles = append(lastFiles, lastFile)
	}

	result, err := p.Run(context.Background(), chunks, checkpointFn)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BatchesFailed)
	assert.Equal(t, []string{"src/file_00.rs"}, lastFiles, "checkpoint must not advance past the batch that failed, even though later batches succeed")
}

func TestProcessor_Run_EmptyChunkSliceYieldsEmptyResult(t *testing.T) {
	cfg := testBatchConfig()
	embedder := &fakeEmbedder{dim: cfg.EmbeddingDim}
	backend := &fakeVectorBackend{}
	store := storage.NewManager(backend, cfg, nil)
	p := NewProcessor(cfg, embedder, store, nil)

	result, err := p.Run(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

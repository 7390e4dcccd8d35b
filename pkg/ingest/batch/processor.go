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

// Package batch turns a chunk stream into embedded, stored points via a
// bounded worker pool, enforcing that a batch whose embedding call fails
// contributes zero stored chunks.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kraklabs/ingestctl/pkg/ingest"
	"github.com/kraklabs/ingestctl/pkg/ingest/storage"
)

// Embedder is the capability the processor needs from the embedding client.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

var (
	chunksEmbedded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingestctl_chunks_embedded_total",
		Help: "Chunks successfully embedded and stored.",
	})
	batchesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingestctl_batches_failed_total",
		Help: "Embedding batches that failed after retries and stored zero chunks.",
	})
	chunksStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingestctl_chunks_stored_total",
		Help: "Chunks upserted into a vector collection.",
	})
)

func init() {
	prometheus.MustRegister(chunksEmbedded, batchesFailed, chunksStored)
}

// Result summarizes one processor run over a chunk stream.
type Result struct {
	ChunksProcessed int
	ChunksStored    int
	BatchesFailed   int
	FilesProcessed  int
}

// Processor groups an incoming chunk stream into fixed-size batches,
// dispatches each batch to a worker pool of size cfg.RateLimit for
// embedding, and hands successfully embedded batches to the storage
// manager. It is grounded on local_pipeline.go's jobs/resultsChan worker
// pool shape, generalized from file-parse jobs to embedding-batch jobs.
type Processor struct {
	cfg      ingest.Config
	embedder Embedder
	store    *storage.Manager
	logger   *slog.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(cfg ingest.Config, embedder Embedder, store *storage.Manager, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, embedder: embedder, store: store, logger: logger}
}

type job struct {
	index  int
	chunks []ingest.Chunk
}

type jobResult struct {
	index  int
	stored int
	failed bool
	err    error
}

// Run batches chunks into cfg.BatchSize groups and processes them through
// cfg.RateLimit concurrent workers. checkpointFn, if non-nil, is invoked once
// per successfully stored batch with the number of chunks it contributed and
// the relative path of the last chunk it contained. Workers finish batches
// out of order, but checkpointFn always fires in batch-submission order: a
// caller that persists batchChunks/lastFile to a checkpoint can rely on
// lastFile only ever moving forward through the file list it was given, so
// a resumed run never skips a file whose batch hasn't actually landed yet.
// Once a batch fails, checkpointFn stops firing for the remainder of this
// call, even for later batches that succeed: there is no safe file position
// to report once a gap has been left behind.
func (p *Processor) Run(ctx context.Context, chunks []ingest.Chunk, checkpointFn func(batchChunks int, lastFile string)) (Result, error) {
	batches := batchChunks(chunks, p.cfg.BatchSize)
	if len(batches) == 0 {
		return Result{}, nil
	}

	jobs := make(chan job, len(batches))
	results := make(chan jobResult, len(batches))

	var wg sync.WaitGroup
	workers := p.cfg.RateLimit
	if workers <= 0 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				select {
				case <-ctx.Done():
					results <- jobResult{index: j.index, err: ctx.Err(), failed: true}
					continue
				default:
				}
				results <- p.processBatch(ctx, j)
			}
		}()
	}

	for i, b := range batches {
		jobs <- job{index: i, chunks: b}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var total Result
	var storedCounter int64
	var failedCounter int64

	// pending holds results that arrived ahead of their turn; nextIdx is the
	// watermark of the next batch index checkpointFn is allowed to see.
	// checkpointFn stops firing the moment a batch fails: a file position
	// only belongs in a checkpoint once every file up to it is actually
	// stored, so a later batch succeeding past a failure must not advance
	// the watermark over the gap the failure left behind.
	pending := make(map[int]jobResult, len(batches))
	nextIdx := 0
	sawFailure := false
	for r := range results {
		total.ChunksProcessed += len(batches[r.index])
		if r.failed {
			atomic.AddInt64(&failedCounter, 1)
			batchesFailed.Inc()
			p.logger.Warn("batch.failed", "batch_index", r.index, "err", r.err)
		} else {
			atomic.AddInt64(&storedCounter, int64(r.stored))
		}
		pending[r.index] = r

		for {
			ready, ok := pending[nextIdx]
			if !ok {
				break
			}
			delete(pending, nextIdx)
			if ready.failed {
				sawFailure = true
			}
			if checkpointFn != nil && !sawFailure {
				checkpointFn(ready.stored, lastFileIn(batches[nextIdx]))
			}
			nextIdx++
		}
	}

	total.ChunksStored = int(storedCounter)
	total.BatchesFailed = int(failedCounter)
	return total, nil
}

// lastFileIn returns the relative path of the last chunk in a batch, the
// file position a checkpoint should advance to once that batch has fully
// landed.
func lastFileIn(chunks []ingest.Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	return chunks[len(chunks)-1].FilePath
}

// processBatch embeds and stores one batch. Per the whole-batch-fails
// invariant, a failure at either the embedding or storage stage means this
// batch contributes zero stored chunks — no partial credit.
func (p *Processor) processBatch(ctx context.Context, j job) jobResult {
	inputs := make([]string, len(j.chunks))
	for i, c := range j.chunks {
		inputs[i] = c.Content
	}

	vectors, err := p.embedder.Embed(ctx, inputs)
	if err != nil {
		return jobResult{index: j.index, failed: true, err: err}
	}
	if len(vectors) != len(j.chunks) {
		return jobResult{index: j.index, failed: true, err: errLengthMismatch(len(vectors), len(j.chunks))}
	}

	embedded := make([]storage.Embedded, len(j.chunks))
	for i, c := range j.chunks {
		embedded[i] = storage.Embedded{Chunk: c, Vector: vectors[i]}
	}

	stored, err := p.store.Store(ctx, embedded)
	if err != nil {
		return jobResult{index: j.index, failed: true, err: err}
	}

	chunksEmbedded.Add(float64(len(j.chunks)))
	chunksStored.Add(float64(stored))
	return jobResult{index: j.index, stored: stored}
}

func batchChunks(chunks []ingest.Chunk, size int) [][]ingest.Chunk {
	if size <= 0 {
		size = 1
	}
	var batches [][]ingest.Chunk
	for i := 0; i < len(chunks); i += size {
		end := i + size
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[i:end])
	}
	return batches
}

func errLengthMismatch(got, want int) error {
	return &mismatchError{got: got, want: want}
}

type mismatchError struct{ got, want int }

func (e *mismatchError) Error() string {
	return fmt.Sprintf("batch: embedding response length mismatch: got %d want %d", e.got, e.want)
}

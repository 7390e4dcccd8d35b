// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CheckpointRecord is the durable progress marker: the last fully persisted
// (repo, language, file) tuple plus running counters.
type CheckpointRecord struct {
	RepoID            string    `json:"repo_id"`
	Language          string    `json:"language"`
	LastProcessedFile string    `json:"last_processed_file"`
	FilesProcessed    int       `json:"files_processed"`
	ChunksProcessed   int       `json:"chunks_processed"`
	Timestamp         time.Time `json:"timestamp"`

	// CompletedRepos is the set of repo ids whose ingestion fully finished,
	// so a resumed run can skip them outright.
	CompletedRepos map[string]bool `json:"completed_repos"`
}

// CheckpointInfo is the lightweight summary returned by GetInfo, for status
// reporting without decoding the full record repeatedly.
type CheckpointInfo struct {
	Exists          bool
	RepoID          string
	FilesProcessed  int
	ChunksProcessed int
	Timestamp       time.Time
}

// CheckpointStore persists and restores CheckpointRecord to a single file,
// atomically. At most one writer is active at any time; the pipeline
// orchestrator serializes Save calls but the store also guards itself with
// an internal mutex so it is safe to share.
//
// Grounded on the atomic-write technique used by the prior manifest store:
// write to a temp file in the same directory, fsync, then rename over the
// destination. The destination either has the old content or the new
// content, never a partial write.
type CheckpointStore struct {
	mu   sync.Mutex
	path string
}

// NewCheckpointStore creates a store rooted at path. The containing
// directory is created on first Save if it does not exist.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Load returns the last persisted record, or (nil, nil) if no checkpoint
// file exists yet.
func (s *CheckpointStore) Load() (*CheckpointRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: read %s: %w", s.path, err)
	}

	var rec CheckpointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("checkpoint: decode %s: %w", s.path, err)
	}
	if rec.CompletedRepos == nil {
		rec.CompletedRepos = map[string]bool{}
	}
	return &rec, nil
}

// Save writes rec atomically: marshal, write to a temp file beside the
// destination, fsync, then rename. A failed Save is reported to the caller;
// whether to warn and continue or abort is the caller's decision, not this
// store's.
func (s *CheckpointStore) Save(rec *CheckpointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("checkpoint: mkdir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("checkpoint: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("checkpoint: rename into place: %w", err)
	}
	return nil
}

// Clear removes the checkpoint file. Called on clean completion of all
// repositories.
func (s *CheckpointStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: remove %s: %w", s.path, err)
	}
	return nil
}

// GetInfo returns a lightweight summary for reporting, without the caller
// needing to know the record's full shape.
func (s *CheckpointStore) GetInfo() (CheckpointInfo, error) {
	rec, err := s.Load()
	if err != nil {
		return CheckpointInfo{}, err
	}
	if rec == nil {
		return CheckpointInfo{Exists: false}, nil
	}
	return CheckpointInfo{
		Exists:          true,
		RepoID:          rec.RepoID,
		FilesProcessed:  rec.FilesProcessed,
		ChunksProcessed: rec.ChunksProcessed,
		Timestamp:       rec.Timestamp,
	}, nil
}

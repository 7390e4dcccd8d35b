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

// Package pipeline drives the end-to-end ingestion run: repositories are
// processed sequentially, each through walk -> parse -> embed -> store,
// with checkpointed resume and per-repository state tracking.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/ingestctl/pkg/ingest"
	"github.com/kraklabs/ingestctl/pkg/ingest/batch"
	"github.com/kraklabs/ingestctl/pkg/ingest/parsers"
)

// RepoState is a repository's position in the PENDING -> RUNNING ->
// (COMPLETED | FAILED) state machine.
type RepoState string

const (
	StatePending   RepoState = "PENDING"
	StateRunning   RepoState = "RUNNING"
	StateCompleted RepoState = "COMPLETED"
	StateFailed    RepoState = "FAILED"
)

// RepoResult is the outcome of ingesting one repository.
type RepoResult struct {
	RepoID          string
	State           RepoState
	FilesProcessed  int
	FilesSkipped    int
	ChunksProcessed int
	ChunksStored    int
	BatchesFailed   int
	Err             error
	Duration        time.Duration
}

// Repository is one ingestion target: a stable id and its working tree path.
type Repository struct {
	ID  string
	Dir string
}

// Orchestrator wires the file processor and batch processor together and
// drives them across a set of repositories, one at a time, with checkpoint
// load/resume between runs.
type Orchestrator struct {
	cfg        ingest.Config
	fileProc   *ingest.FileProcessor
	batchProc  *batch.Processor
	checkpoint *ingest.CheckpointStore
	logger     *slog.Logger
	onRepoDone func(current, total int, result RepoResult)
}

// NewOrchestrator constructs an Orchestrator from its already-built
// component dependencies.
func NewOrchestrator(cfg ingest.Config, fileProc *ingest.FileProcessor, batchProc *batch.Processor, checkpoint *ingest.CheckpointStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{cfg: cfg, fileProc: fileProc, batchProc: batchProc, checkpoint: checkpoint, logger: logger}
}

// SetProgressCallback registers a callback invoked after each repository
// finishes (successfully or not), reporting 1-based progress through the
// full repository list.
func (o *Orchestrator) SetProgressCallback(cb func(current, total int, result RepoResult)) {
	o.onRepoDone = cb
}

// Run ingests every repository in order, sequentially. A failure in one
// repository is recorded in its RepoResult and does not stop the run: the
// next repository still gets attempted, matching the "per-repository
// degradation" rule. The checkpoint file is cleared only once every
// repository reaches COMPLETED.
//
// resume controls whether an existing checkpoint is honored at all: when
// false, any checkpoint already on disk is not loaded (every repository is
// processed from scratch) and is replaced by the fresh checkpoint written as
// the run progresses, so a later resumed run has something to pick up. When true, a prior checkpoint's completed
// repositories are skipped outright and the in-progress repository resumes
// from its recorded (language, file) position.
func (o *Orchestrator) Run(ctx context.Context, repos []Repository, resume bool) ([]RepoResult, error) {
	var rec *ingest.CheckpointRecord
	if resume {
		loaded, err := o.checkpoint.Load()
		if err != nil {
			return nil, fmt.Errorf("pipeline: load checkpoint: %w", err)
		}
		rec = loaded
	}
	if rec == nil {
		rec = &ingest.CheckpointRecord{CompletedRepos: map[string]bool{}}
	}

	results := make([]RepoResult, 0, len(repos))
	allCompleted := true

	for _, repo := range repos {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		if rec.CompletedRepos[repo.ID] {
			o.logger.Info("pipeline.repo.skip_completed", "repo_id", repo.ID)
			result := RepoResult{RepoID: repo.ID, State: StateCompleted}
			results = append(results, result)
			if o.onRepoDone != nil {
				o.onRepoDone(len(results), len(repos), result)
			}
			continue
		}

		result := o.runRepo(ctx, repo, rec)
		results = append(results, result)
		if result.State == StateCompleted {
			rec.CompletedRepos[repo.ID] = true
			if err := o.checkpoint.Save(rec); err != nil {
				o.logger.Warn("pipeline.checkpoint.save_failed", "repo_id", repo.ID, "err", err)
			}
		} else {
			allCompleted = false
		}
		if o.onRepoDone != nil {
			o.onRepoDone(len(results), len(repos), result)
		}
	}

	if allCompleted {
		if err := o.checkpoint.Clear(); err != nil {
			o.logger.Warn("pipeline.checkpoint.clear_failed", "err", err)
		}
	}

	return results, nil
}

// languageGroup is one contiguous run of same-language outcomes from Walk's
// (language, path)-ordered output.
type languageGroup struct {
	language string
	outcomes []ingest.FileOutcome
}

// shouldCheckpoint decides whether reaching filePos (the number of files
// completed so far within the active language) warrants a disk save, given
// lastSaved (the file count as of the last save). Batch-checkpointed
// languages always save; everything else saves once at least EveryNFiles
// new files have completed since the last save.
func shouldCheckpoint(freq ingest.CheckpointFrequency, filePos, lastSaved int) bool {
	if freq.CheckpointBatches {
		return true
	}
	if freq.EveryNFiles <= 0 {
		return false
	}
	return filePos-lastSaved >= freq.EveryNFiles
}

// groupByLanguage splits Walk's flat, (language, path)-sorted outcome list
// back into per-language runs. Walk sets a language on every outcome, error
// outcomes included; an outcome with an empty language would fall into the
// "unknown" bucket.
func groupByLanguage(outcomes []ingest.FileOutcome) []languageGroup {
	var groups []languageGroup
	for _, oc := range outcomes {
		lang := oc.Language
		if lang == "" {
			lang = "unknown"
		}
		if len(groups) == 0 || groups[len(groups)-1].language != lang {
			groups = append(groups, languageGroup{language: lang})
		}
		groups[len(groups)-1].outcomes = append(groups[len(groups)-1].outcomes, oc)
	}
	return groups
}

func anyGroupHasLanguage(groups []languageGroup, language string) bool {
	for _, g := range groups {
		if g.language == language {
			return true
		}
	}
	return false
}

func (o *Orchestrator) runRepo(ctx context.Context, repo Repository, rec *ingest.CheckpointRecord) RepoResult {
	started := time.Now()
	o.logger.Info("pipeline.repo.start", "repo_id", repo.ID, "state", StateRunning)

	outcomes, err := o.fileProc.Walk(repo.ID, repo.Dir)
	if err != nil {
		o.logger.Warn("pipeline.repo.walk_failed", "repo_id", repo.ID, "err", err)
		return RepoResult{RepoID: repo.ID, State: StateFailed, Err: err, Duration: time.Since(started)}
	}

	groups := groupByLanguage(outcomes)

	resumeLanguage, resumeFile := "", ""
	if rec.RepoID == repo.ID {
		resumeLanguage = rec.Language
		resumeFile = rec.LastProcessedFile
	}
	if resumeLanguage != "" && !anyGroupHasLanguage(groups, resumeLanguage) {
		// The checkpointed language has nothing to resume into anymore (its
		// files were deleted or renamed since the last run): there is no
		// group to skip up to, so treat this repo as having no resume
		// position rather than silently skipping every remaining group.
		resumeLanguage, resumeFile = "", ""
	}

	var (
		filesProcessed, filesSkipped   int
		chunksProcessed, chunksStored  int
		batchesFailed                  int
		runErr                         error
	)

	// pastResumeLanguage becomes true once we reach the language the
	// checkpoint was sitting in (or immediately, if there is no resume
	// position): earlier languages were already fully persisted in a prior
	// run and are skipped outright, never reprocessed or recounted.
	pastResumeLanguage := resumeLanguage == ""

	for _, group := range groups {
		if !pastResumeLanguage {
			if group.language != resumeLanguage {
				continue
			}
			pastResumeLanguage = true
		}

		skippingFile := group.language == resumeLanguage && resumeFile != ""
		freq := o.cfg.CheckpointFrequencyFor(group.language)

		var chunks []ingest.Chunk
		filePosition := make(map[string]int)
		filesSoFarInGroup := 0
		for _, oc := range group.outcomes {
			if skippingFile {
				if oc.RelativePath <= resumeFile {
					continue
				}
				skippingFile = false
			}
			if oc.Skipped {
				filesSkipped++
				o.logger.Warn("pipeline.file.skipped", "repo_id", repo.ID, "path", oc.RelativePath, "reason", oc.SkipReason)
				continue
			}
			if oc.Err != nil {
				filesSkipped++
				o.logger.Warn("pipeline.file.error", "repo_id", repo.ID, "path", oc.RelativePath, "err", oc.Err)
				continue
			}
			filesProcessed++
			filesSoFarInGroup++
			filePosition[oc.RelativePath] = filesSoFarInGroup
			chunks = append(chunks, oc.Chunks...)
		}

		language := group.language
		filesSinceSave := 0
		batchResult, err := o.batchProc.Run(ctx, chunks, func(batchChunks int, lastFile string) {
			if lastFile == "" {
				return
			}
			rec.RepoID = repo.ID
			rec.Language = language
			rec.LastProcessedFile = lastFile
			rec.FilesProcessed = filesProcessed
			rec.ChunksProcessed += batchChunks
			rec.Timestamp = time.Now()

			if shouldCheckpoint(freq, filePosition[lastFile], filesSinceSave) {
				filesSinceSave = filePosition[lastFile]
				if saveErr := o.checkpoint.Save(rec); saveErr != nil {
					o.logger.Warn("pipeline.checkpoint.save_failed", "repo_id", repo.ID, "language", language, "err", saveErr)
				}
			}
		})
		if err != nil {
			runErr = err
			break
		}
		chunksProcessed += batchResult.ChunksProcessed
		chunksStored += batchResult.ChunksStored
		batchesFailed += batchResult.BatchesFailed
	}

	if runErr != nil {
		return RepoResult{RepoID: repo.ID, State: StateFailed, Err: runErr, Duration: time.Since(started), FilesProcessed: filesProcessed, FilesSkipped: filesSkipped}
	}

	// Any batch failure, partial or total, keeps this repo out of
	// CompletedRepos: a resumed run must still be able to retry the files
	// that never got stored, and marking it complete here would let
	// Run persist rec.CompletedRepos[repo.ID]=true and skip it forever.
	state := StateCompleted
	if batchesFailed > 0 {
		state = StateFailed
	}

	o.logger.Info("pipeline.repo.finish", "repo_id", repo.ID, "state", state,
		"files_processed", filesProcessed, "files_skipped", filesSkipped,
		"chunks_processed", chunksProcessed, "chunks_stored", chunksStored,
		"batches_failed", batchesFailed)

	return RepoResult{
		RepoID:          repo.ID,
		State:           state,
		FilesProcessed:  filesProcessed,
		FilesSkipped:    filesSkipped,
		ChunksProcessed: chunksProcessed,
		ChunksStored:    chunksStored,
		BatchesFailed:   batchesFailed,
		Duration:        time.Since(started),
	}
}

// NewFileProcessorRegistry is a convenience constructor so callers assembling
// an Orchestrator don't need to import the parsers package directly just to
// build the one registry every repository shares.
func NewFileProcessorRegistry() *parsers.Registry {
	return parsers.NewRegistry()
}

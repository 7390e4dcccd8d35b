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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ingestctl/pkg/ingest"
	"github.com/kraklabs/ingestctl/pkg/ingest/batch"
	"github.com/kraklabs/ingestctl/pkg/ingest/embed"
	"github.com/kraklabs/ingestctl/pkg/ingest/parsers"
	"github.com/kraklabs/ingestctl/pkg/ingest/pipeline"
	"github.com/kraklabs/ingestctl/pkg/ingest/storage"
	"github.com/kraklabs/ingestctl/pkg/ingest/vectorstore"
)

func runIngest(args []string, configPath string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	resume := fs.Bool("resume", true, "resume from the last checkpoint if one exists; --resume=false forces a clean run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	repoNames := fs.Args()

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	cfg := fc.ToIngestConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	level := slog.LevelWarn
	switch {
	case globals.Verbose >= 2:
		level = slog.LevelDebug
	case globals.Verbose >= 1:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	backend, err := buildBackend(cfg)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer backend.Close()

	embedClient := embed.NewClient(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("ingest.cancel_requested")
		cancel()
	}()

	if err := embedClient.Warmup(ctx); err != nil {
		return fmt.Errorf("ingest: embedding warmup: %w", err)
	}

	registry := parsers.NewRegistry()
	fileProc := ingest.NewFileProcessor(cfg, registry, logger)
	storeMgr := storage.NewManager(backend, cfg, logger)
	batchProc := batch.NewProcessor(cfg, embedClient, storeMgr, logger)
	checkpoint := ingest.NewCheckpointStore(cfg.CheckpointPath)
	orchestrator := pipeline.NewOrchestrator(cfg, fileProc, batchProc, checkpoint, logger)

	repos, err := resolveRepos(cfg.ReposBaseDir, repoNames)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	progressCfg := NewProgressConfig(globals)
	bar := NewProgressBar(progressCfg, int64(len(repos)), "Ingesting repositories")
	orchestrator.SetProgressCallback(func(current, total int, result pipeline.RepoResult) {
		if bar != nil {
			_ = bar.Set(current)
		}
	})

	results, err := orchestrator.Run(ctx, repos, *resume)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	printIngestResults(results, globals)
	return nil
}

// resolveRepos turns bare repo names (or none, meaning every subdirectory
// of baseDir) into Repository values rooted at baseDir.
func resolveRepos(baseDir string, names []string) ([]pipeline.Repository, error) {
	if len(names) > 0 {
		repos := make([]pipeline.Repository, len(names))
		for i, name := range names {
			repos[i] = pipeline.Repository{ID: name, Dir: filepath.Join(baseDir, name)}
		}
		return repos, nil
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("list repos under %s: %w", baseDir, err)
	}
	var repos []pipeline.Repository
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		repos = append(repos, pipeline.Repository{ID: e.Name(), Dir: filepath.Join(baseDir, e.Name())})
	}
	return repos, nil
}

func buildBackend(cfg ingest.Config) (vectorstore.Backend, error) {
	switch cfg.VectorBackend {
	case ingest.BackendManaged:
		return vectorstore.NewQdrantBackend(cfg.QdrantURL, cfg.QdrantAPIKey, "cosine")
	case ingest.BackendLocal:
		return vectorstore.NewSurrealBackend(cfg.SurrealURL, cfg.SurrealNS, cfg.SurrealDB, cfg.SurrealUser, cfg.SurrealPass), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

func printIngestResults(results []pipeline.RepoResult, globals GlobalFlags) {
	if globals.JSON {
		printJSON(results)
		return
	}
	for _, r := range results {
		status := string(r.State)
		if r.Err != nil {
			fmt.Printf("%-30s %-10s files=%d skipped=%d chunks=%d stored=%d error=%v\n",
				r.RepoID, status, r.FilesProcessed, r.FilesSkipped, r.ChunksProcessed, r.ChunksStored, r.Err)
			continue
		}
		fmt.Printf("%-30s %-10s files=%d skipped=%d chunks=%d stored=%d duration=%s\n",
			r.RepoID, status, r.FilesProcessed, r.FilesSkipped, r.ChunksProcessed, r.ChunksStored, r.Duration)
	}
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	flag "github.com/spf13/pflag"
)

var watchSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".ingestctl": true, "bin": true,
}

const watchDebounce = 2 * time.Second

// runWatch watches reposBaseDir for filesystem changes and re-runs a full
// ingestion pass after a debounce window. Re-ingestion is always a full pass
// keyed on content hashes, never a diff against the previous run: each
// trigger goes through the same runIngest path as the ingest subcommand.
func runWatch(args []string, configPath string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	cfg := fc.ToIngestConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer watcher.Close()

	watchCount := 0
	err = filepath.Walk(cfg.ReposBaseDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsPermission(walkErr) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if watchSkipDirs[base] || (strings.HasPrefix(base, ".") && base != ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err == nil {
			watchCount++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", cfg.ReposBaseDir, err)
	}
	fmt.Fprintf(os.Stderr, "watch: watching %d directories under %s\n", watchCount, cfg.ReposBaseDir)

	var debounceTimer *time.Timer
	var timerCh <-chan time.Time
	reindexing := false

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: event %s %s\n", event.Op, event.Name)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(watchDebounce)
			timerCh = debounceTimer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch: fsnotify error: %v\n", err)
		case <-timerCh:
			timerCh = nil
			if reindexing {
				fmt.Fprintln(os.Stderr, "watch: ingestion already running, skipping this trigger")
				continue
			}
			reindexing = true
			fmt.Fprintln(os.Stderr, "watch: debounce elapsed, starting full ingestion")
			if err := runIngest(nil, configPath, globals); err != nil {
				fmt.Fprintf(os.Stderr, "watch: ingestion failed: %v\n", err)
			}
			reindexing = false
		}
	}
}

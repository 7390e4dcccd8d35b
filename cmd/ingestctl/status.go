// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

func runStatus(args []string, configPath string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	cfg := fc.ToIngestConfig()

	checkpoint := ingest.NewCheckpointStore(cfg.CheckpointPath)
	info, err := checkpoint.GetInfo()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	if globals.JSON {
		printJSON(info)
		return nil
	}

	if !info.Exists {
		fmt.Println("No checkpoint found; no ingestion has run yet.")
		return nil
	}
	fmt.Printf("repo_id:          %s\n", info.RepoID)
	fmt.Printf("files_processed:  %d\n", info.FilesProcessed)
	fmt.Printf("chunks_processed: %d\n", info.ChunksProcessed)
	fmt.Printf("last_updated:     %s\n", info.Timestamp.Format("2006-01-02 15:04:05"))
	return nil
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/ingestctl/pkg/ingest/embed"
)

func runSearch(args []string, configPath string, globals GlobalFlags) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	collection := fs.String("collection", "", "Collection to search (required)")
	limit := fs.IntP("limit", "k", 10, "Number of results to return")
	if err := fs.Parse(args); err != nil {
		return err
	}
	queryArgs := fs.Args()
	if len(queryArgs) == 0 {
		return fmt.Errorf("search: a query string is required")
	}
	if *collection == "" {
		return fmt.Errorf("search: --collection is required")
	}
	query := queryArgs[0]

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	cfg := fc.ToIngestConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer backend.Close()

	embedClient := embed.NewClient(cfg, nil)
	ctx := context.Background()
	vectors, err := embedClient.Embed(ctx, []string{query})
	if err != nil {
		return fmt.Errorf("search: embed query: %w", err)
	}

	hits, err := backend.Search(ctx, *collection, vectors[0], *limit, nil)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if globals.JSON {
		printJSON(hits)
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%.4f  %s  %v\n", h.Score, h.ID, summarizePayload(h.Payload))
	}
	return nil
}

func summarizePayload(payload map[string]any) string {
	itemName, _ := payload["item_name"].(string)
	filePath, _ := payload["file_path"].(string)
	if itemName == "" && filePath == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s)", itemName, filePath)
}

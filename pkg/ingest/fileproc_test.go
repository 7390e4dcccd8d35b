// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/ingestctl/pkg/ingest/parsers"
)

func TestFileProcessor_Walk_SkipsIneligibleAndOversizeFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# Title\n\n## Overview\nHello.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte{0x89, 0x50, 0x4e, 0x47}, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "ignored.md"), []byte("# x\n\n## y\nz\n"), 0o644))

	cfg := DefaultConfig()
	cfg.MaxFileSizeBytes = 1024
	fp := NewFileProcessor(cfg, parsers.NewRegistry(), nil)

	outcomes, err := fp.Walk("repo-a", root)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "README.md", outcomes[0].RelativePath)
	assert.Equal(t, "markdown", outcomes[0].Language)
	require.Len(t, outcomes[0].Chunks, 1)
	assert.Equal(t, "repo-a", outcomes[0].Chunks[0].RepoID)
	assert.NotEmpty(t, outcomes[0].Chunks[0].BusinessDomain)
}

func TestFileProcessor_Walk_OversizeFileIsSkippedNotError(t *testing.T) {
	root := t.TempDir()
	content := make([]byte, 200)
	for i := range content {
		content[i] = '#'
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.md"), content, 0o644))

	cfg := DefaultConfig()
	cfg.MaxFileSizeBytes = 10
	fp := NewFileProcessor(cfg, parsers.NewRegistry(), nil)

	outcomes, err := fp.Walk("repo-a", root)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
	assert.Nil(t, outcomes[0].Err)
}

func TestFileProcessor_Walk_EmptyDirProducesNoOutcomes(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	fp := NewFileProcessor(cfg, parsers.NewRegistry(), nil)

	outcomes, err := fp.Walk("repo-a", root)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestFileProcessor_Walk_OrdersOutcomesInContiguousLanguageGroups(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "z.yaml"), []byte("key: value\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.yaml"), []byte("key: value\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.md"), []byte("# T\n\n## Overview\nhi\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("# T\n\n## Overview\nhi\n"), 0o644))

	cfg := DefaultConfig()
	fp := NewFileProcessor(cfg, parsers.NewRegistry(), nil)

	outcomes, err := fp.Walk("repo-a", root)
	require.NoError(t, err)
	require.Len(t, outcomes, 4)

	// markdown sorts before yaml, and each language's files are contiguous
	// and lexically ordered within their own run.
	gotLanguages := make([]string, len(outcomes))
	gotPaths := make([]string, len(outcomes))
	for i, oc := range outcomes {
		gotLanguages[i] = oc.Language
		gotPaths[i] = oc.RelativePath
	}
	assert.Equal(t, []string{"markdown", "markdown", "yaml", "yaml"}, gotLanguages)
	assert.Equal(t, []string{"a.md", "b.md", "a.yaml", "z.yaml"}, gotPaths)
}

func TestFileProcessor_Walk_PopulatesLanguageEvenOnReadError(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "broken.md")
	require.NoError(t, os.WriteFile(path, []byte("# T\n\n## Overview\nhi\n"), 0o644))
	require.NoError(t, os.Chmod(path, 0o000))
	defer os.Chmod(path, 0o644)

	cfg := DefaultConfig()
	fp := NewFileProcessor(cfg, parsers.NewRegistry(), nil)

	outcomes, err := fp.Walk("repo-a", root)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "markdown", outcomes[0].Language, "language must be known even when the file can't be read, so it still groups correctly")
	assert.Error(t, outcomes[0].Err)
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_Validate(t *testing.T) {
	valid := Chunk{
		Content:         "fn main() {}",
		StartLine:       1,
		EndLine:         1,
		ComplexityScore: 0.1,
	}
	require.NoError(t, valid.Validate())

	badLines := valid
	badLines.EndLine = 0
	assert.Error(t, badLines.Validate())

	empty := valid
	empty.Content = ""
	assert.Error(t, empty.Validate())

	outOfRange := valid
	outOfRange.ComplexityScore = 1.5
	assert.Error(t, outOfRange.Validate())
}

func TestChunk_ChunkHash_Deterministic(t *testing.T) {
	a := Chunk{Language: "rust", FilePath: "src/lib.rs", ItemType: "function", ItemName: "run", Content: "fn run() {}"}
	b := a
	assert.Equal(t, a.ChunkHash(), b.ChunkHash())

	b.Content = "fn run() { println!(\"x\"); }"
	assert.NotEqual(t, a.ChunkHash(), b.ChunkHash())
}

func TestAnonymousName(t *testing.T) {
	assert.Equal(t, "<anonymous:42>", AnonymousName(42))
}

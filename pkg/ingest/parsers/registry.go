// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package parsers implements the per-language chunk extractors. Every
// parser is a pure function of its inputs: same (file_path, relative_path,
// content_bytes, repo_id) always yields the same Result.
package parsers

import (
	"sync"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

// Result is the per-file outcome of a parser's Parse call.
type Result struct {
	Success    bool
	Chunks     []ingest.Chunk
	TotalLines int
	Error      string
}

// Parser is the capability every language extractor implements. A registry
// maps a language tag to exactly one Parser instance, constructed once at
// startup.
type Parser interface {
	// Parse extracts an ordered sequence of chunks from one file's content.
	// It must never abort the run: malformed input is reported as
	// Result.Success == false with a descriptive Error, not a panic or an
	// error return.
	Parse(filePath, relativePath string, content []byte, repoID string) Result
}

// Registry maps a language tag to its Parser.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
	exts    map[string]string // extension (with leading dot) -> language tag
}

// NewRegistry builds the registry with all five language families wired in.
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
		exts:    make(map[string]string),
	}

	r.register("systemslang", NewSystemsLangParser(), []string{".rs"})
	ts := NewTSFamilyParser()
	r.register("typescript", ts, []string{".ts", ".tsx"})
	r.register("javascript", ts, []string{".js", ".jsx", ".mjs"})
	r.register("solidity", NewSolidityParser(), []string{".sol"})
	r.register("markdown", NewMarkdownParser(), []string{".md", ".mdx"})
	r.register("yaml", NewYAMLParser(), []string{".yaml", ".yml"})
	r.register("hcl", NewHCLParser(), []string{".hcl", ".tf"})

	return r
}

func (r *Registry) register(language string, p Parser, extensions []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[language] = p
	for _, ext := range extensions {
		r.exts[ext] = language
	}
}

// LanguageForExt returns the language tag registered for a file extension
// (including the leading dot), or "" if unsupported.
func (r *Registry) LanguageForExt(ext string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exts[ext]
}

// ParserFor returns the Parser registered for a language tag.
func (r *Registry) ParserFor(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[language]
	return p, ok
}

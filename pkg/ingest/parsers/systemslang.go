// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsers

import (
	"strings"
	"unicode/utf8"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

// SystemsLangParser extracts chunks from a Rust-like systems language:
// functions, struct/enum declarations, impl blocks, traits, module headers,
// and top-level constants/statics/aliases.
//
// No tree-sitter grammar for this language is available, so extraction is a
// brace-balanced, keyword-anchored structural scan over the raw source text
// rather than an AST walk. This is deliberately not a line-oriented regex
// fallback: every item boundary is resolved by tracking brace depth. Unlike
// the Solidity scanner, an item whose braces never balance here simply runs
// to end-of-file rather than failing the whole file, since a single
// unclosed block in application code is far more common (a file mid-edit)
// and still yields useful partial chunks for everything before it.
type SystemsLangParser struct{}

// NewSystemsLangParser constructs the parser. Stateless: safe to share.
func NewSystemsLangParser() *SystemsLangParser {
	return &SystemsLangParser{}
}

func (p *SystemsLangParser) Parse(filePath, relativePath string, content []byte, repoID string) Result {
	text := content
	if !utf8.Valid(text) {
		text = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	lines := strings.Split(string(text), "\n")

	imports := collectUseStatements(lines)
	importMeta := strings.Join(imports, ";")

	chunks, err := scanSystemsLangBlock(lines, 0, len(lines), relativePath, repoID, importMeta, "")
	if err != "" {
		return Result{Success: false, TotalLines: len(lines), Error: err}
	}
	return Result{Success: true, Chunks: chunks, TotalLines: len(lines)}
}

func collectUseStatements(lines []string) []string {
	var uses []string
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "use ") {
			uses = append(uses, strings.TrimSuffix(strings.TrimPrefix(t, "use "), ";"))
		}
	}
	return uses
}

// scanSystemsLangBlock scans lines[lo:hi) for top-level items. modPrefix
// namespaces nested-module item names (e.g. "net::").
func scanSystemsLangBlock(lines []string, lo, hi int, relativePath, repoID, importMeta, modPrefix string) ([]ingest.Chunk, string) {
	var chunks []ingest.Chunk
	var pendingAttrs []string

	i := lo
	for i < hi {
		raw := lines[i]
		trimmed := strings.TrimSpace(raw)

		if trimmed == "" {
			i++
			continue
		}
		if strings.HasPrefix(trimmed, "//") {
			i++
			continue
		}
		if strings.HasPrefix(trimmed, "#[") {
			pendingAttrs = append(pendingAttrs, trimmed)
			i++
			continue
		}

		visible := strings.HasPrefix(trimmed, "pub")
		isAsync := strings.Contains(trimmed, "async fn")
		isTest := containsAttr(pendingAttrs, "test")

		switch {
		case containsKeyword(trimmed, "fn "):
			end := scanBraceOrSemiBlock(lines, i)
			name := extractIdentAfter(trimmed, "fn ")
			if name == "" {
				name = ingest.AnonymousName(i + 1)
			}
			chunks = append(chunks, buildItemChunk(lines, i, end, relativePath, repoID, importMeta,
				"function", modPrefix+name, visible, isAsync, isTest))
			pendingAttrs = nil
			i = end + 1

		case containsKeyword(trimmed, "struct ") || containsKeyword(trimmed, "enum "):
			kind := "struct"
			kw := "struct "
			if containsKeyword(trimmed, "enum ") {
				kind = "enum"
				kw = "enum "
			}
			end := scanBraceOrSemiBlock(lines, i)
			name := extractIdentAfter(trimmed, kw)
			if name == "" {
				name = ingest.AnonymousName(i + 1)
			}
			chunks = append(chunks, buildItemChunk(lines, i, end, relativePath, repoID, importMeta,
				kind, modPrefix+name, visible, false, isTest))
			pendingAttrs = nil
			i = end + 1

		case containsKeyword(trimmed, "trait "):
			end := scanBraceOrSemiBlock(lines, i)
			name := extractIdentAfter(trimmed, "trait ")
			if name == "" {
				name = ingest.AnonymousName(i + 1)
			}
			chunks = append(chunks, buildItemChunk(lines, i, end, relativePath, repoID, importMeta,
				"trait", modPrefix+name, visible, false, isTest))
			pendingAttrs = nil
			i = end + 1

		case containsKeyword(trimmed, "impl "):
			end := scanBraceOrSemiBlock(lines, i)
			target, traitName := parseImplHeader(trimmed)
			name := target
			if traitName != "" {
				name = traitName + " for " + target
			}
			c := buildItemChunk(lines, i, end, relativePath, repoID, importMeta,
				"impl", modPrefix+name, visible, false, isTest)
			c.Metadata["impl_target"] = target
			if traitName != "" {
				c.Metadata["impl_trait"] = traitName
			}
			chunks = append(chunks, c)
			pendingAttrs = nil
			i = end + 1

		case containsKeyword(trimmed, "mod "):
			name := extractIdentAfter(trimmed, "mod ")
			if name == "" {
				name = ingest.AnonymousName(i + 1)
			}
			if strings.Contains(trimmed, "{") && !strings.Contains(trimmed, ";") {
				end := scanBraceOrSemiBlock(lines, i)
				// Module chunk is header only: the body is parsed
				// separately so its own items become their own chunks.
				header := buildItemChunk(lines, i, i, relativePath, repoID, importMeta,
					"module", modPrefix+name, visible, false, false)
				chunks = append(chunks, header)
				inner, ierr := scanSystemsLangBlock(lines, i+1, end, relativePath, repoID, importMeta, modPrefix+name+"::")
				if ierr != "" {
					return nil, ierr
				}
				chunks = append(chunks, inner...)
				i = end + 1
			} else {
				chunks = append(chunks, buildItemChunk(lines, i, i, relativePath, repoID, importMeta,
					"module", modPrefix+name, visible, false, false))
				i++
			}
			pendingAttrs = nil

		case containsKeyword(trimmed, "const ") || containsKeyword(trimmed, "static ") || containsKeyword(trimmed, "type "):
			kind := "const"
			kw := "const "
			switch {
			case containsKeyword(trimmed, "static "):
				kind, kw = "static", "static "
			case containsKeyword(trimmed, "type "):
				kind, kw = "type_alias", "type "
			}
			end := scanBraceOrSemiBlock(lines, i)
			name := extractIdentAfter(trimmed, kw)
			if name == "" {
				name = ingest.AnonymousName(i + 1)
			}
			chunks = append(chunks, buildItemChunk(lines, i, end, relativePath, repoID, importMeta,
				kind, modPrefix+name, visible, false, false))
			pendingAttrs = nil
			i = end + 1

		default:
			i++
		}
	}
	return chunks, ""
}

func buildItemChunk(lines []string, start, end int, relativePath, repoID, importMeta, itemType, name string, visible, isAsync, isTest bool) ingest.Chunk {
	body := strings.Join(lines[start:end+1], "\n")
	c := ingest.Chunk{
		Content:   body,
		Language:  "systemslang",
		ItemType:  itemType,
		ItemName:  name,
		FilePath:  relativePath,
		StartLine: start + 1,
		EndLine:   end + 1,
		RepoID:    repoID,
		Metadata: map[string]string{
			"visibility": visibilityLabel(visible),
			"imports":    importMeta,
		},
	}
	if isAsync {
		c.Metadata["async"] = "true"
	}
	if isTest {
		c.Metadata["test"] = "true"
	}
	c.ComplexityScore = ingest.ComplexityScore(body)
	return c
}

func visibilityLabel(pub bool) string {
	if pub {
		return "public"
	}
	return "private"
}

func containsAttr(attrs []string, name string) bool {
	for _, a := range attrs {
		if strings.Contains(a, name) {
			return true
		}
	}
	return false
}

// containsKeyword reports whether trimmed contains kw as a standalone
// keyword occurrence (preceded by start-of-line or whitespace), avoiding
// matches inside longer identifiers.
func containsKeyword(trimmed, kw string) bool {
	idx := strings.Index(trimmed, kw)
	if idx < 0 {
		return false
	}
	if idx == 0 {
		return true
	}
	prev := trimmed[idx-1]
	return prev == ' ' || prev == '\t'
}

// extractIdentAfter returns the identifier immediately following the first
// occurrence of kw in s.
func extractIdentAfter(s, kw string) string {
	idx := strings.Index(s, kw)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimLeft(s[idx+len(kw):], " \t")
	end := 0
	for end < len(rest) {
		c := rest[end]
		if c == '(' || c == '<' || c == '{' || c == ' ' || c == ':' || c == ';' || c == '\t' {
			break
		}
		end++
	}
	return rest[:end]
}

// parseImplHeader splits "impl Trait for Type" / "impl Type" into
// (target, trait). trait is empty for an inherent impl.
func parseImplHeader(trimmed string) (target, trait string) {
	idx := strings.Index(trimmed, "impl ")
	if idx < 0 {
		return "", ""
	}
	rest := trimmed[idx+len("impl "):]
	if braceIdx := strings.IndexByte(rest, '{'); braceIdx >= 0 {
		rest = rest[:braceIdx]
	}
	rest = strings.TrimSpace(rest)
	if forIdx := strings.Index(rest, " for "); forIdx >= 0 {
		trait = strings.TrimSpace(rest[:forIdx])
		target = strings.TrimSpace(rest[forIdx+len(" for "):])
		return target, trait
	}
	return rest, ""
}

// scanBraceOrSemiBlock returns the index of the line that closes the block
// started at lines[start]: the line where brace depth returns to zero after
// having opened, or the first line at depth zero that ends the statement
// with a semicolon when no brace ever opens (unit structs, type aliases,
// const/static declarations).
func scanBraceOrSemiBlock(lines []string, start int) int {
	depth := 0
	seenBrace := false
	for i := start; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				seenBrace = true
			case '}':
				depth--
			}
		}
		if seenBrace && depth <= 0 {
			return i
		}
		if !seenBrace && strings.ContainsRune(lines[i], ';') {
			return i
		}
	}
	return len(lines) - 1
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsers

import (
	"fmt"
	"strings"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

// solidityKeywords are the declaration keywords this parser recognizes as
// item boundaries, checked in this order.
var solidityKeywords = []struct {
	kw       string
	itemType string
}{
	{"contract ", "contract"},
	{"interface ", "interface"},
	{"library ", "library"},
	{"function ", "function"},
	{"modifier ", "modifier"},
	{"event ", "event"},
	{"struct ", "struct"},
	{"enum ", "enum"},
	{"error ", "error"},
	{"constructor", "constructor"},
}

// SolidityParser extracts contracts, interfaces, libraries, functions,
// modifiers, events, structs, enums, errors, state variables, and
// constructors from a Solidity-like smart-contract language.
//
// No tree-sitter-solidity grammar is available in this tree, and per the
// no-regex-fallback requirement this parser never substitutes a regex-based
// partial extraction: if brace structure cannot be resolved (an opened
// block never closes) the file is reported as a failed parse, not a
// best-effort guess.
type SolidityParser struct{}

// NewSolidityParser constructs the parser. Stateless: safe to share.
func NewSolidityParser() *SolidityParser {
	return &SolidityParser{}
}

func (p *SolidityParser) Parse(filePath, relativePath string, content []byte, repoID string) Result {
	text := strings.ToValidUTF8(string(content), "�")
	lines := strings.Split(text, "\n")

	chunks, stateVars, err := scanSolidityBlock(lines, 0, len(lines), relativePath, repoID)
	if err != "" {
		return Result{Success: false, TotalLines: len(lines), Error: err}
	}
	chunks = append(chunks, stateVars...)
	return Result{Success: true, Chunks: chunks, TotalLines: len(lines)}
}

func scanSolidityBlock(lines []string, lo, hi int, relativePath, repoID string) ([]ingest.Chunk, []ingest.Chunk, string) {
	var chunks []ingest.Chunk
	var stateVars []ingest.Chunk

	i := lo
	for i < hi {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			i++
			continue
		}

		matched := false
		for _, kwEntry := range solidityKeywords {
			if !containsKeyword(trimmed, strings.TrimRight(kwEntry.kw, " ")) && !strings.HasPrefix(trimmed, strings.TrimRight(kwEntry.kw, " ")) {
				continue
			}
			matched = true
			start := i
			end, ok := scanSolidityItemEnd(lines, start)
			if !ok {
				return nil, nil, fmt.Sprintf("%s: unbalanced braces starting at line %d (%s)", relativePath, start+1, kwEntry.itemType)
			}

			name := solidityItemName(trimmed, kwEntry)
			visibility, mutability := solidityModifiers(trimmed)

			if kwEntry.itemType == "contract" || kwEntry.itemType == "interface" || kwEntry.itemType == "library" {
				header := buildSolidityChunk(lines, start, start, relativePath, repoID, kwEntry.itemType, name, visibility, mutability)
				chunks = append(chunks, header)
				inner, innerVars, ierr := scanSolidityBlock(lines, start+1, end, relativePath, repoID)
				if ierr != "" {
					return nil, nil, ierr
				}
				chunks = append(chunks, inner...)
				stateVars = append(stateVars, innerVars...)
			} else {
				chunks = append(chunks, buildSolidityChunk(lines, start, end, relativePath, repoID, kwEntry.itemType, name, visibility, mutability))
			}
			i = end + 1
			break
		}
		if matched {
			continue
		}

		if isSolidityStateVar(trimmed) {
			end := i
			for !strings.Contains(lines[end], ";") && end < hi-1 {
				end++
			}
			name := solidityStateVarName(trimmed)
			stateVars = append(stateVars, buildSolidityChunk(lines, i, end, relativePath, repoID, "state_variable", name, "internal", ""))
			i = end + 1
			continue
		}

		i++
	}
	return chunks, stateVars, ""
}

func buildSolidityChunk(lines []string, start, end int, relativePath, repoID, itemType, name, visibility, mutability string) ingest.Chunk {
	body := strings.Join(lines[start:end+1], "\n")
	c := ingest.Chunk{
		Content:   body,
		Language:  "solidity",
		ItemType:  itemType,
		ItemName:  name,
		FilePath:  relativePath,
		StartLine: start + 1,
		EndLine:   end + 1,
		RepoID:    repoID,
		Metadata: map[string]string{
			"visibility": visibility,
		},
	}
	if mutability != "" {
		c.Metadata["state_mutability"] = mutability
	}
	c.ComplexityScore = ingest.ComplexityScore(body)
	return c
}

func solidityItemName(trimmed string, kwEntry struct {
	kw       string
	itemType string
}) string {
	if kwEntry.itemType == "constructor" {
		return "constructor"
	}
	name := extractIdentAfter(trimmed, kwEntry.kw)
	if name == "" {
		return ingest.AnonymousName(0)
	}
	return name
}

func solidityModifiers(trimmed string) (visibility, mutability string) {
	visibility = "internal"
	for _, v := range []string{"public", "private", "external", "internal"} {
		if containsKeyword(trimmed, v) {
			visibility = v
			break
		}
	}
	for _, m := range []string{"view", "pure", "payable"} {
		if containsKeyword(trimmed, m) {
			mutability = m
			break
		}
	}
	return visibility, mutability
}

func isSolidityStateVar(trimmed string) bool {
	if strings.Contains(trimmed, "(") {
		return false
	}
	for _, t := range []string{"uint", "int", "address", "bool", "string", "bytes", "mapping"} {
		if strings.HasPrefix(trimmed, t) {
			return true
		}
	}
	return false
}

func solidityStateVarName(trimmed string) string {
	stmt := strings.TrimSuffix(trimmed, ";")
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ingest.AnonymousName(0)
	}
	last := fields[len(fields)-1]
	if idx := strings.IndexByte(last, '='); idx >= 0 {
		last = last[:idx]
	}
	return last
}

// scanSolidityItemEnd finds the closing line for the block started at
// lines[start]. Returns ok=false if the block never balances before EOF.
func scanSolidityItemEnd(lines []string, start int) (end int, ok bool) {
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
		if seenBrace && depth == 0 {
			return i, true
		}
		if !seenBrace && strings.ContainsRune(lines[i], ';') {
			return i, true
		}
	}
	if !seenBrace {
		return len(lines) - 1, false
	}
	return 0, false
}

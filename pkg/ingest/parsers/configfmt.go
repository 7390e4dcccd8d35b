// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsers

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

// YAMLParser turns each top-level mapping key into one chunk, using
// gopkg.in/yaml.v3's node tree (not a line scan) so every chunk's line range
// is exact and nested blocks may recurse one configured level without
// guessing indentation.
type YAMLParser struct {
	// RecurseOneLevel additionally emits a chunk per second-level key when
	// the top-level value is itself a mapping.
	RecurseOneLevel bool
}

// NewYAMLParser constructs the parser with one level of recursion enabled,
// matching the "nested blocks may recurse one level if configured" rule.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{RecurseOneLevel: true}
}

func (p *YAMLParser) Parse(filePath, relativePath string, content []byte, repoID string) Result {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return Result{Success: false, Error: fmt.Sprintf("%s: yaml parse: %v", relativePath, err)}
	}
	lines := strings.Split(strings.ToValidUTF8(string(content), "�"), "\n")

	if len(doc.Content) == 0 {
		return Result{Success: true, TotalLines: len(lines)}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return Result{Success: true, TotalLines: len(lines)}
	}

	var chunks []ingest.Chunk
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode := root.Content[i]
		valNode := root.Content[i+1]
		chunks = append(chunks, yamlNodeChunk(lines, keyNode.Value, keyNode.Line, valNode, relativePath, repoID))

		if p.RecurseOneLevel && valNode.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(valNode.Content); j += 2 {
				childKey := valNode.Content[j]
				childVal := valNode.Content[j+1]
				name := keyNode.Value + "." + childKey.Value
				chunks = append(chunks, yamlNodeChunk(lines, name, childKey.Line, childVal, relativePath, repoID))
			}
		}
	}

	return Result{Success: true, Chunks: chunks, TotalLines: len(lines)}
}

func yamlNodeChunk(lines []string, name string, keyLine int, node *yaml.Node, relativePath, repoID string) ingest.Chunk {
	start := keyLine
	end := yamlNodeEndLine(node, start, len(lines))
	if start < 1 {
		start = 1
	}
	if end < start {
		end = start
	}
	if end > len(lines) {
		end = len(lines)
	}
	body := strings.Join(lines[start-1:end], "\n")
	return ingest.Chunk{
		Content:         body,
		Language:        "yaml",
		ItemType:        "key",
		ItemName:        name,
		FilePath:        relativePath,
		StartLine:       start,
		EndLine:         end,
		RepoID:          repoID,
		Metadata:        map[string]string{},
		ComplexityScore: ingest.ComplexityScore(body),
	}
}

// yamlNodeEndLine derives a closing line number for a YAML value node: the
// deepest line number reachable from its content, since yaml.v3 does not
// expose an explicit end line on the node itself.
func yamlNodeEndLine(node *yaml.Node, fallback, maxLine int) int {
	max := node.Line
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n.Line > max {
			max = n.Line
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(node)
	if max < fallback {
		max = fallback
	}
	if max > maxLine {
		max = maxLine
	}
	return max
}

// HCLParser extracts top-level blocks (resource/module/variable/etc.) from
// an HCL/Terraform-family document via a brace-balanced block walk. No HCL
// grammar is available anywhere in the reference pack, so this follows the
// same structural-scan technique as the systems-language and Solidity
// parsers rather than a full HCL AST.
type HCLParser struct{}

// NewHCLParser constructs the parser. Stateless: safe to share.
func NewHCLParser() *HCLParser {
	return &HCLParser{}
}

func (p *HCLParser) Parse(filePath, relativePath string, content []byte, repoID string) Result {
	lines := strings.Split(strings.ToValidUTF8(string(content), "�"), "\n")

	var chunks []ingest.Chunk
	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			i++
			continue
		}
		if !strings.Contains(trimmed, "{") {
			i++
			continue
		}
		end, ok := scanSolidityItemEnd(lines, i)
		if !ok {
			return Result{Success: false, TotalLines: len(lines), Error: fmt.Sprintf("%s: unbalanced block starting at line %d", relativePath, i+1)}
		}
		name := hclBlockName(trimmed)
		body := strings.Join(lines[i:end+1], "\n")
		chunks = append(chunks, ingest.Chunk{
			Content:         body,
			Language:        "hcl",
			ItemType:        "block",
			ItemName:        name,
			FilePath:        relativePath,
			StartLine:       i + 1,
			EndLine:         end + 1,
			RepoID:          repoID,
			Metadata:        map[string]string{},
			ComplexityScore: ingest.ComplexityScore(body),
		})
		i = end + 1
	}

	return Result{Success: true, Chunks: chunks, TotalLines: len(lines)}
}

func hclBlockName(trimmed string) string {
	header := trimmed[:strings.IndexByte(trimmed, '{')]
	fields := strings.Fields(header)
	var parts []string
	for _, f := range fields {
		parts = append(parts, strings.Trim(f, `"`))
	}
	if len(parts) == 0 {
		return ingest.AnonymousName(0)
	}
	return strings.Join(parts, ".")
}

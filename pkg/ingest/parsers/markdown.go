// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsers

import (
	"strings"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

// docTypeKeywords chooses the fixed document-type enumeration by keyword on
// the file path, checked in this order; "documentation" is the default.
var docTypeKeywords = []struct {
	keyword string
	docType string
}{
	{"arch", "architecture"},
	{"api", "api"},
	{"auth", "authentication"},
	{"deploy", "deployment"},
	{"develop", "development"},
	{"integrat", "integration"},
}

// MarkdownParser splits a document on level-2 ("## ") headings. Content
// between two level-2 headings — including any nested deeper headings and
// fenced code blocks — is one chunk. Content above the first level-2
// heading (the title) is discarded: it contributes no chunk.
type MarkdownParser struct{}

// NewMarkdownParser constructs the parser. Stateless: safe to share.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

func (p *MarkdownParser) Parse(filePath, relativePath string, content []byte, repoID string) Result {
	text := strings.ToValidUTF8(string(content), "�")
	lines := strings.Split(text, "\n")
	docType := classifyDocType(relativePath)

	type section struct {
		heading string
		start   int
	}
	var sections []section
	inFence := false
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(t, "## ") && !strings.HasPrefix(t, "###") {
			sections = append(sections, section{heading: strings.TrimSpace(strings.TrimPrefix(t, "## ")), start: i})
		}
	}

	if len(sections) == 0 {
		return Result{Success: true, Chunks: nil, TotalLines: len(lines)}
	}

	var chunks []ingest.Chunk
	for idx, s := range sections {
		end := len(lines) - 1
		if idx+1 < len(sections) {
			end = sections[idx+1].start - 1
		}
		body := strings.Join(lines[s.start:end+1], "\n")
		name := s.heading
		if name == "" {
			name = ingest.AnonymousName(s.start + 1)
		}
		chunks = append(chunks, ingest.Chunk{
			Content:   body,
			Language:  "markdown",
			ItemType:  docType,
			ItemName:  name,
			FilePath:  relativePath,
			StartLine: s.start + 1,
			EndLine:   end + 1,
			RepoID:    repoID,
			Metadata: map[string]string{
				"doc_type":      docType,
				"section_level": "2",
			},
			ComplexityScore: ingest.ComplexityScore(body),
		})
	}

	return Result{Success: true, Chunks: chunks, TotalLines: len(lines)}
}

func classifyDocType(path string) string {
	lower := strings.ToLower(path)
	for _, entry := range docTypeKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.docType
		}
	}
	return "documentation"
}

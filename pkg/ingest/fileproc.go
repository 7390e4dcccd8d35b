// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kraklabs/ingestctl/pkg/ingest/parsers"
)

// FileOutcome records what happened to one discovered file: either a set of
// chunks, or a skip/error reason. A FileProcessor never aborts a repository
// walk because of one bad file — every outcome, success or failure, is
// reported through the stream.
type FileOutcome struct {
	RelativePath string
	Language     string
	Chunks       []Chunk
	Skipped      bool
	SkipReason   string
	Err          error
}

// FileProcessor walks one repository's working tree, dispatches each
// eligible file to its language parser, and classifies each resulting
// chunk's business domain. It is single-threaded by design: the walk and
// parse stage runs ahead of the concurrent embedding stage, not inside it.
type FileProcessor struct {
	registry *parsers.Registry
	cfg      Config
	logger   *slog.Logger
}

// NewFileProcessor constructs a FileProcessor bound to cfg's skip-dir set,
// size budget, and domain patterns.
func NewFileProcessor(cfg Config, registry *parsers.Registry, logger *slog.Logger) *FileProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileProcessor{registry: registry, cfg: cfg, logger: logger}
}

// Walk discovers every eligible file under repoDir and returns one
// FileOutcome per file, ordered as a sequence of contiguous per-language
// groups: outcomes are sorted by (language, relative path), so all of one
// language's files are emitted together in lexical order before the next
// language begins. That grouping is what lets a checkpoint record a
// (repo, language, file) position that resume can act on. Each chunk's repo
// component is the first segment of its file's relative path; files sitting
// directly in repoDir use repoDir's base name.
func (fp *FileProcessor) Walk(repoID, repoDir string) ([]FileOutcome, error) {
	repoComponent := filepath.Base(strings.TrimRight(repoDir, string(filepath.Separator)))

	type pathLang struct {
		path     string
		language string
	}
	var items []pathLang
	err := filepath.WalkDir(repoDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			fp.logger.Warn("fileproc.walk_error", "path", path, "err", walkErr)
			return nil
		}
		if d.IsDir() {
			if d.Name() != "." && fp.cfg.SkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(d.Name())
		language := fp.registry.LanguageForExt(ext)
		if language == "" {
			return nil
		}
		items = append(items, pathLang{path: path, language: language})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fileproc: walk %s: %w", repoDir, err)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].language != items[j].language {
			return items[i].language < items[j].language
		}
		return items[i].path < items[j].path
	})

	outcomes := make([]FileOutcome, 0, len(items))
	for _, it := range items {
		outcomes = append(outcomes, fp.processFile(repoID, repoDir, repoComponent, it.path, it.language))
	}
	return outcomes, nil
}

func (fp *FileProcessor) processFile(repoID, repoDir, repoComponent, path, language string) FileOutcome {
	relPath, err := filepath.Rel(repoDir, path)
	if err != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	info, err := os.Stat(path)
	if err != nil {
		return FileOutcome{RelativePath: relPath, Language: language, Err: fmt.Errorf("stat: %w", err)}
	}
	if info.Size() > fp.cfg.MaxFileSizeBytes {
		return FileOutcome{RelativePath: relPath, Language: language, Skipped: true, SkipReason: fmt.Sprintf("exceeds max file size (%d > %d bytes)", info.Size(), fp.cfg.MaxFileSizeBytes)}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return FileOutcome{RelativePath: relPath, Language: language, Err: fmt.Errorf("read: %w", err)}
	}

	parser, ok := fp.registry.ParserFor(language)
	if !ok {
		return FileOutcome{RelativePath: relPath, Language: language, Skipped: true, SkipReason: fmt.Sprintf("no parser for language %q", language)}
	}

	result := parser.Parse(path, relPath, content, repoID)
	if !result.Success {
		fp.logger.Warn("fileproc.parse_failed", "path", relPath, "language", language, "err", result.Error)
		return FileOutcome{RelativePath: relPath, Language: language, Err: fmt.Errorf("parse: %s", result.Error)}
	}

	component := repoComponent
	if idx := strings.IndexByte(relPath, '/'); idx > 0 {
		component = relPath[:idx]
	}

	chunks := make([]Chunk, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		c.RepoComponent = component
		c.BusinessDomain = ClassifyBusinessDomain(relPath, c.Content, fp.cfg.DomainPatterns)
		if c.Metadata == nil {
			c.Metadata = map[string]string{}
		}
		chunks = append(chunks, c)
	}

	return FileOutcome{RelativePath: relPath, Language: language, Chunks: chunks}
}

// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package parsers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/ingestctl/pkg/ingest"
)

// TSFamilyParser extracts functions, classes, interfaces, type aliases,
// constants, and top-level exports from the TypeScript/JavaScript family
// (.ts, .tsx, .js, .jsx). It is grammar-accurate: .ts and .tsx each get
// their own tree-sitter grammar and every other extension (.js, .jsx) uses
// the javascript grammar, each drawn from its own sync.Pool (tree-sitter
// parsers are not safe for concurrent reuse).
type TSFamilyParser struct {
	jsPool  sync.Pool
	tsPool  sync.Pool
	tsxPool sync.Pool
	once    sync.Once
}

// NewTSFamilyParser constructs the parser; grammar pools are initialized
// lazily on first use.
func NewTSFamilyParser() *TSFamilyParser {
	return &TSFamilyParser{}
}

func (p *TSFamilyParser) init() {
	p.once.Do(func() {
		p.jsPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(javascript.GetLanguage())
			return parser
		}
		p.tsPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(typescript.GetLanguage())
			return parser
		}
		p.tsxPool.New = func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(tsx.GetLanguage())
			return parser
		}
	})
}

func (p *TSFamilyParser) Parse(filePath, relativePath string, content []byte, repoID string) Result {
	p.init()

	var pool *sync.Pool
	isTS := false
	switch {
	case strings.HasSuffix(relativePath, ".tsx"):
		pool, isTS = &p.tsxPool, true
	case strings.HasSuffix(relativePath, ".ts"):
		pool, isTS = &p.tsPool, true
	default:
		pool, isTS = &p.jsPool, false
	}

	parserObj := pool.Get()
	parser, ok := parserObj.(*sitter.Parser)
	if !ok {
		return Result{Success: false, Error: "invalid parser instance from pool"}
	}
	defer pool.Put(parser)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("%s: tree-sitter parse: %v", relativePath, err)}
	}
	root := tree.RootNode()

	lines := strings.Split(strings.ToValidUTF8(string(content), "�"), "\n")
	imports := collectTSImports(root, content)
	importMeta := strings.Join(imports, ";")

	var chunks []ingest.Chunk
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		chunks = append(chunks, extractTSItem(child, content, relativePath, repoID, importMeta, isTS)...)
	}

	return Result{Success: true, Chunks: chunks, TotalLines: len(lines)}
}

// extractTSItem unwraps export_statement wrappers and dispatches by node
// type. Returns zero or more chunks (a lexical_declaration may declare
// several identifiers).
func extractTSItem(node *sitter.Node, source []byte, relativePath, repoID, importMeta string, isTS bool) []ingest.Chunk {
	if node == nil {
		return nil
	}

	target := node
	if node.Type() == "export_statement" {
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			target = decl
		} else if node.NamedChildCount() > 0 {
			target = node.NamedChild(0)
		} else {
			return nil
		}
	}

	switch target.Type() {
	case "function_declaration", "generator_function_declaration":
		return []ingest.Chunk{tsChunk(node, target, source, relativePath, repoID, importMeta, "function", tsName(target, source), isTS)}
	case "class_declaration":
		return []ingest.Chunk{tsChunk(node, target, source, relativePath, repoID, importMeta, "class", tsName(target, source), isTS)}
	case "interface_declaration":
		return []ingest.Chunk{tsChunk(node, target, source, relativePath, repoID, importMeta, "interface", tsName(target, source), isTS)}
	case "type_alias_declaration":
		return []ingest.Chunk{tsChunk(node, target, source, relativePath, repoID, importMeta, "type_alias", tsName(target, source), isTS)}
	case "lexical_declaration", "variable_declaration":
		return tsVariableChunks(node, target, source, relativePath, repoID, importMeta, isTS)
	default:
		return nil
	}
}

func tsVariableChunks(outer, target *sitter.Node, source []byte, relativePath, repoID, importMeta string, isTS bool) []ingest.Chunk {
	itemType := "variable"
	declKeyword := strings.TrimSpace(strings.Split(target.Content(source), " ")[0])
	if declKeyword == "const" || declKeyword == "let" {
		itemType = "constant"
	}

	var chunks []ingest.Chunk
	for i := 0; i < int(target.NamedChildCount()); i++ {
		declarator := target.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		name := ingest.AnonymousName(int(outer.StartPoint().Row) + 1)
		if nameNode != nil {
			name = nameNode.Content(source)
		}
		chunks = append(chunks, tsChunk(outer, outer, source, relativePath, repoID, importMeta, itemType, name, isTS))
	}
	if len(chunks) == 0 {
		chunks = append(chunks, tsChunk(outer, outer, source, relativePath, repoID, importMeta, itemType, ingest.AnonymousName(int(outer.StartPoint().Row)+1), isTS))
	}
	return chunks
}

func tsName(node *sitter.Node, source []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return nameNode.Content(source)
	}
	return ingest.AnonymousName(int(node.StartPoint().Row) + 1)
}

func tsChunk(outer, target *sitter.Node, source []byte, relativePath, repoID, importMeta, itemType, name string, isTS bool) ingest.Chunk {
	body := outer.Content(source)
	language := "javascript"
	if isTS {
		language = "typescript"
	}

	meta := map[string]string{
		"imports": importMeta,
		"is_ts":   fmt.Sprintf("%t", isTS),
	}
	if isReactComponent(name, body) {
		meta["is_react_component"] = "true"
	}

	c := ingest.Chunk{
		Content:         body,
		Language:        language,
		ItemType:        itemType,
		ItemName:        name,
		FilePath:        relativePath,
		StartLine:       int(outer.StartPoint().Row) + 1,
		EndLine:         int(outer.EndPoint().Row) + 1,
		RepoID:          repoID,
		Metadata:        meta,
		ComplexityScore: ingest.ComplexityScore(body),
	}
	_ = target
	return c
}

// isReactComponent flags an uppercase-leading name whose body references
// JSX elements or a hook-style identifier (a "use" prefix followed by an
// uppercase letter).
func isReactComponent(name, body string) bool {
	if name == "" || !('A' <= name[0] && name[0] <= 'Z') {
		return false
	}
	if strings.Contains(body, "</") || strings.Contains(body, "/>") {
		return true
	}
	idx := 0
	for {
		pos := strings.Index(body[idx:], "use")
		if pos < 0 {
			return false
		}
		pos += idx
		after := pos + 3
		if after < len(body) && body[after] >= 'A' && body[after] <= 'Z' {
			return true
		}
		idx = pos + 3
		if idx >= len(body) {
			return false
		}
	}
}

func collectTSImports(root *sitter.Node, source []byte) []string {
	var imports []string
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "import_statement" {
			imports = append(imports, strings.TrimSpace(child.Content(source)))
		}
	}
	return imports
}

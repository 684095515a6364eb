package chunker

import (
	"context"
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// Boundary is a syntactic range reported by the boundary provider: a named
// function, method, or class definition with its line span.
type Boundary struct {
	Name      string
	Kind      Kind
	StartLine int
	EndLine   int
}

// BoundarySource supplies syntax boundaries for a source file. The AST
// chunker is the default implementation; tests substitute fakes.
type BoundarySource interface {
	Boundaries(path string, src []byte) ([]Boundary, error)
}

// ASTChunker parses source files using tree-sitter and reports the line
// ranges of top-level definitions.
type ASTChunker struct {
	registry *Registry
}

// NewASTChunker creates a chunker backed by the given registry.
func NewASTChunker(r *Registry) *ASTChunker {
	return &ASTChunker{registry: r}
}

// Boundaries parses the source and returns definition boundaries. If no
// grammar is registered for the file, it returns nil (caller should use the
// brace fallback).
func (c *ASTChunker) Boundaries(path string, src []byte) ([]Boundary, error) {
	spec, lang := c.registry.Lookup(path)
	if spec == nil {
		return nil, nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(spec.Language)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	q, err := sitter.NewQuery([]byte(spec.Query), spec.Language)
	if err != nil {
		return nil, fmt.Errorf("compile query for %s: %w", lang, err)
	}
	defer q.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, tree.RootNode())

	var captures []capture
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var chunkNode *sitter.Node
		var nameStr string
		for _, cap := range m.Captures {
			capName := q.CaptureNameForId(cap.Index)
			switch capName {
			case "chunk":
				chunkNode = cap.Node
			case "name":
				nameStr = cap.Node.Content(src)
			}
		}
		if chunkNode == nil {
			continue
		}
		captures = append(captures, capture{
			name:      nameStr,
			nodeType:  chunkNode.Type(),
			startLine: int(chunkNode.StartPoint().Row) + 1,
			endLine:   int(chunkNode.EndPoint().Row) + 1,
			startByte: chunkNode.StartByte(),
			endByte:   chunkNode.EndByte(),
		})
	}

	// Deduplicate: when captures overlap, keep only the outer (larger) node.
	captures = dedup(captures)

	bounds := make([]Boundary, 0, len(captures))
	for _, cap := range captures {
		kind, ok := spec.Kinds[cap.nodeType]
		if !ok {
			kind = KindFunction
		}
		bounds = append(bounds, Boundary{
			Name:      cap.name,
			Kind:      kind,
			StartLine: cap.startLine,
			EndLine:   cap.endLine,
		})
	}
	return bounds, nil
}

// dedup removes captures that are fully contained within a larger capture.
func dedup(caps []capture) []capture {
	if len(caps) <= 1 {
		return caps
	}
	// Sort by start byte ascending, then by size descending (larger first).
	sort.Slice(caps, func(i, j int) bool {
		if caps[i].startByte != caps[j].startByte {
			return caps[i].startByte < caps[j].startByte
		}
		return (caps[i].endByte - caps[i].startByte) > (caps[j].endByte - caps[j].startByte)
	})

	var result []capture
	var lastEnd uint32
	for _, c := range caps {
		if c.startByte >= lastEnd || lastEnd == 0 {
			result = append(result, c)
			if c.endByte > lastEnd {
				lastEnd = c.endByte
			}
		}
		// Skip captures contained within the previous one.
	}
	return result
}

type capture struct {
	name      string
	nodeType  string
	startLine int
	endLine   int
	startByte uint32
	endByte   uint32
}

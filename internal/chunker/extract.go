package chunker

import "strings"

// DefaultMinLines is the smallest chunk worth deduplicating. Anything
// shorter would dominate pairwise-comparison cost without useful savings.
const DefaultMinLines = 5

// Chunk is a semantic code unit with line-range provenance. ID and Embedding
// are filled in by the pipeline; everything else by the extractor.
type Chunk struct {
	ID             int
	FilePath       string
	Name           string
	Kind           Kind
	StartLine      int
	EndLine        int
	Content        string
	NormalizedHash string
	Embedding      []float32
}

// Lines returns the number of source lines the chunk spans.
func (c *Chunk) Lines() int {
	return c.EndLine - c.StartLine + 1
}

// Extractor splits files into chunks using a boundary source for primary
// (function/method/class) ranges and a brace scanner for everything the
// parser missed.
type Extractor struct {
	source   BoundarySource
	minLines int
}

// NewExtractor creates an extractor. minLines <= 0 selects DefaultMinLines.
func NewExtractor(source BoundarySource, minLines int) *Extractor {
	if minLines <= 0 {
		minLines = DefaultMinLines
	}
	return &Extractor{source: source, minLines: minLines}
}

// Extract produces the chunks for one file. A boundary-provider failure is
// not fatal: the file degrades to brace-fallback blocks and the error is
// returned alongside them for the caller's error counters.
func (e *Extractor) Extract(path string, src []byte) ([]Chunk, error) {
	lines := strings.Split(string(src), "\n")

	bounds, berr := e.source.Boundaries(path, src)
	if berr != nil {
		bounds = nil
	}

	// Mark lines covered by primary boundaries, then brace-scan the rest so
	// uncaptured regions still produce fallback blocks.
	covered := make([]bool, len(lines)+1)
	for _, b := range bounds {
		for i := b.StartLine; i <= b.EndLine && i < len(covered); i++ {
			covered[i] = true
		}
	}
	for _, fb := range braceBlocks(lines) {
		if overlapsCovered(covered, fb.StartLine, fb.EndLine) {
			continue
		}
		bounds = append(bounds, fb)
	}

	var chunks []Chunk
	for _, b := range bounds {
		if b.EndLine-b.StartLine+1 < e.minLines {
			continue
		}
		start := b.StartLine - 1
		end := b.EndLine
		if start < 0 {
			start = 0
		}
		if end > len(lines) {
			end = len(lines)
		}
		content := strings.Join(lines[start:end], "\n")
		chunks = append(chunks, Chunk{
			FilePath:       path,
			Name:           b.Name,
			Kind:           b.Kind,
			StartLine:      b.StartLine,
			EndLine:        b.EndLine,
			Content:        content,
			NormalizedHash: NormalizedHash(content),
		})
	}
	return chunks, berr
}

func overlapsCovered(covered []bool, start, end int) bool {
	for i := start; i <= end && i < len(covered); i++ {
		if i >= 0 && covered[i] {
			return true
		}
	}
	return false
}

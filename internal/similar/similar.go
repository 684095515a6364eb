// Package similar scores pairs of code chunks with the strongest applicable
// similarity signal: exact normalized-hash equality, embedding cosine
// similarity, or structural token overlap.
package similar

import (
	"fmt"
	"math"

	"dupscan/internal/chunker"
)

// Signal identifies which comparison produced an edge. Higher values are
// higher confidence.
type Signal int

const (
	SignalStructural Signal = iota + 1
	SignalSemantic
	SignalExact
)

func (s Signal) String() string {
	switch s {
	case SignalExact:
		return "exact"
	case SignalSemantic:
		return "semantic"
	case SignalStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// MarshalJSON renders signals as their names in reports.
func (s Signal) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s.String())), nil
}

// Default acceptance thresholds. The exact signal's threshold is implicitly
// 1.0 and is always a stricter superset of the semantic one.
const (
	DefaultSemanticThreshold   = 0.75
	DefaultStructuralThreshold = 0.60
)

// Edge is an accepted pairwise match between two chunks, referenced by their
// arena ids. Exactly one signal per edge.
type Edge struct {
	A      int     `json:"a"`
	B      int     `json:"b"`
	Score  float64 `json:"score"`
	Signal Signal  `json:"signal"`
}

// Comparer evaluates chunk pairs in strict priority order: exact, then
// semantic, then structural. The first signal to clear its threshold wins
// and lower-priority signals are not evaluated. This is the single
// computation path for similarity; every surface goes through it so a
// group's score can never diverge between callers.
type Comparer struct {
	SemanticThreshold   float64
	StructuralThreshold float64
}

// NewComparer creates a comparer with the given thresholds; non-positive
// values select the defaults.
func NewComparer(semantic, structural float64) *Comparer {
	if semantic <= 0 {
		semantic = DefaultSemanticThreshold
	}
	if structural <= 0 {
		structural = DefaultStructuralThreshold
	}
	return &Comparer{SemanticThreshold: semantic, StructuralThreshold: structural}
}

// Compare returns the edge for a chunk pair, or ok=false when no signal
// clears its threshold. Chunks without embeddings (provider unavailable or
// not yet embedded) skip the semantic signal and fall through to structural.
func (c *Comparer) Compare(a, b *chunker.Chunk) (Edge, bool) {
	if a.NormalizedHash == b.NormalizedHash {
		return Edge{A: a.ID, B: b.ID, Score: 1.0, Signal: SignalExact}, true
	}

	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		if score := Cosine(a.Embedding, b.Embedding); score >= c.SemanticThreshold {
			return Edge{A: a.ID, B: b.ID, Score: clamp01(score), Signal: SignalSemantic}, true
		}
	}

	if score := TokenOverlap(a.Content, b.Content); score >= c.StructuralThreshold {
		return Edge{A: a.ID, B: b.ID, Score: clamp01(score), Signal: SignalStructural}, true
	}

	return Edge{}, false
}

// Cosine computes cosine similarity between two vectors. Mismatched or empty
// vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

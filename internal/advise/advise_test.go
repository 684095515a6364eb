package advise

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dupscan/internal/chunker"
	"dupscan/internal/group"
	"dupscan/internal/similar"
)

func mkMember(kind chunker.Kind, lines int, content string) *chunker.Chunk {
	return &chunker.Chunk{Kind: kind, StartLine: 1, EndLine: lines, Content: content}
}

func TestAdviseStrategyRules(t *testing.T) {
	tests := []struct {
		name     string
		group    group.Group
		members  []*chunker.Chunk
		expected Strategy
	}{
		{
			name:  "exact duplicates extract a shared definition",
			group: group.Group{Signal: similar.SignalExact, MaxSimilarity: 1.0},
			members: []*chunker.Chunk{
				mkMember(chunker.KindFunction, 10, "function a() {}"),
				mkMember(chunker.KindFunction, 10, "function a() {}"),
			},
			expected: ExtractFunction,
		},
		{
			name:  "near-identical semantic becomes a utility",
			group: group.Group{Signal: similar.SignalSemantic, MaxSimilarity: 0.95},
			members: []*chunker.Chunk{
				mkMember(chunker.KindFunction, 10, "function a() {}"),
				mkMember(chunker.KindFunction, 12, "function b() {}"),
			},
			expected: CreateUtility,
		},
		{
			name:  "class members merge",
			group: group.Group{Signal: similar.SignalStructural, MaxSimilarity: 0.7},
			members: []*chunker.Chunk{
				mkMember(chunker.KindClass, 20, "class Widget { }"),
				mkMember(chunker.KindFunction, 18, "function widget() {}"),
			},
			expected: MergeClasses,
		},
		{
			name:  "semantic at threshold with no class construct extracts an interface",
			group: group.Group{Signal: similar.SignalSemantic, MaxSimilarity: 0.8},
			members: []*chunker.Chunk{
				mkMember(chunker.KindFunction, 10, "function a() {}"),
				mkMember(chunker.KindFunction, 10, "function b() {}"),
			},
			expected: CreateInterface,
		},
		{
			name:  "class construct detected in content",
			group: group.Group{Signal: similar.SignalStructural, MaxSimilarity: 0.65},
			members: []*chunker.Chunk{
				mkMember(chunker.KindBlock, 10, "type Widget struct {\n}"),
				mkMember(chunker.KindBlock, 10, "type Gadget struct {\n}"),
			},
			expected: MergeClasses,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Advise(tt.group, tt.members)
			assert.Equal(t, tt.expected, s.Strategy)
			assert.NotEmpty(t, s.Description)
		})
	}
}

func TestEstimateSavings(t *testing.T) {
	members := []*chunker.Chunk{
		mkMember(chunker.KindFunction, 10, ""),
		mkMember(chunker.KindFunction, 10, ""),
		mkMember(chunker.KindFunction, 10, ""),
	}
	s := Advise(group.Group{Signal: similar.SignalExact}, members)
	// (30 total − 10 largest) × 0.7 retention.
	assert.Equal(t, 14, s.EstimatedLinesReduced)
}

func TestSavingsBounds(t *testing.T) {
	cases := [][]int{
		{5, 5},
		{10, 20, 30},
		{7, 7, 7, 7},
		{100, 1},
	}
	for _, lineCounts := range cases {
		var members []*chunker.Chunk
		total, min := 0, lineCounts[0]
		for _, n := range lineCounts {
			members = append(members, mkMember(chunker.KindFunction, n, ""))
			total += n
			if n < min {
				min = n
			}
		}
		s := Advise(group.Group{Signal: similar.SignalExact}, members)
		assert.GreaterOrEqual(t, s.EstimatedLinesReduced, 0)
		assert.LessOrEqual(t, s.EstimatedLinesReduced, total-min)
	}
}

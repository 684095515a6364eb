package similar

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupscan/internal/chunker"
)

func pairSet(pairs [][2]int) map[[2]int]bool {
	set := make(map[[2]int]bool, len(pairs))
	for _, p := range pairs {
		if p[0] > p[1] {
			p[0], p[1] = p[1], p[0]
		}
		set[p] = true
	}
	return set
}

func TestPairsFullBaseline(t *testing.T) {
	chunks := []*chunker.Chunk{
		mkChunk(0, "a", nil),
		mkChunk(1, "b", nil),
		mkChunk(2, "c", nil),
	}
	pairs := Pairs(chunks, false)
	assert.Len(t, pairs, 3)
	assert.Nil(t, Pairs(chunks[:1], false))
}

func TestPairsBucketedKeepsHashEqualPairs(t *testing.T) {
	// Exact duplicates with an unrelated chunk in a distant band between
	// them; the hash-equal pair must always survive bucketing.
	small := mkChunk(0, "function sum(a, b) { return a + b; }", nil)
	big := mkChunk(1, strings.Repeat("filler(); ", 200), nil)
	twin := mkChunk(2, "function sum(a, b) { return a + b; }", nil)
	require.Equal(t, small.NormalizedHash, twin.NormalizedHash)

	set := pairSet(Pairs([]*chunker.Chunk{small, big, twin}, true))
	assert.True(t, set[[2]int{0, 2}], "hash-identical chunks are always paired")
}

func TestPairsBucketedFindsEveryEdgeTheBaselineFinds(t *testing.T) {
	// Similar-sized chunks land in the same or a neighboring band, so every
	// edge the full pairing produces must also come out of the bucketed one.
	var chunks []*chunker.Chunk
	for i := 0; i < 12; i++ {
		content := fmt.Sprintf("if (x%d > 0) { return x%d; } else { return -x%d; }", i, i, i)
		chunks = append(chunks, mkChunk(i, content, nil))
	}
	// A pair of exact twins far apart in the slice.
	chunks = append(chunks,
		mkChunk(12, "while (busy) { wait(); poll(); retry(); }", nil),
		mkChunk(13, "while (busy) { wait(); poll(); retry(); }", nil),
	)

	c := NewComparer(0, 0)
	edgesOf := func(pairs [][2]int) map[[2]int]bool {
		out := make(map[[2]int]bool)
		for _, p := range pairs {
			if _, ok := c.Compare(chunks[p[0]], chunks[p[1]]); ok {
				if p[0] > p[1] {
					p[0], p[1] = p[1], p[0]
				}
				out[p] = true
			}
		}
		return out
	}

	full := edgesOf(Pairs(chunks, false))
	bucketed := edgesOf(Pairs(chunks, true))
	require.NotEmpty(t, full)
	for p := range full {
		assert.True(t, bucketed[p], "baseline edge %v missing from bucketed pairing", p)
	}
}

func TestPairsBucketedNoDuplicatePairs(t *testing.T) {
	chunks := []*chunker.Chunk{
		mkChunk(0, "if (a) { return a; }", nil),
		mkChunk(1, "if (b) { return b; }", nil),
		mkChunk(2, "if (c) { return c; }", nil),
	}
	pairs := Pairs(chunks, true)
	assert.Len(t, pairSet(pairs), len(pairs))
}

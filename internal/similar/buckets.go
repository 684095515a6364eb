package similar

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"dupscan/internal/chunker"
)

// bandWidth is the token-count range that shares one bucket. Chunks whose
// sizes differ by more than a band (plus its neighbor) are too far apart to
// clear any threshold, so they are never candidate pairs.
const bandWidth = 32

// Pairs returns the candidate pair indexes to compare. With bucketed=false it
// is the full O(n²) pairing — the baseline every optimization must match.
// With bucketed=true chunks are pre-bucketed by a coarse xxhash signature of
// (kind, token-count band) and compared within a bucket and its neighboring
// band; hash-identical chunks are always paired regardless of bucket, so
// exact duplicates can never be missed.
func Pairs(chunks []*chunker.Chunk, bucketed bool) [][2]int {
	n := len(chunks)
	if n < 2 {
		return nil
	}

	if !bucketed {
		pairs := make([][2]int, 0, n*(n-1)/2)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				pairs = append(pairs, [2]int{i, j})
			}
		}
		return pairs
	}

	seen := make(map[uint64]bool)
	var pairs [][2]int
	add := func(i, j int) {
		if i > j {
			i, j = j, i
		}
		key := uint64(i)<<32 | uint64(j)
		if seen[key] {
			return
		}
		seen[key] = true
		pairs = append(pairs, [2]int{i, j})
	}

	// Hash-equal chunks first: exact matches survive any bucketing.
	byHash := make(map[string][]int)
	for i, c := range chunks {
		byHash[c.NormalizedHash] = append(byHash[c.NormalizedHash], i)
	}
	for _, idxs := range byHash {
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				add(idxs[i], idxs[j])
			}
		}
	}

	buckets := make(map[uint64][]int)
	for i, c := range chunks {
		buckets[signature(c, 0)] = append(buckets[signature(c, 0)], i)
	}
	for i, c := range chunks {
		sig := signature(c, 0)
		next := signature(c, 1)
		members := buckets[sig]
		for _, j := range members {
			if j != i {
				add(i, j)
			}
		}
		for _, j := range buckets[next] {
			add(i, j)
		}
	}
	return pairs
}

// signature hashes a chunk's kind and token-count band (offset by delta
// bands) into a bucket key.
func signature(c *chunker.Chunk, delta int) uint64 {
	band := len(strings.Fields(c.Content))/bandWidth + delta
	h := xxhash.New()
	h.WriteString(string(c.Kind))
	h.Write([]byte{0, byte(band), byte(band >> 8), byte(band >> 16), byte(band >> 24)})
	return h.Sum64()
}

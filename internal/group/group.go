// Package group merges pairwise similarity edges into maximal duplicate
// groups via connected-component traversal.
package group

import (
	"sort"

	"github.com/google/uuid"

	"dupscan/internal/similar"
)

// Group is a connected component of matched chunks. Membership is by arena
// chunk id; a chunk belongs to at most one group per run.
type Group struct {
	ID      string `json:"id"`
	Members []int  `json:"members"`
	// MaxSimilarity is the maximum edge score inside the component.
	MaxSimilarity float64 `json:"maxSimilarity"`
	// Signal is the strongest signal type present among the component's
	// edges, ranked exact > semantic > structural.
	Signal similar.Signal `json:"signal"`
}

// Components computes connected components over the accepted edges and
// returns every component with at least two members. Transitivity is
// intentional: if A matches B and B matches C, all three are grouped even if
// A and C were never directly compared.
func Components(edges []similar.Edge) []Group {
	if len(edges) == 0 {
		return nil
	}

	adj := make(map[int][]int)
	for _, e := range edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}

	vertices := make([]int, 0, len(adj))
	for v := range adj {
		vertices = append(vertices, v)
	}
	sort.Ints(vertices)

	// Iterative DFS; component index per vertex.
	component := make(map[int]int, len(adj))
	var memberSets [][]int
	for _, start := range vertices {
		if _, visited := component[start]; visited {
			continue
		}
		idx := len(memberSets)
		var members []int
		stack := []int{start}
		component[start] = idx
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, v)
			for _, w := range adj[v] {
				if _, visited := component[w]; !visited {
					component[w] = idx
					stack = append(stack, w)
				}
			}
		}
		memberSets = append(memberSets, members)
	}

	groups := make([]Group, len(memberSets))
	for i, members := range memberSets {
		sort.Ints(members)
		groups[i] = Group{
			ID:      uuid.NewString(),
			Members: members,
		}
	}

	// Fold edge scores and signals into their component.
	for _, e := range edges {
		g := &groups[component[e.A]]
		if e.Score > g.MaxSimilarity {
			g.MaxSimilarity = e.Score
		}
		if e.Signal > g.Signal {
			g.Signal = e.Signal
		}
	}

	// Edges always connect ≥2 vertices, so every component here qualifies,
	// but guard anyway.
	out := groups[:0]
	for _, g := range groups {
		if len(g.Members) >= 2 {
			out = append(out, g)
		}
	}
	return out
}

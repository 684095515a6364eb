// Package advise maps duplicate groups to consolidation strategies and
// estimated line savings.
package advise

import (
	"fmt"
	"strings"

	"dupscan/internal/chunker"
	"dupscan/internal/group"
	"dupscan/internal/similar"
)

// Strategy is the suggested refactor for a duplicate group.
type Strategy string

const (
	ExtractFunction Strategy = "extract-function"
	CreateUtility   Strategy = "create-utility"
	MergeClasses    Strategy = "merge-classes"
	CreateInterface Strategy = "create-interface"
)

// retentionFactor discounts the raw removable line count for residual glue
// and boilerplate a refactor cannot eliminate.
const retentionFactor = 0.7

// nearIdenticalScore is the semantic score above which parameterizing the
// differences into one utility is worth suggesting.
const nearIdenticalScore = 0.9

// Suggestion is the consolidation advice for one duplicate group.
type Suggestion struct {
	GroupID               string   `json:"groupId"`
	Strategy              Strategy `json:"strategy"`
	EstimatedLinesReduced int      `json:"estimatedLinesReduced"`
	Description           string   `json:"description"`
}

// Advise maps a group to a refactor strategy by deterministic rule order and
// estimates the line savings. The estimate is a heuristic, never negative.
func Advise(g group.Group, members []*chunker.Chunk) Suggestion {
	s := Suggestion{GroupID: g.ID}

	switch {
	case g.Signal == similar.SignalExact:
		s.Strategy = ExtractFunction
		s.Description = "identical code; extract into one shared definition"
	case g.Signal == similar.SignalSemantic && g.MaxSimilarity > nearIdenticalScore:
		s.Strategy = CreateUtility
		s.Description = "near-identical; parameterize differences into a utility"
	case anyClassConstruct(members):
		s.Strategy = MergeClasses
		s.Description = "overlapping class definitions; merge into one class"
	default:
		s.Strategy = CreateInterface
		s.Description = "similar structure; extract a common interface"
	}

	s.Description = fmt.Sprintf("%d occurrences: %s", len(members), s.Description)
	s.EstimatedLinesReduced = estimateSavings(members)
	return s
}

// estimateSavings assumes all but the largest occurrence can be removed,
// discounted by the retention factor and floored at zero.
func estimateSavings(members []*chunker.Chunk) int {
	total, largest := 0, 0
	for _, m := range members {
		lines := m.Lines()
		total += lines
		if lines > largest {
			largest = lines
		}
	}
	saved := int(float64(total-largest) * retentionFactor)
	if saved < 0 {
		return 0
	}
	return saved
}

func anyClassConstruct(members []*chunker.Chunk) bool {
	for _, m := range members {
		if m.Kind == chunker.KindClass {
			return true
		}
		if strings.Contains(m.Content, "class ") || strings.Contains(m.Content, " struct") {
			return true
		}
	}
	return false
}

package pipeline

import (
	"fmt"
	"time"

	"dupscan/internal/advise"
	"dupscan/internal/chunker"
	"dupscan/internal/detect"
	"dupscan/internal/group"
	"dupscan/internal/similar"
)

// GroupMember locates one occurrence of duplicated code.
type GroupMember struct {
	FilePath  string       `json:"filePath"`
	Name      string       `json:"name,omitempty"`
	Kind      chunker.Kind `json:"kind"`
	StartLine int          `json:"startLine"`
	EndLine   int          `json:"endLine"`
}

// GroupReport is a duplicate group expanded with member locations and its
// consolidation suggestion.
type GroupReport struct {
	ID            string            `json:"id"`
	Signal        similar.Signal    `json:"signal"`
	MaxSimilarity float64           `json:"maxSimilarity"`
	Members       []GroupMember     `json:"members"`
	Suggestion    advise.Suggestion `json:"suggestion"`
}

// Summary aggregates the run's findings.
type Summary struct {
	ExactCount         int `json:"exactCount"`
	SemanticCount      int `json:"semanticCount"`
	StructuralCount    int `json:"structuralCount"`
	TotalLinesAffected int `json:"totalLinesAffected"`
	PotentialSavings   int `json:"potentialSavings"`
}

// Report is the final output of one pipeline run. A report is produced even
// when stages hit non-fatal errors; Partial marks runs cut short by the
// deadline.
type Report struct {
	RunID               string           `json:"runId"`
	ProjectID           string           `json:"projectId"`
	Changes             detect.ChangeSet `json:"changes"`
	TotalChunksAnalyzed int              `json:"totalChunksAnalyzed"`
	DuplicateGroups     []GroupReport    `json:"duplicateGroups"`
	Summary             Summary          `json:"summary"`
	Recommendations     []string         `json:"recommendations"`
	Partial             bool             `json:"partial"`
	Errors              ErrorStats       `json:"errors"`
	Duration            time.Duration    `json:"durationNs"`
}

// buildReport assembles group views, the summary, and recommendations from
// the run's raw results.
func buildReport(groups []group.Group, chunks []*chunker.Chunk) ([]GroupReport, Summary, []string) {
	var views []GroupReport
	var summary Summary
	var recommendations []string

	for _, g := range groups {
		members := make([]*chunker.Chunk, 0, len(g.Members))
		view := GroupReport{
			ID:            g.ID,
			Signal:        g.Signal,
			MaxSimilarity: g.MaxSimilarity,
		}
		for _, id := range g.Members {
			c := chunks[id]
			members = append(members, c)
			view.Members = append(view.Members, GroupMember{
				FilePath:  c.FilePath,
				Name:      c.Name,
				Kind:      c.Kind,
				StartLine: c.StartLine,
				EndLine:   c.EndLine,
			})
			summary.TotalLinesAffected += c.Lines()
		}
		view.Suggestion = advise.Advise(g, members)
		summary.PotentialSavings += view.Suggestion.EstimatedLinesReduced

		switch g.Signal {
		case similar.SignalExact:
			summary.ExactCount++
		case similar.SignalSemantic:
			summary.SemanticCount++
		case similar.SignalStructural:
			summary.StructuralCount++
		}

		recommendations = append(recommendations, fmt.Sprintf(
			"%s: %s (about %d lines saved, strongest signal %s)",
			view.Suggestion.Strategy, view.Suggestion.Description,
			view.Suggestion.EstimatedLinesReduced, g.Signal,
		))
		views = append(views, view)
	}
	return views, summary, recommendations
}

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"dupscan/internal/pipeline"
)

// Theme defines the color scheme for console output.
type Theme struct {
	Header   lipgloss.Style
	Signal   lipgloss.Style
	Score    lipgloss.Style
	Location lipgloss.Style
	Summary  lipgloss.Style
	Warn     lipgloss.Style
	Dim      lipgloss.Style
}

var theme = Theme{
	Header:   lipgloss.NewStyle().Bold(true),
	Signal:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
	Score:    lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
	Location: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	Summary:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82")),
	Warn:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
	Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "%s\n", theme.Header.Render(fmt.Sprintf(
		"Scanned %d chunks in %s (%d added, %d modified, %d deleted, %d unchanged files)",
		r.TotalChunksAnalyzed, r.Duration.Round(time.Millisecond),
		len(r.Changes.Added), len(r.Changes.Modified), len(r.Changes.Deleted), r.Changes.Unchanged,
	)))
	if r.Partial {
		fmt.Fprintf(w, "%s\n", theme.Warn.Render("Run hit its deadline; results are partial"))
	}
	if r.Changes.Degraded {
		fmt.Fprintf(w, "%s\n", theme.Warn.Render("Hash store unavailable; every file was rescanned"))
	}

	if len(r.DuplicateGroups) == 0 {
		fmt.Fprintf(w, "\nNo duplicate groups found.\n")
	}
	for i, g := range r.DuplicateGroups {
		fmt.Fprintf(w, "\n%s %s %s\n",
			theme.Header.Render(fmt.Sprintf("Group %d", i+1)),
			theme.Signal.Render(g.Signal.String()),
			theme.Score.Render(fmt.Sprintf("%.2f", g.MaxSimilarity)),
		)
		for _, m := range g.Members {
			name := m.Name
			if name == "" {
				name = string(m.Kind)
			}
			fmt.Fprintf(w, "  %s %s\n",
				theme.Location.Render(fmt.Sprintf("%s:%d-%d", m.FilePath, m.StartLine, m.EndLine)),
				theme.Dim.Render(name),
			)
		}
		fmt.Fprintf(w, "  %s %s\n", theme.Dim.Render("suggestion:"), g.Suggestion.Description)
	}

	fmt.Fprintf(w, "\n%s\n", theme.Summary.Render(fmt.Sprintf(
		"%d exact, %d semantic, %d structural groups; %d lines affected, about %d lines recoverable",
		r.Summary.ExactCount, r.Summary.SemanticCount, r.Summary.StructuralCount,
		r.Summary.TotalLinesAffected, r.Summary.PotentialSavings,
	)))
	if total := r.Errors.Total(); total > 0 {
		fmt.Fprintf(w, "%s\n", theme.Warn.Render(fmt.Sprintf(
			"%d non-fatal errors (%d file reads, %d extractions, %d embeddings, %d store)",
			total, r.Errors.FileReads, r.Errors.Extractions, r.Errors.Embeddings, r.Errors.Store,
		)))
	}
}

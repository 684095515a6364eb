package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"dupscan/internal/chunker"
	"dupscan/internal/chunker/languages"
	"dupscan/internal/embedder"
	"dupscan/internal/pipeline"
	"dupscan/internal/store"
)

var (
	flagWorkers             int
	flagMinLines            int
	flagSemanticThreshold   float64
	flagStructuralThreshold float64
	flagFull                bool
	flagBucketed            bool
	flagJSON                bool
	flagTimeout             time.Duration
)

var scanCmd = &cobra.Command{
	Use:   "scan <path>",
	Short: "Scan a codebase for duplicate code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		coord, st, err := newCoordinator(root, flagFull)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := context.Background()
		if flagTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, flagTimeout)
			defer cancel()
		}

		report, err := coord.Run(ctx)
		if err != nil {
			return err
		}

		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(os.Stdout, report)
		return nil
	},
}

// newCoordinator wires the pipeline's collaborators for a project root. The
// returned store must be closed by the caller.
func newCoordinator(root string, full bool) (*pipeline.Coordinator, *store.SQLiteStore, error) {
	dbPath := flagDB
	if dbPath == "" {
		dbPath = filepath.Join(root, ".dupscan", "index.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create db directory: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	reg := chunker.NewRegistry()
	languages.RegisterGo(reg)
	languages.RegisterJavaScript(reg)
	languages.RegisterTypeScript(reg)
	languages.RegisterPython(reg)

	deps := pipeline.Deps{
		Hashes:     st,
		Cache:      st,
		Source:     pipeline.OSContentSource{},
		Boundaries: chunker.NewASTChunker(reg),
		Registry:   reg,
	}

	if flagModel != "" {
		deps.Provider = embedder.NewOllamaEmbedder(flagOllama, flagModel)

		// A model change invalidates every cached vector: embeddings are
		// only comparable within one provider version.
		lastModel, err := st.GetMeta("embedding_model")
		if err == nil && lastModel != "" && lastModel != flagModel {
			fmt.Fprintf(os.Stderr, "embedding model changed from %q to %q, clearing embedding cache\n", lastModel, flagModel)
			if err := st.Invalidate(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: clear embedding cache: %v\n", err)
			}
		}
		if err := st.SetMeta("embedding_model", flagModel); err != nil {
			fmt.Fprintf(os.Stderr, "warning: record embedding model: %v\n", err)
		}
	}

	coord := pipeline.New(pipeline.Config{
		ProjectID:           root,
		Root:                root,
		Workers:             flagWorkers,
		MinChunkLines:       flagMinLines,
		SemanticThreshold:   flagSemanticThreshold,
		StructuralThreshold: flagStructuralThreshold,
		FullRescan:          full,
		Bucketed:            flagBucketed,
	}, deps)
	return coord, st, nil
}

func init() {
	scanCmd.Flags().IntVar(&flagWorkers, "workers", runtime.NumCPU(), "parallel workers")
	scanCmd.Flags().IntVar(&flagMinLines, "min-lines", chunker.DefaultMinLines, "minimum chunk size in lines")
	scanCmd.Flags().Float64Var(&flagSemanticThreshold, "semantic-threshold", 0.75, "embedding cosine similarity acceptance threshold")
	scanCmd.Flags().Float64Var(&flagStructuralThreshold, "structural-threshold", 0.60, "structural token overlap acceptance threshold")
	scanCmd.Flags().BoolVar(&flagFull, "full", false, "rescan every file, ignoring change detection")
	scanCmd.Flags().BoolVar(&flagBucketed, "bucketed", false, "pre-bucket chunks by coarse signature before pairwise comparison")
	scanCmd.Flags().BoolVar(&flagJSON, "json", false, "emit the raw report as JSON")
	scanCmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "overall run deadline (0 = none)")
	rootCmd.AddCommand(scanCmd)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dupscan/internal/chunker"
	"dupscan/internal/chunker/languages"
	"dupscan/internal/detect"
	"dupscan/internal/store"
	"dupscan/internal/walker"
)

var changesCmd = &cobra.Command{
	Use:   "changes <path>",
	Short: "Show files changed since the last scan without running detection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		cs, err := detectOnly(root)
		if err != nil {
			return err
		}
		for _, p := range cs.Added {
			fmt.Printf("A %s\n", p)
		}
		for _, p := range cs.Modified {
			fmt.Printf("M %s\n", p)
		}
		for _, p := range cs.Deleted {
			fmt.Printf("D %s\n", p)
		}
		fmt.Printf("%d added, %d modified, %d deleted, %d unchanged\n",
			len(cs.Added), len(cs.Modified), len(cs.Deleted), cs.Unchanged)
		return nil
	},
}

// detectOnly runs change detection against the persisted hashes without
// reprocessing or committing, so repeated calls report the same changes.
func detectOnly(root string) (*detect.ChangeSet, error) {
	dbPath := flagDB
	if dbPath == "" {
		dbPath = filepath.Join(root, ".dupscan", "index.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg := chunker.NewRegistry()
	languages.RegisterGo(reg)
	languages.RegisterJavaScript(reg)
	languages.RegisterTypeScript(reg)
	languages.RegisterPython(reg)

	fileCh, walkErrCh := walker.Walk(root, reg.Extensions())
	var files []detect.ScannedFile
	for fi := range fileCh {
		content, err := os.ReadFile(fi.Path)
		if err != nil {
			continue
		}
		files = append(files, detect.ScannedFile{Path: fi.RelPath, Content: content})
	}
	if err := <-walkErrCh; err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	detector := detect.New(st, 0)
	cs, _, err := detector.Detect(root, files)
	return cs, err
}

func init() {
	rootCmd.AddCommand(changesCmd)
}

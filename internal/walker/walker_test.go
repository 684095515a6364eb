package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jsOnly = map[string]bool{"js": true}

func collect(t *testing.T, root string, exts map[string]bool) []string {
	t.Helper()
	files, errs := Walk(root, exts)
	var paths []string
	for fi := range files {
		paths = append(paths, fi.RelPath)
	}
	require.NoError(t, <-errs)
	return paths
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestWalkFiltersExtensionsAndDefaults(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.js", "let a = 1;")
	write(t, root, "sub/b.js", "let b = 2;")
	write(t, root, "readme.txt", "not source")
	write(t, root, "empty.js", "")
	write(t, root, "node_modules/dep/c.js", "ignored")
	write(t, root, ".git/hooks/d.js", "ignored")

	paths := collect(t, root, jsOnly)
	assert.ElementsMatch(t, []string{"a.js", "sub/b.js"}, paths)
}

func TestWalkHonorsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	write(t, root, ".dupscanignore", "# comment\ngenerated\n")
	write(t, root, "a.js", "let a = 1;")
	write(t, root, "generated/g.js", "machine output")

	paths := collect(t, root, jsOnly)
	assert.ElementsMatch(t, []string{"a.js"}, paths)
}

func TestWalkSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	write(t, root, "big.js", string(make([]byte, maxFileSize+1)))
	write(t, root, "ok.js", "let a = 1;")

	paths := collect(t, root, jsOnly)
	assert.Equal(t, []string{"ok.js"}, paths)
}

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupscan/internal/chunker"
	"dupscan/internal/embedder"
	"dupscan/internal/similar"
	"dupscan/internal/store"
)

// memHashStore is an in-memory store.HashStore with a failure switch.
type memHashStore struct {
	mu   sync.Mutex
	m    map[string]map[string]string
	fail bool
}

func newMemHashStore() *memHashStore {
	return &memHashStore{m: make(map[string]map[string]string)}
}

func (s *memHashStore) Get(projectID, path string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", false, fmt.Errorf("get: %w", store.ErrUnavailable)
	}
	h, ok := s.m[projectID][path]
	return h, ok, nil
}

func (s *memHashStore) SetAll(projectID string, hashes map[string]string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("setall: %w", store.ErrUnavailable)
	}
	if s.m[projectID] == nil {
		s.m[projectID] = make(map[string]string)
	}
	for p, h := range hashes {
		s.m[projectID][p] = h
	}
	return nil
}

func (s *memHashStore) ListKnownPaths(projectID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, fmt.Errorf("list: %w", store.ErrUnavailable)
	}
	var paths []string
	for p := range s.m[projectID] {
		paths = append(paths, p)
	}
	return paths, nil
}

func (s *memHashStore) Delete(projectID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("delete: %w", store.ErrUnavailable)
	}
	delete(s.m[projectID], path)
	return nil
}

// memCache is an in-memory store.EmbeddingCache.
type memCache struct {
	mu sync.Mutex
	m  map[string][]float32
}

func newMemCache() *memCache { return &memCache{m: make(map[string][]float32)} }

func (c *memCache) Lookup(hash string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[hash], nil
}

func (c *memCache) Put(hash string, embedding []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[hash] = embedding
	return nil
}

func (c *memCache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string][]float32)
	return nil
}

// fakeProvider returns one fixed vector for every text, or an error.
type fakeProvider struct {
	calls atomic.Int64
	err   error
	vec   []float32
}

func (p *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = p.vec
	}
	return out, nil
}

// wholeFileBoundaries reports each file as a single function chunk, standing
// in for the tree-sitter chunker so tests run without cgo grammars.
type wholeFileBoundaries struct{}

func (wholeFileBoundaries) Boundaries(path string, src []byte) ([]chunker.Boundary, error) {
	lines := bytes.Count(src, []byte("\n")) + 1
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []chunker.Boundary{{Name: name, Kind: chunker.KindFunction, StartLine: 1, EndLine: lines}}, nil
}

// cancelingSource reads from disk but cancels the run context on first use,
// simulating a deadline expiring mid-scan.
type cancelingSource struct {
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cancelingSource) Read(path string) ([]byte, error) {
	s.once.Do(s.cancel)
	return os.ReadFile(path)
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	return root
}

func testRegistry() *chunker.Registry {
	reg := chunker.NewRegistry()
	reg.Register("javascript", &chunker.LanguageSpec{Extensions: []string{"js"}})
	return reg
}

func newTestCoordinator(root string, hs store.HashStore, cache store.EmbeddingCache, provider embedder.Provider) *Coordinator {
	return New(Config{
		ProjectID: "test-project",
		Root:      root,
		Workers:   2,
	}, Deps{
		Hashes:     hs,
		Cache:      cache,
		Provider:   provider,
		Boundaries: wholeFileBoundaries{},
		Registry:   testRegistry(),
	})
}

const sumWithComment = `// sums the values
function sum(values) {
  let total = 0;
  for (const v of values) {
    total += v;
  }
  return total;
}
`

const sumReformatted = `function sum(values)
{
	let total = 0;
	for (const v of values)
	{
		total += v;
	}
	return total;
}
`

const loadUserJS = `function loadUser(id) {
  const row = db.get(id);
  const user = parse(row);
  audit(user);
  return user;
}
`

const fetchAccountJS = `function fetchAccount(key) {
  const record = lookup(key);
  const account = decode(record);
  audit(account);
  return account;
}
`

func TestRunFlagsExactDuplicatesAcrossFormatting(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": sumWithComment,
		"b.js": sumReformatted,
	})

	c := newTestCoordinator(root, newMemHashStore(), nil, nil)
	report, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.js", "b.js"}, report.Changes.Added)
	assert.Equal(t, 2, report.TotalChunksAnalyzed)
	require.Len(t, report.DuplicateGroups, 1)

	g := report.DuplicateGroups[0]
	assert.Equal(t, similar.SignalExact, g.Signal)
	assert.Equal(t, 1.0, g.MaxSimilarity)
	assert.Len(t, g.Members, 2)
	assert.Equal(t, 1, report.Summary.ExactCount)
	assert.NotEmpty(t, report.Recommendations)
	assert.False(t, report.Partial)
	assert.Equal(t, 0, report.Errors.Total())
	assert.Equal(t, StateIdle, c.State())
}

func TestRunIdempotentAcrossRuns(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": sumWithComment,
		"b.js": sumReformatted,
	})
	hs := newMemHashStore()

	first, err := newTestCoordinator(root, hs, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Changes.Added, 2)

	// Nothing changed, so nothing is reprocessed.
	second, err := newTestCoordinator(root, hs, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Changes.Added)
	assert.Empty(t, second.Changes.Modified)
	assert.Empty(t, second.Changes.Deleted)
	assert.Equal(t, 2, second.Changes.Unchanged)
	assert.Equal(t, 0, second.TotalChunksAnalyzed)
	assert.Empty(t, second.DuplicateGroups)
}

func TestRunSemanticGroupingAndCacheReuse(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": loadUserJS,
		"b.js": fetchAccountJS,
	})
	hs := newMemHashStore()
	cache := newMemCache()
	provider := &fakeProvider{vec: []float32{0.6, 0.8}}

	report, err := newTestCoordinator(root, hs, cache, provider).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.DuplicateGroups, 1)
	assert.Equal(t, similar.SignalSemantic, report.DuplicateGroups[0].Signal)
	assert.Equal(t, 1, report.Summary.SemanticCount)
	assert.Equal(t, int64(1), provider.calls.Load())

	// A full rescan re-embeds everything, but from the cache.
	c2 := New(Config{ProjectID: "test-project", Root: root, Workers: 2, FullRescan: true}, Deps{
		Hashes:     hs,
		Cache:      cache,
		Provider:   provider,
		Boundaries: wholeFileBoundaries{},
		Registry:   testRegistry(),
	})
	report, err = c2.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalChunksAnalyzed)
	assert.Equal(t, 1, report.Summary.SemanticCount)
	assert.Equal(t, int64(1), provider.calls.Load(), "cached vectors must not re-hit the provider")
}

func TestRunProviderDownFallsBackToStructural(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": loadUserJS,
		"b.js": fetchAccountJS,
	})
	provider := &fakeProvider{err: fmt.Errorf("connect: %w", embedder.ErrUnavailable)}

	report, err := newTestCoordinator(root, newMemHashStore(), nil, provider).Run(context.Background())
	require.NoError(t, err, "an unreachable provider degrades, never aborts")

	assert.Equal(t, 0, report.Summary.SemanticCount)
	assert.Equal(t, report.TotalChunksAnalyzed, report.Errors.Embeddings,
		"every chunk that could not be embedded is counted")
	// The structural signal still catches the near-identical shape.
	require.Len(t, report.DuplicateGroups, 1)
	assert.Equal(t, similar.SignalStructural, report.DuplicateGroups[0].Signal)
}

func TestRunDegradedStoreStillReports(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": sumWithComment,
		"b.js": sumReformatted,
	})
	hs := newMemHashStore()
	hs.fail = true

	report, err := newTestCoordinator(root, hs, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Changes.Degraded)
	assert.ElementsMatch(t, []string{"a.js", "b.js"}, report.Changes.Modified)
	assert.GreaterOrEqual(t, report.Errors.Store, 1)
	assert.Len(t, report.DuplicateGroups, 1, "analysis proceeds on a degraded store")
}

func TestRunPartialSkipsCommit(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": sumWithComment,
		"b.js": sumReformatted,
	})
	hs := newMemHashStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(Config{ProjectID: "test-project", Root: root, Workers: 2}, Deps{
		Hashes:     hs,
		Source:     &cancelingSource{cancel: cancel},
		Boundaries: wholeFileBoundaries{},
		Registry:   testRegistry(),
	})

	report, err := c.Run(ctx)
	require.NoError(t, err, "deadline expiry yields a partial report, not an error")
	assert.True(t, report.Partial)

	// Hashes were not committed, so the next run sees the files as new again.
	next, err := newTestCoordinator(root, hs, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, next.Changes.Added, 2, "interrupted work is reprocessed on the next run")
	assert.False(t, next.Partial)
}

func TestRunFatalErrors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		c := newTestCoordinator(filepath.Join(t.TempDir(), "nope"), newMemHashStore(), nil, nil)
		_, err := c.Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("root is a file", func(t *testing.T) {
		root := t.TempDir()
		file := filepath.Join(root, "f.js")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
		c := newTestCoordinator(file, newMemHashStore(), nil, nil)
		_, err := c.Run(context.Background())
		assert.Error(t, err)
	})

	t.Run("deadline already elapsed", func(t *testing.T) {
		root := writeProject(t, map[string]string{"a.js": sumWithComment})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		c := newTestCoordinator(root, newMemHashStore(), nil, nil)
		_, err := c.Run(ctx)
		assert.Error(t, err)
	})
}

func TestRunDeletedFilePurgedImmediately(t *testing.T) {
	root := writeProject(t, map[string]string{
		"a.js": sumWithComment,
		"b.js": sumReformatted,
	})
	hs := newMemHashStore()

	_, err := newTestCoordinator(root, hs, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(root, "b.js")))

	report, err := newTestCoordinator(root, hs, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b.js"}, report.Changes.Deleted)

	paths, err := hs.ListKnownPaths("test-project")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js"}, paths)
}

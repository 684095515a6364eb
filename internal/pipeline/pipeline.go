// Package pipeline coordinates a full deduplication run: change detection,
// chunk extraction, embedding, pairwise comparison, grouping, advising, and
// report assembly, with per-unit failures isolated from the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dupscan/internal/chunker"
	"dupscan/internal/detect"
	"dupscan/internal/embedder"
	"dupscan/internal/group"
	"dupscan/internal/similar"
	"dupscan/internal/store"
	"dupscan/internal/walker"
)

// embedBatchSize is how many texts go to the provider per request.
const embedBatchSize = 32

// ContentSource reads file contents for the pipeline. The OS filesystem is
// the default; tests substitute fakes.
type ContentSource interface {
	Read(path string) ([]byte, error)
}

// OSContentSource reads from the local filesystem.
type OSContentSource struct{}

func (OSContentSource) Read(path string) ([]byte, error) { return os.ReadFile(path) }

// State is the coordinator's position in the run lifecycle.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateExtracting
	StateComparing
	StateGrouping
	StateAdvising
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateExtracting:
		return "extracting"
	case StateComparing:
		return "comparing"
	case StateGrouping:
		return "grouping"
	case StateAdvising:
		return "advising"
	case StateReporting:
		return "reporting"
	default:
		return "unknown"
	}
}

// Config holds the per-run settings.
type Config struct {
	ProjectID           string
	Root                string
	Workers             int
	MinChunkLines       int
	SemanticThreshold   float64
	StructuralThreshold float64
	// FullRescan processes every file regardless of change detection.
	FullRescan bool
	// Bucketed enables coarse-signature pre-bucketing of comparison pairs.
	Bucketed bool
	TTL      time.Duration
}

// Deps are the external collaborators, injected so availability is a
// per-call result rather than process-wide state.
type Deps struct {
	Hashes     store.HashStore
	Cache      store.EmbeddingCache // optional; nil disables caching
	Provider   embedder.Provider    // optional; nil disables the semantic signal
	Source     ContentSource
	Boundaries chunker.BoundarySource
	Registry   *chunker.Registry
}

// Coordinator runs the pipeline for one project. It is not safe for
// concurrent runs against the same project; the caller enforces at most one
// run per project at a time.
type Coordinator struct {
	cfg  Config
	deps Deps

	mu    sync.Mutex
	state State
}

// New creates a coordinator. Zero-valued config fields select defaults.
func New(cfg Config, deps Deps) *Coordinator {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if deps.Source == nil {
		deps.Source = OSContentSource{}
	}
	return &Coordinator{cfg: cfg, deps: deps}
}

// State reports the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes one deduplication run. The context deadline is the run's
// overall budget: on expiry in-flight work finishes, nothing new is
// scheduled, and the report is produced from whatever exists so far, marked
// partial. Only an unreadable project root or an already-elapsed deadline
// aborts the run without a report.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("deadline elapsed before any work started: %w", err)
	}
	info, err := os.Stat(c.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("project root %s: %w", c.cfg.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", c.cfg.Root)
	}

	var errs errorCounter
	var partial atomic.Bool
	defer c.setState(StateIdle)

	// Scanning: discover and read files, classify changes.
	c.setState(StateScanning)
	files, cs, newHashes, detector := c.scan(&errs)

	// Extracting: chunk the changed (or all) files across the worker pool.
	c.setState(StateExtracting)
	chunks := c.extract(ctx, files, cs, &errs, &partial)

	// Embedding shares the extracting stage's budget slot: it is the other
	// high-fanout collaborator-bound stage.
	if c.deps.Provider != nil && len(chunks) > 0 {
		c.embed(ctx, chunks, &errs, &partial)
	}

	// Comparing: pairwise similarity across the pool, edges merged at a
	// single accumulation point.
	c.setState(StateComparing)
	edges := c.compare(ctx, chunks, &errs, &partial)

	// Grouping begins only after every comparison has completed.
	c.setState(StateGrouping)
	groups := group.Components(edges)

	c.setState(StateAdvising)
	c.setState(StateReporting)
	views, summary, recommendations := buildReport(groups, chunks)

	report := &Report{
		RunID:               uuid.NewString(),
		ProjectID:           c.cfg.ProjectID,
		Changes:             *cs,
		TotalChunksAnalyzed: len(chunks),
		DuplicateGroups:     views,
		Summary:             summary,
		Recommendations:     recommendations,
		Partial:             partial.Load(),
		Duration:            time.Since(start),
	}

	// Commit hashes only after a complete, non-degraded run so interrupted
	// work is reclassified as still-changed next time.
	if !report.Partial && !cs.Degraded && detector != nil {
		if err := detector.Commit(c.cfg.ProjectID, newHashes); err != nil {
			fmt.Fprintf(os.Stderr, "warning: hash commit failed: %v\n", err)
			errs.store.Add(1)
		}
	}
	report.Errors = errs.snapshot()
	return report, nil
}

// scannedFile pairs a project-relative path with its content.
type scannedFile struct {
	relPath string
	content []byte
}

func (c *Coordinator) scan(errs *errorCounter) ([]scannedFile, *detect.ChangeSet, map[string]string, *detect.Detector) {
	fileCh, walkErrCh := walker.Walk(c.cfg.Root, c.deps.Registry.Extensions())

	var files []scannedFile
	var scanned []detect.ScannedFile
	for fi := range fileCh {
		content, err := c.deps.Source.Read(fi.Path)
		if err != nil {
			errs.fileReads.Add(1)
			continue
		}
		files = append(files, scannedFile{relPath: fi.RelPath, content: content})
		scanned = append(scanned, detect.ScannedFile{Path: fi.RelPath, Content: content})
	}
	if err := <-walkErrCh; err != nil {
		fmt.Fprintf(os.Stderr, "warning: walk error: %v\n", err)
		errs.fileReads.Add(1)
	}

	if c.deps.Hashes == nil {
		// No persistence configured: treat everything as added.
		cs := &detect.ChangeSet{}
		for _, f := range files {
			cs.Added = append(cs.Added, f.relPath)
		}
		return files, cs, nil, nil
	}

	detector := detect.New(c.deps.Hashes, c.cfg.TTL)
	cs, newHashes, err := detector.Detect(c.cfg.ProjectID, scanned)
	if err != nil {
		// Detect degrades internally on store unavailability; any other
		// error still must not abort the run.
		fmt.Fprintf(os.Stderr, "warning: change detection failed: %v\n", err)
		errs.store.Add(1)
		cs = &detect.ChangeSet{Degraded: true}
		for _, f := range files {
			cs.Modified = append(cs.Modified, f.relPath)
		}
	}
	if cs.Degraded {
		fmt.Fprintf(os.Stderr, "warning: hash store unavailable, degrading to full rescan\n")
		errs.store.Add(1)
	}

	// Deleted files have nothing left to reprocess; purge immediately.
	if len(cs.Deleted) > 0 {
		if err := detector.PurgeDeleted(c.cfg.ProjectID, cs.Deleted); err != nil {
			fmt.Fprintf(os.Stderr, "warning: purge deleted paths: %v\n", err)
			errs.store.Add(1)
		}
	}
	return files, cs, newHashes, detector
}

func (c *Coordinator) extract(ctx context.Context, files []scannedFile, cs *detect.ChangeSet, errs *errorCounter, partial *atomic.Bool) []*chunker.Chunk {
	changed := make(map[string]bool, len(cs.Added)+len(cs.Modified))
	for _, p := range cs.Added {
		changed[p] = true
	}
	for _, p := range cs.Modified {
		changed[p] = true
	}

	extractor := chunker.NewExtractor(c.deps.Boundaries, c.cfg.MinChunkLines)

	var mu sync.Mutex
	var chunks []*chunker.Chunk
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)
	for _, f := range files {
		if !c.cfg.FullRescan && !changed[f.relPath] {
			continue
		}
		if ctx.Err() != nil {
			partial.Store(true)
			break
		}
		f := f
		g.Go(func() error {
			extracted, err := extractor.Extract(f.relPath, f.content)
			if err != nil {
				errs.extractions.Add(1)
			}
			mu.Lock()
			for i := range extracted {
				chunks = append(chunks, &extracted[i])
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// Arena ids: deterministic order, comparisons reference indices.
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].FilePath != chunks[j].FilePath {
			return chunks[i].FilePath < chunks[j].FilePath
		}
		return chunks[i].StartLine < chunks[j].StartLine
	})
	for i := range chunks {
		chunks[i].ID = i
	}
	return chunks
}

func (c *Coordinator) embed(ctx context.Context, chunks []*chunker.Chunk, errs *errorCounter, partial *atomic.Bool) {
	// Embeddings are keyed by normalized hash: identical chunks share one
	// vector and one cache entry.
	byHash := make(map[string][]*chunker.Chunk)
	var order []string
	for _, ch := range chunks {
		if _, seen := byHash[ch.NormalizedHash]; !seen {
			order = append(order, ch.NormalizedHash)
		}
		byHash[ch.NormalizedHash] = append(byHash[ch.NormalizedHash], ch)
	}

	var misses []string
	for _, h := range order {
		if c.deps.Cache == nil {
			misses = append(misses, h)
			continue
		}
		vec, err := c.deps.Cache.Lookup(h)
		if err != nil {
			errs.store.Add(1)
			misses = append(misses, h)
			continue
		}
		if vec == nil {
			misses = append(misses, h)
			continue
		}
		for _, ch := range byHash[h] {
			ch.Embedding = vec
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)
	for start := 0; start < len(misses); start += embedBatchSize {
		if ctx.Err() != nil {
			partial.Store(true)
			break
		}
		end := start + embedBatchSize
		if end > len(misses) {
			end = len(misses)
		}
		batch := misses[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, h := range batch {
				texts[i] = chunker.Normalize(byHash[h][0].Content)
			}
			vecs, err := c.deps.Provider.Embed(ctx, texts)
			if err != nil {
				// Count the failure once per affected chunk; those chunks
				// fall back to structural comparison.
				if !errors.Is(err, embedder.ErrUnavailable) {
					fmt.Fprintf(os.Stderr, "warning: embed batch: %v\n", err)
				}
				for _, h := range batch {
					errs.embeddings.Add(int64(len(byHash[h])))
				}
				return nil
			}
			for i, h := range batch {
				for _, ch := range byHash[h] {
					ch.Embedding = vecs[i]
				}
				if c.deps.Cache != nil {
					if err := c.deps.Cache.Put(h, vecs[i]); err != nil {
						errs.store.Add(1)
					}
				}
			}
			return nil
		})
	}
	g.Wait()
}

func (c *Coordinator) compare(ctx context.Context, chunks []*chunker.Chunk, errs *errorCounter, partial *atomic.Bool) []similar.Edge {
	pairs := similar.Pairs(chunks, c.cfg.Bucketed)
	if len(pairs) == 0 {
		return nil
	}
	comparer := similar.NewComparer(c.cfg.SemanticThreshold, c.cfg.StructuralThreshold)

	shardSize := (len(pairs) + c.cfg.Workers - 1) / c.cfg.Workers
	var mu sync.Mutex
	var edges []similar.Edge

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)
	for start := 0; start < len(pairs); start += shardSize {
		if ctx.Err() != nil {
			partial.Store(true)
			break
		}
		end := start + shardSize
		if end > len(pairs) {
			end = len(pairs)
		}
		shard := pairs[start:end]
		g.Go(func() error {
			local := make([]similar.Edge, 0, len(shard)/8)
			for _, p := range shard {
				if e, ok := comparer.Compare(chunks[p[0]], chunks[p[1]]); ok {
					local = append(local, e)
				}
			}
			mu.Lock()
			edges = append(edges, local...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return edges
}

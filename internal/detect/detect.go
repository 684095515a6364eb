// Package detect classifies tracked files as added, modified, deleted, or
// unchanged between runs using persisted content fingerprints rather than
// timestamps.
package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"time"

	"dupscan/internal/store"
)

// ScannedFile is one file from the current scan.
type ScannedFile struct {
	Path    string
	Content []byte
}

// ChangeSet is the per-run classification of every tracked file.
type ChangeSet struct {
	Added    []string
	Modified []string
	Deleted  []string
	// Unchanged counts files whose fingerprint matched the persisted one;
	// no chunk work is performed for them downstream.
	Unchanged int
	// Degraded is set when the hash store was unavailable and every scanned
	// file was classified as modified (full rescan). Commit must be skipped
	// for a degraded run.
	Degraded bool
}

// Fingerprint computes the content hash persisted per file: SHA-256 over the
// raw bytes.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Detector compares the current scan against the persisted path→hash map.
// The persisted map is owned exclusively by the detector and written in a
// single commit step per run; concurrent runs against the same project are
// the caller's responsibility to prevent.
type Detector struct {
	hashes store.HashStore
	ttl    time.Duration
}

// New creates a detector. ttl <= 0 selects store.DefaultTTL.
func New(hashes store.HashStore, ttl time.Duration) *Detector {
	if ttl <= 0 {
		ttl = store.DefaultTTL
	}
	return &Detector{hashes: hashes, ttl: ttl}
}

// Detect classifies the scanned files and returns the change set together
// with the fresh path→hash map to commit once reprocessing succeeds.
//
// If the hash store is unavailable the detector degrades instead of failing:
// every file is reported as modified and ChangeSet.Degraded is set.
func (d *Detector) Detect(projectID string, files []ScannedFile) (*ChangeSet, map[string]string, error) {
	newHashes := make(map[string]string, len(files))
	for _, f := range files {
		newHashes[f.Path] = Fingerprint(f.Content)
	}

	known, err := d.hashes.ListKnownPaths(projectID)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return degradedSet(files), newHashes, nil
		}
		return nil, nil, err
	}
	knownSet := make(map[string]bool, len(known))
	for _, p := range known {
		knownSet[p] = true
	}

	cs := &ChangeSet{}
	for _, f := range files {
		if !knownSet[f.Path] {
			cs.Added = append(cs.Added, f.Path)
			continue
		}
		prev, ok, err := d.hashes.Get(projectID, f.Path)
		if err != nil {
			if errors.Is(err, store.ErrUnavailable) {
				return degradedSet(files), newHashes, nil
			}
			return nil, nil, err
		}
		switch {
		case !ok:
			cs.Added = append(cs.Added, f.Path)
		case prev != newHashes[f.Path]:
			cs.Modified = append(cs.Modified, f.Path)
		default:
			cs.Unchanged++
		}
	}

	for _, p := range known {
		if _, present := newHashes[p]; !present {
			cs.Deleted = append(cs.Deleted, p)
		}
	}
	sort.Strings(cs.Added)
	sort.Strings(cs.Modified)
	sort.Strings(cs.Deleted)
	return cs, newHashes, nil
}

// PurgeDeleted removes vanished paths from the persisted map. Unlike Commit
// this runs as soon as deletions are known: there is nothing left to
// reprocess for a deleted file, so a downstream failure changes nothing.
func (d *Detector) PurgeDeleted(projectID string, deleted []string) error {
	for _, p := range deleted {
		if err := d.hashes.Delete(projectID, p); err != nil {
			return err
		}
	}
	return nil
}

// Commit persists the fresh hash map. Call it only after the added and
// modified files have been fully reprocessed: a crash before Commit leaves
// the map stale, and the next run simply reclassifies those files as still
// changed (at-least-once reprocessing).
func (d *Detector) Commit(projectID string, newHashes map[string]string) error {
	return d.hashes.SetAll(projectID, newHashes, d.ttl)
}

func degradedSet(files []ScannedFile) *ChangeSet {
	cs := &ChangeSet{Degraded: true}
	for _, f := range files {
		cs.Modified = append(cs.Modified, f.Path)
	}
	sort.Strings(cs.Modified)
	return cs
}

package store

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrUnavailable signals that the backing store could not be reached or
// failed mid-operation. Callers degrade rather than abort: the change
// detector falls back to a full rescan and the embedding cache is treated
// as a miss.
var ErrUnavailable = errors.New("store unavailable")

// DefaultTTL is how long a project's file hashes survive without being
// refreshed, so abandoned projects age out of the store.
const DefaultTTL = 30 * 24 * time.Hour

// HashStore persists the per-project path→hash map across runs.
type HashStore interface {
	// Get returns the stored content hash for a path, and whether one exists.
	Get(projectID, path string) (hash string, ok bool, err error)
	// SetAll upserts the given hashes with the supplied TTL in one transaction.
	SetAll(projectID string, hashes map[string]string, ttl time.Duration) error
	// ListKnownPaths returns all non-expired paths recorded for the project.
	ListKnownPaths(projectID string) ([]string, error)
	// Delete removes a single path from the project's map.
	Delete(projectID, path string) error
}

// EmbeddingCache persists embedding vectors keyed by normalized content hash
// so unchanged chunks never re-hit the embedding provider across runs.
type EmbeddingCache interface {
	// Lookup returns the cached vector, or nil if absent.
	Lookup(normalizedHash string) ([]float32, error)
	// Put stores a vector for the hash, replacing any previous one.
	Put(normalizedHash string, embedding []float32) error
	// Invalidate drops every cached vector.
	Invalidate() error
}

// SQLiteStore implements HashStore and EmbeddingCache backed by
// SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and initializes
// the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(projectID, path string) (string, bool, error) {
	var hash string
	err := s.db.QueryRow(
		"SELECT hash FROM file_hashes WHERE project_id = ? AND path = ? AND expires_at > CURRENT_TIMESTAMP",
		projectID, path,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("get hash", err)
	}
	return hash, true, nil
}

func (s *SQLiteStore) SetAll(projectID string, hashes map[string]string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("begin", err)
	}
	defer tx.Rollback()

	expires := time.Now().UTC().Add(ttl)
	stmt, err := tx.Prepare(`
		INSERT INTO file_hashes (project_id, path, hash, seen_at, expires_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, ?)
		ON CONFLICT(project_id, path) DO UPDATE SET
			hash = excluded.hash, seen_at = excluded.seen_at, expires_at = excluded.expires_at
	`)
	if err != nil {
		return unavailable("prepare upsert", err)
	}
	defer stmt.Close()

	for path, hash := range hashes {
		if _, err := stmt.Exec(projectID, path, hash, expires); err != nil {
			return unavailable("upsert hash", err)
		}
	}

	// Expired entries for this project are swept opportunistically here.
	if _, err := tx.Exec(
		"DELETE FROM file_hashes WHERE project_id = ? AND expires_at <= CURRENT_TIMESTAMP",
		projectID,
	); err != nil {
		return unavailable("sweep expired", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (s *SQLiteStore) ListKnownPaths(projectID string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT path FROM file_hashes WHERE project_id = ? AND expires_at > CURRENT_TIMESTAMP",
		projectID,
	)
	if err != nil {
		return nil, unavailable("list paths", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, unavailable("scan path", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list paths", err)
	}
	return paths, nil
}

func (s *SQLiteStore) Delete(projectID, path string) error {
	if _, err := s.db.Exec(
		"DELETE FROM file_hashes WHERE project_id = ? AND path = ?",
		projectID, path,
	); err != nil {
		return unavailable("delete hash", err)
	}
	return nil
}

func (s *SQLiteStore) Lookup(normalizedHash string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRow(`
		SELECT v.embedding
		FROM embedding_cache c
		JOIN vec_cache v ON v.cache_id = c.id
		WHERE c.normalized_hash = ?
	`, normalizedHash).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("lookup embedding", err)
	}
	return decodeFloat32(blob), nil
}

func (s *SQLiteStore) Put(normalizedHash string, embedding []float32) error {
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR IGNORE INTO embedding_cache (normalized_hash) VALUES (?)",
		normalizedHash,
	); err != nil {
		return unavailable("insert cache row", err)
	}
	var id int64
	if err := tx.QueryRow(
		"SELECT id FROM embedding_cache WHERE normalized_hash = ?", normalizedHash,
	).Scan(&id); err != nil {
		return unavailable("cache row id", err)
	}
	if _, err := tx.Exec("DELETE FROM vec_cache WHERE cache_id = ?", id); err != nil {
		return unavailable("replace vector", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO vec_cache (cache_id, embedding) VALUES (?, ?)", id, blob,
	); err != nil {
		return unavailable("insert vector", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

func (s *SQLiteStore) Invalidate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return unavailable("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM vec_cache"); err != nil {
		return unavailable("clear vectors", err)
	}
	if _, err := tx.Exec("DELETE FROM embedding_cache"); err != nil {
		return unavailable("clear cache", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// GetMeta returns a metadata value by key, or "" if not set.
func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", unavailable("get meta", err)
	}
	return value, nil
}

// SetMeta sets a metadata key-value pair.
func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return unavailable("set meta", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
}

// decodeFloat32 unpacks the little-endian float32 blob format sqlite-vec
// stores vectors in.
func decodeFloat32(blob []byte) []float32 {
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}

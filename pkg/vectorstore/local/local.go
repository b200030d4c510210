// Package local provides a file-persisted vector store with brute-force
// cosine similarity search. It is the default backend for single-node
// deployments: collections live in memory and are snapshotted as JSON
// files under a persist directory, so the index survives restarts via
// the mounted volume.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/animadocs/ragd/pkg/vectorstore"
)

// collection holds the in-memory state of one named collection. Vectors
// are stored L2-normalized so search reduces to a dot product.
type collection struct {
	Dimensions int                  `json:"dimensions"`
	Records    []vectorstore.Record `json:"records"`

	index map[string]int // id -> position in Records
}

// Store is a file-persisted vector store.
type Store struct {
	mu          sync.RWMutex
	dir         string
	collections map[string]*collection
}

// Compile-time checks.
var (
	_ vectorstore.Backend   = (*Store)(nil)
	_ vectorstore.Persister = (*Store)(nil)
)

// New opens a Store rooted at dir, creating the directory if needed and
// loading any persisted collection snapshots found there.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating persist directory: %w", err)
	}

	s := &Store{
		dir:         dir,
		collections: make(map[string]*collection),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading persist directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || name == "manifest.json" {
			continue
		}
		coll, err := loadSnapshot(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading collection snapshot %s: %w", name, err)
		}
		s.collections[strings.TrimSuffix(name, ".json")] = coll
	}

	return s, nil
}

// CreateCollection creates (or resets) a named collection.
func (s *Store) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid dimensions %d", dimensions)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = &collection{
		Dimensions: dimensions,
		index:      make(map[string]int),
	}
	return nil
}

// DeleteCollection removes a collection and its snapshot file.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return vectorstore.ErrCollectionNotFound
	}
	delete(s.collections, name)
	if err := os.Remove(s.snapshotPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing collection snapshot: %w", err)
	}
	return nil
}

// Upsert inserts or replaces records. Vectors are normalized on insert.
func (s *Store) Upsert(ctx context.Context, name string, records []vectorstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[name]
	if !ok {
		return vectorstore.ErrCollectionNotFound
	}

	for _, r := range records {
		if len(r.Vector) != coll.Dimensions {
			return fmt.Errorf("record %q has dimension %d, collection expects %d",
				r.ID, len(r.Vector), coll.Dimensions)
		}
		r.Vector = normalize(r.Vector)
		if pos, exists := coll.index[r.ID]; exists {
			coll.Records[pos] = r
			continue
		}
		coll.index[r.ID] = len(coll.Records)
		coll.Records = append(coll.Records, r)
	}

	return nil
}

// Search returns the limit nearest records by cosine similarity, ordered
// by descending score.
func (s *Store) Search(ctx context.Context, name string, vector []float32, limit int) ([]vectorstore.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[name]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	if len(vector) != coll.Dimensions {
		return nil, fmt.Errorf("query vector has dimension %d, collection expects %d",
			len(vector), coll.Dimensions)
	}
	if limit <= 0 {
		return nil, nil
	}

	query := normalize(vector)
	matches := make([]vectorstore.Match, 0, len(coll.Records))
	for _, r := range coll.Records {
		matches = append(matches, vectorstore.Match{
			ID:       r.ID,
			Score:    dot(r.Vector, query),
			Content:  r.Content,
			Metadata: r.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

// Count returns the number of records in a collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[name]
	if !ok {
		return 0, vectorstore.ErrCollectionNotFound
	}
	return len(coll.Records), nil
}

// HealthCheck verifies the persist directory is accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("persist directory unavailable: %w", err)
	}
	return nil
}

// Persist writes a collection snapshot to disk atomically (write to a
// temp file, then rename).
func (s *Store) Persist(ctx context.Context, name string) error {
	s.mu.RLock()
	coll, ok := s.collections[name]
	if !ok {
		s.mu.RUnlock()
		return vectorstore.ErrCollectionNotFound
	}
	data, err := json.Marshal(coll)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding collection snapshot: %w", err)
	}

	path := s.snapshotPath(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing collection snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming collection snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; snapshots are written explicitly via Persist.
func (s *Store) Close() error { return nil }

func (s *Store) snapshotPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func loadSnapshot(path string) (*collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var coll collection
	if err := json.Unmarshal(data, &coll); err != nil {
		return nil, err
	}
	coll.index = make(map[string]int, len(coll.Records))
	for i, r := range coll.Records {
		coll.index[r.ID] = i
	}
	return &coll, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

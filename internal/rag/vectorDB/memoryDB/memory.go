// Package memoryDB is a process-local vector store, used when qdrant is not
// reachable and in tests.
package memoryDB

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/akolanti/DocsetAgent/internal/rag/vectorDB"
)

type collection struct {
	dimension uint64
	records   map[string]vectorDB.Record
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) EnsureCollection(ctx context.Context, name string, dimension uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &collection{dimension: dimension, records: make(map[string]vectorDB.Record)}
	}
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *Store) Upsert(ctx context.Context, name string, records []vectorDB.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return fmt.Errorf("collection %q does not exist", name)
	}
	for _, r := range records {
		if c.dimension != 0 && uint64(len(r.Vector)) != c.dimension {
			return fmt.Errorf("record %s has dimension %d, collection wants %d", r.ID, len(r.Vector), c.dimension)
		}
		c.records[r.ID] = r
	}
	return nil
}

func (s *Store) Search(ctx context.Context, name string, vector []float32, limit uint64) ([]vectorDB.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", name)
	}

	hits := make([]vectorDB.Hit, 0, len(c.records))
	for _, r := range c.records {
		hits = append(hits, vectorDB.Hit{ID: r.ID, Text: r.Text, Metadata: r.Metadata, Score: cosine(vector, r.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ID < hits[j].ID
		}
		return hits[i].Score > hits[j].Score
	})
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Len reports how many records a collection holds, -1 if it does not exist.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return -1
	}
	return len(c.records)
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

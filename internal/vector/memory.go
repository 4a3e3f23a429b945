package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryRepository is an in-process Repository backed by a slice. It serves
// the "memory" store type for local development and the test suites.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) Upsert(ctx context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		replaced := false
		for i := range m.docs {
			if m.docs[i].ID == d.ID {
				m.docs[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			m.docs = append(m.docs, d)
		}
	}
	return nil
}

func (m *MemoryRepository) Search(ctx context.Context, vec []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.docs))
	for _, d := range m.docs {
		results = append(results, SearchResult{
			ChunkID: d.ChunkID,
			Score:   cosine(vec, d.Vector),
			Content: d.Content,
			Meta:    d.Meta,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]StoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StoredChunk, len(m.docs))
	for i, d := range m.docs {
		out[i] = StoredChunk{ChunkID: d.ChunkID, Content: d.Content, Meta: d.Meta}
	}
	return out, nil
}

func (m *MemoryRepository) CountBySource(ctx context.Context, source string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, d := range m.docs {
		if d.Meta.Source == source {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepository) DeleteBySource(ctx context.Context, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.docs[:0]
	for _, d := range m.docs {
		if d.Meta.Source != source {
			kept = append(kept, d)
		}
	}
	m.docs = kept
	return nil
}

func (m *MemoryRepository) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = nil
	return nil
}

func (m *MemoryRepository) Close() error { return nil }

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
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

var _ Repository = (*MemoryRepository)(nil)

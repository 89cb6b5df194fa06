package index

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"sync"
)

// MemoryIndex is a brute-force cosine-similarity index. Vectors are
// normalized on insert so dot product equals cosine similarity. Exact
// results, sub-millisecond at the record counts this service holds.
type MemoryIndex struct {
	mu       sync.RWMutex
	vectors  map[string][]float32
	metadata map[string]Metadata
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		vectors:  make(map[string][]float32),
		metadata: make(map[string]Metadata),
	}
}

func (idx *MemoryIndex) Upsert(_ context.Context, id string, vector []float32, metadata Metadata) error {
	if len(vector) != Dimensions {
		return fmt.Errorf("vector for %q has %d dimensions, index requires %d", id, len(vector), Dimensions)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors[id] = normalize(vector)
	idx.metadata[id] = metadata
	return nil
}

// Query returns the topK nearest records whose metadata matches every
// filter entry, scores descending.
func (idx *MemoryIndex) Query(_ context.Context, vector []float32, topK int, filter Metadata) ([]ScoredMatch, error) {
	if len(vector) != Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index requires %d", len(vector), Dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}
	query := normalize(vector)

	idx.mu.RLock()
	h := &minHeap{}
	heap.Init(h)
	for id, vec := range idx.vectors {
		meta := idx.metadata[id]
		if !matchesFilter(meta, filter) {
			continue
		}
		score := dotProduct(query, vec)
		if h.Len() < topK {
			heap.Push(h, ScoredMatch{ID: id, Score: score, Metadata: meta})
		} else if score > (*h)[0].Score {
			(*h)[0] = ScoredMatch{ID: id, Score: score, Metadata: meta}
			heap.Fix(h, 0)
		}
	}
	idx.mu.RUnlock()

	results := make([]ScoredMatch, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(ScoredMatch)
	}
	return results, nil
}

func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

func matchesFilter(meta Metadata, filter Metadata) bool {
	for key, want := range filter {
		if meta[key] != want {
			return false
		}
	}
	return true
}

// minHeap keeps the current top-K with the minimum at the root.
type minHeap []ScoredMatch

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(ScoredMatch)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

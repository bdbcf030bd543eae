// Package vectorindex provides an in-memory cosine similarity index over
// passage embeddings. An index is filled during ingestion, sealed, then
// only queried; Release drops the vectors when the owning session ends.
package vectorindex

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sync"

	"docchat-be/pkg/store"
)

var (
	ErrSealed         = errors.New("index is sealed")
	ErrNotSealed      = errors.New("index is not sealed")
	ErrReleased       = errors.New("index is released")
	ErrInvalidK       = errors.New("k must be positive")
	ErrEmptyEmbedding = errors.New("passage has empty embedding")
)

// DimensionMismatchError reports a vector whose width differs from the
// index's, which is fixed by the first insert.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: index holds %d-dimensional vectors, got %d", e.Want, e.Got)
}

type Index struct {
	mu       sync.RWMutex
	dim      int
	sealed   bool
	released bool
	passages []store.Passage
}

var _ store.PassageIndex = (*Index)(nil)

func New() *Index {
	return &Index{}
}

// Insert adds a batch of passages. Embeddings are normalized to unit length
// on the way in, so Query can score with a plain dot product. The first
// insert fixes the index dimension.
func (idx *Index) Insert(batch []store.Passage) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.released {
		return ErrReleased
	}
	if idx.sealed {
		return ErrSealed
	}

	for _, p := range batch {
		if len(p.Embedding) == 0 {
			return fmt.Errorf("passage %s: %w", p.ID, ErrEmptyEmbedding)
		}
		if idx.dim == 0 {
			idx.dim = len(p.Embedding)
		} else if len(p.Embedding) != idx.dim {
			return &DimensionMismatchError{Want: idx.dim, Got: len(p.Embedding)}
		}
		p.Embedding = normalize(p.Embedding)
		idx.passages = append(idx.passages, p)
	}
	return nil
}

// Seal freezes the index. Further inserts fail and queries become legal.
func (idx *Index) Seal() {
	idx.mu.Lock()
	idx.sealed = true
	idx.mu.Unlock()
}

// Query returns the k passages most similar to vec, ordered by descending
// cosine score. Equal scores are broken by insertion ordinal, so results
// are stable across runs.
func (idx *Index) Query(vec []float32, k int) ([]store.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.released {
		return nil, ErrReleased
	}
	if !idx.sealed {
		return nil, ErrNotSealed
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(idx.passages) == 0 {
		return []store.SearchResult{}, nil
	}
	if len(vec) != idx.dim {
		return nil, &DimensionMismatchError{Want: idx.dim, Got: len(vec)}
	}

	query := normalize(vec)

	scored := make(resultHeap, len(idx.passages))
	for i := range idx.passages {
		scored[i] = store.SearchResult{
			Passage: idx.passages[i],
			Score:   dot(query, idx.passages[i].Embedding),
		}
	}
	heap.Init(&scored)

	if k > len(scored) {
		k = len(scored)
	}
	results := make([]store.SearchResult, 0, k)
	for i := 0; i < k; i++ {
		results = append(results, heap.Pop(&scored).(store.SearchResult))
	}
	return results, nil
}

// Size reports the number of indexed passages.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.passages)
}

// Release drops the stored vectors. The index is unusable afterwards.
func (idx *Index) Release() {
	idx.mu.Lock()
	idx.released = true
	idx.passages = nil
	idx.mu.Unlock()
}

type resultHeap []store.SearchResult

func (h resultHeap) Len() int { return len(h) }

func (h resultHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score > h[j].Score
	}
	return h[i].Passage.Ordinal < h[j].Passage.Ordinal
}

func (h resultHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *resultHeap) Push(x any) {
	*h = append(*h, x.(store.SearchResult))
}

func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// normalize returns a unit-length copy. Zero vectors pass through unchanged.
func normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	out := make([]float32, len(vec))
	if magnitude == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / magnitude)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

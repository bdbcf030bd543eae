package vectorindex

import (
	"errors"
	"math"
	"testing"

	"docchat-be/pkg/store"
)

func passage(id string, ordinal int, embedding ...float32) store.Passage {
	return store.Passage{
		ID:             id,
		Text:           "text-" + id,
		SourceDocument: "doc.pdf",
		Ordinal:        ordinal,
		Embedding:      embedding,
	}
}

func sealedIndex(t *testing.T, passages ...store.Passage) *Index {
	t.Helper()
	idx := New()
	if err := idx.Insert(passages); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	idx.Seal()
	return idx
}

func approx(t *testing.T, got, want float32) {
	t.Helper()
	if math.Abs(float64(got-want)) > 1e-4 {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestInsertFixesDimensionOnFirstBatch(t *testing.T) {
	idx := New()
	if err := idx.Insert([]store.Passage{passage("a", 0, 1, 0, 0)}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	err := idx.Insert([]store.Passage{passage("b", 1, 1, 0)})
	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Insert() error = %v, want DimensionMismatchError", err)
	}
	if mismatch.Want != 3 || mismatch.Got != 2 {
		t.Errorf("mismatch = %+v, want {3 2}", mismatch)
	}
}

func TestInsertRejectsEmptyEmbedding(t *testing.T) {
	idx := New()
	err := idx.Insert([]store.Passage{passage("a", 0)})
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Fatalf("Insert() error = %v, want %v", err, ErrEmptyEmbedding)
	}
}

func TestInsertAfterSeal(t *testing.T) {
	idx := sealedIndex(t, passage("a", 0, 1, 0))
	if err := idx.Insert([]store.Passage{passage("b", 1, 0, 1)}); !errors.Is(err, ErrSealed) {
		t.Fatalf("Insert() error = %v, want %v", err, ErrSealed)
	}
}

func TestQueryBeforeSeal(t *testing.T) {
	idx := New()
	if _, err := idx.Query([]float32{1, 0}, 1); !errors.Is(err, ErrNotSealed) {
		t.Fatalf("Query() error = %v, want %v", err, ErrNotSealed)
	}
}

func TestQueryInvalidK(t *testing.T) {
	idx := sealedIndex(t, passage("a", 0, 1, 0))
	for _, k := range []int{0, -3} {
		if _, err := idx.Query([]float32{1, 0}, k); !errors.Is(err, ErrInvalidK) {
			t.Fatalf("Query(k=%d) error = %v, want %v", k, err, ErrInvalidK)
		}
	}
}

func TestQueryEmptyIndex(t *testing.T) {
	idx := New()
	idx.Seal()
	results, err := idx.Query([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("Query() = %v, want empty slice", results)
	}
}

func TestQueryDimensionMismatch(t *testing.T) {
	idx := sealedIndex(t, passage("a", 0, 1, 0, 0))
	_, err := idx.Query([]float32{1, 0}, 1)
	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Query() error = %v, want DimensionMismatchError", err)
	}
}

func TestQueryRanksByCosine(t *testing.T) {
	idx := sealedIndex(t,
		passage("aligned", 0, 1, 0),
		passage("orthogonal", 1, 0, 1),
		passage("diagonal", 2, 1, 1),
	)

	results, err := idx.Query([]float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Query() returned %d results, want 2", len(results))
	}
	if results[0].Passage.ID != "aligned" || results[1].Passage.ID != "diagonal" {
		t.Errorf("result order = [%s %s], want [aligned diagonal]", results[0].Passage.ID, results[1].Passage.ID)
	}
	approx(t, results[0].Score, 1)
	approx(t, results[1].Score, float32(1/math.Sqrt2))
}

func TestQueryScalesInputsToUnitLength(t *testing.T) {
	// Raw magnitudes must not affect cosine scores.
	idx := sealedIndex(t, passage("a", 0, 3, 0))
	results, err := idx.Query([]float32{5, 0}, 1)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	approx(t, results[0].Score, 1)
}

func TestQueryTieBreaksByOrdinal(t *testing.T) {
	idx := sealedIndex(t,
		passage("late", 7, 1, 0),
		passage("early", 2, 1, 0),
		passage("middle", 4, 1, 0),
	)

	results, err := idx.Query([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	got := []string{results[0].Passage.ID, results[1].Passage.ID, results[2].Passage.ID}
	want := []string{"early", "middle", "late"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order = %v, want %v", got, want)
		}
	}
}

func TestQueryZeroVectorIsDeterministic(t *testing.T) {
	idx := sealedIndex(t,
		passage("b", 1, 0, 1),
		passage("a", 0, 1, 0),
	)

	results, err := idx.Query([]float32{0, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	// Every score is zero, so ordering falls back to ordinals.
	if results[0].Passage.ID != "a" || results[1].Passage.ID != "b" {
		t.Errorf("order = [%s %s], want [a b]", results[0].Passage.ID, results[1].Passage.ID)
	}
	approx(t, results[0].Score, 0)
}

func TestQueryKLargerThanIndex(t *testing.T) {
	idx := sealedIndex(t, passage("a", 0, 1, 0), passage("b", 1, 0, 1))
	results, err := idx.Query([]float32{1, 0}, 50)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Query() returned %d results, want 2", len(results))
	}
}

func TestQueryDoesNotMutateInput(t *testing.T) {
	idx := sealedIndex(t, passage("a", 0, 1, 0))
	vec := []float32{3, 4}
	if _, err := idx.Query(vec, 1); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if vec[0] != 3 || vec[1] != 4 {
		t.Errorf("query vector mutated: %v", vec)
	}
}

func TestReleasedIndex(t *testing.T) {
	idx := sealedIndex(t, passage("a", 0, 1, 0))
	idx.Release()

	if _, err := idx.Query([]float32{1, 0}, 1); !errors.Is(err, ErrReleased) {
		t.Fatalf("Query() error = %v, want %v", err, ErrReleased)
	}
	if err := idx.Insert([]store.Passage{passage("b", 1, 0, 1)}); !errors.Is(err, ErrReleased) {
		t.Fatalf("Insert() error = %v, want %v", err, ErrReleased)
	}
	if idx.Size() != 0 {
		t.Errorf("Size() = %d after release, want 0", idx.Size())
	}
}

package chunker

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitShortText(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split("The capital of France is Paris.", "facts.txt")
	if len(chunks) != 1 {
		t.Fatalf("Split() returned %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Text != "The capital of France is Paris." {
		t.Errorf("chunk text = %q, want full input", c.Text)
	}
	if c.Ordinal != 0 || c.Page != 0 || c.Source != "facts.txt" {
		t.Errorf("chunk provenance = %+v, want ordinal 0, page 0, source facts.txt", c)
	}
}

func TestSplitEmptyAndWhitespace(t *testing.T) {
	s := NewSplitter(10, 2)
	if got := s.Split("", "a.txt"); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("   \n\t  ", "a.txt"); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitDropsWhitespaceOnlyChunks(t *testing.T) {
	s := NewSplitter(3, 0)
	chunks := s.Split("aaa   bbb", "a.txt")
	if len(chunks) != 2 {
		t.Fatalf("Split() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "aaa" || chunks[1].Text != "bbb" {
		t.Errorf("chunk texts = [%q %q], want [aaa bbb]", chunks[0].Text, chunks[1].Text)
	}
	// Ordinals stay contiguous even though the middle chunk was dropped.
	if chunks[0].Ordinal != 0 || chunks[1].Ordinal != 1 {
		t.Errorf("ordinals = [%d %d], want [0 1]", chunks[0].Ordinal, chunks[1].Ordinal)
	}
}

func TestSplitNeverProducesEmptyChunk(t *testing.T) {
	s := NewSplitter(4, 2)
	for _, input := range []string{"x", "hello world", strings.Repeat("ab ", 50)} {
		for _, c := range s.Split(input, "a.txt") {
			if strings.TrimSpace(c.Text) == "" {
				t.Errorf("Split(%q) produced a whitespace-only chunk", input)
			}
		}
	}
}

func TestSplitCoversAllTextInOrder(t *testing.T) {
	const size, overlap = 10, 3
	text := "abcdefghijklmnopqrstuvwxyz0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	s := NewSplitter(size, overlap)
	chunks := s.Split(text, "a.txt")

	// Consecutive chunks share exactly `overlap` runes, so stripping that
	// prefix from every chunk after the first reconstructs the input.
	var rebuilt strings.Builder
	for i, c := range chunks {
		if c.Ordinal != i {
			t.Fatalf("chunk %d has ordinal %d", i, c.Ordinal)
		}
		if i == 0 {
			rebuilt.WriteString(c.Text)
			continue
		}
		runes := []rune(c.Text)
		rebuilt.WriteString(string(runes[overlap:]))
	}
	if rebuilt.String() != text {
		t.Errorf("reconstructed text = %q, want %q", rebuilt.String(), text)
	}
}

func TestSplitIsIdempotent(t *testing.T) {
	s := NewSplitter(8, 2)
	text := "Lorem ipsum dolor sit amet, consectetur adipiscing elit."
	first := s.Split(text, "a.txt")
	second := s.Split(text, "a.txt")
	if !reflect.DeepEqual(first, second) {
		t.Error("Split() is not deterministic across runs")
	}
}

func TestSplitOverlapLargerThanSize(t *testing.T) {
	// Falls back to non-overlapping steps instead of looping forever.
	s := NewSplitter(4, 10)
	chunks := s.Split("abcdefgh", "a.txt")
	if len(chunks) != 2 {
		t.Fatalf("Split() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].Text != "abcd" || chunks[1].Text != "efgh" {
		t.Errorf("chunk texts = [%q %q], want [abcd efgh]", chunks[0].Text, chunks[1].Text)
	}
}

func TestSplitRuneSafe(t *testing.T) {
	s := NewSplitter(2, 0)
	chunks := s.Split("héllо wörld", "a.txt")
	var rebuilt strings.Builder
	for _, c := range chunks {
		rebuilt.WriteString(c.Text)
	}
	if rebuilt.String() != "héllо wörld" {
		t.Errorf("rune reconstruction = %q, want %q", rebuilt.String(), "héllо wörld")
	}
}

func TestSplitPages(t *testing.T) {
	s := NewSplitter(100, 0)
	pages := []string{"page one text", "   ", "page three text"}
	chunks := s.SplitPages(pages, "doc.pdf")

	if len(chunks) != 2 {
		t.Fatalf("SplitPages() returned %d chunks, want 2", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[1].Page != 3 {
		t.Errorf("pages = [%d %d], want [1 3]", chunks[0].Page, chunks[1].Page)
	}
	if chunks[0].Ordinal != 0 || chunks[1].Ordinal != 1 {
		t.Errorf("ordinals = [%d %d], want [0 1]", chunks[0].Ordinal, chunks[1].Ordinal)
	}
	if chunks[1].Source != "doc.pdf" {
		t.Errorf("source = %q, want doc.pdf", chunks[1].Source)
	}
}

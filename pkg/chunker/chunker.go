package chunker

import "strings"

// Chunk is a passage draft: document text with provenance but no embedding
// yet. Ordinals are contiguous per source document and follow reading order.
type Chunk struct {
	Text    string
	Source  string
	Page    int // 1-based for paged sources, 0 for flat text
	Ordinal int
}

// Splitter cuts text into overlapping, rune-safe chunks of roughly Size
// characters. Splitting is deterministic: the same input always yields the
// same chunk sequence.
type Splitter struct {
	Size    int
	Overlap int
}

func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{Size: size, Overlap: overlap}
}

// Split chunks a flat document. Whitespace-only chunks are dropped and never
// consume an ordinal, so ordinals of emitted chunks stay contiguous.
func (s *Splitter) Split(text, source string) []Chunk {
	return s.split(text, source, 0, 0)
}

// SplitPages chunks a paged document page by page, keeping ordinals increasing
// across page boundaries so document order survives into ranking tie-breaks.
func (s *Splitter) SplitPages(pages []string, source string) []Chunk {
	var chunks []Chunk
	ordinal := 0
	for i, page := range pages {
		part := s.split(page, source, i+1, ordinal)
		ordinal += len(part)
		chunks = append(chunks, part...)
	}
	return chunks
}

func (s *Splitter) split(text, source string, page, firstOrdinal int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	size := s.Size
	if size <= 0 {
		size = len(text)
	}

	step := size - s.Overlap
	if step <= 0 {
		step = size // fallback if overlap >= size
	}

	runes := []rune(text)
	totalLen := len(runes)

	var chunks []Chunk
	ordinal := firstOrdinal
	for i := 0; i < totalLen; i += step {
		end := i + size
		if end > totalLen {
			end = totalLen
		}

		piece := string(runes[i:end])
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, Chunk{
				Text:    piece,
				Source:  source,
				Page:    page,
				Ordinal: ordinal,
			})
			ordinal++
		}

		if end == totalLen {
			break
		}
	}

	return chunks
}

// Package chunker splits extracted document text into overlapping chunks
// suitable for embedding and retrieval.
package chunker

import "strings"

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters shared between
	// consecutive chunks.
	DefaultChunkOverlap = 200
)

// Splitter cuts text into chunks of at most chunkSize characters, preferring
// paragraph breaks, then line breaks, then word breaks, before falling back
// to hard character cuts. Consecutive chunks overlap by up to chunkOverlap
// characters.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a splitter. Non-positive arguments fall back to defaults, and
// an overlap at or above the chunk size is clamped to size/5.
func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", " ", ""},
	}
}

// Split returns the ordered chunk sequence for text. Empty or all-whitespace
// input yields an empty slice; no returned chunk is empty.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var remaining []string
	for i, candidate := range separators {
		if candidate == "" {
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			remaining = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardSplit(text)
	}

	splits := strings.Split(text, sep)

	var chunks []string
	var pending []string
	for _, piece := range splits {
		if len([]rune(piece)) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		// An oversized piece: flush what we have, then recurse into it
		// with the finer-grained separators.
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, sep)...)
			pending = nil
		}
		chunks = append(chunks, s.split(piece, remaining)...)
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, sep)...)
	}
	return chunks
}

// merge greedily joins small splits into chunks up to chunkSize, carrying
// the trailing splits (up to chunkOverlap characters) into the next chunk.
func (s *Splitter) merge(splits []string, sep string) []string {
	sepLen := len([]rune(sep))

	var chunks []string
	var window []string
	total := 0

	flush := func() {
		if len(window) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(window, sep))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range splits {
		pieceLen := len([]rune(piece))
		joined := pieceLen
		if len(window) > 0 {
			joined += sepLen
		}

		if total+joined > s.chunkSize && len(window) > 0 {
			flush()
			// Shrink the window from the front until what remains fits
			// inside the overlap budget alongside the new piece.
			for total > s.chunkOverlap || (total+joined > s.chunkSize && total > 0) {
				drop := len([]rune(window[0]))
				if len(window) > 1 {
					drop += sepLen
				}
				total -= drop
				window = window[1:]
			}
		}

		window = append(window, piece)
		total += pieceLen
		if len(window) > 1 {
			total += sepLen
		}
	}
	flush()
	return chunks
}

// hardSplit cuts text into fixed-size windows when no separator applies,
// stepping by chunkSize minus overlap.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	step := s.chunkSize - s.chunkOverlap
	if step <= 0 {
		step = s.chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

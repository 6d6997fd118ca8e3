package rag

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Default chunking parameters. Sizes are in runes, not bytes, so
// multi-byte scripts chunk the same as ASCII.
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultChunkSeparator = "\n"
)

// Splitter cuts document text into chunks of at most size runes, where
// consecutive chunks share up to overlap runes of trailing context.
//
// Text is first cut at separator boundaries and any part longer than
// the chunk size is hard-split. Parts are then greedily packed into
// chunks; when a chunk is emitted, its trailing parts within the
// overlap budget seed the next one.
type Splitter struct {
	size      int
	overlap   int
	separator string
}

// NewSplitter returns a splitter with the given parameters. The overlap
// must be smaller than the chunk size or every chunk would repeat its
// predecessor.
func NewSplitter(size, overlap int, separator string) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap cannot be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	if separator == "" {
		return nil, errors.New("chunk separator cannot be empty")
	}
	return &Splitter{size: size, overlap: overlap, separator: separator}, nil
}

// DefaultSplitter returns a splitter with the package defaults.
func DefaultSplitter() *Splitter {
	s, err := NewSplitter(DefaultChunkSize, DefaultChunkOverlap, DefaultChunkSeparator)
	if err != nil {
		panic(err)
	}
	return s
}

// Split cuts text into chunks. Whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	parts := s.partition(text)
	sepLen := utf8.RuneCountInString(s.separator)

	var (
		chunks  []string
		current []string
		curLen  int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, s.separator))
		}
	}

	for _, part := range parts {
		partLen := utf8.RuneCountInString(part)
		needed := partLen
		if len(current) > 0 {
			needed += sepLen
		}

		if curLen+needed > s.size && len(current) > 0 {
			flush()
			current, curLen = s.overlapTail(current)

			needed = partLen
			if len(current) > 0 {
				needed += sepLen
			}
			// The overlap plus an oversized part can still exceed the
			// budget; the part then starts a chunk on its own.
			if curLen+needed > s.size {
				current, curLen = nil, 0
				needed = partLen
			}
		}

		current = append(current, part)
		curLen += needed
	}
	flush()

	return chunks
}

// partition cuts text at separator boundaries, dropping blank parts and
// hard-splitting any part longer than the chunk size.
func (s *Splitter) partition(text string) []string {
	var parts []string
	for _, part := range strings.Split(text, s.separator) {
		part = strings.TrimRight(part, "\r")
		if strings.TrimSpace(part) == "" {
			continue
		}
		if utf8.RuneCountInString(part) <= s.size {
			parts = append(parts, part)
			continue
		}
		parts = append(parts, hardSplit(part, s.size)...)
	}
	return parts
}

// hardSplit cuts an oversized part into windows of at most size runes.
func hardSplit(part string, size int) []string {
	runes := []rune(part)
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// overlapTail returns the trailing parts of the emitted chunk that fit
// within the overlap budget, so the next chunk starts with shared
// context.
func (s *Splitter) overlapTail(current []string) ([]string, int) {
	if s.overlap == 0 {
		return nil, 0
	}
	sepLen := utf8.RuneCountInString(s.separator)

	tailLen := 0
	start := len(current)
	for i := len(current) - 1; i >= 0; i-- {
		needed := utf8.RuneCountInString(current[i])
		if start < len(current) {
			needed += sepLen
		}
		if tailLen+needed > s.overlap {
			break
		}
		tailLen += needed
		start = i
	}
	if start == len(current) {
		return nil, 0
	}

	tail := make([]string, len(current)-start)
	copy(tail, current[start:])
	return tail, tailLen
}

package chunk

import (
	"errors"
	"iter"
	"strings"
	"unicode"

	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults for window size and overlap, in runes.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Strategy selects how text is split.
type Strategy string

const (
	// StrategyWindow cuts fixed rune windows, preferring a whitespace break
	// in the second half of each window.
	StrategyWindow Strategy = "window"
	// StrategyRecursive splits on paragraph, line and word separators first
	// using langchaingo's recursive character splitter.
	StrategyRecursive Strategy = "recursive"
)

var (
	// ErrInvalidSize indicates a non-positive window size.
	ErrInvalidSize = errors.New("chunk size must be positive")
	// ErrInvalidOverlap indicates an overlap outside [0, size).
	ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than the size")
	// ErrUnknownStrategy indicates an unsupported Strategy.
	ErrUnknownStrategy = errors.New("unknown chunk strategy")
)

// Chunk is one window of normalized text.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits text into overlapping windows.
type Chunker struct {
	size     int
	overlap  int
	strategy Strategy
}

// NewChunker creates a Chunker. An empty strategy means StrategyWindow.
func NewChunker(size, overlap int, strategy Strategy) (*Chunker, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if overlap < 0 || overlap >= size {
		return nil, ErrInvalidOverlap
	}
	switch strategy {
	case "":
		strategy = StrategyWindow
	case StrategyWindow, StrategyRecursive:
	default:
		return nil, ErrUnknownStrategy
	}
	return &Chunker{size: size, overlap: overlap, strategy: strategy}, nil
}

// DefaultChunker returns a window Chunker with the default size and overlap.
func DefaultChunker() *Chunker {
	return &Chunker{size: DefaultSize, overlap: DefaultOverlap, strategy: StrategyWindow}
}

// Size returns the window size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunks returns a lazy, finite sequence of chunks of text.
func (c *Chunker) Chunks(text string) iter.Seq[Chunk] {
	if c.strategy == StrategyRecursive {
		return c.recursive(text)
	}
	return c.windows(text)
}

func (c *Chunker) windows(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		runes := []rune(text)
		n := len(runes)
		index := 0
		for start := 0; start < n; {
			end := min(start+c.size, n)
			if end < n {
				for i := end; i > start+c.size/2; i-- {
					if unicode.IsSpace(runes[i]) {
						end = i
						break
					}
				}
			}
			if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
				if !yield(Chunk{Index: index, Text: piece}) {
					return
				}
				index++
			}
			if end == n {
				return
			}
			start = max(end-c.overlap, start+1)
		}
	}
}

func (c *Chunker) recursive(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		splitter := textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(c.size),
			textsplitter.WithChunkOverlap(c.overlap),
		)
		parts, err := splitter.SplitText(text)
		if err != nil {
			// Fall back to plain windows so a document is never left unchunked.
			c.windows(text)(yield)
			return
		}
		index := 0
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !yield(Chunk{Index: index, Text: part}) {
				return
			}
			index++
		}
	}
}

package chunker

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Chunker splits normalized document text into overlapping chunks suitable
// for embedding. Chunk boundaries prefer sentence ends over hard cuts.
type Chunker struct {
	maxChars int
	overlap  int
}

// New creates a Chunker. overlap must be smaller than maxChars; config
// validation enforces this before a Chunker is ever built.
func New(maxChars, overlap int) *Chunker {
	return &Chunker{
		maxChars: maxChars,
		overlap:  overlap,
	}
}

// Normalize collapses any run of whitespace to a single space and trims
// the ends. Chunking always operates on normalized text.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

// Split chunks text into an ordered sequence of chunk strings. Text shorter
// than maxChars yields exactly one chunk equal to the normalized text; empty
// input yields no chunks. Consecutive chunks overlap by up to c.overlap
// characters, except where a chunk ended at a sentence boundary close to the
// chunk start.
func (c *Chunker) Split(text string) []string {
	runes := []rune(Normalize(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.maxChars
		if end > len(runes) {
			end = len(runes)
		} else if end < len(runes) {
			// Try not to cut mid-sentence: back off to the last ". " in the
			// window, but only if it sits in the second half.
			if p := lastSentenceEnd(runes[start:end]); p >= c.maxChars/2 {
				end = start + p + 1 // keep the period
			}
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))
		if end == len(runes) {
			break
		}

		// Advance with overlap. The cursor must always move forward:
		// a malformed overlap can otherwise loop forever.
		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lastSentenceEnd returns the index of the period of the last ". " sequence
// in window, or -1 when none exists.
func lastSentenceEnd(window []rune) int {
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '.' && window[i+1] == ' ' {
			return i
		}
	}
	return -1
}

// Package chunk splits long transcripts into overlapping windows that end on
// sentence boundaries where possible.
package chunk

import "strings"

const (
	DefaultSize    = 8000
	DefaultOverlap = 200
)

// Span is a half-open rune range [Start, End) of the input.
type Span struct {
	Start int
	End   int
}

func isBoundary(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '\n'
}

// Spans returns the raw windows Split would cut, before trimming.
// Lengths are measured in runes.
func Spans(text string, size, overlap int) []Span {
	runes := []rune(text)
	n := len(runes)
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if n <= size {
		return []Span{{Start: 0, End: n}}
	}

	var spans []Span
	start := 0
	for start < n {
		end := start + size
		if end < n {
			lookback := max(start, end-overlap)
			for i := end - 1; i >= lookback; i-- {
				if isBoundary(runes[i]) {
					end = i + 1
					break
				}
			}
		} else {
			end = n
		}
		spans = append(spans, Span{Start: start, End: end})
		if end >= n {
			break
		}
		start = max(start+1, end-overlap)
	}
	return spans
}

// Split cuts text into trimmed, non-empty chunks of at most size runes.
// Text that already fits is returned unchanged as the only chunk.
func Split(text string, size, overlap int) []string {
	spans := Spans(text, size, overlap)
	if len(spans) == 1 && spans[0].Start == 0 {
		return []string{text}
	}
	runes := []rune(text)
	out := make([]string, 0, len(spans))
	for _, s := range spans {
		c := strings.TrimSpace(string(runes[s.Start:s.End]))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Len counts runes, the unit every chunking threshold is expressed in.
func Len(text string) int {
	return len([]rune(text))
}

// Truncate returns at most n runes of text, or "" when n is not positive.
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

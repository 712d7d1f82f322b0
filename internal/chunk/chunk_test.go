package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentences(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		b.WriteString("This is sentence number ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(". ")
	}
	return b.String()[:n]
}

func TestShortTextIsSingleChunk(t *testing.T) {
	text := "  Hello there.  "
	got := Split(text, 100, 10)
	require.Len(t, got, 1)
	assert.Equal(t, text, got[0])
}

func TestChunksRespectSize(t *testing.T) {
	text := sentences(20000)
	for _, c := range Split(text, DefaultSize, DefaultOverlap) {
		assert.LessOrEqual(t, Len(c), DefaultSize)
	}
}

func TestBreaksOnSentenceBoundary(t *testing.T) {
	text := sentences(3000)
	spans := Spans(text, 1000, 200)
	runes := []rune(text)
	for _, s := range spans[:len(spans)-1] {
		last := runes[s.End-1]
		assert.True(t, isBoundary(last), "span %v ends with %q", s, last)
	}
}

func TestHardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("a", 250)
	spans := Spans(text, 100, 20)
	require.NotEmpty(t, spans)
	assert.Equal(t, Span{0, 100}, spans[0])
	assert.Equal(t, 80, spans[1].Start)
}

func TestSpansCoverWholeText(t *testing.T) {
	for _, tc := range []struct{ n, size, overlap int }{
		{20000, 8000, 200},
		{5000, 1000, 0},
		{1000, 100, 150},
		{777, 50, 49},
	} {
		text := sentences(tc.n)
		spans := Spans(text, tc.size, tc.overlap)
		require.NotEmpty(t, spans)
		assert.Equal(t, 0, spans[0].Start)
		assert.Equal(t, tc.n, spans[len(spans)-1].End)
		for i := 1; i < len(spans); i++ {
			assert.LessOrEqual(t, spans[i].Start, spans[i-1].End, "gap before span %d", i)
			assert.Greater(t, spans[i].Start, spans[i-1].Start, "no progress at span %d", i)
		}
	}
}

func TestOverlapLargerThanSizeTerminates(t *testing.T) {
	text := strings.Repeat("word ", 200)
	got := Split(text, 100, 150)
	assert.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 1000)
}

func TestDeterministic(t *testing.T) {
	text := sentences(12345)
	assert.Equal(t, Split(text, 4000, 200), Split(text, 4000, 200))
}

func TestWhitespaceOnlyChunksDropped(t *testing.T) {
	text := strings.Repeat("a", 100) + strings.Repeat(" ", 100) + strings.Repeat("b", 100)
	for _, c := range Split(text, 100, 0) {
		assert.NotEmpty(t, c)
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 10))
}

func TestTruncateNonPositive(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Equal(t, "", Truncate("héllo", 0))
		assert.Equal(t, "", Truncate("héllo", -1))
	})
}

package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestAssessQualityHigh(t *testing.T) {
	q := AssessQuality([]Segment{
		{Text: "a", AvgLogprob: f(-0.2), CompressionRatio: f(1.5), NoSpeechProb: f(0.05)},
		{Text: "b", AvgLogprob: f(-0.2), CompressionRatio: f(1.7), NoSpeechProb: f(0.05)},
	})
	assert.Equal(t, RatingHigh, q.Rating)
	assert.Empty(t, q.Warnings)
	assert.Equal(t, 86.7, q.AvgConfidence)
	assert.Equal(t, 95.0, q.SpeechPercentage)
	assert.Equal(t, 1.6, q.AvgCompressionRatio)
	require.NotNil(t, q.Details)
	assert.Equal(t, 2, q.Details.NumSegments)
}

func TestAssessQualityLowWithWarnings(t *testing.T) {
	q := AssessQuality([]Segment{
		{AvgLogprob: f(-1.2), CompressionRatio: f(3.0), NoSpeechProb: f(0.5)},
	})
	assert.Equal(t, RatingLow, q.Rating)
	assert.Len(t, q.Warnings, 3)
}

func TestAssessQualityMedium(t *testing.T) {
	q := AssessQuality([]Segment{{AvgLogprob: f(-0.5), CompressionRatio: f(2.2), NoSpeechProb: f(0.2)}})
	assert.Equal(t, RatingMedium, q.Rating)
}

func TestAssessQualityNoSegments(t *testing.T) {
	q := AssessQuality(nil)
	assert.Equal(t, RatingUnknown, q.Rating)
	assert.Equal(t, []string{"No segments available"}, q.Warnings)
}

func TestLowConfidenceCapsAndOrders(t *testing.T) {
	segs := []Segment{
		{Start: 1, AvgLogprob: f(-1.5)},
		{Start: 2, AvgLogprob: f(-0.1)},
		{Start: 3, AvgLogprob: f(-2)},
		{Start: 4},
		{Start: 5, AvgLogprob: f(-1.01)},
		{Start: 6, AvgLogprob: f(-3)},
	}
	got := LowConfidence(segs, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{1, 3, 5}, []float64{got[0].Start, got[1].Start, got[2].Start})
}

func TestHighlights(t *testing.T) {
	segs := []Segment{
		{Text: "short"},
		{Text: "a much longer segment with many more words in it"},
		{Text: "unsure", Words: []Word{{Word: "unsure", Confidence: 0.3}}},
	}
	got := Highlights(segs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "unsure", got[0].Text)
	assert.Contains(t, got[1].Text, "longer")
}

func TestTimestampAndSummarize(t *testing.T) {
	assert.Equal(t, "1:05", Timestamp(65.9))
	assert.Equal(t, "0:00", Timestamp(-2))

	long := ""
	for i := 0; i < 130; i++ {
		long += "word "
	}
	s := Summarize(long)
	assert.True(t, len(s) > 3 && s[len(s)-3:] == "...")
	assert.Equal(t, "two words", Summarize("  two   words "))
}

func TestFromSegments(t *testing.T) {
	tr := FromSegments("en", []Segment{{Text: " Hello "}, {Text: ""}, {Text: "world."}})
	assert.Equal(t, "Hello world.", tr.Text)
	assert.Equal(t, "en", tr.Language)
}

package scoring_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
	"github.com/dsmilne3/ai-video-analyzer/internal/scoring/scoringtest"
)

func hierarchical() *rubric.Rubric {
	return &rubric.Rubric{
		RubricID: "demo", Name: "Demo", Version: "1",
		Categories: []rubric.Category{
			{ID: "content", Label: "Content", Weight: 0.5, MaxPoints: 30, Criteria: []rubric.Criterion{
				{ID: "accuracy", Label: "Accuracy", Desc: "Claims are correct", MaxPoints: 20},
				{ID: "coverage", Label: "Coverage", MaxPoints: 10},
			}},
			{ID: "delivery", Label: "Delivery", Weight: 0.5, MaxPoints: 5, Criteria: []rubric.Criterion{
				{ID: "pacing", Label: "Pacing", MaxPoints: 5},
			}},
		},
		Scale:      rubric.Scale{Min: 0, Max: 35},
		Thresholds: rubric.Thresholds{Pass: 25, Revise: 18},
	}
}

func TestFallbackKeepsFractionalPoints(t *testing.T) {
	r := hierarchical()
	r.Categories[1].MaxPoints = 8
	r.Categories[1].Criteria[0].MaxPoints = 8
	out := scoring.NewClient(scoring.Unavailable{}, zerolog.Nop()).Score(context.Background(), scoring.Unit{Rubric: r})

	require.Equal(t, scoring.Fallback, out.Kind)
	assert.InDelta(t, 4.8, out.Partial.Scores["pacing"].Score, 1e-9)
}

func TestScoreParsesReply(t *testing.T) {
	fake := &scoringtest.Fake{Respond: scoringtest.Scores(func(c scoringtest.Requested) float64 { return float64(c.Max) })}
	c := scoring.NewClient(fake, zerolog.Nop())

	out := c.Score(context.Background(), scoring.Unit{Rubric: hierarchical(), Transcript: "hello"})
	require.Equal(t, scoring.Scored, out.Kind)
	assert.NoError(t, out.Err)
	assert.Equal(t, 20.0, out.Partial.Scores["accuracy"].Score)
	assert.Equal(t, 5.0, out.Partial.Scores["pacing"].Score)
	assert.Equal(t, 8.0, out.Partial.Scores["accuracy"].Confidence)
	assert.Equal(t, "fake summary", out.Partial.Summary)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].JSON)
	assert.Zero(t, reqs[0].Temperature)
	assert.Equal(t, scoring.MaxTokens(3), reqs[0].MaxTokens)
}

func TestScoreFallsBack(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		err   error
	}{
		{"provider error", "", errors.New("401 unauthorized")},
		{"empty reply", "   ", nil},
		{"malformed json", `{"scores": {"accuracy": `, nil},
		{"missing criterion", `{"scores": {"accuracy": {"score": 3}, "coverage": {"score": 2}}}`, nil},
		{"score not a number", `{"scores": {"accuracy": {"score": "high"}}}`, nil},
		{"no scores key", `{"overall": {}}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fake := &scoringtest.Fake{Respond: func(scoring.Request) (string, error) { return tc.reply, tc.err }}
			out := scoring.NewClient(fake, zerolog.Nop()).Score(context.Background(), scoring.Unit{Rubric: hierarchical()})

			require.Equal(t, scoring.Fallback, out.Kind)
			assert.Error(t, out.Err)
			assert.Equal(t, 1, fake.Calls(), "no retries")
			require.Len(t, out.Partial.Scores, 3)
			assert.Equal(t, 12.0, out.Partial.Scores["accuracy"].Score)
			assert.Equal(t, 6.0, out.Partial.Scores["coverage"].Score)
			assert.Equal(t, 3.0, out.Partial.Scores["pacing"].Score)
			for _, e := range out.Partial.Scores {
				assert.Contains(t, e.Note, scoring.FallbackNote)
				assert.Equal(t, 3.0, e.Confidence)
			}
		})
	}
}

func TestFlatFallbackUsesSix(t *testing.T) {
	out := scoring.NewClient(nil, zerolog.Nop()).Score(context.Background(), scoring.Unit{Rubric: rubric.Default()})
	require.Equal(t, scoring.Fallback, out.Kind)
	assert.ErrorIs(t, out.Err, scoring.ErrUnavailable)
	require.Len(t, out.Partial.Scores, 6)
	for _, e := range out.Partial.Scores {
		assert.Equal(t, 6.0, e.Score)
	}
}

func TestCategorySubsetOnlyAsksForItsCriteria(t *testing.T) {
	r := hierarchical()
	fake := &scoringtest.Fake{Respond: scoringtest.Scores(func(scoringtest.Requested) float64 { return 1 })}
	out := scoring.NewClient(fake, zerolog.Nop()).Score(context.Background(), scoring.Unit{
		Rubric: r, Categories: r.Categories[1:], Transcript: "x",
	})
	require.Equal(t, scoring.Scored, out.Kind)
	assert.Len(t, out.Partial.Scores, 1)
	assert.Contains(t, out.Partial.Scores, "pacing")
}

func TestMissingConfidenceDefaults(t *testing.T) {
	r := hierarchical()
	crits := scoring.Unit{Rubric: r, Categories: r.Categories[1:]}.Criteria()
	p, err := scoring.ParseResponse("```json\n{\"scores\": {\"pacing\": {\"score\": 4}}}\n```", crits)
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.Scores["pacing"].Confidence)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, scoring.ExtractJSON("Sure! Here you go:\n```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, scoring.ExtractJSON(`noise {"a":{"b":2}} trailing`))
	assert.Equal(t, "nothing", scoring.ExtractJSON(" nothing "))
}

func TestPromptContents(t *testing.T) {
	r := hierarchical()
	p := scoring.BuildPrompt(scoring.Unit{Rubric: r, Transcript: "the transcript", Chunk: 2, Chunks: 3})

	assert.Contains(t, p, `"accuracy": {"score": <int 0-20>, "confidence": <int 1-10>`)
	assert.Contains(t, p, "Accuracy (accuracy) - 20 points max: Claims are correct")
	assert.Contains(t, p, "chunk 2 of 3")
	assert.Contains(t, p, "Total possible points: 35")
	assert.Contains(t, p, "Visual analysis (if any):\nNone")
	assert.Contains(t, p, "Transcript:\nthe transcript")

	flat := scoring.BuildPrompt(scoring.Unit{Rubric: rubric.Default(), Transcript: "t", Visual: "Frame 1: ok"})
	assert.Contains(t, flat, `"clarity": {"score": <int 1-10>`)
	assert.Contains(t, flat, "Thresholds: pass if >= 6.5, revise if >= 5 and < 6.5")
	assert.Contains(t, flat, "Frame 1: ok")
	assert.NotContains(t, flat, "chunk")
	assert.Len(t, scoringtest.Criteria(flat), 6)
}

func TestMaxTokensGrowsWithCriteria(t *testing.T) {
	assert.Less(t, scoring.MaxTokens(3), scoring.MaxTokens(15))
	assert.Equal(t, 4096, scoring.MaxTokens(1000))
}

func TestUnitString(t *testing.T) {
	r := hierarchical()
	u := scoring.Unit{Rubric: r, Categories: r.Categories[:1], Chunk: 1, Chunks: 4}
	assert.Equal(t, "category content, chunk 1/4", u.String())
	assert.True(t, strings.HasPrefix(scoring.Unit{Rubric: r}.String(), "full"))
}

func TestNewWithoutKeyIsUnavailable(t *testing.T) {
	s, err := scoring.New(scoring.Settings{Provider: scoring.ProviderAnthropic})
	require.NoError(t, err)
	assert.IsType(t, scoring.Unavailable{}, s)

	_, err = scoring.New(scoring.Settings{Provider: "mystery", APIKey: "k"})
	assert.Error(t, err)

	s, err = scoring.New(scoring.Settings{Provider: scoring.ProviderAnthropic, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultAnthropicModel, s.Model())
}

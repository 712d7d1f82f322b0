// Package feedback turns an evaluation into two strengths and two areas for
// improvement, written for the person who recorded the demo.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/chunk"
	"github.com/dsmilne3/ai-video-analyzer/internal/evaluation"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

// Sentences used by the templated fallback.
const (
	GenericStrength    = "Good performance in this area."
	GenericImprovement = "Consider focusing on improving this aspect."
)

type Tone string

const (
	Congratulatory Tone = "congratulatory"
	Supportive     Tone = "supportive"
)

const (
	excerptLimit    = 2500
	maxTimeRefs     = 3
	previewLimit    = 50
	feedbackTokens  = 1000
	highlightsCount = 2
)

type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Feedback struct {
	Strengths    []Item `json:"strengths"`
	Improvements []Item `json:"improvements"`
	Tone         Tone   `json:"tone"`
}

type Input struct {
	Transcript string
	Evaluation *evaluation.Result
	Rubric     *rubric.Rubric
	Visual     string
	Segments   []transcript.Segment
}

// ranked is one criterion with its final score, in rubric order before sorting.
type ranked struct {
	label string
	entry evaluation.ScoreEntry
	max   int
}

type Generator struct {
	scorer scoring.Scorer
	log    zerolog.Logger
}

func NewGenerator(s scoring.Scorer, logger zerolog.Logger) *Generator {
	if s == nil {
		s = scoring.Unavailable{}
	}
	return &Generator{scorer: s, log: logger.With().Str("component", "feedback").Logger()}
}

// Generate asks the scorer for written feedback and falls back to templated
// text built from the scores when the call fails or the reply is unusable.
func (g *Generator) Generate(ctx context.Context, in Input) *Feedback {
	tone := Supportive
	if in.Evaluation != nil && in.Evaluation.Overall.PassStatus == evaluation.Pass {
		tone = Congratulatory
	}
	if in.Evaluation == nil || in.Rubric == nil {
		return &Feedback{Strengths: []Item{}, Improvements: []Item{}, Tone: tone}
	}

	order := rank(in.Rubric, in.Evaluation)
	top, bottom := split(order)

	text, err := g.scorer.Complete(ctx, scoring.Request{
		Prompt:      buildPrompt(in, tone, top, bottom),
		MaxTokens:   feedbackTokens,
		Temperature: 0,
		JSON:        true,
	})
	if err == nil {
		var fb *Feedback
		if fb, err = parse(text); err == nil {
			fb.Tone = tone
			return fb
		}
	}
	ev := g.log.Warn()
	if errors.Is(err, scoring.ErrUnavailable) {
		ev = g.log.Debug()
	}
	ev.Err(err).Msg("feedback generation failed, using templated feedback")
	return templated(tone, top, bottom)
}

// rank orders rubric criteria by score, highest first. Ties keep rubric order.
func rank(r *rubric.Rubric, res *evaluation.Result) []ranked {
	var out []ranked
	for _, c := range r.AllCriteria() {
		e, ok := res.Scores[c.ID]
		if !ok {
			continue
		}
		out = append(out, ranked{label: r.Label(c.ID), entry: e, max: c.Max})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].entry.Score > out[j].entry.Score })
	return out
}

// split returns the two highest criteria and the two lowest, lowest first.
func split(order []ranked) (top, bottom []ranked) {
	n := min(highlightsCount, len(order))
	top = order[:n]
	for i := len(order) - 1; i >= len(order)-n; i-- {
		bottom = append(bottom, order[i])
	}
	return top, bottom
}

func templated(tone Tone, top, bottom []ranked) *Feedback {
	fb := &Feedback{Strengths: []Item{}, Improvements: []Item{}, Tone: tone}
	for _, c := range top {
		note := c.entry.Note
		if strings.TrimSpace(note) == "" {
			note = GenericStrength
		}
		fb.Strengths = append(fb.Strengths, Item{
			Title:       c.label,
			Description: fmt.Sprintf("You scored %d/%d. %s", c.entry.Score, c.max, note),
		})
	}
	for _, c := range bottom {
		fb.Improvements = append(fb.Improvements, Item{
			Title:       c.label,
			Description: fmt.Sprintf("You scored %d/%d. %s", c.entry.Score, c.max, GenericImprovement),
		})
	}
	return fb
}

func parse(text string) (*Feedback, error) {
	body := scoring.ExtractJSON(text)
	var fb Feedback
	if err := json.Unmarshal([]byte(body), &fb); err != nil {
		return nil, fmt.Errorf("decode feedback reply: %w", err)
	}
	if len(fb.Strengths) == 0 || len(fb.Improvements) == 0 {
		return nil, errors.New("feedback reply has no strengths or improvements")
	}
	return &fb, nil
}

func buildPrompt(in Input, tone Tone, top, bottom []ranked) string {
	var b strings.Builder
	b.WriteString("You are providing constructive feedback directly to a demo video submitter. Based on the evaluation below, provide:\n\n")
	b.WriteString("1. Two specific strengths focusing on your HIGHEST scoring criteria - 2-3 sentences each\n")
	b.WriteString("2. Two specific areas for improvement focusing on your LOWEST scoring criteria - 2-3 sentences each with actionable suggestions\n\n")
	b.WriteString("When possible, reference specific timing or sections of your demo to make feedback more actionable.\n\n")
	if tone == Congratulatory {
		b.WriteString("Tone: Congratulatory and encouraging - you passed!\n\n")
	} else {
		b.WriteString("Tone: Supportive and collaborative - help you improve without being discouraging\n\n")
	}

	b.WriteString("TOP SCORING AREAS (use these for strengths):\n")
	writeRanked(&b, top)
	b.WriteString("\nBOTTOM SCORING AREAS (use these for improvements):\n")
	writeRanked(&b, bottom)

	o := in.Evaluation.Overall
	fmt.Fprintf(&b, "\nOverall score: %g/%g (%.1f%%) - Status: %s\n\n", o.TotalPoints, o.MaxPoints, o.Percentage, strings.ToUpper(string(o.PassStatus)))

	b.WriteString("Transcript excerpt:\n")
	b.WriteString(chunk.Truncate(in.Transcript, excerptLimit))
	if refs := transcript.LowConfidence(in.Segments, maxTimeRefs); len(refs) > 0 {
		b.WriteString("\n\nTIMING ANALYSIS (areas that may need attention):\n")
		for i, s := range refs {
			fmt.Fprintf(&b, "%d. %s: Low confidence (%.2f) - %q\n", i+1, transcript.Timestamp(s.Start), *s.AvgLogprob,
				chunk.Truncate(strings.TrimSpace(s.Text), previewLimit)+"...")
		}
	}

	visual := strings.TrimSpace(in.Visual)
	if visual == "" {
		visual = "Not available"
	}
	b.WriteString("\n\nVisual analysis:\n")
	b.WriteString(visual)
	b.WriteString(`

Return strictly parseable JSON with this exact structure:
{
  "strengths": [
    {"title": "<name of top scoring criterion>", "description": "2-3 sentence explanation of why this scored well"},
    {"title": "<name of 2nd top scoring criterion>", "description": "2-3 sentence explanation of why this scored well"}
  ],
  "improvements": [
    {"title": "<name of lowest scoring criterion>", "description": "2-3 sentence explanation with actionable advice to improve"},
    {"title": "<name of 2nd lowest scoring criterion>", "description": "2-3 sentence explanation with actionable advice to improve"}
  ]
}
`)
	return b.String()
}

func writeRanked(b *strings.Builder, rs []ranked) {
	for _, c := range rs {
		fmt.Fprintf(b, "- %s: %d/%d - %s\n", c.label, c.entry.Score, c.max, c.entry.Note)
	}
}

// Package pipeline runs a submission end to end: transcript quality,
// rubric evaluation and written feedback, collected into one Report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/evaluation"
	"github.com/dsmilne3/ai-video-analyzer/internal/feedback"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

const highlightCount = 3

type Submitter struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PartnerName string `json:"partner_name"`
}

type Input struct {
	Transcript *transcript.Transcript
	Visual     string
	Submitter  Submitter
	// Source names the original upload, if any.
	Source string
}

type Report struct {
	Rubric         string               `json:"rubric"`
	Provider       string               `json:"llm_provider"`
	Model          string               `json:"llm_model"`
	Transcript     string               `json:"transcript"`
	Summary        string               `json:"summary"`
	Language       string               `json:"language"`
	Segments       []transcript.Segment `json:"segments"`
	Highlights     []transcript.Segment `json:"highlights"`
	Quality        transcript.Quality   `json:"quality"`
	Evaluation     *evaluation.Result   `json:"evaluation"`
	Feedback       *feedback.Feedback   `json:"feedback"`
	VisualAnalysis string               `json:"visual_analysis,omitempty"`
	Submitter      Submitter            `json:"submitter"`
	Source         string               `json:"source,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

type Pipeline struct {
	scorer    scoring.Scorer
	evaluator *evaluation.Evaluator
	feedback  *feedback.Generator
	log       zerolog.Logger
	now       func() time.Time
}

// New wires the evaluator and feedback generator to the same scorer.
func New(client *scoring.Client, logger zerolog.Logger, opts ...evaluation.Option) *Pipeline {
	opts = append([]evaluation.Option{evaluation.WithLogger(logger)}, opts...)
	return &Pipeline{
		scorer:    client.Scorer(),
		evaluator: evaluation.New(client, opts...),
		feedback:  feedback.NewGenerator(client.Scorer(), logger),
		log:       logger.With().Str("component", "pipeline").Logger(),
		now:       time.Now,
	}
}

// Process evaluates an existing transcript against r.
func (p *Pipeline) Process(ctx context.Context, r *rubric.Rubric, in Input) (*Report, error) {
	if in.Transcript == nil || strings.TrimSpace(in.Transcript.Text) == "" {
		return nil, errors.New("empty transcript")
	}
	t := in.Transcript

	quality := transcript.AssessQuality(t.Segments)
	for _, w := range quality.Warnings {
		p.log.Warn().Str("rating", string(quality.Rating)).Msg(w)
	}

	res, err := p.evaluator.Evaluate(ctx, t.Text, r, in.Visual)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if res.Fallback {
		p.log.Warn().Int("units", res.Units).Msg("every scoring call fell back, scores are conservative placeholders")
	}

	fb := p.feedback.Generate(ctx, feedback.Input{
		Transcript: t.Text,
		Evaluation: res,
		Rubric:     r,
		Visual:     in.Visual,
		Segments:   t.Segments,
	})

	summary := p.summarize(ctx, t.Text)

	segs := t.Segments
	if segs == nil {
		segs = []transcript.Segment{}
	}
	rep := &Report{
		Rubric:         r.DisplayName(),
		Provider:       string(p.scorer.Provider()),
		Model:          p.scorer.Model(),
		Transcript:     t.Text,
		Summary:        summary,
		Language:       t.Language,
		Segments:       segs,
		Highlights:     transcript.Highlights(segs, highlightCount),
		Quality:        quality,
		Evaluation:     res,
		Feedback:       fb,
		VisualAnalysis: in.Visual,
		Submitter:      in.Submitter,
		Source:         in.Source,
		CreatedAt:      p.now().UTC(),
	}
	p.log.Info().
		Str("rubric", rep.Rubric).
		Str("status", string(res.Overall.PassStatus)).
		Float64("percentage", res.Overall.Percentage).
		Str("strategy", string(res.Strategy)).
		Msg("evaluation complete")
	return rep, nil
}

// ProcessAudio transcribes audioPath with tr, then runs Process.
func (p *Pipeline) ProcessAudio(ctx context.Context, tr transcript.Transcriber, r *rubric.Rubric, audioPath string, in Input) (*Report, error) {
	t, err := tr.Transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	in.Transcript = t
	if in.Source == "" {
		in.Source = audioPath
	}
	return p.Process(ctx, r, in)
}

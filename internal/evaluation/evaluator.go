package evaluation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/chunk"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
)

// Limits holds the decomposition thresholds and per-call transcript budgets.
// Lengths are in characters.
type Limits struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	// Transcripts longer than LengthThreshold are chunked.
	LengthThreshold int `yaml:"length_threshold"`
	// Rubrics with more than CriteriaThreshold criteria are scored per category.
	CriteriaThreshold      int `yaml:"criteria_threshold"`
	SingleCallChars        int `yaml:"single_call_chars"`
	CategoryCallChars      int `yaml:"category_call_chars"`
	ChunkCategoryCallChars int `yaml:"chunk_category_call_chars"`
}

func DefaultLimits() Limits {
	return Limits{
		ChunkSize:              chunk.DefaultSize,
		ChunkOverlap:           chunk.DefaultOverlap,
		LengthThreshold:        4000,
		CriteriaThreshold:      10,
		SingleCallChars:        3000,
		CategoryCallChars:      2500,
		ChunkCategoryCallChars: 3000,
	}
}

// Validate rejects limits that cannot drive a decomposition. Every size and
// threshold must be positive and the overlap must fit inside a chunk.
func (l Limits) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{
		{"chunk_size", l.ChunkSize},
		{"length_threshold", l.LengthThreshold},
		{"criteria_threshold", l.CriteriaThreshold},
		{"single_call_chars", l.SingleCallChars},
		{"category_call_chars", l.CategoryCallChars},
		{"chunk_category_call_chars", l.ChunkCategoryCallChars},
	} {
		if f.v <= 0 {
			return fmt.Errorf("evaluation.%s must be positive, got %d", f.name, f.v)
		}
	}
	if l.ChunkOverlap < 0 || l.ChunkOverlap >= l.ChunkSize {
		return fmt.Errorf("evaluation.chunk_overlap must be in [0, %d), got %d", l.ChunkSize, l.ChunkOverlap)
	}
	return nil
}

// Progress is called after each scorer call.
type Progress func(done, total int, unit string)

type Option func(*Evaluator)

func WithLimits(l Limits) Option         { return func(e *Evaluator) { e.limits = l } }
func WithProgress(p Progress) Option     { return func(e *Evaluator) { e.progress = p } }
func WithLogger(l zerolog.Logger) Option { return func(e *Evaluator) { e.log = l } }

// Evaluator runs every scorer call of an evaluation sequentially.
type Evaluator struct {
	client   *scoring.Client
	limits   Limits
	progress Progress
	log      zerolog.Logger
}

func New(client *scoring.Client, opts ...Option) *Evaluator {
	e := &Evaluator{client: client, limits: DefaultLimits(), log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With().Str("component", "evaluation").Logger()
	return e
}

// SelectStrategy picks the decomposition for a transcript and rubric. Flat
// rubrics only ever split by length.
func (e *Evaluator) SelectStrategy(transcript string, r *rubric.Rubric) Strategy {
	long := chunk.Len(transcript) > e.limits.LengthThreshold
	if r.Format() == rubric.FormatFlat {
		if long {
			return StrategyChunked
		}
		return StrategySingle
	}
	wide := r.CriterionCount() > e.limits.CriteriaThreshold
	switch {
	case wide && long:
		return StrategyChunkedByCategory
	case wide:
		return StrategyByCategory
	case long:
		return StrategyChunked
	}
	return StrategySingle
}

// Units lays out the scorer calls for a strategy.
func (e *Evaluator) Units(s Strategy, transcript string, r *rubric.Rubric, visual string) []scoring.Unit {
	var units []scoring.Unit
	switch s {
	case StrategySingle:
		units = append(units, scoring.Unit{
			Rubric:     r,
			Transcript: chunk.Truncate(transcript, e.limits.SingleCallChars),
			Visual:     visual,
		})
	case StrategyByCategory:
		text := chunk.Truncate(transcript, e.limits.CategoryCallChars)
		for i := range r.Categories {
			units = append(units, scoring.Unit{
				Rubric:     r,
				Categories: r.Categories[i : i+1],
				Transcript: text,
				Visual:     visual,
			})
		}
	case StrategyChunked:
		chunks := chunk.Split(transcript, e.limits.ChunkSize, e.limits.ChunkOverlap)
		for i, c := range chunks {
			units = append(units, scoring.Unit{
				Rubric:     r,
				Transcript: c,
				Chunk:      i + 1,
				Chunks:     len(chunks),
				Visual:     visual,
			})
		}
	case StrategyChunkedByCategory:
		chunks := chunk.Split(transcript, e.limits.ChunkSize, e.limits.ChunkOverlap)
		for i := range r.Categories {
			for j, c := range chunks {
				units = append(units, scoring.Unit{
					Rubric:     r,
					Categories: r.Categories[i : i+1],
					Transcript: chunk.Truncate(c, e.limits.ChunkCategoryCallChars),
					Chunk:      j + 1,
					Chunks:     len(chunks),
					Visual:     visual,
				})
			}
		}
	}
	return units
}

// Evaluate scores transcript against r. Scorer failures never surface here;
// they turn into conservative scores for the affected unit. The only errors
// are an invalid rubric and a cancelled context.
func (e *Evaluator) Evaluate(ctx context.Context, transcript string, r *rubric.Rubric, visual string) (*Result, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rubric: %w", err)
	}

	strategy := e.SelectStrategy(transcript, r)
	units := e.Units(strategy, transcript, r, visual)
	e.log.Info().
		Str("strategy", string(strategy)).
		Int("units", len(units)).
		Int("criteria", r.CriterionCount()).
		Int("transcript_chars", chunk.Len(transcript)).
		Msg("evaluation started")

	partials := make([]scoring.Partial, 0, len(units))
	fallbacks := 0
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluation cancelled after %d of %d calls: %w", i, len(units), err)
		}
		out := e.client.Score(ctx, u)
		if out.Kind == scoring.Fallback {
			fallbacks++
		}
		partials = append(partials, out.Partial)
		if e.progress != nil {
			e.progress(i+1, len(units), u.String())
		}
	}

	res := Normalize(Aggregate(r, partials), r)
	res.Strategy = strategy
	res.Units = len(units)
	res.FallbackUnits = fallbacks
	res.Fallback = fallbacks == len(units)
	res.ShortSummary = summarize(strategy, res, partials, r, len(units))

	e.log.Info().
		Str("strategy", string(strategy)).
		Str("pass_status", string(res.Overall.PassStatus)).
		Float64("total_points", res.Overall.TotalPoints).
		Float64("max_points", res.Overall.MaxPoints).
		Int("fallback_units", fallbacks).
		Msg("evaluation finished")
	return res, nil
}

func summarize(s Strategy, res *Result, partials []scoring.Partial, r *rubric.Rubric, units int) string {
	if res.Fallback {
		return scoring.FallbackSummary
	}
	n := r.CriterionCount()
	switch s {
	case StrategySingle:
		if len(partials) == 1 && partials[0].Summary != "" {
			return partials[0].Summary
		}
		return fmt.Sprintf("Evaluated transcript with %d criteria", n)
	case StrategyByCategory:
		return fmt.Sprintf("Evaluated %d categories with %d criteria", len(r.Categories), n)
	case StrategyChunked:
		return fmt.Sprintf("Evaluated %d transcript chunks with %d criteria", units, n)
	}
	return fmt.Sprintf("Evaluated %d categories across %d transcript chunks with %d criteria",
		len(r.Categories), units/len(r.Categories), n)
}

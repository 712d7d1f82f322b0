package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
)

// FallbackNote marks every score that was not produced by a scorer reply.
const FallbackNote = "Auto-generated conservative score"

// FallbackSummary is the short summary attached to fallback partials.
const FallbackSummary = "Auto-generated conservative evaluation"

const (
	fallbackFraction   = 0.6
	flatFallbackScore  = 6
	fallbackConfidence = 3
	defaultConfidence  = 5
)

// Entry is one criterion score as returned by a scorer, before clamping.
type Entry struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note"`
}

// Partial holds the scores one unit produced, keyed by criterion id.
type Partial struct {
	Scores  map[string]Entry `json:"scores"`
	Summary string           `json:"short_summary"`
}

type Kind int

const (
	Scored Kind = iota
	Fallback
)

func (k Kind) String() string {
	if k == Fallback {
		return "fallback"
	}
	return "scored"
}

// Outcome is the result of one unit: scores from the provider, or the
// conservative fallback together with the reason.
type Outcome struct {
	Kind    Kind
	Partial Partial
	Err     error
}

// Client issues exactly one scorer call per unit and never retries.
type Client struct {
	scorer Scorer
	log    zerolog.Logger
}

func NewClient(s Scorer, logger zerolog.Logger) *Client {
	if s == nil {
		s = Unavailable{}
	}
	return &Client{scorer: s, log: logger.With().Str("component", "scoring").Logger()}
}

func (c *Client) Scorer() Scorer { return c.scorer }

// Score runs one unit. It never returns an error; failures become Fallback outcomes.
func (c *Client) Score(ctx context.Context, u Unit) Outcome {
	crits := u.Criteria()
	req := Request{
		Prompt:      BuildPrompt(u),
		MaxTokens:   MaxTokens(len(crits)),
		Temperature: 0,
		JSON:        true,
	}
	text, err := c.scorer.Complete(ctx, req)
	if err == nil {
		var p Partial
		p, err = ParseResponse(text, crits)
		if err == nil {
			c.log.Debug().Stringer("unit", u).Int("criteria", len(crits)).Msg("unit scored")
			return Outcome{Kind: Scored, Partial: p}
		}
	}
	ev := c.log.Warn()
	if errors.Is(err, ErrUnavailable) {
		ev = c.log.Debug()
	}
	ev.Err(err).Stringer("unit", u).Msg("scoring failed, using conservative fallback")
	return Outcome{Kind: Fallback, Partial: FallbackPartial(u), Err: err}
}

// FallbackPartial scores every criterion of the unit conservatively:
// 60% of max points for hierarchical rubrics, a flat 6 otherwise.
func FallbackPartial(u Unit) Partial {
	p := Partial{Scores: map[string]Entry{}, Summary: FallbackSummary}
	flat := u.Rubric.Format() == rubric.FormatFlat
	for _, c := range u.Criteria() {
		score := fallbackFraction * float64(c.Max)
		if flat {
			score = flatFallbackScore
		}
		p.Scores[c.ID] = Entry{Score: score, Confidence: fallbackConfidence, Note: FallbackNote}
	}
	return p
}

type rawEntry struct {
	Score      *float64 `json:"score"`
	Confidence *float64 `json:"confidence"`
	Note       string   `json:"note"`
}

type rawResponse struct {
	Scores       map[string]rawEntry `json:"scores"`
	ShortSummary string              `json:"short_summary"`
}

// ParseResponse extracts the JSON object from a scorer reply and checks that
// every requested criterion carries a numeric score.
func ParseResponse(text string, crits []rubric.CriterionInfo) (Partial, error) {
	body := ExtractJSON(text)
	if body == "" {
		return Partial{}, errors.New("empty scorer reply")
	}
	var raw rawResponse
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Partial{}, fmt.Errorf("decode scorer reply: %w", err)
	}
	if raw.Scores == nil {
		return Partial{}, errors.New("scorer reply has no scores")
	}
	p := Partial{Scores: make(map[string]Entry, len(crits)), Summary: raw.ShortSummary}
	for _, c := range crits {
		e, ok := raw.Scores[c.ID]
		if !ok || e.Score == nil {
			return Partial{}, fmt.Errorf("scorer reply missing score for %s", c.ID)
		}
		conf := float64(defaultConfidence)
		if e.Confidence != nil {
			conf = *e.Confidence
		}
		p.Scores[c.ID] = Entry{Score: *e.Score, Confidence: conf, Note: e.Note}
	}
	return p, nil
}

// ExtractJSON strips markdown fences and surrounding prose from a reply.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}

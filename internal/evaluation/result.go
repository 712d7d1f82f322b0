// Package evaluation scores a transcript against a rubric, splitting the work
// into as many scorer calls as the transcript length and rubric size demand
// and folding the answers back into one bounded result.
package evaluation

import (
	"strings"

	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
)

type PassStatus string

const (
	Pass   PassStatus = "pass"
	Revise PassStatus = "revise"
	Fail   PassStatus = "fail"
)

type Strategy string

const (
	StrategySingle            Strategy = "single"
	StrategyChunked           Strategy = "chunked"
	StrategyByCategory        Strategy = "by_category"
	StrategyChunkedByCategory Strategy = "chunked_by_category"
)

type ScoreEntry struct {
	Score      int    `json:"score"`
	Confidence int    `json:"confidence"`
	Note       string `json:"note"`
}

type CategoryScore struct {
	Points     int     `json:"points"`
	MaxPoints  int     `json:"max_points"`
	Percentage float64 `json:"percentage"`
}

// Overall is recomputed from the clamped scores, never taken from a scorer.
// Flat rubrics also report the weighted score and method.
type Overall struct {
	TotalPoints   float64    `json:"total_points"`
	MaxPoints     float64    `json:"max_points"`
	Percentage    float64    `json:"percentage"`
	PassStatus    PassStatus `json:"pass_status"`
	WeightedScore *float64   `json:"weighted_score,omitempty"`
	Method        string     `json:"method,omitempty"`
}

type Result struct {
	Scores       map[string]ScoreEntry    `json:"scores"`
	Categories   map[string]CategoryScore `json:"categories,omitempty"`
	Overall      Overall                  `json:"overall"`
	ShortSummary string                   `json:"short_summary"`
	Strategy     Strategy                 `json:"strategy"`
	// Units is the number of scorer calls made; FallbackUnits of them fell back.
	Units         int  `json:"units"`
	FallbackUnits int  `json:"fallback_units"`
	Fallback      bool `json:"fallback"`
}

// HasFallbackScores reports whether any criterion carries the fallback marker.
func (r *Result) HasFallbackScores() bool {
	for _, s := range r.Scores {
		if strings.Contains(s.Note, scoring.FallbackNote) {
			return true
		}
	}
	return false
}

// Raw converts the result back into scorer-shaped scores.
func (r *Result) Raw() scoring.Partial {
	p := scoring.Partial{Scores: make(map[string]scoring.Entry, len(r.Scores)), Summary: r.ShortSummary}
	for id, s := range r.Scores {
		p.Scores[id] = scoring.Entry{Score: float64(s.Score), Confidence: float64(s.Confidence), Note: s.Note}
	}
	return p
}

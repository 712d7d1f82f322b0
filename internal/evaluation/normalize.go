package evaluation

import (
	"fmt"
	"math"
	"strings"

	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
)

const (
	missingNote       = "No scores available from chunks"
	missingConfidence = 3
)

// Aggregate folds partials into one score per rubric criterion: mean score,
// max confidence, notes joined. It is pure; the same inputs always give the
// same output.
func Aggregate(r *rubric.Rubric, partials []scoring.Partial) scoring.Partial {
	out := scoring.Partial{Scores: map[string]scoring.Entry{}}
	if len(partials) == 1 {
		out.Summary = partials[0].Summary
	}
	for _, c := range r.AllCriteria() {
		var got []scoring.Entry
		for _, p := range partials {
			if e, ok := p.Scores[c.ID]; ok {
				got = append(got, e)
			}
		}
		switch len(got) {
		case 0:
			out.Scores[c.ID] = scoring.Entry{Score: 0, Confidence: missingConfidence, Note: missingNote}
		case 1:
			// a lone contribution keeps its note unlabeled
			out.Scores[c.ID] = got[0]
		default:
			out.Scores[c.ID] = merge(got)
		}
	}
	return out
}

func merge(entries []scoring.Entry) scoring.Entry {
	sum, conf := 0.0, 0.0
	var notes []string
	for _, e := range entries {
		sum += e.Score
		conf = math.Max(conf, e.Confidence)
		if n := strings.TrimSpace(e.Note); n != "" {
			notes = append(notes, n)
		}
	}
	return scoring.Entry{
		Score:      sum / float64(len(entries)),
		Confidence: conf,
		Note:       fmt.Sprintf("Aggregated from %d chunks: %s", len(entries), strings.Join(notes, " | ")),
	}
}

// Normalize clamps every score into its criterion range, recomputes category
// and overall totals from the clamped values and derives the pass status.
func Normalize(raw scoring.Partial, r *rubric.Rubric) *Result {
	if r.Format() == rubric.FormatFlat {
		return normalizeFlat(raw, r)
	}

	res := &Result{
		Scores:       map[string]ScoreEntry{},
		Categories:   map[string]CategoryScore{},
		ShortSummary: raw.Summary,
	}
	total, maxTotal := 0, 0
	for _, cat := range r.Categories {
		points := 0
		for _, c := range cat.Criteria {
			e := entryFor(raw, c.ID)
			s := ScoreEntry{
				Score:      clampRound(e.Score, 0, float64(c.MaxPoints)),
				Confidence: clampRound(e.Confidence, 1, 10),
				Note:       e.Note,
			}
			res.Scores[c.ID] = s
			points += s.Score
		}
		points = min(max0(points), cat.MaxPoints)
		res.Categories[cat.ID] = CategoryScore{
			Points:     points,
			MaxPoints:  cat.MaxPoints,
			Percentage: percentage(float64(points), float64(cat.MaxPoints)),
		}
		total += points
		maxTotal += cat.MaxPoints
	}
	res.Overall = Overall{
		TotalPoints: float64(total),
		MaxPoints:   float64(maxTotal),
		Percentage:  percentage(float64(total), float64(maxTotal)),
		PassStatus:  Status(float64(total), r.Thresholds),
	}
	return res
}

func normalizeFlat(raw scoring.Partial, r *rubric.Rubric) *Result {
	res := &Result{Scores: map[string]ScoreEntry{}, ShortSummary: raw.Summary}
	weighted, weights := 0.0, 0.0
	for _, c := range r.Criteria {
		e := entryFor(raw, c.ID)
		s := ScoreEntry{
			Score:      clampRound(e.Score, r.Scale.Min, r.Scale.Max),
			Confidence: clampRound(e.Confidence, 1, 10),
			Note:       e.Note,
		}
		res.Scores[c.ID] = s
		weighted += float64(s.Score) * c.Weight
		weights += c.Weight
	}
	score := 0.0
	if weights > 0 {
		score = round1(weighted / weights)
	}
	res.Overall = Overall{
		TotalPoints:   score,
		MaxPoints:     r.Scale.Max,
		Percentage:    percentage(score, r.Scale.Max),
		PassStatus:    Status(score, r.Thresholds),
		WeightedScore: &score,
		Method:        r.OverallMethod,
	}
	return res
}

// Status maps a total onto the rubric thresholds.
func Status(total float64, th rubric.Thresholds) PassStatus {
	switch {
	case total >= th.Pass:
		return Pass
	case total >= th.Revise:
		return Revise
	}
	return Fail
}

func entryFor(raw scoring.Partial, id string) scoring.Entry {
	if e, ok := raw.Scores[id]; ok {
		return e
	}
	return scoring.Entry{Score: 0, Confidence: missingConfidence, Note: missingNote}
}

// clampRound rounds half away from zero, then clamps to [lo, hi].
func clampRound(v, lo, hi float64) int {
	if math.IsNaN(v) {
		v = lo
	}
	return int(math.Min(math.Max(math.Round(v), lo), hi))
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func percentage(points, outOf float64) float64 {
	if outOf <= 0 {
		return 0
	}
	return math.Round(1000*points/outOf) / 10
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

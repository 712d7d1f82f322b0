package scoring

import (
	"fmt"
	"strings"

	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
)

// Unit is one scoring call's worth of work.
type Unit struct {
	Rubric *rubric.Rubric
	// Categories restricts a hierarchical rubric to a subset; nil means all.
	Categories []rubric.Category
	// Transcript is the text to score, already cut to the call's budget.
	Transcript string
	// Chunk is 1-based; zero when the transcript was not chunked.
	Chunk  int
	Chunks int
	Visual string
}

func (u Unit) categories() []rubric.Category {
	if u.Categories != nil {
		return u.Categories
	}
	return u.Rubric.Categories
}

// Criteria lists the criteria this unit must score, in rubric order.
func (u Unit) Criteria() []rubric.CriterionInfo {
	if u.Rubric.Format() == rubric.FormatFlat {
		return u.Rubric.AllCriteria()
	}
	var out []rubric.CriterionInfo
	for _, c := range u.categories() {
		out = append(out, c.Info()...)
	}
	return out
}

func (u Unit) String() string {
	var parts []string
	if u.Categories != nil {
		ids := make([]string, 0, len(u.Categories))
		for _, c := range u.Categories {
			ids = append(ids, c.ID)
		}
		parts = append(parts, "category "+strings.Join(ids, ","))
	}
	if u.Chunk > 0 {
		parts = append(parts, fmt.Sprintf("chunk %d/%d", u.Chunk, u.Chunks))
	}
	if len(parts) == 0 {
		return "full transcript"
	}
	return strings.Join(parts, ", ")
}

// MaxTokens sizes the response budget to the number of criteria requested.
func MaxTokens(criteria int) int {
	return min(400+60*criteria, 4096)
}

// BuildPrompt renders the scoring prompt for a unit.
func BuildPrompt(u Unit) string {
	if u.Rubric.Format() == rubric.FormatHierarchical {
		return hierarchicalPrompt(u)
	}
	return flatPrompt(u)
}

func chunkNote(u Unit) string {
	if u.Chunk == 0 {
		return ""
	}
	return fmt.Sprintf("\nThis is chunk %d of %d of a longer transcript. Score only what this chunk shows.\n", u.Chunk, u.Chunks)
}

func visualText(v string) string {
	if strings.TrimSpace(v) == "" {
		return "None"
	}
	return v
}

func hierarchicalPrompt(u Unit) string {
	cats := u.categories()

	var desc, schema, catSchema []string
	total := 0
	for _, cat := range cats {
		total += cat.MaxPoints
		lines := []string{fmt.Sprintf("- %s (%s) - %d points max", cat.Label, cat.ID, cat.MaxPoints)}
		for _, c := range cat.Criteria {
			line := fmt.Sprintf("  * %s (%s) - %d points max", c.Label, c.ID, c.MaxPoints)
			if c.Desc != "" {
				line += ": " + c.Desc
			}
			lines = append(lines, line)
			schema = append(schema, fmt.Sprintf(`"%s": {"score": <int 0-%d>, "confidence": <int 1-10>, "note": "<justification>"}`, c.ID, c.MaxPoints))
		}
		desc = append(desc, strings.Join(lines, "\n"))
		catSchema = append(catSchema, fmt.Sprintf(`"%s": {"points": <int 0-%d>, "max_points": %d, "percentage": <float>}`, cat.ID, cat.MaxPoints, cat.MaxPoints))
	}

	var b strings.Builder
	b.WriteString("You are an expert demo evaluator. Score the following transcript on a point-based scale for each criterion, provide your confidence level in each score (1-10), and provide a justification.\n")
	b.WriteString(chunkNote(u))
	fmt.Fprintf(&b, "\nCategories and Criteria to evaluate:\n%s\n\n", strings.Join(desc, "\n"))
	fmt.Fprintf(&b, "Total possible points: %d\n\n", total)
	b.WriteString("For each criterion, provide:\n")
	b.WriteString("- score: an integer from 0 up to that criterion's max points listed above\n")
	b.WriteString("- confidence: how confident you are in this score (1-10, where 10 means very confident)\n")
	b.WriteString("- note: brief justification for your score\n\n")
	b.WriteString("Return JSON with this EXACT structure:\n{\n  \"scores\": {\n    ")
	b.WriteString(strings.Join(schema, ",\n    "))
	fmt.Fprintf(&b, "\n  },\n  \"overall\": {\n    \"total_points\": <int>,\n    \"max_points\": %d,\n    \"percentage\": <float>,\n    \"pass_status\": \"<pass|revise|fail>\"\n  },\n", total)
	b.WriteString("  \"categories\": {\n    ")
	b.WriteString(strings.Join(catSchema, ",\n    "))
	b.WriteString("\n  },\n  \"short_summary\": \"<one sentence summary>\"\n}\n\n")
	fmt.Fprintf(&b, "Transcript:\n%s\n\nVisual analysis (if any):\n%s\n", u.Transcript, visualText(u.Visual))
	return b.String()
}

func flatPrompt(u Unit) string {
	r := u.Rubric
	lo, hi := int(r.Scale.Min), int(r.Scale.Max)

	var desc, weights, schema []string
	for _, c := range r.Criteria {
		desc = append(desc, fmt.Sprintf("- %s (%s): %s", c.Label, c.ID, c.Desc))
		weights = append(weights, fmt.Sprintf("%s=%.2f", c.ID, c.Weight))
		schema = append(schema, fmt.Sprintf(`"%s": {"score": <int %d-%d>, "confidence": <int 1-10>, "note": "<justification>"}`, c.ID, lo, hi))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert demo evaluator. Score the following transcript on a %d-%d integer scale for each criterion, provide your confidence level in each score (1-10), and provide a 1-2 sentence justification.\n", lo, hi)
	b.WriteString(chunkNote(u))
	fmt.Fprintf(&b, "\nCriteria to evaluate:\n%s\n\n", strings.Join(desc, "\n"))
	fmt.Fprintf(&b, "Weights: %s\n", strings.Join(weights, ", "))
	fmt.Fprintf(&b, "Thresholds: pass if >= %g, revise if >= %g and < %g, otherwise fail.\n\n", r.Thresholds.Pass, r.Thresholds.Revise, r.Thresholds.Pass)
	b.WriteString("For each criterion, provide:\n")
	fmt.Fprintf(&b, "- score: your evaluation score (%d-%d)\n", lo, hi)
	b.WriteString("- confidence: how confident you are in this score (1-10, where 10 means very confident)\n")
	b.WriteString("- note: brief justification for your score\n\n")
	b.WriteString("Return JSON with this EXACT structure:\n{\n  \"scores\": {\n    ")
	b.WriteString(strings.Join(schema, ",\n    "))
	fmt.Fprintf(&b, "\n  },\n  \"overall\": {\n    \"weighted_score\": <float>,\n    \"method\": \"%s\",\n    \"pass_status\": \"<pass|revise|fail>\"\n  },\n", r.OverallMethod)
	b.WriteString("  \"short_summary\": \"<one sentence summary>\"\n}\n\n")
	fmt.Fprintf(&b, "Transcript:\n%s\n\nVisual analysis (if any):\n%s\n", u.Transcript, visualText(u.Visual))
	return b.String()
}

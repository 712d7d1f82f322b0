package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dsmilne3/ai-video-analyzer/internal/storage"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "txt"
)

// FileName is {first}_{last}_{partner}_{timestamp}.{ext}.
func FileName(s Submitter, at time.Time, f Format) string {
	clean := func(v string) string {
		return strings.NewReplacer("/", "-", "\\", "-").Replace(strings.TrimSpace(v))
	}
	return fmt.Sprintf("%s_%s_%s_%s.%s",
		clean(s.FirstName), clean(s.LastName), clean(s.PartnerName), at.Format("20060102_150405"), f)
}

// Save writes the report under prefix and returns the store's reference.
func Save(ctx context.Context, b storage.BlobStore, prefix string, rep *Report, f Format) (string, error) {
	at := rep.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}
	key := path.Join(prefix, FileName(rep.Submitter, at, f))
	switch f {
	case FormatJSON:
		return storage.PutJSON(ctx, b, key, rep)
	case FormatText:
		text, err := RenderText(rep)
		if err != nil {
			return "", err
		}
		return b.Put(ctx, key, strings.NewReader(text), "text/plain; charset=utf-8")
	default:
		return "", fmt.Errorf("unknown report format %q", f)
	}
}

// RenderText formats the report for people, followed by the full JSON.
func RenderText(rep *Report) (string, error) {
	var b strings.Builder
	rule := strings.Repeat("=", 70) + "\n"
	thin := strings.Repeat("-", 70) + "\n"

	b.WriteString(rule)
	b.WriteString("DEMO VIDEO EVALUATION RESULTS\n")
	b.WriteString(rule + "\n")

	if ev := rep.Evaluation; ev != nil {
		o := ev.Overall
		fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(o.PassStatus)))
		if o.WeightedScore != nil {
			fmt.Fprintf(&b, "Overall Score: %.1f/%g\n", *o.WeightedScore, o.MaxPoints)
		} else {
			fmt.Fprintf(&b, "Overall Score: %g/%g (%.1f%%)\n", o.TotalPoints, o.MaxPoints, o.Percentage)
		}
		if ev.ShortSummary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", ev.ShortSummary)
		}
		if ev.Fallback {
			b.WriteString("Note: no scores came from the language model; all values are conservative placeholders.\n")
		}
		b.WriteString("\n")
	}

	q := rep.Quality
	fmt.Fprintf(&b, "Transcription Quality: %s\n", strings.ToUpper(string(q.Rating)))
	fmt.Fprintf(&b, "  Confidence: %.1f%%\n", q.AvgConfidence)
	fmt.Fprintf(&b, "  Speech Detection: %.1f%%\n", q.SpeechPercentage)
	fmt.Fprintf(&b, "  Compression Ratio: %.2f\n", q.AvgCompressionRatio)
	if len(q.Warnings) > 0 {
		b.WriteString("\n  Quality Warnings:\n")
		for _, w := range q.Warnings {
			fmt.Fprintf(&b, "     - %s\n", w)
		}
	}
	b.WriteString("\n")

	if fb := rep.Feedback; fb != nil {
		b.WriteString(thin)
		fmt.Fprintf(&b, "FEEDBACK (%s TONE)\n", strings.ToUpper(string(fb.Tone)))
		b.WriteString(thin + "\n")
		b.WriteString("STRENGTHS:\n\n")
		for i, s := range fb.Strengths {
			fmt.Fprintf(&b, "%d. %s\n   %s\n\n", i+1, s.Title, s.Description)
		}
		b.WriteString("AREAS FOR IMPROVEMENT:\n\n")
		for i, s := range fb.Improvements {
			fmt.Fprintf(&b, "%d. %s\n   %s\n\n", i+1, s.Title, s.Description)
		}
	}

	if rep.Summary != "" {
		b.WriteString(thin)
		b.WriteString("SUMMARY\n")
		b.WriteString(thin + "\n")
		b.WriteString(rep.Summary + "\n\n")
	}

	b.WriteString(thin)
	b.WriteString("FULL TRANSCRIPT\n")
	b.WriteString(thin + "\n")
	b.WriteString(rep.Transcript + "\n\n")

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	b.WriteString(thin)
	b.WriteString("FULL JSON OUTPUT\n")
	b.WriteString(thin + "\n")
	b.Write(data)
	b.WriteString("\n")
	return b.String(), nil
}

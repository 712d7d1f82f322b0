package pipeline

import (
	"context"
	"strings"

	"github.com/dsmilne3/ai-video-analyzer/internal/chunk"
	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

const (
	summaryPrompt    = "Summarize the following transcript in 3 sentences:\n\n"
	summaryMaxTokens = 200
	// summaryChars caps the transcript sent for summarizing.
	summaryChars = 12000
)

// summarize asks the scorer for a three-sentence summary and falls back to
// the first words of the transcript when the call fails or returns nothing.
func (p *Pipeline) summarize(ctx context.Context, text string) string {
	out, err := p.scorer.Complete(ctx, scoring.Request{
		Prompt:    summaryPrompt + chunk.Truncate(text, summaryChars),
		MaxTokens: summaryMaxTokens,
	})
	if out = strings.TrimSpace(out); err != nil || out == "" {
		p.log.Debug().Err(err).Msg("summary call failed, using transcript excerpt")
		return transcript.Summarize(text)
	}
	return out
}

// Package transcript holds speech-to-text output and the heuristics computed
// over it: quality metrics, highlights and low-confidence segments.
package transcript

import (
	"context"
	"fmt"
	"strings"
)

type Word struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"probability"`
}

// Segment is one timed span of speech. Quality fields are pointers because
// not every transcriber reports them.
type Segment struct {
	Start            float64  `json:"start"`
	End              float64  `json:"end"`
	Text             string   `json:"text"`
	AvgLogprob       *float64 `json:"avg_logprob,omitempty"`
	CompressionRatio *float64 `json:"compression_ratio,omitempty"`
	NoSpeechProb     *float64 `json:"no_speech_prob,omitempty"`
	Words            []Word   `json:"words,omitempty"`
}

type Transcript struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Transcriber converts an audio file into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcript, error)
}

// FromSegments joins segment text when a transcriber reports no full text.
func FromSegments(language string, segs []Segment) *Transcript {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return &Transcript{Text: strings.Join(parts, " "), Language: language, Segments: segs}
}

// Timestamp renders seconds as m:ss.
func Timestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	s := int(sec)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// Summarize is the offline summary: the first 120 words.
func Summarize(text string) string {
	words := strings.Fields(text)
	if len(words) <= 120 {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:120], " ") + "..."
}

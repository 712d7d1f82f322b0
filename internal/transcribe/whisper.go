// Package transcribe implements transcript.Transcriber on top of Whisper,
// either in a throwaway Docker container or behind an HTTP ASR service.
package transcribe

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

// whisperOutput is the JSON document Whisper writes with --output_format json.
type whisperOutput struct {
	Text     string               `json:"text"`
	Language string               `json:"language"`
	Segments []transcript.Segment `json:"segments"`
}

// ParseWhisperJSON decodes Whisper output, skipping any progress lines
// printed around the JSON document.
func ParseWhisperJSON(out string) (*transcript.Transcript, error) {
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start < 0 || end <= start {
		return nil, errors.New("whisper: no JSON in output")
	}
	var w whisperOutput
	if err := json.Unmarshal([]byte(out[start:end+1]), &w); err != nil {
		return nil, fmt.Errorf("whisper: decode: %w", err)
	}
	return toTranscript(w), nil
}

func toTranscript(w whisperOutput) *transcript.Transcript {
	if strings.TrimSpace(w.Text) == "" {
		return transcript.FromSegments(w.Language, w.Segments)
	}
	if w.Segments == nil {
		w.Segments = []transcript.Segment{}
	}
	return &transcript.Transcript{Text: strings.TrimSpace(w.Text), Language: w.Language, Segments: w.Segments}
}

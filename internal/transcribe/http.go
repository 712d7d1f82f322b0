package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

// HTTP posts audio to an ASR service exposing POST /transcribe, which
// answers with Whisper-shaped JSON.
type HTTP struct {
	url string
	c   *http.Client
	log zerolog.Logger
}

func NewHTTP(baseURL string, timeout time.Duration, logger zerolog.Logger) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTP{
		url: strings.TrimRight(baseURL, "/"),
		c:   &http.Client{Timeout: timeout},
		log: logger.With().Str("component", "transcribe.http").Logger(),
	}
}

func (h *HTTP) Transcribe(ctx context.Context, audioPath string) (*transcript.Transcript, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	fd, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url+"/transcribe", &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("asr: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("asr %s: %s", resp.Status, string(body))
	}

	var out whisperOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("asr decode: %w", err)
	}
	h.log.Debug().Int("segments", len(out.Segments)).Str("language", out.Language).Msg("transcribed")
	return toTranscript(out), nil
}

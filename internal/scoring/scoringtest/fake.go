// Package scoringtest provides a scripted Scorer for tests.
package scoringtest

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"sync"

	"github.com/dsmilne3/ai-video-analyzer/internal/scoring"
)

// Fake records every request and answers with Respond.
type Fake struct {
	Respond func(req scoring.Request) (string, error)

	mu       sync.Mutex
	requests []scoring.Request
}

func (f *Fake) Complete(_ context.Context, req scoring.Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.Respond == nil {
		return "", errors.New("fake scorer: no response configured")
	}
	return f.Respond(req)
}

func (f *Fake) Provider() scoring.Provider { return "fake" }
func (f *Fake) Model() string              { return "fake-model" }

func (f *Fake) Requests() []scoring.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scoring.Request(nil), f.requests...)
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Requested is a criterion found in a scoring prompt's JSON template.
type Requested struct {
	ID  string
	Min int
	Max int
}

var schemaLine = regexp.MustCompile(`"([^"]+)": \{"score": <int (\d+)-(\d+)>`)

// Criteria parses the criteria a scoring prompt asks for.
func Criteria(prompt string) []Requested {
	var out []Requested
	for _, m := range schemaLine.FindAllStringSubmatch(prompt, -1) {
		lo, _ := strconv.Atoi(m[2])
		hi, _ := strconv.Atoi(m[3])
		out = append(out, Requested{ID: m[1], Min: lo, Max: hi})
	}
	return out
}

// Reply builds a well-formed scoring reply for every criterion in the prompt.
func Reply(prompt string, score func(c Requested) float64) string {
	scores := map[string]any{}
	for _, c := range Criteria(prompt) {
		scores[c.ID] = map[string]any{"score": score(c), "confidence": 8, "note": "looks fine"}
	}
	b, _ := json.Marshal(map[string]any{"scores": scores, "short_summary": "fake summary"})
	return string(b)
}

// Scores answers every prompt using score.
func Scores(score func(c Requested) float64) func(scoring.Request) (string, error) {
	return func(req scoring.Request) (string, error) {
		return Reply(req.Prompt, score), nil
	}
}

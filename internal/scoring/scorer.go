// Package scoring turns one unit of rubric work into a single LLM call and
// always hands back usable scores, falling back to conservative values when
// the call cannot be trusted.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable is returned by scorers that have no provider configured.
var ErrUnavailable = errors.New("no scoring provider configured")

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"
)

// Request is one completion call. JSON asks the provider for a JSON object
// reply where it supports that natively.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
	JSON        bool
}

// Scorer is an LLM provider able to complete a prompt.
type Scorer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() Provider
	Model() string
}

// Unavailable fails every call, which sends every unit down the fallback path.
type Unavailable struct{}

func (Unavailable) Complete(context.Context, Request) (string, error) { return "", ErrUnavailable }
func (Unavailable) Provider() Provider                                 { return "" }
func (Unavailable) Model() string                                      { return "" }

// Settings selects and configures a provider.
type Settings struct {
	Provider Provider
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// New builds the Scorer named by s. A missing API key yields Unavailable.
func New(s Settings) (Scorer, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return Unavailable{}, nil
	}
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
	switch s.Provider {
	case ProviderOpenAI, "":
		if s.Model == "" {
			s.Model = DefaultOpenAIModel
		}
		return NewOpenAI(s), nil
	case ProviderAnthropic:
		if s.Model == "" {
			s.Model = DefaultAnthropicModel
		}
		return NewAnthropic(s), nil
	}
	return nil, fmt.Errorf("unknown scoring provider %q", s.Provider)
}

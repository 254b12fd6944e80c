// Package provider adapts hosted chat APIs to runner.ChatService.
package provider

import (
	"fmt"
	"net/http"

	"github.com/petasbytes/chatloop/runner"
)

// Supported provider names.
const (
	NameAnthropic = "anthropic"
	NameOpenAI    = "openai"
)

// DefaultMaxTokens caps generated tokens per backend round when Options leaves
// MaxTokens unset.
const DefaultMaxTokens = 1024

// Options configure a provider client. Zero values fall back to the SDK
// defaults, including API keys from the SDK's environment variables.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return DefaultMaxTokens
}

// New returns the ChatService for the named provider.
func New(name string, o Options) (runner.ChatService, error) {
	switch name {
	case NameAnthropic, "":
		return NewAnthropic(o), nil
	case NameOpenAI:
		return NewOpenAI(o), nil
	default:
		return nil, fmt.Errorf("provider: unknown provider %q", name)
	}
}

// Package ai defines the AI-request collaborator and its provider
// implementations.
//
// The orchestration core depends only on the Client interface; provider
// failover and routing stay outside this module's scope.
package ai

import (
	"context"
	"fmt"
	"time"

	"kaizen/internal/config"
)

// Options tunes a single request.
type Options struct {
	// MaxTokens caps the response length; 0 means the provider default.
	MaxTokens int
}

// Response is the outcome of a successful AI request.
type Response struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	ResponseTime time.Duration `json:"response_time"`
}

// Client issues one AI request per call. Implementations must respect
// ctx cancellation: the iteration scheduler cancels in-flight requests
// when a loop is stopped.
type Client interface {
	// Request sends prompt to the provider and returns its suggestion.
	Request(ctx context.Context, prompt string, opts Options) (*Response, error)
}

// New selects the provider implementation from config.
func New(cfg config.Config) (Client, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.APIKey, cfg.Model)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

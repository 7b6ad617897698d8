package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"kaizen/internal/config"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient implements Client on the official OpenAI SDK using the
// Responses API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed client.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, fmt.Errorf("openai client requires an API key (set OPENAI_API_KEY)")
	}
	m := strings.TrimSpace(model)
	if m == "" {
		m = defaultOpenAIModel
	}
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(key)),
		model:  m,
	}, nil
}

// Request sends a single-prompt response request.
func (c *OpenAIClient) Request(ctx context.Context, prompt string, opts Options) (*Response, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	if opts.MaxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(opts.MaxTokens))
	}

	start := time.Now()
	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	return &Response{
		Content:      resp.OutputText(),
		Model:        c.model,
		Provider:     config.ProviderOpenAI,
		ResponseTime: time.Since(start),
	}, nil
}

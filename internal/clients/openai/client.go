package openai

import (
	"context"
	"dispatch-server/internal/observability"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	openaiOption "github.com/openai/openai-go/option"
)

// ErrNoCompletion indicates the model returned no usable choice
var ErrNoCompletion = errors.New("no completion returned")

// Client wraps the OpenAI API for structured transcript extraction
type Client struct {
	client openai.Client
	logger *observability.Logger
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, logger *observability.Logger) *Client {
	client := openai.NewClient(openaiOption.WithAPIKey(apiKey))
	return &Client{
		client: client,
		logger: logger,
	}
}

// ExtractJSON runs a single extraction pass and returns the raw JSON object
// produced by the model. Temperature is kept low so repeated runs over the
// same transcript stay stable.
func (c *Client) ExtractJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4oMini,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		c.logger.Error(ctx, "failed to call extraction model", err)
		return "", fmt.Errorf("failed to call extraction model: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoCompletion
	}

	return resp.Choices[0].Message.Content, nil
}

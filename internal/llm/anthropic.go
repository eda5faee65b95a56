package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

const (
	anthropicDefaultModel = anthropic.ModelClaudeHaiku4_5
	anthropicMaxTokens    = 512
)

// AnthropicClient calls the Messages API through the official SDK.
type AnthropicClient struct {
	client *anthropic.Client
	model  anthropic.Model
	logger *observability.Logger
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(apiKey, model string, opts ...Option) *AnthropicClient {
	cfg := newClientConfig(opts)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(cfg.httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	m := anthropic.Model(model)
	if model == "" {
		m = anthropicDefaultModel
	}

	client := anthropic.NewClient(reqOpts...)
	return &AnthropicClient{
		client: &client,
		model:  m,
		logger: cfg.logger,
	}
}

// Model returns the configured model identifier.
func (c *AnthropicClient) Model() string {
	return string(c.model)
}

// Generate sends the image followed by the prompt and returns the text blocks
// of the reply joined together.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(mimeType, base64.StdEncoding.EncodeToString(image)),
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", domain.ModelInferenceFailure(fmt.Sprintf("API returned status %d", apiErr.StatusCode), err)
		}
		return "", domain.ModelInferenceFailure("failed to send request", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", domain.ModelInferenceFailure("no text in response", nil)
	}

	c.logger.Debug().
		Str("model", string(c.model)).
		Str("stop_reason", string(resp.StopReason)).
		Msg("Anthropic response received")

	return text.String(), nil
}

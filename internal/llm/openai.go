package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAIClient calls the chat completions API through the official SDK.
type OpenAIClient struct {
	client *openai.Client
	model  string
	logger *observability.Logger
}

// NewOpenAIClient creates a client for the OpenAI API, or any compatible
// endpoint when WithBaseURL is given.
func NewOpenAIClient(apiKey, model string, opts ...Option) *OpenAIClient {
	cfg := newClientConfig(opts)
	if model == "" {
		model = openAIDefaultModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(cfg.httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	client := openai.NewClient(reqOpts...)
	return &OpenAIClient{
		client: &client,
		model:  model,
		logger: cfg.logger,
	}
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Generate sends the prompt and the image as a data URL in one user message.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", domain.ModelInferenceFailure(fmt.Sprintf("API returned status %d", apiErr.StatusCode), err)
		}
		return "", domain.ModelInferenceFailure("failed to send request", err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.ModelInferenceFailure("no choices in response", nil)
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("OpenAI response received")

	return resp.Choices[0].Message.Content, nil
}

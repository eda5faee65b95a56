package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

const geminiDefaultModel = "gemini-2.5-flash"

// GeminiClient calls generateContent through the Gen AI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *observability.Logger
}

// NewGeminiClient creates a client for the Gemini API. The base URL option is
// the API root; the SDK appends the version segment.
func NewGeminiClient(apiKey, model string, opts ...Option) (*GeminiClient, error) {
	cfg := newClientConfig(opts)

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, domain.ConfigError("Gemini API key is not set", nil)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = geminiDefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.baseURL
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, domain.ConfigError("failed to create Gemini client", err)
	}
	return &GeminiClient{client: client, model: model, logger: cfg.logger}, nil
}

// Model returns the configured model identifier.
func (g *GeminiClient) Model() string {
	return g.model
}

// Generate sends the prompt followed by the inline image and returns the text
// parts of the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", domain.ModelInferenceFailure(fmt.Sprintf("API returned status %d: %s", apiErr.Code, strings.TrimSpace(apiErr.Message)), err)
		}
		return "", domain.ModelInferenceFailure("failed to send request", err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", domain.ModelInferenceFailure("prompt blocked: "+string(resp.PromptFeedback.BlockReason), nil)
	}
	if len(resp.Candidates) == 0 {
		return "", domain.ModelInferenceFailure("response has no candidates", nil)
	}

	ev := g.logger.Debug().Str("model", g.model)
	if c := resp.Candidates[0]; c != nil {
		ev = ev.Str("finish_reason", string(c.FinishReason))
	}
	ev.Msg("Gemini response received")

	return resp.Text(), nil
}

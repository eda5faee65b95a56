package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel  = "google/gemini-2.5-flash"
)

// Client handles communication with OpenRouter API
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	logger     *observability.Logger
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Response represents the API response structure
type Response struct {
	ID      string    `json:"id"`
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      Delta  `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// Delta represents a message body
type Delta struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// APIError is the error object OpenRouter embeds in failed responses.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a new OpenRouter client
func NewClient(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = defaultModel
	}

	cfg := newClientConfig(opts)
	endpoint := openRouterURL
	if cfg.baseURL != "" {
		endpoint = strings.TrimRight(cfg.baseURL, "/") + "/chat/completions"
	}

	return &Client{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		httpClient: cfg.httpClient,
		logger:     cfg.logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Generate sends the prompt and image in one user message and returns the reply text.
func (c *Client) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if c.apiKey == "" {
		return "", domain.ModelInferenceFailure("OpenRouter API key is not set", nil)
	}

	body, err := json.Marshal(c.buildRequest(prompt, image, mimeType))
	if err != nil {
		return "", domain.ModelInferenceFailure("failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.ModelInferenceFailure("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/spherical/autoslides")
	req.Header.Set("X-Title", "Marketing Deck Narrator")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", domain.ModelInferenceFailure("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", domain.ModelInferenceFailure(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)), nil)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.ModelInferenceFailure("failed to decode response", err)
	}
	if out.Error != nil {
		return "", domain.ModelInferenceFailure(fmt.Sprintf("API error %d: %s", out.Error.Code, out.Error.Message), nil)
	}
	if len(out.Choices) == 0 {
		return "", domain.ModelInferenceFailure("response has no choices", nil)
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("finish_reason", out.Choices[0].FinishReason).
		Msg("OpenRouter completion received")

	return out.Choices[0].Message.Content, nil
}

// buildRequest constructs the API request with the image inlined as a data URL
func (c *Client) buildRequest(prompt string, image []byte, mimeType string) *Request {
	imageURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{
				Type: "text",
				Text: prompt,
			},
			{
				Type: "image_url",
				ImageURL: &ImageURL{
					URL: imageURL,
				},
			},
		},
	}

	return &Request{
		Model:    c.model,
		Messages: []Message{msg},
		Stream:   false,
	}
}

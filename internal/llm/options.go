// Package llm provides the vision-model clients used to narrate slides.
package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

type clientConfig struct {
	baseURL    string
	httpClient *http.Client
	logger     *observability.Logger
}

// Option configures a model client.
type Option func(*clientConfig)

// WithBaseURL points the client at a different API root.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}

func newClientConfig(opts []Option) clientConfig {
	cfg := clientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	if cfg.logger == nil {
		cfg.logger = observability.Nop()
	}
	return cfg
}

// New returns the client for provider: "gemini", "openrouter", "openai" or
// "anthropic".
func New(provider, apiKey, model string, opts ...Option) (domain.VisionModel, error) {
	switch provider {
	case "gemini", "":
		c, err := NewGeminiClient(apiKey, model, opts...)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "openrouter":
		return NewClient(apiKey, model, opts...), nil
	case "openai":
		return NewOpenAIClient(apiKey, model, opts...), nil
	case "anthropic":
		return NewAnthropicClient(apiKey, model, opts...), nil
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown model provider %q", provider), nil)
	}
}

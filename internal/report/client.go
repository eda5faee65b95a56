// Package report fetches rendered dashboard reports as PDF bytes.
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36"

// Client exports dashboard reports through the PDF export endpoint.
type Client struct {
	cfg        config.ReportConfig
	httpClient *http.Client
	retry      RetryConfig
	logger     *observability.Logger
	session    func() (*Session, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(rc RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSession uses a fixed session instead of reading the cookies file on every fetch.
func WithSession(s *Session) Option {
	return func(c *Client) {
		c.session = func() (*Session, error) { return s, nil }
	}
}

// NewClient creates a report client. The cookies file named in cfg is read on
// each fetch so a refreshed export is picked up between work items.
func NewClient(cfg config.ReportConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		retry:      DefaultRetryConfig(),
		logger:     observability.Nop(),
	}
	if cfg.MaxRetries > 0 {
		c.retry.MaxRetries = cfg.MaxRetries
	}
	c.session = func() (*Session, error) { return LoadSession(cfg.CookiesFile) }

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch exports the report filtered to the item's brand, venture and date
// range. A nil error always comes with non-empty PDF bytes.
func (c *Client) Fetch(ctx context.Context, item domain.WorkItem) ([]byte, error) {
	logger := c.logger.WithWorkItem(item.Brand, item.Venture)
	start := time.Now()

	session, err := c.session()
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(BuildExportRequest(c.cfg, item))
	if err != nil {
		return nil, domain.ReportFetchFailure("encode export request", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := retryWithBackoff(ctx, c.retry, logger, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req, session)
		return c.httpClient.Do(req)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Report download failed")
		return nil, domain.ReportFetchFailure(fmt.Sprintf("export %s", item), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.Error().Int("status", resp.StatusCode).Msg("Report download failed")
		return nil, domain.ReportFetchFailure(fmt.Sprintf("export %s returned status %d: %s", item, resp.StatusCode, bytes.TrimSpace(snippet)), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ReportFetchFailure("read export response", err)
	}

	pdf, err := decodeBody(raw)
	if err != nil {
		logger.Error().Err(err).Msg("Report download failed")
		return nil, err
	}

	logger.Info().
		Int("bytes", len(pdf)).
		Dur("elapsed", time.Since(start)).
		Msg("Report downloaded")

	return pdf, nil
}

func (c *Client) setHeaders(req *http.Request, session *Session) {
	req.Header.Set("accept", "application/json, text/plain, */*")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("encoding", "null")
	req.Header.Set("user-agent", userAgent)
	req.Header.Set("x-rap-xsrf-token", session.XSRFToken())
	req.Header.Set("cookie", session.CookieHeader())
	if c.cfg.Referer != "" {
		req.Header.Set("referer", c.cfg.Referer)
	}
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// decodeBody turns the base64 response body into PDF bytes.
func decodeBody(raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, domain.ReportFetchFailure("export response is empty", nil)
	}

	pdf := make([]byte, base64.StdEncoding.DecodedLen(len(raw)))
	n, err := base64.StdEncoding.Decode(pdf, raw)
	if err != nil {
		return nil, domain.ReportFetchFailure("decode export response", err)
	}
	if n == 0 {
		return nil, domain.ReportFetchFailure("export response decoded to nothing", nil)
	}
	return pdf[:n], nil
}

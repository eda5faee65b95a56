package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/autoslides/internal/domain"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		wantModel string
	}{
		{name: "default model", model: "", wantModel: defaultModel},
		{name: "custom model", model: "google/gemini-2.5-pro", wantModel: "google/gemini-2.5-pro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient("sk-or-test-key", tt.model)
			require.NotNil(t, client)
			assert.Equal(t, tt.wantModel, client.Model())
			assert.Equal(t, openRouterURL, client.endpoint)
		})
	}
}

func TestBuildRequest(t *testing.T) {
	client := NewClient("test-key", "")
	req := client.buildRequest("describe", []byte{0x89, 'P', 'N', 'G'}, "image/png")

	require.Len(t, req.Messages, 1)
	assert.False(t, req.Stream)
	assert.Equal(t, defaultModel, req.Model)

	parts := req.Messages[0].Content
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "describe", parts[0].Text)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}), parts[1].ImageURL.URL)
}

func TestClient_Generate(t *testing.T) {
	var gotAuth string
	var gotReq Request

	r := chi.NewRouter()
	r.Post("/api/v1/chat/completions", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"gen-1","choices":[{"message":{"role":"assistant","content":"\nSales rose."},"finish_reason":"stop"}]}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewClient("sk-or-test", "", WithBaseURL(srv.URL+"/api/v1"))
	text, err := client.Generate(context.Background(), "slide 1", []byte("img"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "\nSales rose.", text)
	assert.Equal(t, "Bearer sk-or-test", gotAuth)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "slide 1", gotReq.Messages[0].Content[0].Text)
}

func TestClient_GenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "http error", status: http.StatusTooManyRequests, body: `rate limited`, wantMsg: "status 429"},
		{name: "embedded error", status: http.StatusOK, body: `{"error":{"code":402,"message":"insufficient credits"}}`, wantMsg: "insufficient credits"},
		{name: "no choices", status: http.StatusOK, body: `{"id":"x","choices":[]}`, wantMsg: "no choices"},
		{name: "bad json", status: http.StatusOK, body: `{`, wantMsg: "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("k", "", WithBaseURL(srv.URL))
			_, err := client.Generate(context.Background(), "p", []byte("i"), "image/png")
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeModelInference))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestClient_MissingKey(t *testing.T) {
	_, err := NewClient("", "").Generate(context.Background(), "p", []byte("i"), "image/png")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeModelInference))
}

func TestGeminiClient_Generate(t *testing.T) {
	var gotKey string
	var gotReq map[string]any

	r := chi.NewRouter()
	r.Post("/v1beta/models/{model}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "gemini-2.5-flash:generateContent", chi.URLParam(req, "model"))
		gotKey = req.Header.Get("x-goog-api-key")
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Spend "},{"text":"fell 5%."}]},"finishReason":"STOP"}]}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client, err := NewGeminiClient(" gem-key ", "", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", client.Model())

	text, err := client.Generate(context.Background(), "slide 2", []byte{1, 2, 3}, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "Spend fell 5%.", text)
	assert.Equal(t, "gem-key", gotKey)

	contents, ok := gotReq["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 1)
	content := contents[0].(map[string]any)
	assert.Equal(t, "user", content["role"])
	parts := content["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "slide 2", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/png", inline["mimeType"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), inline["data"])
}

func TestGeminiClient_MissingKey(t *testing.T) {
	_, err := NewGeminiClient("  ", "")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	_, err = New("gemini", "", "")
	require.Error(t, err)
}

func TestGeminiClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "api error", status: http.StatusForbidden, body: `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`, wantMsg: "API key not valid"},
		{name: "plain error", status: http.StatusBadGateway, body: `upstream down`, wantMsg: "status 502"},
		{name: "blocked", status: http.StatusOK, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`, wantMsg: "SAFETY"},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, wantMsg: "no candidates"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewGeminiClient("k", "", WithBaseURL(srv.URL))
			require.NoError(t, err)
			_, err = client.Generate(context.Background(), "p", []byte("i"), "image/png")
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeModelInference))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestGeminiClient_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client, err := NewGeminiClient("k", "", WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = client.Generate(ctx, "p", []byte("i"), "image/png")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_Provider(t *testing.T) {
	m, err := New("gemini", "k", "")
	require.NoError(t, err)
	assert.IsType(t, &GeminiClient{}, m)

	m, err = New("openrouter", "k", "")
	require.NoError(t, err)
	assert.IsType(t, &Client{}, m)

	m, err = New("openai", "k", "")
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, m)

	m, err = New("anthropic", "k", "")
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, m)

	_, err = New("bard", "k", "")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bard"))
}

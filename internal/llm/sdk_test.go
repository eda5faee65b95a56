package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/autoslides/internal/domain"
)

func TestOpenAIClient_Generate(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	r := chi.NewRouter()
	r.Post("/v1/chat/completions", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"\nClicks doubled."}}]}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewOpenAIClient("sk-test", "", WithBaseURL(srv.URL+"/v1/"))
	assert.Equal(t, openAIDefaultModel, client.Model())

	text, err := client.Generate(context.Background(), "slide 4", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "\nClicks doubled.", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])

	raw, err := json.Marshal(gotBody["messages"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "slide 4")
	assert.Contains(t, string(raw), "data:image/png;base64,")
}

func TestAnthropicClient_Generate(t *testing.T) {
	var gotKey string
	var gotBody map[string]interface{}

	r := chi.NewRouter()
	r.Post("/v1/messages", func(w http.ResponseWriter, req *http.Request) {
		gotKey = req.Header.Get("X-Api-Key")
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-haiku-4-5",
			"content":[{"type":"text","text":"Orders "},{"type":"text","text":"held steady."}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":4}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := NewAnthropicClient("ant-key", "", WithBaseURL(srv.URL+"/"))
	text, err := client.Generate(context.Background(), "slide 6", []byte("png"), "image/png")
	require.NoError(t, err)

	assert.Equal(t, "Orders held steady.", text)
	assert.Equal(t, "ant-key", gotKey)
	assert.EqualValues(t, anthropicMaxTokens, gotBody["max_tokens"])

	raw, err := json.Marshal(gotBody["messages"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"media_type":"image/png"`)
	assert.Contains(t, string(raw), "slide 6")
}

func TestSDKClients_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	clients := map[string]domain.VisionModel{
		"openai":    NewOpenAIClient("k", "", WithBaseURL(srv.URL+"/v1/")),
		"anthropic": NewAnthropicClient("k", "", WithBaseURL(srv.URL+"/")),
	}
	for name, client := range clients {
		t.Run(name, func(t *testing.T) {
			_, err := client.Generate(context.Background(), "p", []byte("i"), "image/png")
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeModelInference))
			assert.True(t, strings.Contains(err.Error(), "status 500"), err.Error())
		})
	}
}

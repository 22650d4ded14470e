package anthropicapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type sentRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []sentMessage `json:"messages"`
}

func TestClientComplete_SendsHeadersAndParsesText(t *testing.T) {
	var got sentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",` +
			`"content":[{"type":"text","text":" {\"content\":\"x\"} "}],"stop_reason":"end_turn",` +
			`"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Model: "claude-sonnet-4-20250514", BaseURL: srv.URL + "/", APIKey: "secret"}, srv.Client())
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), CompletionRequest{Prompt: "fix", Temperature: 0.9})
	require.NoError(t, err)
	assert.Equal(t, `{"content":"x"}`, out.OutputText)
	assert.Equal(t, "claude-sonnet-4-20250514", got.Model)
	assert.Equal(t, 4096, got.MaxTokens)
	assert.InDelta(t, 0.9, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	require.Len(t, got.Messages[0].Content, 1)
	assert.Equal(t, "fix", got.Messages[0].Content[0].Text)
}

func TestClientComplete_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Model: "m", BaseURL: srv.URL, APIKey: "bad"}, srv.Client())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), CompletionRequest{Prompt: "fix"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid x-api-key"), err.Error())
}

func TestClientComplete_NoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m","content":[]}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Model: "m", BaseURL: srv.URL, APIKey: "k"}, srv.Client())
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), CompletionRequest{Prompt: "fix"})
	assert.ErrorContains(t, err, "output text")
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"}, nil)
	assert.Error(t, err)
	_, err = NewClient(Config{Model: "m"}, nil)
	assert.Error(t, err)
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChatClient_Complete(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "{\"title\": \"T\"}"}}]}`))
	}))
	defer server.Close()

	client := NewChatClient(Config{APIKey: "sk-test", BaseURL: server.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	answer, err := client.Complete(context.Background(), Request{System: "classify", Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, `{"title": "T"}`, answer)

	assert.Equal(t, "gpt-4o-mini", captured["model"])
	messages, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]interface{})
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "classify", system["content"])
}

func TestChatClient_ImageBecomesDataURI(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	client := NewChatClient(Config{BaseURL: server.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	_, err := client.Complete(context.Background(), Request{Prompt: "describe", ImageBase64: "aGVsbG8="})
	require.NoError(t, err)

	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, parts, 2)
	image := parts[1].(map[string]interface{})
	assert.Equal(t, "image_url", image["type"])
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", image["image_url"].(map[string]interface{})["url"])
}

func TestChatClient_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer server.Close()

	client := NewChatClient(Config{BaseURL: server.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	_, err := client.Complete(context.Background(), Request{Prompt: "hello"})
	assert.Error(t, err)
}

func TestChatClient_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	client := NewChatClient(Config{BaseURL: server.URL, Model: "gpt-4o-mini"}, zap.NewNop())
	_, err := client.Complete(context.Background(), Request{Prompt: "hello"})
	assert.Error(t, err)
}

package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOllamaClient_Defaults(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("OLLAMA_MODEL", "")

	client := NewOllamaClient("", "", 0)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultModel, client.Model())
	assert.Equal(t, "ollama", client.Provider())
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)

	t.Setenv("OLLAMA_MODEL", "mistral")
	client = NewOllamaClient("http://remote:11434/", "", time.Second)
	assert.Equal(t, "http://remote:11434", client.baseURL)
	assert.Equal(t, "mistral", client.Model())
}

func TestGenerate_Success(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","response":"{\"root_cause\":\"x\"}","done":true}`))
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3", time.Second)
	out, err := client.Generate(context.Background(), "explain")
	require.NoError(t, err)

	assert.Equal(t, `{"root_cause":"x"}`, out)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "explain", got.Prompt)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.2, got.Options.Temperature)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model not loaded", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
		},
		{
			name: "slow server",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				_, _ = w.Write([]byte(`{"response":"late"}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewOllamaClient(server.URL, "llama3", 50*time.Millisecond)
			_, err := client.Generate(context.Background(), "p")
			assert.Error(t, err)
		})
	}
}

func TestGenerate_Unreachable(t *testing.T) {
	client := NewOllamaClient("http://127.0.0.1:1", "llama3", time.Second)
	_, err := client.Generate(context.Background(), "p")
	assert.Error(t, err)
}

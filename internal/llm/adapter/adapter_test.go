package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneguard/zoneguard-ai/internal/llm/types"
)

func TestNewGenerator_Disabled(t *testing.T) {
	for _, cfg := range []*Config{{}, {Provider: ProviderNone}} {
		gen, err := NewGenerator(cfg)
		require.NoError(t, err)
		assert.Equal(t, "none", gen.Provider())

		_, err = gen.Generate(context.Background(), "prompt")
		assert.True(t, errors.Is(err, types.ErrUnavailable))
	}
}

func TestNewGenerator_FromEnv(t *testing.T) {
	t.Setenv("ZONEGUARD_LLM_PROVIDER", "ollama")
	t.Setenv("ZONEGUARD_LLM_MODEL", "mistral")

	gen, err := NewGenerator(nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", gen.Provider())
	assert.Equal(t, "mistral", gen.Model())
}

func TestNewGenerator_Unsupported(t *testing.T) {
	_, err := NewGenerator(&Config{Provider: "palm"})
	assert.Error(t, err)
}

func TestNewGenerator_OllamaInstrumented(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"ok","done":true}`))
	}))
	defer server.Close()

	gen, err := NewGenerator(&Config{Provider: ProviderOllama, BaseURL: server.URL, Model: "llama3", TimeoutSeconds: 5})
	require.NoError(t, err)

	_, wrapped := gen.(*instrumentedGenerator)
	assert.True(t, wrapped)
	assert.Same(t, gen, Instrument(gen), "instrumenting twice is a no-op")

	out, err := gen.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

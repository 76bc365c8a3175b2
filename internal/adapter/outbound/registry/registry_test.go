package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genrelay/server/internal/infra/config"
)

func TestNew_ExcludesProvidersWithoutCredential(t *testing.T) {
	cfg := config.ProvidersConfig{
		Text: []config.ProviderConfig{
			{Type: "openai", APIKey: "sk"},
			{Type: "anthropic", APIKeyEnv: "ANTHROPIC_API_KEY"},
			{Type: "gemini", APIKey: "gk"},
		},
		Image: []config.ProviderConfig{
			{Type: "openai"},
			{Type: "gemini", APIKey: "gk"},
			{Type: "pollinations"},
		},
	}

	reg, err := New(cfg, http.DefaultClient, nil)
	require.NoError(t, err)

	text := reg.Text()
	require.Len(t, text, 2)
	assert.Equal(t, "openai", text[0].Name())
	assert.Equal(t, "gemini", text[1].Name())

	image := reg.Image()
	require.Len(t, image, 2)
	assert.Equal(t, "gemini", image[0].Name())
	assert.Equal(t, "pollinations", image[1].Name())

	assert.Equal(t, []string{"text/anthropic", "image/openai"}, reg.Skipped())
}

func TestNew_DisabledAndNamed(t *testing.T) {
	cfg := config.ProvidersConfig{
		Text: []config.ProviderConfig{
			{Name: "groq", Type: "openai", APIKey: "gsk", BaseURL: "https://api.groq.com/openai/v1"},
			{Name: "deepseek", Type: "openai", APIKey: "dk", Disabled: true},
		},
	}

	reg, err := New(cfg, nil, nil)
	require.NoError(t, err)

	require.Len(t, reg.Text(), 1)
	assert.Equal(t, "groq", reg.Text()[0].Name())
	assert.Empty(t, reg.Image())
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.ProvidersConfig{Image: []config.ProviderConfig{{Type: "midjourney"}}}, nil, nil)

	assert.ErrorContains(t, err, "midjourney")
}

func TestNew_DuplicateNames(t *testing.T) {
	_, err := New(config.ProvidersConfig{Image: []config.ProviderConfig{
		{Type: "pollinations"},
		{Type: "pollinations"},
	}}, nil, nil)

	assert.ErrorContains(t, err, "duplicate")
}

func TestNew_AppliesPromptSuffix(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer server.Close()

	reg, err := New(config.ProvidersConfig{Image: []config.ProviderConfig{
		{Type: "pollinations", BaseURL: server.URL, PromptSuffix: "watercolor", Timeout: time.Second},
	}}, server.Client(), nil)
	require.NoError(t, err)

	img, err := reg.Image()[0].Invoke(context.Background(), "a cat", nil)

	require.NoError(t, err)
	assert.NotEmpty(t, img.Data)
	assert.Equal(t, "/prompt/a cat, watercolor", gotPath)
}

func TestRegistry_ChainsAreCopies(t *testing.T) {
	reg, err := New(config.ProvidersConfig{Image: []config.ProviderConfig{{Type: "pollinations"}}}, nil, nil)
	require.NoError(t, err)

	chain := reg.Image()
	chain[0] = nil

	assert.NotNil(t, reg.Image()[0])
}

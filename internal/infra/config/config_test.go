package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Quota.Store)
	assert.Equal(t, "UTC", cfg.Quota.Timezone)
	assert.Equal(t, 10, cfg.Quota.Limits["free"])
	assert.Equal(t, 30, cfg.Quota.Limits["silver"])
	assert.Equal(t, 100, cfg.Quota.Limits["gold"])
	assert.Equal(t, -1, cfg.Quota.Limits["admin"])
	assert.Equal(t, 2, cfg.Dispatch.MinImagePromptLen)
	assert.Equal(t, time.Duration(0), cfg.Dispatch.FallbackBackoff)
	assert.False(t, cfg.Dispatch.CircuitBreaker.Enabled)
	assert.Equal(t, "inline", cfg.Storage.Driver)

	require.Len(t, cfg.Providers.Text, 3)
	require.Len(t, cfg.Providers.Image, 3)
	assert.Equal(t, "openai", cfg.Providers.Text[0].Type)
	assert.Equal(t, "sk-test", cfg.Providers.Text[0].APIKey)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Providers.Text[0].APIKeyEnv)
	assert.Equal(t, 60*time.Second, cfg.Providers.Text[0].Timeout)
	assert.Empty(t, cfg.Providers.Text[1].APIKey)
	assert.Equal(t, "pollinations", cfg.Providers.Image[2].Type)
	assert.Empty(t, cfg.Providers.Image[2].APIKeyEnv)
	assert.Equal(t, "https://image.pollinations.ai", cfg.Providers.Image[2].BaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GENRELAY_QUOTA_STORE", "redis")
	t.Setenv("GENRELAY_JWT_SECRET", "s3cret")
	t.Setenv("GENRELAY_CORS_ALLOW_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GENRELAY_INTENT_EXTRA_KEYWORDS", "漫畫, anime")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Quota.Store)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowOrigins)
	assert.Equal(t, []string{"漫畫", "anime"}, cfg.Intent.ExtraKeywords)
}

func TestProvidersConfig_ResolveCredentials(t *testing.T) {
	p := ProvidersConfig{
		Text: []ProviderConfig{
			{Name: "groq", Type: "OpenAI", BaseURL: "https://api.groq.com/openai/v1", APIKeyEnv: "GROQ_API_KEY"},
		},
		Image: []ProviderConfig{{Type: "pollinations"}},
	}
	p.applyDefaults()
	p.resolveCredentials(func(key string) string {
		if key == "GROQ_API_KEY" {
			return "  gsk-1  "
		}
		return ""
	})

	assert.Equal(t, "openai", p.Text[0].Type)
	assert.Equal(t, "groq", p.Text[0].DisplayName())
	assert.Equal(t, "gsk-1", p.Text[0].APIKey)
	assert.Equal(t, "https://api.groq.com/openai/v1", p.Text[0].BaseURL)
	assert.Equal(t, "pollinations", p.Image[0].DisplayName())
	assert.Empty(t, p.Image[0].APIKey)
}

func TestProviderConfig_BurstDefault(t *testing.T) {
	p := ProviderConfig{Type: "openai", RPS: 2}
	p.fillDefaults()

	assert.Equal(t, 1, p.Burst)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Database: "genrelay", SSLMode: "disable", Password: "p"}

	assert.Equal(t, "host=db port=5432 user=u dbname=genrelay sslmode=disable password=p", c.DSN())
}

func TestParseCommaSeparatedList(t *testing.T) {
	assert.Nil(t, parseCommaSeparatedList(""))
	assert.Equal(t, []string{"a", "b"}, parseCommaSeparatedList(" a,, b ,"))
}

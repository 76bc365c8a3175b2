package textprovider

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// OpenAI calls the chat completions API. Any OpenAI-compatible endpoint
// (Groq, DeepSeek, OpenRouter) works by changing the base URL.
type OpenAI struct {
	opts    Options
	name    string
	baseURL string
}

var _ outbound.TextProviderPort = (*OpenAI)(nil)

// NewOpenAI creates a new OpenAI-compatible text adapter.
func NewOpenAI(opts Options) *OpenAI {
	return &OpenAI{
		opts:    opts,
		name:    opts.name("openai"),
		baseURL: opts.baseURL("https://api.openai.com/v1"),
	}
}

func (a *OpenAI) Name() string             { return a.name }
func (a *OpenAI) Kind() model.Mode         { return model.ModeText }
func (a *OpenAI) RequiresCredential() bool { return true }

// Invoke sends one chat completion request.
func (a *OpenAI) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (string, error) {
	messages := make([]map[string]string, 0, 2)
	if opts != nil && opts.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": opts.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":      a.opts.Model,
		"messages":   messages,
		"max_tokens": a.opts.maxTokens(),
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.opts.APIKey)

	resp, err := a.opts.Caller.PostJSON(ctx, a.baseURL+"/chat/completions", header, body)
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(resp.Body) {
		return "", a.opts.Caller.Fail("undecodable body", nil)
	}
	content := gjson.GetBytes(resp.Body, "choices.0.message.content")
	if !content.Exists() {
		return "", a.opts.Caller.Fail("missing field", ErrMissingField)
	}
	return content.String(), nil
}

package textprovider

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// Gemini calls the generateContent API for text.
type Gemini struct {
	opts    Options
	name    string
	baseURL string
}

var _ outbound.TextProviderPort = (*Gemini)(nil)

// NewGemini creates a new Gemini text adapter.
func NewGemini(opts Options) *Gemini {
	return &Gemini{
		opts:    opts,
		name:    opts.name("gemini"),
		baseURL: opts.baseURL("https://generativelanguage.googleapis.com/v1beta"),
	}
}

func (a *Gemini) Name() string             { return a.name }
func (a *Gemini) Kind() model.Mode         { return model.ModeText }
func (a *Gemini) RequiresCredential() bool { return true }

// Invoke sends one generateContent request and joins the text parts of the
// first candidate.
func (a *Gemini) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (string, error) {
	body := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": prompt}}},
		},
	}
	if opts != nil && opts.SystemPrompt != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": opts.SystemPrompt}},
		}
	}

	endpoint := a.baseURL + "/models/" + url.PathEscape(a.opts.Model) + ":generateContent"
	header := http.Header{}
	header.Set("x-goog-api-key", a.opts.APIKey)

	resp, err := a.opts.Caller.PostJSON(ctx, endpoint, header, body)
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(resp.Body) {
		return "", a.opts.Caller.Fail("undecodable body", nil)
	}
	parts := gjson.GetBytes(resp.Body, "candidates.0.content.parts.#.text")
	if !parts.Exists() || len(parts.Array()) == 0 {
		return "", a.opts.Caller.Fail("missing field", ErrMissingField)
	}

	var sb strings.Builder
	for _, part := range parts.Array() {
		sb.WriteString(part.String())
	}
	return sb.String(), nil
}

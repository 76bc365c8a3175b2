package textprovider

import (
	"context"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

const anthropicAPIVersion = "2023-06-01"

// Anthropic calls the messages API.
type Anthropic struct {
	opts    Options
	name    string
	baseURL string
}

var _ outbound.TextProviderPort = (*Anthropic)(nil)

// NewAnthropic creates a new Anthropic text adapter.
func NewAnthropic(opts Options) *Anthropic {
	return &Anthropic{
		opts:    opts,
		name:    opts.name("anthropic"),
		baseURL: opts.baseURL("https://api.anthropic.com/v1"),
	}
}

func (a *Anthropic) Name() string             { return a.name }
func (a *Anthropic) Kind() model.Mode         { return model.ModeText }
func (a *Anthropic) RequiresCredential() bool { return true }

// Invoke sends one messages request and joins the text blocks of the reply.
func (a *Anthropic) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (string, error) {
	body := map[string]any{
		"model":      a.opts.Model,
		"max_tokens": a.opts.maxTokens(),
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if opts != nil && opts.SystemPrompt != "" {
		body["system"] = opts.SystemPrompt
	}

	header := http.Header{}
	header.Set("x-api-key", a.opts.APIKey)
	header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := a.opts.Caller.PostJSON(ctx, a.baseURL+"/messages", header, body)
	if err != nil {
		return "", err
	}

	if !gjson.ValidBytes(resp.Body) {
		return "", a.opts.Caller.Fail("undecodable body", nil)
	}
	blocks := gjson.GetBytes(resp.Body, `content.#(type=="text")#.text`)
	if !blocks.Exists() || len(blocks.Array()) == 0 {
		return "", a.opts.Caller.Fail("missing field", ErrMissingField)
	}

	var sb strings.Builder
	for _, block := range blocks.Array() {
		sb.WriteString(block.String())
	}
	return sb.String(), nil
}

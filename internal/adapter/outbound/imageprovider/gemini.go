package imageprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// DefaultGeminiPromptTemplate asks the model for a bare base64 image.
const DefaultGeminiPromptTemplate = "請生成一張圖片：「%s」。請以 base64 輸出，不要附文字或說明。"

// Gemini calls generateContent with image output enabled. The image is read
// from the first inline_data (or inlineData) part; failing that, a text part
// holding base64 is accepted.
type Gemini struct {
	opts     Options
	name     string
	baseURL  string
	template string
}

var _ outbound.ImageProviderPort = (*Gemini)(nil)

// NewGemini creates a new Gemini image adapter. An empty template uses
// DefaultGeminiPromptTemplate.
func NewGemini(opts Options, template string) *Gemini {
	if template == "" {
		template = DefaultGeminiPromptTemplate
	}
	return &Gemini{
		opts:     opts,
		name:     opts.name("gemini"),
		baseURL:  opts.baseURL("https://generativelanguage.googleapis.com/v1beta"),
		template: template,
	}
}

func (a *Gemini) Name() string             { return a.name }
func (a *Gemini) Kind() model.Mode         { return model.ModeImage }
func (a *Gemini) RequiresCredential() bool { return true }

// Invoke generates one image.
func (a *Gemini) Invoke(ctx context.Context, prompt string, _ *model.InvokeOptions) (*model.ImagePayload, error) {
	text := prompt
	if strings.Contains(a.template, "%s") {
		text = fmt.Sprintf(a.template, prompt)
	}
	body := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]string{{"text": text}}},
		},
		"generationConfig": map[string]any{
			"responseModalities": []string{"TEXT", "IMAGE"},
		},
	}

	endpoint := a.baseURL + "/models/" + url.PathEscape(a.opts.Model) + ":generateContent"
	header := http.Header{}
	header.Set("x-goog-api-key", a.opts.APIKey)

	resp, err := a.opts.Caller.PostJSON(ctx, endpoint, header, body)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, a.opts.Caller.Fail("undecodable body", nil)
	}

	b64, mime := extractGeminiImage(gjson.GetBytes(resp.Body, "candidates.0.content.parts"))
	if b64 == "" {
		return nil, a.opts.Caller.Fail("missing field", ErrMissingImage)
	}
	data, err := decodeBase64(b64)
	if err != nil {
		return nil, a.opts.Caller.Fail("invalid base64", err)
	}

	sniffed := sniffMime(data)
	if sniffed == "" && mime == "" {
		return nil, a.opts.Caller.Fail("missing field", ErrNotImage)
	}
	if mime == "" {
		mime = sniffed
	}
	return &model.ImagePayload{Data: data, MimeType: mime}, nil
}

func extractGeminiImage(parts gjson.Result) (data, mime string) {
	for _, part := range parts.Array() {
		for _, key := range []string{"inline_data", "inlineData"} {
			inline := part.Get(key)
			if d := inline.Get("data").String(); d != "" {
				m := inline.Get("mime_type").String()
				if m == "" {
					m = inline.Get("mimeType").String()
				}
				return d, m
			}
		}
	}
	for _, part := range parts.Array() {
		if t := strings.TrimSpace(part.Get("text").String()); t != "" {
			return t, ""
		}
	}
	return "", ""
}

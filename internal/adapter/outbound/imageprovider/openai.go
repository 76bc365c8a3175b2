package imageprovider

import (
	"context"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// OpenAI calls the images/generations API with b64_json output.
type OpenAI struct {
	opts    Options
	name    string
	baseURL string
}

var _ outbound.ImageProviderPort = (*OpenAI)(nil)

// NewOpenAI creates a new OpenAI image adapter.
func NewOpenAI(opts Options) *OpenAI {
	return &OpenAI{
		opts:    opts,
		name:    opts.name("openai"),
		baseURL: opts.baseURL("https://api.openai.com/v1"),
	}
}

func (a *OpenAI) Name() string             { return a.name }
func (a *OpenAI) Kind() model.Mode         { return model.ModeImage }
func (a *OpenAI) RequiresCredential() bool { return true }

// Invoke generates one image.
func (a *OpenAI) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (*model.ImagePayload, error) {
	size := "1024x1024"
	if opts != nil && opts.ImageSize != "" {
		size = opts.ImageSize
	}
	body := map[string]any{
		"model":           a.opts.Model,
		"prompt":          prompt,
		"n":               1,
		"size":            size,
		"response_format": "b64_json",
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.opts.APIKey)

	resp, err := a.opts.Caller.PostJSON(ctx, a.baseURL+"/images/generations", header, body)
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(resp.Body) {
		return nil, a.opts.Caller.Fail("undecodable body", nil)
	}
	b64 := gjson.GetBytes(resp.Body, "data.0.b64_json").String()
	if b64 == "" {
		return nil, a.opts.Caller.Fail("missing field", ErrMissingImage)
	}
	data, err := decodeBase64(b64)
	if err != nil {
		return nil, a.opts.Caller.Fail("invalid base64", err)
	}

	mime := sniffMime(data)
	if mime == "" {
		mime = "image/png"
	}
	return &model.ImagePayload{Data: data, MimeType: mime}, nil
}

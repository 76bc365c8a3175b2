package imageprovider

import (
	"context"
	"net/url"
	"strings"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// Pollinations fetches an image over GET. It needs no credential.
type Pollinations struct {
	opts    Options
	name    string
	baseURL string
}

var _ outbound.ImageProviderPort = (*Pollinations)(nil)

// NewPollinations creates a new Pollinations image adapter.
func NewPollinations(opts Options) *Pollinations {
	return &Pollinations{
		opts:    opts,
		name:    opts.name("pollinations"),
		baseURL: opts.baseURL("https://image.pollinations.ai"),
	}
}

func (a *Pollinations) Name() string             { return a.name }
func (a *Pollinations) Kind() model.Mode         { return model.ModeImage }
func (a *Pollinations) RequiresCredential() bool { return false }

// Invoke generates one image.
func (a *Pollinations) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (*model.ImagePayload, error) {
	query := url.Values{}
	query.Set("nologo", "true")
	if a.opts.Model != "" {
		query.Set("model", a.opts.Model)
	}
	if opts != nil {
		if w, h, ok := parseSize(opts.ImageSize); ok {
			query.Set("width", w)
			query.Set("height", h)
		}
	}
	endpoint := a.baseURL + "/prompt/" + url.PathEscape(prompt) + "?" + query.Encode()

	resp, err := a.opts.Caller.Get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	mime := strings.TrimSpace(strings.Split(resp.ContentType, ";")[0])
	if !strings.HasPrefix(mime, "image/") {
		return nil, a.opts.Caller.Fail("unexpected content type "+resp.ContentType, ErrNotImage)
	}
	if len(resp.Body) == 0 {
		return nil, a.opts.Caller.Fail("empty body", ErrMissingImage)
	}
	return &model.ImagePayload{Data: resp.Body, MimeType: mime}, nil
}

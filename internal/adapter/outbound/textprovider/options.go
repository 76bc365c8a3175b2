package textprovider

import (
	"errors"
	"strings"

	"github.com/genrelay/server/internal/infra/httpclient"
)

// ErrMissingField is wrapped when a success response lacks the completion text.
var ErrMissingField = errors.New("completion text missing from response")

// Options configures a text provider adapter.
type Options struct {
	Name      string
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
	Caller    *httpclient.Caller
}

func (o Options) baseURL(fallback string) string {
	if o.BaseURL == "" {
		return fallback
	}
	return strings.TrimRight(o.BaseURL, "/")
}

func (o Options) name(fallback string) string {
	if o.Name == "" {
		return fallback
	}
	return o.Name
}

func (o Options) maxTokens() int {
	if o.MaxTokens <= 0 {
		return 1024
	}
	return o.MaxTokens
}

package imageprovider

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/genrelay/server/internal/infra/httpclient"
)

var (
	// ErrMissingImage is wrapped when a success response carries no image.
	ErrMissingImage = errors.New("image data missing from response")

	// ErrNotImage is wrapped when a response body is not an image.
	ErrNotImage = errors.New("response is not an image")
)

// Options configures an image provider adapter.
type Options struct {
	Name    string
	BaseURL string
	Model   string
	APIKey  string
	Caller  *httpclient.Caller
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

// decodeBase64 accepts standard or raw encodings, with or without a data: prefix.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// sniffMime returns the image MIME type of data, or "" if data is not an image.
func sniffMime(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return ""
}

// parseSize splits "1024x768" into width and height strings.
func parseSize(size string) (string, string, bool) {
	w, h, ok := strings.Cut(strings.ToLower(size), "x")
	if !ok || w == "" || h == "" {
		return "", "", false
	}
	return w, h, true
}

package blob

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/genrelay/server/internal/port/outbound"
)

// ErrEmptyBlob is returned when there is nothing to store.
var ErrEmptyBlob = errors.New("empty blob")

// inlineStore encodes images as data: URLs instead of persisting them.
type inlineStore struct{}

// NewInline creates a blob store that returns data: URLs.
func NewInline() outbound.BlobStorePort {
	return inlineStore{}
}

func (inlineStore) Save(_ context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

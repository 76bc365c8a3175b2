package blob

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// NewKey returns a unique object key under prefix, grouped by UTC day.
func NewKey(prefix, mimeType string, now time.Time) string {
	ext, ok := extensions[strings.ToLower(mimeType)]
	if !ok {
		ext = ".bin"
	}
	return path.Join(strings.Trim(prefix, "/"), now.UTC().Format("2006/01/02"), uuid.NewString()+ext)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

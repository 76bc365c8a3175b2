package outbound

import (
	"context"
	"time"
)

// BlobStorePort persists generated images.
type BlobStorePort interface {
	// Save stores data and returns a URL the caller can render.
	Save(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// RetainableStorePort is implemented by blob stores that support retention sweeps.
type RetainableStorePort interface {
	// List returns all stored objects.
	List(ctx context.Context) ([]ObjectInfo, error)

	// Delete removes objects by key.
	Delete(ctx context.Context, keys []string) error
}

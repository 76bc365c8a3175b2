package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/genrelay/server/internal/port/outbound"
)

// LocalStore writes images to a filesystem and serves them under a public URL.
type LocalStore struct {
	fs      afero.Fs
	baseURL string
	prefix  string
	now     func() time.Time
}

// NewLocal creates a local blob store rooted at fs. Keys are relative to the
// root of fs; baseURL is prepended to build public URLs.
func NewLocal(fs afero.Fs, baseURL, prefix string) *LocalStore {
	return &LocalStore{fs: fs, baseURL: baseURL, prefix: prefix, now: time.Now}
}

// NewLocalDir creates a local blob store rooted at an OS directory.
func NewLocalDir(dir, baseURL, prefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return NewLocal(afero.NewBasePathFs(afero.NewOsFs(), dir), baseURL, prefix), nil
}

// Save writes data under a fresh key and returns its public URL.
func (s *LocalStore) Save(_ context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}
	key := NewKey(s.prefix, mimeType, s.now())
	name := "/" + key
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, name, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return joinURL(s.baseURL, key), nil
}

// List returns every stored object.
func (s *LocalStore) List(_ context.Context) ([]outbound.ObjectInfo, error) {
	var objects []outbound.ObjectInfo
	err := afero.Walk(s.fs, "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		objects = append(objects, outbound.ObjectInfo{
			Key:        strings.TrimPrefix(filepath.ToSlash(p), "/"),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk storage: %w", err)
	}
	return objects, nil
}

// Delete removes the given keys. Missing keys are ignored.
func (s *LocalStore) Delete(_ context.Context, keys []string) error {
	for _, key := range keys {
		if err := s.fs.Remove("/" + strings.TrimPrefix(key, "/")); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// HTTPFileSystem exposes the store for static serving.
func (s *LocalStore) HTTPFileSystem() http.FileSystem {
	return afero.NewHttpFs(s.fs)
}

var (
	_ outbound.BlobStorePort       = (*LocalStore)(nil)
	_ outbound.RetainableStorePort = (*LocalStore)(nil)
)

package outbound

import (
	"context"

	"github.com/genrelay/server/internal/model"
)

// UsageStorePort persists per-subject usage records.
type UsageStorePort interface {
	// Get returns the record for a subject, or nil when none exists.
	Get(ctx context.Context, subjectID string) (*model.UsageRecord, error)

	// Set unconditionally stores a record.
	Set(ctx context.Context, record *model.UsageRecord) error

	// CompareAndSwap replaces old with next only if the stored record still
	// matches old. A nil old means "no record stored".
	CompareAndSwap(ctx context.Context, subjectID string, old, next *model.UsageRecord) (bool, error)
}

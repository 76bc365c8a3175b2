package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// usageStore implements outbound.UsageStorePort in process memory. Records
// expire after ttl so stale periods do not accumulate.
type usageStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

// NewUsageStore creates an in-memory usage store.
func NewUsageStore(ttl time.Duration) outbound.UsageStorePort {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &usageStore{
		cache: gocache.New(ttl, ttl/4),
		ttl:   ttl,
	}
}

func (s *usageStore) Get(_ context.Context, subjectID string) (*model.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(subjectID), nil
}

func (s *usageStore) Set(_ context.Context, record *model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(record.SubjectID, *record, s.ttl)
	return nil
}

func (s *usageStore) CompareAndSwap(_ context.Context, subjectID string, old, next *model.UsageRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.load(subjectID).Same(old) {
		return false, nil
	}
	record := *next
	record.SubjectID = subjectID
	s.cache.Set(subjectID, record, s.ttl)
	return true, nil
}

func (s *usageStore) load(subjectID string) *model.UsageRecord {
	v, ok := s.cache.Get(subjectID)
	if !ok {
		return nil
	}
	record := v.(model.UsageRecord)
	return &record
}

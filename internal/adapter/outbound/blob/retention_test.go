package blob

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genrelay/server/internal/port/outbound"
)

type fakeRetainable struct {
	mu      sync.Mutex
	objects []outbound.ObjectInfo
	listErr error
	lists   int
}

func (f *fakeRetainable) List(context.Context) ([]outbound.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]outbound.ObjectInfo(nil), f.objects...), nil
}

func (f *fakeRetainable) Delete(_ context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	kept := f.objects[:0]
	for _, o := range f.objects {
		if !drop[o.Key] {
			kept = append(kept, o)
		}
	}
	f.objects = kept
	return nil
}

func (f *fakeRetainable) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, o := range f.objects {
		out = append(out, o.Key)
	}
	sort.Strings(out)
	return out
}

type countingMetrics struct {
	outbound.MetricsPort
	deleted int
}

func (m *countingMetrics) RecordBlobsDeleted(n int) { m.deleted += n }

func seeded(now time.Time) *fakeRetainable {
	return &fakeRetainable{objects: []outbound.ObjectInfo{
		{Key: "a", ModifiedAt: now.Add(-72 * time.Hour)},
		{Key: "b", ModifiedAt: now.Add(-3 * time.Hour)},
		{Key: "c", ModifiedAt: now.Add(-2 * time.Hour)},
		{Key: "d", ModifiedAt: now.Add(-1 * time.Hour)},
	}}
}

func TestJanitor_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		policy  RetentionPolicy
		deleted int
		left    []string
	}{
		{"disabled", RetentionPolicy{}, 0, []string{"a", "b", "c", "d"}},
		{"max age", RetentionPolicy{MaxAge: 24 * time.Hour}, 1, []string{"b", "c", "d"}},
		{"max count", RetentionPolicy{MaxCount: 2}, 2, []string{"c", "d"}},
		{"both", RetentionPolicy{MaxAge: 24 * time.Hour, MaxCount: 1}, 3, []string{"d"}},
		{"under limits", RetentionPolicy{MaxAge: 100 * time.Hour, MaxCount: 10}, 0, []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := seeded(now)
			metrics := &countingMetrics{}
			j := NewJanitor(store, tt.policy, metrics, nil)
			j.now = func() time.Time { return now }

			n, err := j.Sweep(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.deleted, n)
			assert.Equal(t, tt.deleted, metrics.deleted)
			assert.Equal(t, tt.left, store.keys())
		})
	}
}

func TestJanitor_SweepListError(t *testing.T) {
	store := &fakeRetainable{listErr: errors.New("boom")}
	j := NewJanitor(store, RetentionPolicy{MaxCount: 1}, nil, nil)

	_, err := j.Sweep(context.Background())

	assert.Error(t, err)
}

func TestJanitor_StartStop(t *testing.T) {
	now := time.Now()
	store := seeded(now)
	j := NewJanitor(store, RetentionPolicy{MaxCount: 1, Interval: time.Hour}, nil, nil)

	j.Start(context.Background())
	require.Eventually(t, func() bool { return len(store.keys()) == 1 }, time.Second, 5*time.Millisecond)
	j.Stop()
	j.Stop()

	assert.Equal(t, []string{"d"}, store.keys())
}

func TestJanitor_StartDisabled(t *testing.T) {
	store := seeded(time.Now())
	j := NewJanitor(store, RetentionPolicy{}, nil, nil)

	j.Start(context.Background())
	j.Stop()

	assert.Equal(t, 0, store.lists)
}

package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genrelay/server/internal/model"
)

func TestUsageStore_GetMissing(t *testing.T) {
	s := NewUsageStore(time.Hour)

	r, err := s.Get(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestUsageStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewUsageStore(time.Hour)
	first := &model.UsageRecord{SubjectID: "u", PeriodKey: "2024-01-01", Count: 1}

	ok, err := s.CompareAndSwap(ctx, "u", nil, first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CompareAndSwap(ctx, "u", nil, first)
	require.NoError(t, err)
	assert.False(t, ok, "absent expectation must fail once a record exists")

	stale := &model.UsageRecord{SubjectID: "u", PeriodKey: "2024-01-01", Count: 0}
	ok, err = s.CompareAndSwap(ctx, "u", stale, &model.UsageRecord{PeriodKey: "2024-01-01", Count: 1})
	require.NoError(t, err)
	assert.False(t, ok)

	second := &model.UsageRecord{SubjectID: "u", PeriodKey: "2024-01-01", Count: 2}
	ok, err = s.CompareAndSwap(ctx, "u", first, second)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "u", got.SubjectID)
}

func TestUsageStore_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewUsageStore(0)

	require.NoError(t, s.Set(ctx, &model.UsageRecord{SubjectID: "u", PeriodKey: "p", Count: 7}))
	got, err := s.Get(ctx, "u")

	require.NoError(t, err)
	assert.Equal(t, 7, got.Count)
}

func TestUsageStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewUsageStore(20 * time.Millisecond)
	require.NoError(t, s.Set(ctx, &model.UsageRecord{SubjectID: "u", PeriodKey: "p", Count: 1}))

	time.Sleep(40 * time.Millisecond)
	got, err := s.Get(ctx, "u")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUsageStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewUsageStore(time.Hour)
	var wg sync.WaitGroup
	var applied atomic.Int32

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				cur, _ := s.Get(ctx, "u")
				next := &model.UsageRecord{SubjectID: "u", PeriodKey: "p", Count: 1}
				if cur != nil {
					next.Count = cur.Count + 1
				}
				if ok, _ := s.CompareAndSwap(ctx, "u", cur, next); ok {
					applied.Add(1)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 20, got.Count)
	assert.Equal(t, int32(20), applied.Load())
}

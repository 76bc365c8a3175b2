package blob

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/genrelay/server/internal/port/outbound"
)

// RetentionPolicy bounds how long and how many generated images are kept.
type RetentionPolicy struct {
	MaxAge   time.Duration // 0 disables age pruning
	MaxCount int           // 0 disables count pruning
	Interval time.Duration
}

// Enabled reports whether the policy prunes anything.
func (p RetentionPolicy) Enabled() bool {
	return p.MaxAge > 0 || p.MaxCount > 0
}

// Janitor periodically prunes a retainable store.
type Janitor struct {
	store   outbound.RetainableStorePort
	policy  RetentionPolicy
	metrics outbound.MetricsPort
	logger  *zap.Logger
	now     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJanitor creates a retention janitor. metrics may be nil.
func NewJanitor(store outbound.RetainableStorePort, policy RetentionPolicy, metrics outbound.MetricsPort, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Interval <= 0 {
		policy.Interval = time.Hour
	}
	return &Janitor{
		store:   store,
		policy:  policy,
		metrics: metrics,
		logger:  logger.Named("blob-janitor"),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Sweep deletes objects older than MaxAge, then the oldest objects beyond
// MaxCount. It returns the number of deleted objects.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	if !j.policy.Enabled() {
		return 0, nil
	}

	objects, err := j.store.List(ctx)
	if err != nil {
		return 0, err
	}
	sort.Slice(objects, func(a, b int) bool {
		return objects[a].ModifiedAt.After(objects[b].ModifiedAt)
	})

	var expired []string
	kept := objects[:0]
	horizon := j.now().Add(-j.policy.MaxAge)
	for _, obj := range objects {
		if j.policy.MaxAge > 0 && obj.ModifiedAt.Before(horizon) {
			expired = append(expired, obj.Key)
			continue
		}
		kept = append(kept, obj)
	}
	if j.policy.MaxCount > 0 && len(kept) > j.policy.MaxCount {
		for _, obj := range kept[j.policy.MaxCount:] {
			expired = append(expired, obj.Key)
		}
	}

	if len(expired) == 0 {
		return 0, nil
	}
	if err := j.store.Delete(ctx, expired); err != nil {
		return 0, err
	}
	if j.metrics != nil {
		j.metrics.RecordBlobsDeleted(len(expired))
	}
	return len(expired), nil
}

// Start runs Sweep on the policy interval until Stop is called or ctx ends.
func (j *Janitor) Start(ctx context.Context) {
	if !j.policy.Enabled() {
		j.logger.Debug("retention disabled")
		return
	}
	j.logger.Info("starting blob janitor",
		zap.Duration("interval", j.policy.Interval),
		zap.Duration("max_age", j.policy.MaxAge),
		zap.Int("max_count", j.policy.MaxCount))

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.policy.Interval)
		defer ticker.Stop()

		for {
			j.sweepOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-j.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
}

func (j *Janitor) sweepOnce(ctx context.Context) {
	n, err := j.Sweep(ctx)
	if err != nil {
		j.logger.Warn("retention sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		j.logger.Info("pruned generated images", zap.Int("deleted", n))
	}
}

// Stop stops the background loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
	j.wg.Wait()
}

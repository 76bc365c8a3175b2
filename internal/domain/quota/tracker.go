package quota

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// Tracker gates image generation by plan tier and day.
type Tracker struct {
	store   outbound.UsageStorePort
	metrics outbound.MetricsPort
	config  *Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewTracker creates a new quota tracker. metrics may be nil.
func NewTracker(store outbound.UsageStorePort, metrics outbound.MetricsPort, config *Config, logger *zap.Logger) *Tracker {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.MaxCASRetries <= 0 {
		config.MaxCASRetries = DefaultConfig().MaxCASRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:   store,
		metrics: metrics,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}

// PeriodKey returns the period key for an instant.
func (t *Tracker) PeriodKey(at time.Time) string {
	return at.In(t.config.Location).Format(PeriodLayout)
}

// LimitFor returns the daily limit of a tier.
func (t *Tracker) LimitFor(tier model.PlanTier) int {
	return t.config.LimitFor(tier)
}

// CheckAndConsume reserves one unit for the subject. Only image requests are
// gated; text requests get a ticket that does nothing. A denial is a *DeniedError.
func (t *Tracker) CheckAndConsume(ctx context.Context, subject model.Subject, kind model.Mode) (*Ticket, error) {
	if kind != model.ModeImage {
		return &Ticket{}, nil
	}
	if strings.TrimSpace(subject.ID) == "" {
		return nil, ErrInvalidSubject
	}

	limit := t.config.LimitFor(subject.Tier)
	if isUnlimited(limit) {
		return &Ticket{tracker: t, subject: subject}, nil
	}

	period := t.PeriodKey(t.now())
	for attempt := 0; attempt < t.config.MaxCASRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := t.store.Get(ctx, subject.ID)
		if err != nil {
			return nil, fmt.Errorf("get usage: %w", err)
		}

		count := 0
		if current != nil && current.PeriodKey == period {
			count = current.Count
		}
		if count >= limit {
			if t.metrics != nil {
				t.metrics.RecordQuotaDenied(subject.Tier.String())
			}
			t.logger.Info("Quota denied",
				zap.String("subject", subject.ID),
				zap.String("tier", subject.Tier.String()),
				zap.Int("count", count),
				zap.Int("limit", limit),
			)
			return nil, &DeniedError{Tier: subject.Tier, Count: count, Limit: limit}
		}

		next := &model.UsageRecord{
			SubjectID: subject.ID,
			PeriodKey: period,
			Count:     count + 1,
			UpdatedAt: t.now(),
		}
		swapped, err := t.store.CompareAndSwap(ctx, subject.ID, current, next)
		if err != nil {
			return nil, fmt.Errorf("reserve usage: %w", err)
		}
		if swapped {
			return &Ticket{tracker: t, subject: subject, period: period, reserved: true}, nil
		}
	}

	t.logger.Warn("Quota reservation gave up under contention",
		zap.String("subject", subject.ID),
		zap.Int("retries", t.config.MaxCASRetries),
	)
	return nil, ErrContention
}

// Usage returns the subject's quota state for the current period.
func (t *Tracker) Usage(ctx context.Context, subject model.Subject) (*model.UsageSnapshot, error) {
	if strings.TrimSpace(subject.ID) == "" {
		return nil, ErrInvalidSubject
	}
	period := t.PeriodKey(t.now())
	limit := t.config.LimitFor(subject.Tier)
	snapshot := &model.UsageSnapshot{
		SubjectID: subject.ID,
		Tier:      subject.Tier,
		PeriodKey: period,
		Limit:     limit,
	}
	if isUnlimited(limit) {
		snapshot.Limit = model.Unlimited
		snapshot.Remaining = model.Unlimited
		return snapshot, nil
	}

	record, err := t.store.Get(ctx, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("get usage: %w", err)
	}
	if record != nil && record.PeriodKey == period {
		snapshot.Used = record.Count
	}
	snapshot.Remaining = max(limit-snapshot.Used, 0)
	return snapshot, nil
}

// refund gives back one unit reserved in period. A record already rolled over
// to a later period has nothing to refund.
func (t *Tracker) refund(ctx context.Context, subjectID, period string) error {
	for attempt := 0; attempt < t.config.MaxCASRetries; attempt++ {
		current, err := t.store.Get(ctx, subjectID)
		if err != nil {
			return fmt.Errorf("get usage: %w", err)
		}
		if current == nil || current.PeriodKey != period || current.Count == 0 {
			return nil
		}

		next := &model.UsageRecord{
			SubjectID: subjectID,
			PeriodKey: period,
			Count:     current.Count - 1,
			UpdatedAt: t.now(),
		}
		swapped, err := t.store.CompareAndSwap(ctx, subjectID, current, next)
		if err != nil {
			return fmt.Errorf("refund usage: %w", err)
		}
		if swapped {
			return nil
		}
	}
	return ErrContention
}

// Ticket is a reservation returned by CheckAndConsume. Exactly one of Commit
// or Release takes effect; later calls are no-ops.
type Ticket struct {
	tracker  *Tracker
	subject  model.Subject
	period   string
	reserved bool
	settled  atomic.Bool
}

// Reserved reports whether the ticket holds a slot in the usage store.
func (t *Ticket) Reserved() bool {
	return t != nil && t.reserved
}

// Commit keeps the reserved unit.
func (t *Ticket) Commit() {
	if t == nil || t.tracker == nil || !t.settled.CompareAndSwap(false, true) {
		return
	}
	if t.tracker.metrics != nil {
		t.tracker.metrics.RecordQuotaConsumed(t.subject.Tier.String())
	}
}

// Release gives the reserved unit back.
func (t *Ticket) Release(ctx context.Context) error {
	if t == nil || t.tracker == nil || !t.settled.CompareAndSwap(false, true) {
		return nil
	}
	if !t.reserved {
		return nil
	}
	if err := t.tracker.refund(ctx, t.subject.ID, t.period); err != nil {
		t.tracker.logger.Error("Failed to release quota reservation",
			zap.String("subject", t.subject.ID),
			zap.String("period", t.period),
			zap.Error(err),
		)
		return err
	}
	return nil
}

package generation

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// BreakerConfig configures the per-provider circuit breaker.
type BreakerConfig struct {
	FailureThreshold    uint32
	Interval            time.Duration
	Timeout             time.Duration
	MaxHalfOpenRequests uint32
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold:    5,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

type breakerProvider[P any] struct {
	outbound.ProviderPort[P]
	cb *gobreaker.CircuitBreaker[P]
}

// WithCircuitBreaker wraps a provider so repeated failures open a breaker and
// later calls fail fast with gobreaker.ErrOpenState until it half-opens.
func WithCircuitBreaker[P any](p outbound.ProviderPort[P], config *BreakerConfig, logger *zap.Logger) outbound.ProviderPort[P] {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := config.FailureThreshold
	settings := gobreaker.Settings{
		Name:        p.Kind().String() + "/" + p.Name(),
		MaxRequests: config.MaxHalfOpenRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Provider breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &breakerProvider[P]{
		ProviderPort: p,
		cb:           gobreaker.NewCircuitBreaker[P](settings),
	}
}

func (b *breakerProvider[P]) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (P, error) {
	return b.cb.Execute(func() (P, error) {
		return b.ProviderPort.Invoke(ctx, prompt, opts)
	})
}

// State returns the breaker state.
func (b *breakerProvider[P]) State() gobreaker.State {
	return b.cb.State()
}

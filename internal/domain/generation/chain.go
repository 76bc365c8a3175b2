package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// Outcome is the result of a successful chain run.
type Outcome[P any] struct {
	Payload  P
	Provider string
	Attempts []model.Attempt
}

// ChainOptions configures a fallback chain.
type ChainOptions struct {
	// Backoff is the pause between a failed provider and the next one.
	Backoff time.Duration
	Metrics outbound.MetricsPort
	Logger  *zap.Logger
}

// Chain runs providers of one kind in order until one succeeds.
type Chain[P any] struct {
	kind      model.Mode
	providers []outbound.ProviderPort[P]
	validate  func(P) error
	backoff   time.Duration
	metrics   outbound.MetricsPort
	logger    *zap.Logger
}

// NewTextChain creates a chain over text providers. Blank completions are failures.
func NewTextChain(providers []outbound.TextProviderPort, opts ChainOptions) *Chain[string] {
	return newChain(model.ModeText, providers, validateText, opts)
}

// NewImageChain creates a chain over image providers. Empty images are failures.
func NewImageChain(providers []outbound.ImageProviderPort, opts ChainOptions) *Chain[*model.ImagePayload] {
	return newChain(model.ModeImage, providers, validateImage, opts)
}

func newChain[P any](kind model.Mode, providers []outbound.ProviderPort[P], validate func(P) error, opts ChainOptions) *Chain[P] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain[P]{
		kind:      kind,
		providers: append([]outbound.ProviderPort[P](nil), providers...),
		validate:  validate,
		backoff:   opts.Backoff,
		metrics:   opts.Metrics,
		logger:    logger.With(zap.String("chain", kind.String())),
	}
}

// Kind returns the generation kind of the chain.
func (c *Chain[P]) Kind() model.Mode {
	return c.kind
}

// Len returns the number of providers in the chain.
func (c *Chain[P]) Len() int {
	return len(c.providers)
}

// Names returns provider names in chain order.
func (c *Chain[P]) Names() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Run invokes providers sequentially. The first valid payload wins; if every
// provider fails the error is an *ExhaustedError. An empty chain returns
// ErrNoProviderAvailable.
func (c *Chain[P]) Run(ctx context.Context, prompt string, opts *model.InvokeOptions) (*Outcome[P], error) {
	if len(c.providers) == 0 {
		return nil, ErrNoProviderAvailable
	}

	var failures *multierror.Error
	attempts := make([]model.Attempt, 0, len(c.providers))

	for i, p := range c.providers {
		if i > 0 && c.backoff > 0 {
			if err := sleep(ctx, c.backoff); err != nil {
				failures = multierror.Append(failures, err)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			failures = multierror.Append(failures, err)
			break
		}

		start := time.Now()
		payload, err := c.invoke(ctx, p, prompt, opts)
		if err == nil {
			err = c.validate(payload)
		}
		elapsed := time.Since(start)

		attempt := model.Attempt{Provider: p.Name(), LatencyMs: elapsed.Milliseconds()}
		if err == nil {
			attempts = append(attempts, attempt)
			c.record(p.Name(), "success", elapsed)
			c.logger.Debug("Provider succeeded",
				zap.String("provider", p.Name()),
				zap.Int("position", i),
				zap.Duration("latency", elapsed),
			)
			return &Outcome[P]{Payload: payload, Provider: p.Name(), Attempts: attempts}, nil
		}

		attempt.Error = err.Error()
		attempts = append(attempts, attempt)
		failures = multierror.Append(failures, fmt.Errorf("%s: %w", p.Name(), err))
		c.record(p.Name(), "failure", elapsed)
		c.logger.Warn("Provider failed, falling back",
			zap.String("provider", p.Name()),
			zap.Int("position", i),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		)
	}

	if c.metrics != nil {
		c.metrics.RecordChainExhausted(c.kind.String())
	}
	if failures != nil {
		failures.ErrorFormat = inlineErrors
	}
	err := failures.ErrorOrNil()
	c.logger.Error("All providers failed", zap.Int("attempts", len(attempts)), zap.Error(err))
	return nil, &ExhaustedError{Kind: c.kind, Attempts: attempts, Err: err}
}

func (c *Chain[P]) invoke(ctx context.Context, p outbound.ProviderPort[P], prompt string, opts *model.InvokeOptions) (payload P, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Provider panicked", zap.String("provider", p.Name()), zap.Any("panic", r))
			err = fmt.Errorf("%w: %v", ErrProviderPanic, r)
		}
	}()
	return p.Invoke(ctx, prompt, opts)
}

func (c *Chain[P]) record(provider, status string, elapsed time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordProviderAttempt(c.kind.String(), provider, status, elapsed)
	}
}

func validateText(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyPayload
	}
	return nil
}

func validateImage(img *model.ImagePayload) error {
	if img == nil || len(img.Data) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

func inlineErrors(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/genrelay/server/internal/domain/quota"
	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// Dispatcher turns a generation request into a normalized result.
type Dispatcher struct {
	classifier *Classifier
	textChain  *Chain[string]
	imageChain *Chain[*model.ImagePayload]
	tracker    *quota.Tracker
	blobs      outbound.BlobStorePort
	config     *Config
	logger     *zap.Logger
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(
	classifier *Classifier,
	textChain *Chain[string],
	imageChain *Chain[*model.ImagePayload],
	tracker *quota.Tracker,
	blobs outbound.BlobStorePort,
	config *Config,
	logger *zap.Logger,
) *Dispatcher {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if textChain == nil {
		textChain = NewTextChain(nil, ChainOptions{Logger: logger})
	}
	if imageChain == nil {
		imageChain = NewImageChain(nil, ChainOptions{Logger: logger})
	}
	return &Dispatcher{
		classifier: classifier,
		textChain:  textChain,
		imageChain: imageChain,
		tracker:    tracker,
		blobs:      blobs,
		config:     config.withDefaults(),
		logger:     logger,
	}
}

// Chains returns the provider order of each chain.
func (d *Dispatcher) Chains() map[model.Mode][]string {
	return map[model.Mode][]string{
		model.ModeText:  d.textChain.Names(),
		model.ModeImage: d.imageChain.Names(),
	}
}

// Handle runs one generation request. Every outcome, including failures, is
// reported through the returned result.
func (d *Dispatcher) Handle(ctx context.Context, req *model.GenerationRequest, subject model.Subject) *model.GenerationResult {
	message := ""
	if req != nil {
		message = strings.TrimSpace(req.Message)
	}

	mode := model.ModeText
	if req != nil && req.Mode != nil && req.Mode.IsValid() {
		mode = *req.Mode
	} else if message != "" {
		mode = d.classifier.Classify(message)
	}

	if message == "" {
		return d.fail(mode, model.FailureValidation, d.config.Messages.EmptyMessage, nil)
	}

	if mode == model.ModeImage {
		return d.handleImage(ctx, message, subject)
	}
	return d.handleText(ctx, message)
}

func (d *Dispatcher) handleText(ctx context.Context, message string) *model.GenerationResult {
	outcome, err := d.textChain.Run(ctx, message, &model.InvokeOptions{SystemPrompt: d.config.TextSystemPrompt})
	if err != nil {
		kind := model.FailureChainExhausted
		if errors.Is(err, ErrNoProviderAvailable) {
			kind = model.FailureNoProvider
		}
		d.logger.Warn("Text generation degraded", zap.String("kind", string(kind)), zap.Error(err))
		return d.fail(model.ModeText, kind, d.config.Messages.TextFallback, attemptsOf(err))
	}

	return &model.GenerationResult{
		OK:       true,
		Mode:     model.ModeText,
		Reply:    outcome.Payload,
		Engine:   outcome.Provider,
		Attempts: outcome.Attempts,
	}
}

func (d *Dispatcher) handleImage(ctx context.Context, prompt string, subject model.Subject) *model.GenerationResult {
	msgs := d.config.Messages

	if utf8.RuneCountInString(prompt) < d.config.MinImagePromptLen {
		return d.fail(model.ModeImage, model.FailureValidation, msgs.PromptTooShort, nil)
	}
	if d.imageChain.Len() == 0 {
		return d.fail(model.ModeImage, model.FailureNoProvider, msgs.NoProvider, nil)
	}

	ticket, err := d.tracker.CheckAndConsume(ctx, subject, model.ModeImage)
	if err != nil {
		var denied *quota.DeniedError
		if errors.As(err, &denied) {
			return d.fail(model.ModeImage, model.FailureQuotaDenied, fmt.Sprintf(msgs.QuotaDenied, denied.Count, denied.Limit), nil)
		}
		if errors.Is(err, quota.ErrInvalidSubject) {
			return d.fail(model.ModeImage, model.FailureValidation, msgs.InvalidSubject, nil)
		}
		d.logger.Error("Quota check failed", zap.String("subject", subject.ID), zap.Error(err))
		return d.fail(model.ModeImage, model.FailureUnavailable, msgs.Unavailable, nil)
	}

	outcome, err := d.imageChain.Run(ctx, prompt, &model.InvokeOptions{ImageSize: d.config.ImageSize})
	if err != nil {
		d.release(ctx, ticket, subject)
		if errors.Is(err, ErrNoProviderAvailable) {
			return d.fail(model.ModeImage, model.FailureNoProvider, msgs.NoProvider, nil)
		}
		return d.fail(model.ModeImage, model.FailureChainExhausted, msgs.ImageFailed, attemptsOf(err))
	}

	url, err := d.blobs.Save(ctx, outcome.Payload.Data, outcome.Payload.MimeType)
	if err != nil {
		d.release(ctx, ticket, subject)
		d.logger.Error("Failed to store generated image",
			zap.String("provider", outcome.Provider),
			zap.Int("bytes", len(outcome.Payload.Data)),
			zap.Error(err),
		)
		return d.fail(model.ModeImage, model.FailureStorage, msgs.StorageFailed, outcome.Attempts)
	}

	ticket.Commit()
	d.logger.Info("Image generated",
		zap.String("subject", subject.ID),
		zap.String("tier", subject.Tier.String()),
		zap.String("provider", outcome.Provider),
		zap.Int("attempts", len(outcome.Attempts)),
	)

	return &model.GenerationResult{
		OK:       true,
		Mode:     model.ModeImage,
		ImageURL: url,
		Engine:   outcome.Provider,
		Attempts: outcome.Attempts,
	}
}

// release refunds the reservation even if the request context is gone.
func (d *Dispatcher) release(ctx context.Context, ticket *quota.Ticket, subject model.Subject) {
	if err := ticket.Release(context.WithoutCancel(ctx)); err != nil {
		d.logger.Error("Quota refund failed", zap.String("subject", subject.ID), zap.Error(err))
	}
}

func (d *Dispatcher) fail(mode model.Mode, kind model.FailureKind, reply string, attempts []model.Attempt) *model.GenerationResult {
	return &model.GenerationResult{
		OK:       false,
		Mode:     mode,
		Reply:    reply,
		Failure:  &model.Failure{Kind: kind, Message: reply},
		Attempts: attempts,
	}
}

func attemptsOf(err error) []model.Attempt {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	return nil
}

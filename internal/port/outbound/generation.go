package outbound

import (
	"context"
	"strconv"

	"github.com/genrelay/server/internal/model"
)

// ProviderPort wraps one external generation backend behind a uniform call.
// P is string for text providers and *model.ImagePayload for image providers.
type ProviderPort[P any] interface {
	// Name returns the provider name used in logs, metrics and responses.
	Name() string

	// Kind returns the generation kind the provider serves.
	Kind() model.Mode

	// RequiresCredential reports whether the provider needs an API key.
	RequiresCredential() bool

	// Invoke performs exactly one backend call.
	Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (P, error)
}

// TextProviderPort is a provider producing completion text.
type TextProviderPort = ProviderPort[string]

// ImageProviderPort is a provider producing raw image bytes.
type ImageProviderPort = ProviderPort[*model.ImagePayload]

// PromptTransformerPort rewrites a prompt before it reaches a provider.
type PromptTransformerPort interface {
	Transform(ctx context.Context, prompt string) (string, error)
}

// ProviderError is the typed failure returned by provider adapters.
type ProviderError struct {
	Provider string
	Reason   string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	msg := "provider " + e.Provider + ": " + e.Reason
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

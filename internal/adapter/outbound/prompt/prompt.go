package prompt

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// Suffix appends a fixed stylistic suffix.
type Suffix string

var _ outbound.PromptTransformerPort = Suffix("")

// Transform appends the suffix separated by a comma.
func (s Suffix) Transform(_ context.Context, prompt string) (string, error) {
	suffix := strings.TrimSpace(string(s))
	if suffix == "" {
		return prompt, nil
	}
	return strings.TrimRight(prompt, " ,，") + ", " + suffix, nil
}

const translateInstruction = "Translate the user's text into natural English for an image generation model. " +
	"Reply with the translation only, no quotes or explanations. If it is already English, repeat it unchanged."

// Translator rewrites prompts into English through a text provider.
type Translator struct {
	provider outbound.TextProviderPort
}

var _ outbound.PromptTransformerPort = (*Translator)(nil)

// NewTranslator creates a translator backed by a text provider.
func NewTranslator(provider outbound.TextProviderPort) *Translator {
	return &Translator{provider: provider}
}

// Transform returns the English translation of prompt.
func (t *Translator) Transform(ctx context.Context, prompt string) (string, error) {
	if isASCII(prompt) {
		return prompt, nil
	}
	out, err := t.provider.Invoke(ctx, prompt, &model.InvokeOptions{SystemPrompt: translateInstruction})
	if err != nil {
		return "", err
	}
	out = strings.Trim(strings.TrimSpace(out), `"“”「」`)
	if out == "" {
		return prompt, nil
	}
	return out, nil
}

// transformed wraps a provider with prompt transformers run in order.
type transformed[P any] struct {
	outbound.ProviderPort[P]
	transformers []outbound.PromptTransformerPort
	logger       *zap.Logger
}

// Wrap applies transformers before every Invoke of p. A failing transformer
// is skipped and the prompt passes through unchanged.
func Wrap[P any](p outbound.ProviderPort[P], logger *zap.Logger, transformers ...outbound.PromptTransformerPort) outbound.ProviderPort[P] {
	if len(transformers) == 0 {
		return p
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transformed[P]{ProviderPort: p, transformers: transformers, logger: logger}
}

func (t *transformed[P]) Invoke(ctx context.Context, prompt string, opts *model.InvokeOptions) (P, error) {
	for _, tr := range t.transformers {
		next, err := tr.Transform(ctx, prompt)
		if err != nil {
			t.logger.Warn("Prompt transform failed, using original prompt",
				zap.String("provider", t.Name()),
				zap.Error(err),
			)
			continue
		}
		prompt = next
	}
	return t.ProviderPort.Invoke(ctx, prompt, opts)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

package registry

import (
	"fmt"
	"net/http"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/genrelay/server/internal/adapter/outbound/imageprovider"
	"github.com/genrelay/server/internal/adapter/outbound/prompt"
	"github.com/genrelay/server/internal/adapter/outbound/textprovider"
	"github.com/genrelay/server/internal/infra/config"
	"github.com/genrelay/server/internal/infra/httpclient"
	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// Registry holds the provider chains built once at startup. It is read-only
// after New returns.
type Registry struct {
	text    []outbound.TextProviderPort
	image   []outbound.ImageProviderPort
	skipped []string
}

// New builds adapters from configuration. Providers missing a required
// credential are left out and logged; unknown types are a configuration error.
func New(cfg config.ProvidersConfig, client *http.Client, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &builder{client: client, logger: logger}

	for _, pc := range cfg.Text {
		p, err := b.text(pc)
		if err != nil {
			return nil, err
		}
		if p != nil {
			b.reg.text = append(b.reg.text, p)
		}
	}
	for _, pc := range cfg.Image {
		p, err := b.image(pc)
		if err != nil {
			return nil, err
		}
		if p != nil {
			b.reg.image = append(b.reg.image, p)
		}
	}

	textNames := lo.Map(b.reg.text, func(p outbound.TextProviderPort, _ int) string { return p.Name() })
	if dups := lo.FindDuplicates(textNames); len(dups) > 0 {
		return nil, fmt.Errorf("duplicate text provider names: %v", dups)
	}
	imageNames := lo.Map(b.reg.image, func(p outbound.ImageProviderPort, _ int) string { return p.Name() })
	if dups := lo.FindDuplicates(imageNames); len(dups) > 0 {
		return nil, fmt.Errorf("duplicate image provider names: %v", dups)
	}

	logger.Info("Provider registry built",
		zap.Strings("text", textNames),
		zap.Strings("image", imageNames),
		zap.Strings("skipped", b.reg.skipped),
	)
	return &b.reg, nil
}

// Text returns the text chain in configured order.
func (r *Registry) Text() []outbound.TextProviderPort {
	return append([]outbound.TextProviderPort(nil), r.text...)
}

// Image returns the image chain in configured order.
func (r *Registry) Image() []outbound.ImageProviderPort {
	return append([]outbound.ImageProviderPort(nil), r.image...)
}

// Skipped returns "kind/name" of providers left out for missing credentials.
func (r *Registry) Skipped() []string {
	return append([]string(nil), r.skipped...)
}

type builder struct {
	reg    Registry
	client *http.Client
	logger *zap.Logger
}

func (b *builder) caller(pc config.ProviderConfig) *httpclient.Caller {
	return httpclient.NewCaller(b.client, httpclient.CallerOptions{
		Provider: pc.DisplayName(),
		Timeout:  pc.Timeout,
		RPS:      pc.RPS,
		Burst:    pc.Burst,
	})
}

func (b *builder) text(pc config.ProviderConfig) (outbound.TextProviderPort, error) {
	if pc.Disabled {
		return nil, nil
	}
	opts := textprovider.Options{
		Name:    pc.DisplayName(),
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		APIKey:  pc.APIKey,
		Caller:  b.caller(pc),
	}

	var p outbound.TextProviderPort
	switch pc.Type {
	case "openai":
		p = textprovider.NewOpenAI(opts)
	case "anthropic":
		p = textprovider.NewAnthropic(opts)
	case "gemini":
		p = textprovider.NewGemini(opts)
	default:
		return nil, fmt.Errorf("unknown text provider type %q", pc.Type)
	}

	if !b.admit(model.ModeText, p, pc) {
		return nil, nil
	}
	return prompt.Wrap(p, b.logger, b.transformers(pc)...), nil
}

func (b *builder) image(pc config.ProviderConfig) (outbound.ImageProviderPort, error) {
	if pc.Disabled {
		return nil, nil
	}
	opts := imageprovider.Options{
		Name:    pc.DisplayName(),
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
		APIKey:  pc.APIKey,
		Caller:  b.caller(pc),
	}

	var p outbound.ImageProviderPort
	switch pc.Type {
	case "openai":
		p = imageprovider.NewOpenAI(opts)
	case "gemini":
		p = imageprovider.NewGemini(opts, "")
	case "pollinations":
		p = imageprovider.NewPollinations(opts)
	default:
		return nil, fmt.Errorf("unknown image provider type %q", pc.Type)
	}

	if !b.admit(model.ModeImage, p, pc) {
		return nil, nil
	}
	return prompt.Wrap(p, b.logger, b.transformers(pc)...), nil
}

func (b *builder) admit(kind model.Mode, p interface{ RequiresCredential() bool }, pc config.ProviderConfig) bool {
	if p.RequiresCredential() && pc.APIKey == "" {
		b.logger.Warn("Provider credential missing, not registered",
			zap.String("kind", kind.String()),
			zap.String("provider", pc.DisplayName()),
			zap.String("env", pc.APIKeyEnv),
		)
		b.reg.skipped = append(b.reg.skipped, kind.String()+"/"+pc.DisplayName())
		return false
	}
	return true
}

// transformers builds the prompt pipeline: translation first, then suffix.
// Translation uses the first registered text provider.
func (b *builder) transformers(pc config.ProviderConfig) []outbound.PromptTransformerPort {
	var out []outbound.PromptTransformerPort
	if pc.Translate {
		if len(b.reg.text) == 0 {
			b.logger.Warn("Prompt translation requested but no text provider registered",
				zap.String("provider", pc.DisplayName()),
			)
		} else {
			out = append(out, prompt.NewTranslator(b.reg.text[0]))
		}
	}
	if pc.PromptSuffix != "" {
		out = append(out, prompt.Suffix(pc.PromptSuffix))
	}
	return out
}

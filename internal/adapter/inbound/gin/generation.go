package gin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/genrelay/server/internal/domain/quota"
	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/inbound"
	apperrors "github.com/genrelay/server/internal/utils/errors"
	"github.com/genrelay/server/internal/utils/logger"
)

// maxMessageBytes bounds the generate request body.
const maxMessageBytes = 64 << 10

// GenerationService is the dispatcher behaviour the handler needs.
type GenerationService interface {
	Handle(ctx context.Context, req *model.GenerationRequest, subject model.Subject) *model.GenerationResult
	Chains() map[model.Mode][]string
}

// UsageReader reports a subject's quota state.
type UsageReader interface {
	Usage(ctx context.Context, subject model.Subject) (*model.UsageSnapshot, error)
}

// ProviderCatalog reports providers left out of the chains at startup.
type ProviderCatalog interface {
	Skipped() []string
}

// generationHandler implements inbound.GenerationHttpPort.
type generationHandler struct {
	service GenerationService
	usage   UsageReader
	catalog ProviderCatalog
}

// NewGenerationHandler creates a new generation HTTP handler. catalog may be nil.
func NewGenerationHandler(service GenerationService, usage UsageReader, catalog ProviderCatalog) inbound.GenerationHttpPort {
	return &generationHandler{service: service, usage: usage, catalog: catalog}
}

type generateRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type generateResponse struct {
	OK       bool   `json:"ok"`
	Mode     string `json:"mode,omitempty"`
	Reply    string `json:"reply,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Engine   string `json:"engine,omitempty"`
}

func (h *generationHandler) Generate(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		return
	}

	var req generateRequest
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxMessageBytes)
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.BadRequest("invalid request body"))
		return
	}

	result := h.service.Handle(c.Request.Context(), &model.GenerationRequest{
		Message: req.Message,
		Mode:    model.ParseMode(req.Mode),
	}, subject)

	if kind := result.FailureKindOf(); kind != "" {
		logger.FromContext(c.Request.Context()).Info("Generation failed",
			"kind", string(kind),
			"mode", result.Mode.String(),
			"attempts", len(result.Attempts),
		)
	}

	c.JSON(apperrors.StatusOf(result), toResponse(result))
}

func toResponse(r *model.GenerationResult) generateResponse {
	if !r.OK {
		return generateResponse{OK: false, Reply: r.Reply}
	}
	if r.Mode == model.ModeImage {
		return generateResponse{OK: true, Mode: r.Mode.String(), ImageURL: r.ImageURL, Engine: r.Engine}
	}
	return generateResponse{OK: true, Mode: r.Mode.String(), Reply: r.Reply}
}

func (h *generationHandler) Usage(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		return
	}

	snapshot, err := h.usage.Usage(c.Request.Context(), subject)
	if err != nil {
		if errors.Is(err, quota.ErrInvalidSubject) {
			abortWithError(c, apperrors.BadRequest("invalid subject"))
			return
		}
		logger.FromContext(c.Request.Context()).Error("Usage lookup failed", logger.Err(err))
		abortWithError(c, apperrors.ServiceUnavailable(""))
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

type providersResponse struct {
	Text    []string `json:"text"`
	Image   []string `json:"image"`
	Skipped []string `json:"skipped"`
}

func (h *generationHandler) Providers(c *gin.Context) {
	chains := h.service.Chains()
	var skipped []string
	if h.catalog != nil {
		skipped = h.catalog.Skipped()
	}
	c.JSON(http.StatusOK, providersResponse{
		Text:    lo.Ternary(chains[model.ModeText] == nil, []string{}, chains[model.ModeText]),
		Image:   lo.Ternary(chains[model.ModeImage] == nil, []string{}, chains[model.ModeImage]),
		Skipped: lo.Ternary(skipped == nil, []string{}, skipped),
	})
}

package inbound

import "github.com/gin-gonic/gin"

// GenerationHttpPort defines the generation HTTP handler interface.
type GenerationHttpPort interface {
	// Generate handles POST /api/generate.
	Generate(c *gin.Context)

	// Usage handles GET /api/usage.
	Usage(c *gin.Context)

	// Providers handles GET /api/providers.
	Providers(c *gin.Context)
}

// HealthHttpPort defines the liveness handler interface.
type HealthHttpPort interface {
	// Health handles GET /healthz.
	Health(c *gin.Context)
}

package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genrelay/server/internal/port/inbound"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(c *gin.Context) error

type healthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a liveness handler running the given checks.
func NewHealthHandler(checks map[string]HealthCheck) inbound.HealthHttpPort {
	return &healthHandler{checks: checks}
}

func (h *healthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(c); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := gin.H{"status": "ok"}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if len(results) > 0 {
		body["checks"] = results
	}
	c.JSON(status, body)
}

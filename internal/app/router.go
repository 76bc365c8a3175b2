package app

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/genrelay/server/internal/infra/config"
	"github.com/genrelay/server/internal/port/inbound"
	"github.com/genrelay/server/internal/utils/logger"
	"github.com/genrelay/server/internal/utils/metrics"
	"github.com/genrelay/server/internal/utils/middleware"
)

// NewRouter creates the Gin engine with middleware and routes.
func NewRouter(
	cfg *config.Config,
	log *logger.Logger,
	zapLog *zap.Logger,
	m *metrics.Metrics,
	reg *prometheus.Registry,
	generation inbound.GenerationHttpPort,
	health inbound.HealthHttpPort,
	validator middleware.TokenValidator,
	rdb *goredis.Client,
	storage *Storage,
) (*gin.Engine, error) {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID(log))
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}))

	r.GET("/healthz", health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	if storage.Files != nil && cfg.Storage.ServePath != "" {
		r.StaticFS(cfg.Storage.ServePath, storage.Files)
	}

	api := r.Group("/api")
	if cfg.RateLimit.Enabled {
		limit, err := middleware.RateLimit(cfg.RateLimit.Rate, rdb)
		if err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
		api.Use(limit)
	}
	api.GET("/providers", generation.Providers)

	sessions := middleware.NewSessionStore(sessionSecret(cfg, zapLog), middleware.SessionConfig{
		MaxAge: cfg.Auth.SessionMaxAge,
		Secure: cfg.Auth.SecureCookie,
	})
	subject := api.Group("", middleware.Subject(validator, sessions, cfg.Auth.SessionName))
	subject.POST("/generate", generation.Generate)
	subject.GET("/usage", generation.Usage)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found"}})
	})

	return r, nil
}

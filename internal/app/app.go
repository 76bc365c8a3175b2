package app

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/genrelay/server/internal/adapter/outbound/blob"
	"github.com/genrelay/server/internal/infra/config"
)

// App is the assembled server.
type App struct {
	config  *config.Config
	router  *gin.Engine
	janitor *blob.Janitor
	logger  *zap.Logger
	cancel  context.CancelFunc
}

// NewApp creates the application.
func NewApp(cfg *config.Config, router *gin.Engine, janitor *blob.Janitor, log *zap.Logger) *App {
	return &App{
		config:  cfg,
		router:  router,
		janitor: janitor,
		logger:  log,
	}
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	if a.janitor != nil {
		a.janitor.Start(ctx)
	}
	a.logger.Info("Application started",
		zap.String("quota_store", a.config.Quota.Store),
		zap.String("storage_driver", a.config.Storage.Driver),
	)
}

// Stop stops background workers. Connections are closed by the cleanup
// function returned from InitializeApp.
func (a *App) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.janitor != nil {
		a.janitor.Stop()
	}
}

// LoadConfig loads application configuration.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

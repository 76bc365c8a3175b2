package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	ginhandler "github.com/genrelay/server/internal/adapter/inbound/gin"
	"github.com/genrelay/server/internal/adapter/outbound/blob"
	"github.com/genrelay/server/internal/adapter/outbound/memory"
	"github.com/genrelay/server/internal/adapter/outbound/postgres"
	redisadapter "github.com/genrelay/server/internal/adapter/outbound/redis"
	"github.com/genrelay/server/internal/adapter/outbound/registry"
	s3adapter "github.com/genrelay/server/internal/adapter/outbound/s3"
	"github.com/genrelay/server/internal/adapter/outbound/token"
	"github.com/genrelay/server/internal/domain/generation"
	"github.com/genrelay/server/internal/domain/quota"
	"github.com/genrelay/server/internal/infra/cache"
	"github.com/genrelay/server/internal/infra/config"
	"github.com/genrelay/server/internal/infra/database"
	"github.com/genrelay/server/internal/infra/httpclient"
	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/inbound"
	"github.com/genrelay/server/internal/port/outbound"
	"github.com/genrelay/server/internal/utils/logger"
	"github.com/genrelay/server/internal/utils/metrics"
	"github.com/genrelay/server/internal/utils/middleware"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideZapLogger,
	ProvideMetricsRegistry,
	ProvideMetrics,
	ProvideHTTPClient,
	ProvideRedisClient,
	ProvideDatabase,
)

// ProvideLogger creates the slog logger used by HTTP middleware.
func ProvideLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logConfig(cfg.Log))
}

// ProvideZapLogger creates the zap logger used by domains and adapters.
func ProvideZapLogger(cfg *config.Config) (*zap.Logger, func()) {
	l := logger.NewZap(logConfig(cfg.Log))
	return l, func() { _ = l.Sync() }
}

func logConfig(c config.LogConfig) *logger.Config {
	return &logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}

// ProvideMetricsRegistry creates the Prometheus registry served on /metrics.
func ProvideMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the application metrics.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New("genrelay", reg)
}

// ProvideHTTPClient creates the shared outbound HTTP client.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ProvideRedisClient connects to Redis when the quota store needs it.
// It returns nil otherwise.
func ProvideRedisClient(cfg *config.Config) (*goredis.Client, func(), error) {
	if cfg.Quota.Store != "redis" {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(context.Background(), &cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideDatabase opens PostgreSQL when the quota store needs it.
// It returns nil otherwise.
func ProvideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	if cfg.Quota.Store != "postgres" {
		return nil, func() {}, nil
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = database.Close(db) }, nil
}

// ===== Outbound Adapter Providers =====

// OutboundSet provides outbound adapters.
var OutboundSet = wire.NewSet(
	ProvideUsageStore,
	ProvideProviderRegistry,
	ProvideStorage,
	wire.Bind(new(outbound.MetricsPort), new(*metrics.Metrics)),
)

// ProvideUsageStore selects the usage store backend.
func ProvideUsageStore(cfg *config.Config, rdb *goredis.Client, db *gorm.DB) (outbound.UsageStorePort, error) {
	switch cfg.Quota.Store {
	case "", "memory":
		return memory.NewUsageStore(cfg.Quota.RecordTTL), nil
	case "redis":
		return redisadapter.NewUsageStore(rdb, cfg.Quota.RecordTTL), nil
	case "postgres":
		return postgres.NewUsageStore(db), nil
	default:
		return nil, fmt.Errorf("unknown quota store %q", cfg.Quota.Store)
	}
}

// ProvideProviderRegistry builds the configured provider adapters.
func ProvideProviderRegistry(cfg *config.Config, client *http.Client, log *zap.Logger) (*registry.Registry, error) {
	reg, err := registry.New(cfg.Providers, client, log)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}
	return reg, nil
}

// Storage bundles the configured blob store and its optional capabilities.
type Storage struct {
	Blobs outbound.BlobStorePort
	// Retainable is nil for drivers without persistent objects.
	Retainable outbound.RetainableStorePort
	// Files is set when images are served by this process.
	Files http.FileSystem
}

// ProvideStorage selects the blob store driver.
func ProvideStorage(cfg *config.Config) (*Storage, error) {
	sc := cfg.Storage
	switch sc.Driver {
	case "", "inline":
		return &Storage{Blobs: blob.NewInline()}, nil
	case "local":
		local, err := blob.NewLocalDir(sc.LocalDir, sc.PublicBaseURL, sc.KeyPrefix)
		if err != nil {
			return nil, err
		}
		return &Storage{Blobs: local, Retainable: local, Files: local.HTTPFileSystem()}, nil
	case "s3":
		s3cfg := s3adapter.Config{
			Endpoint:        sc.S3.Endpoint,
			Region:          sc.S3.Region,
			AccessKeyID:     sc.S3.AccessKeyID,
			SecretAccessKey: sc.S3.SecretAccessKey,
			Bucket:          sc.S3.Bucket,
			KeyPrefix:       sc.KeyPrefix,
			PresignExpiry:   sc.S3.PresignExpiry,
		}
		if strings.HasPrefix(sc.PublicBaseURL, "http") {
			s3cfg.PublicBaseURL = sc.PublicBaseURL
		}
		client, err := s3adapter.NewClient(context.Background(), s3cfg)
		if err != nil {
			return nil, err
		}
		store := s3adapter.NewBlobStore(client, s3cfg)
		return &Storage{Blobs: store, Retainable: store}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}

// ===== Domain Providers =====

// DomainSet provides domain services.
var DomainSet = wire.NewSet(
	ProvideQuotaTracker,
	ProvideClassifier,
	ProvideTextChain,
	ProvideImageChain,
	ProvideDispatcher,
	ProvideJanitor,
)

// ProvideQuotaTracker creates the quota tracker.
func ProvideQuotaTracker(cfg *config.Config, store outbound.UsageStorePort, m outbound.MetricsPort, log *zap.Logger) (*quota.Tracker, error) {
	qc, err := quotaConfig(cfg.Quota)
	if err != nil {
		return nil, err
	}
	return quota.NewTracker(store, m, qc, log), nil
}

func quotaConfig(c config.QuotaConfig) (*quota.Config, error) {
	qc := quota.DefaultConfig()
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load quota timezone: %w", err)
		}
		qc.Location = loc
	}
	for name, limit := range c.Limits {
		tier := model.PlanTier(strings.ToLower(name))
		if !tier.IsValid() {
			return nil, fmt.Errorf("unknown plan tier %q in quota limits", name)
		}
		qc.Limits[tier] = limit
	}
	if c.MaxCASRetries > 0 {
		qc.MaxCASRetries = c.MaxCASRetries
	}
	return qc, nil
}

// ProvideClassifier creates the intent classifier.
func ProvideClassifier(cfg *config.Config) *generation.Classifier {
	return generation.NewClassifier(cfg.Intent.ExtraKeywords...)
}

func chainOptions(cfg *config.Config, m outbound.MetricsPort, log *zap.Logger) generation.ChainOptions {
	return generation.ChainOptions{
		Backoff: cfg.Dispatch.FallbackBackoff,
		Metrics: m,
		Logger:  log,
	}
}

func breakerConfig(c config.CircuitBreakerConfig) *generation.BreakerConfig {
	bc := generation.DefaultBreakerConfig()
	if c.FailureThreshold > 0 {
		bc.FailureThreshold = c.FailureThreshold
	}
	if c.Interval > 0 {
		bc.Interval = c.Interval
	}
	if c.Timeout > 0 {
		bc.Timeout = c.Timeout
	}
	return bc
}

// ProvideTextChain creates the text fallback chain.
func ProvideTextChain(cfg *config.Config, reg *registry.Registry, m outbound.MetricsPort, log *zap.Logger) *generation.Chain[string] {
	providers := reg.Text()
	if cfg.Dispatch.CircuitBreaker.Enabled {
		bc := breakerConfig(cfg.Dispatch.CircuitBreaker)
		providers = lo.Map(providers, func(p outbound.TextProviderPort, _ int) outbound.TextProviderPort {
			return generation.WithCircuitBreaker(p, bc, log)
		})
	}
	return generation.NewTextChain(providers, chainOptions(cfg, m, log))
}

// ProvideImageChain creates the image fallback chain.
func ProvideImageChain(cfg *config.Config, reg *registry.Registry, m outbound.MetricsPort, log *zap.Logger) *generation.Chain[*model.ImagePayload] {
	providers := reg.Image()
	if cfg.Dispatch.CircuitBreaker.Enabled {
		bc := breakerConfig(cfg.Dispatch.CircuitBreaker)
		providers = lo.Map(providers, func(p outbound.ImageProviderPort, _ int) outbound.ImageProviderPort {
			return generation.WithCircuitBreaker(p, bc, log)
		})
	}
	return generation.NewImageChain(providers, chainOptions(cfg, m, log))
}

// ProvideDispatcher creates the generation dispatcher.
func ProvideDispatcher(
	cfg *config.Config,
	classifier *generation.Classifier,
	textChain *generation.Chain[string],
	imageChain *generation.Chain[*model.ImagePayload],
	tracker *quota.Tracker,
	storage *Storage,
	log *zap.Logger,
) *generation.Dispatcher {
	msgs := cfg.Messages
	return generation.NewDispatcher(classifier, textChain, imageChain, tracker, storage.Blobs, &generation.Config{
		TextSystemPrompt:  cfg.Dispatch.TextSystemPrompt,
		ImageSize:         cfg.Dispatch.ImageSize,
		MinImagePromptLen: cfg.Dispatch.MinImagePromptLen,
		Messages: generation.Messages{
			EmptyMessage:   msgs.EmptyMessage,
			PromptTooShort: msgs.PromptTooShort,
			InvalidSubject: msgs.InvalidSubject,
			QuotaDenied:    msgs.QuotaDenied,
			TextFallback:   msgs.TextFallback,
			ImageFailed:    msgs.ImageFailed,
			NoProvider:     msgs.NoProvider,
			StorageFailed:  msgs.StorageFailed,
			Unavailable:    msgs.Unavailable,
		},
	}, log)
}

// ProvideJanitor creates the blob retention janitor, or nil when the
// storage driver keeps nothing.
func ProvideJanitor(cfg *config.Config, storage *Storage, m outbound.MetricsPort, log *zap.Logger) *blob.Janitor {
	if storage.Retainable == nil {
		return nil
	}
	r := cfg.Storage.Retention
	return blob.NewJanitor(storage.Retainable, blob.RetentionPolicy{
		MaxAge:   r.MaxAge,
		MaxCount: r.MaxCount,
		Interval: r.Interval,
	}, m, log)
}

// ===== Inbound Providers =====

// InboundSet provides HTTP handlers and middleware dependencies.
var InboundSet = wire.NewSet(
	ProvideGenerationHandler,
	ProvideHealthHandler,
	ProvideTokenValidator,
)

// ProvideGenerationHandler creates the generation HTTP handler.
func ProvideGenerationHandler(d *generation.Dispatcher, tracker *quota.Tracker, reg *registry.Registry) inbound.GenerationHttpPort {
	return ginhandler.NewGenerationHandler(d, tracker, reg)
}

// ProvideHealthHandler creates the health handler with checks for the
// backends in use.
func ProvideHealthHandler(rdb *goredis.Client, db *gorm.DB) inbound.HealthHttpPort {
	checks := map[string]ginhandler.HealthCheck{}
	if rdb != nil {
		checks["redis"] = func(c *gin.Context) error {
			return rdb.Ping(c.Request.Context()).Err()
		}
	}
	if db != nil {
		checks["database"] = func(c *gin.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(c.Request.Context())
		}
	}
	return ginhandler.NewHealthHandler(checks)
}

// ProvideTokenValidator creates the bearer token validator, or nil when no
// JWT secret is configured.
func ProvideTokenValidator(cfg *config.Config) (middleware.TokenValidator, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, nil
	}
	m, err := token.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func sessionSecret(cfg *config.Config, log *zap.Logger) []byte {
	if cfg.Auth.SessionSecret != "" {
		return []byte(cfg.Auth.SessionSecret)
	}
	log.Warn("No session secret configured, anonymous sessions will not survive a restart")
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return secret
}

// AppSet is the full provider set.
var AppSet = wire.NewSet(
	InfraSet,
	OutboundSet,
	DomainSet,
	InboundSet,
	NewRouter,
	NewApp,
)

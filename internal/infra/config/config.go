package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Intent     IntentConfig     `mapstructure:"intent"`
	Quota      QuotaConfig      `mapstructure:"quota"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Messages   MessagesConfig   `mapstructure:"messages"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	File       string `mapstructure:"file"`   // empty logs to stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// HTTPClientConfig holds outbound HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	// Timeout settings
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`

	// Keep-alive settings
	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// ProvidersConfig holds the ordered provider chains.
type ProvidersConfig struct {
	Text  []ProviderConfig `mapstructure:"text"`
	Image []ProviderConfig `mapstructure:"image"`
}

// ProviderConfig configures one provider adapter.
type ProviderConfig struct {
	Name      string        `mapstructure:"name"` // shown as engine; defaults to type
	Type      string        `mapstructure:"type"` // openai, anthropic, gemini, pollinations
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RPS       float64       `mapstructure:"rps"` // 0 disables outbound rate limiting
	Burst     int           `mapstructure:"burst"`
	Disabled  bool          `mapstructure:"disabled"`

	// Prompt post-processing
	PromptSuffix string `mapstructure:"prompt_suffix"`
	Translate    bool   `mapstructure:"translate"` // translate prompt to English first

	// APIKey is resolved from APIKeyEnv at load time.
	APIKey string `mapstructure:"-"`
}

// DisplayName returns the configured name or the adapter type.
func (p *ProviderConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Type
}

// DispatchConfig holds dispatcher configuration.
type DispatchConfig struct {
	FallbackBackoff   time.Duration        `mapstructure:"fallback_backoff"`
	MinImagePromptLen int                  `mapstructure:"min_image_prompt_len"`
	TextSystemPrompt  string               `mapstructure:"text_system_prompt"`
	ImageSize         string               `mapstructure:"image_size"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig holds per-provider circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// IntentConfig holds intent classifier configuration.
type IntentConfig struct {
	ExtraKeywords []string `mapstructure:"extra_keywords"`
}

// QuotaConfig holds quota tracker configuration.
type QuotaConfig struct {
	Store         string         `mapstructure:"store"` // memory, redis, postgres
	Timezone      string         `mapstructure:"timezone"`
	Limits        map[string]int `mapstructure:"limits"`
	MaxCASRetries int            `mapstructure:"max_cas_retries"`
	RecordTTL     time.Duration  `mapstructure:"record_ttl"`
}

// StorageConfig holds generated image storage configuration.
type StorageConfig struct {
	Driver        string          `mapstructure:"driver"` // inline, local, s3
	LocalDir      string          `mapstructure:"local_dir"`
	PublicBaseURL string          `mapstructure:"public_base_url"`
	ServePath     string          `mapstructure:"serve_path"`
	KeyPrefix     string          `mapstructure:"key_prefix"`
	S3            S3Config        `mapstructure:"s3"`
	Retention     RetentionConfig `mapstructure:"retention"`
}

// S3Config holds S3-compatible object storage configuration.
type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	Bucket          string        `mapstructure:"bucket"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"`
}

// RetentionConfig holds the generated image retention policy.
type RetentionConfig struct {
	MaxAge   time.Duration `mapstructure:"max_age"`   // 0 disables age pruning
	MaxCount int           `mapstructure:"max_count"` // 0 disables count pruning
	Interval time.Duration `mapstructure:"interval"`
}

// AuthConfig holds subject resolution configuration.
type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	SessionSecret string        `mapstructure:"session_secret"`
	SessionName   string        `mapstructure:"session_name"`
	SessionMaxAge time.Duration `mapstructure:"session_max_age"`
	SecureCookie  bool          `mapstructure:"secure_cookie"`
}

// RateLimitConfig holds inbound rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Rate    string `mapstructure:"rate"` // ulule/limiter format, e.g. "60-M"
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// MessagesConfig holds user-facing replies. Blank values use built-in defaults.
type MessagesConfig struct {
	EmptyMessage   string `mapstructure:"empty_message"`
	PromptTooShort string `mapstructure:"prompt_too_short"`
	InvalidSubject string `mapstructure:"invalid_subject"`
	QuotaDenied    string `mapstructure:"quota_denied"`
	TextFallback   string `mapstructure:"text_fallback"`
	ImageFailed    string `mapstructure:"image_failed"`
	NoProvider     string `mapstructure:"no_provider"`
	StorageFailed  string `mapstructure:"storage_failed"`
	Unavailable    string `mapstructure:"unavailable"`
}

// Load loads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/genrelay")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("GENRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	cfg.Providers.applyDefaults()
	cfg.Providers.resolveCredentials(os.Getenv)

	return &cfg, nil
}

// applyEnvOverrides reads sensitive values that never belong in a config file.
func applyEnvOverrides(cfg *Config) {
	if secret := os.Getenv("GENRELAY_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if secret := os.Getenv("GENRELAY_SESSION_SECRET"); secret != "" {
		cfg.Auth.SessionSecret = secret
	}
	if password := os.Getenv("GENRELAY_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("GENRELAY_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("GENRELAY_S3_SECRET_KEY"); key != "" {
		cfg.Storage.S3.SecretAccessKey = key
	}
	if s := os.Getenv("GENRELAY_CORS_ALLOW_ORIGINS"); s != "" {
		cfg.CORS.AllowOrigins = parseCommaSeparatedList(s)
	}
	if s := os.Getenv("GENRELAY_INTENT_EXTRA_KEYWORDS"); s != "" {
		cfg.Intent.ExtraKeywords = parseCommaSeparatedList(s)
	}
}

// DefaultProviders returns the built-in chains used when none are configured.
func DefaultProviders() ProvidersConfig {
	return ProvidersConfig{
		Text: []ProviderConfig{
			{Type: "openai", Model: "gpt-4o-mini"},
			{Type: "gemini", Model: "gemini-1.5-flash"},
			{Type: "anthropic", Model: "claude-3-5-haiku-latest"},
		},
		Image: []ProviderConfig{
			{Type: "openai", Model: "dall-e-3"},
			{Type: "gemini", Model: "gemini-2.0-flash-exp"},
			{Type: "pollinations", Model: "flux"},
		},
	}
}

func (p *ProvidersConfig) applyDefaults() {
	if len(p.Text) == 0 && len(p.Image) == 0 {
		*p = DefaultProviders()
	}
	for i := range p.Text {
		p.Text[i].fillDefaults()
	}
	for i := range p.Image {
		p.Image[i].fillDefaults()
	}
}

func (p *ProviderConfig) fillDefaults() {
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = defaultAPIKeyEnv[p.Type]
	}
	if p.BaseURL == "" {
		p.BaseURL = defaultBaseURL[p.Type]
	}
	if p.RPS > 0 && p.Burst <= 0 {
		p.Burst = 1
	}
}

// resolveCredentials freezes API keys read from the environment.
func (p *ProvidersConfig) resolveCredentials(getenv func(string) string) {
	for i := range p.Text {
		if p.Text[i].APIKeyEnv != "" {
			p.Text[i].APIKey = strings.TrimSpace(getenv(p.Text[i].APIKeyEnv))
		}
	}
	for i := range p.Image {
		if p.Image[i].APIKeyEnv != "" {
			p.Image[i].APIKey = strings.TrimSpace(getenv(p.Image[i].APIKeyEnv))
		}
	}
}

var defaultAPIKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

var defaultBaseURL = map[string]string{
	"openai":       "https://api.openai.com/v1",
	"anthropic":    "https://api.anthropic.com/v1",
	"gemini":       "https://generativelanguage.googleapis.com/v1beta",
	"pollinations": "https://image.pollinations.ai",
}

func parseCommaSeparatedList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 150*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 14)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 20)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "genrelay")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	// Dispatch defaults
	v.SetDefault("dispatch.fallback_backoff", 0)
	v.SetDefault("dispatch.min_image_prompt_len", 2)
	v.SetDefault("dispatch.image_size", "1024x1024")
	v.SetDefault("dispatch.circuit_breaker.enabled", false)
	v.SetDefault("dispatch.circuit_breaker.failure_threshold", 5)
	v.SetDefault("dispatch.circuit_breaker.interval", 60*time.Second)
	v.SetDefault("dispatch.circuit_breaker.timeout", 30*time.Second)

	// Quota defaults
	v.SetDefault("quota.store", "memory")
	v.SetDefault("quota.timezone", "UTC")
	v.SetDefault("quota.limits", map[string]int{
		"free":   10,
		"silver": 30,
		"gold":   100,
		"admin":  -1,
	})
	v.SetDefault("quota.max_cas_retries", 16)
	v.SetDefault("quota.record_ttl", 48*time.Hour)

	// Storage defaults
	v.SetDefault("storage.driver", "inline")
	v.SetDefault("storage.local_dir", "./data/images")
	v.SetDefault("storage.serve_path", "/images")
	v.SetDefault("storage.public_base_url", "/images/")
	v.SetDefault("storage.key_prefix", "generated/")
	v.SetDefault("storage.s3.region", "auto")
	v.SetDefault("storage.s3.presign_expiry", 24*time.Hour)
	v.SetDefault("storage.retention.max_age", 7*24*time.Hour)
	v.SetDefault("storage.retention.max_count", 1000)
	v.SetDefault("storage.retention.interval", time.Hour)

	// Auth defaults
	v.SetDefault("auth.session_name", "genrelay_session")
	v.SetDefault("auth.session_max_age", 30*24*time.Hour)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rate", "60-M")

	// CORS defaults
	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("cors.allow_credentials", false)
}

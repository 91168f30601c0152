// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage and cache endpoints, webhook verification, XP pacing,
// partner API access and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DatabaseConfig selects the Data Store backend.
type DatabaseConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path
	URL    string // Postgres DSN
}

// RedisConfig locates the shared cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// WebhookConfig governs inbound partner webhooks.
type WebhookConfig struct {
	Secret     string        // shared HMAC secret
	Tolerance  time.Duration // max |now - X-Timestamp|
	DedupTTL   time.Duration // event de-duplication window
	RatePerMin int           // per-IP requests per minute
	Budget     time.Duration // processing budget before acknowledging
}

// XPConfig governs award pacing.
type XPConfig struct {
	Cooldown         time.Duration // per-member gap between awards
	ActivityDedupTTL time.Duration // Idempotency-Key window on the internal award API
}

// PartnerConfig describes the upstream partner API used for rewards.
type PartnerConfig struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration // per-attempt timeout
	RPS         float64       // client-side throttle
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Jitter      float64
	TaskTimeout time.Duration // whole reward dispatch, retries included
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Storage
	DB    DatabaseConfig
	Redis RedisConfig

	// Domain
	Webhook        WebhookConfig
	XP             XPConfig
	Partner        PartnerConfig
	APIRatePerMin  int
	LeaderboardTTL time.Duration

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 5*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 10*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DB: DatabaseConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "xp.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},

		Webhook: WebhookConfig{
			Secret:     getenv("WEBHOOK_SECRET", ""),
			Tolerance:  getdur("WEBHOOK_TOLERANCE", 300*time.Second),
			DedupTTL:   getdur("WEBHOOK_DEDUP_TTL", 24*time.Hour),
			RatePerMin: getint("WEBHOOK_RATE_PER_MIN", 10),
			Budget:     getdur("WEBHOOK_BUDGET", 2*time.Second),
		},
		XP: XPConfig{
			Cooldown:         getdur("XP_COOLDOWN", 60*time.Second),
			ActivityDedupTTL: getdur("ACTIVITY_DEDUP_TTL", 5*time.Minute),
		},
		Partner: PartnerConfig{
			BaseURL:     strings.TrimRight(getenv("PARTNER_API_URL", "https://api.partner.example"), "/"),
			APIKey:      getenv("PARTNER_API_KEY", ""),
			Timeout:     getdur("PARTNER_TIMEOUT", 5*time.Second),
			RPS:         getfloat("PARTNER_RPS", 10),
			MaxRetries:  getint("PARTNER_MAX_RETRIES", 3),
			BackoffBase: getdur("PARTNER_BACKOFF_BASE", time.Second),
			BackoffMax:  getdur("PARTNER_BACKOFF_MAX", 10*time.Second),
			Jitter:      getfloat("PARTNER_BACKOFF_JITTER", 0.3),
			TaskTimeout: getdur("REWARD_TASK_TIMEOUT", 60*time.Second),
		},
		APIRatePerMin:  getint("API_RATE_PER_MIN", 120),
		LeaderboardTTL: getdur("LEADERBOARD_TTL", 30*time.Second),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-xp-engine"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" || cfg.DB.Driver == "pg" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return cfg, errors.New("REDIS_ADDR must not be empty")
	}
	if cfg.Webhook.Tolerance <= 0 || cfg.Webhook.DedupTTL <= 0 || cfg.Webhook.Budget <= 0 {
		return cfg, errors.New("webhook durations must be positive")
	}
	if cfg.Webhook.Budget >= 3*time.Second {
		return cfg, errors.New("WEBHOOK_BUDGET must stay below 3s")
	}
	if cfg.Webhook.RatePerMin < 1 || cfg.APIRatePerMin < 1 {
		return cfg, errors.New("rate limits must be >= 1 per minute")
	}
	if cfg.XP.Cooldown < 0 || cfg.XP.ActivityDedupTTL <= 0 {
		return cfg, errors.New("XP_COOLDOWN must be >= 0 and ACTIVITY_DEDUP_TTL > 0")
	}
	if cfg.Partner.Timeout <= 0 || cfg.Partner.TaskTimeout <= 0 {
		return cfg, errors.New("partner timeouts must be positive")
	}
	if cfg.Partner.MaxRetries < 0 || cfg.Partner.BackoffBase <= 0 || cfg.Partner.BackoffMax < cfg.Partner.BackoffBase {
		return cfg, errors.New("partner retry policy is invalid")
	}
	if cfg.Partner.Jitter < 0 || cfg.Partner.Jitter >= 1 {
		return cfg, errors.New("PARTNER_BACKOFF_JITTER must be in [0,1)")
	}
	if cfg.Partner.RPS <= 0 {
		return cfg, errors.New("PARTNER_RPS must be > 0")
	}
	if cfg.LeaderboardTTL <= 0 {
		return cfg, errors.New("LEADERBOARD_TTL must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

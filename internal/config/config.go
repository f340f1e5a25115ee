// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database selection, payment gateway
// credentials, file storage, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/engibriefs-store/internal/sysutil"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "engibriefs-store")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and locates the relational store.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite path
	URL    string // Postgres DSN
}

// PaymentConfig holds payment gateway credentials and order policy.
type PaymentConfig struct {
	KeyID         string        // RAZORPAY_KEY_ID (public, sent to checkout widget)
	KeySecret     string        // RAZORPAY_KEY_SECRET (signs checkout callbacks)
	WebhookSecret string        // RAZORPAY_WEBHOOK_SECRET (signs webhook bodies)
	MinAmount     int64         // minimum order amount in minor units
	Currency      string        // fixed order currency
	Timeout       time.Duration // outbound gateway call budget
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	JWTSecret string // HS256 secret shared with the auth provider
	Issuer    string // optional expected "iss"
}

// StorageConfig configures the file store and signed download URLs.
type StorageConfig struct {
	Dir            string        // root directory for stored objects
	SigningKey     string        // HMAC key for signed URL tokens
	PublicBaseURL  string        // absolute prefix for signed URLs, e.g. https://api.example.com
	URLTTL         time.Duration // validity window of a signed URL
	MaxUploadBytes int64         // cap on multipart uploads
}

// SweepConfig configures the stale pending-order sweep.
type SweepConfig struct {
	Enabled    bool
	Schedule   string        // cron spec or descriptor, e.g. "@hourly"
	PendingTTL time.Duration // pending rows older than this are removed
}

// EventsConfig configures purchase event publishing.
type EventsConfig struct {
	KafkaBrokers      []string
	PurchasePaidTopic string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DB      DBConfig
	Payment PaymentConfig
	Auth    AuthConfig
	Storage StorageConfig
	Sweep   SweepConfig
	Events  EventsConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "store.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		Payment: PaymentConfig{
			KeyID:         getenv("RAZORPAY_KEY_ID", ""),
			KeySecret:     getenv("RAZORPAY_KEY_SECRET", ""),
			WebhookSecret: getenv("RAZORPAY_WEBHOOK_SECRET", ""),
			MinAmount:     int64(getint("ORDER_MIN_AMOUNT", 100)),
			Currency:      strings.ToUpper(getenv("ORDER_CURRENCY", "INR")),
			Timeout:       getdur("GATEWAY_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("AUTH_JWT_SECRET", ""),
			Issuer:    getenv("AUTH_JWT_ISSUER", ""),
		},
		Storage: StorageConfig{
			Dir:            getenv("STORAGE_DIR", "data/objects"),
			SigningKey:     getenv("STORAGE_SIGNING_KEY", ""),
			PublicBaseURL:  strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),
			URLTTL:         getdur("DOWNLOAD_URL_TTL", 60*time.Second),
			MaxUploadBytes: int64(getint("MAX_UPLOAD_BYTES", 50<<20)),
		},
		Sweep: SweepConfig{
			Enabled:    getbool("SWEEP_ENABLED", true),
			Schedule:   getenv("SWEEP_SCHEDULE", "@hourly"),
			PendingTTL: getdur("PENDING_TTL", 72*time.Hour),
		},
		Events: EventsConfig{
			KafkaBrokers:      splitCSV(getenv("KAFKA_BROKERS", "")),
			PurchasePaidTopic: getenv("KAFKA_TOPIC_PURCHASE_PAID", "purchase.paid"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: sysutil.FirstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), os.Getenv("SERVICE_NAME"), "engibriefs-store"),
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
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.Payment.MinAmount < 1 {
		return cfg, errors.New("ORDER_MIN_AMOUNT must be >= 1")
	}
	if len(cfg.Payment.Currency) != 3 {
		return cfg, errors.New("ORDER_CURRENCY must be a 3-letter ISO code")
	}
	if cfg.Payment.Timeout <= 0 {
		return cfg, errors.New("GATEWAY_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Storage.Dir) == "" {
		return cfg, errors.New("STORAGE_DIR must not be empty")
	}
	if cfg.Storage.URLTTL <= 0 {
		return cfg, errors.New("DOWNLOAD_URL_TTL must be > 0")
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		return cfg, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.Sweep.Enabled && strings.TrimSpace(cfg.Sweep.Schedule) == "" {
		return cfg, errors.New("SWEEP_SCHEDULE must not be empty when the sweep is enabled")
	}
	if cfg.Sweep.PendingTTL <= 0 {
		return cfg, errors.New("PENDING_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Validate reports settings that are optional at load time but required to
// actually take money: gateway credentials, the auth secret and a URL
// signing key. The server refuses to start without them.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Payment.KeyID) == "" || strings.TrimSpace(c.Payment.KeySecret) == "" {
		return errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET must be set")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("AUTH_JWT_SECRET must be set")
	}
	if strings.TrimSpace(c.Storage.SigningKey) == "" {
		return errors.New("STORAGE_SIGNING_KEY must be set")
	}
	if c.Storage.SigningKey == c.Payment.KeySecret || c.Storage.SigningKey == c.Payment.WebhookSecret {
		return errors.New("STORAGE_SIGNING_KEY must differ from the gateway secrets")
	}
	return nil
}

// ---- helpers (no external deps) ----

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

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ServerConfig holds HTTP listener and tool page settings.
type ServerConfig struct {
	Port            string
	MaxUploadMB     int
	TemplateDir     string
	WebUsername     string
	WebPassword     string
	SessionTTL      time.Duration
	SecureCookie    bool
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// MaxUploadBytes is the request body cap derived from MaxUploadMB.
func (s ServerConfig) MaxUploadBytes() int64 { return int64(s.MaxUploadMB) << 20 }

// LimitsConfig bounds the work a single instance accepts.
type LimitsConfig struct {
	MaxConcurrentOps   int
	MaxRenderPages     int
	DefaultDPI         int
	RateLimitPerMinute int
	RedisURL           string
	// TrustProxy keys rate limits on X-Forwarded-For instead of the peer address.
	TrustProxy bool
}

// ResultsConfig selects where deliver=link outputs are kept.
type ResultsConfig struct {
	Backend       string // "local"|"redis"|"s3"|"none"
	TTL           time.Duration
	Dir           string
	RedisURL      string
	S3Bucket      string
	S3Prefix      string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	EncryptionKey string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Server  ServerConfig
	Limits  LimitsConfig
	Results ResultsConfig
}

// Load reads an optional .env file and then the environment.
func Load(files ...string) Config {
	// a missing .env is normal outside development
	_ = godotenv.Load(files...)
	return FromEnv()
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pdftools.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pdftools",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		MaxUploadMB:     parseInt(getEnv("MAX_UPLOAD_MB", "100"), 100),
		TemplateDir:     getEnv("TEMPLATE_DIR", "web/templates"),
		WebUsername:     getEnv("WEB_USERNAME", ""),
		WebPassword:     getEnv("WEB_PASSWORD", ""),
		SessionTTL:      parseDuration(getEnv("WEB_SESSION_TTL", "12h"), 12*time.Hour),
		SecureCookie:    parseBool(getEnv("WEB_SECURE_COOKIE", "0")),
		ReadTimeout:     parseDuration(getEnv("HTTP_READ_TIMEOUT", "60s"), 60*time.Second),
		WriteTimeout:    parseDuration(getEnv("HTTP_WRITE_TIMEOUT", "5m"), 5*time.Minute),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 100
	}

	cfg.Limits = LimitsConfig{
		MaxConcurrentOps:   parseInt(getEnv("MAX_CONCURRENT_OPS", "4"), 4),
		MaxRenderPages:     parseInt(getEnv("MAX_RENDER_PAGES", "200"), 200),
		DefaultDPI:         parseInt(getEnv("DEFAULT_DPI", "150"), 150),
		RateLimitPerMinute: parseInt(getEnv("RATE_LIMIT_PER_MINUTE", "0"), 0),
		RedisURL:           getEnv("REDIS_URL", ""),
		TrustProxy:         parseBool(getEnv("TRUST_PROXY", "0")),
	}

	cfg.Results = ResultsConfig{
		Backend:       strings.ToLower(getEnv("RESULTS_BACKEND", "local")),
		TTL:           parseDuration(getEnv("RESULTS_TTL", "1h"), time.Hour),
		Dir:           getEnv("RESULTS_DIR", "results"),
		RedisURL:      getEnv("RESULTS_REDIS_URL", cfg.Limits.RedisURL),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Prefix:      getEnv("S3_PREFIX", "results/"),
		S3Region:      getEnv("AWS_REGION", "us-east-1"),
		S3AccessKey:   getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		EncryptionKey: getEnv("RESULTS_ENCRYPTION_KEY", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}

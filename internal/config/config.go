package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Snapshot database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Config struct {
	// Catalog source. Exactly one of CatalogFile and CatalogURL is set for
	// serve and check.
	CatalogFile    string
	CatalogURL     string // s3://bucket/key
	S3             ObjectStore
	ReloadInterval time.Duration // 0 disables periodic reload
	PolicyFile     string        // optional path to policy YAML

	// Snapshot source database.
	DatabaseURL string
	Schemas     []string // empty means all non-system schemas
	SampleSize  int

	// Connection pool.
	PoolMaxConns        int32         // default: 5
	PoolMinConns        int32         // default: 1
	PoolMaxConnLifetime time.Duration // default: 30m

	// SQL generation. Disabled when LLM.Provider is empty.
	LLM LLM

	// Logging.
	LogLevel slog.Level

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Observability.
	OTelEnabled bool // enable OpenTelemetry tracing and metrics

	// CLI-only fields (not settable via env vars).
	DryRun   bool
	AuditLog string // path to NDJSON audit log file
	Output   string // snapshot output path
}

// ObjectStore holds S3-compatible credentials for CatalogURL.
type ObjectStore struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// LLM configures the upstream SQL generator.
type LLM struct {
	Provider string // "openai" or "anthropic"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// Enabled reports whether SQL generation is configured.
func (l LLM) Enabled() bool { return l.Provider != "" }

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	CatalogFile     *string
	CatalogURL      *string
	PolicyFile      *string
	DatabaseURL     *string
	SampleSize      *int
	LogLevel        *string
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	ReloadInterval  *time.Duration
	OTelEnabled     bool
	DryRun          bool
	AuditLog        string
	Output          string

	// Connection pool overrides.
	PoolMaxConns        *int32
	PoolMinConns        *int32
	PoolMaxConnLifetime *time.Duration
}

// LoadDotEnv loads variables from the given .env files (".env" when none
// are named). Missing files are ignored and variables already set in the
// environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the serve configuration from environment variables, then
// applies CLI overrides, then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg, err := build(overrides)
	if err != nil {
		return nil, err
	}
	if err := validateServe(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSnapshot builds the configuration for capturing a catalog from a
// live database.
func LoadSnapshot(overrides Overrides) (*Config, error) {
	cfg, err := build(overrides)
	if err != nil {
		return nil, err
	}
	if err := validateSnapshot(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SampleSize:          20,
		S3:                  ObjectStore{Region: "us-east-1", UseSSL: true},
		LLM:                 LLM{Timeout: 30 * time.Second},
		Transport:           "stdio",
		HTTPAddr:            ":8080",
		PoolMaxConns:        5,
		PoolMinConns:        1,
		PoolMaxConnLifetime: 30 * time.Minute,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	cfg.CatalogFile = os.Getenv("CATALOG_FILE")
	cfg.CatalogURL = os.Getenv("CATALOG_URL")
	cfg.PolicyFile = os.Getenv("POLICY_FILE")

	if v := os.Getenv("CATALOG_RELOAD_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid CATALOG_RELOAD_INTERVAL value %q: must be a non-negative duration", v)
		}
		cfg.ReloadInterval = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("SCHEMAS"); v != "" {
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				cfg.Schemas = append(cfg.Schemas, s)
			}
		}
	}

	if v := os.Getenv("SAMPLE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid SAMPLE_SIZE value %q: must be a positive integer", v)
		}
		cfg.SampleSize = n
	}

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	if err := loadObjectStoreEnvVars(cfg); err != nil {
		return err
	}
	if err := loadLLMEnvVars(cfg); err != nil {
		return err
	}
	return loadPoolEnvVars(cfg)
}

func loadObjectStoreEnvVars(cfg *Config) error {
	cfg.S3.Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	if v := os.Getenv("S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid S3_USE_SSL value %q: %w", v, err)
		}
		cfg.S3.UseSSL = b
	}
	return nil
}

func loadLLMEnvVars(cfg *Config) error {
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	cfg.LLM.APIKey = os.Getenv("LLM_API_KEY")
	cfg.LLM.Model = os.Getenv("LLM_MODEL")
	cfg.LLM.BaseURL = os.Getenv("LLM_BASE_URL")
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid LLM_TIMEOUT value %q: must be a positive duration", v)
		}
		cfg.LLM.Timeout = d
	}
	return nil
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = int32(n)
	}
	if v := os.Getenv("POOL_MIN_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MIN_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMinConns = int32(n)
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.CatalogFile != nil {
		cfg.CatalogFile = *o.CatalogFile
	}
	if o.CatalogURL != nil {
		cfg.CatalogURL = *o.CatalogURL
	}
	if o.PolicyFile != nil {
		cfg.PolicyFile = *o.PolicyFile
	}
	if o.DatabaseURL != nil {
		cfg.DatabaseURL = *o.DatabaseURL
	}
	if o.SampleSize != nil {
		if *o.SampleSize <= 0 {
			return fmt.Errorf("invalid --sample-size value: must be a positive integer")
		}
		cfg.SampleSize = *o.SampleSize
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.ReloadInterval != nil {
		if *o.ReloadInterval < 0 {
			return fmt.Errorf("invalid --reload-interval value: must not be negative")
		}
		cfg.ReloadInterval = *o.ReloadInterval
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}

	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}

	cfg.DryRun = o.DryRun
	cfg.AuditLog = o.AuditLog
	cfg.Output = o.Output
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled

	return nil
}

// applyPoolOverrides applies connection pool CLI flag overrides.
func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMinConns != nil {
		if *o.PoolMinConns < 0 {
			return fmt.Errorf("invalid --pool-min-conns value: must be a non-negative integer")
		}
		cfg.PoolMinConns = *o.PoolMinConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	return nil
}

// validateServe checks cross-field constraints for serving a catalog.
func validateServe(cfg *Config) error {
	switch {
	case cfg.CatalogFile == "" && cfg.CatalogURL == "":
		return fmt.Errorf("a catalog is required: set CATALOG_FILE or CATALOG_URL (or --catalog)")
	case cfg.CatalogFile != "" && cfg.CatalogURL != "":
		return fmt.Errorf("CATALOG_FILE and CATALOG_URL are mutually exclusive")
	}

	if cfg.CatalogURL != "" {
		if !strings.HasPrefix(cfg.CatalogURL, "s3://") {
			return fmt.Errorf("invalid CATALOG_URL value %q: must start with s3://", cfg.CatalogURL)
		}
		if cfg.S3.Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required when CATALOG_URL is set")
		}
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	return validateLLM(cfg.LLM)
}

func validateLLM(l LLM) error {
	if !l.Enabled() {
		return nil
	}
	switch l.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid LLM_PROVIDER value %q: must be \"openai\" or \"anthropic\"", l.Provider)
	}
	if l.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER is set")
	}
	if l.Model == "" {
		return fmt.Errorf("LLM_MODEL is required when LLM_PROVIDER is set")
	}
	return nil
}

// validateSnapshot checks constraints for capturing a catalog.
func validateSnapshot(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required (set via env var or --database-url flag)")
	}
	if _, err := cfg.DatabaseDriver(); err != nil {
		return err
	}
	if cfg.PoolMinConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MIN_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMinConns, cfg.PoolMaxConns)
	}
	return nil
}

// DatabaseDriver infers the snapshot driver from DatabaseURL.
func (c *Config) DatabaseDriver() (string, error) {
	u := c.DatabaseURL
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return DriverPostgres, nil
	case strings.HasPrefix(u, "mysql://"), strings.Contains(u, "@tcp("):
		return DriverMySQL, nil
	}
	return "", fmt.Errorf("unsupported DATABASE_URL: expected postgres://, postgresql:// or mysql://")
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}

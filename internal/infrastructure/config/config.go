// Package config loads service settings from TOML files and COLIVING_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Billing   BillingConfig
	Stripe    StripeConfig
	Printing  PrintingConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN returns a postgres URL with user and password escaped
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig is optional. Without Redis, bill locks are process-local and
// events are not forwarded to the notifier.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type HTTPConfig struct {
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes   int           `mapstructure:"max_header_bytes"`
	MaxBodySize      int64         `mapstructure:"max_body_size"`
	CORSAllowOrigins []string      `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string      `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string      `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string      `mapstructure:"trusted_proxies"`
	// per client IP across the API
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
	// card charge attempts per client IP and bill within RateLimitWindow
	ChargeRateLimit int `mapstructure:"charge_rate_limit"`
}

type BillingConfig struct {
	// LockPaidBills freezes a bill once it is fully paid
	LockPaidBills bool `mapstructure:"lock_paid_bills"`
	// LockTTL bounds how long one request may hold a bill's advisory lock
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	NotificationChannel string        `mapstructure:"notification_channel"`
	// AutoBill runs subscription billing daily on AutoBillSchedule ("minute hour * * *")
	AutoBill         bool   `mapstructure:"auto_bill"`
	AutoBillSchedule string `mapstructure:"auto_bill_schedule"`
}

type StripeConfig struct {
	SecretKey         string `mapstructure:"secret_key"`
	Currency          string
	MaxNetworkRetries int64 `mapstructure:"max_network_retries"`
}

// Enabled reports whether card charges are possible
func (s StripeConfig) Enabled() bool {
	return s.SecretKey != ""
}

type PrintingConfig struct {
	Enabled bool
	// ChromeURL is the DevTools websocket of a shared Chrome; empty launches one
	ChromeURL string `mapstructure:"chrome_url"`
	NoSandbox bool   `mapstructure:"no_sandbox"`
	Timeout   time.Duration
}

// StorageConfig is the S3-compatible bucket invoices are archived to
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string        `mapstructure:"access_key"`
	SecretKey         string        `mapstructure:"secret_key"`
	UseSSL            bool          `mapstructure:"use_ssl"`
	UsePathStyle      bool          `mapstructure:"use_path_style"` // MinIO
	PresignExpiration time.Duration `mapstructure:"presign_expiration"`
}

type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  `mapstructure:"collector_endpoint"` // OTLP gRPC
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// defaults registers every key, which is also what lets AutomaticEnv see the
// keys that have no useful default
var defaults = map[string]any{
	"app.name": "coliving-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "coliving",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.enabled":  false,
	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       30 * time.Second,
	"http.idle_timeout":        60 * time.Second,
	"http.shutdown_timeout":    10 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       1 << 20,
	"http.cors_allow_origins":  []string{},
	"http.cors_allow_methods":  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	"http.cors_allow_headers":  []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
	"http.trusted_proxies":     []string{},
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 100,
	"http.rate_limit_window":   time.Minute,
	"http.charge_rate_limit":   5,

	"billing.lock_paid_bills":      false,
	"billing.lock_ttl":             30 * time.Second,
	"billing.notification_channel": "coliving:billing",
	"billing.auto_bill":            false,
	"billing.auto_bill_schedule":   "0 2 * * *",

	"stripe.secret_key":          "",
	"stripe.currency":            "usd",
	"stripe.max_network_retries": 2,

	"printing.enabled":    false,
	"printing.chrome_url": "",
	"printing.no_sandbox": false,
	"printing.timeout":    30 * time.Second,

	"storage.enabled":            false,
	"storage.endpoint":           "",
	"storage.region":             "us-east-1",
	"storage.bucket":             "coliving-invoices",
	"storage.access_key":         "",
	"storage.secret_key":         "",
	"storage.use_ssl":            false,
	"storage.use_path_style":     false,
	"storage.presign_expiration": 15 * time.Minute,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "coliving-backend",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,
}

// Load reads configuration. Later sources win:
//
//	built-in defaults < config.toml < config.<COLIVING_APP_ENV>.toml < COLIVING_* env
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/app")

	v.SetConfigName("config")
	if err := readOptional(v.ReadInConfig); err != nil {
		return nil, err
	}
	if env := os.Getenv("COLIVING_APP_ENV"); env != "" {
		v.SetConfigName("config." + env)
		if err := readOptional(v.MergeInConfig); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix("COLIVING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// readOptional tolerates a missing file but not a broken one
func readOptional(read func() error) error {
	err := read()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("read config file: %w", err)
}

func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			db.MaxIdleConns, db.MaxOpenConns)
	case c.HTTP.RateLimitRequests < 0 || c.HTTP.ChargeRateLimit < 0:
		return errors.New("http rate limits cannot be negative")
	case c.Billing.LockTTL < 0:
		return errors.New("billing.lock_ttl cannot be negative")
	case c.Stripe.MaxNetworkRetries < 0:
		return errors.New("stripe.max_network_retries cannot be negative")
	case c.Printing.Timeout < 0:
		return errors.New("printing.timeout cannot be negative")
	case c.Storage.Enabled && (c.Storage.AccessKey == "" || c.Storage.SecretKey == ""):
		return errors.New("storage.access_key and storage.secret_key are required when storage is enabled")
	case c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1:
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateProduction() error {
	switch {
	case c.Database.Password == "":
		return errors.New("database.password is required in production")
	case c.Database.SSLMode == "disable":
		return errors.New("database.sslmode cannot be 'disable' in production")
	case strings.HasPrefix(c.Stripe.SecretKey, "sk_test_"):
		return errors.New("stripe.secret_key must not be a test key in production")
	case slices.Contains(c.HTTP.CORSAllowOrigins, "*"):
		return errors.New("cors_allow_origins cannot be '*' in production (use specific origins)")
	case c.Telemetry.DBLogFullSQL:
		return errors.New("telemetry.db_log_full_sql must be false in production")
	}
	return nil
}

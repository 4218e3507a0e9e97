package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ATTSYNC_ERP_API_SECRET
// for erp.api_secret.
const EnvPrefix = "ATTSYNC"

// Config is the full service configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Source    SourceConfig    `mapstructure:"source"`
	ERP       ERPConfig       `mapstructure:"erp"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr or a file path
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
	// Timezone is the IANA zone of the biometric devices. Punch times are
	// read in it and attendance dates are anchored to it.
	Timezone string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int           `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int           `mapstructure:"conn_max_idle_time"` // minutes
	SlowQueryThresh time.Duration `mapstructure:"slow_query_threshold"`
	// AutoMigrate applies the embedded migrations when the server starts
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig configures operator tokens
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	Issuer            string        `mapstructure:"issuer"`
	RevocationBackend string        `mapstructure:"revocation_backend"` // memory, redis
}

type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodySize    int64         `mapstructure:"max_body_size"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
	// SyncRateLimit caps manual sync triggers per operator per SyncRateWindow
	SyncRateLimit  int           `mapstructure:"sync_rate_limit"`
	SyncRateWindow time.Duration `mapstructure:"sync_rate_window"`
}

// SourceConfig points at the biometric attendance system
type SourceConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// A page holding fewer records than this is the last one
	PageSizeThreshold int           `mapstructure:"page_size_threshold"`
	MaxPages          int           `mapstructure:"max_pages"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
}

// ERPConfig points at the ERP REST API
type ERPConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	APISecret         string        `mapstructure:"api_secret"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	DefaultMaxRecords int           `mapstructure:"default_max_records"`
}

type SyncConfig struct {
	ArchiveRawPunches bool `mapstructure:"archive_raw_punches"`
}

type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
	LockBackend   string        `mapstructure:"lock_backend"` // memory, redis
}

// StorageConfig is the S3 compatible bucket receiving raw punch archives
type StorageConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	Prefix       string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"` // OTLP gRPC, e.g. localhost:4317
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	ExportInterval    time.Duration `mapstructure:"export_interval"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	LogsMinLevel      string        `mapstructure:"logs_min_level"`

	ProfilingEnabled       bool   `mapstructure:"profiling_enabled"`
	ProfilingServerAddress string `mapstructure:"profiling_server_address"`
}

// defaults registers every key with viper. A key absent here cannot be set
// from the environment, so secrets are listed with empty values. The HTTP
// write timeout is long because ERP pushes of a full batch run inside the
// request.
var defaults = map[string]any{
	"app.name":     "attendance-sync",
	"app.env":      "development",
	"app.port":     "8080",
	"app.timezone": "UTC",

	"database.host":                 "localhost",
	"database.port":                 5432,
	"database.user":                 "postgres",
	"database.password":             "",
	"database.dbname":               "attendance_sync",
	"database.sslmode":              "disable",
	"database.max_open_conns":       10,
	"database.max_idle_conns":       2,
	"database.conn_max_lifetime":    60,
	"database.conn_max_idle_time":   30,
	"database.slow_query_threshold": 200 * time.Millisecond,
	"database.auto_migrate":         false,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"auth.jwt_secret":         "",
	"auth.token_ttl":          12 * time.Hour,
	"auth.issuer":             "attendance-sync",
	"auth.revocation_backend": "memory",

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    10 * time.Minute,
	"http.idle_timeout":     time.Minute,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    1 << 20,
	"http.trusted_proxies":  []string{},
	"http.sync_rate_limit":  10,
	"http.sync_rate_window": time.Minute,

	"source.base_url":            "",
	"source.username":            "",
	"source.password":            "",
	"source.timeout":             30 * time.Second,
	"source.page_size_threshold": 10,
	"source.max_pages":           100,
	"source.token_ttl":           time.Hour,

	"erp.base_url":            "",
	"erp.api_key":             "",
	"erp.api_secret":          "",
	"erp.timeout":             30 * time.Second,
	"erp.max_retries":         5,
	"erp.retry_delay":         2 * time.Second,
	"erp.default_max_records": 100,

	"sync.archive_raw_punches": false,

	"scheduler.enabled":        false,
	"scheduler.check_interval": 30 * time.Second,
	"scheduler.lock_ttl":       30 * time.Minute,
	"scheduler.lock_backend":   "memory",

	"storage.enabled":        false,
	"storage.endpoint":       "",
	"storage.region":         "us-east-1",
	"storage.bucket":         "",
	"storage.access_key":     "",
	"storage.secret_key":     "",
	"storage.use_ssl":        false,
	"storage.use_path_style": false,
	"storage.prefix":         "raw-punches",

	"telemetry.enabled":                  false,
	"telemetry.collector_endpoint":       "localhost:4317",
	"telemetry.sampling_ratio":           1.0,
	"telemetry.service_name":             "attendance-sync",
	"telemetry.insecure":                 false,
	"telemetry.export_interval":          time.Minute,
	"telemetry.db_trace_enabled":         false,
	"telemetry.logs_enabled":             false,
	"telemetry.logs_min_level":           "info",
	"telemetry.profiling_enabled":        false,
	"telemetry.profiling_server_address": "http://localhost:4040",
}

// Load reads config.toml from ., ./config or /app, then applies ATTSYNC_
// environment overrides on top of the built-in defaults. A missing file is
// not an error.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, dir := range []string{".", "./config", "/app"} {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every problem at once
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("app.timezone %q is not a valid IANA zone: %w", c.App.Timezone, err))
	}

	check(c.ERP.MaxRetries >= 1, "erp.max_retries must be at least 1")
	check(c.ERP.RetryDelay >= 0, "erp.retry_delay cannot be negative")
	check(oneOf(c.Scheduler.LockBackend, "memory", "redis"),
		"scheduler.lock_backend must be 'memory' or 'redis', got %q", c.Scheduler.LockBackend)
	check(oneOf(c.Auth.RevocationBackend, "memory", "redis"),
		"auth.revocation_backend must be 'memory' or 'redis', got %q", c.Auth.RevocationBackend)
	check(!c.Storage.Enabled || c.Storage.Bucket != "", "storage.bucket is required when storage is enabled")
	check(c.HTTP.SyncRateLimit <= 0 || c.HTTP.SyncRateWindow > 0,
		"http.sync_rate_window must be positive when http.sync_rate_limit is set")
	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)

	if c.IsProduction() {
		switch secret := c.Auth.JWTSecret; {
		case secret == "":
			errs = append(errs, errors.New("auth.jwt_secret is required in production"))
		case len(secret) < 32:
			errs = append(errs, errors.New("auth.jwt_secret must be at least 32 characters in production"))
		}
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		check(c.ERP.APIKey != "" && c.ERP.APISecret != "",
			"erp.api_key and erp.api_secret are required in production")
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Location returns the configured time zone, or UTC when it cannot be loaded
func (a *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN renders a postgres:// URL with user info and database name escaped
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

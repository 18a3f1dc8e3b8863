// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for pivot configuration.
	DefaultConfigDir = ".pivot"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultPivotsFile is the default pivot definitions file name.
	DefaultPivotsFile = "pivots.yaml"
	// DefaultDatabaseFile is the SQLite file name inside the config directory.
	DefaultDatabaseFile = "pivot.db"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache drivers.
const (
	CacheNone      = "none"
	CacheMemory    = "memory"
	CacheRedis     = "redis"
	CacheMemcached = "memcached"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	SQLite    SQLiteConfig    `yaml:"sqlite,omitempty"`
	Postgres  PostgresConfig  `yaml:"postgres,omitempty"`
	Cache     CacheConfig     `yaml:"cache,omitempty"`
	Redis     RedisConfig     `yaml:"redis,omitempty"`
	Memcached MemcachedConfig `yaml:"memcached,omitempty"`
	Events    EventsConfig    `yaml:"events,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
	Tracing   TracingConfig   `yaml:"tracing,omitempty"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// StorageConfig selects the relational backend.
type StorageConfig struct {
	Driver string `yaml:"driver,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite relational database.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database. Relative paths are
	// resolved against the project directory; ":memory:" is kept as is.
	Path string `yaml:"path,omitempty"`
}

// PostgresConfig holds configuration for the PostgreSQL database.
type PostgresConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

// CacheConfig holds configuration for the association set cache.
type CacheConfig struct {
	Driver string        `yaml:"driver,omitempty"`
	TTL    time.Duration `yaml:"ttl,omitempty"`
	Prefix string        `yaml:"prefix,omitempty"`
}

// RedisConfig holds the Redis connection used by the cache and events.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// MemcachedConfig holds the memcached server list.
type MemcachedConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// EventsConfig controls change event fan-out.
type EventsConfig struct {
	// RedisChannel, when set, publishes change events to this Redis channel.
	RedisChannel string `yaml:"redis_channel,omitempty"`
	// Log writes every change event to the process log at Info.
	Log bool `yaml:"log,omitempty"`
}

// ServerConfig holds configuration for the REST server.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled,omitempty"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	ServiceName string `yaml:"service_name,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: DriverSQLite,
		},
		SQLite: SQLiteConfig{
			Path: filepath.Join(DefaultConfigDir, DefaultDatabaseFile),
		},
		Cache: CacheConfig{
			Driver: CacheNone,
			TTL:    10 * time.Minute,
			Prefix: "pivot:",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Memcached: MemcachedConfig{
			Addr: "localhost:11211",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "pivot",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the .pivot directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'pivot init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.resolvePaths(basePath)
	return cfg, nil
}

// Parse decodes YAML over the defaults and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("invalid storage driver: %s (valid: sqlite, postgres)", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required for the postgres driver")
	}
	switch c.Cache.Driver {
	case "", CacheNone, CacheMemory, CacheRedis, CacheMemcached:
	default:
		return fmt.Errorf("invalid cache driver: %s (valid: none, memory, redis, memcached)", c.Cache.Driver)
	}
	return nil
}

// MemoryCacheCoherent reports whether a process-local cache can stay in
// step with the store. That holds when the store is private to the process
// or when changes from other processes arrive on the events channel.
func (c *Config) MemoryCacheCoherent() bool {
	if c.Events.RedisChannel != "" {
		return true
	}
	return c.Storage.Driver == DriverSQLite && c.SQLite.Path == ":memory:"
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dsn := os.Getenv("PIVOT_POSTGRES_DSN"); dsn != "" {
		c.Postgres.DSN = dsn
		c.Storage.Driver = DriverPostgres
	}
	if pw := os.Getenv("PIVOT_REDIS_PASSWORD"); pw != "" {
		if c.Redis.Password == "" {
			c.Redis.Password = pw
		}
	}
	if level := os.Getenv("PIVOT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if db := os.Getenv("PIVOT_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.Redis.DB = n
		}
	}
}

// resolvePaths makes a relative SQLite path relative to basePath.
func (c *Config) resolvePaths(basePath string) {
	p := c.SQLite.Path
	if p == "" || p == ":memory:" || strings.HasPrefix(p, "file:") || filepath.IsAbs(p) {
		return
	}
	c.SQLite.Path = filepath.Join(basePath, p)
}

// ConfigDir returns the path to the .pivot config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// PivotsFilePath returns the path to the pivot definitions file.
func PivotsFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultPivotsFile)
}

// Exists checks if a pivot config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}

// SanitizeName converts a pivot or collection name to a lowercase identifier.
func SanitizeName(name string) string {
	// Convert to lowercase
	name = strings.ToLower(name)

	// Replace spaces and hyphens with underscores
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	// Remove any characters that aren't alphanumeric or underscore
	name = reNonAlphanumeric.ReplaceAllString(name, "")

	// Remove consecutive underscores
	name = reMultipleUnderscores.ReplaceAllString(name, "_")

	// Trim leading/trailing underscores
	return strings.Trim(name, "_")
}

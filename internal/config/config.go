package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in the backends section.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendQdrant   = "qdrant"
	BackendNeo4j    = "neo4j"
)

var allowedBackends = map[string][]string{
	"vector": {BackendMemory, BackendPostgres, BackendRedis, BackendSQLite, BackendQdrant},
	"chat":   {BackendMemory, BackendPostgres, BackendRedis, BackendSQLite},
	"graph":  {BackendMemory, BackendPostgres, BackendSQLite, BackendNeo4j},
}

// Config holds the storaged configuration. It is built once by Load and
// passed by value afterwards.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Tenant   TenantConfig   `yaml:"tenant"`
	Backends BackendsConfig `yaml:"backends"`
	Engine   EngineConfig   `yaml:"engine"`
	Limits   LimitsConfig   `yaml:"limits"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Neo4j    Neo4jConfig    `yaml:"neo4j"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds the shared bearer secret.
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// TenantConfig controls tenant resolution.
type TenantConfig struct {
	Header    string `yaml:"header"`
	Default   string `yaml:"default"`
	MaxLength int    `yaml:"max_length"`
}

// BackendsConfig selects the adapter mounted behind each port.
type BackendsConfig struct {
	Vector string `yaml:"vector"`
	Chat   string `yaml:"chat"`
	Graph  string `yaml:"graph"`
}

// Uses reports whether any port is backed by name.
func (b BackendsConfig) Uses(name string) bool {
	return b.Vector == name || b.Chat == name || b.Graph == name
}

// EngineConfig bounds engine calls.
type EngineConfig struct {
	CallTimeoutMs       int `yaml:"call_timeout_ms"`
	ReadinessTimeoutSec int `yaml:"readiness_timeout_sec"`
}

// CallTimeout returns the per-call deadline.
func (e EngineConfig) CallTimeout() time.Duration {
	return time.Duration(e.CallTimeoutMs) * time.Millisecond
}

// ReadinessTimeout returns the deadline for startup and readiness probes.
func (e EngineConfig) ReadinessTimeout() time.Duration {
	return time.Duration(e.ReadinessTimeoutSec) * time.Second
}

// LimitsConfig bounds request sizes.
type LimitsConfig struct {
	MaxUpsertItems   int   `yaml:"max_upsert_items"`
	MaxK             int   `yaml:"max_k"`
	MaxListLimit     int   `yaml:"max_list_limit"`
	DefaultListLimit int   `yaml:"default_list_limit"`
	MaxNeighbors     int   `yaml:"max_neighbors"`
	DefaultNeighbors int   `yaml:"default_neighbors"`
	MaxBodyBytes     int64 `yaml:"max_body_bytes"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	URL                 string `yaml:"url"`
	MaxConns            int32  `yaml:"max_conns"`
	MinConns            int32  `yaml:"min_conns"`
	StatementTimeoutSec int    `yaml:"statement_timeout_sec"`
}

// RedisConfig holds Redis/Valkey connection settings.
type RedisConfig struct {
	Addrs      []string `yaml:"addrs"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	DB         int      `yaml:"db"`
	KeyPrefix  string   `yaml:"key_prefix"`
	Standalone bool     `yaml:"standalone"` // disables cluster topology discovery
}

// SQLiteConfig holds the embedded database location.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// QdrantConfig holds Qdrant gRPC connection settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML after ${VAR} substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Tenant.Header == "" {
		c.Tenant.Header = "X-Tenant-Id"
	}
	if c.Tenant.Default == "" {
		c.Tenant.Default = "public"
	}
	if c.Tenant.MaxLength <= 0 {
		c.Tenant.MaxLength = 128
	}
	if c.Backends.Vector == "" {
		c.Backends.Vector = BackendMemory
	}
	if c.Backends.Chat == "" {
		c.Backends.Chat = BackendMemory
	}
	if c.Backends.Graph == "" {
		c.Backends.Graph = BackendMemory
	}
	if c.Engine.CallTimeoutMs <= 0 {
		c.Engine.CallTimeoutMs = 5000
	}
	if c.Engine.ReadinessTimeoutSec <= 0 {
		c.Engine.ReadinessTimeoutSec = 10
	}
	c.Limits.applyDefaults()
	if c.Postgres.StatementTimeoutSec <= 0 {
		c.Postgres.StatementTimeoutSec = 30
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "storaged:"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "storaged.db"
	}
	if c.Neo4j.Database == "" {
		c.Neo4j.Database = "neo4j"
	}
	if c.Qdrant.Port <= 0 {
		c.Qdrant.Port = 6334
	}
}

func (l *LimitsConfig) applyDefaults() {
	if l.MaxUpsertItems <= 0 {
		l.MaxUpsertItems = 1000
	}
	if l.MaxK <= 0 {
		l.MaxK = 1000
	}
	if l.MaxListLimit <= 0 {
		l.MaxListLimit = 500
	}
	if l.DefaultListLimit <= 0 {
		l.DefaultListLimit = 50
	}
	if l.MaxNeighbors <= 0 {
		l.MaxNeighbors = 1000
	}
	if l.DefaultNeighbors <= 0 {
		l.DefaultNeighbors = 100
	}
	if l.MaxBodyBytes <= 0 {
		l.MaxBodyBytes = 8 << 20
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if strings.TrimSpace(c.Auth.APIKey) == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if c.Limits.DefaultListLimit > c.Limits.MaxListLimit {
		return fmt.Errorf("limits.default_list_limit (%d) exceeds limits.max_list_limit (%d)",
			c.Limits.DefaultListLimit, c.Limits.MaxListLimit)
	}
	if c.Limits.DefaultNeighbors > c.Limits.MaxNeighbors {
		return fmt.Errorf("limits.default_neighbors (%d) exceeds limits.max_neighbors (%d)",
			c.Limits.DefaultNeighbors, c.Limits.MaxNeighbors)
	}
	return c.validateEngines()
}

func (c *Config) validateBackends() error {
	selected := map[string]string{
		"vector": c.Backends.Vector,
		"chat":   c.Backends.Chat,
		"graph":  c.Backends.Graph,
	}
	for _, port := range []string{"vector", "chat", "graph"} {
		if !slices.Contains(allowedBackends[port], selected[port]) {
			return fmt.Errorf("backends.%s must be one of %s, got %q",
				port, strings.Join(allowedBackends[port], ", "), selected[port])
		}
	}
	return nil
}

// validateEngines requires connection settings for every engine a port uses.
func (c *Config) validateEngines() error {
	if c.Backends.Uses(BackendPostgres) && c.Postgres.URL == "" {
		return fmt.Errorf("postgres.url is required when a port uses postgres")
	}
	if c.Backends.Uses(BackendRedis) && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required when a port uses redis")
	}
	if c.Backends.Uses(BackendNeo4j) && c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri is required when a port uses neo4j")
	}
	if c.Backends.Uses(BackendQdrant) && c.Qdrant.Host == "" {
		return fmt.Errorf("qdrant.host is required when a port uses qdrant")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to the source file, for tests run from package directories.
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b)))
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

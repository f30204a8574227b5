package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Auth: AuthConfig{APIKey: "secret"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.APIKey = "  "

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "auth.api_key") {
		t.Fatalf("expected auth.api_key error, got %v", err)
	}
}

func TestValidate_Backends(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"memory everywhere", func(*Config) {}, ""},
		{"neo4j cannot serve vectors", func(c *Config) {
			c.Backends.Vector = BackendNeo4j
			c.Neo4j.URI = "bolt://localhost:7687"
		}, "backends.vector"},
		{"qdrant cannot serve chat", func(c *Config) {
			c.Backends.Chat = BackendQdrant
			c.Qdrant.Host = "localhost"
		}, "backends.chat"},
		{"redis cannot serve graph", func(c *Config) {
			c.Backends.Graph = BackendRedis
			c.Redis.Addrs = []string{"localhost:6379"}
		}, "backends.graph"},
		{"unknown backend", func(c *Config) { c.Backends.Vector = "mysql" }, "backends.vector"},
		{"postgres needs url", func(c *Config) { c.Backends.Chat = BackendPostgres }, "postgres.url"},
		{"redis needs addrs", func(c *Config) { c.Backends.Vector = BackendRedis }, "redis.addrs"},
		{"neo4j needs uri", func(c *Config) { c.Backends.Graph = BackendNeo4j }, "neo4j.uri"},
		{"qdrant needs host", func(c *Config) {
			c.Backends.Vector = BackendQdrant
			c.Qdrant.Host = ""
		}, "qdrant.host"},
		{"unused engine needs nothing", func(c *Config) {
			c.Backends.Vector = BackendSQLite
			c.Backends.Graph = BackendSQLite
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_DefaultLimitsWithinMax(t *testing.T) {
	cfg := validConfig()
	cfg.Limits.DefaultListLimit = cfg.Limits.MaxListLimit + 1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default list limit exceeds max")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Tenant.Header != "X-Tenant-Id" || cfg.Tenant.Default != "public" || cfg.Tenant.MaxLength != 128 {
		t.Errorf("unexpected tenant defaults: %+v", cfg.Tenant)
	}
	if cfg.Backends != (BackendsConfig{Vector: "memory", Chat: "memory", Graph: "memory"}) {
		t.Errorf("unexpected backend defaults: %+v", cfg.Backends)
	}
	if cfg.Engine.CallTimeout() != 5*time.Second {
		t.Errorf("expected 5s call timeout, got %v", cfg.Engine.CallTimeout())
	}
	if cfg.Engine.ReadinessTimeout() != 10*time.Second {
		t.Errorf("expected 10s readiness timeout, got %v", cfg.Engine.ReadinessTimeout())
	}
	want := LimitsConfig{
		MaxUpsertItems:   1000,
		MaxK:             1000,
		MaxListLimit:     500,
		DefaultListLimit: 50,
		MaxNeighbors:     1000,
		DefaultNeighbors: 100,
		MaxBodyBytes:     8 << 20,
	}
	if cfg.Limits != want {
		t.Errorf("expected limits %+v, got %+v", want, cfg.Limits)
	}
	if cfg.Redis.KeyPrefix != "storaged:" {
		t.Errorf("expected KeyPrefix='storaged:', got %q", cfg.Redis.KeyPrefix)
	}
	if cfg.Qdrant.Port != 6334 {
		t.Errorf("expected qdrant port 6334, got %d", cfg.Qdrant.Port)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Tenant: TenantConfig{Header: "X-Org", Default: "root"},
		Engine: EngineConfig{CallTimeoutMs: 250},
		Redis:  RedisConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Tenant.Header != "X-Org" || cfg.Tenant.Default != "root" {
		t.Errorf("tenant overridden: %+v", cfg.Tenant)
	}
	if cfg.Engine.CallTimeout() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Engine.CallTimeout())
	}
	if cfg.Redis.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Redis.KeyPrefix)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("STORAGED_TEST_KEY", "from-env")
	t.Setenv("STORAGED_TEST_PG", "")

	cfg, err := Parse([]byte(`
http:
  port: 9000
auth:
  api_key: ${STORAGED_TEST_KEY}
backends:
  chat: postgres
postgres:
  url: ${STORAGED_TEST_PG:-postgres://localhost/storaged}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.APIKey != "from-env" {
		t.Errorf("expected api key from env, got %q", cfg.Auth.APIKey)
	}
	if cfg.Postgres.URL != "postgres://localhost/storaged" {
		t.Errorf("expected default url, got %q", cfg.Postgres.URL)
	}
	if cfg.Backends.Chat != BackendPostgres || cfg.Backends.Vector != BackendMemory {
		t.Errorf("unexpected backends %+v", cfg.Backends)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Parse([]byte("http:\n  port: 8080\n")); err == nil {
		t.Fatal("expected validation error for missing api key")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	t.Setenv("STORAGED_API_KEY", "test-key")

	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Auth.APIKey != "test-key" {
		t.Errorf("expected api key from env, got %q", cfg.Auth.APIKey)
	}
}

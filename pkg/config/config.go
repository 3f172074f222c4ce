package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the report engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Report compilation and execution limits
	Reports ReportsConfig `yaml:"reports"`

	// Tenant database connection management
	TenantDB TenantDBConfig `yaml:"tenant_db"`
}

// ReportsConfig bounds what a single report request may do.
type ReportsConfig struct {
	// StatementTimeoutSeconds is the server-side statement timeout applied
	// to every report query before it runs.
	StatementTimeoutSeconds int `yaml:"statement_timeout_seconds" env:"REPORT_STATEMENT_TIMEOUT_SECONDS" env-default:"30"`
	// MaxRowLimit is the hard ceiling on a report's LIMIT clause.
	// Caller-supplied limits above this are clamped, never rejected.
	MaxRowLimit int `yaml:"max_row_limit" env:"REPORT_MAX_ROW_LIMIT" env-default:"10000"`
	// MaxPageSize caps the pageSize pagination parameter.
	MaxPageSize int `yaml:"max_page_size" env:"REPORT_MAX_PAGE_SIZE" env-default:"100"`
}

// TenantDBConfig holds tenant connection pool management settings.
type TenantDBConfig struct {
	// DSNTemplate is the per-tenant connection string template. The literal
	// token {tenant} is replaced with the tenant's database name.
	DSNTemplate string `yaml:"dsn_template" env:"TENANT_DSN_TEMPLATE" env-default:"host=localhost port=5432 user=reports dbname={tenant} sslmode=disable"`
	// Password is appended to the DSN. Secret - env only.
	Password string `yaml:"-" env:"TENANT_DB_PASSWORD"`
	// PoolTTLMinutes is how long idle tenant pools are kept alive.
	PoolTTLMinutes int `yaml:"pool_ttl_minutes" env:"TENANT_POOL_TTL_MINUTES" env-default:"5"`
	// PoolMaxConns is the maximum number of connections per tenant pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"TENANT_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per tenant pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"TENANT_POOL_MIN_CONNS" env-default:"1"`
	// MaxPools limits the number of distinct tenant pools held open at once.
	MaxPools int `yaml:"max_pools" env:"TENANT_MAX_POOLS" env-default:"50"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv reads configuration from environment variables only.
// Used when no config.yaml is present (containers, tests).
func LoadFromEnv(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Reports.StatementTimeoutSeconds <= 0 {
		return fmt.Errorf("statement_timeout_seconds must be positive, got %d", c.Reports.StatementTimeoutSeconds)
	}
	if c.Reports.MaxRowLimit <= 0 {
		return fmt.Errorf("max_row_limit must be positive, got %d", c.Reports.MaxRowLimit)
	}
	if c.Reports.MaxPageSize <= 0 {
		return fmt.Errorf("max_page_size must be positive, got %d", c.Reports.MaxPageSize)
	}
	if c.TenantDB.PoolMinConns > c.TenantDB.PoolMaxConns {
		return fmt.Errorf("pool_min_conns (%d) exceeds pool_max_conns (%d)",
			c.TenantDB.PoolMinConns, c.TenantDB.PoolMaxConns)
	}
	return nil
}

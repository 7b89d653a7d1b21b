package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Identity modes.
const (
	AuthPassword  = "password"
	AuthTailscale = "tailscale"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Generator GeneratorConfig `yaml:"generator"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Name       string `yaml:"name"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
	Migrations string `yaml:"migrations"`
}

type AuthConfig struct {
	Mode       string        `yaml:"mode"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type GeneratorConfig struct {
	Strategy        string `yaml:"strategy"`
	SessionStrategy string `yaml:"session_strategy"`
	DashboardCap    int    `yaml:"dashboard_cap"`
	SessionCap      int    `yaml:"session_cap"`
	CatalogPath     string `yaml:"catalog_path"`
	// Seed makes plans reproducible when non-zero.
	Seed uint64 `yaml:"seed"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix QUICKFIT_ and underscore-separated paths:
//
//	QUICKFIT_SERVER_HOST, QUICKFIT_SERVER_PORT,
//	QUICKFIT_DB_DRIVER, QUICKFIT_DB_HOST, QUICKFIT_DB_PORT, QUICKFIT_DB_NAME,
//	QUICKFIT_DB_USER, QUICKFIT_DB_PASSWORD, QUICKFIT_DB_SSLMODE, QUICKFIT_DB_SQLITE_PATH,
//	QUICKFIT_DB_MIGRATIONS,
//	QUICKFIT_AUTH_MODE, QUICKFIT_AUTH_SESSION_TTL,
//	QUICKFIT_TAILSCALE_ENABLED, QUICKFIT_TAILSCALE_HOSTNAME, QUICKFIT_TAILSCALE_STATE_DIR,
//	QUICKFIT_GENERATOR_STRATEGY, QUICKFIT_GENERATOR_SESSION_STRATEGY,
//	QUICKFIT_GENERATOR_DASHBOARD_CAP, QUICKFIT_GENERATOR_SESSION_CAP,
//	QUICKFIT_GENERATOR_CATALOG_PATH, QUICKFIT_GENERATOR_SEED
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUICKFIT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("QUICKFIT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QUICKFIT_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("QUICKFIT_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("QUICKFIT_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("QUICKFIT_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("QUICKFIT_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("QUICKFIT_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("QUICKFIT_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("QUICKFIT_DB_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("QUICKFIT_DB_MIGRATIONS"); v != "" {
		cfg.Database.Migrations = v
	}
	if v := os.Getenv("QUICKFIT_AUTH_MODE"); v != "" {
		cfg.Auth.Mode = v
	}
	if v := os.Getenv("QUICKFIT_AUTH_SESSION_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil {
			cfg.Auth.SessionTTL = ttl
		}
	}
	if v := os.Getenv("QUICKFIT_TAILSCALE_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = enabled
		}
	}
	if v := os.Getenv("QUICKFIT_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("QUICKFIT_TAILSCALE_STATE_DIR"); v != "" {
		cfg.Tailscale.StateDir = v
	}
	if v := os.Getenv("QUICKFIT_GENERATOR_STRATEGY"); v != "" {
		cfg.Generator.Strategy = v
	}
	if v := os.Getenv("QUICKFIT_GENERATOR_SESSION_STRATEGY"); v != "" {
		cfg.Generator.SessionStrategy = v
	}
	if v := os.Getenv("QUICKFIT_GENERATOR_DASHBOARD_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.DashboardCap = n
		}
	}
	if v := os.Getenv("QUICKFIT_GENERATOR_SESSION_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Generator.SessionCap = n
		}
	}
	if v := os.Getenv("QUICKFIT_GENERATOR_CATALOG_PATH"); v != "" {
		cfg.Generator.CatalogPath = v
	}
	if v := os.Getenv("QUICKFIT_GENERATOR_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Generator.Seed = seed
		}
	}
}

func (c *Config) applyDefaults() {
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Migrations == "" {
		c.Database.Migrations = "migrations"
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthPassword
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "quickfit"
	}
	if c.Generator.DashboardCap == 0 {
		c.Generator.DashboardCap = 4
	}
	if c.Generator.SessionCap == 0 {
		c.Generator.SessionCap = 5
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}

	switch c.Auth.Mode {
	case AuthPassword:
	case AuthTailscale:
		if !c.Tailscale.Enabled {
			return fmt.Errorf("auth.mode %q requires tailscale.enabled", AuthTailscale)
		}
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthPassword, AuthTailscale, c.Auth.Mode)
	}
	if c.Auth.SessionTTL < 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}

	if c.Generator.DashboardCap < 0 || c.Generator.SessionCap < 0 {
		return fmt.Errorf("generator caps must be positive")
	}
	return nil
}

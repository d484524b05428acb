package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Assets    AssetsConfig    `yaml:"assets"`
	Plan      PlanConfig      `yaml:"plan"`
	Timer     TimerConfig     `yaml:"timer"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type StorageConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres DatabaseConfig `yaml:"postgres"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// DefaultCacheName is the asset cache prefix used when none is configured.
const DefaultCacheName = "projeto-5km-cache"

// DefaultManifest lists the frontend assets cached at install.
var DefaultManifest = []string{"/", "/index.html", "/style.css", "/app.js"}

type AssetsConfig struct {
	Name       string   `yaml:"name"`
	Version    string   `yaml:"version"`
	Manifest   []string `yaml:"manifest"`
	BestEffort bool     `yaml:"best_effort"`
	Origin     string   `yaml:"origin"`
	CachePath  string   `yaml:"cache_path"`
	// MaxRuntimeEntries bounds assets cached on demand beyond the
	// manifest. 0 uses the cache manager's default.
	MaxRuntimeEntries int `yaml:"max_runtime_entries"`
}

type PlanConfig struct {
	File string `yaml:"file"`
}

type TimerConfig struct {
	FinishDelay string `yaml:"finish_delay"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
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

// FinishDelayDuration parses timer.finish_delay. Empty means 2s.
func (t TimerConfig) FinishDelayDuration() (time.Duration, error) {
	if t.FinishDelay == "" {
		return 2 * time.Second, nil
	}
	d, err := time.ParseDuration(t.FinishDelay)
	if err != nil {
		return 0, fmt.Errorf("parsing timer.finish_delay: %w", err)
	}
	return d, nil
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix RUN5K_ and underscore-separated paths:
//
//	RUN5K_SERVER_HOST, RUN5K_SERVER_PORT,
//	RUN5K_STORAGE_DRIVER, RUN5K_STORAGE_PATH,
//	RUN5K_DB_HOST, RUN5K_DB_PORT, RUN5K_DB_NAME,
//	RUN5K_DB_USER, RUN5K_DB_PASSWORD, RUN5K_DB_SSLMODE,
//	RUN5K_ASSETS_VERSION, RUN5K_ASSETS_ORIGIN
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
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RUN5K_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("RUN5K_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RUN5K_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("RUN5K_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	db := &cfg.Storage.Postgres
	if v := os.Getenv("RUN5K_DB_HOST"); v != "" {
		db.Host = v
	}
	if v := os.Getenv("RUN5K_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			db.Port = port
		}
	}
	if v := os.Getenv("RUN5K_DB_NAME"); v != "" {
		db.Name = v
	}
	if v := os.Getenv("RUN5K_DB_USER"); v != "" {
		db.User = v
	}
	if v := os.Getenv("RUN5K_DB_PASSWORD"); v != "" {
		db.Password = v
	}
	if v := os.Getenv("RUN5K_DB_SSLMODE"); v != "" {
		db.SSLMode = v
	}
	if v := os.Getenv("RUN5K_ASSETS_VERSION"); v != "" {
		cfg.Assets.Version = v
	}
	if v := os.Getenv("RUN5K_ASSETS_ORIGIN"); v != "" {
		cfg.Assets.Origin = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverSQLite
	}
	if cfg.Storage.Driver == DriverSQLite && cfg.Storage.Path == "" {
		cfg.Storage.Path = "data"
	}
	if cfg.Assets.Name == "" {
		cfg.Assets.Name = DefaultCacheName
	}
	if len(cfg.Assets.Manifest) == 0 {
		cfg.Assets.Manifest = append([]string(nil), DefaultManifest...)
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "run5k"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		db := c.Storage.Postgres
		if db.Host == "" {
			return fmt.Errorf("storage.postgres.host is required")
		}
		if db.Port == 0 {
			return fmt.Errorf("storage.postgres.port is required")
		}
		if db.Name == "" {
			return fmt.Errorf("storage.postgres.name is required")
		}
		if db.User == "" {
			return fmt.Errorf("storage.postgres.user is required")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, memory", c.Storage.Driver)
	}
	if c.Assets.MaxRuntimeEntries < 0 {
		return fmt.Errorf("assets.max_runtime_entries must not be negative")
	}
	for _, a := range c.Assets.Manifest {
		if !strings.HasPrefix(a, "/") {
			return fmt.Errorf("assets.manifest entry %q must start with /", a)
		}
	}
	if _, err := c.Timer.FinishDelayDuration(); err != nil {
		return err
	}
	if c.Tailscale.Enabled && c.Tailscale.StateDir == "" {
		return fmt.Errorf("tailscale.state_dir is required when tailscale is enabled")
	}
	return nil
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
}

// BackendConfig contains upstream POS API configuration
type BackendConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	HealthPath string `mapstructure:"health_path"`
	Timeout    string `mapstructure:"timeout"`
}

// CacheConfig contains entity cache settings
type CacheConfig struct {
	DefaultTTL    string `mapstructure:"default_ttl"`
	QuotaMB       int    `mapstructure:"quota_mb"`
	SweepInterval string `mapstructure:"sweep_interval"`
}

// SyncConfig contains sync queue settings
type SyncConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
}

// MonitorConfig contains connectivity and storage monitor settings
type MonitorConfig struct {
	ProbeInterval      string  `mapstructure:"probe_interval"`
	QuotaCheckInterval string  `mapstructure:"quota_check_interval"`
	StatusInterval     string  `mapstructure:"status_interval"`
	WarnUsagePct       float64 `mapstructure:"warn_usage_pct"`
	CriticalUsagePct   float64 `mapstructure:"critical_usage_pct"`
	EvictionInterval   string  `mapstructure:"eviction_interval"`
}

// GatewayConfig contains the interception gateway configuration
type GatewayConfig struct {
	BindAddr      string   `mapstructure:"bind_addr"`
	Version       string   `mapstructure:"version"`
	APIPrefix     string   `mapstructure:"api_prefix"`
	ShellAssets   []string `mapstructure:"shell_assets"`
	AdminUsername string   `mapstructure:"admin_username"`
	AdminPassword string   `mapstructure:"admin_password"`
	ReadTimeout   string   `mapstructure:"read_timeout"`
	WriteTimeout  string   `mapstructure:"write_timeout"`
	IdleTimeout   string   `mapstructure:"idle_timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// Set defaults
	viper.SetDefault("backend.health_path", "/health")
	viper.SetDefault("backend.timeout", "15s")
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.quota_mb", 200)
	viper.SetDefault("cache.sweep_interval", "10m")
	viper.SetDefault("sync.max_retries", 3)
	viper.SetDefault("monitor.probe_interval", "15s")
	viper.SetDefault("monitor.quota_check_interval", "5m")
	viper.SetDefault("monitor.status_interval", "30s")
	viper.SetDefault("monitor.warn_usage_pct", 80)
	viper.SetDefault("monitor.critical_usage_pct", 90)
	viper.SetDefault("monitor.eviction_interval", "30s")
	viper.SetDefault("gateway.bind_addr", "127.0.0.1:8099")
	viper.SetDefault("gateway.version", "v1")
	viper.SetDefault("gateway.api_prefix", "/api/")
	viper.SetDefault("gateway.shell_assets", []string{"/", "/index.html"})
	viper.SetDefault("gateway.admin_username", "admin")
	viper.SetDefault("gateway.admin_password", "")
	viper.SetDefault("gateway.read_timeout", "30s")
	viper.SetDefault("gateway.write_timeout", "30s")
	viper.SetDefault("gateway.idle_timeout", "60s")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("database.path", "")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if _, err := time.ParseDuration(c.Backend.Timeout); err != nil {
		return fmt.Errorf("invalid backend.timeout: %w", err)
	}

	if c.Cache.QuotaMB <= 0 {
		return fmt.Errorf("cache.quota_mb must be positive")
	}
	if _, err := time.ParseDuration(c.Cache.DefaultTTL); err != nil {
		return fmt.Errorf("invalid cache.default_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Cache.SweepInterval); err != nil {
		return fmt.Errorf("invalid cache.sweep_interval: %w", err)
	}

	if c.Sync.MaxRetries <= 0 {
		return fmt.Errorf("sync.max_retries must be positive")
	}

	if c.Monitor.WarnUsagePct <= 0 || c.Monitor.WarnUsagePct > 100 {
		return fmt.Errorf("monitor.warn_usage_pct must be between 1 and 100")
	}
	if c.Monitor.CriticalUsagePct <= c.Monitor.WarnUsagePct || c.Monitor.CriticalUsagePct > 100 {
		return fmt.Errorf("monitor.critical_usage_pct must be between warn_usage_pct and 100")
	}
	if _, err := time.ParseDuration(c.Monitor.ProbeInterval); err != nil {
		return fmt.Errorf("invalid monitor.probe_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Monitor.QuotaCheckInterval); err != nil {
		return fmt.Errorf("invalid monitor.quota_check_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.Monitor.StatusInterval); err != nil {
		return fmt.Errorf("invalid monitor.status_interval: %w", err)
	}

	if c.Gateway.Version == "" {
		return fmt.Errorf("gateway.version is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetTimeout returns the backend timeout as time.Duration
func (c *BackendConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 15 * time.Second
	}
	return d
}

// GetDefaultTTL returns the default cache TTL as time.Duration
func (c *CacheConfig) GetDefaultTTL() time.Duration {
	d, _ := time.ParseDuration(c.DefaultTTL)
	if d == 0 {
		return time.Hour
	}
	return d
}

// GetSweepInterval returns the expired-entry sweep interval as time.Duration
func (c *CacheConfig) GetSweepInterval() time.Duration {
	d, _ := time.ParseDuration(c.SweepInterval)
	if d == 0 {
		return 10 * time.Minute
	}
	return d
}

// GetQuotaBytes returns the storage quota in bytes
func (c *CacheConfig) GetQuotaBytes() int64 {
	return int64(c.QuotaMB) * 1024 * 1024
}

// GetProbeInterval returns the connectivity probe interval as time.Duration
func (c *MonitorConfig) GetProbeInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProbeInterval)
	if d == 0 {
		return 15 * time.Second
	}
	return d
}

// GetQuotaCheckInterval returns the storage sample interval as time.Duration
func (c *MonitorConfig) GetQuotaCheckInterval() time.Duration {
	d, _ := time.ParseDuration(c.QuotaCheckInterval)
	if d == 0 {
		return 5 * time.Minute
	}
	return d
}

// GetStatusInterval returns the status snapshot interval as time.Duration
func (c *MonitorConfig) GetStatusInterval() time.Duration {
	d, _ := time.ParseDuration(c.StatusInterval)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetEvictionInterval returns the minimum spacing between automatic
// quota-pressure evictions as time.Duration
func (c *MonitorConfig) GetEvictionInterval() time.Duration {
	d, _ := time.ParseDuration(c.EvictionInterval)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetReadTimeout returns the read timeout as time.Duration
func (c *GatewayConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ReadTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetWriteTimeout returns the write timeout as time.Duration
func (c *GatewayConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.WriteTimeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleTimeout returns the idle timeout as time.Duration
func (c *GatewayConfig) GetIdleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.IdleTimeout)
	if d == 0 {
		return 60 * time.Second
	}
	return d
}

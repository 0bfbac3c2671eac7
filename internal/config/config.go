package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/n3tuk/maintenance-gate/internal/cache"
	"github.com/n3tuk/maintenance-gate/internal/housekeeping"
	"github.com/n3tuk/maintenance-gate/internal/storage"
	"github.com/n3tuk/maintenance-gate/internal/upstream"
)

// Config holds all configuration for the service.
type Config struct {
	// API server settings
	APIPort int
	APIHost string

	// Probe server settings
	ProbePort int
	ProbeHost string

	// Metrics server settings
	MetricsPort int
	MetricsHost string

	// TLS settings
	TLSEnabled bool
	TLSCert    string
	TLSKey     string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Health check settings
	HealthCheckTimeout       time.Duration
	HealthCheckCacheDuration time.Duration

	// Metrics settings
	MetricsNamespace string

	// AppTitle is shown in the page titles.
	AppTitle string

	// Maintenance store settings
	DatabaseDriver  string
	DatabaseURL     string
	MongoDatabase   string
	DatabaseTimeout time.Duration

	// Status cache settings
	CacheBackend string
	Olric        *cache.OlricConfig

	// UpstreamURL is the protected application. Empty serves the built-in
	// home page.
	UpstreamURL string

	// NATSURL enables status change events when set.
	NATSURL string

	// Pruning of superseded maintenance records
	PruneEnabled  bool
	PruneSchedule string
	PruneKeep     int
}

// Load reads configuration from environment variables, config file, and flags.
func Load() (*Config, error) {
	setDefaults()

	// Enable environment variable support with automatic replacement
	viper.SetEnvPrefix("MAINTENANCE")
	viper.AutomaticEnv()
	// Replace . with _ in environment variable names (e.g., api.port -> MAINTENANCE_API_PORT)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// The protected application already exports DATABASE_URL
	_ = viper.BindEnv("database.url", "MAINTENANCE_DATABASE_URL", "DATABASE_URL")

	// Try to read config file if it exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/maintenance-gate/")

	// Reading config file is optional
	_ = viper.ReadInConfig()

	cfg := &Config{
		APIPort:          viper.GetInt("api.port"),
		APIHost:          viper.GetString("api.host"),
		ProbePort:        viper.GetInt("probe.port"),
		ProbeHost:        viper.GetString("probe.host"),
		MetricsPort:      viper.GetInt("metrics.port"),
		MetricsHost:      viper.GetString("metrics.host"),
		TLSEnabled:       viper.GetBool("tls.enabled"),
		TLSCert:          viper.GetString("tls.cert"),
		TLSKey:           viper.GetString("tls.key"),
		LogLevel:         viper.GetString("log.level"),
		LogFormat:        viper.GetString("log.format"),
		MetricsNamespace: "maintenance_gate", // Fixed value, not configurable
		AppTitle:         viper.GetString("app.title"),
		DatabaseDriver:   viper.GetString("database.driver"),
		DatabaseURL:      viper.GetString("database.url"),
		MongoDatabase:    viper.GetString("database.mongo_database"),
		CacheBackend:     viper.GetString("cache.backend"),
		UpstreamURL:      viper.GetString("upstream.url"),
		NATSURL:          viper.GetString("nats.url"),
		PruneEnabled:     viper.GetBool("prune.enabled"),
		PruneSchedule:    viper.GetString("prune.schedule"),
		PruneKeep:        viper.GetInt("prune.keep"),
	}

	durations := []struct {
		key   string
		label string
		dst   *time.Duration
	}{
		{"shutdown.timeout", "shutdown timeout", &cfg.ShutdownTimeout},
		{"health.check_timeout", "health check timeout", &cfg.HealthCheckTimeout},
		{"health.cache_duration", "health check cache duration", &cfg.HealthCheckCacheDuration},
		{"database.timeout", "database timeout", &cfg.DatabaseTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(viper.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.label, err)
		}
		*d.dst = v
	}

	olric, err := loadOlric(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Olric = olric

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("probe.port", 8081)
	viper.SetDefault("probe.host", "0.0.0.0")
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.host", "0.0.0.0")
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cert", "")
	viper.SetDefault("tls.key", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("shutdown.timeout", "30s")
	viper.SetDefault("health.check_timeout", "5s")
	viper.SetDefault("health.cache_duration", "10s")
	viper.SetDefault("app.title", "Sistema")
	viper.SetDefault("database.driver", storage.DriverPostgres)
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.mongo_database", "manutencao")
	viper.SetDefault("database.timeout", "10s")
	viper.SetDefault("cache.backend", cache.BackendLocal)
	viper.SetDefault("upstream.url", "")
	viper.SetDefault("nats.url", "")
	viper.SetDefault("prune.enabled", true)
	viper.SetDefault("prune.schedule", housekeeping.DefaultSchedule)
	viper.SetDefault("prune.keep", housekeeping.DefaultKeep)

	viper.SetDefault("olric.host", cache.DefaultBindAddr)
	viper.SetDefault("olric.port", cache.DefaultBindPort)
	viper.SetDefault("olric.join_addrs", []string{})
	viper.SetDefault("olric.replication_mode", cache.DefaultReplicationMode)
	viper.SetDefault("olric.replication_factor", cache.DefaultReplicationFactor)
	viper.SetDefault("olric.partition_count", cache.DefaultPartitionCount)
	viper.SetDefault("olric.member_count_quorum", cache.DefaultMemberCountQuorum)
	viper.SetDefault("olric.join_retry_interval", cache.DefaultJoinRetryInterval.String())
	viper.SetDefault("olric.max_join_attempts", cache.DefaultMaxJoinAttempts)
	viper.SetDefault("olric.log_level", "")
	viper.SetDefault("olric.keep_alive_period", cache.DefaultKeepAlivePeriod.String())
	viper.SetDefault("olric.start_timeout", cache.DefaultStartTimeout.String())
	viper.SetDefault("olric.dmap_name", cache.DefaultDMapName)
	viper.SetDefault("olric.key", cache.DefaultKey)
}

// loadOlric reads the olric settings. The olric log level follows the main
// log level unless set explicitly.
func loadOlric(logLevel string) (*cache.OlricConfig, error) {
	cfg := cache.NewDefaultOlricConfig()

	cfg.BindAddr = viper.GetString("olric.host")
	cfg.BindPort = viper.GetInt("olric.port")
	cfg.JoinAddrs = viper.GetStringSlice("olric.join_addrs")
	cfg.ReplicationMode = viper.GetString("olric.replication_mode")
	cfg.ReplicationFactor = viper.GetInt("olric.replication_factor")
	cfg.PartitionCount = viper.GetUint64("olric.partition_count")
	cfg.MemberCountQuorum = viper.GetInt("olric.member_count_quorum")
	cfg.MaxJoinAttempts = viper.GetInt("olric.max_join_attempts")
	cfg.DMapName = viper.GetString("olric.dmap_name")
	cfg.Key = viper.GetString("olric.key")

	cfg.LogLevel = strings.ToUpper(viper.GetString("olric.log_level"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = strings.ToUpper(logLevel)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"olric.join_retry_interval", &cfg.JoinRetryInterval},
		{"olric.keep_alive_period", &cfg.KeepAlivePeriod},
		{"olric.start_timeout", &cfg.StartTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(viper.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", c.APIPort)
	}
	if c.ProbePort < 1 || c.ProbePort > 65535 {
		return fmt.Errorf("invalid probe port: %d", c.ProbePort)
	}
	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}

	if c.TLSEnabled {
		if c.TLSCert == "" {
			return fmt.Errorf("TLS enabled but no certificate path provided")
		}
		if c.TLSKey == "" {
			return fmt.Errorf("TLS enabled but no key path provided")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.LogFormat)
	}

	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %s (must be positive)", c.ShutdownTimeout)
	}

	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("invalid health check timeout: %s (must be positive)", c.HealthCheckTimeout)
	}

	if c.HealthCheckCacheDuration < 0 {
		return fmt.Errorf("invalid health check cache duration: %s (must be non-negative, zero disables caching)", c.HealthCheckCacheDuration)
	}

	if c.MetricsNamespace == "" {
		return fmt.Errorf("metrics namespace cannot be empty")
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateCache(); err != nil {
		return err
	}

	if c.UpstreamURL != "" {
		if _, err := upstream.Parse(c.UpstreamURL); err != nil {
			return err
		}
	}

	if c.PruneEnabled {
		if err := housekeeping.ValidateSchedule(c.PruneSchedule); err != nil {
			return err
		}
		if c.PruneKeep < 1 {
			return fmt.Errorf("invalid prune keep count: %d (must be at least 1)", c.PruneKeep)
		}
	}

	return nil
}

func (c *Config) validateDatabase() error {
	switch c.DatabaseDriver {
	case storage.DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database url is required for the postgres driver (set DATABASE_URL)")
		}
	case storage.DriverMongo:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database url is required for the mongo driver")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("mongo database name cannot be empty")
		}
	case storage.DriverMemory:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres, mongo, or memory)", c.DatabaseDriver)
	}

	if c.DatabaseTimeout <= 0 {
		return fmt.Errorf("invalid database timeout: %s (must be positive)", c.DatabaseTimeout)
	}

	return nil
}

func (c *Config) validateCache() error {
	switch c.CacheBackend {
	case cache.BackendLocal:
		return nil
	case cache.BackendOlric:
		if c.Olric == nil {
			return fmt.Errorf("olric cache backend selected without olric configuration")
		}
		if err := c.Olric.Validate(); err != nil {
			return fmt.Errorf("invalid olric configuration: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("invalid cache backend: %s (must be local or olric)", c.CacheBackend)
	}
}

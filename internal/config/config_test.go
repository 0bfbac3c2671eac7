package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/n3tuk/maintenance-gate/internal/cache"
	"github.com/n3tuk/maintenance-gate/internal/housekeeping"
	"github.com/n3tuk/maintenance-gate/internal/storage"
)

// setEnv sets environment variables for the duration of the test.
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for key, value := range vars {
		t.Setenv(key, value)
	}
}

func TestLoad(t *testing.T) {
	defer viper.Reset()

	tests := []struct {
		name    string
		setup   func()
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			setup: func() {
				viper.Reset()
				viper.Set("database.url", "postgres://localhost/app")
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.APIPort != 8080 {
					t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
				}
				if cfg.ProbePort != 8081 {
					t.Errorf("ProbePort = %d, want 8081", cfg.ProbePort)
				}
				if cfg.MetricsPort != 9090 {
					t.Errorf("MetricsPort = %d, want 9090", cfg.MetricsPort)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
				}
				if cfg.LogFormat != "json" {
					t.Errorf("LogFormat = %s, want json", cfg.LogFormat)
				}
				if cfg.ShutdownTimeout != 30*time.Second {
					t.Errorf("ShutdownTimeout = %s, want 30s", cfg.ShutdownTimeout)
				}
				if cfg.DatabaseDriver != storage.DriverPostgres {
					t.Errorf("DatabaseDriver = %s, want postgres", cfg.DatabaseDriver)
				}
				if cfg.CacheBackend != cache.BackendLocal {
					t.Errorf("CacheBackend = %s, want local", cfg.CacheBackend)
				}
				if cfg.PruneSchedule != housekeeping.DefaultSchedule || cfg.PruneKeep != housekeeping.DefaultKeep {
					t.Errorf("prune = %s/%d, want defaults", cfg.PruneSchedule, cfg.PruneKeep)
				}
				if cfg.MetricsNamespace != "maintenance_gate" {
					t.Errorf("MetricsNamespace = %s, want maintenance_gate", cfg.MetricsNamespace)
				}
				if cfg.Olric.LogLevel != "INFO" {
					t.Errorf("Olric.LogLevel = %s, want INFO from log.level", cfg.Olric.LogLevel)
				}
			},
		},
		{
			name: "custom configuration via viper",
			setup: func() {
				viper.Reset()
				viper.Set("api.port", 9000)
				viper.Set("probe.port", 9001)
				viper.Set("metrics.port", 9002)
				viper.Set("log.level", "debug")
				viper.Set("log.format", "console")
				viper.Set("shutdown.timeout", "60s")
				viper.Set("database.driver", "memory")
				viper.Set("upstream.url", "http://app:3000")
				viper.Set("nats.url", "nats://nats:4222")
				viper.Set("app.title", "Portal")
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.APIPort != 9000 {
					t.Errorf("APIPort = %d, want 9000", cfg.APIPort)
				}
				if cfg.ProbePort != 9001 {
					t.Errorf("ProbePort = %d, want 9001", cfg.ProbePort)
				}
				if cfg.MetricsPort != 9002 {
					t.Errorf("MetricsPort = %d, want 9002", cfg.MetricsPort)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
				}
				if cfg.LogFormat != "console" {
					t.Errorf("LogFormat = %s, want console", cfg.LogFormat)
				}
				if cfg.ShutdownTimeout != 60*time.Second {
					t.Errorf("ShutdownTimeout = %s, want 60s", cfg.ShutdownTimeout)
				}
				if cfg.UpstreamURL != "http://app:3000" || cfg.NATSURL != "nats://nats:4222" {
					t.Errorf("UpstreamURL = %s, NATSURL = %s", cfg.UpstreamURL, cfg.NATSURL)
				}
				if cfg.AppTitle != "Portal" {
					t.Errorf("AppTitle = %s, want Portal", cfg.AppTitle)
				}
			},
		},
		{
			name: "olric cache backend",
			setup: func() {
				viper.Reset()
				viper.Set("database.driver", "memory")
				viper.Set("cache.backend", "olric")
				viper.Set("olric.host", "127.0.0.1")
				viper.Set("olric.port", 3330)
				viper.Set("olric.log_level", "error")
				viper.Set("olric.join_retry_interval", "2s")
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Olric.BindAddr != "127.0.0.1" || cfg.Olric.BindPort != 3330 {
					t.Errorf("Olric bind = %s:%d", cfg.Olric.BindAddr, cfg.Olric.BindPort)
				}
				if cfg.Olric.LogLevel != "ERROR" {
					t.Errorf("Olric.LogLevel = %s, want ERROR", cfg.Olric.LogLevel)
				}
				if cfg.Olric.JoinRetryInterval != 2*time.Second {
					t.Errorf("Olric.JoinRetryInterval = %s, want 2s", cfg.Olric.JoinRetryInterval)
				}
				if cfg.Olric.DMapName != cache.DefaultDMapName {
					t.Errorf("Olric.DMapName = %s, want default", cfg.Olric.DMapName)
				}
			},
		},
		{
			name: "TLS configuration",
			setup: func() {
				viper.Reset()
				viper.Set("database.driver", "memory")
				viper.Set("tls.enabled", true)
				viper.Set("tls.cert", "/path/to/cert.pem")
				viper.Set("tls.key", "/path/to/key.pem")
			},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.TLSEnabled {
					t.Error("TLSEnabled = false, want true")
				}
				if cfg.TLSCert != "/path/to/cert.pem" {
					t.Errorf("TLSCert = %s, want /path/to/cert.pem", cfg.TLSCert)
				}
				if cfg.TLSKey != "/path/to/key.pem" {
					t.Errorf("TLSKey = %s, want /path/to/key.pem", cfg.TLSKey)
				}
			},
		},
		{
			name: "invalid shutdown timeout",
			setup: func() {
				viper.Reset()
				viper.Set("database.driver", "memory")
				viper.Set("shutdown.timeout", "invalid")
			},
			wantErr: true,
		},
		{
			name: "invalid olric duration",
			setup: func() {
				viper.Reset()
				viper.Set("database.driver", "memory")
				viper.Set("olric.keep_alive_period", "soon")
			},
			wantErr: true,
		},
		{
			name: "postgres without url",
			setup: func() {
				viper.Reset()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			tt.setup()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if err == nil && tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// validConfig returns a configuration that passes Validate.
func validConfig() *Config {
	return &Config{
		APIPort:            8080,
		ProbePort:          8081,
		MetricsPort:        9090,
		LogLevel:           "info",
		LogFormat:          "json",
		ShutdownTimeout:    30 * time.Second,
		HealthCheckTimeout: 5 * time.Second,
		MetricsNamespace:   "maintenance_gate",
		DatabaseDriver:     storage.DriverPostgres,
		DatabaseURL:        "postgres://localhost/app",
		MongoDatabase:      "manutencao",
		DatabaseTimeout:    10 * time.Second,
		CacheBackend:       cache.BackendLocal,
		Olric:              cache.NewDefaultOlricConfig(),
		PruneEnabled:       true,
		PruneSchedule:      housekeeping.DefaultSchedule,
		PruneKeep:          housekeeping.DefaultKeep,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid configuration", func(c *Config) {}, false},
		{"invalid API port - too low", func(c *Config) { c.APIPort = 0 }, true},
		{"invalid API port - too high", func(c *Config) { c.APIPort = 65536 }, true},
		{"invalid probe port", func(c *Config) { c.ProbePort = -1 }, true},
		{"invalid metrics port", func(c *Config) { c.MetricsPort = 70000 }, true},
		{"TLS enabled but no cert", func(c *Config) { c.TLSEnabled, c.TLSKey = true, "/path/to/key" }, true},
		{"TLS enabled but no key", func(c *Config) { c.TLSEnabled, c.TLSCert = true, "/path/to/cert" }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "invalid" }, true},
		{"invalid log format", func(c *Config) { c.LogFormat = "invalid" }, true},
		{"negative shutdown timeout", func(c *Config) { c.ShutdownTimeout = -time.Second }, true},
		{"zero health check timeout", func(c *Config) { c.HealthCheckTimeout = 0 }, true},
		{"debug log level", func(c *Config) { c.LogLevel = "debug" }, false},
		{"unknown database driver", func(c *Config) { c.DatabaseDriver = "sqlite" }, true},
		{"postgres without url", func(c *Config) { c.DatabaseURL = "" }, true},
		{"mongo without database", func(c *Config) { c.DatabaseDriver, c.MongoDatabase = storage.DriverMongo, "" }, true},
		{"mongo", func(c *Config) { c.DatabaseDriver, c.DatabaseURL = storage.DriverMongo, "mongodb://localhost" }, false},
		{"memory without url", func(c *Config) { c.DatabaseDriver, c.DatabaseURL = storage.DriverMemory, "" }, false},
		{"zero database timeout", func(c *Config) { c.DatabaseTimeout = 0 }, true},
		{"unknown cache backend", func(c *Config) { c.CacheBackend = "redis" }, true},
		{"olric backend", func(c *Config) { c.CacheBackend = cache.BackendOlric }, false},
		{"olric backend with bad bind address", func(c *Config) {
			c.CacheBackend = cache.BackendOlric
			c.Olric.BindAddr = "not-an-ip"
		}, true},
		{"bad olric settings ignored for local backend", func(c *Config) { c.Olric.BindAddr = "not-an-ip" }, false},
		{"upstream url", func(c *Config) { c.UpstreamURL = "http://app:3000" }, false},
		{"invalid upstream url", func(c *Config) { c.UpstreamURL = "app:3000" }, true},
		{"invalid prune schedule", func(c *Config) { c.PruneSchedule = "every day" }, true},
		{"zero prune keep", func(c *Config) { c.PruneKeep = 0 }, true},
		{"prune disabled skips schedule", func(c *Config) { c.PruneEnabled, c.PruneSchedule = false, "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	defer viper.Reset()

	setEnv(t, map[string]string{
		"MAINTENANCE_API_PORT":         "9000",
		"MAINTENANCE_PROBE_PORT":       "9001",
		"MAINTENANCE_METRICS_PORT":     "9002",
		"MAINTENANCE_LOG_LEVEL":        "debug",
		"MAINTENANCE_LOG_FORMAT":       "console",
		"MAINTENANCE_TLS_ENABLED":      "true",
		"MAINTENANCE_TLS_CERT":         "/test/cert.pem",
		"MAINTENANCE_TLS_KEY":          "/test/key.pem",
		"MAINTENANCE_SHUTDOWN_TIMEOUT": "45s",
		"MAINTENANCE_DATABASE_DRIVER":  "mongo",
		"DATABASE_URL":                 "mongodb://db:27017",
	})
	viper.Reset()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIPort != 9000 {
		t.Errorf("APIPort = %d, want 9000", cfg.APIPort)
	}
	if cfg.ProbePort != 9001 {
		t.Errorf("ProbePort = %d, want 9001", cfg.ProbePort)
	}
	if cfg.MetricsPort != 9002 {
		t.Errorf("MetricsPort = %d, want 9002", cfg.MetricsPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %s, want console", cfg.LogFormat)
	}
	if !cfg.TLSEnabled || cfg.TLSCert != "/test/cert.pem" || cfg.TLSKey != "/test/key.pem" {
		t.Errorf("TLS = %v %s %s", cfg.TLSEnabled, cfg.TLSCert, cfg.TLSKey)
	}
	if cfg.ShutdownTimeout != 45*time.Second {
		t.Errorf("ShutdownTimeout = %s, want 45s", cfg.ShutdownTimeout)
	}
	if cfg.DatabaseDriver != storage.DriverMongo {
		t.Errorf("DatabaseDriver = %s, want mongo", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL != "mongodb://db:27017" {
		t.Errorf("DatabaseURL = %s, want value of DATABASE_URL", cfg.DatabaseURL)
	}
}

func TestLoadPrefersPrefixedDatabaseURL(t *testing.T) {
	defer viper.Reset()

	setEnv(t, map[string]string{
		"MAINTENANCE_DATABASE_URL": "postgres://gate/db",
		"DATABASE_URL":             "postgres://app/db",
	})
	viper.Reset()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL != "postgres://gate/db" {
		t.Errorf("DatabaseURL = %s, want MAINTENANCE_DATABASE_URL", cfg.DatabaseURL)
	}
}

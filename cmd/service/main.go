package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/cache"
	"github.com/n3tuk/maintenance-gate/internal/config"
	"github.com/n3tuk/maintenance-gate/internal/housekeeping"
	"github.com/n3tuk/maintenance-gate/internal/logger"
	"github.com/n3tuk/maintenance-gate/internal/server"
	"github.com/n3tuk/maintenance-gate/internal/storage"
	"github.com/n3tuk/maintenance-gate/internal/storage/memory"
	"github.com/n3tuk/maintenance-gate/internal/storage/mongo"
	"github.com/n3tuk/maintenance-gate/internal/storage/postgres"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "service",
	Short: "Maintenance gate service",
	Long: `A gate in front of a web application that diverts visitors to a
maintenance page while maintenance mode is active. Administrators keep
full access and toggle the mode from the control panel.`,
	RunE:         runServer,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Commit:  %s\n", commit)
		fmt.Printf("Built:   %s\n", date)
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete superseded maintenance records once",
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pruneCmd)

	// Configuration flags
	flags := rootCmd.PersistentFlags()
	flags.Int("api-port", 8080, "API server port")
	flags.String("api-host", "0.0.0.0", "API server host")
	flags.Int("probe-port", 8081, "Probe server port")
	flags.String("probe-host", "0.0.0.0", "Probe server host")
	flags.Int("metrics-port", 9090, "Metrics server port")
	flags.String("metrics-host", "0.0.0.0", "Metrics server host")
	flags.Bool("tls-enabled", false, "Enable TLS for API server")
	flags.String("tls-cert", "", "Path to TLS certificate")
	flags.String("tls-key", "", "Path to TLS key")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json, console)")
	flags.Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout (e.g., 30s)")
	flags.Duration("health-check-timeout", 5*time.Second, "Health check timeout (e.g., 5s)")
	flags.Duration("health-cache-duration", 10*time.Second, "Health check cache duration (e.g., 10s)")
	flags.String("app-title", "Sistema", "Application name shown on the pages")

	// Store flags
	flags.String("database-driver", storage.DriverPostgres, "Maintenance store driver (postgres, mongo, memory)")
	flags.String("database-url", "", "Maintenance store URL (defaults to DATABASE_URL)")
	flags.String("mongo-database", "manutencao", "MongoDB database name")
	flags.Duration("database-timeout", 10*time.Second, "Maintenance store connect timeout")

	// Status cache flags
	flags.String("cache-backend", cache.BackendLocal, "Status cache backend (local, olric)")

	// Olric configuration flags
	flags.String("olric-host", cache.DefaultBindAddr, "Olric bind host")
	flags.Int("olric-port", cache.DefaultBindPort, "Olric bind port")
	flags.StringSlice("olric-join-addrs", []string{}, "Olric cluster join addresses")
	flags.String("olric-replication-mode", cache.DefaultReplicationMode, "Olric replication mode (sync/async)")
	flags.Int("olric-replication-factor", cache.DefaultReplicationFactor, "Olric replication factor")
	flags.Int("olric-partition-count", cache.DefaultPartitionCount, "Olric partition count")
	flags.Int("olric-member-count-quorum", cache.DefaultMemberCountQuorum, "Olric member count quorum")
	flags.Duration("olric-join-retry-interval", cache.DefaultJoinRetryInterval, "Olric join retry interval")
	flags.Int("olric-max-join-attempts", cache.DefaultMaxJoinAttempts, "Olric max join attempts")
	flags.String("olric-log-level", "", "Olric log level (DEBUG/INFO/WARN/ERROR, defaults to main log level)")
	flags.Duration("olric-keep-alive-period", cache.DefaultKeepAlivePeriod, "Olric keep alive period")
	flags.Duration("olric-start-timeout", cache.DefaultStartTimeout, "How long to wait for olric to start")
	flags.String("olric-dmap-name", cache.DefaultDMapName, "Olric DMap name")

	// Gate flags
	flags.String("upstream-url", "", "Protected application URL (empty serves the built-in home page)")
	flags.String("nats-url", "", "NATS server URL for status change events")
	flags.Bool("prune-enabled", true, "Prune superseded maintenance records on a schedule")
	flags.String("prune-schedule", housekeeping.DefaultSchedule, "Cron schedule for pruning (UTC)")
	flags.Int("prune-keep", housekeeping.DefaultKeep, "Number of maintenance records to keep")

	// Bind flags to viper
	bindings := map[string]string{
		"api.port":                  "api-port",
		"api.host":                  "api-host",
		"probe.port":                "probe-port",
		"probe.host":                "probe-host",
		"metrics.port":              "metrics-port",
		"metrics.host":              "metrics-host",
		"tls.enabled":               "tls-enabled",
		"tls.cert":                  "tls-cert",
		"tls.key":                   "tls-key",
		"log.level":                 "log-level",
		"log.format":                "log-format",
		"shutdown.timeout":          "shutdown-timeout",
		"health.check_timeout":      "health-check-timeout",
		"health.cache_duration":     "health-cache-duration",
		"app.title":                 "app-title",
		"database.driver":           "database-driver",
		"database.url":              "database-url",
		"database.mongo_database":   "mongo-database",
		"database.timeout":          "database-timeout",
		"cache.backend":             "cache-backend",
		"olric.host":                "olric-host",
		"olric.port":                "olric-port",
		"olric.join_addrs":          "olric-join-addrs",
		"olric.replication_mode":    "olric-replication-mode",
		"olric.replication_factor":  "olric-replication-factor",
		"olric.partition_count":     "olric-partition-count",
		"olric.member_count_quorum": "olric-member-count-quorum",
		"olric.join_retry_interval": "olric-join-retry-interval",
		"olric.max_join_attempts":   "olric-max-join-attempts",
		"olric.log_level":           "olric-log-level",
		"olric.keep_alive_period":   "olric-keep-alive-period",
		"olric.start_timeout":       "olric-start-timeout",
		"olric.dmap_name":           "olric-dmap-name",
		"upstream.url":              "upstream-url",
		"nats.url":                  "nats-url",
		"prune.enabled":             "prune-enabled",
		"prune.schedule":            "prune-schedule",
		"prune.keep":                "prune-keep",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, log, nil
}

// openRepository connects to the configured maintenance store.
func openRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Repository, error) {
	log.Info("Connecting to maintenance store", zap.String("driver", cfg.DatabaseDriver))

	switch cfg.DatabaseDriver {
	case storage.DriverPostgres:
		repo, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case storage.DriverMongo:
		repo, err := mongo.Connect(ctx, cfg.DatabaseURL, cfg.MongoDatabase, cfg.DatabaseTimeout)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case storage.DriverMemory:
		log.Warn("Using the in-memory maintenance store; records are lost on restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.DatabaseDriver)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting maintenance gate service",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	repo, err := openRepository(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open maintenance store: %w", err)
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			log.Warn("Failed to close maintenance store", zap.Error(err))
		}
	}()

	buildInfo := map[string]string{
		"version": version,
		"commit":  commit,
		"date":    date,
	}
	srv, err := server.New(cfg, log, buildInfo, repo)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info("Service started successfully")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		return err
	}

	log.Info("Service stopped gracefully")
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	repo, err := openRepository(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open maintenance store: %w", err)
	}
	defer repo.Close(context.Background())

	pruner, err := housekeeping.NewPruner(repo, cfg.PruneSchedule, cfg.PruneKeep, log, nil)
	if err != nil {
		return err
	}

	removed, err := pruner.RunOnce(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d maintenance records (kept newest %d)\n", removed, cfg.PruneKeep)
	return nil
}

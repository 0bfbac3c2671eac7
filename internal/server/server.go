package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/auth"
	"github.com/n3tuk/maintenance-gate/internal/cache"
	"github.com/n3tuk/maintenance-gate/internal/config"
	"github.com/n3tuk/maintenance-gate/internal/events"
	"github.com/n3tuk/maintenance-gate/internal/gate"
	"github.com/n3tuk/maintenance-gate/internal/handlers"
	"github.com/n3tuk/maintenance-gate/internal/health"
	"github.com/n3tuk/maintenance-gate/internal/housekeeping"
	"github.com/n3tuk/maintenance-gate/internal/metrics"
	"github.com/n3tuk/maintenance-gate/internal/middleware"
	"github.com/n3tuk/maintenance-gate/internal/pages"
	"github.com/n3tuk/maintenance-gate/internal/status"
	"github.com/n3tuk/maintenance-gate/internal/storage"
	"github.com/n3tuk/maintenance-gate/internal/upstream"
)

// clusterRefreshInterval is how often the cache cluster size is sampled.
const clusterRefreshInterval = 15 * time.Second

// Server manages the three HTTP servers (API, Probe, Metrics) and the
// components behind them.
type Server struct {
	cfg           *config.Config
	logger        *zap.Logger
	apiServer     *http.Server
	probeServer   *http.Server
	metricsServer *http.Server
	startTime     time.Time
	shutdownChan  chan struct{}
	shutdownOnce  sync.Once

	metrics       *metrics.Metrics
	healthManager *health.Manager

	repo      storage.Repository
	olric     *cache.OlricBackend
	cell      *cache.Cell
	status    *status.Accessor
	admins    *auth.AdminChecker
	gate      *gate.Gate
	pages     *pages.Pages
	handlers  *handlers.MaintenanceHandlers
	publisher events.Publisher
	pruner    *housekeeping.Pruner
	upstream  http.Handler
}

// New creates a new Server instance over repo. The caller owns repo and
// closes it after Shutdown.
func New(cfg *config.Config, logger *zap.Logger, buildInfo map[string]string, repo storage.Repository) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		logger:       logger,
		startTime:    time.Now(),
		shutdownChan: make(chan struct{}),
		repo:         repo,
	}

	s.metrics = metrics.NewMetrics(cfg.MetricsNamespace, buildInfo)
	s.healthManager = health.NewManager(logger, cfg.HealthCheckCacheDuration, cfg.HealthCheckTimeout)

	if err := s.setupComponents(); err != nil {
		s.closeComponents(context.Background())
		return nil, err
	}

	s.registerHealthCheckers()

	if err := s.setupServers(); err != nil {
		s.closeComponents(context.Background())
		return nil, err
	}

	return s, nil
}

// setupComponents wires the cache, status accessor, gate, pages, handlers,
// event publisher and pruner.
func (s *Server) setupComponents() error {
	backend, err := s.newCacheBackend()
	if err != nil {
		return err
	}

	s.cell = cache.NewCell(backend, status.DefaultTTL)
	s.status = status.NewAccessor(s.repo, s.cell, s.logger, s.metrics)
	s.admins = auth.NewAdminChecker(s.repo, s.logger, s.metrics)
	s.gate = gate.New(s.status, s.admins, s.logger, s.metrics)

	s.pages, err = pages.New(s.logger, s.cfg.AppTitle)
	if err != nil {
		return fmt.Errorf("failed to load pages: %w", err)
	}

	s.upstream, err = upstream.New(s.cfg.UpstreamURL, http.HandlerFunc(s.pages.Home), s.logger)
	if err != nil {
		return err
	}

	s.publisher, err = s.newPublisher()
	if err != nil {
		return err
	}

	s.handlers = handlers.NewMaintenanceHandlers(s.repo, s.status, s.publisher, s.logger, s.metrics)

	if s.cfg.PruneEnabled {
		s.pruner, err = housekeeping.NewPruner(s.repo, s.cfg.PruneSchedule, s.cfg.PruneKeep, s.logger, s.metrics)
		if err != nil {
			return err
		}
	}

	return nil
}

// newCacheBackend returns the configured status cache backend.
func (s *Server) newCacheBackend() (cache.Backend, error) {
	if s.cfg.CacheBackend != cache.BackendOlric {
		s.logger.Info("Using process-local status cache", zap.Duration("ttl", status.DefaultTTL))
		return cache.NewLocalBackend(), nil
	}

	backend, err := cache.NewOlricBackend(context.Background(), s.cfg.Olric, status.DefaultTTL, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start olric status cache: %w", err)
	}
	s.olric = backend
	return backend, nil
}

// newPublisher returns a NATS publisher when a NATS url is configured.
func (s *Server) newPublisher() (events.Publisher, error) {
	if s.cfg.NATSURL == "" {
		return &events.NoopPublisher{}, nil
	}

	publisher, err := events.NewNATSPublisher(s.cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event publisher: %w", err)
	}
	s.logger.Info("Publishing status changes", zap.String("topic", events.TopicStatusChanged))
	return publisher, nil
}

// registerHealthCheckers registers all health checkers with the manager.
func (s *Server) registerHealthCheckers() {
	s.healthManager.RegisterChecker(health.NewConfigChecker(s.logger, s.cfg.Validate))
	s.healthManager.RegisterChecker(health.NewLoggerChecker(s.logger))
	s.healthManager.RegisterChecker(health.NewServerChecker())
	s.healthManager.RegisterChecker(health.NewReadinessChecker())

	// The gate fails open, so an unreachable store is reported but does not
	// take the service out of rotation.
	s.healthManager.RegisterChecker(storage.NewPingChecker(s.logger, s.repo, s.cfg.DatabaseDriver))

	if s.olric != nil {
		s.healthManager.RegisterChecker(cache.NewConnectionHealthChecker(s.logger, s.olric))
		s.healthManager.RegisterReadinessDependency(cache.NewClusterHealthChecker(
			s.logger,
			s.olric,
			s.cfg.Olric.MemberCountQuorum,
			s.cfg.Olric.IsSingleNode(),
		))
	}
}

// setupServers configures the three HTTP servers.
func (s *Server) setupServers() error {
	// API Server
	s.apiServer = &http.Server{
		Addr:         net.JoinHostPort(s.cfg.APIHost, fmt.Sprint(s.cfg.APIPort)),
		Handler:      s.setupAPIRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.TLSEnabled {
		s.apiServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	// Probe Server
	s.probeServer = &http.Server{
		Addr:         net.JoinHostPort(s.cfg.ProbeHost, fmt.Sprint(s.cfg.ProbePort)),
		Handler:      s.setupProbeRouter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	// Metrics Server
	s.metricsServer = &http.Server{
		Addr:         net.JoinHostPort(s.cfg.MetricsHost, fmt.Sprint(s.cfg.MetricsPort)),
		Handler:      s.setupMetricsRouter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	return nil
}

// setupAPIRouter creates the API server router with middleware.
func (s *Server) setupAPIRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CorrelationID)
	r.Use(middleware.LoggingMiddleware(s.logger, "api"))
	r.Use(middleware.RecovererMiddleware(s.logger))
	r.Use(middleware.MetricsMiddleware(s.metrics, s.logger))

	s.setupAPIRoutes(r)

	return r
}

// setupProbeRouter creates the probe server router.
func (s *Server) setupProbeRouter() *chi.Mux {
	r := chi.NewRouter()

	s.setupProbeRoutes(r)

	return r
}

// setupMetricsRouter creates the metrics server router.
func (s *Server) setupMetricsRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	return r
}

// Start starts all three HTTP servers and the pruning schedule.
func (s *Server) Start() error {
	errChan := make(chan error, 3)

	start := func(name string, srv *http.Server, listen func() error) {
		go func() {
			s.logger.Info("Starting "+name+" server", zap.String("addr", srv.Addr))
			if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("%s server error: %w", name, err)
			}
		}()
	}

	start("API", s.apiServer, func() error {
		if s.cfg.TLSEnabled {
			return s.apiServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		}
		return s.apiServer.ListenAndServe()
	})
	start("probe", s.probeServer, s.probeServer.ListenAndServe)
	start("metrics", s.metricsServer, s.metricsServer.ListenAndServe)

	// Wait a bit to see if any server fails to start
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-errChan:
		return err
	default:
	}

	if s.pruner != nil {
		if err := s.pruner.Start(); err != nil {
			return fmt.Errorf("failed to start pruner: %w", err)
		}
	}

	s.healthManager.SetServersRunning(true)
	go s.updateRuntimeMetrics()

	return nil
}

// updateRuntimeMetrics updates the uptime, goroutine and cluster metrics
// until shutdown.
func (s *Server) updateRuntimeMetrics() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastCluster := time.Time{}
	for {
		select {
		case <-ticker.C:
			s.metrics.AppUptimeSeconds.Add(1)
			s.metrics.UpdateRuntimeMetrics()

			if s.olric != nil && time.Since(lastCluster) >= clusterRefreshInterval {
				lastCluster = time.Now()
				s.updateClusterMembers()
			}
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *Server) updateClusterMembers() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	members, err := s.olric.Members(ctx)
	if err != nil {
		s.logger.Debug("Failed to sample cache cluster members", zap.Error(err))
		return
	}
	s.metrics.CacheClusterMembers.Set(float64(members))
}

// Shutdown gracefully shuts down all servers and background components.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down servers gracefully")

	s.healthManager.SetShuttingDown(true)
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })

	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	shutdown := func(name string, srv *http.Server) {
		defer wg.Done()
		s.logger.Info("Shutting down " + name + " server")
		if err := srv.Shutdown(ctx); err != nil {
			errChan <- fmt.Errorf("%s server shutdown error: %w", name, err)
		}
	}

	wg.Add(3)
	go shutdown("API", s.apiServer)
	go shutdown("metrics", s.metricsServer)
	go shutdown("probe", s.probeServer)
	wg.Wait()
	close(errChan)

	s.closeComponents(ctx)

	for err := range errChan {
		if err != nil {
			return err
		}
	}

	s.logger.Info("All servers shut down successfully")
	return nil
}

// closeComponents stops the pruner, the publisher and the olric cache.
func (s *Server) closeComponents(ctx context.Context) {
	if s.pruner != nil {
		s.pruner.Stop(ctx)
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Warn("Failed to close event publisher", zap.Error(err))
		}
	}

	if s.olric != nil {
		if err := s.olric.Close(ctx); err != nil {
			s.logger.Warn("Failed to close olric status cache", zap.Error(err))
		}
	}
}

// WaitForServers waits for all servers to be ready.
func (s *Server) WaitForServers(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if s.checkServer(s.apiServer.Addr) &&
			s.checkServer(s.probeServer.Addr) &&
			s.checkServer(s.metricsServer.Addr) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	return fmt.Errorf("servers did not become ready within %s", timeout)
}

// checkServer checks if a server is listening on the given address.
func (s *Server) checkServer(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

package health

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ConfigChecker re-validates the loaded configuration.
type ConfigChecker struct {
	logger   *zap.Logger
	validate func() error
}

// NewConfigChecker creates a configuration checker. A nil validate func means
// the configuration was accepted at load time and is reported as loaded.
func NewConfigChecker(logger *zap.Logger, validate func() error) *ConfigChecker {
	return &ConfigChecker{
		logger:   logger,
		validate: validate,
	}
}

// Name returns the name of the health check.
func (c *ConfigChecker) Name() string {
	return "config"
}

// Check performs the health check.
func (c *ConfigChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	result := CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "Configuration loaded successfully",
	}

	if c.validate != nil {
		if err := c.validate(); err != nil {
			result.Status = StatusError
			result.Message = "Configuration invalid: " + err.Error()
			c.logger.Error("Configuration check failed", zap.Error(err))
		}
	}

	result.Timestamp = time.Now()
	result.Duration = time.Since(start)
	return result
}

// LoggerChecker checks if the logger is initialized.
type LoggerChecker struct {
	logger *zap.Logger
}

// NewLoggerChecker creates a new logger health checker.
func NewLoggerChecker(logger *zap.Logger) *LoggerChecker {
	return &LoggerChecker{
		logger: logger,
	}
}

// Name returns the name of the health check.
func (l *LoggerChecker) Name() string {
	return "logger"
}

// Check performs the health check.
func (l *LoggerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	result := CheckResult{
		Name:      l.Name(),
		Status:    StatusOK,
		Message:   "Logger initialized successfully",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}

	if l.logger == nil {
		result.Status = StatusError
		result.Message = "Logger not initialized"
	}

	return result
}

// ServerChecker reports whether the HTTP servers have started.
type ServerChecker struct {
	running atomic.Bool
}

// NewServerChecker creates a new server health checker.
func NewServerChecker() *ServerChecker {
	return &ServerChecker{}
}

// Name returns the name of the health check.
func (s *ServerChecker) Name() string {
	return "servers"
}

// SetRunning marks the servers as running.
func (s *ServerChecker) SetRunning(running bool) {
	s.running.Store(running)
}

// Check performs the health check.
func (s *ServerChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:      s.Name(),
		Status:    StatusOK,
		Message:   "All servers running",
		Timestamp: time.Now(),
	}

	if !s.running.Load() {
		result.Status = StatusStarting
		result.Message = "Servers starting"
	}

	return result
}

// ReadinessChecker reports whether the gate should receive traffic.
type ReadinessChecker struct {
	running      atomic.Bool
	shuttingDown atomic.Bool
}

// NewReadinessChecker creates a new readiness health checker.
func NewReadinessChecker() *ReadinessChecker {
	return &ReadinessChecker{}
}

// Name returns the name of the health check.
func (r *ReadinessChecker) Name() string {
	return "readiness"
}

// SetRunning marks the servers as running.
func (r *ReadinessChecker) SetRunning(running bool) {
	r.running.Store(running)
}

// SetShuttingDown marks the service as shutting down.
func (r *ReadinessChecker) SetShuttingDown(shutDown bool) {
	r.shuttingDown.Store(shutDown)
}

// Check performs the health check.
func (r *ReadinessChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Name:      r.Name(),
		Status:    StatusOK,
		Message:   "Service ready",
		Timestamp: time.Now(),
	}

	switch {
	case r.shuttingDown.Load():
		result.Status = StatusNotReady
		result.Message = "Service shutting down"
	case !r.running.Load():
		result.Status = StatusNotReady
		result.Message = "Service not ready"
	}

	return result
}

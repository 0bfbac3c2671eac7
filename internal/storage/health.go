package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/health"
)

// PingChecker checks that the maintenance store is reachable.
type PingChecker struct {
	logger *zap.Logger
	repo   Repository
	driver string
}

// NewPingChecker creates a new store connectivity checker.
func NewPingChecker(logger *zap.Logger, repo Repository, driver string) *PingChecker {
	return &PingChecker{
		logger: logger,
		repo:   repo,
		driver: driver,
	}
}

// Name returns the name of the health check.
func (c *PingChecker) Name() string {
	return "store"
}

// Check performs the health check.
func (c *PingChecker) Check(ctx context.Context) health.CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := c.repo.Ping(checkCtx)

	result := health.CheckResult{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}

	// A failing store does not stop the gate (it fails open), so report the
	// problem without blocking readiness.
	if err != nil {
		result.Status = health.StatusError
		result.Message = fmt.Sprintf("%s store unreachable: %v", c.driver, err)
		c.logger.Warn("Store connectivity check failed",
			zap.String("driver", c.driver),
			zap.Error(err),
		)
		return result
	}

	result.Status = health.StatusOK
	result.Message = fmt.Sprintf("%s store reachable", c.driver)
	return result
}

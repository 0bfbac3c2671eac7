package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/health"
)

// Cluster is the part of a shared backend the health checks need.
type Cluster interface {
	Ping(ctx context.Context) error
	Members(ctx context.Context) (int, error)
}

// ConnectionHealthChecker checks that the olric server accepts connections.
type ConnectionHealthChecker struct {
	logger  *zap.Logger
	cluster Cluster
}

// NewConnectionHealthChecker creates a new connection health checker.
func NewConnectionHealthChecker(logger *zap.Logger, cluster Cluster) *ConnectionHealthChecker {
	return &ConnectionHealthChecker{
		logger:  logger,
		cluster: cluster,
	}
}

// Name returns the name of the health check.
func (c *ConnectionHealthChecker) Name() string {
	return "cache-connection"
}

// Check performs the health check.
func (c *ConnectionHealthChecker) Check(ctx context.Context) health.CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := c.cluster.Ping(checkCtx)

	result := health.CheckResult{
		Name:      c.Name(),
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}

	if err != nil {
		result.Status = health.StatusError
		result.Message = fmt.Sprintf("Cache connection failed: %v", err)
		c.logger.Warn("Cache connection check failed", zap.Error(err))
	} else {
		result.Status = health.StatusOK
		result.Message = "Cache connection healthy"
	}

	return result
}

// ClusterHealthChecker checks that the cache cluster has reached quorum.
type ClusterHealthChecker struct {
	logger     *zap.Logger
	cluster    Cluster
	quorum     int
	singleNode bool
}

// NewClusterHealthChecker creates a new cluster health checker.
// In single-node mode the check always passes.
func NewClusterHealthChecker(logger *zap.Logger, cluster Cluster, quorum int, singleNode bool) *ClusterHealthChecker {
	return &ClusterHealthChecker{
		logger:     logger,
		cluster:    cluster,
		quorum:     quorum,
		singleNode: singleNode,
	}
}

// Name returns the name of the health check.
func (c *ClusterHealthChecker) Name() string {
	return "cache-cluster"
}

// Check performs the health check.
func (c *ClusterHealthChecker) Check(ctx context.Context) health.CheckResult {
	start := time.Now()

	result := health.CheckResult{
		Name:      c.Name(),
		Timestamp: time.Now(),
	}

	if c.singleNode {
		result.Status = health.StatusOK
		result.Message = "Running in single-node mode"
		result.Duration = time.Since(start)
		return result
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	members, err := c.cluster.Members(checkCtx)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = health.StatusError
		result.Message = fmt.Sprintf("Failed to get cluster members: %v", err)
		c.logger.Warn("Cluster health check failed", zap.Error(err))
		return result
	}

	if members < c.quorum {
		result.Status = health.StatusNotReady
		result.Message = fmt.Sprintf("Cluster has %d members, quorum requires %d", members, c.quorum)
		c.logger.Warn("Cluster member count below quorum",
			zap.Int("current", members),
			zap.Int("quorum", c.quorum),
		)
		return result
	}

	result.Status = health.StatusOK
	result.Message = fmt.Sprintf("Cluster healthy with %d members (quorum: %d)", members, c.quorum)
	return result
}

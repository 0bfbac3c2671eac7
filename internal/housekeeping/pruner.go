// Package housekeeping trims the maintenance history on a schedule.
package housekeeping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/n3tuk/maintenance-gate/internal/metrics"
)

// DefaultSchedule runs the pruner daily at 03:00.
const DefaultSchedule = "0 3 * * *"

// DefaultKeep is how many of the newest records survive a prune.
const DefaultKeep = 100

// Store removes all but the newest keep maintenance records.
type Store interface {
	PruneMaintenance(ctx context.Context, keep int) (int64, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule reports whether schedule is a five-field cron expression.
func ValidateSchedule(schedule string) error {
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}
	return nil
}

// Pruner periodically removes superseded maintenance records. Only the
// newest record affects the gate, so older rows are history.
type Pruner struct {
	store    Store
	schedule string
	keep     int
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu   sync.Mutex
	cron *cron.Cron
}

// NewPruner creates a pruner. m may be nil.
func NewPruner(store Store, schedule string, keep int, logger *zap.Logger, m *metrics.Metrics) (*Pruner, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}
	if keep < 1 {
		return nil, fmt.Errorf("prune keep must be at least 1, got %d", keep)
	}

	return &Pruner{
		store:    store,
		schedule: schedule,
		keep:     keep,
		timeout:  time.Minute,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Start schedules the pruner. It is a no-op if already started.
func (p *Pruner) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return nil
	}

	c := cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(p.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		_, _ = p.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("scheduling pruner: %w", err)
	}

	c.Start()
	p.cron = c

	p.logger.Info("Maintenance history pruner started",
		zap.String("schedule", p.schedule),
		zap.Int("keep", p.keep),
	)

	return nil
}

// Stop stops scheduling and waits for a running prune to finish or ctx to end.
func (p *Pruner) Stop(ctx context.Context) {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return
	}

	select {
	case <-c.Stop().Done():
		p.logger.Info("Maintenance history pruner stopped")
	case <-ctx.Done():
		p.logger.Warn("Timeout waiting for pruner to stop")
	}
}

// RunOnce prunes immediately and returns how many records were removed.
func (p *Pruner) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	removed, err := p.store.PruneMaintenance(ctx, p.keep)

	if p.metrics != nil {
		p.metrics.ObserveStore("prune", start)
	}

	if err != nil {
		p.logger.Error("Failed to prune maintenance history", zap.Error(err))
		p.observe("error", 0)
		return 0, err
	}

	p.logger.Info("Pruned maintenance history",
		zap.Int64("removed", removed),
		zap.Int("keep", p.keep),
		zap.Duration("duration", time.Since(start)),
	)
	p.observe("success", removed)

	return removed, nil
}

func (p *Pruner) observe(status string, removed int64) {
	if p.metrics == nil {
		return
	}
	p.metrics.PruneRunsTotal.WithLabelValues(status).Inc()
	p.metrics.PrunedRecordsTotal.Add(float64(removed))
}

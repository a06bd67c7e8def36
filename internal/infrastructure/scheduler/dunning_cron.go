package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants a scheduled run has to cover.
type TenantProvider interface {
	ActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// DunningRunner performs one dunning assessment for a tenant. The
// application-layer dunning service satisfies this through an adapter.
type DunningRunner interface {
	RunDunning(ctx context.Context, tenantID uuid.UUID) error
}

// DunningRunnerFunc adapts a plain function to DunningRunner.
type DunningRunnerFunc func(ctx context.Context, tenantID uuid.UUID) error

func (f DunningRunnerFunc) RunDunning(ctx context.Context, tenantID uuid.UUID) error {
	return f(ctx, tenantID)
}

// DunningCronConfig holds configuration for the daily dunning trigger.
type DunningCronConfig struct {
	// RunHour/RunMinute is the local time of the daily run.
	RunHour   int
	RunMinute int

	// CheckInterval is how often the loop checks whether it is time to run.
	CheckInterval time.Duration
}

// DefaultDunningCronConfig returns the default trigger configuration: a
// daily run at 06:00, before business hours.
func DefaultDunningCronConfig() DunningCronConfig {
	return DunningCronConfig{
		RunHour:       6,
		RunMinute:     0,
		CheckInterval: time.Minute,
	}
}

// DunningCron runs the dunning assessment once per day for every tenant.
// Overdue interest accrues by the day, so a single daily pass keeps the
// assessed amounts current without hammering the invoice table.
type DunningCron struct {
	config  DunningCronConfig
	tenants TenantProvider
	runner  DunningRunner
	logger  *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewDunningCron creates a daily dunning trigger.
func NewDunningCron(
	config DunningCronConfig,
	tenants TenantProvider,
	runner DunningRunner,
	logger *zap.Logger,
) *DunningCron {
	return &DunningCron{
		config:  config,
		tenants: tenants,
		runner:  runner,
		logger:  logger,
	}
}

// Start launches the background loop. Starting an already running trigger
// is a no-op.
func (c *DunningCron) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("dunning cron started",
		zap.Int("run_hour", c.config.RunHour),
		zap.Int("run_minute", c.config.RunMinute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)

	return nil
}

// Stop cancels the loop and waits for an in-flight run to finish, bounded
// by the given context.
func (c *DunningCron) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("dunning cron stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *DunningCron) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires at most once per calendar day, at the configured
// time. The check interval bounds how precisely the run time is hit.
func (c *DunningCron) checkAndTrigger(ctx context.Context) {
	now := time.Now()
	currentDate := now.Format("2006-01-02")

	c.mu.Lock()
	alreadyRan := c.lastRunDate == currentDate
	c.mu.Unlock()
	if alreadyRan {
		return
	}

	if now.Hour() != c.config.RunHour || now.Minute() != c.config.RunMinute {
		return
	}

	c.mu.Lock()
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("triggering daily dunning run")
	c.RunAll(ctx)
}

// RunAll assesses every active tenant once. A failing tenant is logged and
// skipped; one bad tenant must not starve the rest.
func (c *DunningCron) RunAll(ctx context.Context) {
	tenantIDs, err := c.tenants.ActiveTenantIDs(ctx)
	if err != nil {
		c.logger.Error("failed to list tenants for dunning run", zap.Error(err))
		return
	}

	c.logger.Info("running dunning assessment",
		zap.Int("tenant_count", len(tenantIDs)),
	)

	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			return
		}
		if err := c.runner.RunDunning(ctx, tenantID); err != nil {
			c.logger.Error("dunning run failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
}

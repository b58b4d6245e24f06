package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

type CronTriggerConfig struct {
	// Kind is the job submitted on every tick
	Kind   string
	Params map[string]string
	// Interval defaults to one hour
	Interval time.Duration
	// RunOnStart submits one job immediately on Start
	RunOnStart bool
}

// CronTrigger submits one job kind to a Scheduler at a fixed interval. A
// tick that finds the previous run still pending or running is skipped.
type CronTrigger struct {
	cfg       CronTriggerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

func NewCronTrigger(cfg CronTriggerConfig, s *Scheduler, logger *zap.Logger) *CronTrigger {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		cfg:       cfg,
		scheduler: s,
		logger:    logger.Named("cron").With(zap.String("kind", cfg.Kind)),
	}
}

// Start begins ticking until Stop or ctx is cancelled
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return nil
	}
	ctx, c.stop = context.WithCancel(ctx)
	c.done = make(chan struct{})

	if c.cfg.RunOnStart {
		c.fire()
	}
	go c.loop(ctx, c.done)

	c.logger.Info("Cron trigger started", zap.Duration("interval", c.cfg.Interval))
	return nil
}

// Stop ends the loop and waits for it, or for ctx
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.done == nil {
		c.mu.Unlock()
		return nil
	}
	c.stop()
	done := c.done
	c.done = nil
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fire()
		}
	}
}

func (c *CronTrigger) fire() {
	job, err := c.scheduler.Submit(c.cfg.Kind, c.cfg.Params)
	switch {
	case err == nil:
		c.logger.Debug("Scheduled job submitted", zap.String("job_id", job.ID.String()))
	case errors.Is(err, ErrJobInProgress):
		c.logger.Debug("Previous run still in progress, skipping")
	default:
		c.logger.Warn("Failed to submit scheduled job", zap.Error(err))
	}
}

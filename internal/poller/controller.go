package poller

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/store"
)

// Config holds the polling intervals and limits.
type Config struct {
	JobInterval      time.Duration
	OptimizeInterval time.Duration
	// MaxPollDuration bounds how long a single job is polled; zero disables.
	MaxPollDuration time.Duration
	MaxConcurrent   int
}

// DefaultConfig returns the standard polling cadence.
func DefaultConfig() Config {
	return Config{
		JobInterval:      2 * time.Second,
		OptimizeInterval: 3 * time.Second,
		MaxPollDuration:  30 * time.Minute,
		MaxConcurrent:    4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.JobInterval <= 0 {
		c.JobInterval = d.JobInterval
	}
	if c.OptimizeInterval <= 0 {
		c.OptimizeInterval = d.OptimizeInterval
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	return c
}

// Controller owns the three pollers and their scheduled tasks.
type Controller struct {
	cfg      Config
	jobs     *JobPoller
	optimize *OptimizePoller
	watcher  *ActiveJobWatcher
	log      logger.Logger

	mu    sync.Mutex
	tasks []*Task
}

// NewController builds the pollers over st. Metrics are registered on reg
// when it is non-nil.
func NewController(st *store.Store, fetcher JobFetcher, cfg Config, log logger.Logger, reg prometheus.Registerer) *Controller {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	metrics := NewMetrics(reg)
	return &Controller{
		cfg:      cfg,
		jobs:     NewJobPoller(st, fetcher, cfg, log, metrics),
		optimize: NewOptimizePoller(st, fetcher, cfg, log, metrics),
		watcher:  NewActiveJobWatcher(st, fetcher, log, metrics),
		log:      log,
	}
}

// WatchJobs starts the job list poller.
func (c *Controller) WatchJobs(ctx context.Context) *Task {
	return c.start(ctx, "jobs", c.cfg.JobInterval, c.jobs.Tick)
}

// WatchOptimizations starts the optimize-completion poller.
func (c *Controller) WatchOptimizations(ctx context.Context) *Task {
	return c.start(ctx, "optimize", c.cfg.OptimizeInterval, c.optimize.Tick)
}

// WatchActiveJob starts the active job watcher.
func (c *Controller) WatchActiveJob(ctx context.Context) *Task {
	return c.start(ctx, "active", c.cfg.JobInterval, c.watcher.Tick)
}

// Run starts the job list and optimize pollers and blocks until both have
// settled, one fails, or ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := c.WatchJobs(ctx)
	optimize := c.WatchOptimizations(ctx)
	defer c.Stop()

	for jobs != nil || optimize != nil {
		select {
		case <-doneOf(jobs):
			if err := jobs.Err(); err != nil {
				return err
			}
			jobs = nil
		case <-doneOf(optimize):
			if err := optimize.Err(); err != nil {
				return err
			}
			optimize = nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// doneOf returns t's done channel, or nil (blocking forever) for a nil task.
func doneOf(t *Task) <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.Done()
}

// Stop cancels every task the controller started and waits for them.
func (c *Controller) Stop() {
	c.mu.Lock()
	tasks := c.tasks
	c.tasks = nil
	c.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}

func (c *Controller) start(ctx context.Context, name string, interval time.Duration, fn TickFunc) *Task {
	c.log.Debug("Starting poller", logger.String("poller", name), logger.Duration("interval", interval))
	t := Schedule(ctx, interval, fn)
	c.mu.Lock()
	c.tasks = append(c.tasks, t)
	c.mu.Unlock()
	return t
}

package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/store"
)

// JobFetcher loads one job from the backend. *api.Client implements it.
type JobFetcher interface {
	GetJobDetails(ctx context.Context, jobID string) (*domain.Job, error)
}

// JobPoller refreshes every tracked job that is still running, or that
// completed before its stats were filled in.
type JobPoller struct {
	store           *store.Store
	fetcher         JobFetcher
	log             logger.Logger
	metrics         *Metrics
	maxConcurrent   int
	maxPollDuration time.Duration
	now             func() time.Time

	mu        sync.Mutex
	firstSeen map[string]time.Time
}

// NewJobPoller creates a JobPoller. A zero maxPollDuration polls forever.
func NewJobPoller(st *store.Store, fetcher JobFetcher, cfg Config, log logger.Logger, metrics *Metrics) *JobPoller {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &JobPoller{
		store:           st,
		fetcher:         fetcher,
		log:             log,
		metrics:         metrics,
		maxConcurrent:   cfg.MaxConcurrent,
		maxPollDuration: cfg.MaxPollDuration,
		now:             time.Now,
		firstSeen:       make(map[string]time.Time),
	}
}

// Tick fetches the pollable jobs concurrently and merges each result by id.
// A failed fetch leaves that job untouched. It reports done once no tracked
// job needs polling; a 401 ends polling with the error.
func (p *JobPoller) Tick(ctx context.Context) (bool, error) {
	start := time.Now()
	defer func() {
		p.metrics.TicksTotal.WithLabelValues(pollerJobs).Inc()
		p.metrics.TickDurationSeconds.WithLabelValues(pollerJobs).Observe(time.Since(start).Seconds())
	}()

	jobs := p.withinBudget(p.store.State().PollableJobs())
	p.metrics.TrackedJobs.WithLabelValues(pollerJobs).Set(float64(len(jobs)))
	if len(jobs) == 0 {
		return len(p.store.State().PollableJobs()) == 0, nil
	}

	var g errgroup.Group
	g.SetLimit(p.maxConcurrent)
	for _, job := range jobs {
		id := job.ID
		g.Go(func() error {
			seq := p.store.NextSeq()
			updated, err := p.fetcher.GetJobDetails(ctx, id)
			if ctx.Err() != nil {
				return nil
			}
			p.metrics.fetched(pollerJobs, err)
			if err != nil {
				if api.IsUnauthorized(err) {
					return err
				}
				p.log.Warn("Error polling job", logger.String("job_id", id), logger.Error(err))
				return nil
			}

			p.store.Dispatch(store.MergeJob{Job: *updated, Seq: seq})
			if !updated.NeedsPolling() {
				p.forget(id)
				p.log.Debug("Job settled",
					logger.String("job_id", id),
					logger.String("status", string(updated.Status)),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return true, err
	}

	return len(p.store.State().PollableJobs()) == 0, nil
}

// withinBudget drops jobs that have been polled longer than the budget,
// marking them stalled.
func (p *JobPoller) withinBudget(jobs []domain.Job) []domain.Job {
	now := p.now()
	keep := make([]domain.Job, 0, len(jobs))

	p.mu.Lock()
	var stalled []domain.Job
	for _, j := range jobs {
		first, ok := p.firstSeen[j.ID]
		if !ok {
			p.firstSeen[j.ID] = now
			first = now
		}
		if p.maxPollDuration > 0 && now.Sub(first) > p.maxPollDuration {
			delete(p.firstSeen, j.ID)
			stalled = append(stalled, j)
			continue
		}
		keep = append(keep, j)
	}
	p.mu.Unlock()

	for _, j := range stalled {
		p.metrics.StalledJobsTotal.Inc()
		p.log.Warn("Job exceeded polling budget",
			logger.String("job_id", j.ID),
			logger.String("domain", j.Domain),
			logger.Duration("max_poll_duration", p.maxPollDuration),
		)
		p.store.Dispatch(store.MarkStalled{ID: j.ID})
		p.store.Notify(
			fmt.Sprintf("Stopped tracking %s: no result after %s", j.Domain, p.maxPollDuration),
			domain.NotifyWarning, false,
		)
	}
	return keep
}

func (p *JobPoller) forget(id string) {
	p.mu.Lock()
	delete(p.firstSeen, id)
	p.mu.Unlock()
}

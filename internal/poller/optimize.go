package poller

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/store"
)

// Optimization status texts, in the order a run moves through them.
const (
	OptimizeStarting   = "Starting optimization..."
	OptimizeStarted    = "Optimization started..."
	OptimizeRunning    = "Optimizing..."
	OptimizeFinalizing = "Finalizing optimization..."
)

// OptimizePoller watches the jobs in the store's optimizing set until each
// one has a new report.
type OptimizePoller struct {
	store         *store.Store
	fetcher       JobFetcher
	log           logger.Logger
	metrics       *Metrics
	maxConcurrent int
}

// NewOptimizePoller creates an OptimizePoller.
func NewOptimizePoller(st *store.Store, fetcher JobFetcher, cfg Config, log logger.Logger, metrics *Metrics) *OptimizePoller {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &OptimizePoller{
		store:         st,
		fetcher:       fetcher,
		log:           log,
		metrics:       metrics,
		maxConcurrent: cfg.MaxConcurrent,
	}
}

// Tick fetches each optimizing job. A job whose stats carry new_report
// leaves the set with a single success notification; others get their
// status text advanced. It reports done when the set is empty.
func (p *OptimizePoller) Tick(ctx context.Context) (bool, error) {
	start := time.Now()
	defer func() {
		p.metrics.TicksTotal.WithLabelValues(pollerOptimize).Inc()
		p.metrics.TickDurationSeconds.WithLabelValues(pollerOptimize).Observe(time.Since(start).Seconds())
	}()

	state := p.store.State()
	ids := make([]string, 0, len(state.Optimizing))
	for id := range state.Optimizing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	p.metrics.TrackedJobs.WithLabelValues(pollerOptimize).Set(float64(len(ids)))
	if len(ids) == 0 {
		return true, nil
	}

	var g errgroup.Group
	g.SetLimit(p.maxConcurrent)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			seq := p.store.NextSeq()
			job, err := p.fetcher.GetJobDetails(ctx, id)
			if ctx.Err() != nil {
				return nil
			}
			p.metrics.fetched(pollerOptimize, err)
			if err != nil {
				if api.IsUnauthorized(err) {
					return err
				}
				p.log.Warn("Error polling optimizing job", logger.String("job_id", id), logger.Error(err))
				return nil
			}

			p.store.Dispatch(store.MergeJob{Job: *job, Seq: seq})
			if job.Optimized() {
				p.finish(id, job)
				return nil
			}
			p.advance(id, job.Status)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return true, err
	}

	return len(p.store.State().Optimizing) == 0, nil
}

func (p *OptimizePoller) finish(id string, job *domain.Job) {
	if !p.store.State().IsOptimizing(id) {
		return
	}
	p.store.Dispatch(store.FinishOptimizing{ID: id})

	name := job.Domain
	if name == "" {
		if tracked, ok := p.store.State().Job(id); ok {
			name = tracked.Domain
		}
	}
	p.log.Info("Optimization completed", logger.String("job_id", id), logger.String("domain", name))
	p.store.Notify(fmt.Sprintf("Optimization completed for %s!", name), domain.NotifySuccess, false)
}

func (p *OptimizePoller) advance(id string, status domain.JobStatus) {
	current, ok := p.store.State().Optimizing[id]
	if !ok {
		return
	}
	next := current
	switch status {
	case domain.StatusProcessing:
		next = OptimizeRunning
	case domain.StatusCompleted:
		next = OptimizeFinalizing
	}
	if next != current {
		p.store.Dispatch(store.SetOptimizationStatus{ID: id, Status: next})
	}
}

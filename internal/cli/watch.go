package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/config"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/poller"
	"github.com/runnerr0/llmredi/internal/report"
	"github.com/runnerr0/llmredi/internal/store"
)

// errSessionEnded means another llmredi process logged out while watching.
var errSessionEnded = errors.New("session ended by another llmredi process")

func pollerConfig(cfg *config.Config) poller.Config {
	return poller.Config{
		JobInterval:      cfg.Polling.JobInterval,
		OptimizeInterval: cfg.Polling.OptimizeInterval,
		MaxPollDuration:  cfg.Polling.MaxPollDuration,
		MaxConcurrent:    cfg.Polling.MaxConcurrent,
	}
}

// Execute implements the go-flags Commander interface for WatchCommand.
func (c *WatchCommand) Execute(args []string) error {
	return runCommand(c.globals, c.executeWith)
}

func (c *WatchCommand) executeWith(ctx context.Context, e *env) error {
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	jobs, err := e.client.ListJobs(ctx, api.JobFilter{Limit: c.Limit})
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	e.store.Dispatch(store.SetJobs{Jobs: jobs})

	var reg prometheus.Registerer
	if c.MetricsAddr != "" {
		r := prometheus.NewRegistry()
		stop, err := serveMetrics(e, c.MetricsAddr, r)
		if err != nil {
			return err
		}
		defer stop()
		reg = r
	}

	if pending := len(e.store.State().PollableJobs()); pending > 0 {
		if !e.json {
			e.printf("Watching %d unsettled job(s). Press Ctrl+C to stop.\n", pending)
		}
		if err := c.watch(ctx, e, reg); err != nil {
			return err
		}
	}

	st := e.store.State()
	if e.json {
		return e.printJSON(st.Jobs)
	}
	if len(st.Jobs) == 0 {
		e.printf("No jobs found.\n")
		return nil
	}
	printJobsTable(e, st.Jobs, st.Optimizing)
	return nil
}

// watch runs the pollers until every job settles, and stops early when
// another process ends the session.
func (c *WatchCommand) watch(ctx context.Context, e *env, reg prometheus.Registerer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	detach := e.store.Subscribe(func(prev, next store.State, _ store.Action) {
		printStatusChanges(e, prev.Jobs, next.Jobs)
	})
	defer detach()

	var sessionEnded bool
	syncTask := poller.Schedule(ctx, e.cfg.Polling.JobInterval, func(ctx context.Context) (bool, error) {
		changed, err := e.session.Sync(ctx)
		if err != nil {
			e.log.Warn("Session sync failed", logger.Error(err))
			return false, nil
		}
		if changed && !e.store.State().IsLoggedIn {
			sessionEnded = true
			cancel()
			return true, nil
		}
		return false, nil
	})

	ctrl := poller.NewController(e.store, e.client, pollerConfig(e.cfg), e.log, reg)
	err := ctrl.Run(ctx)
	syncTask.Stop()

	if sessionEnded {
		return errSessionEnded
	}
	return err
}

func printStatusChanges(e *env, prev, next []domain.Job) {
	if e.json {
		return
	}
	before := make(map[string]domain.JobStatus, len(prev))
	for _, j := range prev {
		before[j.ID] = j.Status
	}
	for _, j := range next {
		if old, ok := before[j.ID]; ok && old != j.Status {
			fmt.Fprintf(e.errOut, "  %s (%s): %s → %s\n", j.ID, j.Domain, old, j.Status)
		}
	}
}

// serveMetrics exposes reg over HTTP until the returned func is called.
func serveMetrics(e *env, addr string, reg *prometheus.Registry) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Surface an immediate bind failure instead of polling without metrics.
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("serve metrics on %s: %w", addr, err)
	case <-time.After(100 * time.Millisecond):
	}
	e.log.Info("Serving metrics", logger.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			e.log.Warn("Metrics server shutdown failed", logger.Error(err))
		}
	}, nil
}

// Execute implements the go-flags Commander interface for OptimizeCommand.
func (c *OptimizeCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e, args)
	})
}

func (c *OptimizeCommand) executeWith(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("optimize requires exactly one job id argument")
	}
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	id := args[0]

	job, err := e.client.GetJobDetails(ctx, id)
	if err != nil {
		return fmt.Errorf("get job %s: %w", id, err)
	}
	e.store.Dispatch(store.InsertJob{Job: *job})

	if job.Optimized() {
		if e.json {
			return e.printJSON(job)
		}
		e.printf("Job %s is already optimized. Run `llmredi compare %s`.\n", id, id)
		return nil
	}
	if job.Status != domain.StatusCompleted {
		return fmt.Errorf("job %s is %s: only completed jobs can be optimized", id, job.Status)
	}

	e.store.Dispatch(store.StartOptimizing{ID: id})
	resp, err := e.client.OptimizeJob(ctx, id)
	if err != nil {
		e.store.Dispatch(store.FinishOptimizing{ID: id})
		return fmt.Errorf("start optimization: %w", err)
	}
	e.store.Dispatch(store.SetOptimizationStatus{ID: id, Status: poller.OptimizeStarted})
	e.log.Info("Optimization started", logger.String("job_id", id))

	if !c.Wait {
		if e.json {
			return e.printJSON(resp)
		}
		e.printf("%s %s\n", poller.OptimizeStarted, job.Domain)
		if resp.Message != "" {
			e.printf("%s\n", resp.Message)
		}
		e.printf("Check back with `llmredi compare %s`.\n", id)
		return nil
	}
	return c.follow(ctx, e, id)
}

// follow polls until the optimized report appears or the wait timeout passes.
func (c *OptimizeCommand) follow(ctx context.Context, e *env, id string) error {
	if e.cfg.Polling.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Polling.WaitTimeout)
		defer cancel()
	}

	if !e.json {
		detach := e.store.Subscribe(func(prev, next store.State, _ store.Action) {
			if text, ok := next.Optimizing[id]; ok && text != prev.Optimizing[id] {
				fmt.Fprintf(e.errOut, "  %s\n", text)
			}
		})
		defer detach()
	}

	ctrl := poller.NewController(e.store, e.client, pollerConfig(e.cfg), e.log, nil)
	defer ctrl.Stop()
	if err := ctrl.WatchOptimizations(ctx).Wait(); err != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("optimization of %s: %w", id, api.ErrJobTimeout)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	job, _ := e.store.State().Job(id)
	if e.json {
		return e.printJSON(job)
	}
	cmp, err := report.ForJob(job)
	if err != nil {
		return err
	}
	printOverall(e, cmp)
	return nil
}

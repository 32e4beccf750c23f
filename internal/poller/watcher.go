package poller

import (
	"context"
	"time"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/store"
)

// ActiveJobWatcher follows the store's active audit job to a terminal state.
type ActiveJobWatcher struct {
	store   *store.Store
	fetcher JobFetcher
	log     logger.Logger
	metrics *Metrics
}

// NewActiveJobWatcher creates an ActiveJobWatcher.
func NewActiveJobWatcher(st *store.Store, fetcher JobFetcher, log logger.Logger, metrics *Metrics) *ActiveJobWatcher {
	if log == nil {
		log = logger.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &ActiveJobWatcher{store: st, fetcher: fetcher, log: log, metrics: metrics}
}

// Tick fetches the active job and feeds its progress into the scraping
// stage. A completed job completes the audit once its current report has
// arrived; stats can lag the status by a few polls. A failed job raises the
// blocking error. Both end the watch, as does the absence of an active job.
// Transient fetch errors keep it going.
func (w *ActiveJobWatcher) Tick(ctx context.Context) (bool, error) {
	start := time.Now()
	defer func() {
		w.metrics.TicksTotal.WithLabelValues(pollerActive).Inc()
		w.metrics.TickDurationSeconds.WithLabelValues(pollerActive).Observe(time.Since(start).Seconds())
	}()

	id := w.store.State().ActiveJobID
	if id == "" {
		return true, nil
	}

	seq := w.store.NextSeq()
	job, err := w.fetcher.GetJobDetails(ctx, id)
	if ctx.Err() != nil {
		return true, nil
	}
	w.metrics.fetched(pollerActive, err)
	if err != nil {
		if api.IsUnauthorized(err) {
			return true, err
		}
		w.log.Warn("Error polling job status", logger.String("job_id", id), logger.Error(err))
		return false, nil
	}

	w.store.Dispatch(store.MergeJob{Job: *job, Seq: seq})
	w.store.Dispatch(store.UpdateProgress{Stage: store.StageScraping, Value: job.Progress})
	if job.Stats != nil {
		w.store.Dispatch(store.UpdateJobStats{Stats: *job.Stats})
	}

	switch job.Status {
	case domain.StatusCompleted:
		if job.Stats == nil || job.Stats.CurrentReport == nil {
			w.log.Debug("Job completed, waiting for its report", logger.String("job_id", id))
			return false, nil
		}
		w.store.Dispatch(store.UpdateProgress{Stage: store.StageScraping, Value: 100})
		w.store.CompleteAudit(job.Stats.CurrentReport)
		w.log.Info("Audit completed", logger.String("job_id", id), logger.String("domain", job.Domain))
		return true, nil

	case domain.StatusFailed:
		msg := FailureMessage(job)
		w.store.Dispatch(store.FailAudit{Message: msg})
		w.store.Notify(msg, domain.NotifyError, true)
		w.log.Error("Audit failed", logger.String("job_id", id), logger.String("error", job.Error))
		return true, nil
	}
	return false, nil
}

// FailureMessage is the user-facing text for a failed job.
func FailureMessage(job *domain.Job) string {
	reason := job.Error
	if reason == "" {
		reason = "Unknown error"
	}
	return "Job failed: " + reason
}

// Package domain holds the data model shared by the API client, the store and the CLI.
package domain

// JobStatus is the lifecycle state of a backend job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusRunning    JobStatus = "running"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	// StatusStalled is client-side only: the job exceeded the polling budget
	// without reaching a terminal state.
	StatusStalled JobStatus = "stalled"
)

// Active reports whether the backend is still working on the job.
func (s JobStatus) Active() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusRunning:
		return true
	}
	return false
}

// Job is one backend-tracked scrape/audit/optimize unit of work.
type Job struct {
	ID        string    `json:"job_id"`
	Domain    string    `json:"domain"`
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"`
	Stats     *JobStats `json:"stats"`
	CreatedAt Timestamp `json:"created_at"`
	Error     string    `json:"error,omitempty"`
}

// JobStats are the counters and reports attached to a job by the backend.
type JobStats struct {
	PagesScraped     *int    `json:"pages_scraped,omitempty"`
	AssetsDownloaded int     `json:"assets_downloaded"`
	TotalURLs        int     `json:"total_urls"`
	ErrorsCount      int     `json:"errors_count"`
	CurrentReport    *Report `json:"current_report,omitempty"`
	NewReport        *Report `json:"new_report,omitempty"`
}

// StatsComplete reports whether the backend has populated the job's stats.
// pages_scraped is the field that lags behind a completed status.
func (j *Job) StatsComplete() bool {
	return j.Stats != nil && j.Stats.PagesScraped != nil
}

// NeedsPolling reports whether a tracked job should be refreshed.
func (j *Job) NeedsPolling() bool {
	if j.Status.Active() {
		return true
	}
	return j.Status == StatusCompleted && !j.StatsComplete()
}

// Optimized reports whether an optimize run has produced a new report,
// which is the only signal that a comparison is available.
func (j *Job) Optimized() bool {
	return j.Stats != nil && j.Stats.NewReport != nil
}

// Clone returns a copy that shares no stats pointer with j.
func (j Job) Clone() Job {
	if j.Stats != nil {
		s := *j.Stats
		if s.PagesScraped != nil {
			n := *s.PagesScraped
			s.PagesScraped = &n
		}
		j.Stats = &s
	}
	return j
}

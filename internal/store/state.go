// Package store is the client's single source of truth: a pure reducer over
// immutable State values plus a Store that serializes dispatches and fans
// out changes to subscribers.
package store

import (
	"time"

	"github.com/runnerr0/llmredi/internal/domain"
)

// AuditStatus is the lifecycle of the audit the user is currently running.
type AuditStatus string

const (
	AuditIdle       AuditStatus = "idle"
	AuditProcessing AuditStatus = "processing"
	AuditCompleted  AuditStatus = "completed"
	AuditError      AuditStatus = "error"
)

// Stage names one progress bucket of an audit.
type Stage string

const (
	StageScraping     Stage = "scraping"
	StageInitialAudit Stage = "initialAudit"
	StageOptimizing   Stage = "optimizing"
	StageFinalAudit   Stage = "finalAudit"
)

// Progress holds the per-stage percentages, each within [0,100].
type Progress struct {
	Scraping     float64 `json:"scraping"`
	InitialAudit float64 `json:"initialAudit"`
	Optimizing   float64 `json:"optimizing"`
	FinalAudit   float64 `json:"finalAudit"`
}

// Get returns the bucket for stage and whether stage is known.
func (p Progress) Get(stage Stage) (float64, bool) {
	switch stage {
	case StageScraping:
		return p.Scraping, true
	case StageInitialAudit:
		return p.InitialAudit, true
	case StageOptimizing:
		return p.Optimizing, true
	case StageFinalAudit:
		return p.FinalAudit, true
	}
	return 0, false
}

func (p Progress) with(stage Stage, v float64) (Progress, bool) {
	switch stage {
	case StageScraping:
		p.Scraping = v
	case StageInitialAudit:
		p.InitialAudit = v
	case StageOptimizing:
		p.Optimizing = v
	case StageFinalAudit:
		p.FinalAudit = v
	default:
		return p, false
	}
	return p, true
}

// RecentAudit is the summary prepended to the history when an audit completes.
type RecentAudit struct {
	ID     string    `json:"id"`
	Domain string    `json:"domain"`
	Date   time.Time `json:"date"`
	Score  float64   `json:"score"`
	Status string    `json:"status"`
}

// MaxRecentAudits bounds State.RecentAudits.
const MaxRecentAudits = 5

// State is an immutable snapshot. Reduce never mutates the State it is
// given; slices and maps are copied before they change.
type State struct {
	CurrentUser    *domain.User
	AuthToken      string
	IsLoggedIn     bool
	IsAuthChecking bool

	ActiveDomain    string
	ActiveJobID     string
	CurrentJobStats *domain.JobStats
	AuditStatus     AuditStatus
	Progress        Progress
	CurrentReport   *domain.Report
	// Error is the blocking error shown for the active audit.
	Error string

	RecentAudits  []RecentAudit
	Notifications []domain.Notification

	Jobs []domain.Job
	// Optimizing maps job id to the status text shown while an optimize
	// run is in flight.
	Optimizing map[string]string
	// Stalled holds ids of jobs that exceeded the polling budget.
	Stalled map[string]bool

	seqs map[string]uint64
}

// Initial returns the state before any session has been checked.
func Initial() State {
	return State{
		IsAuthChecking: true,
		AuditStatus:    AuditIdle,
	}
}

// Job returns the tracked job with id.
func (s State) Job(id string) (domain.Job, bool) {
	for _, j := range s.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return domain.Job{}, false
}

// PollableJobs returns the jobs the list poller should refresh: active
// ones, and completed ones whose stats have not arrived, minus stalled ones.
func (s State) PollableJobs() []domain.Job {
	var out []domain.Job
	for _, j := range s.Jobs {
		if j.NeedsPolling() && !s.Stalled[j.ID] {
			out = append(out, j)
		}
	}
	return out
}

// IsOptimizing reports whether an optimize run is in flight for id.
func (s State) IsOptimizing(id string) bool {
	_, ok := s.Optimizing[id]
	return ok
}

// LastSeq is the sequence number of the last merge applied for id.
func (s State) LastSeq(id string) uint64 {
	return s.seqs[id]
}

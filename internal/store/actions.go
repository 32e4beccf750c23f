package store

import (
	"time"

	"github.com/runnerr0/llmredi/internal/domain"
)

// Action is a state transition request handled by Reduce.
type Action interface {
	Kind() string
}

type (
	// Login stores an authenticated session.
	Login struct {
		User  domain.User
		Token string
	}
	// Logout clears the session and everything tied to it.
	Logout struct{}
	// AuthChecked ends the startup session check.
	AuthChecked struct{}

	// StartAudit makes domain/job the active audit and resets progress.
	StartAudit struct {
		Domain string
		JobID  string
	}
	// UpdateProgress sets one progress bucket. Values are clamped into
	// [0,100]; unknown stages are ignored.
	UpdateProgress struct {
		Stage Stage
		Value float64
	}
	// CompleteAudit finishes the active audit with report.
	CompleteAudit struct {
		Report *domain.Report
		ID     string
		At     time.Time
	}
	// FailAudit ends the active audit with a blocking error.
	FailAudit struct {
		Message string
	}
	// ClearError dismisses the blocking error.
	ClearError struct{}

	// AddNotification appends a notification.
	AddNotification struct {
		Notification domain.Notification
	}
	// RemoveNotification drops the notification with ID.
	RemoveNotification struct {
		ID string
	}

	// SetCurrentReport shows report for domain outside of an audit run.
	SetCurrentReport struct {
		Report *domain.Report
		Domain string
	}
	// UpdateUserProfile patches the current user; nil fields are kept.
	UpdateUserProfile struct {
		Name    *string
		Email   *string
		Company *string
	}
	// SetCurrentJob selects a job and its stats.
	SetCurrentJob struct {
		JobID string
		Stats *domain.JobStats
	}
	// UpdateJobStats merges non-zero fields into the current job stats.
	UpdateJobStats struct {
		Stats domain.JobStats
	}

	// SetJobs replaces the job list after a full reload.
	SetJobs struct {
		Jobs []domain.Job
	}
	// InsertJob prepends a just-started job.
	InsertJob struct {
		Job domain.Job
	}
	// MergeJob replaces the job with the same id. It is dropped when Seq is
	// not newer than the last merge applied for that id.
	MergeJob struct {
		Job domain.Job
		Seq uint64
	}
	// MarkStalled stops polling a job that exceeded the polling budget.
	MarkStalled struct {
		ID string
	}

	// StartOptimizing adds a job to the optimizing set.
	StartOptimizing struct {
		ID string
	}
	// SetOptimizationStatus updates the status text of an optimize run.
	SetOptimizationStatus struct {
		ID     string
		Status string
	}
	// FinishOptimizing removes a job from the optimizing set.
	FinishOptimizing struct {
		ID string
	}
)

func (Login) Kind() string                 { return "LOGIN" }
func (Logout) Kind() string                { return "LOGOUT" }
func (AuthChecked) Kind() string           { return "AUTH_CHECKED" }
func (StartAudit) Kind() string            { return "START_AUDIT" }
func (UpdateProgress) Kind() string        { return "UPDATE_PROGRESS" }
func (CompleteAudit) Kind() string         { return "COMPLETE_AUDIT" }
func (FailAudit) Kind() string             { return "FAIL_AUDIT" }
func (ClearError) Kind() string            { return "CLEAR_ERROR" }
func (AddNotification) Kind() string       { return "ADD_NOTIFICATION" }
func (RemoveNotification) Kind() string    { return "REMOVE_NOTIFICATION" }
func (SetCurrentReport) Kind() string      { return "SET_CURRENT_REPORT" }
func (UpdateUserProfile) Kind() string     { return "UPDATE_USER_PROFILE" }
func (SetCurrentJob) Kind() string         { return "SET_CURRENT_JOB" }
func (UpdateJobStats) Kind() string        { return "UPDATE_JOB_STATS" }
func (SetJobs) Kind() string               { return "SET_JOBS" }
func (InsertJob) Kind() string             { return "INSERT_JOB" }
func (MergeJob) Kind() string              { return "MERGE_JOB" }
func (MarkStalled) Kind() string           { return "MARK_STALLED" }
func (StartOptimizing) Kind() string       { return "START_OPTIMIZING" }
func (SetOptimizationStatus) Kind() string { return "SET_OPTIMIZATION_STATUS" }
func (FinishOptimizing) Kind() string      { return "FINISH_OPTIMIZING" }

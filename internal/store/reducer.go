package store

import (
	"math"

	"github.com/runnerr0/llmredi/internal/domain"
)

// defaultAuditScore is recorded for a completed audit whose report has no score.
const defaultAuditScore = 85.0

// Reduce returns the state that results from applying a to s. It is pure:
// s is never modified and unknown actions return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Login:
		u := a.User
		s.CurrentUser = &u
		s.AuthToken = a.Token
		s.IsLoggedIn = true

	case Logout:
		s.CurrentUser = nil
		s.AuthToken = ""
		s.IsLoggedIn = false
		s.IsAuthChecking = false
		s.ActiveDomain = ""
		s.ActiveJobID = ""
		s.CurrentJobStats = nil
		s.AuditStatus = AuditIdle
		s.CurrentReport = nil
		s.Error = ""
		s.Jobs = nil
		s.Optimizing = nil
		s.Stalled = nil
		s.seqs = nil

	case AuthChecked:
		s.IsAuthChecking = false

	case StartAudit:
		s.ActiveDomain = a.Domain
		s.ActiveJobID = a.JobID
		s.AuditStatus = AuditProcessing
		s.Progress = Progress{}
		s.Error = ""

	case UpdateProgress:
		if p, ok := s.Progress.with(a.Stage, clampPercent(a.Value)); ok {
			s.Progress = p
		}

	case CompleteAudit:
		score := defaultAuditScore
		if a.Report != nil && a.Report.LLMReadinessScore != 0 {
			score = a.Report.LLMReadinessScore
		}
		s.AuditStatus = AuditCompleted
		s.CurrentReport = a.Report
		recent := make([]RecentAudit, 0, MaxRecentAudits)
		recent = append(recent, RecentAudit{
			ID:     a.ID,
			Domain: s.ActiveDomain,
			Date:   a.At,
			Score:  score,
			Status: string(AuditCompleted),
		})
		for _, r := range s.RecentAudits {
			if len(recent) == MaxRecentAudits {
				break
			}
			recent = append(recent, r)
		}
		s.RecentAudits = recent

	case FailAudit:
		s.AuditStatus = AuditError
		s.Error = a.Message

	case ClearError:
		s.Error = ""

	case AddNotification:
		n := make([]domain.Notification, len(s.Notifications), len(s.Notifications)+1)
		copy(n, s.Notifications)
		s.Notifications = append(n, a.Notification)

	case RemoveNotification:
		n := make([]domain.Notification, 0, len(s.Notifications))
		for _, existing := range s.Notifications {
			if existing.ID != a.ID {
				n = append(n, existing)
			}
		}
		s.Notifications = n

	case SetCurrentReport:
		s.CurrentReport = a.Report
		s.ActiveDomain = a.Domain

	case UpdateUserProfile:
		if s.CurrentUser == nil {
			break
		}
		u := *s.CurrentUser
		if a.Name != nil {
			u.Name = *a.Name
		}
		if a.Email != nil {
			u.Email = *a.Email
		}
		if a.Company != nil {
			u.Company = *a.Company
		}
		s.CurrentUser = &u

	case SetCurrentJob:
		s.ActiveJobID = a.JobID
		s.CurrentJobStats = a.Stats

	case UpdateJobStats:
		s.CurrentJobStats = mergeStats(s.CurrentJobStats, a.Stats)

	case SetJobs:
		jobs := make([]domain.Job, len(a.Jobs))
		for i, j := range a.Jobs {
			jobs[i] = j.Clone()
		}
		s.Jobs = jobs

	case InsertJob:
		jobs := make([]domain.Job, 0, len(s.Jobs)+1)
		jobs = append(jobs, a.Job.Clone())
		for _, j := range s.Jobs {
			if j.ID != a.Job.ID {
				jobs = append(jobs, j)
			}
		}
		s.Jobs = jobs

	case MergeJob:
		if a.Seq <= s.seqs[a.Job.ID] {
			break
		}
		idx := -1
		for i, j := range s.Jobs {
			if j.ID == a.Job.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		jobs := make([]domain.Job, len(s.Jobs))
		copy(jobs, s.Jobs)
		jobs[idx] = a.Job.Clone()
		s.Jobs = jobs
		s.seqs = withValue(s.seqs, a.Job.ID, a.Seq)

	case MarkStalled:
		idx := -1
		for i, j := range s.Jobs {
			if j.ID == a.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		s.Stalled = withValue(s.Stalled, a.ID, true)
		if s.Jobs[idx].Status.Active() {
			jobs := make([]domain.Job, len(s.Jobs))
			copy(jobs, s.Jobs)
			jobs[idx].Status = domain.StatusStalled
			s.Jobs = jobs
		}

	case StartOptimizing:
		s.Optimizing = withValue(s.Optimizing, a.ID, "Starting optimization...")

	case SetOptimizationStatus:
		if _, ok := s.Optimizing[a.ID]; ok {
			s.Optimizing = withValue(s.Optimizing, a.ID, a.Status)
		}

	case FinishOptimizing:
		if _, ok := s.Optimizing[a.ID]; ok {
			m := make(map[string]string, len(s.Optimizing))
			for k, v := range s.Optimizing {
				if k != a.ID {
					m[k] = v
				}
			}
			s.Optimizing = m
		}
	}
	return s
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// withValue returns a copy of m with k set to v.
func withValue[V any](m map[string]V, k string, v V) map[string]V {
	out := make(map[string]V, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}

func mergeStats(cur *domain.JobStats, patch domain.JobStats) *domain.JobStats {
	var out domain.JobStats
	if cur != nil {
		out = *cur
	}
	if patch.PagesScraped != nil {
		n := *patch.PagesScraped
		out.PagesScraped = &n
	}
	if patch.AssetsDownloaded != 0 {
		out.AssetsDownloaded = patch.AssetsDownloaded
	}
	if patch.TotalURLs != 0 {
		out.TotalURLs = patch.TotalURLs
	}
	if patch.ErrorsCount != 0 {
		out.ErrorsCount = patch.ErrorsCount
	}
	if patch.CurrentReport != nil {
		out.CurrentReport = patch.CurrentReport
	}
	if patch.NewReport != nil {
		out.NewReport = patch.NewReport
	}
	return &out
}

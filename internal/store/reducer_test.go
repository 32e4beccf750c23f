package store

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/llmredi/internal/domain"
)

func intPtr(n int) *int { return &n }

func TestReduce_UpdateProgressClamps(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		value float64
		want  float64
	}{
		{"in range", StageScraping, 42.5, 42.5},
		{"above", StageInitialAudit, 250, 100},
		{"below", StageOptimizing, -3, 0},
		{"nan", StageFinalAudit, math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reduce(Initial(), UpdateProgress{Stage: tt.stage, Value: tt.value})
			got, ok := s.Progress.Get(tt.stage)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReduce_UpdateProgressUnknownStage(t *testing.T) {
	s := Reduce(Initial(), UpdateProgress{Stage: StageScraping, Value: 10})
	next := Reduce(s, UpdateProgress{Stage: "publishing", Value: 50})
	assert.Equal(t, s.Progress, next.Progress)
}

func TestReduce_LoginLogout(t *testing.T) {
	s := Reduce(Initial(), Login{User: domain.User{Email: "a@b.com", Name: "A"}, Token: "t1"})
	assert.True(t, s.IsLoggedIn)
	assert.Equal(t, "t1", s.AuthToken)
	require.NotNil(t, s.CurrentUser)
	assert.Equal(t, "A", s.CurrentUser.Name)

	s = Reduce(s, StartAudit{Domain: "https://a.com", JobID: "j1"})
	s = Reduce(s, InsertJob{Job: domain.Job{ID: "j1", Status: domain.StatusPending}})
	s = Reduce(s, StartOptimizing{ID: "j1"})

	out := Reduce(s, Logout{})
	assert.False(t, out.IsLoggedIn)
	assert.False(t, out.IsAuthChecking)
	assert.Nil(t, out.CurrentUser)
	assert.Empty(t, out.AuthToken)
	assert.Empty(t, out.ActiveDomain)
	assert.Empty(t, out.ActiveJobID)
	assert.Nil(t, out.CurrentReport)
	assert.Equal(t, AuditIdle, out.AuditStatus)
	assert.Empty(t, out.Jobs)
	assert.False(t, out.IsOptimizing("j1"))
}

func TestReduce_StartAuditResetsProgress(t *testing.T) {
	s := Reduce(Initial(), UpdateProgress{Stage: StageScraping, Value: 70})
	s = Reduce(s, FailAudit{Message: "old"})
	s = Reduce(s, StartAudit{Domain: "https://b.com", JobID: "j2"})

	assert.Equal(t, Progress{}, s.Progress)
	assert.Equal(t, AuditProcessing, s.AuditStatus)
	assert.Equal(t, "j2", s.ActiveJobID)
	assert.Empty(t, s.Error)
}

func TestReduce_CompleteAudit(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Reduce(Initial(), StartAudit{Domain: "https://a.com", JobID: "j1"})
	s = Reduce(s, CompleteAudit{ID: "r1", At: at})

	assert.Equal(t, AuditCompleted, s.AuditStatus)
	require.Len(t, s.RecentAudits, 1)
	assert.Equal(t, RecentAudit{ID: "r1", Domain: "https://a.com", Date: at, Score: 85, Status: "completed"}, s.RecentAudits[0])

	var report domain.Report
	require.NoError(t, json.Unmarshal([]byte(`{"llm_readiness_score":67}`), &report))
	s = Reduce(s, CompleteAudit{Report: &report, ID: "r2", At: at})
	assert.Equal(t, 67.0, s.RecentAudits[0].Score)
	assert.Same(t, &report, s.CurrentReport)
}

func TestReduce_RecentAuditsBounded(t *testing.T) {
	s := Initial()
	for i := 0; i < 8; i++ {
		s = Reduce(s, CompleteAudit{ID: string(rune('a' + i))})
	}
	require.Len(t, s.RecentAudits, MaxRecentAudits)
	assert.Equal(t, "h", s.RecentAudits[0].ID)
	assert.Equal(t, "d", s.RecentAudits[4].ID)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	base := Reduce(Initial(), SetJobs{Jobs: []domain.Job{
		{ID: "j1", Status: domain.StatusRunning},
		{ID: "j2", Status: domain.StatusRunning},
	}})
	base = Reduce(base, AddNotification{Notification: domain.Notification{ID: "n1"}})

	next := Reduce(base, MergeJob{Job: domain.Job{ID: "j1", Status: domain.StatusCompleted}, Seq: 1})
	next = Reduce(next, MarkStalled{ID: "j2"})
	next = Reduce(next, RemoveNotification{ID: "n1"})

	assert.Equal(t, domain.StatusRunning, base.Jobs[0].Status)
	assert.Equal(t, domain.StatusRunning, base.Jobs[1].Status)
	assert.Len(t, base.Notifications, 1)
	assert.Empty(t, base.Stalled)

	assert.Equal(t, domain.StatusCompleted, next.Jobs[0].Status)
	assert.Equal(t, domain.StatusStalled, next.Jobs[1].Status)
	assert.Empty(t, next.Notifications)
}

func TestReduce_MergeJobSequence(t *testing.T) {
	s := Reduce(Initial(), SetJobs{Jobs: []domain.Job{{ID: "j1", Status: domain.StatusRunning, Progress: 10}}})

	s = Reduce(s, MergeJob{Job: domain.Job{ID: "j1", Status: domain.StatusRunning, Progress: 60}, Seq: 5})
	// A response to an earlier request arrives late.
	s = Reduce(s, MergeJob{Job: domain.Job{ID: "j1", Status: domain.StatusRunning, Progress: 30}, Seq: 3})

	job, ok := s.Job("j1")
	require.True(t, ok)
	assert.Equal(t, 60.0, job.Progress)
	assert.Equal(t, uint64(5), s.LastSeq("j1"))

	s = Reduce(s, MergeJob{Job: domain.Job{ID: "unknown"}, Seq: 9})
	assert.Len(t, s.Jobs, 1)
}

func TestReduce_PollableJobs(t *testing.T) {
	s := Reduce(Initial(), SetJobs{Jobs: []domain.Job{
		{ID: "pending", Status: domain.StatusPending},
		{ID: "done", Status: domain.StatusCompleted, Stats: &domain.JobStats{PagesScraped: intPtr(12)}},
		{ID: "lagging", Status: domain.StatusCompleted},
		{ID: "failed", Status: domain.StatusFailed},
		{ID: "slow", Status: domain.StatusCompleted, Stats: &domain.JobStats{}},
	}})
	s = Reduce(s, MarkStalled{ID: "slow"})

	var ids []string
	for _, j := range s.PollableJobs() {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"pending", "lagging"}, ids)

	slow, _ := s.Job("slow")
	assert.Equal(t, domain.StatusCompleted, slow.Status, "completed jobs keep their status when stalled")
}

func TestReduce_InsertJobPrepends(t *testing.T) {
	s := Reduce(Initial(), SetJobs{Jobs: []domain.Job{{ID: "old"}}})
	s = Reduce(s, InsertJob{Job: domain.Job{ID: "new", Status: domain.StatusPending}})
	require.Len(t, s.Jobs, 2)
	assert.Equal(t, "new", s.Jobs[0].ID)
}

func TestReduce_Optimizing(t *testing.T) {
	s := Reduce(Initial(), StartOptimizing{ID: "j1"})
	assert.Equal(t, "Starting optimization...", s.Optimizing["j1"])

	s = Reduce(s, SetOptimizationStatus{ID: "j1", Status: "Optimizing..."})
	assert.Equal(t, "Optimizing...", s.Optimizing["j1"])

	s = Reduce(s, SetOptimizationStatus{ID: "other", Status: "Optimizing..."})
	assert.False(t, s.IsOptimizing("other"))

	s = Reduce(s, FinishOptimizing{ID: "j1"})
	assert.False(t, s.IsOptimizing("j1"))
}

func TestReduce_ProfileAndStats(t *testing.T) {
	s := Reduce(Initial(), UpdateUserProfile{Name: strPtr("ignored")})
	assert.Nil(t, s.CurrentUser)

	s = Reduce(s, Login{User: domain.User{Name: "A", Company: "Acme"}, Token: "t"})
	s = Reduce(s, UpdateUserProfile{Name: strPtr("B")})
	assert.Equal(t, "B", s.CurrentUser.Name)
	assert.Equal(t, "Acme", s.CurrentUser.Company)

	s = Reduce(s, SetCurrentJob{JobID: "j1", Stats: &domain.JobStats{TotalURLs: 40}})
	s = Reduce(s, UpdateJobStats{Stats: domain.JobStats{PagesScraped: intPtr(10)}})
	assert.Equal(t, 40, s.CurrentJobStats.TotalURLs)
	assert.Equal(t, 10, *s.CurrentJobStats.PagesScraped)
}

func strPtr(s string) *string { return &s }

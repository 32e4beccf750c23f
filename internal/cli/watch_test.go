package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/poller"
)

const optimizedJobJSON = `{
	"job_id": "j1",
	"domain": "https://example.com",
	"status": "completed",
	"progress": 100,
	"stats": {
		"pages_scraped": 12,
		"current_report": {"llm_readiness_score": 60, "letter_grade": "D"},
		"new_report": {"llm_readiness_score": 75, "letter_grade": "C"}
	}
}`

func TestWatch_PollsUntilJobsSettle(t *testing.T) {
	var polls atomic.Int32
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/jobs":
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			_, _ = io.WriteString(w, `{"jobs":[
				{"job_id":"j1","domain":"https://a.com","status":"processing"},
				{"job_id":"j2","domain":"https://b.com","status":"failed"}
			]}`)
		case "/api/jobs/j1":
			if polls.Add(1) < 2 {
				_, _ = io.WriteString(w, `{"job_id":"j1","domain":"https://a.com","status":"processing","progress":50}`)
				return
			}
			_, _ = io.WriteString(w, `{"job_id":"j1","domain":"https://a.com","status":"completed","progress":100,"stats":{"pages_scraped":3}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	te.seedSession(t)
	cmd := &WatchCommand{Limit: 10, globals: &GlobalFlags{}}

	require.NoError(t, cmd.executeWith(context.Background(), te.env))

	assert.Contains(t, te.stdout.String(), "Watching 1 unsettled job(s)")
	assert.Contains(t, te.stderr.String(), "j1 (https://a.com): processing → completed")
	job, ok := te.store.State().Job("j1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Empty(t, te.store.State().PollableJobs())
	assert.Contains(t, te.stdout.String(), "https://b.com")
}

func TestWatch_NothingToPoll(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/jobs", r.URL.Path)
		_, _ = io.WriteString(w, `{"jobs":[`+optimizedJobJSON+`]}`)
	})
	te.seedSession(t)
	te.json = true

	require.NoError(t, (&WatchCommand{globals: &GlobalFlags{}}).executeWith(context.Background(), te.env))

	var jobs []domain.Job
	require.NoError(t, json.Unmarshal(te.stdout.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].Optimized())
}

func TestOptimize_WaitsForNewReport(t *testing.T) {
	var polls atomic.Int32
	var optimized atomic.Bool
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/optimize":
			assert.Equal(t, http.MethodPost, r.Method)
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "j1", body["job_id"])
			optimized.Store(true)
			_, _ = io.WriteString(w, `{"message":"Optimization started"}`)
		case "/api/jobs/j1":
			if !optimized.Load() || polls.Add(1) < 3 {
				_, _ = io.WriteString(w, `{"job_id":"j1","domain":"https://example.com","status":"completed","stats":{"pages_scraped":1,"current_report":{"llm_readiness_score":60}}}`)
				return
			}
			_, _ = io.WriteString(w, optimizedJobJSON)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	te.seedSession(t)
	cmd := &OptimizeCommand{Wait: true, globals: &GlobalFlags{}}

	require.NoError(t, cmd.executeWith(context.Background(), te.env, []string{"j1"}))

	assert.Contains(t, te.stderr.String(), poller.OptimizeFinalizing)
	assert.Contains(t, te.stderr.String(), "✓ Optimization completed for https://example.com!")
	assert.Contains(t, te.stdout.String(), "Before:  60.0 (D)")
	assert.Contains(t, te.stdout.String(), "After:   75.0 (C)")
	assert.Contains(t, te.stdout.String(), "Change:  +15.0% (25% relative)")
	assert.False(t, te.store.State().IsOptimizing("j1"))
}

func TestOptimize_WithoutWait(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/optimize":
			_, _ = io.WriteString(w, `{"message":"Queued"}`)
		case "/api/jobs/j1":
			_, _ = io.WriteString(w, `{"job_id":"j1","domain":"https://example.com","status":"completed"}`)
		}
	})
	te.seedSession(t)

	require.NoError(t, (&OptimizeCommand{globals: &GlobalFlags{}}).executeWith(context.Background(), te.env, []string{"j1"}))

	assert.Contains(t, te.stdout.String(), "Optimization started... https://example.com")
	assert.Contains(t, te.stdout.String(), "Queued")
	assert.Equal(t, poller.OptimizeStarted, te.store.State().Optimizing["j1"])
}

func TestOptimize_RejectsUnfinishedJob(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/optimize" {
			t.Error("optimize must not be requested for a running job")
		}
		_, _ = io.WriteString(w, `{"job_id":"j1","status":"processing"}`)
	})
	te.seedSession(t)

	err := (&OptimizeCommand{globals: &GlobalFlags{}}).executeWith(context.Background(), te.env, []string{"j1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only completed jobs can be optimized")
	assert.False(t, te.store.State().IsOptimizing("j1"))
}

func TestOptimize_AlreadyOptimized(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/optimize" {
			t.Error("optimize must not be requested twice")
		}
		_, _ = io.WriteString(w, optimizedJobJSON)
	})
	te.seedSession(t)

	require.NoError(t, (&OptimizeCommand{globals: &GlobalFlags{}}).executeWith(context.Background(), te.env, []string{"j1"}))
	assert.Contains(t, te.stdout.String(), "already optimized")
}

func TestOptimize_StartFailureClearsOptimizing(t *testing.T) {
	te := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/optimize" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"optimizer offline"}`)
			return
		}
		_, _ = io.WriteString(w, `{"job_id":"j1","status":"completed"}`)
	})
	te.seedSession(t)

	err := (&OptimizeCommand{globals: &GlobalFlags{}}).executeWith(context.Background(), te.env, []string{"j1"})
	require.Error(t, err)
	assert.Equal(t, "start optimization: optimizer offline", err.Error())
	assert.False(t, te.store.State().IsOptimizing("j1"))
}

package poller

import (
	"context"
	"errors"
	"sync"

	"github.com/runnerr0/llmredi/internal/domain"
)

var errBackend = errors.New("backend unavailable")

// fakeFetcher serves scripted job responses. Each id returns the next
// entry of its script on every call, repeating the last one.
type fakeFetcher struct {
	mu      sync.Mutex
	scripts map[string][]fakeResult
	calls   map[string]int
}

type fakeResult struct {
	job domain.Job
	err error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{scripts: map[string][]fakeResult{}, calls: map[string]int{}}
}

func (f *fakeFetcher) script(id string, results ...fakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = results
}

func (f *fakeFetcher) GetJobDetails(_ context.Context, id string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[id]
	f.calls[id] = n + 1

	script := f.scripts[id]
	if len(script) == 0 {
		return nil, errBackend
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	r := script[n]
	if r.err != nil {
		return nil, r.err
	}
	job := r.job.Clone()
	return &job, nil
}

func (f *fakeFetcher) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func ok(job domain.Job) fakeResult { return fakeResult{job: job} }

func fail(err error) fakeResult { return fakeResult{err: err} }

func intPtr(n int) *int { return &n }

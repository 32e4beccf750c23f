package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
)

// JobFilter narrows ListJobs. Zero values are omitted from the query.
type JobFilter struct {
	Status domain.JobStatus
	Limit  int
}

func (f JobFilter) endpoint() string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(q) == 0 {
		return "/jobs"
	}
	return "/jobs?" + q.Encode()
}

// StartJobResponse is the body of POST /scrape.
type StartJobResponse struct {
	JobID    string           `json:"job_id"`
	Status   domain.JobStatus `json:"status"`
	Progress float64          `json:"progress"`
	Message  string           `json:"message,omitempty"`
}

// Job returns the optimistic job entry for a just-started scrape. Status
// defaults to pending when the backend did not report one.
func (r StartJobResponse) Job(domainURL string, now time.Time) domain.Job {
	status := r.Status
	if status == "" {
		status = domain.StatusPending
	}
	return domain.Job{
		ID:        r.JobID,
		Domain:    domainURL,
		Status:    status,
		Progress:  r.Progress,
		CreatedAt: domain.Timestamp{Time: now.UTC()},
	}
}

// StartJob submits a domain for scraping.
func (c *Client) StartJob(ctx context.Context, domainURL string, headless bool) (*StartJobResponse, error) {
	body := struct {
		Domain   string `json:"domain"`
		Headless bool   `json:"headless"`
	}{domainURL, headless}

	var resp StartJobResponse
	if err := c.Do(ctx, http.MethodPost, "/scrape", body, &resp); err != nil {
		return nil, err
	}
	if resp.JobID == "" {
		return nil, fmt.Errorf("scrape response for %s has no job_id", domainURL)
	}
	return &resp, nil
}

// ListJobs fetches the job list.
func (c *Client) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	var resp struct {
		Jobs []domain.Job `json:"jobs"`
	}
	if err := c.Do(ctx, http.MethodGet, filter.endpoint(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJobDetails fetches one job.
func (c *Client) GetJobDetails(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := c.Do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return &job, nil
}

// OptimizeResponse is the body of POST /optimize.
type OptimizeResponse struct {
	Message string           `json:"message,omitempty"`
	Status  domain.JobStatus `json:"status,omitempty"`
}

// OptimizeJob asks the backend to generate an optimized report for a job.
func (c *Client) OptimizeJob(ctx context.Context, jobID string) (*OptimizeResponse, error) {
	body := struct {
		JobID string `json:"job_id"`
	}{jobID}

	var resp OptimizeResponse
	if err := c.Do(ctx, http.MethodPost, "/optimize", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadJob streams the job artifact into w and returns the byte count.
func (c *Client) DownloadJob(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID)+"/download", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.notifyUnauthorized()
		}
		return 0, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Download failed: %d", resp.StatusCode),
		}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("write download: %w", err)
	}
	return n, nil
}

// ListDomains fetches the domains known to the backend. The response is
// either a bare array or {"domains": [...]}; entries are strings or objects
// with a "domain" field.
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/domains", nil, &raw); err != nil {
		return nil, err
	}
	items, err := unwrapList(raw, "domains", "data")
	if err != nil {
		return nil, fmt.Errorf("failed to parse /domains response: %w", err)
	}

	domains := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			domains = append(domains, s)
			continue
		}
		var obj struct {
			Domain string `json:"domain"`
		}
		if json.Unmarshal(item, &obj) == nil && obj.Domain != "" {
			domains = append(domains, obj.Domain)
		}
	}
	return domains, nil
}

// WaitForJobCompletion polls a job every interval until it completes,
// fails or maxWait elapses. A failed job yields a *JobFailedError. A
// non-positive maxWait waits until ctx ends.
func (c *Client) WaitForJobCompletion(ctx context.Context, jobID string, interval, maxWait time.Duration) (*domain.Job, error) {
	if maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxWait)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.GetJobDetails(ctx, jobID)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrJobTimeout
			}
			c.log.Error("Error checking job status", logger.String("job_id", jobID), logger.Error(err))
			return nil, err
		}

		switch job.Status {
		case domain.StatusCompleted:
			return job, nil
		case domain.StatusFailed:
			reason := job.Error
			if reason == "" {
				reason = "Unknown error"
			}
			return nil, &JobFailedError{JobID: jobID, Reason: reason}
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrJobTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/poller"
	"github.com/runnerr0/llmredi/internal/report"
	"github.com/runnerr0/llmredi/internal/store"
)

// Execute implements the go-flags Commander interface for DomainsCommand.
func (c *DomainsCommand) Execute(args []string) error {
	return runCommand(c.globals, c.executeWith)
}

func (c *DomainsCommand) executeWith(ctx context.Context, e *env) error {
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	domains, err := e.client.ListDomains(ctx)
	if err != nil {
		return fmt.Errorf("list domains: %w", err)
	}

	if e.json {
		return e.printJSON(domains)
	}
	if len(domains) == 0 {
		e.printf("No domains yet. Start one with `llmredi scrape <domain>`.\n")
		return nil
	}
	for _, d := range domains {
		e.printf("%s\n", d)
	}
	return nil
}

// Execute implements the go-flags Commander interface for ScrapeCommand.
func (c *ScrapeCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e, args)
	})
}

func (c *ScrapeCommand) executeWith(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("scrape requires exactly one domain argument")
	}
	target := api.NormalizeDomain(args[0])
	if target == "" {
		return errors.New("domain must not be empty")
	}
	if err := e.requireSession(ctx); err != nil {
		return err
	}

	resp, err := e.client.StartJob(ctx, target, !c.NoHeadless)
	if err != nil {
		return fmt.Errorf("start audit: %w", err)
	}
	job := resp.Job(target, time.Now())
	e.store.Dispatch(store.InsertJob{Job: job})
	e.store.Dispatch(store.StartAudit{Domain: target, JobID: job.ID})
	e.log.Info("Audit started", logger.String("job_id", job.ID), logger.String("domain", target))

	if !c.Wait {
		if e.json {
			return e.printJSON(job)
		}
		e.printf("Started job %s for %s (%s)\n", job.ID, target, job.Status)
		e.printf("Follow it with `llmredi watch` or `llmredi job %s`.\n", job.ID)
		return nil
	}

	if !e.json {
		e.printf("Started job %s for %s\n", job.ID, target)
	}
	return c.follow(ctx, e, job.ID)
}

// follow runs the active job watcher until the audit ends or the wait
// timeout passes, printing progress as it moves.
func (c *ScrapeCommand) follow(ctx context.Context, e *env, jobID string) error {
	if e.cfg.Polling.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Polling.WaitTimeout)
		defer cancel()
	}

	if !e.json {
		detach := e.store.Subscribe(func(prev, next store.State, _ store.Action) {
			if next.Progress.Scraping != prev.Progress.Scraping {
				fmt.Fprintf(e.errOut, "  progress: %.0f%%\n", next.Progress.Scraping)
			}
		})
		defer detach()
	}

	ctrl := poller.NewController(e.store, e.client, pollerConfig(e.cfg), e.log, nil)
	defer ctrl.Stop()
	if err := ctrl.WatchActiveJob(ctx).Wait(); err != nil {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return api.ErrJobTimeout
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st := e.store.State()
	switch st.AuditStatus {
	case store.AuditError:
		// The failure was already shown as a notification.
		e.store.Dispatch(store.ClearError{})
		return fmt.Errorf("audit of %s did not complete", st.ActiveDomain)
	case store.AuditCompleted:
		job, _ := st.Job(jobID)
		if e.json {
			return e.printJSON(job)
		}
		e.printf("Audit of %s completed.\n", st.ActiveDomain)
		if st.CurrentReport == nil {
			return report.ErrNoReport
		}
		printReportSummary(e, st.CurrentReport)
	}
	return nil
}

// Execute implements the go-flags Commander interface for JobsCommand.
func (c *JobsCommand) Execute(args []string) error {
	return runCommand(c.globals, c.executeWith)
}

func (c *JobsCommand) executeWith(ctx context.Context, e *env) error {
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	jobs, err := e.client.ListJobs(ctx, api.JobFilter{
		Status: domain.JobStatus(c.Status),
		Limit:  c.Limit,
	})
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	e.store.Dispatch(store.SetJobs{Jobs: jobs})

	if e.json {
		return e.printJSON(jobs)
	}
	if len(jobs) == 0 {
		e.printf("No jobs found.\n")
		return nil
	}
	printJobsTable(e, jobs, nil)
	return nil
}

// printJobsTable renders jobs; optimizing maps job ids to optimize status text.
func printJobsTable(e *env, jobs []domain.Job, optimizing map[string]string) {
	t := e.newTable()
	t.AppendHeader(table.Row{"Job ID", "Domain", "Status", "Progress", "Pages", "Score", "Created"})
	for _, j := range jobs {
		status := string(j.Status)
		if text, ok := optimizing[j.ID]; ok {
			status = text
		} else if j.Optimized() {
			status += " (optimized)"
		}
		t.AppendRow(table.Row{
			j.ID,
			j.Domain,
			status,
			fmt.Sprintf("%.0f%%", j.Progress),
			pagesScraped(j),
			reportScore(j),
			formatCreated(j.CreatedAt),
		})
	}
	t.Render()
}

func pagesScraped(j domain.Job) string {
	if j.Stats == nil || j.Stats.PagesScraped == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *j.Stats.PagesScraped)
}

func reportScore(j domain.Job) string {
	if j.Stats == nil || j.Stats.CurrentReport == nil {
		return "-"
	}
	s := fmt.Sprintf("%.1f", j.Stats.CurrentReport.LLMReadinessScore)
	if j.Stats.NewReport != nil {
		s += fmt.Sprintf(" → %.1f", j.Stats.NewReport.LLMReadinessScore)
	}
	return s
}

func formatCreated(ts domain.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

// Execute implements the go-flags Commander interface for JobCommand.
func (c *JobCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e, args)
	})
}

func (c *JobCommand) executeWith(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("job requires exactly one job id argument")
	}
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	id := args[0]
	var job *domain.Job
	var err error
	if c.Wait {
		job, err = e.client.WaitForJobCompletion(ctx, id, e.cfg.Polling.JobInterval, e.cfg.Polling.WaitTimeout)
		var failed *api.JobFailedError
		if errors.As(err, &failed) {
			e.store.Notify(poller.FailureMessage(&domain.Job{ID: id, Error: failed.Reason}), domain.NotifyError, false)
			return fmt.Errorf("job %s did not complete", id)
		}
	} else {
		job, err = e.client.GetJobDetails(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("get job %s: %w", id, err)
	}
	e.store.Dispatch(store.SetCurrentJob{JobID: job.ID, Stats: job.Stats})

	if c.Report {
		if job.Stats == nil || job.Stats.CurrentReport == nil {
			return report.ErrNoReport
		}
		e.store.Dispatch(store.SetCurrentReport{Report: job.Stats.CurrentReport, Domain: job.Domain})
		if e.json {
			return e.printJSON(job.Stats.CurrentReport)
		}
		e.printf("Report for %s\n\n", job.Domain)
		printReport(e, job.Stats.CurrentReport)
		return nil
	}

	if e.json {
		return e.printJSON(job)
	}
	printJob(e, job)
	return nil
}

func printJob(e *env, j *domain.Job) {
	e.printf("Job:       %s\n", j.ID)
	e.printf("Domain:    %s\n", j.Domain)
	e.printf("Status:    %s\n", j.Status)
	e.printf("Progress:  %.0f%%\n", j.Progress)
	e.printf("Created:   %s\n", formatCreated(j.CreatedAt))
	if j.Status == domain.StatusFailed {
		e.printf("Error:     %s\n", poller.FailureMessage(j))
	}
	if j.Stats == nil {
		return
	}
	e.printf("\n")
	e.printf("Pages scraped:     %s\n", pagesScraped(*j))
	e.printf("Assets downloaded: %d\n", j.Stats.AssetsDownloaded)
	e.printf("Total URLs:        %d\n", j.Stats.TotalURLs)
	e.printf("Errors:            %d\n", j.Stats.ErrorsCount)
	if r := j.Stats.CurrentReport; r != nil {
		e.printf("\n")
		printReportSummary(e, r)
	}
	if j.Optimized() {
		e.printf("Optimized:         yes (see `llmredi compare %s`)\n", j.ID)
	}
}

func printReportSummary(e *env, r *domain.Report) {
	e.printf("LLM readiness:     %.1f (%s, %s)\n", r.LLMReadinessScore, gradeOrNA(r.LetterGrade), report.ScoreStatus(r.LLMReadinessScore))
}

func printReport(e *env, r *domain.Report) {
	printReportSummary(e, r)
	if r.LetterGradeDescriptive != "" {
		e.printf("%s\n", r.LetterGradeDescriptive)
	}
	if len(r.Categories) > 0 {
		e.printf("\n")
		t := e.newTable()
		t.AppendHeader(table.Row{"Category", "Score", "Max", "Percent", "Status"})
		for _, cat := range r.Categories {
			pct := report.Percent(cat.Score, cat.MaxScore)
			t.AppendRow(table.Row{cat.Name, cat.Score, cat.MaxScore, fmt.Sprintf("%.0f%%", pct), report.ScoreStatus(pct)})
		}
		t.Render()
	}
	printList(e, "Critical items", r.TopCriticalItems)
	printList(e, "Warnings", r.TopWarnings)
}

func printList(e *env, title string, items []string) {
	if len(items) == 0 {
		return
	}
	e.printf("\n%s:\n", title)
	for _, item := range items {
		e.printf("  - %s\n", item)
	}
}

func gradeOrNA(g string) string {
	if g == "" {
		return "N/A"
	}
	return g
}

// Execute implements the go-flags Commander interface for DownloadCommand.
func (c *DownloadCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e, args)
	})
}

func (c *DownloadCommand) executeWith(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("download requires exactly one job id argument")
	}
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	jobID := args[0]
	dest := c.Output
	if dest == "" {
		dest = jobID + ".zip"
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	n, err := e.client.DownloadJob(ctx, jobID, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", dest, cerr)
	}
	if err != nil {
		_ = os.Remove(dest)
		return err
	}

	if e.json {
		return e.printJSON(map[string]any{"job_id": jobID, "path": dest, "bytes": n})
	}
	e.printf("Saved %s (%s)\n", dest, formatBytes(n))
	return nil
}

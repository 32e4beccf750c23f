package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/runnerr0/llmredi/internal/report"
	"github.com/runnerr0/llmredi/internal/store"
)

// Execute implements the go-flags Commander interface for CompareCommand.
func (c *CompareCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e, args)
	})
}

func (c *CompareCommand) executeWith(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return errors.New("compare requires exactly one job id argument")
	}
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	job, err := e.client.GetJobDetails(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get job %s: %w", args[0], err)
	}
	e.store.Dispatch(store.SetCurrentJob{JobID: job.ID, Stats: job.Stats})

	cmp, err := report.ForJob(*job)
	if err != nil {
		return err
	}
	if e.json {
		return e.printJSON(cmp)
	}

	e.printf("Optimization results for %s\n\n", cmp.Domain)
	printOverall(e, cmp)

	if len(cmp.Categories) > 0 {
		e.printf("\n")
		t := e.newTable()
		t.AppendHeader(table.Row{"Category", "Before", "After", "Change", "Status"})
		for _, cat := range cmp.Categories {
			t.AppendRow(table.Row{
				cat.Name,
				fmt.Sprintf("%.0f%%", cat.Before.Percent),
				fmt.Sprintf("%.0f%%", cat.After.Percent),
				cat.Improvement,
				cat.After.Status,
			})
			for _, m := range cat.Metrics {
				t.AppendRow(table.Row{
					"  " + m.Name,
					fmt.Sprintf("%.0f%%", m.Before.Percent),
					fmt.Sprintf("%.0f%%", m.After.Percent),
					m.Improvement,
					m.After.Status,
				})
			}
		}
		t.Render()
		e.printf("Largest category change: %s\n", report.FormatDelta(cmp.MaxCategoryDelta()))
	}

	iss := cmp.Issues
	e.printf("\nIssues:  %d → %d (%d resolved, %s)\n", iss.Before.Total, iss.After.Total, iss.Resolved, iss.ResolutionRate)
	printList(e, "Key improvements", cmp.KeyImprovements)
	return nil
}

func printOverall(e *env, cmp *report.Comparison) {
	o := cmp.Overall
	e.printf("Before:  %.1f (%s) %s\n", o.Before.Score, o.Before.Grade, o.Before.Description)
	e.printf("After:   %.1f (%s) %s\n", o.After.Score, o.After.Grade, o.After.Description)
	e.printf("Change:  %s (%d%% relative)\n", o.Improvement, report.ImprovementPercentage(o.Before.Score, o.After.Score))
}

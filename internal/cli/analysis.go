package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/runnerr0/llmredi/internal/api"
	"github.com/runnerr0/llmredi/internal/logger"
	"github.com/runnerr0/llmredi/internal/report"
	"github.com/runnerr0/llmredi/internal/storage"
)

// Execute implements the go-flags Commander interface for AnalyzeCommand.
func (c *AnalyzeCommand) Execute(args []string) error {
	return runCommand(c.globals, func(ctx context.Context, e *env) error {
		return c.executeWith(ctx, e, args)
	})
}

func (c *AnalyzeCommand) executeWith(ctx context.Context, e *env, args []string) error {
	if !c.History && len(args) != 1 {
		return errors.New("analyze requires exactly one domain argument, or --history")
	}
	if err := e.requireSession(ctx); err != nil {
		return err
	}

	if c.History {
		history, err := e.client.AnalysisHistory(ctx)
		if err != nil {
			return fmt.Errorf("load analysis history: %w", err)
		}
		if e.json {
			return e.printJSON(history)
		}
		if len(history) == 0 {
			e.printf("No analyses yet.\n")
			return nil
		}
		t := e.newTable()
		t.AppendHeader(table.Row{"Analysis ID", "Domain", "Score", "Grade", "Date"})
		for _, a := range history {
			t.AppendRow(table.Row{a.AnalysisID, a.Domain, fmt.Sprintf("%.1f", a.Score()), a.Grade(), a.Timestamp})
		}
		t.Render()
		return nil
	}

	target := api.NormalizeDomain(args[0])
	if target == "" {
		return errors.New("domain must not be empty")
	}
	if !e.json {
		fmt.Fprintf(e.errOut, "Analyzing %s. This can take several minutes.\n", target)
	}
	result, err := e.client.AnalyzeLLMReadiness(ctx, target)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", target, err)
	}
	e.log.Info("Readiness analysis finished", logger.String("domain", target), logger.Float64("score", result.Score()))

	if e.json {
		return e.printJSON(result)
	}
	printReadiness(e, result)
	return nil
}

func printReadiness(e *env, a *api.ReadinessAnalysis) {
	e.printf("LLM readiness for %s\n\n", a.Domain)
	e.printf("Score:       %.1f (%s)\n", a.Score(), report.ScoreStatus(a.Score()))
	e.printf("Grade:       %s\n", a.Grade())
	e.printf("Confidence:  %s\n", a.Confidence())

	scores := a.CategoryScores()
	if len(scores) > 0 {
		names := make([]string, 0, len(scores))
		for name := range scores {
			names = append(names, name)
		}
		sort.Strings(names)

		e.printf("\n")
		t := e.newTable()
		t.AppendHeader(table.Row{"Category", "Score", "Status"})
		for _, name := range names {
			t.AppendRow(table.Row{name, scores[name], report.ScoreStatus(scores[name])})
		}
		t.Render()
	}

	switch {
	case a.Consensus != nil && a.Consensus.FinalConsolidatedSummary != "":
		e.printf("\n%s\n", a.Consensus.FinalConsolidatedSummary)
	case a.Master != nil && a.Master.Summary != "":
		e.printf("\n%s\n", a.Master.Summary)
	}
}

// Execute implements the go-flags Commander interface for BrandCommand.
func (c *BrandCommand) Execute(args []string) error {
	return runCommand(c.globals, c.executeWith)
}

func (c *BrandCommand) executeWith(ctx context.Context, e *env) error {
	if !c.History && (c.Domain == "" || c.Brand == "") {
		return errors.New("brand requires --domain and --brand, or --history")
	}
	if err := e.requireSession(ctx); err != nil {
		return err
	}

	if c.History {
		history, err := e.client.BrandAnalysisHistory(ctx)
		if err != nil {
			return fmt.Errorf("load brand history: %w", err)
		}
		if e.json {
			return e.printJSON(history)
		}
		if len(history) == 0 {
			e.printf("No brand analyses yet.\n")
			return nil
		}
		t := e.newTable()
		t.AppendHeader(table.Row{"Analysis ID", "Brand", "Domain", "Accuracy", "Date"})
		for _, b := range history {
			t.AppendRow(table.Row{b.AnalysisID, b.Brand, b.Domain, fmt.Sprintf("%.1f%%", b.EffectiveSummary().AccuracyPercent), b.Timestamp})
		}
		t.Render()
		return nil
	}

	target := api.NormalizeDomain(c.Domain)
	result, err := e.client.AnalyzeBrand(ctx, target, c.Brand)
	if err != nil {
		return fmt.Errorf("analyze brand %s: %w", c.Brand, err)
	}
	if e.json {
		return e.printJSON(result)
	}
	e.printf("Brand knowledge for %s (%s)\n\n", nonEmpty(result.Brand, c.Brand), nonEmpty(result.Domain, target))
	printAccuracy(e, result.EffectiveSummary())
	printAnswers(e, result.Answers())
	return nil
}

// Execute implements the go-flags Commander interface for CompetitionCommand.
func (c *CompetitionCommand) Execute(args []string) error {
	return runCommand(c.globals, c.executeWith)
}

func (c *CompetitionCommand) executeWith(ctx context.Context, e *env) error {
	switch {
	case c.Latest:
		return c.latest(ctx, e)
	case c.History:
		return c.history(ctx, e)
	case c.Domain == "" || c.Brand == "":
		return errors.New("competition requires --domain and --brand, or --latest or --history")
	}
	if err := e.requireSession(ctx); err != nil {
		return err
	}

	target := api.NormalizeDomain(c.Domain)
	if !e.json {
		fmt.Fprintf(e.errOut, "Analyzing %s against its competitors. This can take several minutes.\n", c.Brand)
	}
	result, err := e.client.StartCompetitionAnalysis(ctx, target, c.Brand)
	if err != nil {
		return fmt.Errorf("competition analysis for %s: %w", c.Brand, err)
	}
	if err := storage.SetJSON(ctx, e.storage, storage.KeyLatestCompetitionAnalysis, result); err != nil {
		e.log.Warn("Failed to save competition analysis", logger.Error(err))
	}

	if e.json {
		return e.printJSON(result)
	}
	printCompetition(e, result)
	return nil
}

// latest reads the saved result without contacting the server.
func (c *CompetitionCommand) latest(ctx context.Context, e *env) error {
	var result api.CompetitionAnalysis
	found, err := storage.GetJSON(ctx, e.storage, storage.KeyLatestCompetitionAnalysis, &result)
	if err != nil {
		return fmt.Errorf("read saved competition analysis: %w", err)
	}
	if !found {
		e.printf("No saved competition analysis. Run one with --domain and --brand.\n")
		return nil
	}
	if e.json {
		return e.printJSON(result)
	}
	printCompetition(e, &result)
	return nil
}

func (c *CompetitionCommand) history(ctx context.Context, e *env) error {
	if err := e.requireSession(ctx); err != nil {
		return err
	}
	history, err := e.client.CompetitionHistory(ctx)
	if err != nil {
		return fmt.Errorf("load competition history: %w", err)
	}
	if e.json {
		return e.printJSON(history)
	}
	if len(history) == 0 {
		e.printf("No competition analyses yet.\n")
		return nil
	}
	t := e.newTable()
	t.AppendHeader(table.Row{"Analysis ID", "Brand", "Domain", "Accuracy", "Competitors", "Date"})
	for _, a := range history {
		t.AppendRow(table.Row{a.AnalysisID, a.Brand, a.Domain, fmt.Sprintf("%.1f%%", a.Accuracy()), a.CompetitorCount(), a.Timestamp})
	}
	t.Render()
	return nil
}

func printCompetition(e *env, a *api.CompetitionAnalysis) {
	e.printf("Competition analysis for %s (%s)\n\n", a.Brand, a.Domain)
	printAccuracy(e, a.EffectiveSummary())
	e.printf("Competitors: %d\n", a.CompetitorCount())
	if len(a.CompetitorAnalyses) == 0 {
		return
	}

	e.printf("\n")
	t := e.newTable()
	t.AppendHeader(table.Row{"Brand", "Domain", "Accuracy", "Level"})
	t.AppendRow(table.Row{a.Brand + " (you)", a.Domain, fmt.Sprintf("%.1f%%", a.Accuracy()), report.AccuracyLevel(a.Accuracy())})
	for _, comp := range a.CompetitorAnalyses {
		var acc float64
		if comp.Analysis != nil && comp.Analysis.Summary != nil {
			acc = comp.Analysis.Summary.AccuracyPercent
		}
		t.AppendRow(table.Row{comp.Brand, comp.Domain, fmt.Sprintf("%.1f%%", acc), report.AccuracyLevel(acc)})
	}
	t.Render()
}

func printAccuracy(e *env, s api.AnalysisSummary) {
	e.printf("Accuracy:    %.1f%% (%s)\n", s.AccuracyPercent, report.AccuracyLevel(s.AccuracyPercent))
	e.printf("Questions:   %d (%d correct, %d partially correct, %d incorrect)\n",
		s.TotalQuestions, s.Correct, s.PartiallyCorrect, s.Incorrect)
}

func printAnswers(e *env, answers []api.Answer) {
	if len(answers) == 0 {
		return
	}
	e.printf("\n")
	t := e.newTable()
	t.AppendHeader(table.Row{"Question", "Evaluation", "Confidence"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, WidthMax: 60}})
	for _, a := range answers {
		t.AppendRow(table.Row{a.Question, a.Evaluation, fmt.Sprintf("%.0f%%", a.Confidence)})
	}
	t.Render()
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

package report

import (
	"fmt"

	"github.com/runnerr0/llmredi/internal/domain"
)

// defaultKeyImprovements are shown when the new report lists no critical items.
var defaultKeyImprovements = []string{
	"Optimization completed successfully",
	"LLM readiness improved",
	"AI compatibility enhanced",
}

// Side is one report's headline in a comparison.
type Side struct {
	Score       float64 `json:"score"`
	Grade       string  `json:"grade"`
	Description string  `json:"description"`
}

// Overall compares the headline scores.
type Overall struct {
	Before      Side    `json:"before"`
	After       Side    `json:"after"`
	Delta       float64 `json:"delta"`
	Improvement string  `json:"improvement"`
}

// CategoryScore is one category's score within one report.
type CategoryScore struct {
	Percent float64 `json:"percent"`
	Raw     float64 `json:"raw"`
	Max     float64 `json:"max"`
	Status  Status  `json:"status"`
	// Passed is true at 80% or better.
	Passed bool `json:"passed"`
}

// MetricComparison compares one metric across both reports.
type MetricComparison struct {
	Name        string        `json:"name"`
	Before      CategoryScore `json:"before"`
	After       CategoryScore `json:"after"`
	Delta       float64       `json:"delta"`
	Improvement string        `json:"improvement"`
}

// CategoryComparison compares one category across both reports.
type CategoryComparison struct {
	Name        string             `json:"name"`
	Before      CategoryScore      `json:"before"`
	After       CategoryScore      `json:"after"`
	Delta       float64            `json:"delta"`
	Improvement string             `json:"improvement"`
	Metrics     []MetricComparison `json:"metrics,omitempty"`
}

// IssueCount tallies the issues a report flags.
type IssueCount struct {
	Critical int `json:"critical"`
	Moderate int `json:"moderate"`
	Total    int `json:"total"`
}

// Issues compares flagged issues across both reports.
type Issues struct {
	Before         IssueCount `json:"before"`
	After          IssueCount `json:"after"`
	Resolved       int        `json:"resolved"`
	ResolutionRate string     `json:"resolution_rate"`
}

// Comparison is the before/after view of an optimized job.
type Comparison struct {
	Domain          string               `json:"domain"`
	Overall         Overall              `json:"overall"`
	Categories      []CategoryComparison `json:"categories"`
	Issues          Issues               `json:"issues"`
	KeyImprovements []string             `json:"key_improvements"`
}

// Compare builds the comparison between a job's current and new report.
// Categories and metrics are matched by position.
func Compare(domainName string, current, next *domain.Report) (*Comparison, error) {
	if current == nil || next == nil {
		return nil, ErrReportsIncomplete
	}

	delta := next.LLMReadinessScore - current.LLMReadinessScore
	c := &Comparison{
		Domain: domainName,
		Overall: Overall{
			Before:      side(current),
			After:       side(next),
			Delta:       delta,
			Improvement: FormatDelta(delta),
		},
		Categories:      compareCategories(current.Categories, next.Categories),
		Issues:          compareIssues(current, next),
		KeyImprovements: next.TopCriticalItems,
	}
	if c.KeyImprovements == nil {
		c.KeyImprovements = defaultKeyImprovements
	}
	return c, nil
}

// ForJob compares the reports attached to job.
func ForJob(job domain.Job) (*Comparison, error) {
	if job.Stats == nil || job.Stats.CurrentReport == nil || job.Stats.NewReport == nil {
		return nil, ErrReportsIncomplete
	}
	return Compare(job.Domain, job.Stats.CurrentReport, job.Stats.NewReport)
}

// MaxCategoryDelta is the category improvement with the largest magnitude.
func (c *Comparison) MaxCategoryDelta() float64 {
	var best float64
	for _, cat := range c.Categories {
		if abs(cat.Delta) > abs(best) {
			best = cat.Delta
		}
	}
	return best
}

func side(r *domain.Report) Side {
	s := Side{Score: r.LLMReadinessScore, Grade: r.LetterGrade, Description: r.LetterGradeDescriptive}
	if s.Grade == "" {
		s.Grade = "N/A"
	}
	if s.Description == "" {
		s.Description = "No description available"
	}
	return s
}

func score(raw, max float64) CategoryScore {
	if max <= 0 {
		max = 100
	}
	pct := Percent(raw, max)
	return CategoryScore{Percent: pct, Raw: raw, Max: max, Status: ScoreStatus(pct), Passed: pct >= 80}
}

func compareCategories(current, next []domain.Category) []CategoryComparison {
	var out []CategoryComparison
	for i, cur := range current {
		if i >= len(next) {
			break
		}
		nxt := next[i]
		before, after := score(cur.Score, cur.MaxScore), score(nxt.Score, nxt.MaxScore)
		delta := after.Percent - before.Percent

		name := cur.Name
		if name == "" {
			name = fmt.Sprintf("Category %d", i+1)
		}
		out = append(out, CategoryComparison{
			Name:        name,
			Before:      before,
			After:       after,
			Delta:       delta,
			Improvement: FormatDelta(delta),
			Metrics:     compareMetrics(cur.Metrics, nxt.Metrics),
		})
	}
	return out
}

func compareMetrics(current, next []domain.Metric) []MetricComparison {
	var out []MetricComparison
	for i, cur := range current {
		if i >= len(next) {
			break
		}
		nxt := next[i]
		before, after := score(cur.Score, cur.MaxScore), score(nxt.Score, nxt.MaxScore)
		delta := after.Percent - before.Percent

		name := cur.Name
		if name == "" {
			name = fmt.Sprintf("Metric %d", i+1)
		}
		out = append(out, MetricComparison{
			Name:        name,
			Before:      before,
			After:       after,
			Delta:       delta,
			Improvement: FormatDelta(delta),
		})
	}
	return out
}

func compareIssues(current, next *domain.Report) Issues {
	before := IssueCount{Critical: len(current.TopCriticalItems), Moderate: len(current.TopWarnings)}
	before.Total = before.Critical + before.Moderate
	after := IssueCount{Critical: len(next.TopCriticalItems), Moderate: len(next.TopWarnings)}
	after.Total = after.Critical + after.Moderate

	resolved := before.Total - after.Total
	rate := "0%"
	if before.Total > 0 {
		rate = fmt.Sprintf("%d%%", roundHalfUp(float64(resolved)/float64(before.Total)*100))
	}
	if resolved < 0 {
		resolved = 0
	}
	return Issues{Before: before, After: after, Resolved: resolved, ResolutionRate: rate}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

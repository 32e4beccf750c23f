package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/runnerr0/llmredi/internal/logger"
)

// AnalysisSummary tallies evaluated answers for a brand or competition run.
type AnalysisSummary struct {
	TotalQuestions   int     `json:"total_questions"`
	Correct          int     `json:"correct"`
	PartiallyCorrect int     `json:"partially_correct"`
	Incorrect        int     `json:"incorrect"`
	AccuracyPercent  float64 `json:"accuracy_percent"`
	CompetitorCount  *int    `json:"competitor_count,omitempty"`
}

// Answer is one question the backend put to an LLM, with its verdict.
type Answer struct {
	ID          FlexString `json:"id"`
	Question    string     `json:"question"`
	Answer      string     `json:"answer"`
	Evaluation  string     `json:"evaluation"`
	Confidence  float64    `json:"confidence"`
	Explanation string     `json:"explanation"`
}

// AnswerSet is the "analysis" block of brand and competition results.
type AnswerSet struct {
	Answers []Answer         `json:"answers"`
	Summary *AnalysisSummary `json:"summary,omitempty"`
}

// BrandAnalysis is a brand-knowledge analysis. Recent results carry the
// answers under Analysis; history entries use the top-level Summary and
// Details instead.
type BrandAnalysis struct {
	AnalysisID FlexString       `json:"analysis_id"`
	Timestamp  string           `json:"timestamp"`
	Brand      string           `json:"brand"`
	Domain     string           `json:"domain"`
	Analysis   *AnswerSet       `json:"analysis,omitempty"`
	Summary    *AnalysisSummary `json:"summary,omitempty"`
	Details    []Answer         `json:"details,omitempty"`
}

// EffectiveSummary prefers analysis.summary over the top-level summary.
func (b *BrandAnalysis) EffectiveSummary() AnalysisSummary {
	if b.Analysis != nil && b.Analysis.Summary != nil {
		return *b.Analysis.Summary
	}
	if b.Summary != nil {
		return *b.Summary
	}
	return AnalysisSummary{}
}

// Answers returns analysis.answers, or the history details when absent.
func (b *BrandAnalysis) Answers() []Answer {
	if b.Analysis != nil && len(b.Analysis.Answers) > 0 {
		return b.Analysis.Answers
	}
	return b.Details
}

// CompetitorAnalysis is the brand analysis run against one competitor.
type CompetitorAnalysis struct {
	Brand    string     `json:"brand"`
	Domain   string     `json:"domain"`
	Analysis *AnswerSet `json:"analysis,omitempty"`
}

// CompetitionAnalysis compares a brand against discovered competitors.
// The raw body is kept so it can be cached and re-read verbatim.
type CompetitionAnalysis struct {
	BrandAnalysis
	CompetitorAnalyses []CompetitorAnalysis `json:"competitor_analyses"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the typed view and retains the raw body.
func (c *CompetitionAnalysis) UnmarshalJSON(data []byte) error {
	type fields CompetitionAnalysis
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = CompetitionAnalysis(f)
	c.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the raw body when one was decoded.
func (c CompetitionAnalysis) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	type fields CompetitionAnalysis
	return json.Marshal(fields(c))
}

// Accuracy is analysis.summary.accuracy_percent, then summary.accuracy_percent, then 0.
func (c *CompetitionAnalysis) Accuracy() float64 {
	return c.EffectiveSummary().AccuracyPercent
}

// CompetitorCount counts competitor_analyses, falling back to summary.competitor_count.
func (c *CompetitionAnalysis) CompetitorCount() int {
	if c.CompetitorAnalyses != nil {
		return len(c.CompetitorAnalyses)
	}
	if c.Summary != nil && c.Summary.CompetitorCount != nil {
		return *c.Summary.CompetitorCount
	}
	return 0
}

// ReconciledAssessment is the consensus evaluator's final verdict.
type ReconciledAssessment struct {
	FinalLLMReadinessScore float64 `json:"final_llm_readiness_score"`
	LetterGrade            string  `json:"letter_grade"`
	GradeConfidence        string  `json:"grade_confidence"`
	ConsensusLevel         string  `json:"consensus_level"`
}

// CategoryReconciliation is one consensus-reconciled category score.
type CategoryReconciliation struct {
	Category        string   `json:"category"`
	ReconciledScore *float64 `json:"reconciled_score"`
}

// ReconciledRecommendations are the consensus action items.
type ReconciledRecommendations struct {
	ImmediatePriorities  []json.RawMessage `json:"immediate_priorities"`
	StrategicInitiatives []json.RawMessage `json:"strategic_initiatives"`
}

// Consensus is the reconciliation across the evaluator agents.
type Consensus struct {
	Evaluator                 string                    `json:"evaluator"`
	AssessmentDate            string                    `json:"assessment_date"`
	ReconciliationCompleted   bool                      `json:"reconciliation_completed"`
	ReconciledAssessment      ReconciledAssessment      `json:"reconciled_assessment"`
	CategoryReconciliation    []CategoryReconciliation  `json:"category_reconciliation"`
	ReconciledRecommendations ReconciledRecommendations `json:"reconciled_recommendations"`
	FinalConsolidatedSummary  string                    `json:"final_consolidated_summary"`
}

// MasterEvaluation is raw_output.data of the master comprehensive evaluator.
type MasterEvaluation struct {
	LLMReadinessScore *float64           `json:"llm_readiness_score"`
	LetterGrade       string             `json:"letter_grade"`
	Summary           string             `json:"summary"`
	CategoryScores    map[string]float64 `json:"category_scores"`
}

// ReadinessAnalysis is the multi-agent LLM readiness evaluation of a domain.
// Only the fields the client renders are typed; the full body is kept.
type ReadinessAnalysis struct {
	AnalysisID string
	Domain     string
	Timestamp  string
	Consensus  *Consensus
	Master     *MasterEvaluation

	raw json.RawMessage
}

type readinessWire struct {
	AnalysisID  FlexString `json:"analysis_id"`
	Domain      string     `json:"domain"`
	Timestamp   string     `json:"timestamp"`
	Consensus   *Consensus `json:"consensus"`
	Evaluations map[string]struct {
		RawOutput struct {
			Data *MasterEvaluation `json:"data"`
		} `json:"raw_output"`
	} `json:"evaluations"`
}

// UnmarshalJSON decodes the typed view and keeps the raw body. A shape
// mismatch in the nested evaluator output leaves those fields nil rather
// than failing the whole result.
func (r *ReadinessAnalysis) UnmarshalJSON(data []byte) error {
	var head struct {
		AnalysisID FlexString `json:"analysis_id"`
		Domain     string     `json:"domain"`
		Timestamp  string     `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*r = ReadinessAnalysis{
		AnalysisID: string(head.AnalysisID),
		Domain:     head.Domain,
		Timestamp:  head.Timestamp,
		raw:        append(json.RawMessage(nil), data...),
	}

	var w readinessWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	r.Consensus = w.Consensus
	if ev, ok := w.Evaluations["master_comprehensive_evaluator"]; ok {
		r.Master = ev.RawOutput.Data
	}
	return nil
}

// MarshalJSON re-emits the raw body.
func (r ReadinessAnalysis) MarshalJSON() ([]byte, error) {
	if len(r.raw) > 0 {
		return r.raw, nil
	}
	return json.Marshal(readinessWire{
		AnalysisID: FlexString(r.AnalysisID),
		Domain:     r.Domain,
		Timestamp:  r.Timestamp,
		Consensus:  r.Consensus,
	})
}

// Score prefers the master evaluator's score over the consensus score.
func (r *ReadinessAnalysis) Score() float64 {
	if r.Master != nil && r.Master.LLMReadinessScore != nil && *r.Master.LLMReadinessScore != 0 {
		return *r.Master.LLMReadinessScore
	}
	if r.Consensus != nil {
		return r.Consensus.ReconciledAssessment.FinalLLMReadinessScore
	}
	return 0
}

// Grade prefers the master evaluator's grade, then the consensus grade, then "N/A".
func (r *ReadinessAnalysis) Grade() string {
	if r.Master != nil && r.Master.LetterGrade != "" {
		return r.Master.LetterGrade
	}
	if r.Consensus != nil && r.Consensus.ReconciledAssessment.LetterGrade != "" {
		return r.Consensus.ReconciledAssessment.LetterGrade
	}
	return "N/A"
}

// Confidence is the consensus grade confidence, "medium" when unknown.
func (r *ReadinessAnalysis) Confidence() string {
	if r.Consensus != nil && r.Consensus.ReconciledAssessment.GradeConfidence != "" {
		return r.Consensus.ReconciledAssessment.GradeConfidence
	}
	return "medium"
}

// CategoryScores prefers consensus-reconciled scores (rounded) and falls
// back to the master evaluator's category_scores.
func (r *ReadinessAnalysis) CategoryScores() map[string]float64 {
	out := map[string]float64{}
	if r.Consensus != nil {
		for _, c := range r.Consensus.CategoryReconciliation {
			if c.Category != "" && c.ReconciledScore != nil {
				out[c.Category] = math.Round(*c.ReconciledScore)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if r.Master != nil {
		for k, v := range r.Master.CategoryScores {
			out[k] = v
		}
	}
	return out
}

// AnalyzeLLMReadiness runs the multi-agent readiness analysis. It blocks
// until the backend finishes, which can take minutes.
func (c *Client) AnalyzeLLMReadiness(ctx context.Context, domainURL string) (*ReadinessAnalysis, error) {
	body := struct {
		Domain string `json:"domain"`
	}{domainURL}

	var resp ReadinessAnalysis
	if err := c.Do(ctx, http.MethodPost, "/agentanalyse", body, &resp); err != nil {
		return nil, err
	}
	if resp.Domain == "" {
		resp.Domain = domainURL
	}
	return &resp, nil
}

// AnalysisHistory lists previous readiness analyses.
func (c *Client) AnalysisHistory(ctx context.Context) ([]ReadinessAnalysis, error) {
	return getHistory[ReadinessAnalysis](ctx, c, "/agentanalyse/history")
}

type brandRequest struct {
	Domain    string `json:"domain"`
	BrandName string `json:"brand_name"`
}

// AnalyzeBrand asks how well LLMs know brand as presented on domainURL.
func (c *Client) AnalyzeBrand(ctx context.Context, domainURL, brand string) (*BrandAnalysis, error) {
	var resp BrandAnalysis
	if err := c.Do(ctx, http.MethodPost, "/brand-llm-analysis", brandRequest{domainURL, brand}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BrandAnalysisHistory lists previous brand analyses.
func (c *Client) BrandAnalysisHistory(ctx context.Context) ([]BrandAnalysis, error) {
	return getHistory[BrandAnalysis](ctx, c, "/brand-llm-analysis/history")
}

// StartCompetitionAnalysis runs a competition analysis and returns its result.
func (c *Client) StartCompetitionAnalysis(ctx context.Context, domainURL, brand string) (*CompetitionAnalysis, error) {
	var resp CompetitionAnalysis
	if err := c.Do(ctx, http.MethodPost, "/competition-analysis", brandRequest{domainURL, brand}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompetitionHistory lists previous competition analyses.
func (c *Client) CompetitionHistory(ctx context.Context) ([]CompetitionAnalysis, error) {
	return getHistory[CompetitionAnalysis](ctx, c, "/competition-analysis/history")
}

func getHistory[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	items, err := unwrapList(raw, "analyses", "results", "data")
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			c.log.Warn("Skipping malformed history entry",
				logger.String("endpoint", endpoint),
				logger.Int("index", i),
				logger.Error(err),
			)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// unwrapList accepts a bare JSON array or an object holding the array under
// the first present key. Anything else yields an empty list.
func unwrapList(raw json.RawMessage, keys ...string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	for _, k := range keys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err == nil {
			return items, nil
		}
	}
	return nil, nil
}

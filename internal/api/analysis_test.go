package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readinessBody = `{
  "analysis_id": "an-1",
  "domain": "https://a.com",
  "consensus": {
    "reconciled_assessment": {"final_llm_readiness_score": 71.5, "letter_grade": "C+", "grade_confidence": "high"},
    "category_reconciliation": [{"category": "Content", "reconciled_score": 66.6}, {"category": "Schema"}],
    "reconciled_recommendations": {"immediate_priorities": ["add schema"], "strategic_initiatives": []}
  },
  "evaluations": {
    "master_comprehensive_evaluator": {"raw_output": {"data": {"llm_readiness_score": 74, "letter_grade": "C", "summary": "ok"}}}
  },
  "extra_field": {"kept": true}
}`

func TestReadinessAnalysis_Decode(t *testing.T) {
	var ra ReadinessAnalysis
	require.NoError(t, json.Unmarshal([]byte(readinessBody), &ra))

	assert.Equal(t, "an-1", ra.AnalysisID)
	assert.Equal(t, 74.0, ra.Score(), "master evaluator score wins")
	assert.Equal(t, "C", ra.Grade())
	assert.Equal(t, "high", ra.Confidence())
	assert.Equal(t, map[string]float64{"Content": 67}, ra.CategoryScores())
	require.NotNil(t, ra.Consensus)
	assert.Len(t, ra.Consensus.ReconciledRecommendations.ImmediatePriorities, 1)

	out, err := json.Marshal(ra)
	require.NoError(t, err)
	assert.JSONEq(t, readinessBody, string(out))
}

func TestReadinessAnalysis_Fallbacks(t *testing.T) {
	var ra ReadinessAnalysis
	require.NoError(t, json.Unmarshal([]byte(`{"consensus":{"reconciled_assessment":{"final_llm_readiness_score":55}}}`), &ra))
	assert.Equal(t, 55.0, ra.Score())
	assert.Equal(t, "N/A", ra.Grade())
	assert.Equal(t, "medium", ra.Confidence())

	var odd ReadinessAnalysis
	require.NoError(t, json.Unmarshal([]byte(`{"analysis_id":12,"evaluations":"unexpected"}`), &odd))
	assert.Equal(t, "12", odd.AnalysisID)
	assert.Nil(t, odd.Master)
	assert.Equal(t, 0.0, odd.Score())

	var numbered ReadinessAnalysis
	require.NoError(t, json.Unmarshal([]byte(`{"analysis_id":7,"consensus":{"reconciled_assessment":{"letter_grade":"B"}}}`), &numbered))
	assert.Equal(t, "7", numbered.AnalysisID)
	assert.Equal(t, "B", numbered.Grade())
}

func TestAnalyzeLLMReadiness(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/agentanalyse", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://a.com", body["domain"])
		_, _ = io.WriteString(w, readinessBody)
	})

	ra, err := client.AnalyzeLLMReadiness(context.Background(), "https://a.com")
	require.NoError(t, err)
	assert.Equal(t, "C", ra.Grade())
}

func TestBrandAnalysis_Summaries(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body brandRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Acme", body.BrandName)
		_, _ = io.WriteString(w, `{"analysis_id":"b1","brand":"Acme","analysis":{
			"answers":[{"id":1,"question":"q","answer":"a","evaluation":"Correct","confidence":90}],
			"summary":{"total_questions":1,"correct":1,"accuracy_percent":100}}}`)
	})

	ba, err := client.AnalyzeBrand(context.Background(), "acme.com", "Acme")
	require.NoError(t, err)
	assert.Equal(t, 100.0, ba.EffectiveSummary().AccuracyPercent)
	require.Len(t, ba.Answers(), 1)
	assert.Equal(t, FlexString("1"), ba.Answers()[0].ID)

	hist := BrandAnalysis{Summary: &AnalysisSummary{AccuracyPercent: 40}, Details: []Answer{{Question: "q"}}}
	assert.Equal(t, 40.0, hist.EffectiveSummary().AccuracyPercent)
	assert.Len(t, hist.Answers(), 1)
}

func TestHistory_ResponseShapes(t *testing.T) {
	for name, body := range map[string]string{
		"array":    `[{"analysis_id":"x"},{"analysis_id":"y"}]`,
		"analyses": `{"analyses":[{"analysis_id":"x"},{"analysis_id":"y"}]}`,
		"results":  `{"results":[{"analysis_id":"x"},{"analysis_id":"y"}]}`,
		"data":     `{"data":[{"analysis_id":"x"},{"analysis_id":"y"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/brand-llm-analysis/history", r.URL.Path)
				_, _ = io.WriteString(w, body)
			})
			list, err := client.BrandAnalysisHistory(context.Background())
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, FlexString("y"), list[1].AnalysisID)
		})
	}

	t.Run("unknown object", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"ok"}`)
		})
		list, err := client.AnalysisHistory(context.Background())
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestCompetitionAnalysis(t *testing.T) {
	body := `{"analysis_id":"c1","brand":"Infosys","domain":"infosys.com",
		"analysis":{"answers":[],"summary":{"accuracy_percent":76}},
		"competitor_analyses":[{"brand":"TCS","domain":"tcs.com"},{"brand":"Wipro","domain":"wipro.com"}]}`

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/competition-analysis", r.URL.Path)
		_, _ = io.WriteString(w, body)
	})

	ca, err := client.StartCompetitionAnalysis(context.Background(), "infosys.com", "Infosys")
	require.NoError(t, err)
	assert.Equal(t, 76.0, ca.Accuracy())
	assert.Equal(t, 2, ca.CompetitorCount())
	assert.Equal(t, "Infosys", ca.Brand)

	out, err := json.Marshal(ca)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(out))

	count := 3
	summaryOnly := CompetitionAnalysis{BrandAnalysis: BrandAnalysis{Summary: &AnalysisSummary{AccuracyPercent: 50, CompetitorCount: &count}}}
	assert.Equal(t, 50.0, summaryOnly.Accuracy())
	assert.Equal(t, 3, summaryOnly.CompetitorCount())
}

package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepscout/internal/timeline"
)

func TestClassify_EmptyPayload(t *testing.T) {
	assert.Nil(t, Classify(nil).Entry)
	assert.Nil(t, Classify(map[string]any{}).Entry)
}

func TestClassify_GenerateQuery(t *testing.T) {
	out := Classify(map[string]any{
		"generate_query": map[string]any{
			"search_query":               []any{"golang channels", "go scheduler"},
			"awaiting_user_confirmation": true,
		},
	})

	require.NotNil(t, out.Entry)
	assert.Equal(t, "Generating Search Queries", out.Entry.Title)
	assert.Equal(t, "golang channels, go scheduler", out.Entry.Summary)
	assert.Equal(t, timeline.StatusCompleted, out.Entry.Status)
	assert.Equal(t, []string{"golang channels", "go scheduler"}, out.Queries)
	assert.True(t, out.AwaitingConfirmation)
	assert.False(t, out.Finalized)
}

func TestClassify_WebResearch(t *testing.T) {
	out := Classify(map[string]any{
		"web_research": map[string]any{
			"sources_gathered": []any{
				map[string]any{"label": "arxiv.org"},
				map[string]any{"label": "nature.com"},
				map[string]any{"label": "arxiv.org"}, // duplicate
				map[string]any{"label": "acm.org"},
				map[string]any{"label": "ieee.org"}, // beyond top three
				map[string]any{},                    // no label
			},
		},
	})

	require.NotNil(t, out.Entry)
	assert.Equal(t, "Web Research", out.Entry.Title)
	assert.Equal(t, "Gathered 6 sources. Related topics: arxiv.org, nature.com, acm.org.", out.Entry.Summary)
}

func TestClassify_WebResearch_NoSources(t *testing.T) {
	out := Classify(map[string]any{"web_research": map[string]any{}})
	require.NotNil(t, out.Entry)
	assert.Equal(t, "Gathered 0 sources. Related topics: none.", out.Entry.Summary)
}

func TestClassify_ScoreStages(t *testing.T) {
	t.Run("content quality", func(t *testing.T) {
		out := Classify(map[string]any{
			"assess_content_quality": map[string]any{
				"content_quality": map[string]any{"quality_score": 0.875},
			},
		})
		require.NotNil(t, out.Entry)
		assert.Equal(t, "Content Quality Assessment", out.Entry.Title)
		assert.Contains(t, out.Entry.Summary, "87.5%")
	})

	t.Run("relevance", func(t *testing.T) {
		out := Classify(map[string]any{
			"assess_relevance": map[string]any{
				"relevance_assessment": map[string]any{"relevance_score": 0.9},
			},
		})
		require.NotNil(t, out.Entry)
		assert.Equal(t, "Relevance Assessment", out.Entry.Title)
		assert.Contains(t, out.Entry.Summary, "90.0%")
	})

	t.Run("missing score defaults to zero", func(t *testing.T) {
		out := Classify(map[string]any{"assess_content_quality": map[string]any{}})
		require.NotNil(t, out.Entry)
		assert.Contains(t, out.Entry.Summary, "0.0%")
	})
}

func TestClassify_VerifyFacts(t *testing.T) {
	out := Classify(map[string]any{
		"verify_facts": map[string]any{
			"fact_verification": map[string]any{
				"verified_facts":  []any{"a", "b", "c"},
				"disputed_claims": []any{"d"},
			},
		},
	})

	require.NotNil(t, out.Entry)
	assert.Equal(t, "Fact Verification", out.Entry.Title)
	assert.Equal(t, "Verified research accuracy: 3 verified facts, 1 disputed claims", out.Entry.Summary)
}

func TestClassify_OptimizeSummary(t *testing.T) {
	out := Classify(map[string]any{
		"optimize_summary": map[string]any{
			"summary_optimization": map[string]any{"key_insights": []any{"x", "y"}},
		},
	})

	require.NotNil(t, out.Entry)
	assert.Equal(t, "Summary Optimization", out.Entry.Title)
	assert.Contains(t, out.Entry.Summary, "2 key insights")
}

func TestClassify_WaitForConfirmation(t *testing.T) {
	out := Classify(map[string]any{
		"wait_for_user_confirmation": map[string]any{"awaiting_user_confirmation": true},
	})

	require.NotNil(t, out.Entry)
	assert.Equal(t, "Awaiting User Confirmation", out.Entry.Title)
	assert.Equal(t, timeline.StatusPending, out.Entry.Status)
	assert.True(t, out.AwaitingConfirmation)
}

func TestClassify_FinalizeAnswer(t *testing.T) {
	out := Classify(map[string]any{
		"finalize_answer": map[string]any{"final_confidence_score": 0.883},
	})

	require.NotNil(t, out.Entry)
	assert.Equal(t, "Finalizing Answer", out.Entry.Title)
	assert.Contains(t, out.Entry.Summary, "88.3%")
	assert.True(t, out.Finalized)
}

func TestClassify_FirstRecognizedKeyWins(t *testing.T) {
	// generate_query outranks finalize_answer when both are present.
	out := Classify(map[string]any{
		"finalize_answer": map[string]any{},
		"generate_query":  map[string]any{"search_query": []any{"q"}},
	})

	require.NotNil(t, out.Entry)
	assert.Equal(t, "Generating Search Queries", out.Entry.Title)
	assert.False(t, out.Finalized)
}

func TestClassify_GenericKeywordBuckets(t *testing.T) {
	tests := []struct {
		key       string
		wantTitle string
	}{
		{"vector_search_step", "Search Processing"},
		{"trend_analysis", "Data Analysis"},
		{"post_processing", "Data Processing"},
		{"schema_validation", "Data Validation"},
		{"entity_extraction", "Information Extraction"},
		{"summarize_chunk", "Summarization"},
		{"background_research", "Deep Research"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			out := Classify(map[string]any{tt.key: map[string]any{}})
			require.NotNil(t, out.Entry)
			assert.Equal(t, tt.wantTitle, out.Entry.Title)
		})
	}
}

func TestClassify_UnknownKeyDerivesTitle(t *testing.T) {
	out := Classify(map[string]any{"custom_ranking_step": map[string]any{}})

	require.NotNil(t, out.Entry)
	assert.Equal(t, "Custom Ranking Step", out.Entry.Title)
	assert.Equal(t, "Custom Ranking Step in progress", out.Entry.Summary)
	assert.Equal(t, timeline.StatusCompleted, out.Entry.Status)
}

func TestClassify_EntriesCarryRawAndIDs(t *testing.T) {
	raw := map[string]any{"reflection": map[string]any{}}
	a := Classify(raw)
	b := Classify(raw)

	require.NotNil(t, a.Entry)
	require.NotNil(t, b.Entry)
	assert.NotEmpty(t, a.Entry.ID)
	assert.NotEqual(t, a.Entry.ID, b.Entry.ID)
	assert.Equal(t, raw, a.Entry.Raw)
	assert.False(t, a.Entry.CreatedAt.IsZero())
}

// Package classify turns raw pipeline events into timeline entries. Each
// event payload is a map whose top-level key names the pipeline stage;
// the classifier derives a fixed title and a one-line summary per stage,
// with a keyword fallback for stages it has never seen.
package classify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"deepscout/internal/logging"
	"deepscout/internal/timeline"
)

// Outcome is the classification result for one event: at most one
// timeline entry, plus the side-channel signals some stages carry.
type Outcome struct {
	Entry                *timeline.Entry
	Queries              []string
	AwaitingConfirmation bool
	Finalized            bool
}

// Stage keys emitted by the research pipeline.
const (
	StageGenerateQuery       = "generate_query"
	StageWebResearch         = "web_research"
	StageReflection          = "reflection"
	StageContentQuality      = "assess_content_quality"
	StageVerifyFacts         = "verify_facts"
	StageRelevance           = "assess_relevance"
	StageOptimizeSummary     = "optimize_summary"
	StageVerificationReport  = "generate_verification_report"
	StageWaitForConfirmation = "wait_for_user_confirmation"
	StageFinalizeAnswer      = "finalize_answer"
)

// Checked in this order so an event carrying several keys classifies the
// same way every time.
var stageOrder = []string{
	StageGenerateQuery,
	StageWebResearch,
	StageReflection,
	StageContentQuality,
	StageVerifyFacts,
	StageRelevance,
	StageOptimizeSummary,
	StageVerificationReport,
	StageWaitForConfirmation,
	StageFinalizeAnswer,
}

// Classify maps a raw event to an Outcome. An empty payload yields no
// entry; anything else yields exactly one. Malformed payloads degrade to
// zero counts and "none" placeholders rather than erroring.
func Classify(raw map[string]any) Outcome {
	if len(raw) == 0 {
		return Outcome{}
	}

	for _, stage := range stageOrder {
		payload, ok := raw[stage]
		if !ok {
			continue
		}
		return classifyKnown(stage, asMap(payload), raw)
	}
	return classifyGeneric(raw)
}

func classifyKnown(stage string, payload, raw map[string]any) Outcome {
	out := Outcome{}
	e := newEntry(raw)

	switch stage {
	case StageGenerateQuery:
		out.Queries = stringList(payload["search_query"])
		out.AwaitingConfirmation = truthy(payload["awaiting_user_confirmation"])
		e.Title = "Generating Search Queries"
		e.Summary = strings.Join(out.Queries, ", ")

	case StageWebResearch:
		sources := anyList(payload["sources_gathered"])
		labels := uniqueLabels(sources)
		if len(labels) > 3 {
			labels = labels[:3]
		}
		topics := strings.Join(labels, ", ")
		if topics == "" {
			topics = "none"
		}
		e.Title = "Web Research"
		e.Summary = fmt.Sprintf("Gathered %d sources. Related topics: %s.", len(sources), topics)

	case StageReflection:
		e.Title = "Reflection"
		e.Summary = "Analyzing research results and assessing information sufficiency"

	case StageContentQuality:
		score := number(dig(payload, "content_quality", "quality_score"))
		e.Title = "Content Quality Assessment"
		e.Summary = fmt.Sprintf("Assessed content quality and reliability, quality score: %.1f%%", score*100)

	case StageVerifyFacts:
		verified := len(anyList(dig(payload, "fact_verification", "verified_facts")))
		disputed := len(anyList(dig(payload, "fact_verification", "disputed_claims")))
		e.Title = "Fact Verification"
		e.Summary = fmt.Sprintf("Verified research accuracy: %d verified facts, %d disputed claims", verified, disputed)

	case StageRelevance:
		score := number(dig(payload, "relevance_assessment", "relevance_score"))
		e.Title = "Relevance Assessment"
		e.Summary = fmt.Sprintf("Assessed relevance to the query, relevance score: %.1f%%", score*100)

	case StageOptimizeSummary:
		insights := len(anyList(dig(payload, "summary_optimization", "key_insights")))
		e.Title = "Summary Optimization"
		e.Summary = fmt.Sprintf("Optimized the research summary, extracted %d key insights", insights)

	case StageVerificationReport:
		e.Title = "Verification Report"
		e.Summary = "Generating the comprehensive quality verification report"

	case StageWaitForConfirmation:
		out.AwaitingConfirmation = truthy(payload["awaiting_user_confirmation"])
		e.Title = "Awaiting User Confirmation"
		e.Summary = "Waiting for the generated search queries to be confirmed"
		e.Status = timeline.StatusPending

	case StageFinalizeAnswer:
		out.Finalized = true
		score := number(payload["final_confidence_score"])
		e.Title = "Finalizing Answer"
		e.Summary = fmt.Sprintf("Composing the final answer, overall confidence: %.1f%%", score*100)
	}

	logging.Get(logging.CategoryClassify).Debug("classified %s as %q", stage, e.Title)
	out.Entry = e
	return out
}

// Keyword buckets for stages the classifier does not know by name.
var genericBuckets = []struct {
	substrings []string
	title      string
	summary    string
}{
	{[]string{"search", "query"}, "Search Processing", "Running search operations"},
	{[]string{"analyze", "analysis"}, "Data Analysis", "Analyzing gathered information"},
	{[]string{"process"}, "Data Processing", "Processing and organizing data"},
	{[]string{"validate", "validation"}, "Data Validation", "Validating information accuracy"},
	{[]string{"extract"}, "Information Extraction", "Extracting key information"},
	{[]string{"summarize", "summary"}, "Summarization", "Producing a content summary"},
	{[]string{"research"}, "Deep Research", "Conducting detailed research"},
}

func classifyGeneric(raw map[string]any) Outcome {
	// Map order is random; sort so the same payload always yields the
	// same entry.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := keys[0]

	e := newEntry(raw)
	for _, bucket := range genericBuckets {
		for _, sub := range bucket.substrings {
			if strings.Contains(key, sub) {
				e.Title = bucket.title
				e.Summary = bucket.summary
				logging.Get(logging.CategoryClassify).Debug("bucketed unknown stage %q as %q", key, e.Title)
				return Outcome{Entry: e}
			}
		}
	}

	e.Title = titleCaseKey(key)
	e.Summary = e.Title + " in progress"
	logging.Get(logging.CategoryClassify).Debug("unknown stage %q, derived title %q", key, e.Title)
	return Outcome{Entry: e}
}

func newEntry(raw map[string]any) *timeline.Entry {
	return &timeline.Entry{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Status:    timeline.StatusCompleted,
		Raw:       raw,
	}
}

// titleCaseKey turns "custom_analysis_step" into "Custom Analysis Step".
func titleCaseKey(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func anyList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	}
	return nil
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func truthy(v any) bool {
	b, _ := v.(bool)
	return b
}

func dig(m map[string]any, keys ...string) any {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = mm[k]
	}
	return cur
}

// uniqueLabels collects distinct non-empty label fields from a gathered
// sources list, preserving first-seen order.
func uniqueLabels(sources []any) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range sources {
		label, _ := asMap(s)["label"].(string)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// Package agent runs the research pipeline: query generation, parallel
// web research with citation tracking, a bounded reflection loop, a
// quality pipeline, and final answer assembly. It produces the event
// stream the chat client consumes.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"deepscout/internal/logging"
	"deepscout/internal/transport"
)

// Config carries the models and search budget the pipeline runs with.
type Config struct {
	QueryModel       string
	ReasoningModel   string
	AnswerModel      string
	MaxSearchResults int
}

const defaultMaxLoops = 3

// Engine is the production transport.Transport.
type Engine struct {
	gen    Generator
	search SearchClient
	cfg    Config

	mu         sync.Mutex
	messages   []transport.Message
	loading    bool
	generation uint64
	cancel     context.CancelFunc

	events chan transport.Event
	errors chan transport.StreamError
}

// NewEngine builds an engine over the given model and search clients.
func NewEngine(gen Generator, search SearchClient, cfg Config) *Engine {
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 5
	}
	return &Engine{
		gen:    gen,
		search: search,
		cfg:    cfg,
		events: make(chan transport.Event, 64),
		errors: make(chan transport.StreamError, 8),
	}
}

// Submit implements transport.Transport: it cancels any running stream
// and starts a new generation for the request.
func (e *Engine) Submit(req transport.Request) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.generation++
	gen := e.generation
	e.messages = append([]transport.Message(nil), req.Messages...)
	e.loading = true
	e.mu.Unlock()

	logging.Get(logging.CategoryAgent).Info(
		"submit generation %d: %d messages, %d queries, %d loops",
		gen, len(req.Messages), req.InitialQueryCount, req.MaxResearchLoops)
	go e.run(ctx, gen, req)
}

// Stop implements transport.Transport. Idempotent; safe while idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.generation++
	e.loading = false
}

// Initialize seeds the message history for a restored conversation.
func (e *Engine) Initialize(messages []transport.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append([]transport.Message(nil), messages...)
}

// Messages implements transport.Transport.
func (e *Engine) Messages() []transport.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]transport.Message(nil), e.messages...)
}

// IsLoading implements transport.Transport.
func (e *Engine) IsLoading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Events implements transport.Transport.
func (e *Engine) Events() <-chan transport.Event { return e.events }

// Errors implements transport.Transport.
func (e *Engine) Errors() <-chan transport.StreamError { return e.errors }

// =============================================================================
// PIPELINE
// =============================================================================

type source struct {
	Title    string
	URL      string
	Content  string
	ShortURL string
	Label    string
}

func (s source) toMap() map[string]any {
	return map[string]any{
		"title":     s.Title,
		"url":       s.URL,
		"content":   s.Content,
		"short_url": s.ShortURL,
		"value":     s.URL,
		"label":     s.Label,
	}
}

type searchQueryList struct {
	Rationale string   `json:"rationale"`
	Query     []string `json:"query"`
}

type reflectionResult struct {
	IsSufficient    bool     `json:"is_sufficient"`
	KnowledgeGap    string   `json:"knowledge_gap"`
	FollowUpQueries []string `json:"follow_up_queries"`
}

type qualityAssessment struct {
	QualityScore           float64  `json:"quality_score"`
	ReliabilityAssessment  string   `json:"reliability_assessment"`
	ContentGaps            []string `json:"content_gaps"`
	ImprovementSuggestions []string `json:"improvement_suggestions"`
}

type factVerification struct {
	VerifiedFacts       []string `json:"verified_facts"`
	DisputedClaims      []string `json:"disputed_claims"`
	VerificationSources []string `json:"verification_sources"`
	ConfidenceScore     float64  `json:"confidence_score"`
}

type relevanceAssessment struct {
	RelevanceScore   float64  `json:"relevance_score"`
	KeyTopicsCovered []string `json:"key_topics_covered"`
	MissingTopics    []string `json:"missing_topics"`
	ContentAlignment string   `json:"content_alignment"`
}

type summaryOptimization struct {
	OptimizedSummary string   `json:"optimized_summary"`
	KeyInsights      []string `json:"key_insights"`
	ActionableItems  []string `json:"actionable_items"`
	ConfidenceLevel  string   `json:"confidence_level"`
}

type runState struct {
	topic        string
	citations    atomic.Int64
	mu           sync.Mutex
	summaries    []string
	sources      []source
	quality      qualityAssessment
	facts        factVerification
	relevance    relevanceAssessment
	optimization summaryOptimization
	confidence   float64
}

func (e *Engine) run(ctx context.Context, gen uint64, req transport.Request) {
	defer func() {
		e.mu.Lock()
		if e.generation == gen {
			e.loading = false
		}
		e.mu.Unlock()
	}()

	maxLoops := req.MaxResearchLoops
	if maxLoops <= 0 {
		maxLoops = defaultMaxLoops
	}
	reasoningModel := req.ReasoningModel
	if reasoningModel == "" {
		reasoningModel = e.cfg.ReasoningModel
	}

	// gen guards engine state; req.Generation tags emitted events.
	evGen := req.Generation
	st := &runState{topic: transport.ResearchTopic(req.Messages)}

	queries, err := e.generateQueries(ctx, evGen, req)
	if err != nil {
		e.fail(ctx, evGen, err)
		return
	}

	for loop := 1; ; loop++ {
		if err := e.webResearch(ctx, evGen, st, queries); err != nil {
			e.fail(ctx, evGen, err)
			return
		}
		refl, err := e.reflect(ctx, evGen, st, reasoningModel, loop)
		if err != nil {
			e.fail(ctx, evGen, err)
			return
		}
		if refl.IsSufficient || loop >= maxLoops || len(refl.FollowUpQueries) == 0 {
			break
		}
		queries = refl.FollowUpQueries
	}

	for _, stage := range []func(context.Context, uint64, *runState, string) error{
		e.assessContentQuality,
		e.verifyFacts,
		e.assessRelevance,
	} {
		if err := stage(ctx, evGen, st, reasoningModel); err != nil {
			e.fail(ctx, evGen, err)
			return
		}
	}
	if err := e.optimizeSummary(ctx, evGen, st); err != nil {
		e.fail(ctx, evGen, err)
		return
	}
	report := e.verificationReport(ctx, evGen, st)
	e.finalize(ctx, gen, evGen, st, report)
}

// generateQueries either parses a user-confirmed query set from the
// sentinel message or asks the query model for fresh ones. Fresh query
// sets request confirmation before research proceeds.
func (e *Engine) generateQueries(ctx context.Context, gen uint64, req transport.Request) ([]string, error) {
	if len(req.Messages) > 0 {
		last := req.Messages[len(req.Messages)-1]
		if queries, ok := transport.DecodeConfirmedQueries(last.Content); ok {
			e.emit(ctx, gen, map[string]any{
				"generate_query": map[string]any{
					"search_query":               queries,
					"awaiting_user_confirmation": false,
				},
			})
			return queries, nil
		}
	}

	count := req.InitialQueryCount
	if count <= 0 {
		count = 3
	}
	topic := transport.ResearchTopic(req.Messages)
	prompt := fmt.Sprintf(queryWriterPrompt, count, currentDate(), topic)

	var result searchQueryList
	if err := e.gen.GenerateJSON(ctx, e.cfg.QueryModel, prompt, &result); err != nil {
		return nil, fmt.Errorf("generate queries: %w", err)
	}
	if len(result.Query) == 0 {
		result.Query = []string{topic}
	}

	e.emit(ctx, gen, map[string]any{
		"generate_query": map[string]any{
			"search_query":               result.Query,
			"awaiting_user_confirmation": true,
		},
	})
	e.emit(ctx, gen, map[string]any{
		"wait_for_user_confirmation": map[string]any{
			"awaiting_user_confirmation": true,
		},
	})
	return result.Query, nil
}

// webResearch fans out one research task per query. Each task searches,
// summarizes with the query model, and rewrites source URLs to [n]
// citation markers numbered across the whole run.
func (e *Engine) webResearch(ctx context.Context, gen uint64, st *runState, queries []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, query := range queries {
		g.Go(func() error {
			return e.researchQuery(ctx, gen, st, query)
		})
	}
	return g.Wait()
}

func (e *Engine) researchQuery(ctx context.Context, gen uint64, st *runState, query string) error {
	results, err := e.search.Search(ctx, query, e.cfg.MaxSearchResults)
	if err != nil {
		return fmt.Errorf("search %q: %w", query, err)
	}

	var sources []source
	var content strings.Builder
	for i, r := range results {
		n := st.citations.Add(1)
		title := r.Title
		if title == "" {
			title = fmt.Sprintf("Result %d", i+1)
		}
		sources = append(sources, source{
			Title:    title,
			URL:      r.URL,
			Content:  clip(r.Content, 500),
			ShortURL: fmt.Sprintf("[%d]", n),
			Label:    title,
		})
		fmt.Fprintf(&content, "Source [%d]: %s\nURL: %s\nContent: %s\n\n", n, title, r.URL, r.Content)
	}

	prompt := fmt.Sprintf(webSearcherPrompt, query, currentDate(), content.String())
	summary, err := e.gen.GenerateText(ctx, e.cfg.QueryModel, prompt)
	if err != nil {
		return fmt.Errorf("summarize %q: %w", query, err)
	}

	// Rewrite raw URLs and bare domains to citation markers.
	for _, s := range sources {
		if s.URL != "" {
			summary = strings.ReplaceAll(summary, s.URL, s.ShortURL)
			if d := domain(s.URL); d != "" {
				summary = strings.ReplaceAll(summary, d, s.ShortURL)
			}
		}
	}

	st.mu.Lock()
	st.summaries = append(st.summaries, summary)
	st.sources = append(st.sources, sources...)
	st.mu.Unlock()

	sourceMaps := make([]any, len(sources))
	for i, s := range sources {
		sourceMaps[i] = s.toMap()
	}
	e.emit(ctx, gen, map[string]any{
		"web_research": map[string]any{
			"search_query":        []string{query},
			"sources_gathered":    sourceMaps,
			"web_research_result": []string{summary},
		},
	})
	return nil
}

func (e *Engine) reflect(ctx context.Context, gen uint64, st *runState, model string, loop int) (reflectionResult, error) {
	prompt := fmt.Sprintf(reflectionPrompt, st.topic, currentDate(), st.joinedSummaries())

	var result reflectionResult
	if err := e.gen.GenerateJSON(ctx, model, prompt, &result); err != nil {
		return result, fmt.Errorf("reflection: %w", err)
	}

	e.emit(ctx, gen, map[string]any{
		"reflection": map[string]any{
			"is_sufficient":       result.IsSufficient,
			"knowledge_gap":       result.KnowledgeGap,
			"follow_up_queries":   result.FollowUpQueries,
			"research_loop_count": loop,
		},
	})
	return result, nil
}

func (e *Engine) assessContentQuality(ctx context.Context, gen uint64, st *runState, model string) error {
	prompt := fmt.Sprintf(contentQualityPrompt, st.topic, st.joinedSummaries())
	if err := e.gen.GenerateJSON(ctx, model, prompt, &st.quality); err != nil {
		return fmt.Errorf("assess content quality: %w", err)
	}
	e.emit(ctx, gen, map[string]any{
		"assess_content_quality": map[string]any{
			"content_quality": map[string]any{
				"quality_score":           st.quality.QualityScore,
				"reliability_assessment":  st.quality.ReliabilityAssessment,
				"content_gaps":            st.quality.ContentGaps,
				"improvement_suggestions": st.quality.ImprovementSuggestions,
			},
		},
	})
	return nil
}

func (e *Engine) verifyFacts(ctx context.Context, gen uint64, st *runState, model string) error {
	prompt := fmt.Sprintf(factVerificationPrompt, st.topic, currentDate(), st.joinedSummaries())
	if err := e.gen.GenerateJSON(ctx, model, prompt, &st.facts); err != nil {
		return fmt.Errorf("verify facts: %w", err)
	}
	e.emit(ctx, gen, map[string]any{
		"verify_facts": map[string]any{
			"fact_verification": map[string]any{
				"verified_facts":       st.facts.VerifiedFacts,
				"disputed_claims":      st.facts.DisputedClaims,
				"verification_sources": st.facts.VerificationSources,
				"confidence_score":     st.facts.ConfidenceScore,
			},
		},
	})
	return nil
}

func (e *Engine) assessRelevance(ctx context.Context, gen uint64, st *runState, model string) error {
	prompt := fmt.Sprintf(relevanceAssessmentPrompt, st.topic, st.joinedSummaries())
	if err := e.gen.GenerateJSON(ctx, model, prompt, &st.relevance); err != nil {
		return fmt.Errorf("assess relevance: %w", err)
	}
	e.emit(ctx, gen, map[string]any{
		"assess_relevance": map[string]any{
			"relevance_assessment": map[string]any{
				"relevance_score":    st.relevance.RelevanceScore,
				"key_topics_covered": st.relevance.KeyTopicsCovered,
				"missing_topics":     st.relevance.MissingTopics,
				"content_alignment":  st.relevance.ContentAlignment,
			},
		},
	})
	return nil
}

// optimizeSummary produces the polished report and the run's final
// confidence, the mean of the three assessment scores.
func (e *Engine) optimizeSummary(ctx context.Context, gen uint64, st *runState) error {
	prompt := fmt.Sprintf(summaryOptimizationPrompt,
		st.topic, currentDate(), st.joinedSummaries(),
		fmt.Sprintf("%+v", st.quality),
		fmt.Sprintf("%+v", st.facts),
		fmt.Sprintf("%+v", st.relevance),
	)
	if err := e.gen.GenerateJSON(ctx, e.cfg.AnswerModel, prompt, &st.optimization); err != nil {
		return fmt.Errorf("optimize summary: %w", err)
	}
	st.confidence = (st.quality.QualityScore + st.facts.ConfidenceScore + st.relevance.RelevanceScore) / 3

	e.emit(ctx, gen, map[string]any{
		"optimize_summary": map[string]any{
			"summary_optimization": map[string]any{
				"optimized_summary": st.optimization.OptimizedSummary,
				"key_insights":      st.optimization.KeyInsights,
				"actionable_items":  st.optimization.ActionableItems,
				"confidence_level":  st.optimization.ConfidenceLevel,
			},
			"final_confidence_score": st.confidence,
		},
	})
	return nil
}

func (e *Engine) verificationReport(ctx context.Context, gen uint64, st *runState) string {
	report := fmt.Sprintf(`# Research Quality Verification Report

## Content Quality
- Quality score: %.2f/1.0
- Reliability: %s
- Content gaps: %s
- Improvement suggestions: %s

## Fact Verification
- Verification confidence: %.2f/1.0
- Verified facts: %d
- Disputed claims: %d
- Verification sources: %s

## Relevance
- Relevance score: %.2f/1.0
- Key topics covered: %s
- Missing topics: %s
- Content alignment: %s

## Summary Optimization
- Confidence level: %s
- Key insights: %d
- Actionable items: %d

## Overall
- Final confidence score: %.3f/1.0`,
		st.quality.QualityScore,
		st.quality.ReliabilityAssessment,
		joinOrNone(st.quality.ContentGaps),
		joinOrNone(st.quality.ImprovementSuggestions),
		st.facts.ConfidenceScore,
		len(st.facts.VerifiedFacts),
		len(st.facts.DisputedClaims),
		joinOrNone(st.facts.VerificationSources),
		st.relevance.RelevanceScore,
		joinOrNone(st.relevance.KeyTopicsCovered),
		joinOrNone(st.relevance.MissingTopics),
		st.relevance.ContentAlignment,
		st.optimization.ConfidenceLevel,
		len(st.optimization.KeyInsights),
		len(st.optimization.ActionableItems),
		st.confidence,
	)

	e.emit(ctx, gen, map[string]any{
		"generate_verification_report": map[string]any{
			"verification_report": report,
		},
	})
	return report
}

// finalize assembles the answer message: the optimized summary with
// citation markers restored to their URLs, the verification report, the
// quality metrics block, and the list of cited sources.
func (e *Engine) finalize(ctx context.Context, gen, evGen uint64, st *runState, report string) {
	body := st.optimization.OptimizedSummary
	if body == "" {
		body = st.joinedSummaries()
	}
	content := body + "\n\n---\n\n" + report

	var cited []source
	for _, s := range st.sources {
		if strings.Contains(content, s.ShortURL) {
			content = strings.ReplaceAll(content, s.ShortURL, s.URL)
			cited = append(cited, s)
		}
	}

	content += fmt.Sprintf(`

## Research Quality Metrics
- Final confidence: %.3f/1.0
- Content quality score: %.2f/1.0
- Fact verification confidence: %.2f/1.0
- Relevance score: %.2f/1.0
`,
		st.confidence,
		st.quality.QualityScore,
		st.facts.ConfidenceScore,
		st.relevance.RelevanceScore,
	)

	if len(cited) > 0 {
		content += "\n## Sources\n"
		for _, s := range cited {
			content += fmt.Sprintf("- [%s](%s)\n", s.Title, s.URL)
		}
	}

	msg := transport.Message{
		ID:      uuid.NewString(),
		Type:    transport.RoleAI,
		Content: content,
	}

	e.mu.Lock()
	fresh := e.generation == gen
	if fresh {
		e.messages = append(e.messages, msg)
		e.loading = false
	}
	e.mu.Unlock()
	if !fresh {
		return
	}

	e.emit(ctx, evGen, map[string]any{
		"finalize_answer": map[string]any{
			"final_confidence_score": st.confidence,
			"message_id":             msg.ID,
		},
	})
	logging.Get(logging.CategoryAgent).Info("generation %d finalized (%d cited sources)", evGen, len(cited))
}

func (e *Engine) emit(ctx context.Context, gen uint64, payload map[string]any) {
	select {
	case e.events <- transport.Event{Generation: gen, Payload: payload}:
	case <-ctx.Done():
	}
}

func (e *Engine) fail(ctx context.Context, gen uint64, err error) {
	if ctx.Err() != nil {
		// Cancelled runs report nothing; the caller already moved on.
		return
	}
	logging.Get(logging.CategoryAgent).Error("generation %d failed: %v", gen, err)
	select {
	case e.errors <- transport.StreamError{Generation: gen, Err: err}:
	case <-ctx.Done():
	}
}

func (st *runState) joinedSummaries() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return strings.Join(st.summaries, "\n\n---\n\n")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func domain(url string) string {
	parts := strings.SplitN(url, "/", 4)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

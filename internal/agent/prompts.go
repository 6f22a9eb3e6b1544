package agent

import "time"

func currentDate() string {
	return time.Now().Format("January 2, 2006")
}

const queryWriterPrompt = `Your goal is to generate sophisticated and diverse web search queries.

Instructions:
- Always prefer a single search query; only add more if the question asks for multiple aspects and one query is not enough.
- Each query should focus on one specific aspect of the original question.
- Don't produce more than %d queries.
- Queries should be diverse; if the topic is broad, generate more than one query.
- Don't generate multiple similar queries; one is enough.
- The query should ensure the most current information is gathered. The current date is %s.

Format your response as a JSON object with these exact keys:
- "rationale": brief explanation of why these queries are relevant
- "query": a list of search query strings

Context: %s`

const webSearcherPrompt = `Conduct targeted web searches to gather the most recent, credible information on "%s" and synthesize it into a verifiable text artifact.

Instructions:
- The current date is %s.
- Consolidate key findings while meticulously tracking the source of each specific piece of information.
- The output should be a well-written summary or report based only on the search results provided below.
- Only include information found in the search results; don't make up any information.

Search results:
%s

Analyze these results and produce a comprehensive summary with citations.`

const reflectionPrompt = `You are an expert research assistant analyzing summaries about "%s".

Instructions:
- Identify knowledge gaps or areas that need deeper exploration and generate follow-up queries.
- If the provided summaries are sufficient to answer the user's question, don't generate follow-up queries.
- Focus on technical details, implementation specifics, or emerging trends that weren't fully covered.
- The current date is %s.

Format your response as a JSON object with these exact keys:
- "is_sufficient": true or false
- "knowledge_gap": describe what information is missing or needs clarification
- "follow_up_queries": a list of specific questions to address the gap

Summaries:
%s`

const contentQualityPrompt = `You are a research quality auditor evaluating content gathered about "%s".

Assess the overall quality and reliability of the research content below: source credibility, depth of coverage, internal consistency, and recency.

Format your response as a JSON object with these exact keys:
- "quality_score": a number between 0 and 1
- "reliability_assessment": a one-paragraph reliability judgment
- "content_gaps": a list of missing areas
- "improvement_suggestions": a list of concrete improvements

Content:
%s`

const factVerificationPrompt = `You are a fact checker reviewing research about "%s". The current date is %s.

Identify the key factual claims in the content below, classify each as verified or disputed, and estimate your overall confidence in the content's accuracy.

Format your response as a JSON object with these exact keys:
- "verified_facts": a list of claims that hold up
- "disputed_claims": a list of claims that are questionable or contradicted
- "verification_sources": a list of source names or domains used to check the claims
- "confidence_score": a number between 0 and 1

Content:
%s`

const relevanceAssessmentPrompt = `You are assessing how well gathered research content matches the topic "%s".

Evaluate topical alignment: which key aspects of the topic the content covers, which it misses, and how focused it stays.

Format your response as a JSON object with these exact keys:
- "relevance_score": a number between 0 and 1
- "key_topics_covered": a list of covered topics
- "missing_topics": a list of topics that should have been covered
- "content_alignment": a one-paragraph alignment judgment

Content:
%s`

const summaryOptimizationPrompt = `You are producing the final research summary for "%s". The current date is %s.

Rewrite the original summary into a polished, well-structured report, informed by the quality assessment, fact verification, and relevance assessment below. Keep every citation marker (like [1]) exactly where it belongs.

Format your response as a JSON object with these exact keys:
- "optimized_summary": the improved summary in markdown
- "key_insights": a list of the most important takeaways
- "actionable_items": a list of recommended next steps
- "confidence_level": one of "high", "medium", "low"

Original summary:
%s

Quality assessment: %s
Fact verification: %s
Relevance assessment: %s`

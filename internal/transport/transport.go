// Package transport defines the boundary between the client and the
// research agent: the message/request/event shapes the two sides
// exchange, and the effort-to-budget mapping applied at the input
// surface. The concrete stream producer lives in internal/agent; the
// chat layer only sees this interface.
package transport

import "strings"

// Message roles. The engine only distinguishes human from agent
// authorship; everything else about a message is opaque to the client.
const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

// Message is one unit of conversation history.
type Message struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // RoleHuman or RoleAI
	Content string `json:"content"`
}

// Request begins a new research generation. Generation is assigned by
// the caller and tags every event and error the resulting stream emits,
// so consumers can drop output from streams they have abandoned.
type Request struct {
	Generation        uint64
	Messages          []Message
	InitialQueryCount int
	MaxResearchLoops  int
	ReasoningModel    string
}

// Event is one incremental update from the agent pipeline. Payload is a
// single-key map naming the pipeline stage that produced it. Generation
// identifies which Submit the event belongs to; consumers drop events
// whose generation is stale.
type Event struct {
	Generation uint64
	Payload    map[string]any
}

// StreamError carries a stream failure tagged with its generation.
type StreamError struct {
	Generation uint64
	Err        error
}

// Transport is the agent stream producer consumed by the chat layer.
//
// Submit starts a new generation; events and errors arrive on the
// channels returned by Events and Errors. Stop is idempotent and may be
// called while idle. The transport is not re-hydratable in place after a
// restart: Initialize seeds message history for a restored conversation.
type Transport interface {
	Submit(req Request)
	Stop()
	Initialize(messages []Message)
	Messages() []Message
	IsLoading() bool
	Events() <-chan Event
	Errors() <-chan StreamError
}

// ConfirmedQueriesPrefix tags the sentinel human message that carries a
// user-confirmed query list back to the engine. Queries follow the
// prefix joined by " | ".
const ConfirmedQueriesPrefix = "[queries confirmed]"

// EncodeConfirmedQueries builds the sentinel message content for a
// confirmed query list.
func EncodeConfirmedQueries(queries []string) string {
	return ConfirmedQueriesPrefix + " " + strings.Join(queries, " | ")
}

// DecodeConfirmedQueries extracts the confirmed query list from a
// message content, reporting whether the sentinel was present.
func DecodeConfirmedQueries(content string) ([]string, bool) {
	idx := strings.Index(content, ConfirmedQueriesPrefix)
	if idx < 0 {
		return nil, false
	}
	rest := content[idx+len(ConfirmedQueriesPrefix):]
	var queries []string
	for _, q := range strings.Split(rest, "|") {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries, true
}

// EffortParams maps an effort level to (initial query count, max
// research loops). Unrecognized levels clamp to the medium tier rather
// than degrading to a zero-budget request.
func EffortParams(effort string) (queryCount, maxLoops int) {
	switch effort {
	case "low":
		return 1, 1
	case "high":
		return 5, 10
	default: // "medium" and anything unrecognized
		return 3, 3
	}
}

// ResearchTopic derives the topic under research from the message log:
// the sole human message, or the whole exchange flattened when the
// conversation has history.
func ResearchTopic(messages []Message) string {
	if len(messages) == 1 {
		return messages[0].Content
	}
	var b strings.Builder
	for _, m := range messages {
		if _, confirmed := DecodeConfirmedQueries(m.Content); confirmed {
			continue
		}
		switch m.Type {
		case RoleHuman:
			b.WriteString("User: " + m.Content + "\n")
		case RoleAI:
			b.WriteString("Assistant: " + m.Content + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// LastHumanMessage returns the most recent human-authored message.
func LastHumanMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Type == RoleHuman {
			return messages[i], true
		}
	}
	return Message{}, false
}

// LastAIMessage returns the most recent agent-authored message.
func LastAIMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Type == RoleAI {
			return messages[i], true
		}
	}
	return Message{}, false
}

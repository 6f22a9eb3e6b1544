package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Generator is the model surface the pipeline calls. Kept small so tests
// can script completions without a network.
type Generator interface {
	// GenerateText returns a free-form completion.
	GenerateText(ctx context.Context, model, prompt string) (string, error)
	// GenerateJSON requests a JSON completion and unmarshals it into out.
	GenerateJSON(ctx context.Context, model, prompt string, out any) error
}

// GenAIGenerator is the production Generator over the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
}

// NewGenAIGenerator creates a Gemini-backed generator.
func NewGenAIGenerator(ctx context.Context, apiKey string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIGenerator{client: client}, nil
}

// GenerateText implements Generator.
func (g *GenAIGenerator) GenerateText(ctx context.Context, model, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	res, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("model %s returned empty text", model)
	}
	return text, nil
}

// GenerateJSON implements Generator.
func (g *GenAIGenerator) GenerateJSON(ctx context.Context, model, prompt string, out any) error {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	res, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}
	return decodeJSONCompletion(res.Text(), out)
}

// decodeJSONCompletion unmarshals a model completion, tolerating a
// markdown code fence around the JSON object.
func decodeJSONCompletion(text string, out any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}

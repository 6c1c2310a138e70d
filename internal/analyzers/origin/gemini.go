package origin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiProvider names the Gemini scorer in traces.
const geminiProvider = "gemini"

// geminiPrompt asks for a bare likelihood so the reply parses as JSON.
const geminiPrompt = `Estimate the probability (0.0 to 1.0) that the following
source code was generated by an AI assistant rather than written by hand.
Respond with JSON: {"likelihood": <number>}.

`

// GeminiScorer asks a Gemini model for a per-file AI likelihood.
type GeminiScorer struct {
	client *genai.Client
	model  string
}

// NewGeminiScorer builds a scorer. An empty apiKey is rejected; callers
// skip remote scoring entirely when no key is configured.
func NewGeminiScorer(ctx context.Context, apiKey, model string) (*GeminiScorer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini scorer: %w", ErrMissingAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiScorer{client: client, model: model}, nil
}

// Name implements Scorer.
func (g *GeminiScorer) Name() string { return geminiProvider }

// Score implements Scorer.
func (g *GeminiScorer) Score(ctx context.Context, content string) (float64, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(geminiPrompt+content, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return 0, fmt.Errorf("gemini generate: %w", err)
	}

	var verdict struct {
		Likelihood float64 `json:"likelihood"`
	}

	text := strings.TrimSpace(resp.Text())
	if unmarshalErr := json.Unmarshal([]byte(text), &verdict); unmarshalErr != nil {
		return 0, fmt.Errorf("parse gemini reply: %w", unmarshalErr)
	}

	if verdict.Likelihood < 0 || verdict.Likelihood > 1 {
		return 0, fmt.Errorf("gemini likelihood %f out of range", verdict.Likelihood)
	}

	return verdict.Likelihood, nil
}

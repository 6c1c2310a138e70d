// Package judge consults a Gemini model for a product-level verdict on a
// repository: inferred purpose, feature list, implementation score and
// written feedback, validated against a strict JSON schema.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for verdicts.
const DefaultModel = "gemini-2.0-flash"

// Verdict values.
const (
	VerdictProductionReady = "Production Ready"
	VerdictPrototype       = "Prototype"
	VerdictBroken          = "Broken"
)

// Sentinel errors.
var (
	// ErrMissingAPIKey indicates the judge was constructed without credentials.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrInvalidVerdict indicates the model reply failed schema validation.
	ErrInvalidVerdict = errors.New("verdict failed schema validation")
)

// Verdict is the judge's structured output.
type Verdict struct {
	ProjectName          string   `json:"project_name"`
	Description          string   `json:"description"`
	Features             []string `json:"features"`
	TechStackObserved    []string `json:"tech_stack_observed"`
	ImplementationScore  float64  `json:"implementation_score"`
	PositiveFeedback     string   `json:"positive_feedback"`
	ConstructiveFeedback string   `json:"constructive_feedback"`
	Verdict              string   `json:"verdict"`
	// Skipped is set when no API key was configured; the score stays 0.
	Skipped bool `json:"skipped,omitempty"`
}

// Skipped returns the zero-score verdict used when the judge is disabled.
func Skipped() Verdict {
	return Verdict{
		Description: "Judge skipped: no API key configured.",
		Skipped:     true,
	}
}

// verdictSchema validates the model reply before it is trusted.
const verdictSchema = `{
	"type": "object",
	"required": ["project_name", "description", "implementation_score", "verdict"],
	"properties": {
		"project_name": {"type": "string"},
		"description": {"type": "string"},
		"features": {"type": "array", "items": {"type": "string"}},
		"tech_stack_observed": {"type": "array", "items": {"type": "string"}},
		"implementation_score": {"type": "number", "minimum": 0, "maximum": 100},
		"positive_feedback": {"type": "string"},
		"constructive_feedback": {"type": "string"},
		"verdict": {"enum": ["Production Ready", "Prototype", "Broken"]}
	}
}`

// prompt frames the judge role. The summary is appended below it.
const prompt = `You are a Senior CTO judging a hackathon. Analyze the following
codebase summary.

OUTPUT MUST BE VALID JSON ONLY. NO MARKDOWN.

JSON Schema:
{
	"project_name": "inferred name",
	"description": "1 sentence summary",
	"features": ["list", "of", "features"],
	"tech_stack_observed": ["list", "of", "libs"],
	"implementation_score": 0,
	"positive_feedback": "string",
	"constructive_feedback": "string",
	"verdict": "Production Ready / Prototype / Broken"
}

CODEBASE CONTEXT:
`

// Judge calls the Gemini API and validates its replies.
type Judge struct {
	client       *genai.Client
	model        string
	summaryLimit int
	logger       *slog.Logger
	schema       *gojsonschema.Schema
}

// New builds a Judge. An empty apiKey is an error; callers that want the
// skip behavior construct no judge at all.
func New(ctx context.Context, apiKey, model string, summaryLimit int, logger *slog.Logger) (*Judge, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	if model == "" {
		model = DefaultModel
	}

	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	schema, schemaErr := gojsonschema.NewSchema(gojsonschema.NewStringLoader(verdictSchema))
	if schemaErr != nil {
		return nil, fmt.Errorf("compile verdict schema: %w", schemaErr)
	}

	return &Judge{
		client:       client,
		model:        model,
		summaryLimit: summaryLimit,
		logger:       logger.With("component", "judge"),
		schema:       schema,
	}, nil
}

// Evaluate summarizes the tree at root and asks the model for a verdict.
func (j *Judge) Evaluate(ctx context.Context, root string) (Verdict, error) {
	summary, err := BuildSummary(ctx, root, j.summaryLimit)
	if err != nil {
		return Verdict{}, err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt+summary, genai.RoleUser),
	}

	resp, genErr := j.client.Models.GenerateContent(ctx, j.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if genErr != nil {
		return Verdict{}, fmt.Errorf("judge generate: %w", genErr)
	}

	reply := strings.TrimSpace(resp.Text())

	verdict, parseErr := ParseVerdict(j.schema, reply)
	if parseErr != nil {
		j.logger.Warn("judge reply rejected", "error", parseErr)

		return Verdict{}, parseErr
	}

	return verdict, nil
}

// ParseVerdict validates and decodes a raw model reply.
func ParseVerdict(schema *gojsonschema.Schema, reply string) (Verdict, error) {
	result, err := schema.Validate(gojsonschema.NewStringLoader(reply))
	if err != nil {
		return Verdict{}, fmt.Errorf("validate verdict: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}

		return Verdict{}, fmt.Errorf("%w: %s", ErrInvalidVerdict, strings.Join(details, "; "))
	}

	var verdict Verdict
	if unmarshalErr := json.Unmarshal([]byte(reply), &verdict); unmarshalErr != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", unmarshalErr)
	}

	return verdict, nil
}

// NewSchema compiles the verdict schema for callers that validate replies
// without a live client.
func NewSchema() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(verdictSchema))
	if err != nil {
		return nil, fmt.Errorf("compile verdict schema: %w", err)
	}

	return schema, nil
}

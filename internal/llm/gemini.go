// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm calls Gemini for relevance scoring and structured extraction.
// Both calls request JSON output constrained by a response schema and
// validate the result before returning it.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// ErrMissingAPIKey is returned when no Gemini key is configured.
var ErrMissingAPIKey = errors.New("GOOGLE_API_KEY is not set")

// Operation labels used for metrics.
const (
	OpScore   = "score"
	OpExtract = "extract"
)

// generator is the single Gemini call the package depends on. Tests replace
// it to avoid the network.
type generator interface {
	generate(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g genaiGenerator) generate(ctx context.Context, model, prompt string, schema *genai.Schema) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	return text, nil
}

// Gemini scores and extracts papers with Google's Gemini models.
type Gemini struct {
	gen             generator
	prompts         *Prompts
	modelScreening  string
	modelExtraction string
	metrics         *observability.Metrics
}

// NewGemini creates a Gemini client for the Gemini Developer API.
func NewGemini(ctx context.Context, settings types.LLMSettings, prompts *Prompts, metrics *observability.Metrics) (*Gemini, error) {
	if settings.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  settings.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return newGemini(genaiGenerator{client: client}, settings, prompts, metrics), nil
}

func newGemini(gen generator, settings types.LLMSettings, prompts *Prompts, metrics *observability.Metrics) *Gemini {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Gemini{
		gen:             gen,
		prompts:         prompts,
		modelScreening:  settings.ModelScreening,
		modelExtraction: settings.ModelExtraction,
		metrics:         metrics,
	}
}

// Score asks the screening model for a 0-10 relevance score, a reason and a
// short summary.
func (g *Gemini) Score(ctx context.Context, scope, title, abstract string) (types.Screening, error) {
	prompt, err := g.prompts.Screening(scope, title, abstract)
	if err != nil {
		return types.Screening{}, err
	}

	start := time.Now()
	text, err := g.gen.generate(ctx, g.modelScreening, prompt, screeningSchema)
	if err != nil {
		g.observe(OpScore, "error", start)
		return types.Screening{}, fmt.Errorf("scoring %q: %w", title, err)
	}
	s, err := ParseScreening(text)
	if err != nil {
		g.observe(OpScore, "malformed", start)
		return types.Screening{}, fmt.Errorf("scoring %q: %w", title, err)
	}
	g.observe(OpScore, "ok", start)
	return s, nil
}

// Extract asks the extraction model for the review matrix fields.
func (g *Gemini) Extract(ctx context.Context, title, abstract string) (types.Extraction, error) {
	prompt, err := g.prompts.Extraction(title, abstract)
	if err != nil {
		return types.Extraction{}, err
	}

	start := time.Now()
	text, err := g.gen.generate(ctx, g.modelExtraction, prompt, extractionSchema)
	if err != nil {
		g.observe(OpExtract, "error", start)
		return types.Extraction{}, fmt.Errorf("extracting %q: %w", title, err)
	}
	e, err := ParseExtraction(text)
	if err != nil {
		g.observe(OpExtract, "malformed", start)
		return types.Extraction{}, fmt.Errorf("extracting %q: %w", title, err)
	}
	g.observe(OpExtract, "ok", start)
	return e, nil
}

func (g *Gemini) observe(op, outcome string, start time.Time) {
	g.metrics.ObserveLLM(op, outcome, time.Since(start).Seconds())
}

var screeningSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"relevance_score": {
			Type:        genai.TypeInteger,
			Description: "Score from 0 to 10 indicating relevance to the research theme.",
		},
		"relevance_reason": {
			Type:        genai.TypeString,
			Description: "Brief reason for the assigned score.",
		},
		"summary": {
			Type:        genai.TypeString,
			Description: "A 1-2 sentence summary of the paper.",
		},
	},
	Required:         []string{"relevance_score", "relevance_reason", "summary"},
	PropertyOrdering: []string{"relevance_score", "relevance_reason", "summary"},
}

var extractionSchema = func() *genai.Schema {
	enum := make([]string, len(types.Categories))
	for i, c := range types.Categories {
		enum[i] = string(c)
	}
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	fields := []string{"problem", "method", "dataset", "metric", "limitation", "category", "one_line_summary"}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"problem":          str("The specific research problem addressed by the paper."),
			"method":           str("The proposed method or algorithm name."),
			"dataset":          str("The datasets used in the study."),
			"metric":           str("Evaluation metrics and key results."),
			"limitation":       str("Limitations or future work."),
			"category":         {Type: genai.TypeString, Description: "Category of the paper.", Enum: enum},
			"one_line_summary": str("A one-line summary of the paper."),
		},
		Required:         fields,
		PropertyOrdering: fields,
	}
}()

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/review-matrix/pkg/types"
)

// ErrMalformedResponse marks a structured response that could not be parsed
// or violates the response schema.
var ErrMalformedResponse = errors.New("malformed LLM response")

type screeningResponse struct {
	RelevanceScore  *int   `json:"relevance_score"`
	RelevanceReason string `json:"relevance_reason"`
	Summary         string `json:"summary"`
}

// ParseScreening decodes a scoring response and checks the score range.
func ParseScreening(text string) (types.Screening, error) {
	var r screeningResponse
	if err := json.Unmarshal([]byte(stripFence(text)), &r); err != nil {
		return types.Screening{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if r.RelevanceScore == nil {
		return types.Screening{}, fmt.Errorf("%w: missing relevance_score", ErrMalformedResponse)
	}
	if s := *r.RelevanceScore; s < 0 || s > 10 {
		return types.Screening{}, fmt.Errorf("%w: relevance_score %d outside 0..10", ErrMalformedResponse, s)
	}
	return types.Screening{
		RelevanceScore:  *r.RelevanceScore,
		RelevanceReason: r.RelevanceReason,
		Summary:         r.Summary,
	}, nil
}

// ParseExtraction decodes an extraction response and checks the category.
func ParseExtraction(text string) (types.Extraction, error) {
	var e types.Extraction
	if err := json.Unmarshal([]byte(stripFence(text)), &e); err != nil {
		return types.Extraction{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if !e.Category.Valid() {
		return types.Extraction{}, fmt.Errorf("%w: unknown category %q", ErrMalformedResponse, e.Category)
	}
	return e, nil
}

// stripFence removes a ```json fence some models wrap around JSON output.
func stripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

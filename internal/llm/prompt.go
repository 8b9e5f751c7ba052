// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
)

// Prompt file names looked up in the prompts directory.
const (
	ScreeningPromptFile  = "screening.txt"
	ExtractionPromptFile = "extraction.txt"
)

const defaultScreeningPrompt = `You are an expert research assistant screening academic papers for a literature review.

Research scope:
{{.ResearchScope}}

Rate how relevant the following paper is to the research scope on a scale from 0 (unrelated) to 10 (central to the scope).

Title: {{.Title}}

Abstract:
{{.Abstract}}

Respond with a JSON object with these fields:
- relevance_score: integer from 0 to 10
- relevance_reason: one or two sentences explaining the score
- summary: a one or two sentence summary of the paper
`

const defaultExtractionPrompt = `You are an expert research assistant building a literature review matrix.

Read the paper below and extract the following fields:
- problem: the specific research problem addressed
- method: the proposed method or algorithm name
- dataset: the datasets used in the study
- metric: evaluation metrics and key results
- limitation: limitations or future work
- category: exactly one of Method, Survey, Theory, Application
- one_line_summary: a one-line summary of the paper

Title: {{.Title}}

Abstract:
{{.Abstract}}

Respond with a JSON object containing exactly these fields.
`

// PromptData is the template input for both prompts. ResearchScope is
// empty for extraction.
type PromptData struct {
	ResearchScope string
	Title         string
	Abstract      string
}

// Prompts holds the parsed screening and extraction templates.
type Prompts struct {
	screening  *template.Template
	extraction *template.Template
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() *Prompts {
	return &Prompts{
		screening:  template.Must(template.New("screening").Parse(defaultScreeningPrompt)),
		extraction: template.Must(template.New("extraction").Parse(defaultExtractionPrompt)),
	}
}

// LoadPrompts returns the built-in templates, replacing each one for which
// dir contains an override file. An empty dir yields the defaults.
func LoadPrompts(dir string) (*Prompts, error) {
	p := DefaultPrompts()
	if dir == "" {
		return p, nil
	}

	var err error
	if p.screening, err = override(p.screening, filepath.Join(dir, ScreeningPromptFile)); err != nil {
		return nil, err
	}
	if p.extraction, err = override(p.extraction, filepath.Join(dir, ExtractionPromptFile)); err != nil {
		return nil, err
	}
	return p, nil
}

func override(def *template.Template, path string) (*template.Template, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading prompt %s: %w", path, err)
	}
	t, err := template.New(def.Name()).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing prompt %s: %w", path, err)
	}
	return t, nil
}

// Screening renders the screening prompt.
func (p *Prompts) Screening(scope, title, abstract string) (string, error) {
	return render(p.screening, PromptData{ResearchScope: scope, Title: title, Abstract: abstract})
}

// Extraction renders the extraction prompt.
func (p *Prompts) Extraction(title, abstract string) (string, error) {
	return render(p.extraction, PromptData{Title: title, Abstract: abstract})
}

func render(t *template.Template, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

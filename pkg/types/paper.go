// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ExternalIDs is the nested identifier block Semantic Scholar attaches to
// each paper. Only DOI is used as the canonical identifier.
type ExternalIDs struct {
	DOI      string `json:"DOI,omitempty" yaml:"doi,omitempty"`
	ArXiv    string `json:"ArXiv,omitempty" yaml:"arxiv,omitempty"`
	CorpusID int    `json:"CorpusId,omitempty" yaml:"corpus_id,omitempty"`
}

// RawPaper is a paper stub exactly as returned by the bibliographic API.
// Year and CitationCount are nil when the API omits them.
type RawPaper struct {
	PaperID       string       `json:"paperId,omitempty" yaml:"paper_id,omitempty"`
	Title         string       `json:"title" yaml:"title"`
	Year          *int         `json:"year" yaml:"year"`
	CitationCount *int         `json:"citationCount" yaml:"citation_count"`
	Abstract      string       `json:"abstract" yaml:"abstract"`
	ExternalIDs   *ExternalIDs `json:"externalIds" yaml:"external_ids"`
	URL           string       `json:"url" yaml:"url"`
}

// DOI returns the DOI from the external identifier block, or "".
func (p RawPaper) DOI() string {
	if p.ExternalIDs == nil {
		return ""
	}
	return p.ExternalIDs.DOI
}

// Candidate is a normalized paper that survived deduplication and filtering.
// DOI is the canonical identifier and primary key for deduplication.
type Candidate struct {
	DOI           string `json:"doi" yaml:"doi"`
	Title         string `json:"title" yaml:"title"`
	Year          *int   `json:"year,omitempty" yaml:"year,omitempty"`
	CitationCount *int   `json:"citation_count,omitempty" yaml:"citation_count,omitempty"`
	Abstract      string `json:"abstract" yaml:"abstract"`
	URL           string `json:"url" yaml:"url"`

	// Iteration is the round (1-based) in which the paper was first scored.
	Iteration int `json:"iteration" yaml:"iteration"`
}

// Screening is the relevance judgement produced by the scorer.
type Screening struct {
	RelevanceScore  int    `json:"relevance_score" yaml:"relevance_score"`
	RelevanceReason string `json:"relevance_reason" yaml:"relevance_reason"`
	Summary         string `json:"summary" yaml:"summary"`
}

// ScoredPaper is a Candidate with its Screening attached.
type ScoredPaper struct {
	Candidate `yaml:",inline"`
	Screening `yaml:",inline"`
}

// Category classifies a paper during extraction.
type Category string

const (
	CategoryMethod      Category = "Method"
	CategorySurvey      Category = "Survey"
	CategoryTheory      Category = "Theory"
	CategoryApplication Category = "Application"

	// CategoryError marks a failed extraction.
	CategoryError Category = "Error"
)

// Categories lists the accepted extraction categories in schema order.
var Categories = []Category{CategoryMethod, CategorySurvey, CategoryTheory, CategoryApplication}

// Valid reports whether c is one of the accepted categories.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// ErrorMarker is written into every extraction field when extraction fails.
const ErrorMarker = "Error"

// Extraction holds the structured review fields for one paper.
type Extraction struct {
	Problem        string   `json:"problem" yaml:"problem"`
	Method         string   `json:"method" yaml:"method"`
	Dataset        string   `json:"dataset" yaml:"dataset"`
	Metric         string   `json:"metric" yaml:"metric"`
	Limitation     string   `json:"limitation" yaml:"limitation"`
	Category       Category `json:"category" yaml:"category"`
	OneLineSummary string   `json:"one_line_summary" yaml:"one_line_summary"`
}

// FailedExtraction returns an Extraction with ErrorMarker in every field.
func FailedExtraction() Extraction {
	return Extraction{
		Problem:        ErrorMarker,
		Method:         ErrorMarker,
		Dataset:        ErrorMarker,
		Metric:         ErrorMarker,
		Limitation:     ErrorMarker,
		Category:       CategoryError,
		OneLineSummary: ErrorMarker,
	}
}

// ExtractedPaper is a row of the final review matrix.
type ExtractedPaper struct {
	ScoredPaper `yaml:",inline"`
	Extraction  `yaml:",inline"`
}

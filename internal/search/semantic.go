// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/review-matrix/internal/httputil"
	"github.com/pdiddy/review-matrix/internal/observability"
	"github.com/pdiddy/review-matrix/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

// SemanticScholar queries the Semantic Scholar Graph API through a retrying,
// rate-limited client.
type SemanticScholar struct {
	client *httputil.Client
	logger zerolog.Logger
}

// NewSemanticScholar builds a client from the search settings. The retry
// policy governs 429/5xx handling; hc may be nil.
func NewSemanticScholar(cfg types.SearchConfig, policy httputil.RetryPolicy, hc *http.Client, logger zerolog.Logger, metrics *observability.Metrics) *SemanticScholar {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
		if cfg.Timeout <= 0 {
			hc.Timeout = httputil.DefaultTimeout
		}
	}
	client := httputil.NewClient(semanticAPIBase, policy,
		httputil.WithHTTPClient(hc),
		httputil.WithHeader("x-api-key", cfg.SemanticScholarAPIKey),
		httputil.WithHeader("User-Agent", cfg.UserAgent),
		httputil.WithRateLimit(cfg.RequestsPerSecond),
		httputil.WithLogger(observability.Component(logger, "httpclient")),
		httputil.WithMetrics(metrics),
	)
	return &SemanticScholar{client: client, logger: logger}
}

// SearchKeywords runs one keyword search with the keywords joined by spaces
// and returns at most limit hits.
func (s *SemanticScholar) SearchKeywords(ctx context.Context, keywords []string, limit int) ([]types.RawPaper, error) {
	query := strings.Join(keywords, " ")
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty keyword query")
	}
	s.logger.Info().Str("query", query).Int("limit", limit).Msg("searching papers by keywords")

	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(limit)},
		"fields": {fieldList()},
	}

	var resp struct {
		Total int              `json:"total"`
		Data  []types.RawPaper `json:"data"`
	}
	if err := s.client.GetJSON(ctx, "paper/search", params, &resp); err != nil {
		return nil, fmt.Errorf("keyword search %q: %w", query, err)
	}
	if limit > 0 && len(resp.Data) > limit {
		resp.Data = resp.Data[:limit]
	}
	return resp.Data, nil
}

// Lookup fetches the paper with the given DOI together with its references
// and citations in a single request.
func (s *SemanticScholar) Lookup(ctx context.Context, doi string) (PaperDetail, error) {
	s.logger.Info().Str("doi", doi).Msg("looking up paper")
	params := url.Values{"fields": {fieldList("", "references.", "citations.")}}

	var d PaperDetail
	if err := s.client.GetJSON(ctx, doiEndpoint(doi), params, &d); err != nil {
		return PaperDetail{}, fmt.Errorf("paper lookup %s: %w", doi, err)
	}
	return d, nil
}

// Related returns the references then citations of the paper with the
// given DOI.
func (s *SemanticScholar) Related(ctx context.Context, doi string) ([]types.RawPaper, error) {
	s.logger.Info().Str("doi", doi).Msg("getting references and citations")
	params := url.Values{"fields": {fieldList("references.", "citations.")}}

	var d PaperDetail
	if err := s.client.GetJSON(ctx, doiEndpoint(doi), params, &d); err != nil {
		return nil, fmt.Errorf("related papers for %s: %w", doi, err)
	}
	return d.Related(), nil
}

// doiEndpoint builds the paper path for doi. DOIs may contain '#', '?' or
// '%', which are escaped; slashes are kept.
func doiEndpoint(doi string) string {
	return "paper/DOI:" + (&url.URL{Path: doi}).EscapedPath()
}

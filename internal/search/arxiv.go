// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pdiddy/review-matrix/internal/httputil"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// Arxiv looks up abstracts in the arXiv Atom API. Calls are not retried;
// the enricher treats any failure as "no abstract".
type Arxiv struct {
	Client    *http.Client
	UserAgent string
}

// NewArxiv returns an Arxiv client using hc, or a client with the default
// timeout when hc is nil.
func NewArxiv(hc *http.Client, userAgent string) *Arxiv {
	if hc == nil {
		hc = &http.Client{Timeout: httputil.DefaultTimeout}
	}
	return &Arxiv{Client: hc, UserAgent: userAgent}
}

// Lookup queries arXiv by quoted title, OR-ed with the DOI when one is
// known, and returns the single top match. ok is false when arXiv has no
// entry.
func (a *Arxiv) Lookup(ctx context.Context, title, doi string) (m Match, ok bool, err error) {
	params := url.Values{
		"search_query": {buildArxivQuery(title, doi)},
		"start":        {"0"},
		"max_results":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return Match{}, false, fmt.Errorf("creating request: %w", err)
	}
	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return Match{}, false, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Match{}, false, &httputil.StatusError{StatusCode: resp.StatusCode, URL: req.URL.String(), Body: strings.TrimSpace(string(body))}
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return Match{}, false, fmt.Errorf("parsing arXiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return Match{}, false, nil
	}

	e := feed.Entries[0]
	return Match{
		Title:   collapseSpace(e.Title),
		Summary: strings.TrimSpace(e.Summary),
		Source:  "arxiv",
	}, true, nil
}

// buildArxivQuery builds `ti:"<title>" OR id:<doi>`.
func buildArxivQuery(title, doi string) string {
	q := fmt.Sprintf("ti:%q", strings.ReplaceAll(title, `"`, ""))
	if doi != "" {
		q += " OR id:" + doi
	}
	return q
}

// collapseSpace folds the line breaks arXiv inserts into long titles.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID      string `xml:"id"`
	Title   string `xml:"title"`
	Summary string `xml:"summary"`
}

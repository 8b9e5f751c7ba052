// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pdiddy/review-matrix/internal/httputil"
)

// openAlexAPIBase is the OpenAlex API root. Declared as a var so tests can
// substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org"

// OpenAlex looks up abstracts in OpenAlex, which stores them as inverted
// indexes.
type OpenAlex struct {
	Client    *http.Client
	UserAgent string

	// Email is sent as mailto parameter for polite pool access.
	Email string
}

// NewOpenAlex returns an OpenAlex index using hc.
func NewOpenAlex(hc *http.Client, email, userAgent string) *OpenAlex {
	if hc == nil {
		hc = &http.Client{Timeout: httputil.DefaultTimeout}
	}
	return &OpenAlex{Client: hc, Email: email, UserAgent: userAgent}
}

// Lookup fetches the work by DOI when one is known, otherwise the top
// title search hit. ok is false when OpenAlex has no such work or it
// carries no abstract.
func (o *OpenAlex) Lookup(ctx context.Context, title, doi string) (m Match, ok bool, err error) {
	params := url.Values{"select": {"title,abstract_inverted_index"}}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	var endpoint string
	if doi = strings.TrimSpace(doi); doi != "" {
		endpoint = "/works/doi:" + doi
	} else {
		endpoint = "/works"
		params.Set("filter", "title.search:"+strings.ReplaceAll(title, ",", " "))
		params.Set("per_page", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAlexAPIBase+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Match{}, false, fmt.Errorf("creating request: %w", err)
	}
	if o.UserAgent != "" {
		req.Header.Set("User-Agent", o.UserAgent)
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return Match{}, false, fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Match{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Match{}, false, &httputil.StatusError{StatusCode: resp.StatusCode, URL: req.URL.String(), Body: strings.TrimSpace(string(body))}
	}

	var work openAlexWork
	if doi != "" {
		if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
			return Match{}, false, fmt.Errorf("parsing OpenAlex response: %w", err)
		}
	} else {
		var list openAlexResponse
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return Match{}, false, fmt.Errorf("parsing OpenAlex response: %w", err)
		}
		if len(list.Results) == 0 {
			return Match{}, false, nil
		}
		work = list.Results[0]
	}

	abstract := reconstructAbstract(work.AbstractInvertedIndex)
	if abstract == "" {
		return Match{}, false, nil
	}
	return Match{Title: work.Title, Summary: abstract, Source: "openalex"}, true, nil
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	Title                 string           `json:"title"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

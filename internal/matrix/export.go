// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/review-matrix/pkg/types"
)

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

const exportLimit = 100000

// Export writes the papers matching opts to w as YAML or JSON. A zero
// MaxResults exports every match.
func (s *Store) Export(ctx context.Context, w io.Writer, format string, opts QueryOptions) error {
	if opts.MaxResults <= 0 {
		opts.MaxResults = exportLimit
	}
	papers, err := s.Query(ctx, opts)
	if err != nil {
		return fmt.Errorf("querying for export: %w", err)
	}
	if papers == nil {
		papers = []types.ExtractedPaper{}
	}

	switch format {
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(papers); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(papers); err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
}

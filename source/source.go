// Package source defines the search source adapter abstraction.
//
// Each adapter translates the pipeline's query format into a provider's API
// syntax and normalizes responses into paper.RawPaper records. Adapters own
// their provider's paging, rate and transient-failure semantics.
package source

import (
	"context"

	"github.com/dshills/paperflow/paper"
)

// SearchOptions narrows a single keyword search.
type SearchOptions struct {
	MaxResults int
	YearFrom   int
	YearTo     int
	Language   string
}

// Source is a single external paper search provider.
type Source interface {
	// Name uniquely identifies this source (e.g. "serpapi_scholar").
	Name() string

	// Search runs a simple keyword query.
	Search(ctx context.Context, query string, opts SearchOptions) ([]paper.RawPaper, error)

	// SearchAdvanced fans a per-query budget across strategy.Queries and
	// deduplicates the combined result. Per-query transient failures are
	// dropped; only permanent auth failures surface.
	SearchAdvanced(ctx context.Context, strategy paper.SearchStrategy) ([]paper.RawPaper, error)
}

package search

import (
	"context"

	"github.com/stenograf/stenograf/internal/repository"
)

// fallbackSearch serves a query from the content store when the engine is
// unreachable or unconfigured. The result shape is identical to the engine
// path so callers never branch on the origin.
func (s *Searcher) fallbackSearch(ctx context.Context, params QueryParams) (*Result, error) {
	rows, err := s.segments.KeywordSearch(ctx, repository.KeywordSearchParams{
		Query:   params.Query,
		Mode:    fallbackMode(params.Mode),
		OrderBy: "rank",
		Limit:   params.PageSize,
		Offset:  (params.Page - 1) * params.PageSize,
	})
	if err != nil {
		return nil, err
	}

	docs := TransformBatch(rows)
	raw, err := jsonRoundTrip(docs)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Hits:     make([]Hit, 0, len(raw)),
		Total:    int64(len(raw)),
		Page:     params.Page,
		PageSize: params.PageSize,
		Query:    params.Query,
		Fallback: true,
	}
	for _, hit := range raw {
		result.Hits = append(result.Hits, NormalizeHit(hit))
	}
	return result, nil
}

// fallbackMode maps query modes onto the SQL matching strategies: lexical
// stays a trigram/ILIKE match, everything semantic degrades to full text.
func fallbackMode(mode QueryMode) repository.KeywordSearchMode {
	switch mode {
	case ModeSemantic, ModeHybrid:
		return repository.KeywordFulltext
	default:
		return repository.KeywordExact
	}
}

package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stenograf/stenograf/internal/config"
	"github.com/stenograf/stenograf/internal/observability"
	"github.com/stenograf/stenograf/internal/repository"
)

// QueryMode selects the retrieval strategy.
type QueryMode string

const (
	// ModeLexical is plain keyword search with no semantic component.
	ModeLexical QueryMode = "lexical"
	// ModeSemantic ranks purely by vector similarity.
	ModeSemantic QueryMode = "semantic"
	// ModeHybrid blends lexical and semantic scores at the configured ratio.
	ModeHybrid QueryMode = "hybrid"
)

// ErrSegmentNotFound reports a similarity query for an unknown segment.
var ErrSegmentNotFound = errors.New("segment not found")

// QueryParams is the public query surface.
type QueryParams struct {
	Query    string
	Page     int
	PageSize int
	Mode     QueryMode
	// Index is segments or events; empty defaults to segments.
	Index   string
	Locales []string
	Filter  FilterSpec
}

// Hit is one normalized result. Every hit carries the full superset of
// segment and event fields; absent values are explicit nulls so consumers
// stay polymorphic across indexes.
type Hit map[string]any

// Result is a normalized page of hits.
type Result struct {
	Hits     []Hit  `json:"hits"`
	Total    int64  `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Query    string `json:"query"`
	// Fallback marks results served from the SQL path because the engine
	// was unreachable.
	Fallback bool `json:"fallback"`
}

// similarSeedLimit caps the text used to seed the similarity fallback.
const similarSeedLimit = 500

// Searcher translates query parameters into engine requests and normalizes
// the results. When the engine is unreachable it degrades to an equivalent
// SQL search against the content store.
type Searcher struct {
	engine   Engine
	segments repository.SegmentRepository
	cfg      config.SearchConfig
	logger   *slog.Logger
}

// NewSearcher creates a Searcher. engine may be nil when no engine host is
// configured; every query then takes the SQL path.
func NewSearcher(engine Engine, segments repository.SegmentRepository, cfg config.SearchConfig, logger *slog.Logger) *Searcher {
	return &Searcher{
		engine:   engine,
		segments: segments,
		cfg:      cfg,
		logger:   observability.WithComponent(logger, "search"),
	}
}

// Search runs one query. Filter parameters translate into a conjunctive
// engine filter string; mode dispatch sets the semantic ratio.
func (s *Searcher) Search(ctx context.Context, params QueryParams) (*Result, error) {
	params = s.normalizeParams(params)

	if s.engine == nil {
		return s.fallbackSearch(ctx, params)
	}

	req := &meilisearch.SearchRequest{
		Limit:  int64(params.PageSize),
		Offset: int64((params.Page - 1) * params.PageSize),
	}
	if filter := BuildFilter(params.Filter); filter != "" {
		req.Filter = filter
	}
	switch params.Mode {
	case ModeSemantic:
		req.Hybrid = &meilisearch.SearchRequestHybrid{SemanticRatio: 1, Embedder: embedderName}
	case ModeHybrid:
		req.Hybrid = &meilisearch.SearchRequestHybrid{SemanticRatio: s.cfg.HybridRatio, Embedder: embedderName}
	}
	req.Locates = append(req.Locates, params.Locales...)

	resp, err := s.engine.Search(ctx, params.Index, params.Query, req)
	if err != nil {
		if errors.Is(err, ErrEngineUnavailable) {
			s.logger.Warn("engine unreachable, using sql fallback", "error", err)
			return s.fallbackSearch(ctx, params)
		}
		return nil, err
	}

	hits, err := decodeHits(resp.Hits)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Hits:     make([]Hit, 0, len(hits)),
		Total:    resp.EstimatedTotalHits,
		Page:     params.Page,
		PageSize: params.PageSize,
		Query:    params.Query,
	}
	for _, hit := range hits {
		result.Hits = append(result.Hits, NormalizeHit(hit))
	}
	return result, nil
}

// SimilarSegments finds segments similar to a source segment. The engine's
// native similar-documents endpoint is tried first; on failure or empty
// support it degrades to a hybrid search seeded with the source text.
func (s *Searcher) SimilarSegments(ctx context.Context, id string, limit int) (*Result, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}

	if s.engine != nil {
		hits, err := s.engine.SimilarDocuments(ctx, IndexSegments, &meilisearch.SimilarDocumentQuery{
			Id:       id,
			Limit:    int64(limit),
			Embedder: embedderName,
		})
		if err == nil && len(hits) > 0 {
			result := &Result{Hits: make([]Hit, 0, len(hits)), Total: int64(len(hits)), Page: 1, PageSize: limit}
			for _, hit := range hits {
				result.Hits = append(result.Hits, NormalizeHit(hit))
			}
			return result, nil
		}
		if err != nil {
			s.logger.Debug("native similar-documents unavailable", "id", id, "error", err)
		}
	}

	return s.similarByText(ctx, id, limit)
}

// similarByText seeds a hybrid query with the source segment's text and
// filters the source itself out of the results.
func (s *Searcher) similarByText(ctx context.Context, id string, limit int) (*Result, error) {
	rowID, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id %q", ErrSegmentNotFound, id)
	}
	row, err := s.segments.GetByID(ctx, uint(rowID))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrSegmentNotFound
	}

	seed := row.Segment.TranscriptText
	if len(seed) > similarSeedLimit {
		seed = seed[:similarSeedLimit]
	}

	result, err := s.Search(ctx, QueryParams{
		Query:    seed,
		Page:     1,
		PageSize: limit + 1,
		Mode:     ModeHybrid,
		Index:    IndexSegments,
	})
	if err != nil {
		return nil, err
	}

	filtered := make([]Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if hitID, _ := hit["id"].(string); hitID == id {
			continue
		}
		if len(filtered) == limit {
			break
		}
		filtered = append(filtered, hit)
	}
	result.Hits = filtered
	result.PageSize = limit
	return result, nil
}

// Suggest queries the typeahead index. Results keep their native shape;
// kind, when set, restricts to one discriminator.
func (s *Searcher) Suggest(ctx context.Context, query, kind string, limit int) ([]Hit, error) {
	if s.engine == nil {
		return nil, ErrEngineUnavailable
	}
	if limit <= 0 {
		limit = 10
	}

	req := &meilisearch.SearchRequest{
		Limit: int64(limit),
		Sort:  []string{"weight:desc"},
	}
	if kind != "" {
		req.Filter = fmt.Sprintf("kind = %q", kind)
	}

	resp, err := s.engine.Search(ctx, IndexSuggestions, query, req)
	if err != nil {
		return nil, err
	}
	raw, err := decodeHits(resp.Hits)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, Hit(h))
	}
	return hits, nil
}

// normalizeParams applies defaults and caps.
func (s *Searcher) normalizeParams(params QueryParams) QueryParams {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = s.cfg.DefaultPageSize
	}
	if limit := s.cfg.MaxSearchResults; limit > 0 && params.PageSize > limit {
		params.PageSize = limit
	}
	if params.Index == "" {
		params.Index = IndexSegments
	}
	if params.Mode == "" {
		params.Mode = ModeLexical
	}
	return params
}

// hitFields is the superset shape every normalized hit carries. Fields a
// document lacks come back as explicit nulls.
var hitFields = []string{
	"id", "videoId", "text", "speaker", "speakerParty", "topic", "language",
	"date", "video_seconds", "segment_url", "video_title",
	"source", "candidate", "record_type", "format", "place",
	"title", "description", "top_topics",
	"sentiment", "moderation", "readability", "stresslens", "document",
}

// moderationCategories are the five scored categories.
var moderationCategories = []string{"harassment", "hate", "violence", "sexual", "selfharm"}

// NormalizeHit maps an engine hit onto the uniform superset shape. The
// moderation overall score, when absent, is computed as the max over the
// five category scores.
func NormalizeHit(raw map[string]any) Hit {
	hit := make(Hit, len(hitFields))
	for _, field := range hitFields {
		if v, ok := raw[field]; ok {
			hit[field] = v
		} else {
			hit[field] = nil
		}
	}

	if moderation, ok := hit["moderation"].(map[string]any); ok {
		if _, present := moderation["overall"]; !present {
			if overall, found := overallModeration(moderation); found {
				moderation["overall"] = overall
			}
		}
	}
	return hit
}

// overallModeration returns the max category score present on a hit.
func overallModeration(moderation map[string]any) (float64, bool) {
	var max float64
	found := false
	for _, cat := range moderationCategories {
		entry, ok := moderation[cat].(map[string]any)
		if !ok {
			continue
		}
		score, ok := entry["score"].(float64)
		if !ok {
			continue
		}
		if !found || score > max {
			max = score
			found = true
		}
	}
	return max, found
}

// jsonRoundTrip re-encodes any hit collection into generic maps.
func jsonRoundTrip(hits any) ([]map[string]any, error) {
	raw, err := json.Marshal(hits)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

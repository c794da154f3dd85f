// Package handlers provides HTTP API handlers for stenograf.
package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stenograf/stenograf/internal/search"
)

// SearchHandler serves transcript search queries.
type SearchHandler struct {
	searcher *search.Searcher
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(searcher *search.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// SearchInput is the public query surface. Filter parameters translate
// into a conjunctive engine filter; absent parameters contribute nothing.
type SearchInput struct {
	Query    string   `query:"q" doc:"Search query text"`
	Page     int      `query:"page" minimum:"1" doc:"Page number, starting at 1"`
	PageSize int      `query:"page_size" minimum:"1" doc:"Results per page"`
	Mode     string   `query:"mode" enum:"lexical,semantic,hybrid" doc:"Retrieval mode"`
	Index    string   `query:"index" enum:"segments,events" doc:"Target index"`
	Locales  []string `query:"locales" doc:"Query language hints"`

	DateFrom string `query:"date_from" doc:"Inclusive lower date bound"`
	DateTo   string `query:"date_to" doc:"Inclusive upper date bound"`

	Format     string `query:"format" doc:"Event format, e.g. Political Rally"`
	Source     string `query:"source" doc:"Recording source"`
	Candidate  string `query:"candidate" doc:"Candidate name"`
	RecordType string `query:"record_type" doc:"Record type"`
	Place      string `query:"place" doc:"CSV of city, state, country"`

	Topic         string   `query:"topic" doc:"Topic name"`
	MinTopicScore *float64 `query:"min_topic_score" doc:"Minimum topic edge score"`

	HasHarassment *bool `query:"has_harassment" doc:"Harassment flag filter"`
	HasHate       *bool `query:"has_hate" doc:"Hate flag filter"`
	HasViolence   *bool `query:"has_violence" doc:"Violence flag filter"`
	HasSexual     *bool `query:"has_sexual" doc:"Sexual content flag filter"`
	HasSelfHarm   *bool `query:"has_selfharm" doc:"Self-harm flag filter"`

	MinHarassmentScore *float64 `query:"min_harassment_score"`
	MinHateScore       *float64 `query:"min_hate_score"`
	MinViolenceScore   *float64 `query:"min_violence_score"`
	MinSexualScore     *float64 `query:"min_sexual_score"`
	MinSelfHarmScore   *float64 `query:"min_selfharm_score"`

	MinStresslens  *float64 `query:"min_stresslens" doc:"Minimum stress score"`
	MaxStresslens  *float64 `query:"max_stresslens" doc:"Maximum stress score"`
	StresslensRank *int     `query:"stresslens_rank" doc:"Exact stress rank bucket"`

	MinSpeakingTime *float64 `query:"min_speaking_time"`
	MaxSpeakingTime *float64 `query:"max_speaking_time"`
	MinSentences    *int     `query:"min_sentences"`
	MaxSentences    *int     `query:"max_sentences"`
	MinWords        *int     `query:"min_words"`
	MaxWords        *int     `query:"max_words"`
	MinDuration     *float64 `query:"min_duration"`
	MaxDuration     *float64 `query:"max_duration"`

	MinSentimentLMD     *float64 `query:"min_sentiment_lmd"`
	MaxSentimentLMD     *float64 `query:"max_sentiment_lmd"`
	MinSentimentHarvard *float64 `query:"min_sentiment_harvard"`
	MaxSentimentHarvard *float64 `query:"max_sentiment_harvard"`
	MinSentimentVader   *float64 `query:"min_sentiment_vader"`
	MaxSentimentVader   *float64 `query:"max_sentiment_vader"`
}

// SearchOutput is the normalized result page.
type SearchOutput struct {
	Body search.Result
}

// SimilarInput identifies the source segment for similarity search.
type SimilarInput struct {
	ID    string `path:"id" doc:"Source segment ID"`
	Limit int    `query:"limit" minimum:"1" maximum:"100" doc:"Maximum results"`
}

// SimilarOutput is the similar-segments result page.
type SimilarOutput struct {
	Body search.Result
}

// Register registers the search routes with the API.
func (h *SearchHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "searchSegments",
		Method:      "GET",
		Path:        "/api/v1/search",
		Summary:     "Search transcript segments",
		Description: "Full-text, semantic, or hybrid search over transcript segments with faceted filters",
		Tags:        []string{"Search"},
	}, h.Search)

	huma.Register(api, huma.Operation{
		OperationID: "similarSegments",
		Method:      "GET",
		Path:        "/api/v1/segments/{id}/similar",
		Summary:     "Find similar segments",
		Description: "Returns segments similar to the given segment by content",
		Tags:        []string{"Search"},
	}, h.Similar)
}

// Search runs one query.
func (h *SearchHandler) Search(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	result, err := h.searcher.Search(ctx, search.QueryParams{
		Query:    input.Query,
		Page:     input.Page,
		PageSize: input.PageSize,
		Mode:     search.QueryMode(input.Mode),
		Index:    input.Index,
		Locales:  input.Locales,
		Filter:   filterSpecFromInput(input),
	})
	if err != nil {
		return nil, huma.Error502BadGateway("search failed", err)
	}
	return &SearchOutput{Body: *result}, nil
}

// Similar returns segments similar to the source segment.
func (h *SearchHandler) Similar(ctx context.Context, input *SimilarInput) (*SimilarOutput, error) {
	result, err := h.searcher.SimilarSegments(ctx, input.ID, input.Limit)
	if err != nil {
		if errors.Is(err, search.ErrSegmentNotFound) {
			return nil, huma.Error404NotFound("segment not found")
		}
		return nil, huma.Error502BadGateway("similarity search failed", err)
	}
	return &SimilarOutput{Body: *result}, nil
}

func filterSpecFromInput(input *SearchInput) search.FilterSpec {
	return search.FilterSpec{
		DateFrom:   input.DateFrom,
		DateTo:     input.DateTo,
		Format:     input.Format,
		Source:     input.Source,
		Candidate:  input.Candidate,
		RecordType: input.RecordType,
		Place:      input.Place,

		Topic:         input.Topic,
		MinTopicScore: input.MinTopicScore,

		HasHarassment: input.HasHarassment,
		HasHate:       input.HasHate,
		HasViolence:   input.HasViolence,
		HasSexual:     input.HasSexual,
		HasSelfHarm:   input.HasSelfHarm,

		MinHarassmentScore: input.MinHarassmentScore,
		MinHateScore:       input.MinHateScore,
		MinViolenceScore:   input.MinViolenceScore,
		MinSexualScore:     input.MinSexualScore,
		MinSelfHarmScore:   input.MinSelfHarmScore,

		MinStresslens:  input.MinStresslens,
		MaxStresslens:  input.MaxStresslens,
		StresslensRank: input.StresslensRank,

		MinSpeakingTime: input.MinSpeakingTime,
		MaxSpeakingTime: input.MaxSpeakingTime,
		MinSentences:    input.MinSentences,
		MaxSentences:    input.MaxSentences,
		MinWords:        input.MinWords,
		MaxWords:        input.MaxWords,
		MinDuration:     input.MinDuration,
		MaxDuration:     input.MaxDuration,

		MinSentimentLMD:     input.MinSentimentLMD,
		MaxSentimentLMD:     input.MaxSentimentLMD,
		MinSentimentHarvard: input.MinSentimentHarvard,
		MaxSentimentHarvard: input.MaxSentimentHarvard,
		MinSentimentVader:   input.MinSentimentVader,
		MaxSentimentVader:   input.MaxSentimentVader,
	}
}

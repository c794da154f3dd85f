package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stenograf/stenograf/internal/search"
)

// SuggestHandler serves typeahead suggestions.
type SuggestHandler struct {
	searcher *search.Searcher
}

// NewSuggestHandler creates a suggestions handler.
func NewSuggestHandler(searcher *search.Searcher) *SuggestHandler {
	return &SuggestHandler{searcher: searcher}
}

// SuggestInput is the typeahead query.
type SuggestInput struct {
	Query string `query:"q" doc:"Prefix to complete"`
	Kind  string `query:"kind" enum:"speaker,topic,title" doc:"Restrict to one suggestion kind"`
	Limit int    `query:"limit" minimum:"1" maximum:"50" doc:"Maximum suggestions"`
}

// SuggestBody is the response body.
type SuggestBody struct {
	Suggestions []search.Hit `json:"suggestions"`
}

// SuggestOutput is the typeahead response.
type SuggestOutput struct {
	Body SuggestBody
}

// Register registers the suggestion routes with the API.
func (h *SuggestHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSuggestions",
		Method:      "GET",
		Path:        "/api/v1/suggestions",
		Summary:     "Typeahead suggestions",
		Description: "Returns speaker, topic, and title completions for a prefix",
		Tags:        []string{"Search"},
	}, h.Suggest)
}

// Suggest returns suggestions for a prefix.
func (h *SuggestHandler) Suggest(ctx context.Context, input *SuggestInput) (*SuggestOutput, error) {
	hits, err := h.searcher.Suggest(ctx, input.Query, input.Kind, input.Limit)
	if err != nil {
		if errors.Is(err, search.ErrEngineUnavailable) {
			return nil, huma.Error503ServiceUnavailable("suggestions unavailable")
		}
		return nil, huma.Error502BadGateway("suggestion lookup failed", err)
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return &SuggestOutput{Body: SuggestBody{Suggestions: hits}}, nil
}

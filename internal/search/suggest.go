package search

import (
	"context"
	"fmt"
)

// Suggestion kinds.
const (
	SuggestionSpeaker = "speaker"
	SuggestionTopic   = "topic"
	SuggestionTitle   = "title"
)

// defaultSuggestionLimit bounds each kind's contribution.
const defaultSuggestionLimit = 50

// SuggestionDocument is one typeahead term in the suggestions index.
type SuggestionDocument struct {
	TermID int    `json:"termId"`
	Term   string `json:"term"`
	Kind   string `json:"kind"`
	// Weight is the rank within its kind, highest first, used for sorting.
	Weight int `json:"weight"`
}

// SeedSuggestions computes top speakers, top topics, and recent video
// titles and upserts them into the suggestions index. Term ids are assigned
// monotonically per run; re-seeding overwrites by id.
func (s *Syncer) SeedSuggestions(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}

	speakers, err := s.speakers.TopByFrequency(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing top speakers: %w", err)
	}
	topics, err := s.topics.TopByFrequency(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing top topics: %w", err)
	}
	titles, err := s.videos.RecentTitles(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("listing recent titles: %w", err)
	}

	var docs []SuggestionDocument
	termID := 0
	appendTerms := func(kind string, terms []string) {
		for i, term := range terms {
			if term == "" {
				continue
			}
			termID++
			docs = append(docs, SuggestionDocument{
				TermID: termID,
				Term:   term,
				Kind:   kind,
				Weight: len(terms) - i,
			})
		}
	}
	appendTerms(SuggestionSpeaker, speakers)
	appendTerms(SuggestionTopic, topics)
	appendTerms(SuggestionTitle, titles)

	if len(docs) == 0 {
		return 0, nil
	}
	if err := s.uploadBatch(ctx, IndexSuggestions, docs, suggestionsPrimaryKey); err != nil {
		return 0, err
	}
	s.logger.Info("suggestions seeded", "count", len(docs))
	return len(docs), nil
}

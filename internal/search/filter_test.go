package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func intPtr(v int) *int           { return &v }

func TestBuildFilterEmptySpec(t *testing.T) {
	assert.Empty(t, BuildFilter(FilterSpec{}))
}

func TestBuildFilterConjunction(t *testing.T) {
	spec := FilterSpec{
		Format:        "Political Rally",
		HasHate:       boolPtr(true),
		MinStresslens: floatPtr(0.7),
	}

	got := BuildFilter(spec)
	assert.Equal(t, `format = "Political Rally" AND moderation.hate.flag = true AND stresslens.score >= 0.7`, got)
}

func TestBuildFilterDateRange(t *testing.T) {
	got := BuildFilter(FilterSpec{DateFrom: "2025-01-01", DateTo: "2025-12-31"})
	assert.Equal(t, `date >= "2025-01-01" AND date <= "2025-12-31"`, got)
}

func TestBuildFilterPlaceCSV(t *testing.T) {
	got := BuildFilter(FilterSpec{Place: "Miami, Florida, USA"})
	assert.Equal(t, `place.city = "Miami" AND place.state = "Florida" AND place.country = "USA"`, got)

	// Partial places only emit the present parts.
	got = BuildFilter(FilterSpec{Place: "Miami"})
	assert.Equal(t, `place.city = "Miami"`, got)
}

func TestBuildFilterTopics(t *testing.T) {
	got := BuildFilter(FilterSpec{Topic: "Immigration", MinTopicScore: floatPtr(0.5)})
	assert.Equal(t, `topics.topic = "Immigration" AND topics.score >= 0.5`, got)
}

func TestBuildFilterModerationCategories(t *testing.T) {
	got := BuildFilter(FilterSpec{
		HasHarassment:    boolPtr(false),
		MinViolenceScore: floatPtr(0.25),
	})
	assert.Equal(t, `moderation.harassment.flag = false AND moderation.violence.score >= 0.25`, got)
}

func TestBuildFilterStresslensAndMetrics(t *testing.T) {
	got := BuildFilter(FilterSpec{
		MaxStresslens:  floatPtr(0.9),
		StresslensRank: intPtr(2),
		MinWords:       intPtr(10),
		MaxDuration:    floatPtr(120),
	})
	assert.Equal(t, `stresslens.score <= 0.9 AND stresslens.rank = 2 AND document.word_count >= 10 AND document.duration_s <= 120`, got)
}

func TestBuildFilterSentimentRanges(t *testing.T) {
	got := BuildFilter(FilterSpec{
		MinSentimentLMD:   floatPtr(-0.5),
		MaxSentimentVader: floatPtr(0.5),
	})
	assert.Equal(t, `document.sentiment.lmd >= -0.5 AND document.sentiment.vader <= 0.5`, got)
}

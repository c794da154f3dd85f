package search

import (
	"fmt"
	"strings"
)

// FilterSpec enumerates every recognized filter parameter. Absent fields
// contribute no clause.
type FilterSpec struct {
	DateFrom string
	DateTo   string

	Format     string
	Source     string
	Candidate  string
	RecordType string

	// Place is a CSV of up to city, state, country.
	Place string

	Topic         string
	MinTopicScore *float64

	HasHarassment *bool
	HasHate       *bool
	HasViolence   *bool
	HasSexual     *bool
	HasSelfHarm   *bool

	MinHarassmentScore *float64
	MinHateScore       *float64
	MinViolenceScore   *float64
	MinSexualScore     *float64
	MinSelfHarmScore   *float64

	MinStresslens  *float64
	MaxStresslens  *float64
	StresslensRank *int

	MinSpeakingTime *float64
	MaxSpeakingTime *float64
	MinSentences    *int
	MaxSentences    *int
	MinWords        *int
	MaxWords        *int
	MinDuration     *float64
	MaxDuration     *float64

	MinSentimentLMD     *float64
	MaxSentimentLMD     *float64
	MinSentimentHarvard *float64
	MaxSentimentHarvard *float64
	MinSentimentVader   *float64
	MaxSentimentVader   *float64
}

// BuildFilter translates a FilterSpec into the engine's conjunctive filter
// string. The function is pure; clause order follows field order.
func BuildFilter(spec FilterSpec) string {
	var clauses []string
	add := func(clause string) {
		clauses = append(clauses, clause)
	}

	if spec.DateFrom != "" {
		add(fmt.Sprintf("date >= %q", spec.DateFrom))
	}
	if spec.DateTo != "" {
		add(fmt.Sprintf("date <= %q", spec.DateTo))
	}

	for _, eq := range []struct{ field, value string }{
		{"format", spec.Format},
		{"source", spec.Source},
		{"candidate", spec.Candidate},
		{"record_type", spec.RecordType},
	} {
		if eq.value != "" {
			add(fmt.Sprintf("%s = %q", eq.field, eq.value))
		}
	}

	if spec.Place != "" {
		parts := strings.Split(spec.Place, ",")
		fields := []string{"place.city", "place.state", "place.country"}
		for i, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" || i >= len(fields) {
				continue
			}
			add(fmt.Sprintf("%s = %q", fields[i], part))
		}
	}

	if spec.Topic != "" {
		add(fmt.Sprintf("topics.topic = %q", spec.Topic))
	}
	if spec.MinTopicScore != nil {
		add(fmt.Sprintf("topics.score >= %v", *spec.MinTopicScore))
	}

	for _, flag := range []struct {
		category string
		value    *bool
	}{
		{"harassment", spec.HasHarassment},
		{"hate", spec.HasHate},
		{"violence", spec.HasViolence},
		{"sexual", spec.HasSexual},
		{"selfharm", spec.HasSelfHarm},
	} {
		if flag.value != nil {
			add(fmt.Sprintf("moderation.%s.flag = %t", flag.category, *flag.value))
		}
	}

	for _, score := range []struct {
		category string
		value    *float64
	}{
		{"harassment", spec.MinHarassmentScore},
		{"hate", spec.MinHateScore},
		{"violence", spec.MinViolenceScore},
		{"sexual", spec.MinSexualScore},
		{"selfharm", spec.MinSelfHarmScore},
	} {
		if score.value != nil {
			add(fmt.Sprintf("moderation.%s.score >= %v", score.category, *score.value))
		}
	}

	if spec.MinStresslens != nil {
		add(fmt.Sprintf("stresslens.score >= %v", *spec.MinStresslens))
	}
	if spec.MaxStresslens != nil {
		add(fmt.Sprintf("stresslens.score <= %v", *spec.MaxStresslens))
	}
	if spec.StresslensRank != nil {
		add(fmt.Sprintf("stresslens.rank = %d", *spec.StresslensRank))
	}

	if spec.MinSpeakingTime != nil {
		add(fmt.Sprintf("document.speaking_time_s >= %v", *spec.MinSpeakingTime))
	}
	if spec.MaxSpeakingTime != nil {
		add(fmt.Sprintf("document.speaking_time_s <= %v", *spec.MaxSpeakingTime))
	}
	if spec.MinSentences != nil {
		add(fmt.Sprintf("document.sentence_count >= %d", *spec.MinSentences))
	}
	if spec.MaxSentences != nil {
		add(fmt.Sprintf("document.sentence_count <= %d", *spec.MaxSentences))
	}
	if spec.MinWords != nil {
		add(fmt.Sprintf("document.word_count >= %d", *spec.MinWords))
	}
	if spec.MaxWords != nil {
		add(fmt.Sprintf("document.word_count <= %d", *spec.MaxWords))
	}
	if spec.MinDuration != nil {
		add(fmt.Sprintf("document.duration_s >= %v", *spec.MinDuration))
	}
	if spec.MaxDuration != nil {
		add(fmt.Sprintf("document.duration_s <= %v", *spec.MaxDuration))
	}

	for _, sentiment := range []struct {
		field    string
		min, max *float64
	}{
		{"lmd", spec.MinSentimentLMD, spec.MaxSentimentLMD},
		{"harvard", spec.MinSentimentHarvard, spec.MaxSentimentHarvard},
		{"vader", spec.MinSentimentVader, spec.MaxSentimentVader},
	} {
		if sentiment.min != nil {
			add(fmt.Sprintf("document.sentiment.%s >= %v", sentiment.field, *sentiment.min))
		}
		if sentiment.max != nil {
			add(fmt.Sprintf("document.sentiment.%s <= %v", sentiment.field, *sentiment.max))
		}
	}

	return strings.Join(clauses, " AND ")
}

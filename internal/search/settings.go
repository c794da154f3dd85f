package search

import (
	"fmt"
	"os"
	"sort"

	"github.com/meilisearch/meilisearch-go"
	"gopkg.in/yaml.v3"
)

// Index names and their primary keys.
const (
	IndexSegments    = "segments"
	IndexSuggestions = "suggestions"
	IndexEvents      = "events"

	segmentsPrimaryKey    = "id"
	suggestionsPrimaryKey = "termId"
	eventsPrimaryKey      = "id"

	embedderName = "default"
)

// maxTotalHits caps engine pagination; deep scrolling goes through the
// content store instead.
const maxTotalHits = 100000

// LexiconFile is the optional YAML file carrying synonyms and stopwords
// keyed by language code. All languages are merged into one settings
// payload because the engine keeps a single lexicon per index.
type LexiconFile struct {
	Synonyms  map[string]map[string][]string `yaml:"synonyms"`
	Stopwords map[string][]string            `yaml:"stopwords"`
}

// LoadLexicon reads the settings file; an empty path yields an empty lexicon.
func LoadLexicon(path string) (*LexiconFile, error) {
	if path == "" {
		return &LexiconFile{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	var lex LexiconFile
	if err := yaml.Unmarshal(raw, &lex); err != nil {
		return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	return &lex, nil
}

// mergedSynonyms flattens per-language synonym tables into one map.
func (l *LexiconFile) mergedSynonyms() map[string][]string {
	if len(l.Synonyms) == 0 {
		return nil
	}
	merged := make(map[string][]string)
	langs := make([]string, 0, len(l.Synonyms))
	for lang := range l.Synonyms {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	for _, lang := range langs {
		for term, alts := range l.Synonyms[lang] {
			merged[term] = append(merged[term], alts...)
		}
	}
	return merged
}

// mergedStopwords flattens per-language stopword lists into one sorted list.
func (l *LexiconFile) mergedStopwords() []string {
	if len(l.Stopwords) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var words []string
	for _, list := range l.Stopwords {
		for _, w := range list {
			if !seen[w] {
				seen[w] = true
				words = append(words, w)
			}
		}
	}
	sort.Strings(words)
	return words
}

// segmentSettings builds the segments index settings. Filterable attributes
// cover every field the filter translator can emit; sortable attributes
// cover date, offset, and the sentiment scores.
func segmentSettings(lexicon *LexiconFile, openAIKey string) *meilisearch.Settings {
	settings := &meilisearch.Settings{
		SearchableAttributes: []string{"text", "speaker", "video_title", "topic"},
		FilterableAttributes: []string{
			"videoId", "speaker", "speakerParty", "topic", "language",
			"date", "source", "candidate", "record_type", "format",
			"place.city", "place.state", "place.country",
			"topics.topic", "topics.score",
			"moderation.harassment.flag", "moderation.harassment.score",
			"moderation.hate.flag", "moderation.hate.score",
			"moderation.violence.flag", "moderation.violence.score",
			"moderation.sexual.flag", "moderation.sexual.score",
			"moderation.selfharm.flag", "moderation.selfharm.score",
			"stresslens.score", "stresslens.rank",
			"document.speaking_time_s", "document.sentence_count",
			"document.word_count", "document.duration_s",
			"document.sentiment.lmd", "document.sentiment.harvard",
			"document.sentiment.vader",
		},
		SortableAttributes: []string{
			"date", "video_seconds",
			"sentiment.vader", "sentiment.loughran", "sentiment.harvard",
		},
		DisplayedAttributes: []string{"*"},
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  4,
				TwoTypos: 8,
			},
		},
		Pagination: &meilisearch.Pagination{MaxTotalHits: maxTotalHits},
		Synonyms:   lexicon.mergedSynonyms(),
		StopWords:  lexicon.mergedStopwords(),
	}
	if openAIKey != "" {
		settings.Embedders = map[string]meilisearch.Embedder{
			embedderName: {
				Source:           "openAi",
				Model:            "text-embedding-3-small",
				APIKey:           openAIKey,
				DocumentTemplate: "{{doc.speaker}}: {{doc.text}}",
			},
		}
	}
	return settings
}

// suggestionSettings builds the suggestions index settings.
func suggestionSettings() *meilisearch.Settings {
	return &meilisearch.Settings{
		SearchableAttributes: []string{"term"},
		FilterableAttributes: []string{"kind"},
		SortableAttributes:   []string{"weight"},
		DisplayedAttributes:  []string{"*"},
		Pagination:           &meilisearch.Pagination{MaxTotalHits: 1000},
	}
}

// eventSettings builds the per-video rollup index settings.
func eventSettings() *meilisearch.Settings {
	return &meilisearch.Settings{
		SearchableAttributes: []string{"title", "description", "top_topics"},
		FilterableAttributes: []string{
			"date", "source", "candidate", "record_type", "format",
			"moderation.overall", "stresslens.avg",
		},
		SortableAttributes:  []string{"date"},
		DisplayedAttributes: []string{"*"},
		Pagination:          &meilisearch.Pagination{MaxTotalHits: maxTotalHits},
	}
}

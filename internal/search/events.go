package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stenograf/stenograf/internal/models"
)

// EventDocument is the per-video rollup uploaded to the events index.
type EventDocument struct {
	ID          string   `json:"id"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Date        string   `json:"date,omitempty"`
	Source      string   `json:"source,omitempty"`
	Candidate   string   `json:"candidate,omitempty"`
	RecordType  string   `json:"record_type,omitempty"`
	Format      string   `json:"format,omitempty"`
	Place       string   `json:"place,omitempty"`
	TopTopics   []string `json:"top_topics,omitempty"`

	Moderation EventModeration `json:"moderation"`
	Stresslens EventStresslens `json:"stresslens"`
	Document   EventMetrics    `json:"document"`
}

// EventModeration summarizes moderation across a video's segments.
type EventModeration struct {
	Overall      *float64 `json:"overall,omitempty"`
	FlaggedCount int      `json:"flagged_count"`
}

// EventStresslens aggregates stress indicators across segments.
type EventStresslens struct {
	Avg *float64 `json:"avg,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// EventMetrics carries whole-video document metrics.
type EventMetrics struct {
	SegmentCount int     `json:"segment_count"`
	WordCount    int     `json:"word_count"`
	DurationS    float64 `json:"duration_s"`
}

// maxTopTopics bounds the rollup's topic list.
const maxTopTopics = 5

// TransformEvent rolls a video and its segments up into one event document.
func TransformEvent(video models.Video, segments []*models.TranscriptSegment) EventDocument {
	doc := EventDocument{
		ID:          fmt.Sprintf("%d", video.ID),
		Title:       video.Title,
		Description: video.Description,
		Source:      video.Source,
		Candidate:   video.Candidate,
		RecordType:  video.RecordType,
		Format:      video.Format,
		Place:       video.Place,
		Document: EventMetrics{
			SegmentCount: len(segments),
			DurationS:    video.DurationSeconds,
		},
	}
	if video.Date != nil {
		doc.Date = video.Date.Format(time.RFC3339)
	}

	topicFreq := make(map[string]int)
	var overall *float64
	flagged := 0
	var stressSum float64
	var stressMax *float64
	stressCount := 0
	var segmentDuration float64

	for _, seg := range segments {
		doc.Document.WordCount += seg.WordCount
		segmentDuration += seg.DurationSeconds

		if seg.ModerationOverallScore != nil {
			if overall == nil || *seg.ModerationOverallScore > *overall {
				v := *seg.ModerationOverallScore
				overall = &v
			}
		}
		if seg.ModerationHarassmentFlag || seg.ModerationHateFlag ||
			seg.ModerationViolenceFlag || seg.ModerationSexualFlag ||
			seg.ModerationSelfHarmFlag {
			flagged++
		}

		if seg.StresslensScore != nil {
			stressSum += *seg.StresslensScore
			stressCount++
			if stressMax == nil || *seg.StresslensScore > *stressMax {
				v := *seg.StresslensScore
				stressMax = &v
			}
		}

		for _, edge := range seg.Topics {
			if edge.Topic != nil && edge.Topic.Name != "" {
				topicFreq[edge.Topic.Name]++
			}
		}
	}

	// The video's own duration wins; segment durations are the fallback.
	if doc.Document.DurationS == 0 {
		doc.Document.DurationS = segmentDuration
	}

	doc.Moderation = EventModeration{Overall: overall, FlaggedCount: flagged}
	if stressCount > 0 {
		avg := stressSum / float64(stressCount)
		doc.Stresslens = EventStresslens{Avg: &avg, Max: stressMax}
	}
	doc.TopTopics = topTopics(topicFreq)
	return doc
}

// topTopics returns up to maxTopTopics names, most frequent first, with
// alphabetical tie-breaking so the projection is deterministic.
func topTopics(freq map[string]int) []string {
	if len(freq) == 0 {
		return nil
	}
	names := make([]string, 0, len(freq))
	for name := range freq {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if freq[names[i]] != freq[names[j]] {
			return freq[names[i]] > freq[names[j]]
		}
		return strings.Compare(names[i], names[j]) < 0
	})
	if len(names) > maxTopTopics {
		names = names[:maxTopTopics]
	}
	return names
}

package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stenograf/stenograf/internal/models"
	"github.com/stenograf/stenograf/internal/repository"
)

// Document is the flat segment projection uploaded to the search engine.
type Document struct {
	ID           string   `json:"id"`
	VideoID      uint     `json:"videoId"`
	Text         string   `json:"text"`
	Speaker      string   `json:"speaker,omitempty"`
	SpeakerParty string   `json:"speakerParty,omitempty"`
	Topics       []string `json:"topic,omitempty"`
	Language     string   `json:"language"`
	Date         string   `json:"date,omitempty"`
	VideoSeconds *int     `json:"video_seconds,omitempty"`
	SegmentURL   string   `json:"segment_url"`
	VideoTitle   string   `json:"video_title,omitempty"`
	Source       string   `json:"source,omitempty"`
	Candidate    string   `json:"candidate,omitempty"`
	RecordType   string   `json:"record_type,omitempty"`
	Format       string   `json:"format,omitempty"`

	Sentiment   SentimentDoc             `json:"sentiment"`
	Moderation  map[string]ModerationDoc `json:"moderation"`
	Readability ReadabilityDoc           `json:"readability"`
	Stresslens  *StresslensDoc           `json:"stresslens,omitempty"`
}

// SentimentDoc carries the three named sentiment scores.
type SentimentDoc struct {
	Vader    *float64 `json:"vader,omitempty"`
	Loughran *float64 `json:"loughran,omitempty"`
	Harvard  *float64 `json:"harvard,omitempty"`
}

// ModerationDoc is one category's flag and score.
type ModerationDoc struct {
	Flag  bool     `json:"flag"`
	Score *float64 `json:"score,omitempty"`
}

// ReadabilityDoc carries the six readability metrics.
type ReadabilityDoc struct {
	FleschKincaid     *float64 `json:"flesch_kincaid,omitempty"`
	GunningFog        *float64 `json:"gunning_fog,omitempty"`
	ColemanLiau       *float64 `json:"coleman_liau,omitempty"`
	FleschReadingEase *float64 `json:"flesch_reading_ease,omitempty"`
	SMOG              *float64 `json:"smog,omitempty"`
	ARI               *float64 `json:"ari,omitempty"`
}

// StresslensDoc carries the stress indicators.
type StresslensDoc struct {
	Score float64 `json:"score"`
	Rank  *int    `json:"rank,omitempty"`
}

// SegmentURLFor builds the deep link into a video at a segment's offset.
// The segment_id parameter carries the per-video segment identifier, not
// the database row key.
func SegmentURLFor(videoID uint, seconds *int, segmentID string) string {
	t := 0
	if seconds != nil {
		t = *seconds
	}
	return fmt.Sprintf("/videos/%d?t=%d&segment_id=%s", videoID, t, segmentID)
}

// Transform projects one joined segment row into a search document. Pure:
// identical rows always produce identical documents.
func Transform(row repository.SegmentWithVideo) Document {
	segment := row.Segment
	video := row.Video

	doc := Document{
		ID:           fmt.Sprintf("%d", segment.ID),
		VideoID:      video.ID,
		Text:         segment.TranscriptText,
		Speaker:      segment.SpeakerName,
		SpeakerParty: segment.SpeakerParty,
		Topics:       topicNames(segment.Topics),
		Language:     DetectLanguage(segment.TranscriptText),
		VideoSeconds: segment.VideoSeconds,
		SegmentURL:   SegmentURLFor(video.ID, segment.VideoSeconds, segment.SegmentID),
		VideoTitle:   video.Title,
		Source:       video.Source,
		Candidate:    video.Candidate,
		RecordType:   video.RecordType,
		Format:       video.Format,
		Sentiment: SentimentDoc{
			Vader:    segment.SentimentVaderScore,
			Loughran: segment.SentimentLoughranScore,
			Harvard:  segment.SentimentHarvardScore,
		},
		Moderation: map[string]ModerationDoc{
			"harassment": {Flag: segment.ModerationHarassmentFlag, Score: segment.ModerationHarassment},
			"hate":       {Flag: segment.ModerationHateFlag, Score: segment.ModerationHate},
			"violence":   {Flag: segment.ModerationViolenceFlag, Score: segment.ModerationViolence},
			"sexual":     {Flag: segment.ModerationSexualFlag, Score: segment.ModerationSexual},
			"selfharm":   {Flag: segment.ModerationSelfHarmFlag, Score: segment.ModerationSelfHarm},
		},
		Readability: ReadabilityDoc{
			FleschKincaid:     segment.FleschKincaidGrade,
			GunningFog:        segment.GunningFog,
			ColemanLiau:       segment.ColemanLiau,
			FleschReadingEase: segment.FleschReadingEase,
			SMOG:              segment.SMOG,
			ARI:               segment.ARI,
		},
	}

	if video.Date != nil {
		doc.Date = video.Date.Format(time.RFC3339)
	}
	if segment.StresslensScore != nil {
		doc.Stresslens = &StresslensDoc{Score: *segment.StresslensScore, Rank: segment.StresslensRank}
	}
	return doc
}

// topicNames returns topic names in descending edge score order.
func topicNames(edges []models.SegmentTopic) []string {
	if len(edges) == 0 {
		return nil
	}
	sorted := make([]models.SegmentTopic, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	names := make([]string, 0, len(sorted))
	for _, e := range sorted {
		if e.Topic != nil && e.Topic.Name != "" {
			names = append(names, e.Topic.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// TransformBatch projects rows, excluding segments with blank text. Those
// rows stay in the content store but never reach the engine.
func TransformBatch(rows []repository.SegmentWithVideo) []Document {
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.Segment.TranscriptText) == "" {
			continue
		}
		docs = append(docs, Transform(row))
	}
	return docs
}

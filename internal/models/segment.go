package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// SegmentType distinguishes spoken utterances from procedural announcements.
type SegmentType string

const (
	SegmentTypeSpoken       SegmentType = "spoken"
	SegmentTypeAnnouncement SegmentType = "announcement"
)

// ModerationFlagThreshold is the fixed score threshold above which a
// moderation category flag is set.
const ModerationFlagThreshold = 0.3

// TranscriptSegment is one atomic utterance. It is owned by exactly one
// video and optionally references one speaker. The speaker name is kept
// denormalized because the query layer filters by name pattern far more
// often than by ID.
type TranscriptSegment struct {
	BaseModel

	// VideoID is the owning video. Always resolves.
	VideoID uint `gorm:"not null;index:idx_segment_video_speaker,priority:1;index:idx_segment_video_seconds,priority:1;uniqueIndex:idx_segment_natural,priority:1" json:"video_id"`

	// SegmentID is the stable identifier, unique within a video.
	SegmentID string `gorm:"not null;size:64;uniqueIndex:idx_segment_natural,priority:2" json:"segment_id"`

	// SpeakerID references the canonical speaker when resolved.
	SpeakerID *uint `gorm:"index:idx_segment_video_speaker,priority:2" json:"speaker_id,omitempty"`

	// SpeakerName is denormalized for query speed.
	SpeakerName  string `gorm:"size:255;index" json:"speaker_name,omitempty"`
	SpeakerParty string `gorm:"size:64" json:"speaker_party,omitempty"`

	SegmentType SegmentType `gorm:"not null;size:16;default:'spoken'" json:"segment_type"`

	TranscriptText string `gorm:"type:text" json:"transcript_text"`

	// VideoSeconds is the integer offset from video start, when known.
	VideoSeconds *int `gorm:"index:idx_segment_video_seconds,priority:2" json:"video_seconds,omitempty"`

	// Wall-clock timestamps as HH:MM:SS or ISO strings.
	TimestampStart string `gorm:"size:32" json:"timestamp_start,omitempty"`
	TimestampEnd   string `gorm:"size:32" json:"timestamp_end,omitempty"`

	DurationSeconds float64 `json:"duration_seconds"`
	WordCount       int     `json:"word_count"`
	CharCount       int     `json:"char_count"`

	// Sentiment scores with labels.
	SentimentLoughranScore *float64 `gorm:"index" json:"sentiment_loughran_score,omitempty"`
	SentimentLoughranLabel string   `gorm:"size:32" json:"sentiment_loughran_label,omitempty"`
	SentimentHarvardScore  *float64 `gorm:"index" json:"sentiment_harvard_score,omitempty"`
	SentimentHarvardLabel  string   `gorm:"size:32" json:"sentiment_harvard_label,omitempty"`
	SentimentVaderScore    *float64 `gorm:"index" json:"sentiment_vader_score,omitempty"`
	SentimentVaderLabel    string   `gorm:"size:32" json:"sentiment_vader_label,omitempty"`

	// Moderation scores and derived flags (flag := score >= 0.3).
	ModerationHarassment     *float64 `json:"moderation_harassment,omitempty"`
	ModerationHate           *float64 `json:"moderation_hate,omitempty"`
	ModerationViolence       *float64 `json:"moderation_violence,omitempty"`
	ModerationSexual         *float64 `json:"moderation_sexual,omitempty"`
	ModerationSelfHarm       *float64 `json:"moderation_self_harm,omitempty"`
	ModerationOverallScore   *float64 `gorm:"index" json:"moderation_overall_score,omitempty"`
	ModerationHarassmentFlag bool     `json:"moderation_harassment_flag"`
	ModerationHateFlag       bool     `json:"moderation_hate_flag"`
	ModerationViolenceFlag   bool     `json:"moderation_violence_flag"`
	ModerationSexualFlag     bool     `json:"moderation_sexual_flag"`
	ModerationSelfHarmFlag   bool     `json:"moderation_self_harm_flag"`

	// Readability metrics.
	FleschKincaidGrade *float64 `gorm:"index:idx_segment_readability,priority:1" json:"flesch_kincaid_grade,omitempty"`
	FleschReadingEase  *float64 `gorm:"index:idx_segment_readability,priority:2" json:"flesch_reading_ease,omitempty"`
	GunningFog         *float64 `json:"gunning_fog,omitempty"`
	ColemanLiau        *float64 `json:"coleman_liau,omitempty"`
	SMOG               *float64 `json:"smog,omitempty"`
	ARI                *float64 `json:"ari,omitempty"`

	// Stresslens indicators.
	StresslensScore *float64 `gorm:"index:idx_segment_stresslens,priority:1" json:"stresslens_score,omitempty"`
	StresslensRank  *int     `gorm:"index:idx_segment_stresslens,priority:2" json:"stresslens_rank,omitempty"`

	// Embedding is a JSON-encoded vector of 384 floats, when generated.
	Embedding            string     `gorm:"type:text" json:"embedding,omitempty"`
	EmbeddingGeneratedAt *time.Time `json:"embedding_generated_at,omitempty"`

	// Topics is the weighted many-to-many edge set.
	Topics []SegmentTopic `gorm:"foreignKey:SegmentRowID;constraint:OnDelete:CASCADE" json:"topics,omitempty"`
}

// TableName returns the table name for TranscriptSegment.
func (TranscriptSegment) TableName() string {
	return "transcript_segments"
}

// ComputeCounts derives WordCount and CharCount from the transcript text.
func (s *TranscriptSegment) ComputeCounts() {
	s.WordCount = len(strings.Fields(s.TranscriptText))
	s.CharCount = len(s.TranscriptText)
}

// ApplyModerationFlags derives the boolean flags and the overall score from
// the category scores. Flags are a pure function of scores; a nil score
// yields a false flag.
func (s *TranscriptSegment) ApplyModerationFlags() {
	s.ModerationHarassmentFlag = flagFor(s.ModerationHarassment)
	s.ModerationHateFlag = flagFor(s.ModerationHate)
	s.ModerationViolenceFlag = flagFor(s.ModerationViolence)
	s.ModerationSexualFlag = flagFor(s.ModerationSexual)
	s.ModerationSelfHarmFlag = flagFor(s.ModerationSelfHarm)

	if max, ok := maxScore(s.ModerationHarassment, s.ModerationHate, s.ModerationViolence, s.ModerationSexual, s.ModerationSelfHarm); ok {
		s.ModerationOverallScore = &max
	}
}

func flagFor(score *float64) bool {
	return score != nil && *score >= ModerationFlagThreshold
}

func maxScore(scores ...*float64) (float64, bool) {
	var max float64
	found := false
	for _, s := range scores {
		if s == nil {
			continue
		}
		if !found || *s > max {
			max = *s
		}
		found = true
	}
	return max, found
}

// StresslensRankFor buckets a stresslens score into its rank.
func StresslensRankFor(score float64) int {
	switch {
	case score >= 0.7:
		return 1
	case score >= 0.4:
		return 2
	case score >= 0.2:
		return 3
	default:
		return 4
	}
}

// Validate performs basic validation on the segment.
func (s *TranscriptSegment) Validate() error {
	if s.VideoID == 0 {
		return ErrVideoIDRequired
	}
	if s.SegmentID == "" {
		return ErrSegmentIDRequired
	}
	switch s.SegmentType {
	case SegmentTypeSpoken, SegmentTypeAnnouncement:
	default:
		return ErrInvalidSegmentType
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the segment.
func (s *TranscriptSegment) BeforeCreate(tx *gorm.DB) error {
	return s.Validate()
}

// SegmentTopic is the weighted edge between a segment and a topic. Edges are
// deleted when their segment is deleted, never when the topic is.
type SegmentTopic struct {
	BaseModel

	// SegmentRowID is the owning segment's primary key.
	SegmentRowID uint `gorm:"not null;uniqueIndex:idx_segment_topic,priority:1" json:"segment_row_id"`

	TopicID uint `gorm:"not null;uniqueIndex:idx_segment_topic,priority:2;index" json:"topic_id"`

	Score      float64  `json:"score"`
	Magnitude  *float64 `json:"magnitude,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	// Topic is the relationship to the shared topic row.
	Topic *Topic `gorm:"foreignKey:TopicID" json:"topic,omitempty"`
}

// TableName returns the table name for SegmentTopic.
func (SegmentTopic) TableName() string {
	return "segment_topics"
}

// Package parser turns annotated HTML transcript pages and parliamentary
// VLOS XML session reports into a normalized ParsedVideo that the ingest
// pipeline can persist. Both parsers are pure: they read nothing but the
// bytes they are given and never fail on malformed inner markup.
package parser

import (
	"time"

	"github.com/stenograf/stenograf/internal/models"
)

// ParsedVideo is the parser output for one source file.
type ParsedVideo struct {
	Metadata VideoMetadata
	Segments []ParsedSegment

	// Warnings records segments that were skipped as unparseable. The file
	// as a whole still succeeds when at least one segment survived.
	Warnings []Warning
}

// VideoMetadata carries everything that lands on the video row.
type VideoMetadata struct {
	Filename string
	Title    string
	Date     *time.Time

	Source     string
	Format     string
	Candidate  string
	Place      string
	RecordType string

	Description string
	URL         string

	VimeoID      string
	YouTubeID    string
	ThumbnailURL string

	DurationSeconds float64

	// VLOS session extras.
	Chair            string
	SessionStartTime string
	SessionEndTime   string
	SummaryIntro     string
	Attendees        *Attendees
}

// Attendees is the parsed presence list of a parliamentary session.
type Attendees struct {
	Members   []string `json:"members"`
	Ministers []string `json:"ministers"`
}

// ParsedSegment is one utterance as extracted from the source.
type ParsedSegment struct {
	SegmentID   string
	SegmentType models.SegmentType

	SpeakerName  string
	SpeakerParty string

	Text string

	VideoSeconds    *int
	TimestampStart  string
	TimestampEnd    string
	DurationSeconds float64

	SentimentLoughranScore *float64
	SentimentLoughranLabel string
	SentimentHarvardScore  *float64
	SentimentHarvardLabel  string
	SentimentVaderScore    *float64
	SentimentVaderLabel    string

	ModerationHarassment *float64
	ModerationHate       *float64
	ModerationViolence   *float64
	ModerationSexual     *float64
	ModerationSelfHarm   *float64

	FleschKincaidGrade *float64
	FleschReadingEase  *float64
	GunningFog         *float64
	ColemanLiau        *float64
	SMOG               *float64
	ARI                *float64

	StresslensScore *float64
	StresslensRank  *int

	// PrimaryTopic is the single topic classification when present.
	PrimaryTopic string
	// PrimaryTopicScore is the classifier confidence for PrimaryTopic.
	PrimaryTopicScore *float64
}

// Warning records one skipped segment.
type Warning struct {
	// Index is the zero-based position of the segment in document order.
	Index int `json:"index"`
	// Reason describes why the segment was skipped.
	Reason string `json:"reason"`
}

// ToModel maps a parsed segment onto a store row. Derived fields (counts,
// moderation flags) are computed here so every ingest path agrees on them.
func (p *ParsedSegment) ToModel() *models.TranscriptSegment {
	s := &models.TranscriptSegment{
		SegmentID:              p.SegmentID,
		SegmentType:            p.SegmentType,
		SpeakerName:            p.SpeakerName,
		SpeakerParty:           p.SpeakerParty,
		TranscriptText:         p.Text,
		VideoSeconds:           p.VideoSeconds,
		TimestampStart:         p.TimestampStart,
		TimestampEnd:           p.TimestampEnd,
		DurationSeconds:        p.DurationSeconds,
		SentimentLoughranScore: p.SentimentLoughranScore,
		SentimentLoughranLabel: p.SentimentLoughranLabel,
		SentimentHarvardScore:  p.SentimentHarvardScore,
		SentimentHarvardLabel:  p.SentimentHarvardLabel,
		SentimentVaderScore:    p.SentimentVaderScore,
		SentimentVaderLabel:    p.SentimentVaderLabel,
		ModerationHarassment:   p.ModerationHarassment,
		ModerationHate:         p.ModerationHate,
		ModerationViolence:     p.ModerationViolence,
		ModerationSexual:       p.ModerationSexual,
		ModerationSelfHarm:     p.ModerationSelfHarm,
		FleschKincaidGrade:     p.FleschKincaidGrade,
		FleschReadingEase:      p.FleschReadingEase,
		GunningFog:             p.GunningFog,
		ColemanLiau:            p.ColemanLiau,
		SMOG:                   p.SMOG,
		ARI:                    p.ARI,
		StresslensScore:        p.StresslensScore,
		StresslensRank:         p.StresslensRank,
	}
	if s.SegmentType == "" {
		s.SegmentType = models.SegmentTypeSpoken
	}
	s.ComputeCounts()
	s.ApplyModerationFlags()
	return s
}

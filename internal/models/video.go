package models

import (
	"time"

	"gorm.io/gorm"
)

// Dataset is the top-level source family a video belongs to.
type Dataset string

const (
	// DatasetTrump tags videos ingested from annotated HTML rally pages.
	DatasetTrump Dataset = "trump"
	// DatasetTweedeKamer tags videos ingested from parliamentary VLOS XML.
	DatasetTweedeKamer Dataset = "tweede_kamer"
	// DatasetVideoLibrary tags uploaded video files.
	DatasetVideoLibrary Dataset = "video_library"
)

// SourceType identifies the kind of source file a video was created from.
type SourceType string

const (
	// SourceTypeHTML marks videos parsed from annotated HTML transcripts.
	SourceTypeHTML SourceType = "html"
	// SourceTypeXML marks videos parsed from VLOS XML session reports.
	SourceTypeXML SourceType = "xml"
	// SourceTypeVideoFile marks uploaded video files.
	SourceTypeVideoFile SourceType = "video_file"
)

// TranscodingStatus tracks the lifecycle of an uploaded video file.
type TranscodingStatus string

const (
	TranscodingPending    TranscodingStatus = "pending"
	TranscodingProcessing TranscodingStatus = "processing"
	TranscodingCompleted  TranscodingStatus = "completed"
	TranscodingFailed     TranscodingStatus = "failed"
)

// Video represents one ingested source file. The filename is the immutable
// natural key: the ingest pipeline creates a video on first successful parse,
// updates it only on explicit reimport, and never destroys it.
type Video struct {
	BaseModel

	// Filename is the unique natural key.
	Filename string `gorm:"not null;size:512;uniqueIndex" json:"filename"`

	// Title is the display title.
	Title string `gorm:"size:512" json:"title"`

	// Date is the calendar date recovered from the filename or metadata.
	Date *time.Time `gorm:"index:idx_video_facets,priority:4" json:"date,omitempty"`

	// DurationSeconds is the total video duration.
	DurationSeconds float64 `json:"duration_seconds"`

	Source      string `gorm:"size:255" json:"source,omitempty"`
	Channel     string `gorm:"size:255" json:"channel,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	URL         string `gorm:"size:2048" json:"url,omitempty"`

	// Event facets derived from the filename pattern tables.
	Format     string `gorm:"size:255;index:idx_video_facets,priority:1" json:"format,omitempty"`
	Candidate  string `gorm:"size:255;index:idx_video_facets,priority:2" json:"candidate,omitempty"`
	Place      string `gorm:"size:255" json:"place,omitempty"`
	RecordType string `gorm:"size:255;index:idx_video_facets,priority:3" json:"record_type,omitempty"`

	// Dataset is the top-level source family tag.
	Dataset Dataset `gorm:"not null;size:32;index" json:"dataset"`

	// SourceType identifies the parser that produced this video.
	SourceType SourceType `gorm:"not null;size:16;index" json:"source_type"`

	// Embedded-player identifiers.
	VimeoID      string `gorm:"size:64" json:"vimeo_id,omitempty"`
	YouTubeID    string `gorm:"size:64" json:"youtube_id,omitempty"`
	ThumbnailURL string `gorm:"size:2048" json:"thumbnail_url,omitempty"`

	// Derived counters, recomputed on every (re)import.
	TotalWords      int `json:"total_words"`
	TotalCharacters int `json:"total_characters"`
	TotalSegments   int `json:"total_segments"`

	// VLOS session extras.
	Chair            string `gorm:"size:255" json:"chair,omitempty"`
	SessionStartTime string `gorm:"size:16" json:"session_start_time,omitempty"`
	SessionEndTime   string `gorm:"size:16" json:"session_end_time,omitempty"`
	SummaryIntro     string `gorm:"type:text" json:"summary_intro,omitempty"`
	// Attendees holds the parsed member/minister lists as JSON.
	Attendees string `gorm:"type:text" json:"attendees,omitempty"`

	// Video-file lifecycle fields.
	FilePath          string            `gorm:"size:1024" json:"file_path,omitempty"`
	FileSize          int64             `json:"file_size,omitempty"`
	Resolution        string            `gorm:"size:32" json:"resolution,omitempty"`
	FPS               float64           `json:"fps,omitempty"`
	Bitrate           int               `json:"bitrate,omitempty"`
	TranscodingStatus TranscodingStatus `gorm:"size:16" json:"transcoding_status,omitempty"`

	// Segments is the owning side of the video -> segment relationship.
	// Deleting a video cascades to its segments.
	Segments []TranscriptSegment `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"segments,omitempty"`
}

// TableName returns the table name for Video.
func (Video) TableName() string {
	return "videos"
}

// Validate performs basic validation on the video.
func (v *Video) Validate() error {
	if v.Filename == "" {
		return ErrFilenameRequired
	}
	switch v.Dataset {
	case DatasetTrump, DatasetTweedeKamer, DatasetVideoLibrary:
	default:
		return ErrInvalidDataset
	}
	switch v.SourceType {
	case SourceTypeHTML, SourceTypeXML, SourceTypeVideoFile:
	default:
		return ErrInvalidSourceType
	}
	return nil
}

// BeforeCreate is a GORM hook that validates the video.
func (v *Video) BeforeCreate(tx *gorm.DB) error {
	return v.Validate()
}

// BeforeUpdate is a GORM hook that validates the video before update.
func (v *Video) BeforeUpdate(tx *gorm.DB) error {
	return v.Validate()
}

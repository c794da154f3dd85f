// Package repository defines data access interfaces for stenograf entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/stenograf/stenograf/internal/models"
)

// VideoRepository defines operations for video persistence.
type VideoRepository interface {
	// Create creates a new video. A duplicate filename surfaces
	// models.ErrConflictOnUniqueKey.
	Create(ctx context.Context, video *models.Video) error
	// Update updates an existing video.
	Update(ctx context.Context, video *models.Video) error
	// GetByID retrieves a video by ID, or nil when absent.
	GetByID(ctx context.Context, id uint) (*models.Video, error)
	// GetByFilename retrieves a video by its natural key, or nil when absent.
	GetByFilename(ctx context.Context, filename string) (*models.Video, error)
	// Delete deletes a video by ID, cascading to segments and edges.
	Delete(ctx context.Context, id uint) error
	// DeleteDataset deletes all videos for a dataset tag, optionally
	// restricted to one source type. Returns the number of videos removed.
	DeleteDataset(ctx context.Context, dataset models.Dataset, sourceType *models.SourceType) (int64, error)
	// UpdateCounters refreshes the derived word/char/segment counters.
	UpdateCounters(ctx context.Context, id uint) error
	// RecentTitles returns up to limit of the most recently imported titles.
	RecentTitles(ctx context.Context, limit int) ([]string, error)
	// FetchUpdatedSince returns up to limit videos with updated_at strictly
	// after the watermark, ordered by row ID. Used by the event rollup sync.
	FetchUpdatedSince(ctx context.Context, watermark time.Time, limit, offset int) ([]models.Video, error)
}

// SpeakerRepository defines operations for speaker persistence.
type SpeakerRepository interface {
	// GetOrCreate resolves a display name to the canonical speaker row,
	// creating it on first sighting. Safe under concurrent ingest workers:
	// a unique-key race resolves by re-reading the winner's row.
	GetOrCreate(ctx context.Context, name string) (*models.Speaker, error)
	// GetByNormalizedName retrieves a speaker by identity key, or nil.
	GetByNormalizedName(ctx context.Context, normalized string) (*models.Speaker, error)
	// RecomputeStats refreshes segment counts, word totals, and average
	// sentiment for every speaker.
	RecomputeStats(ctx context.Context) error
	// TopByFrequency returns the most frequently speaking names.
	TopByFrequency(ctx context.Context, limit int) ([]string, error)
}

// TopicRepository defines operations for topic persistence.
type TopicRepository interface {
	// GetOrCreate resolves a topic name, creating it (with a rule-table
	// category) on first sighting. Unique-key races resolve by re-read.
	GetOrCreate(ctx context.Context, name string) (*models.Topic, error)
	// GetByName retrieves a topic by name, or nil when absent.
	GetByName(ctx context.Context, name string) (*models.Topic, error)
	// RecomputeStats refreshes edge counts and average scores per topic.
	RecomputeStats(ctx context.Context) error
	// TopByFrequency returns the most frequently attached topic names.
	TopByFrequency(ctx context.Context, limit int) ([]string, error)
}

// SegmentWithVideo joins a segment with its owning video and topic edges for
// search document projection.
type SegmentWithVideo struct {
	Segment models.TranscriptSegment
	Video   models.Video
}

// KeywordSearchMode selects the SQL fallback matching strategy.
type KeywordSearchMode string

const (
	// KeywordExact is a trigram/ILIKE partial match.
	KeywordExact KeywordSearchMode = "exact"
	// KeywordFulltext is a tsvector full-text match (postgres only).
	KeywordFulltext KeywordSearchMode = "fulltext"
	// KeywordFuzzy is a trigram similarity match (postgres only).
	KeywordFuzzy KeywordSearchMode = "fuzzy"
)

// KeywordSearchParams drives the SQL fallback search.
type KeywordSearchParams struct {
	Query   string
	Mode    KeywordSearchMode
	Speaker string
	OrderBy string // rank, date, speaker
	Limit   int
	Offset  int
}

// SegmentRepository defines operations for transcript segment persistence.
type SegmentRepository interface {
	// ReplaceSegments atomically replaces all segments of a video: existing
	// segments (and their topic edges) are deleted and the new set inserted
	// in one transaction. Observers see either all segments or none.
	ReplaceSegments(ctx context.Context, videoID uint, segments []*models.TranscriptSegment) error
	// GetByVideoID returns all segments of a video ordered by video_seconds.
	GetByVideoID(ctx context.Context, videoID uint) ([]*models.TranscriptSegment, error)
	// GetByID retrieves a segment by row ID with its video, or nil.
	GetByID(ctx context.Context, id uint) (*SegmentWithVideo, error)
	// FetchUpdatedSince returns up to limit segments (joined with their
	// videos and topics) with updated_at strictly after the watermark,
	// ordered by row ID. Used by the incremental sync loop.
	FetchUpdatedSince(ctx context.Context, watermark time.Time, limit, offset int) ([]SegmentWithVideo, error)
	// KeywordSearch is the SQL fallback search used when the engine is
	// unreachable.
	KeywordSearch(ctx context.Context, params KeywordSearchParams) ([]SegmentWithVideo, error)
	// CountByVideoID returns the number of segments for a video.
	CountByVideoID(ctx context.Context, videoID uint) (int64, error)
}

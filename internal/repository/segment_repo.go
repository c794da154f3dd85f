package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stenograf/stenograf/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// segmentBatchSize bounds bulk inserts so interpolated statements stay small.
const segmentBatchSize = 500

// segmentRepo implements SegmentRepository using GORM.
type segmentRepo struct {
	db *gorm.DB
}

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(db *gorm.DB) *segmentRepo {
	return &segmentRepo{db: db}
}

// ReplaceSegments atomically replaces all segments of a video. The delete
// and the bulk insert share one transaction, so observers see either the old
// set or the new set, never a partial state.
func (r *segmentRepo) ReplaceSegments(ctx context.Context, videoID uint, segments []*models.TranscriptSegment) error {
	if videoID == 0 {
		return models.ErrVideoIDRequired
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSegmentsOfVideo(tx, videoID); err != nil {
			return err
		}
		if len(segments) == 0 {
			return nil
		}

		for _, s := range segments {
			s.VideoID = videoID
		}
		if err := tx.CreateInBatches(segments, segmentBatchSize).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("inserting segments for video %d: %w", videoID, models.ErrConflictOnUniqueKey)
			}
			return fmt.Errorf("inserting segments: %w", err)
		}
		return nil
	})
}

// GetByVideoID returns all segments of a video ordered by their offset.
func (r *segmentRepo) GetByVideoID(ctx context.Context, videoID uint) ([]*models.TranscriptSegment, error) {
	var segments []*models.TranscriptSegment
	err := r.db.WithContext(ctx).
		Preload("Topics.Topic").
		Where("video_id = ?", videoID).
		Order("video_seconds ASC, id ASC").
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("getting segments by video: %w", err)
	}
	return segments, nil
}

// GetByID retrieves a segment with its owning video.
func (r *segmentRepo) GetByID(ctx context.Context, id uint) (*SegmentWithVideo, error) {
	var segment models.TranscriptSegment
	err := r.db.WithContext(ctx).
		Preload("Topics.Topic").
		Where("id = ?", id).
		First(&segment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting segment by ID: %w", err)
	}

	var video models.Video
	if err := r.db.WithContext(ctx).Where("id = ?", segment.VideoID).First(&video).Error; err != nil {
		return nil, fmt.Errorf("getting segment video: %w", err)
	}
	return &SegmentWithVideo{Segment: segment, Video: video}, nil
}

// FetchUpdatedSince returns segments updated strictly after the watermark,
// ordered by row ID for stable pagination.
func (r *segmentRepo) FetchUpdatedSince(ctx context.Context, watermark time.Time, limit, offset int) ([]SegmentWithVideo, error) {
	if limit <= 0 {
		limit = segmentBatchSize
	}

	var segments []models.TranscriptSegment
	err := r.db.WithContext(ctx).
		Preload("Topics.Topic").
		Where("updated_at > ?", watermark).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&segments).Error
	if err != nil {
		return nil, fmt.Errorf("fetching updated segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, nil
	}

	videoIDs := make([]uint, 0, len(segments))
	seen := make(map[uint]bool, len(segments))
	for _, s := range segments {
		if !seen[s.VideoID] {
			seen[s.VideoID] = true
			videoIDs = append(videoIDs, s.VideoID)
		}
	}

	var videos []models.Video
	if err := r.db.WithContext(ctx).Where("id IN ?", videoIDs).Find(&videos).Error; err != nil {
		return nil, fmt.Errorf("fetching segment videos: %w", err)
	}
	byID := make(map[uint]models.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}

	result := make([]SegmentWithVideo, 0, len(segments))
	for _, s := range segments {
		result = append(result, SegmentWithVideo{Segment: s, Video: byID[s.VideoID]})
	}
	return result, nil
}

// KeywordSearch is the SQL fallback used when the search engine is
// unreachable. Fulltext and fuzzy modes degrade to ILIKE off postgres.
func (r *segmentRepo) KeywordSearch(ctx context.Context, params KeywordSearchParams) ([]SegmentWithVideo, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}

	q := r.db.WithContext(ctx).Model(&models.TranscriptSegment{}).
		Preload("Topics.Topic")

	isPostgres := r.db.Dialector.Name() == "postgres"
	switch params.Mode {
	case KeywordFulltext:
		if isPostgres {
			q = q.Where("to_tsvector('english', transcript_text) @@ plainto_tsquery('english', ?)", params.Query)
		} else {
			q = q.Where("transcript_text LIKE ?", "%"+params.Query+"%")
		}
	case KeywordFuzzy:
		if isPostgres {
			q = q.Where("similarity(transcript_text, ?) > 0.1", params.Query)
		} else {
			q = q.Where("transcript_text LIKE ?", "%"+params.Query+"%")
		}
	default: // exact
		if isPostgres {
			q = q.Where("transcript_text ILIKE ?", "%"+params.Query+"%")
		} else {
			q = q.Where("transcript_text LIKE ?", "%"+params.Query+"%")
		}
	}

	if params.Speaker != "" {
		if isPostgres {
			q = q.Where("speaker_name ILIKE ?", "%"+params.Speaker+"%")
		} else {
			q = q.Where("speaker_name LIKE ?", "%"+params.Speaker+"%")
		}
	}

	switch params.OrderBy {
	case "speaker":
		q = q.Order("speaker_name ASC, id ASC")
	case "date":
		q = q.Order("created_at DESC, id ASC")
	default:
		if params.Mode == KeywordFuzzy && isPostgres {
			q = q.Clauses(clause.OrderBy{Expression: clause.Expr{
				SQL:  "similarity(transcript_text, ?) DESC",
				Vars: []interface{}{params.Query},
			}})
		} else {
			q = q.Order("id ASC")
		}
	}

	var segments []models.TranscriptSegment
	if err := q.Limit(params.Limit).Offset(params.Offset).Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	result := make([]SegmentWithVideo, 0, len(segments))
	for _, s := range segments {
		var video models.Video
		if err := r.db.WithContext(ctx).Where("id = ?", s.VideoID).First(&video).Error; err != nil {
			return nil, fmt.Errorf("loading video for hit: %w", err)
		}
		result = append(result, SegmentWithVideo{Segment: s, Video: video})
	}
	return result, nil
}

// CountByVideoID returns the number of segments for a video.
func (r *segmentRepo) CountByVideoID(ctx context.Context, videoID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TranscriptSegment{}).
		Where("video_id = ?", videoID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting segments: %w", err)
	}
	return count, nil
}

// Ensure segmentRepo implements SegmentRepository.
var _ SegmentRepository = (*segmentRepo)(nil)

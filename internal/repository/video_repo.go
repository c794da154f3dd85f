package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stenograf/stenograf/internal/models"
	"gorm.io/gorm"
)

// videoRepo implements VideoRepository using GORM.
type videoRepo struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *videoRepo {
	return &videoRepo{db: db}
}

// Create creates a new video.
func (r *videoRepo) Create(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Create(video).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("creating video %q: %w", video.Filename, models.ErrConflictOnUniqueKey)
		}
		return fmt.Errorf("creating video: %w", err)
	}
	return nil
}

// Update updates an existing video.
func (r *videoRepo) Update(ctx context.Context, video *models.Video) error {
	if err := r.db.WithContext(ctx).Save(video).Error; err != nil {
		return fmt.Errorf("updating video: %w", err)
	}
	return nil
}

// GetByID retrieves a video by ID.
func (r *videoRepo) GetByID(ctx context.Context, id uint) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by ID: %w", err)
	}
	return &video, nil
}

// GetByFilename retrieves a video by its natural key.
func (r *videoRepo) GetByFilename(ctx context.Context, filename string) (*models.Video, error) {
	var video models.Video
	if err := r.db.WithContext(ctx).Where("filename = ?", filename).First(&video).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting video by filename: %w", err)
	}
	return &video, nil
}

// Delete deletes a video by ID. Segments and their topic edges go with it;
// shared speakers and topics are never touched.
func (r *videoRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteSegmentsOfVideo(tx, id); err != nil {
			return err
		}
		if err := tx.Delete(&models.Video{}, id).Error; err != nil {
			return fmt.Errorf("deleting video: %w", err)
		}
		return nil
	})
}

// DeleteDataset deletes all videos for a dataset tag, optionally restricted
// to one source type.
func (r *videoRepo) DeleteDataset(ctx context.Context, dataset models.Dataset, sourceType *models.SourceType) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Video{}).Where("dataset = ?", dataset)
		if sourceType != nil {
			q = q.Where("source_type = ?", *sourceType)
		}

		var ids []uint
		if err := q.Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("listing dataset videos: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		for _, id := range ids {
			if err := deleteSegmentsOfVideo(tx, id); err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Video{}, ids)
		if res.Error != nil {
			return fmt.Errorf("deleting dataset videos: %w", res.Error)
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// deleteSegmentsOfVideo removes segments and their topic edges for a video
// with explicit DELETE statements inside the caller's transaction.
func deleteSegmentsOfVideo(tx *gorm.DB, videoID uint) error {
	if err := tx.Where("segment_row_id IN (?)",
		tx.Model(&models.TranscriptSegment{}).Select("id").Where("video_id = ?", videoID),
	).Delete(&models.SegmentTopic{}).Error; err != nil {
		return fmt.Errorf("deleting segment topics: %w", err)
	}
	if err := tx.Where("video_id = ?", videoID).Delete(&models.TranscriptSegment{}).Error; err != nil {
		return fmt.Errorf("deleting segments: %w", err)
	}
	return nil
}

// UpdateCounters refreshes the derived word/char/segment counters from the
// current segment rows.
func (r *videoRepo) UpdateCounters(ctx context.Context, id uint) error {
	type totals struct {
		Words    int
		Chars    int
		Segments int
	}
	var t totals
	err := r.db.WithContext(ctx).
		Model(&models.TranscriptSegment{}).
		Select("COALESCE(SUM(word_count),0) AS words, COALESCE(SUM(char_count),0) AS chars, COUNT(*) AS segments").
		Where("video_id = ?", id).
		Scan(&t).Error
	if err != nil {
		return fmt.Errorf("computing video counters: %w", err)
	}

	// Skip hooks: a map-based partial update would otherwise run the
	// BeforeUpdate validation against an empty Video receiver.
	err = r.db.WithContext(ctx).
		Session(&gorm.Session{SkipHooks: true}).
		Model(&models.Video{}).Where("id = ?", id).
		Updates(map[string]any{
			"total_words":      t.Words,
			"total_characters": t.Chars,
			"total_segments":   t.Segments,
		}).Error
	if err != nil {
		return fmt.Errorf("updating video counters: %w", err)
	}
	return nil
}

// RecentTitles returns the most recently imported non-empty titles.
func (r *videoRepo) RecentTitles(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	var titles []string
	err := r.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("title <> ''").
		Order("created_at DESC").
		Limit(limit).
		Pluck("title", &titles).Error
	if err != nil {
		return nil, fmt.Errorf("listing recent titles: %w", err)
	}
	return titles, nil
}

// FetchUpdatedSince returns a page of videos changed after the watermark,
// ordered by row ID so offset paging is stable within a sync run.
func (r *videoRepo) FetchUpdatedSince(ctx context.Context, watermark time.Time, limit, offset int) ([]models.Video, error) {
	var videos []models.Video
	err := r.db.WithContext(ctx).
		Where("updated_at > ?", watermark).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&videos).Error
	if err != nil {
		return nil, fmt.Errorf("fetching updated videos: %w", err)
	}
	return videos, nil
}

// Ensure videoRepo implements VideoRepository.
var _ VideoRepository = (*videoRepo)(nil)

package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stenograf/stenograf/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Video{},
		&models.Speaker{},
		&models.Topic{},
		&models.TranscriptSegment{},
		&models.SegmentTopic{},
	)
	require.NoError(t, err)

	return db
}

// createTestVideo inserts a minimal valid video and returns it.
func createTestVideo(t *testing.T, db *gorm.DB, filename string) *models.Video {
	t.Helper()

	video := &models.Video{
		Filename:   filename,
		Title:      "Test Video " + filename,
		Dataset:    models.DatasetTrump,
		SourceType: models.SourceTypeHTML,
	}
	require.NoError(t, NewVideoRepository(db).Create(context.Background(), video))
	require.NotZero(t, video.ID)
	return video
}

// createTestSegments replaces the video's segments with n simple spoken
// segments named seg-0..seg-n-1.
func createTestSegments(t *testing.T, db *gorm.DB, videoID uint, n int) []*models.TranscriptSegment {
	t.Helper()

	segments := make([]*models.TranscriptSegment, 0, n)
	for i := 0; i < n; i++ {
		seconds := i * 10
		s := &models.TranscriptSegment{
			SegmentID:      fmt.Sprintf("seg-%d", i),
			SegmentType:    models.SegmentTypeSpoken,
			TranscriptText: fmt.Sprintf("segment text number %d", i),
			VideoSeconds:   &seconds,
		}
		s.ComputeCounts()
		segments = append(segments, s)
	}
	require.NoError(t, NewSegmentRepository(db).ReplaceSegments(context.Background(), videoID, segments))
	return segments
}

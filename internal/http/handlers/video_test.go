package handlers

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stenograf/stenograf/internal/database"
	"github.com/stenograf/stenograf/internal/models"
	"github.com/stenograf/stenograf/internal/repository"
)

func newVideoHandler(t *testing.T) (*VideoHandler, repository.VideoRepository, repository.SegmentRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database.AllModels()...))

	videos := repository.NewVideoRepository(db)
	segments := repository.NewSegmentRepository(db)
	return NewVideoHandler(videos, segments), videos, segments
}

func seedVideo(t *testing.T, videos repository.VideoRepository, filename string) *models.Video {
	t.Helper()
	video := &models.Video{
		Filename:   filename,
		Title:      "Rally in Tulsa",
		Dataset:    models.DatasetTrump,
		SourceType: models.SourceTypeHTML,
	}
	require.NoError(t, videos.Create(context.Background(), video))
	return video
}

func TestGetVideo(t *testing.T) {
	handler, videos, _ := newVideoHandler(t)
	video := seedVideo(t, videos, "rally-tulsa.html")

	output, err := handler.GetVideo(context.Background(), &GetVideoInput{ID: video.ID})
	require.NoError(t, err)
	assert.Equal(t, "Rally in Tulsa", output.Body.Title)
	assert.Equal(t, models.DatasetTrump, output.Body.Dataset)
}

func TestGetVideoNotFound(t *testing.T) {
	handler, _, _ := newVideoHandler(t)

	_, err := handler.GetVideo(context.Background(), &GetVideoInput{ID: 9999})
	require.Error(t, err)

	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.GetStatus())
}

func TestGetVideoSegmentsOrdered(t *testing.T) {
	handler, videos, segments := newVideoHandler(t)
	video := seedVideo(t, videos, "rally-tulsa.html")

	second, first := 90, 30
	err := segments.ReplaceSegments(context.Background(), video.ID, []*models.TranscriptSegment{
		{VideoID: video.ID, SegmentID: "b", SegmentType: models.SegmentTypeSpoken, TranscriptText: "later", VideoSeconds: &second},
		{VideoID: video.ID, SegmentID: "a", SegmentType: models.SegmentTypeSpoken, TranscriptText: "earlier", VideoSeconds: &first},
	})
	require.NoError(t, err)

	output, err := handler.GetVideoSegments(context.Background(), &GetVideoSegmentsInput{ID: video.ID})
	require.NoError(t, err)
	require.Len(t, output.Body.Segments, 2)
	assert.Equal(t, "earlier", output.Body.Segments[0].TranscriptText)
	assert.Equal(t, "later", output.Body.Segments[1].TranscriptText)
}

func TestDeleteVideoCascades(t *testing.T) {
	handler, videos, segments := newVideoHandler(t)
	video := seedVideo(t, videos, "rally-tulsa.html")

	err := segments.ReplaceSegments(context.Background(), video.ID, []*models.TranscriptSegment{
		{VideoID: video.ID, SegmentID: "a", SegmentType: models.SegmentTypeSpoken, TranscriptText: "text"},
	})
	require.NoError(t, err)

	output, err := handler.DeleteVideo(context.Background(), &DeleteVideoInput{ID: video.ID})
	require.NoError(t, err)
	assert.Equal(t, 204, output.Status)

	gone, err := videos.GetByID(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	count, err := segments.CountByVideoID(context.Background(), video.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteDataset(t *testing.T) {
	handler, videos, _ := newVideoHandler(t)
	seedVideo(t, videos, "rally-tulsa.html")
	seedVideo(t, videos, "rally-phoenix.html")

	other := &models.Video{
		Filename:   "session.xml",
		Dataset:    models.DatasetTweedeKamer,
		SourceType: models.SourceTypeXML,
	}
	require.NoError(t, videos.Create(context.Background(), other))

	output, err := handler.DeleteDataset(context.Background(), &DeleteDatasetInput{Dataset: "trump"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), output.Body.Removed)

	kept, err := videos.GetByID(context.Background(), other.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

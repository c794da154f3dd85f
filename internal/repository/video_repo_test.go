package repository

import (
	"context"
	"testing"

	"github.com/stenograf/stenograf/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoRepoCreateDuplicateFilename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	createTestVideo(t, db, "rally-2025.html")

	dup := &models.Video{
		Filename:   "rally-2025.html",
		Dataset:    models.DatasetTrump,
		SourceType: models.SourceTypeHTML,
	}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConflictOnUniqueKey)
}

func TestVideoRepoGetByFilename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	created := createTestVideo(t, db, "session-42.xml")

	got, err := repo.GetByFilename(ctx, "session-42.xml")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created.ID, got.ID)

	missing, err := repo.GetByFilename(ctx, "nope.html")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVideoRepoDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	segRepo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "cascade.html")
	segments := createTestSegments(t, db, video.ID, 3)

	// Attach a topic edge to the first segment so the cascade has to cross
	// two tables.
	topic, err := NewTopicRepository(db).GetOrCreate(ctx, "economy")
	require.NoError(t, err)
	edge := &models.SegmentTopic{SegmentRowID: segments[0].ID, TopicID: topic.ID, Score: 0.9}
	require.NoError(t, db.Create(edge).Error)

	require.NoError(t, repo.Delete(ctx, video.ID))

	gone, err := repo.GetByID(ctx, video.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	count, err := segRepo.CountByVideoID(ctx, video.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	var edges int64
	require.NoError(t, db.Model(&models.SegmentTopic{}).Count(&edges).Error)
	assert.Zero(t, edges)

	// The shared topic row survives.
	still, err := NewTopicRepository(db).GetByName(ctx, "economy")
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestVideoRepoDeleteDataset(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	createTestVideo(t, db, "a.html")
	createTestVideo(t, db, "b.html")
	other := &models.Video{
		Filename:   "c.xml",
		Dataset:    models.DatasetTweedeKamer,
		SourceType: models.SourceTypeXML,
	}
	require.NoError(t, repo.Create(ctx, other))

	removed, err := repo.DeleteDataset(ctx, models.DatasetTrump, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	kept, err := repo.GetByFilename(ctx, "c.xml")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestVideoRepoUpdateCounters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "counters.html")
	segments := createTestSegments(t, db, video.ID, 4)

	require.NoError(t, repo.UpdateCounters(ctx, video.ID))

	got, err := repo.GetByID(ctx, video.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 4, got.TotalSegments)

	wantWords := 0
	wantChars := 0
	for _, s := range segments {
		wantWords += s.WordCount
		wantChars += s.CharCount
	}
	assert.Equal(t, wantWords, got.TotalWords)
	assert.Equal(t, wantChars, got.TotalCharacters)
}

func TestVideoRepoRecentTitles(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	createTestVideo(t, db, "one.html")
	untitled := &models.Video{
		Filename:   "two.html",
		Dataset:    models.DatasetTrump,
		SourceType: models.SourceTypeHTML,
	}
	require.NoError(t, repo.Create(ctx, untitled))

	titles, err := repo.RecentTitles(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Test Video one.html"}, titles)
}

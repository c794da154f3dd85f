package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stenograf/stenograf/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentRepoReplaceSegments(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "replace.html")

	createTestSegments(t, db, video.ID, 3)
	count, err := repo.CountByVideoID(ctx, video.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	// Reimport replaces, not appends.
	replacement := []*models.TranscriptSegment{
		{SegmentID: "new-0", SegmentType: models.SegmentTypeSpoken, TranscriptText: "replaced"},
	}
	require.NoError(t, repo.ReplaceSegments(ctx, video.ID, replacement))

	got, err := repo.GetByVideoID(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new-0", got[0].SegmentID)
}

func TestSegmentRepoReplaceSegmentsEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "empty.html")
	createTestSegments(t, db, video.ID, 2)

	require.NoError(t, repo.ReplaceSegments(ctx, video.ID, nil))

	count, err := repo.CountByVideoID(ctx, video.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSegmentRepoReplaceSegmentsRollsBackOnDuplicate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "rollback.html")
	createTestSegments(t, db, video.ID, 2)

	bad := []*models.TranscriptSegment{
		{SegmentID: "dup", SegmentType: models.SegmentTypeSpoken},
		{SegmentID: "dup", SegmentType: models.SegmentTypeSpoken},
	}
	err := repo.ReplaceSegments(ctx, video.ID, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrConflictOnUniqueKey)

	// The old segments survived the failed transaction.
	count, err := repo.CountByVideoID(ctx, video.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestSegmentRepoReplaceSegmentsRequiresVideoID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)

	err := repo.ReplaceSegments(context.Background(), 0, nil)
	assert.ErrorIs(t, err, models.ErrVideoIDRequired)
}

func TestSegmentRepoGetByVideoIDOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "order.html")

	late, early := 120, 5
	segments := []*models.TranscriptSegment{
		{SegmentID: "late", SegmentType: models.SegmentTypeSpoken, VideoSeconds: &late},
		{SegmentID: "early", SegmentType: models.SegmentTypeSpoken, VideoSeconds: &early},
	}
	require.NoError(t, repo.ReplaceSegments(ctx, video.ID, segments))

	got, err := repo.GetByVideoID(ctx, video.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].SegmentID)
	assert.Equal(t, "late", got[1].SegmentID)
}

func TestSegmentRepoGetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "byid.html")
	segments := createTestSegments(t, db, video.ID, 1)

	got, err := repo.GetByID(ctx, segments[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, segments[0].SegmentID, got.Segment.SegmentID)
	assert.Equal(t, video.Filename, got.Video.Filename)

	missing, err := repo.GetByID(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSegmentRepoFetchUpdatedSince(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "sync.html")
	createTestSegments(t, db, video.ID, 5)

	// A zero watermark sees everything.
	all, err := repo.FetchUpdatedSince(ctx, time.Time{}, 100, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, video.ID, all[0].Video.ID)

	// Rows pages are stable by row ID.
	page, err := repo.FetchUpdatedSince(ctx, time.Time{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].Segment.ID, page[0].Segment.ID)

	// A future watermark sees nothing.
	none, err := repo.FetchUpdatedSince(ctx, time.Now().Add(time.Hour), 100, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSegmentRepoFetchUpdatedSinceIncludesTopics(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "topicsync.html")
	segments := createTestSegments(t, db, video.ID, 1)

	topic, err := NewTopicRepository(db).GetOrCreate(ctx, "tax policy")
	require.NoError(t, err)
	edge := &models.SegmentTopic{SegmentRowID: segments[0].ID, TopicID: topic.ID, Score: 0.7}
	require.NoError(t, db.Create(edge).Error)

	got, err := repo.FetchUpdatedSince(ctx, time.Time{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Segment.Topics, 1)
	require.NotNil(t, got[0].Segment.Topics[0].Topic)
	assert.Equal(t, "tax policy", got[0].Segment.Topics[0].Topic.Name)
}

func TestSegmentRepoKeywordSearch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSegmentRepository(db)
	ctx := context.Background()

	video := createTestVideo(t, db, "search.html")
	segments := []*models.TranscriptSegment{
		{SegmentID: "s1", SegmentType: models.SegmentTypeSpoken, SpeakerName: "Alice", TranscriptText: "we will fix the economy"},
		{SegmentID: "s2", SegmentType: models.SegmentTypeSpoken, SpeakerName: "Bob", TranscriptText: "the economy is strong"},
		{SegmentID: "s3", SegmentType: models.SegmentTypeSpoken, SpeakerName: "Alice", TranscriptText: "healthcare for everyone"},
	}
	require.NoError(t, repo.ReplaceSegments(ctx, video.ID, segments))

	hits, err := repo.KeywordSearch(ctx, KeywordSearchParams{Query: "economy", Mode: KeywordExact, Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, video.Filename, hits[0].Video.Filename)

	hits, err = repo.KeywordSearch(ctx, KeywordSearchParams{Query: "economy", Mode: KeywordExact, Speaker: "Alice", Limit: 10})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s1", hits[0].Segment.SegmentID)

	hits, err = repo.KeywordSearch(ctx, KeywordSearchParams{Query: "nothing matches this", Mode: KeywordFulltext, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

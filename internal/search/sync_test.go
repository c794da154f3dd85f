package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stenograf/stenograf/internal/config"
	"github.com/stenograf/stenograf/internal/models"
	"github.com/stenograf/stenograf/internal/progress"
	"github.com/stenograf/stenograf/internal/repository"
)

// fakeSegments implements repository.SegmentRepository in memory.
type fakeSegments struct {
	rows        []repository.SegmentWithVideo
	keywordRows []repository.SegmentWithVideo
	lastKeyword *repository.KeywordSearchParams
}

func (f *fakeSegments) ReplaceSegments(context.Context, uint, []*models.TranscriptSegment) error {
	return nil
}

func (f *fakeSegments) GetByVideoID(_ context.Context, videoID uint) ([]*models.TranscriptSegment, error) {
	var out []*models.TranscriptSegment
	for i := range f.rows {
		if f.rows[i].Segment.VideoID == videoID {
			seg := f.rows[i].Segment
			out = append(out, &seg)
		}
	}
	return out, nil
}

func (f *fakeSegments) GetByID(_ context.Context, id uint) (*repository.SegmentWithVideo, error) {
	for i := range f.rows {
		if f.rows[i].Segment.ID == id {
			row := f.rows[i]
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeSegments) FetchUpdatedSince(_ context.Context, watermark time.Time, limit, offset int) ([]repository.SegmentWithVideo, error) {
	var matched []repository.SegmentWithVideo
	for _, row := range f.rows {
		if row.Segment.UpdatedAt.After(watermark) {
			matched = append(matched, row)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeSegments) KeywordSearch(_ context.Context, params repository.KeywordSearchParams) ([]repository.SegmentWithVideo, error) {
	f.lastKeyword = &params
	return f.keywordRows, nil
}

func (f *fakeSegments) CountByVideoID(context.Context, uint) (int64, error) { return 0, nil }

// fakeVideos implements repository.VideoRepository in memory.
type fakeVideos struct {
	videos []models.Video
	titles []string
}

func (f *fakeVideos) Create(context.Context, *models.Video) error { return nil }
func (f *fakeVideos) Update(context.Context, *models.Video) error { return nil }
func (f *fakeVideos) GetByID(context.Context, uint) (*models.Video, error) {
	return nil, nil
}
func (f *fakeVideos) GetByFilename(context.Context, string) (*models.Video, error) {
	return nil, nil
}
func (f *fakeVideos) Delete(context.Context, uint) error { return nil }
func (f *fakeVideos) DeleteDataset(context.Context, models.Dataset, *models.SourceType) (int64, error) {
	return 0, nil
}
func (f *fakeVideos) UpdateCounters(context.Context, uint) error { return nil }
func (f *fakeVideos) RecentTitles(context.Context, int) ([]string, error) {
	return f.titles, nil
}

func (f *fakeVideos) FetchUpdatedSince(_ context.Context, watermark time.Time, limit, offset int) ([]models.Video, error) {
	var matched []models.Video
	for _, v := range f.videos {
		if v.UpdatedAt.After(watermark) {
			matched = append(matched, v)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// fakeSpeakers implements repository.SpeakerRepository for suggestion tests.
type fakeSpeakers struct{ top []string }

func (f *fakeSpeakers) GetOrCreate(context.Context, string) (*models.Speaker, error) {
	return nil, nil
}
func (f *fakeSpeakers) GetByNormalizedName(context.Context, string) (*models.Speaker, error) {
	return nil, nil
}
func (f *fakeSpeakers) RecomputeStats(context.Context) error { return nil }
func (f *fakeSpeakers) TopByFrequency(context.Context, int) ([]string, error) {
	return f.top, nil
}

// fakeTopics implements repository.TopicRepository for suggestion tests.
type fakeTopics struct{ top []string }

func (f *fakeTopics) GetOrCreate(context.Context, string) (*models.Topic, error) {
	return nil, nil
}
func (f *fakeTopics) GetByName(context.Context, string) (*models.Topic, error) {
	return nil, nil
}
func (f *fakeTopics) RecomputeStats(context.Context) error { return nil }
func (f *fakeTopics) TopByFrequency(context.Context, int) ([]string, error) {
	return f.top, nil
}

var (
	_ repository.SegmentRepository = (*fakeSegments)(nil)
	_ repository.VideoRepository   = (*fakeVideos)(nil)
	_ repository.SpeakerRepository = (*fakeSpeakers)(nil)
	_ repository.TopicRepository   = (*fakeTopics)(nil)
)

func segmentRow(id uint, videoID uint, text string, updatedAt time.Time) repository.SegmentWithVideo {
	seg := models.TranscriptSegment{
		VideoID:        videoID,
		SegmentID:      "seg-" + text,
		TranscriptText: text,
	}
	seg.ID = id
	seg.UpdatedAt = updatedAt
	video := models.Video{Title: "Test Video"}
	video.ID = videoID
	return repository.SegmentWithVideo{Segment: seg, Video: video}
}

func newTestSyncer(t *testing.T, engine Engine, segments *fakeSegments, videos *fakeVideos) *Syncer {
	t.Helper()
	return NewSyncer(SyncerOptions{
		Engine:    engine,
		Segments:  segments,
		Videos:    videos,
		Speakers:  &fakeSpeakers{},
		Topics:    &fakeTopics{},
		Bus:       progress.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil))),
		Search:    config.SearchConfig{TaskPollTimeout: time.Second, TaskPollInterval: time.Millisecond},
		StatePath: filepath.Join(t.TempDir(), "sync_state.json"),
		BatchSize: 500,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestIncrementalSyncRespectsWatermark(t *testing.T) {
	t1 := time.Now().Add(-3 * time.Hour)
	t2 := time.Now().Add(-2 * time.Hour)
	t3 := time.Now().Add(-1 * time.Hour)

	segments := &fakeSegments{rows: []repository.SegmentWithVideo{
		segmentRow(1, 10, "first segment text", t1),
		segmentRow(2, 10, "second segment text", t2),
		segmentRow(3, 10, "third segment text", t3),
	}}
	videos := &fakeVideos{}
	engine := newFakeEngine()
	syncer := newTestSyncer(t, engine, segments, videos)

	// Seed the watermark at t1 so only the later two segments qualify.
	require.NoError(t, SaveSyncState(syncer.statePath, &SyncState{Segments: &t1, Events: &t1}))

	report, err := syncer.Incremental(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.SegmentsUploaded)

	require.Len(t, engine.addCalls, 1)
	call := engine.addCalls[0]
	assert.Equal(t, IndexSegments, call.Index)
	assert.Equal(t, "id", call.PrimaryKey)
	require.Len(t, call.Docs, 2)
	assert.Equal(t, "2", call.Docs[0]["id"])
	assert.Equal(t, "3", call.Docs[1]["id"])

	// The watermark advanced past every synced row.
	state, err := LoadSyncState(syncer.statePath)
	require.NoError(t, err)
	assert.True(t, state.Watermark(IndexSegments).After(t3))

	// An immediate second run uploads nothing.
	before := len(engine.addCalls)
	report, err = syncer.Incremental(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.SegmentsUploaded)
	assert.Len(t, engine.addCalls, before)
}

func TestIncrementalSyncIncludesEvents(t *testing.T) {
	updated := time.Now().Add(-time.Hour)
	video := models.Video{Title: "Rally", Format: "Political Rally"}
	video.ID = 10
	video.UpdatedAt = updated

	segments := &fakeSegments{rows: []repository.SegmentWithVideo{
		segmentRow(1, 10, "only segment text", updated),
	}}
	videos := &fakeVideos{videos: []models.Video{video}}
	engine := newFakeEngine()
	syncer := newTestSyncer(t, engine, segments, videos)

	report, err := syncer.Incremental(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SegmentsUploaded)
	assert.Equal(t, 1, report.EventsUploaded)

	require.Len(t, engine.addCalls, 2)
	assert.Equal(t, IndexEvents, engine.addCalls[1].Index)
	assert.Equal(t, "id", engine.addCalls[1].PrimaryKey)
	assert.Equal(t, "10", engine.addCalls[1].Docs[0]["id"])
}

func TestIncrementalSyncAbortsAfterRepeatedFailures(t *testing.T) {
	segments := &fakeSegments{rows: []repository.SegmentWithVideo{
		segmentRow(1, 10, "segment text", time.Now().Add(-time.Hour)),
	}}
	engine := newFakeEngine()
	engine.failNextAdds = maxConsecutiveBatchFailures
	syncer := newTestSyncer(t, engine, segments, &fakeVideos{})

	_, err := syncer.Incremental(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSyncAborted))

	// The watermark file stays untouched so the next run retries.
	state, err := LoadSyncState(syncer.statePath)
	require.NoError(t, err)
	assert.True(t, state.Watermark(IndexSegments).IsZero())
}

func TestIncrementalSyncRecoversFromTransientFailure(t *testing.T) {
	segments := &fakeSegments{rows: []repository.SegmentWithVideo{
		segmentRow(1, 10, "segment text", time.Now().Add(-time.Hour)),
	}}
	engine := newFakeEngine()
	engine.failNextAdds = maxConsecutiveBatchFailures - 1
	syncer := newTestSyncer(t, engine, segments, &fakeVideos{})

	report, err := syncer.Incremental(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SegmentsUploaded)
	assert.Equal(t, maxConsecutiveBatchFailures-1, report.FailedBatches)
}

func TestInitDeclaresIndexes(t *testing.T) {
	engine := newFakeEngine()
	syncer := newTestSyncer(t, engine, &fakeSegments{}, &fakeVideos{})
	syncer.cfg.OpenAIKey = "sk-test"

	require.NoError(t, syncer.Init(context.Background()))

	assert.Equal(t, "id", engine.ensured[IndexSegments])
	assert.Equal(t, "termId", engine.ensured[IndexSuggestions])
	assert.Equal(t, "id", engine.ensured[IndexEvents])

	settings := engine.settings[IndexSegments]
	require.NotNil(t, settings)
	assert.Contains(t, settings.FilterableAttributes, "moderation.hate.flag")
	assert.Contains(t, settings.FilterableAttributes, "stresslens.score")
	assert.Contains(t, settings.SortableAttributes, "date")
	require.Contains(t, settings.Embedders, embedderName)
	assert.Equal(t, "sk-test", settings.Embedders[embedderName].APIKey)
}

func TestInitWithoutEmbedderKey(t *testing.T) {
	engine := newFakeEngine()
	syncer := newTestSyncer(t, engine, &fakeSegments{}, &fakeVideos{})

	require.NoError(t, syncer.Init(context.Background()))
	assert.Empty(t, engine.settings[IndexSegments].Embedders)
}

func TestSeedSuggestions(t *testing.T) {
	engine := newFakeEngine()
	syncer := NewSyncer(SyncerOptions{
		Engine:    engine,
		Segments:  &fakeSegments{},
		Videos:    &fakeVideos{titles: []string{"Rally in Miami"}},
		Speakers:  &fakeSpeakers{top: []string{"Donald Trump", "Joe Biden"}},
		Topics:    &fakeTopics{top: []string{"Immigration"}},
		Bus:       progress.NewBus(slog.New(slog.NewTextHandler(io.Discard, nil))),
		StatePath: filepath.Join(t.TempDir(), "sync_state.json"),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	count, err := syncer.SeedSuggestions(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.Len(t, engine.addCalls, 1)
	call := engine.addCalls[0]
	assert.Equal(t, IndexSuggestions, call.Index)
	assert.Equal(t, "termId", call.PrimaryKey)
	require.Len(t, call.Docs, 4)

	// Term ids are monotonic across kinds.
	assert.EqualValues(t, 1, call.Docs[0]["termId"])
	assert.Equal(t, "speaker", call.Docs[0]["kind"])
	assert.Equal(t, "Donald Trump", call.Docs[0]["term"])
	assert.EqualValues(t, 4, call.Docs[3]["termId"])
	assert.Equal(t, "title", call.Docs[3]["kind"])
}

func TestSyncStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	// A missing file yields an empty state.
	state, err := LoadSyncState(path)
	require.NoError(t, err)
	assert.True(t, state.Watermark(IndexSegments).IsZero())
	assert.True(t, state.Watermark(IndexEvents).IsZero())

	ts := time.Date(2025, 8, 13, 12, 0, 0, 0, time.UTC)
	state.Advance(IndexSegments, ts)
	require.NoError(t, SaveSyncState(path, state))

	loaded, err := LoadSyncState(path)
	require.NoError(t, err)
	assert.True(t, loaded.Watermark(IndexSegments).Equal(ts))
	assert.True(t, loaded.Watermark(IndexEvents).IsZero())
}

func TestReindexScopedToEvents(t *testing.T) {
	updated := time.Now().Add(-time.Hour)
	video := models.Video{Title: "Rally", Format: "Political Rally"}
	video.ID = 10
	video.UpdatedAt = updated

	segments := &fakeSegments{rows: []repository.SegmentWithVideo{
		segmentRow(1, 10, "only segment text", updated),
	}}
	videos := &fakeVideos{videos: []models.Video{video}}
	engine := newFakeEngine()
	syncer := newTestSyncer(t, engine, segments, videos)

	report, err := syncer.Reindex(context.Background(), ScopeEvents)
	require.NoError(t, err)
	assert.Zero(t, report.SegmentsUploaded)
	assert.Equal(t, 1, report.EventsUploaded)

	require.Len(t, engine.addCalls, 1)
	assert.Equal(t, IndexEvents, engine.addCalls[0].Index)

	// Only the covered index's watermark advances.
	state, err := LoadSyncState(syncer.statePath)
	require.NoError(t, err)
	assert.True(t, state.Watermark(IndexSegments).IsZero())
	assert.False(t, state.Watermark(IndexEvents).IsZero())
}

func TestReindexAllIgnoresWatermark(t *testing.T) {
	old := time.Now().Add(-48 * time.Hour)
	segments := &fakeSegments{rows: []repository.SegmentWithVideo{
		segmentRow(1, 10, "old segment text", old),
	}}
	engine := newFakeEngine()
	syncer := newTestSyncer(t, engine, segments, &fakeVideos{})

	// An incremental run first, so the watermark sits past the row.
	_, err := syncer.Incremental(context.Background())
	require.NoError(t, err)
	engine.addCalls = nil

	report, err := syncer.Reindex(context.Background(), ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SegmentsUploaded)
}

package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stenograf/stenograf/internal/config"
	"github.com/stenograf/stenograf/internal/observability"
	"github.com/stenograf/stenograf/internal/progress"
	"github.com/stenograf/stenograf/internal/repository"
)

// maxConsecutiveBatchFailures aborts an incremental run; the watermark is
// left unchanged so the next run retries the same window.
const maxConsecutiveBatchFailures = 3

// ErrSyncAborted reports an incremental run that gave up after repeated
// batch failures.
var ErrSyncAborted = errors.New("sync aborted after repeated batch failures")

// SyncReport summarizes one incremental cycle.
type SyncReport struct {
	JobID            string
	SegmentsUploaded int
	EventsUploaded   int
	Batches          int
	FailedBatches    int
}

// Syncer drives index initialization and watermark-based incremental sync.
type Syncer struct {
	engine    Engine
	segments  repository.SegmentRepository
	videos    repository.VideoRepository
	speakers  repository.SpeakerRepository
	topics    repository.TopicRepository
	bus       *progress.Bus
	cfg       config.SearchConfig
	statePath string
	batchSize int
	logger    *slog.Logger

	// now is swappable in tests; watermarks advance to wall-clock time.
	now func() time.Time
}

// SyncerOptions collects the Syncer's collaborators.
type SyncerOptions struct {
	Engine    Engine
	Segments  repository.SegmentRepository
	Videos    repository.VideoRepository
	Speakers  repository.SpeakerRepository
	Topics    repository.TopicRepository
	Bus       *progress.Bus
	Search    config.SearchConfig
	StatePath string
	BatchSize int
	Logger    *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(opts SyncerOptions) *Syncer {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 500
	}
	return &Syncer{
		engine:    opts.Engine,
		segments:  opts.Segments,
		videos:    opts.Videos,
		speakers:  opts.Speakers,
		topics:    opts.Topics,
		bus:       opts.Bus,
		cfg:       opts.Search,
		statePath: opts.StatePath,
		batchSize: batch,
		logger:    observability.WithComponent(opts.Logger, "sync"),
		now:       time.Now,
	}
}

// Init declares the indexes and applies their settings. Safe to run on
// every startup; settings application is idempotent.
func (s *Syncer) Init(ctx context.Context) error {
	lexicon, err := LoadLexicon(s.cfg.SettingsFile)
	if err != nil {
		return err
	}

	for _, idx := range []struct {
		uid        string
		primaryKey string
		settings   func() error
	}{
		{IndexSegments, segmentsPrimaryKey, func() error {
			return s.engine.ApplySettings(ctx, IndexSegments, segmentSettings(lexicon, s.cfg.OpenAIKey))
		}},
		{IndexSuggestions, suggestionsPrimaryKey, func() error {
			return s.engine.ApplySettings(ctx, IndexSuggestions, suggestionSettings())
		}},
		{IndexEvents, eventsPrimaryKey, func() error {
			return s.engine.ApplySettings(ctx, IndexEvents, eventSettings())
		}},
	} {
		if err := s.engine.EnsureIndex(ctx, idx.uid, idx.primaryKey); err != nil {
			return err
		}
		if err := idx.settings(); err != nil {
			return err
		}
		s.logger.Info("index initialized", "index", idx.uid)
	}
	return nil
}

// Incremental runs one watermark-driven sync cycle over the segments and
// events indexes. The watermark for an index advances only after every
// batch for that index succeeded, and is persisted atomically.
func (s *Syncer) Incremental(ctx context.Context) (*SyncReport, error) {
	state, err := LoadSyncState(s.statePath)
	if err != nil {
		return nil, err
	}

	tracker := s.bus.StartJob(progress.KindSync, "")
	report := &SyncReport{JobID: tracker.JobID()}

	// Captured before the scan so rows updated mid-run are re-synced next
	// cycle rather than silently skipped.
	runStart := s.now()

	uploaded, err := s.syncSegments(ctx, state.Watermark(IndexSegments), tracker, report)
	if err != nil {
		tracker.Fail(err)
		return report, err
	}
	report.SegmentsUploaded = uploaded

	events, err := s.syncEvents(ctx, state.Watermark(IndexEvents), tracker, report)
	if err != nil {
		tracker.Fail(err)
		return report, err
	}
	report.EventsUploaded = events

	state.Advance(IndexSegments, runStart)
	state.Advance(IndexEvents, runStart)
	if err := SaveSyncState(s.statePath, state); err != nil {
		tracker.Fail(err)
		return report, err
	}

	tracker.Complete(fmt.Sprintf("synced %d segments, %d events", report.SegmentsUploaded, report.EventsUploaded))
	s.logger.Info("incremental sync finished",
		"segments", report.SegmentsUploaded,
		"events", report.EventsUploaded,
		"batches", report.Batches)
	return report, nil
}

// ReindexScope selects which indexes a full reindex rebuilds.
type ReindexScope string

const (
	// ScopeAll rebuilds both the segments and events indexes.
	ScopeAll ReindexScope = "all"
	// ScopeSegments rebuilds only the segments index.
	ScopeSegments ReindexScope = ReindexScope(IndexSegments)
	// ScopeEvents rebuilds only the events index.
	ScopeEvents ReindexScope = ReindexScope(IndexEvents)
)

func (s ReindexScope) covers(index string) bool {
	return s == ScopeAll || string(s) == index
}

// Reindex re-projects the content store into the indexes the scope
// covers, ignoring the stored watermark. The state file is advanced for
// the covered indexes afterwards so the next incremental run picks up
// from this cycle.
func (s *Syncer) Reindex(ctx context.Context, scope ReindexScope) (*SyncReport, error) {
	state, err := LoadSyncState(s.statePath)
	if err != nil {
		return nil, err
	}

	tracker := s.bus.StartJob(progress.KindReindex, "")
	report := &SyncReport{JobID: tracker.JobID()}
	runStart := s.now()

	if scope.covers(IndexSegments) {
		uploaded, err := s.syncSegments(ctx, time.Time{}, tracker, report)
		if err != nil {
			tracker.Fail(err)
			return report, err
		}
		report.SegmentsUploaded = uploaded
		state.Advance(IndexSegments, runStart)
	}

	if scope.covers(IndexEvents) {
		events, err := s.syncEvents(ctx, time.Time{}, tracker, report)
		if err != nil {
			tracker.Fail(err)
			return report, err
		}
		report.EventsUploaded = events
		state.Advance(IndexEvents, runStart)
	}

	if err := SaveSyncState(s.statePath, state); err != nil {
		tracker.Fail(err)
		return report, err
	}

	tracker.Complete(fmt.Sprintf("reindexed %d segments, %d events", report.SegmentsUploaded, report.EventsUploaded))
	return report, nil
}

// syncSegments pages over changed segments and bulk-upserts their
// projections, declaring the primary key on every request.
func (s *Syncer) syncSegments(ctx context.Context, watermark time.Time, tracker *progress.Tracker, report *SyncReport) (int, error) {
	uploaded := 0
	offset := 0
	consecutiveFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		rows, err := s.segments.FetchUpdatedSince(ctx, watermark, s.batchSize, offset)
		if err != nil {
			return uploaded, err
		}
		if len(rows) == 0 {
			break
		}

		docs := TransformBatch(rows)
		if len(docs) > 0 {
			if err := s.uploadBatch(ctx, IndexSegments, docs, segmentsPrimaryKey); err != nil {
				report.FailedBatches++
				consecutiveFailures++
				s.logger.Warn("segment batch upload failed",
					"offset", offset, "consecutive", consecutiveFailures, "error", err)
				if consecutiveFailures >= maxConsecutiveBatchFailures {
					return uploaded, fmt.Errorf("%w: %v", ErrSyncAborted, err)
				}
				// The same offset is retried on the next iteration.
				continue
			}
			uploaded += len(docs)
		}
		consecutiveFailures = 0
		report.Batches++
		tracker.SetMessage(fmt.Sprintf("segments: %d uploaded", uploaded))

		if len(rows) < s.batchSize {
			break
		}
		offset += s.batchSize
	}
	return uploaded, nil
}

// syncEvents rolls changed videos up into event documents.
func (s *Syncer) syncEvents(ctx context.Context, watermark time.Time, tracker *progress.Tracker, report *SyncReport) (int, error) {
	uploaded := 0
	offset := 0
	consecutiveFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return uploaded, err
		}

		videos, err := s.videos.FetchUpdatedSince(ctx, watermark, s.batchSize, offset)
		if err != nil {
			return uploaded, err
		}
		if len(videos) == 0 {
			break
		}

		docs := make([]EventDocument, 0, len(videos))
		for _, video := range videos {
			segments, err := s.segments.GetByVideoID(ctx, video.ID)
			if err != nil {
				return uploaded, err
			}
			docs = append(docs, TransformEvent(video, segments))
		}

		if err := s.uploadBatch(ctx, IndexEvents, docs, eventsPrimaryKey); err != nil {
			report.FailedBatches++
			consecutiveFailures++
			s.logger.Warn("event batch upload failed",
				"offset", offset, "consecutive", consecutiveFailures, "error", err)
			if consecutiveFailures >= maxConsecutiveBatchFailures {
				return uploaded, fmt.Errorf("%w: %v", ErrSyncAborted, err)
			}
			continue
		}
		uploaded += len(docs)
		consecutiveFailures = 0
		report.Batches++
		tracker.SetMessage(fmt.Sprintf("events: %d uploaded", uploaded))

		if len(videos) < s.batchSize {
			break
		}
		offset += s.batchSize
	}
	return uploaded, nil
}

// uploadBatch posts one bulk upsert and waits for its task to settle.
func (s *Syncer) uploadBatch(ctx context.Context, index string, docs any, primaryKey string) error {
	taskUID, err := s.engine.AddDocuments(ctx, index, docs, primaryKey)
	if err != nil {
		return err
	}
	if err := s.engine.WaitForTask(ctx, taskUID); err != nil {
		if errors.Is(err, ErrTaskTimeout) {
			s.logger.Warn("engine task timed out", "index", index, "task", taskUID)
		}
		return err
	}
	return nil
}

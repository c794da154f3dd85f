// Package ingest discovers transcript source files and fans their parsing
// and persistence out over a bounded worker pool.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/stenograf/stenograf/internal/database"
	"github.com/stenograf/stenograf/internal/models"
	"github.com/stenograf/stenograf/internal/observability"
	"github.com/stenograf/stenograf/internal/parser"
	"github.com/stenograf/stenograf/internal/progress"
	"github.com/stenograf/stenograf/internal/repository"
	"gorm.io/gorm"
)

// Concurrency bounds for the worker pool.
const (
	DefaultConcurrency = 4
	MinConcurrency     = 1
	MaxConcurrency     = 10
)

// ErrNoSegments marks a file that parsed but produced nothing usable.
var ErrNoSegments = errors.New("no segments")

// Options controls one ingest run.
type Options struct {
	// Dir is the root directory to scan.
	Dir string
	// SourceType selects the parser: html or xml.
	SourceType models.SourceType
	// Dataset tags the created videos.
	Dataset models.Dataset
	// ForceReimport reprocesses files whose video already exists.
	ForceReimport bool
	// MaxConcurrency bounds the worker pool; clamped to [1,10], default 4.
	MaxConcurrency int
	// OnStart, when set, is called with the job ID as soon as the run is
	// registered on the progress bus.
	OnStart func(jobID string)
}

// FileStatus is the per-file outcome.
type FileStatus string

const (
	StatusProcessed FileStatus = "processed"
	StatusSkipped   FileStatus = "skipped"
	StatusFailed    FileStatus = "failed"
)

// FileResult is the outcome for one discovered file.
type FileResult struct {
	File   string
	Status FileStatus
	Err    error
}

// Summary is the outcome of a whole run.
type Summary struct {
	Total     int
	Processed int
	Skipped   int
	Failed    int
	Errors    []string
	Results   []FileResult
	Cancelled bool
	JobID     string
}

// Orchestrator runs bulk ingests against the content store.
type Orchestrator struct {
	db       *database.DB
	videos   repository.VideoRepository
	speakers repository.SpeakerRepository
	topics   repository.TopicRepository
	bus      *progress.Bus
	logger   *slog.Logger
}

// NewOrchestrator creates an ingest orchestrator.
func NewOrchestrator(db *database.DB, bus *progress.Bus, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		db:       db,
		videos:   repository.NewVideoRepository(db.DB),
		speakers: repository.NewSpeakerRepository(db.DB),
		topics:   repository.NewTopicRepository(db.DB),
		bus:      bus,
		logger:   observability.WithComponent(logger, "ingest"),
	}
}

// jobCaches deduplicates speaker and topic lookups within one run. Caches
// are job-local so a stale row from a concurrent delete cannot outlive the
// run that observed it.
type jobCaches struct {
	mu       sync.Mutex
	speakers map[string]*models.Speaker
	topics   map[string]*models.Topic
}

func newJobCaches() *jobCaches {
	return &jobCaches{
		speakers: make(map[string]*models.Speaker),
		topics:   make(map[string]*models.Topic),
	}
}

func (c *jobCaches) speaker(ctx context.Context, repo repository.SpeakerRepository, name string) (*models.Speaker, error) {
	key := models.NormalizeSpeakerName(name)
	c.mu.Lock()
	if s, ok := c.speakers[key]; ok {
		c.mu.Unlock()
		return s, nil
	}
	c.mu.Unlock()

	s, err := repo.GetOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.speakers[key] = s
	c.mu.Unlock()
	return s, nil
}

func (c *jobCaches) topic(ctx context.Context, repo repository.TopicRepository, name string) (*models.Topic, error) {
	c.mu.Lock()
	if t, ok := c.topics[name]; ok {
		c.mu.Unlock()
		return t, nil
	}
	c.mu.Unlock()

	t, err := repo.GetOrCreate(ctx, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.topics[name] = t
	c.mu.Unlock()
	return t, nil
}

// Run executes one ingest over all matching files under opts.Dir.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	concurrency := opts.MaxConcurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < MinConcurrency {
		concurrency = MinConcurrency
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	tracker := o.bus.StartJob(progress.KindIngest, string(opts.Dataset))
	if opts.OnStart != nil {
		opts.OnStart(tracker.JobID())
	}

	ext := ".html"
	if opts.SourceType == models.SourceTypeXML {
		ext = ".xml"
	}
	files, err := Discover(opts.Dir, ext)
	if err != nil {
		tracker.Fail(err)
		return nil, err
	}
	tracker.SetTotal(len(files))

	summary := &Summary{Total: len(files), JobID: tracker.JobID()}
	caches := newJobCaches()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, concurrency)
	)

	for _, file := range files {
		// Cooperative cancel: never start a new file after cancellation,
		// but let in-flight files finish their transaction.
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			tracker.FileStarted(filepath.Base(path))
			result := o.processFile(ctx, path, opts, caches)

			mu.Lock()
			summary.Results = append(summary.Results, result)
			switch result.Status {
			case StatusProcessed:
				summary.Processed++
			case StatusSkipped:
				summary.Skipped++
			case StatusFailed:
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), result.Err))
			}
			mu.Unlock()

			switch result.Status {
			case StatusProcessed:
				tracker.FileProcessed()
			case StatusSkipped:
				tracker.FileSkipped()
			case StatusFailed:
				tracker.FileFailed(fmt.Sprintf("%s: %v", filepath.Base(path), result.Err))
			}
		}(file)
	}
	wg.Wait()

	if summary.Processed > 0 {
		// Derived statistics are refreshed once per job, not per file.
		if err := o.speakers.RecomputeStats(ctx); err != nil {
			o.logger.Warn("recomputing speaker stats", "error", err)
		}
		if err := o.topics.RecomputeStats(ctx); err != nil {
			o.logger.Warn("recomputing topic stats", "error", err)
		}
	}

	switch {
	case summary.Cancelled:
		tracker.Cancel()
	default:
		tracker.Complete(fmt.Sprintf("processed %d, skipped %d, failed %d of %d files",
			summary.Processed, summary.Skipped, summary.Failed, summary.Total))
	}

	o.logger.Info("ingest run finished",
		"dataset", opts.Dataset,
		"total", summary.Total,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled)
	return summary, nil
}

// RunAsync starts a run in a background goroutine and returns the job ID
// as soon as the job is registered on the progress bus. Progress is then
// observable through the bus.
func (o *Orchestrator) RunAsync(ctx context.Context, opts Options) string {
	ids := make(chan string, 1)
	prev := opts.OnStart
	opts.OnStart = func(id string) {
		ids <- id
		if prev != nil {
			prev(id)
		}
	}
	go func() {
		if _, err := o.Run(ctx, opts); err != nil {
			o.logger.Error("background ingest failed", "error", err)
		}
	}()
	return <-ids
}

// processFile ingests one file end to end. Errors are local to the file.
func (o *Orchestrator) processFile(ctx context.Context, path string, opts Options, caches *jobCaches) FileResult {
	result := FileResult{File: path}
	logical := LogicalName(path)

	existing, err := o.videos.GetByFilename(ctx, logical)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result
	}
	if existing != nil && !opts.ForceReimport {
		result.Status = StatusSkipped
		return result
	}

	parsed, err := o.parse(path, logical, opts.SourceType)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result
	}
	if len(parsed.Segments) == 0 {
		result.Status = StatusFailed
		result.Err = ErrNoSegments
		return result
	}
	for _, w := range parsed.Warnings {
		o.logger.Warn("segment skipped", "file", logical, "index", w.Index, "reason", w.Reason)
	}

	rows, err := o.buildRows(ctx, parsed, caches)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	videoID, err := o.persist(ctx, existing, parsed, opts, rows)
	if err != nil {
		// A transaction abort gets one retry before the file is recorded
		// as failed.
		videoID, err = o.persist(ctx, existing, parsed, opts, rows)
		if err != nil {
			result.Status = StatusFailed
			result.Err = err
			return result
		}
	}

	if err := o.videos.UpdateCounters(ctx, videoID); err != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("updating video counters: %w", err)
		return result
	}

	result.Status = StatusProcessed
	return result
}

func (o *Orchestrator) parse(path, logical string, sourceType models.SourceType) (*parser.ParsedVideo, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if sourceType == models.SourceTypeXML {
		return parser.ParseVLOS(logical, rc)
	}
	return parser.ParseHTML(logical, rc)
}

// buildRows maps parsed segments to store rows, resolving speakers and
// topics through the job caches.
func (o *Orchestrator) buildRows(ctx context.Context, parsed *parser.ParsedVideo, caches *jobCaches) ([]*models.TranscriptSegment, error) {
	rows := make([]*models.TranscriptSegment, 0, len(parsed.Segments))
	for i := range parsed.Segments {
		ps := &parsed.Segments[i]
		row := ps.ToModel()

		if ps.SpeakerName != "" {
			speaker, err := caches.speaker(ctx, o.speakers, ps.SpeakerName)
			if err != nil {
				return nil, fmt.Errorf("resolving speaker %q: %w", ps.SpeakerName, err)
			}
			row.SpeakerID = &speaker.ID
		}
		if ps.PrimaryTopic != "" {
			topic, err := caches.topic(ctx, o.topics, ps.PrimaryTopic)
			if err != nil {
				return nil, fmt.Errorf("resolving topic %q: %w", ps.PrimaryTopic, err)
			}
			score := 1.0
			if ps.PrimaryTopicScore != nil {
				score = *ps.PrimaryTopicScore
			}
			row.Topics = []models.SegmentTopic{{TopicID: topic.ID, Score: score}}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// persist writes the video and its segments in one transaction.
func (o *Orchestrator) persist(ctx context.Context, existing *models.Video, parsed *parser.ParsedVideo, opts Options, rows []*models.TranscriptSegment) (uint, error) {
	var videoID uint
	err := o.db.Transaction(ctx, func(tx *gorm.DB) error {
		videos := repository.NewVideoRepository(tx)
		segments := repository.NewSegmentRepository(tx)

		video := existing
		if video == nil {
			video = &models.Video{}
		}
		applyMetadata(video, &parsed.Metadata, opts)

		if existing == nil {
			if err := videos.Create(ctx, video); err != nil {
				return err
			}
		} else {
			if err := videos.Update(ctx, video); err != nil {
				return err
			}
		}
		videoID = video.ID

		return segments.ReplaceSegments(ctx, video.ID, rows)
	})
	if err != nil {
		return 0, err
	}
	return videoID, nil
}

// applyMetadata maps parsed metadata onto the video row.
func applyMetadata(video *models.Video, meta *parser.VideoMetadata, opts Options) {
	video.Filename = meta.Filename
	video.Title = meta.Title
	video.Date = meta.Date
	video.Source = meta.Source
	video.Format = meta.Format
	video.Candidate = meta.Candidate
	video.Place = meta.Place
	video.RecordType = meta.RecordType
	video.Description = meta.Description
	video.URL = meta.URL
	video.VimeoID = meta.VimeoID
	video.YouTubeID = meta.YouTubeID
	video.ThumbnailURL = meta.ThumbnailURL
	video.DurationSeconds = meta.DurationSeconds
	video.Dataset = opts.Dataset
	video.SourceType = opts.SourceType

	video.Chair = meta.Chair
	video.SessionStartTime = meta.SessionStartTime
	video.SessionEndTime = meta.SessionEndTime
	video.SummaryIntro = meta.SummaryIntro
	if meta.Attendees != nil {
		if encoded, err := attendeesJSON(meta.Attendees); err == nil {
			video.Attendees = encoded
		}
	}
}

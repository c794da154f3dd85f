// Package progress tracks the state of long-running jobs (ingest, sync,
// reindex) and pushes updates to subscribers.
package progress

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Common errors.
var (
	// ErrJobNotFound is returned when the job does not exist.
	ErrJobNotFound = errors.New("job not found")
)

// maxRecordedErrors caps the error tail kept on a job status.
const maxRecordedErrors = 10

// State is the lifecycle state of a job.
type State string

const (
	// StateRunning indicates the job is in progress.
	StateRunning State = "running"
	// StateCompleted indicates the job finished successfully.
	StateCompleted State = "completed"
	// StateFailed indicates the job finished with an error.
	StateFailed State = "failed"
	// StateCancelled indicates the job was cancelled.
	StateCancelled State = "cancelled"
)

// IsTerminal returns true for completed, failed, or cancelled.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobKind identifies the type of job being tracked.
type JobKind string

const (
	// KindIngest is a bulk file ingest run.
	KindIngest JobKind = "ingest"
	// KindSync is an incremental index sync cycle.
	KindSync JobKind = "sync"
	// KindReindex is a full re-projection into the search engine.
	KindReindex JobKind = "reindex"
)

// JobStatus is the observable state of one job.
type JobStatus struct {
	// JobID uniquely identifies the job.
	JobID string `json:"job_id"`
	// Kind is the job type.
	Kind JobKind `json:"kind"`
	// Dataset tags which source family the job touches, when applicable.
	Dataset string `json:"dataset,omitempty"`

	State   State  `json:"state"`
	Message string `json:"message,omitempty"`

	TotalFiles     int    `json:"total_files"`
	ProcessedFiles int    `json:"processed_files"`
	FailedFiles    int    `json:"failed_files"`
	SkippedFiles   int    `json:"skipped_files"`
	CurrentFile    string `json:"current_file,omitempty"`

	// Errors holds the last ten error messages.
	Errors []string `json:"errors,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe for concurrent readers.
func (s *JobStatus) Clone() *JobStatus {
	clone := *s
	clone.Errors = append([]string(nil), s.Errors...)
	return &clone
}

// Event is pushed to subscribers when a job changes.
type Event struct {
	Status    *JobStatus `json:"status"`
	Timestamp time.Time  `json:"timestamp"`
}

// Subscriber receives job events on a buffered channel. A slow subscriber
// drops events rather than blocking writers.
type Subscriber struct {
	ID     string
	Events chan *Event
}

// Bus is the process-wide job registry. The most recent job of each kind is
// retained; terminal jobs are evicted after a retention window.
type Bus struct {
	mu          sync.RWMutex
	jobs        map[string]*JobStatus
	latest      map[JobKind]string
	subscribers map[string]*Subscriber
	logger      *slog.Logger

	retention   time.Duration
	stopCleanup chan struct{}
	ticker      *time.Ticker
}

// NewBus creates a progress bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		jobs:        make(map[string]*JobStatus),
		latest:      make(map[JobKind]string),
		subscribers: make(map[string]*Subscriber),
		logger:      logger.With("component", "progress_bus"),
		retention:   30 * time.Minute,
		stopCleanup: make(chan struct{}),
	}
}

// Start begins background eviction of stale terminal jobs.
func (b *Bus) Start() {
	b.ticker = time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-b.ticker.C:
				b.evictStale()
			case <-b.stopCleanup:
				return
			}
		}
	}()
}

// Stop halts background eviction.
func (b *Bus) Stop() {
	if b.ticker != nil {
		b.ticker.Stop()
		close(b.stopCleanup)
	}
}

func (b *Bus) evictStale() {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().Add(-b.retention)
	for id, job := range b.jobs {
		if job.State.IsTerminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(b.jobs, id)
			if b.latest[job.Kind] == id {
				delete(b.latest, job.Kind)
			}
		}
	}
}

// StartJob registers a new running job and returns its tracker.
func (b *Bus) StartJob(kind JobKind, dataset string) *Tracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	status := &JobStatus{
		JobID:     ulid.Make().String(),
		Kind:      kind,
		Dataset:   dataset,
		State:     StateRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	b.jobs[status.JobID] = status
	b.latest[kind] = status.JobID

	b.logger.Debug("job started", "job_id", status.JobID, "kind", kind, "dataset", dataset)
	b.broadcastLocked(status)

	return &Tracker{bus: b, jobID: status.JobID}
}

// Get returns a snapshot of one job.
func (b *Bus) Get(jobID string) (*JobStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	job, ok := b.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// Latest returns a snapshot of the most recent job of a kind.
func (b *Bus) Latest(kind JobKind) (*JobStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	id, ok := b.latest[kind]
	if !ok {
		return nil, ErrJobNotFound
	}
	job, ok := b.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns snapshots of all tracked jobs.
func (b *Bus) List() []*JobStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]*JobStatus, 0, len(b.jobs))
	for _, job := range b.jobs {
		result = append(result, job.Clone())
	}
	return result
}

// CancelStale marks every non-terminal job as cancelled. Called on startup
// so a crashed process never reports a phantom running job.
func (b *Bus) CancelStale() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cancelled := 0
	for _, job := range b.jobs {
		if !job.State.IsTerminal() {
			now := time.Now()
			job.State = StateCancelled
			job.Message = "cancelled at startup"
			job.CompletedAt = &now
			job.UpdatedAt = now
			cancelled++
			b.broadcastLocked(job)
		}
	}
	return cancelled
}

// Subscribe registers a new event subscriber.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscriber{
		ID:     ulid.Make().String(),
		Events: make(chan *Event, 64),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

func (b *Bus) update(jobID string, fn func(*JobStatus)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	job, ok := b.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now()
	b.broadcastLocked(job)
	return nil
}

// broadcastLocked fans the current status out to subscribers. Must be called
// with b.mu held.
func (b *Bus) broadcastLocked(status *JobStatus) {
	event := &Event{Status: status.Clone(), Timestamp: time.Now()}
	for _, sub := range b.subscribers {
		select {
		case sub.Events <- event:
		default:
			b.logger.Warn("subscriber channel full, dropping event",
				"subscriber_id", sub.ID, "job_id", status.JobID)
		}
	}
}

// Tracker updates one job's status.
type Tracker struct {
	bus   *Bus
	jobID string
}

// JobID returns the tracked job's identifier.
func (t *Tracker) JobID() string {
	return t.jobID
}

// SetTotal records the number of files the job will touch.
func (t *Tracker) SetTotal(total int) {
	_ = t.bus.update(t.jobID, func(s *JobStatus) {
		s.TotalFiles = total
	})
}

// FileStarted records the file currently being processed.
func (t *Tracker) FileStarted(name string) {
	_ = t.bus.update(t.jobID, func(s *JobStatus) {
		s.CurrentFile = name
	})
}

// FileProcessed records one successfully processed file.
func (t *Tracker) FileProcessed() {
	_ = t.bus.update(t.jobID, func(s *JobStatus) {
		s.ProcessedFiles++
	})
}

// FileSkipped records one skipped file.
func (t *Tracker) FileSkipped() {
	_ = t.bus.update(t.jobID, func(s *JobStatus) {
		s.SkippedFiles++
	})
}

// FileFailed records one failed file with its error message, keeping only
// the last ten messages.
func (t *Tracker) FileFailed(msg string) {
	_ = t.bus.update(t.jobID, func(s *JobStatus) {
		s.FailedFiles++
		s.Errors = append(s.Errors, msg)
		if len(s.Errors) > maxRecordedErrors {
			s.Errors = s.Errors[len(s.Errors)-maxRecordedErrors:]
		}
	})
}

// SetMessage sets the status message.
func (t *Tracker) SetMessage(msg string) {
	_ = t.bus.update(t.jobID, func(s *JobStatus) {
		s.Message = msg
	})
}

// Complete marks the job as completed.
func (t *Tracker) Complete(msg string) {
	t.finish(StateCompleted, msg)
}

// Fail marks the job as failed.
func (t *Tracker) Fail(err error) {
	t.finish(StateFailed, err.Error())
}

// Cancel marks the job as cancelled.
func (t *Tracker) Cancel() {
	t.finish(StateCancelled, "job cancelled")
}

func (t *Tracker) finish(state State, msg string) {
	_ = t.bus.update(t.jobID, func(s *JobStatus) {
		s.State = state
		s.Message = msg
		s.CurrentFile = ""
		now := time.Now()
		s.CompletedAt = &now
	})
}

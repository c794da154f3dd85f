package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stenograf/stenograf/internal/progress"
)

// ProgressHandler exposes job status snapshots and an SSE push stream.
type ProgressHandler struct {
	bus            *progress.Bus
	logger         *slog.Logger
	updateInterval time.Duration
}

// NewProgressHandler creates a progress handler.
func NewProgressHandler(bus *progress.Bus, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{
		bus:            bus,
		logger:         logger,
		updateInterval: time.Second,
	}
}

// SetUpdateInterval overrides the SSE update cadence (for testing).
func (h *ProgressHandler) SetUpdateInterval(interval time.Duration) {
	h.updateInterval = interval
}

// ListJobsInput lists tracked jobs.
type ListJobsInput struct{}

// ListJobsBody is the job list response body.
type ListJobsBody struct {
	Jobs []*progress.JobStatus `json:"jobs"`
}

// ListJobsOutput is the job list response.
type ListJobsOutput struct {
	Body ListJobsBody
}

// GetJobInput identifies one job.
type GetJobInput struct {
	JobID string `path:"job_id" doc:"Job ID"`
}

// GetJobOutput is the single-job response.
type GetJobOutput struct {
	Body progress.JobStatus
}

// LatestJobInput selects the most recent job of a kind.
type LatestJobInput struct {
	Kind string `query:"kind" enum:"ingest,sync,reindex" doc:"Job kind; defaults to ingest"`
}

// LatestJobOutput is the latest-job response.
type LatestJobOutput struct {
	Body progress.JobStatus
}

// Register registers the snapshot routes with the API.
func (h *ProgressHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listJobs",
		Method:      "GET",
		Path:        "/api/v1/progress/jobs",
		Summary:     "List jobs",
		Description: "Returns all tracked ingest, sync, and reindex jobs",
		Tags:        []string{"Progress"},
	}, h.ListJobs)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/v1/progress/jobs/{job_id}",
		Summary:     "Get job",
		Description: "Returns the status snapshot of one job",
		Tags:        []string{"Progress"},
	}, h.GetJob)

	huma.Register(api, huma.Operation{
		OperationID: "getLatestJob",
		Method:      "GET",
		Path:        "/api/v1/progress/latest",
		Summary:     "Get most recent job",
		Description: "Returns the status snapshot of the most recent job of a kind",
		Tags:        []string{"Progress"},
	}, h.LatestJob)
}

// RegisterSSE registers the push endpoint on the router. It is separate
// from Register because the REST framework does not stream.
func (h *ProgressHandler) RegisterSSE(router interface {
	Get(pattern string, handlerFn http.HandlerFunc)
}) {
	router.Get("/api/v1/progress/events", h.handleSSE)
}

// ListJobs returns all tracked jobs.
func (h *ProgressHandler) ListJobs(ctx context.Context, _ *ListJobsInput) (*ListJobsOutput, error) {
	return &ListJobsOutput{Body: ListJobsBody{Jobs: h.bus.List()}}, nil
}

// GetJob returns one job's snapshot.
func (h *ProgressHandler) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	status, err := h.bus.Get(input.JobID)
	if err != nil {
		return nil, huma.Error404NotFound("job not found")
	}
	return &GetJobOutput{Body: *status}, nil
}

// LatestJob returns the most recent job of a kind.
func (h *ProgressHandler) LatestJob(ctx context.Context, input *LatestJobInput) (*LatestJobOutput, error) {
	kind := progress.JobKind(input.Kind)
	if kind == "" {
		kind = progress.KindIngest
	}
	status, err := h.bus.Latest(kind)
	if err != nil {
		return nil, huma.Error404NotFound("no job of that kind")
	}
	return &LatestJobOutput{Body: *status}, nil
}

// handleSSE streams job status updates. The client receives an immediate
// snapshot, then an update roughly every second until the watched job
// reaches a terminal state.
func (h *ProgressHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	kind := progress.JobKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = progress.KindIngest
	}
	jobID := r.URL.Query().Get("job_id")

	snapshot := func() (*progress.JobStatus, error) {
		if jobID != "" {
			return h.bus.Get(jobID)
		}
		return h.bus.Latest(kind)
	}

	status, err := snapshot()
	if err != nil {
		if errors.Is(err, progress.ErrJobNotFound) {
			http.Error(w, "no job to watch", http.StatusNotFound)
			return
		}
		http.Error(w, "progress unavailable", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	ticker := time.NewTicker(h.updateInterval)
	defer ticker.Stop()

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub.ID)

	watched := status.JobID
	send := func(s *progress.JobStatus) bool {
		payload, err := json.Marshal(s)
		if err != nil {
			h.logger.Error("encoding progress event", "error", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload); err != nil {
			return false
		}
		if err := rc.Flush(); err != nil {
			h.logger.Debug("sse flush failed, client likely disconnected", "error", err)
			return false
		}
		return true
	}

	if !send(status) {
		return
	}
	if status.State.IsTerminal() {
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if event.Status.JobID != watched {
				continue
			}
			if event.Status.State.IsTerminal() {
				send(event.Status)
				return
			}
		case <-ticker.C:
			current, err := h.bus.Get(watched)
			if err != nil {
				return
			}
			if !send(current) {
				return
			}
			if current.State.IsTerminal() {
				return
			}
		}
	}
}

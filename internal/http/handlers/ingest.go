package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/stenograf/stenograf/internal/config"
	"github.com/stenograf/stenograf/internal/ingest"
	"github.com/stenograf/stenograf/internal/models"
)

// IngestHandler triggers and reports bulk ingest runs.
type IngestHandler struct {
	orchestrator *ingest.Orchestrator
	cfg          config.IngestConfig
	// baseCtx outlives the HTTP request so background runs survive it, while
	// still stopping on server shutdown.
	baseCtx context.Context
}

// NewIngestHandler creates an ingest handler. baseCtx bounds background
// ingest runs; pass the server's lifetime context.
func NewIngestHandler(baseCtx context.Context, orchestrator *ingest.Orchestrator, cfg config.IngestConfig) *IngestHandler {
	return &IngestHandler{orchestrator: orchestrator, cfg: cfg, baseCtx: baseCtx}
}

// TriggerIngestInput starts a bulk ingest run.
type TriggerIngestInput struct {
	Body struct {
		SourceType  string `json:"source_type" enum:"html,xml" doc:"Parser to use"`
		Dataset     string `json:"dataset" enum:"trump,tweede_kamer,video_library" doc:"Dataset tag for created videos"`
		Dir         string `json:"dir,omitempty" doc:"Directory to scan; defaults to the configured data dir"`
		Force       bool   `json:"force,omitempty" doc:"Reimport files whose video already exists"`
		Concurrency int    `json:"concurrency,omitempty" minimum:"1" maximum:"10" doc:"Worker pool size"`
	}
}

// TriggerIngestBody is the accepted-run response body.
type TriggerIngestBody struct {
	JobID string `json:"job_id"`
}

// TriggerIngestOutput is the trigger response.
type TriggerIngestOutput struct {
	Status int
	Body   TriggerIngestBody
}

// Register registers the ingest routes with the API.
func (h *IngestHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "triggerIngest",
		Method:        "POST",
		Path:          "/api/v1/ingest",
		Summary:       "Trigger a bulk ingest",
		Description:   "Starts a background ingest run over a directory of transcript files",
		Tags:          []string{"Ingest"},
		DefaultStatus: 202,
	}, h.Trigger)
}

// Trigger starts a background ingest run and returns its job ID. Progress
// is observable through the progress endpoints.
func (h *IngestHandler) Trigger(ctx context.Context, input *TriggerIngestInput) (*TriggerIngestOutput, error) {
	sourceType := models.SourceTypeHTML
	dir := input.Body.Dir
	if input.Body.SourceType == "xml" {
		sourceType = models.SourceTypeXML
		if dir == "" {
			dir = h.cfg.XMLDataDir
		}
	} else if dir == "" {
		dir = h.cfg.HTMLDataDir
	}
	if dir == "" {
		return nil, huma.Error422UnprocessableEntity("no data directory configured or given")
	}

	concurrency := input.Body.Concurrency
	if concurrency == 0 {
		concurrency = h.cfg.MaxConcurrent
	}

	jobID := h.orchestrator.RunAsync(h.baseCtx, ingest.Options{
		Dir:            dir,
		SourceType:     sourceType,
		Dataset:        models.Dataset(input.Body.Dataset),
		ForceReimport:  input.Body.Force,
		MaxConcurrency: concurrency,
	})

	return &TriggerIngestOutput{
		Status: 202,
		Body:   TriggerIngestBody{JobID: jobID},
	}, nil
}

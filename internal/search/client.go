// Package search owns everything that touches the external search engine:
// document projection, index settings, watermark-driven sync, query
// translation, and the SQL fallback used when the engine is unreachable.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/stenograf/stenograf/internal/config"
	"github.com/stenograf/stenograf/internal/observability"
	"github.com/stenograf/stenograf/pkg/httpclient"
)

// Error kinds callers classify on.
var (
	// ErrEngineUnavailable marks connection-level failures.
	ErrEngineUnavailable = errors.New("search engine unavailable")
	// ErrTaskTimeout marks a task that did not settle within the poll window.
	ErrTaskTimeout = errors.New("search engine task timed out")
)

// Engine is the slice of the search engine the rest of the package uses.
// The production implementation wraps the Meilisearch client; tests supply
// a fake.
type Engine interface {
	// EnsureIndex creates the index with the primary key if it is missing.
	EnsureIndex(ctx context.Context, uid, primaryKey string) error
	// ApplySettings applies index settings; the call is idempotent.
	ApplySettings(ctx context.Context, uid string, settings *meilisearch.Settings) error
	// AddDocuments bulk-upserts documents, always declaring the primary
	// key, and returns the engine task id.
	AddDocuments(ctx context.Context, uid string, docs any, primaryKey string) (int64, error)
	// WaitForTask polls the task until it settles or times out.
	WaitForTask(ctx context.Context, taskUID int64) error
	// Search runs one query against an index.
	Search(ctx context.Context, uid, query string, req *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error)
	// SimilarDocuments runs the native similar-documents query.
	SimilarDocuments(ctx context.Context, uid string, query *meilisearch.SimilarDocumentQuery) ([]map[string]any, error)
	// Healthy reports whether the engine currently answers.
	Healthy(ctx context.Context) bool
}

// meiliEngine implements Engine against a Meilisearch service.
type meiliEngine struct {
	client       meilisearch.ServiceManager
	pollTimeout  time.Duration
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewEngine connects to the configured Meilisearch host. Requests route
// through a circuit-breaking HTTP client so an engine outage fails fast
// into the SQL fallback instead of stalling every query.
func NewEngine(cfg config.SearchConfig, logger *slog.Logger) Engine {
	httpCfg := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		httpCfg.RequestTimeout = cfg.Timeout
	}
	// Bulk document POSTs can be large; the longer of the two bounds wins.
	if cfg.BulkTimeout > httpCfg.RequestTimeout {
		httpCfg.RequestTimeout = cfg.BulkTimeout
	}
	httpCfg.Logger = observability.WithComponent(logger, "search_http")

	opts := []meilisearch.Option{
		meilisearch.WithCustomClient(httpclient.New(httpCfg).StandardClient()),
	}
	if cfg.MasterKey != "" {
		opts = append(opts, meilisearch.WithAPIKey(cfg.MasterKey))
	}
	return &meiliEngine{
		client:       meilisearch.New(cfg.Host, opts...),
		pollTimeout:  cfg.TaskPollTimeout,
		pollInterval: cfg.TaskPollInterval,
		logger:       observability.WithComponent(logger, "search_engine"),
	}
}

func (e *meiliEngine) EnsureIndex(ctx context.Context, uid, primaryKey string) error {
	if _, err := e.client.GetIndexWithContext(ctx, uid); err == nil {
		return nil
	}
	info, err := e.client.CreateIndexWithContext(ctx, &meilisearch.IndexConfig{
		Uid:        uid,
		PrimaryKey: primaryKey,
	})
	if err != nil {
		return fmt.Errorf("creating index %s: %w", uid, classify(err))
	}
	return e.WaitForTask(ctx, info.TaskUID)
}

func (e *meiliEngine) ApplySettings(ctx context.Context, uid string, settings *meilisearch.Settings) error {
	info, err := e.client.Index(uid).UpdateSettingsWithContext(ctx, settings)
	if err != nil {
		return fmt.Errorf("updating settings for %s: %w", uid, classify(err))
	}
	return e.WaitForTask(ctx, info.TaskUID)
}

func (e *meiliEngine) AddDocuments(ctx context.Context, uid string, docs any, primaryKey string) (int64, error) {
	info, err := e.client.Index(uid).AddDocumentsWithContext(ctx, docs, primaryKey)
	if err != nil {
		return 0, fmt.Errorf("adding documents to %s: %w", uid, classify(err))
	}
	return info.TaskUID, nil
}

func (e *meiliEngine) WaitForTask(ctx context.Context, taskUID int64) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.pollTimeout)
	defer cancel()

	task, err := e.client.WaitForTaskWithContext(waitCtx, taskUID, e.pollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("task %d: %w", taskUID, ErrTaskTimeout)
		}
		return fmt.Errorf("waiting for task %d: %w", taskUID, classify(err))
	}
	if task.Status == meilisearch.TaskStatusFailed {
		// The engine's message is surfaced verbatim.
		return fmt.Errorf("task %d failed: %s", taskUID, task.Error.Message)
	}
	return nil
}

func (e *meiliEngine) Search(ctx context.Context, uid, query string, req *meilisearch.SearchRequest) (*meilisearch.SearchResponse, error) {
	resp, err := e.client.Index(uid).SearchWithContext(ctx, query, req)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", uid, classify(err))
	}
	return resp, nil
}

func (e *meiliEngine) SimilarDocuments(ctx context.Context, uid string, query *meilisearch.SimilarDocumentQuery) ([]map[string]any, error) {
	var resp meilisearch.SimilarDocumentResult
	if err := e.client.Index(uid).SearchSimilarDocumentsWithContext(ctx, query, &resp); err != nil {
		return nil, fmt.Errorf("similar documents in %s: %w", uid, classify(err))
	}
	return decodeHits(resp.Hits)
}

func (e *meiliEngine) Healthy(ctx context.Context) bool {
	return e.client.IsHealthy()
}

// classify folds transport-level failures into ErrEngineUnavailable so
// callers can choose the SQL fallback.
func classify(err error) error {
	var apiErr *meilisearch.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		// The engine answered; this is a request problem, not availability.
		return err
	}
	return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
}

// decodeHits normalizes engine hits into generic maps through a JSON
// round-trip, tolerating hit-shape differences across engine versions.
func decodeHits(hits any) ([]map[string]any, error) {
	raw, err := jsonRoundTrip(hits)
	if err != nil {
		return nil, fmt.Errorf("decoding hits: %w", err)
	}
	return raw, nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/stenograf/stenograf/internal/database"
	internalhttp "github.com/stenograf/stenograf/internal/http"
	"github.com/stenograf/stenograf/internal/http/handlers"
	"github.com/stenograf/stenograf/internal/ingest"
	"github.com/stenograf/stenograf/internal/progress"
	"github.com/stenograf/stenograf/internal/repository"
	"github.com/stenograf/stenograf/internal/search"
	"github.com/stenograf/stenograf/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the stenograf server",
	Long: `Start the stenograf HTTP server and API.

The server provides:
- Search, suggestion, and similar-segment endpoints backed by Meilisearch
- Video and segment browse endpoints backed by the content store
- Asynchronous ingest triggers with SSE progress streaming
- Health check endpoint and OpenAPI documentation at /docs

When no search engine is configured (search.host empty), search requests
are served by the SQL keyword fallback.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "host to bind to (overrides config)")
	serveCmd.Flags().Int("port", 0, "port to listen on (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := initRuntime()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if err := db.EnsureSearchIndexes(ctx); err != nil {
		return fmt.Errorf("ensuring search indexes: %w", err)
	}

	videoRepo := repository.NewVideoRepository(db.DB)
	segmentRepo := repository.NewSegmentRepository(db.DB)
	speakerRepo := repository.NewSpeakerRepository(db.DB)
	topicRepo := repository.NewTopicRepository(db.DB)

	bus := progress.NewBus(logger)
	bus.Start()
	defer bus.Stop()
	if stale := bus.CancelStale(); stale > 0 {
		logger.Warn("cancelled stale jobs from previous run", slog.Int("count", stale))
	}

	var engine search.Engine
	if cfg.Search.EngineConfigured() {
		engine = search.NewEngine(cfg.Search, logger)
	} else {
		logger.Warn("no search engine configured, queries use the SQL fallback")
	}

	syncer := search.NewSyncer(search.SyncerOptions{
		Engine:    engine,
		Segments:  segmentRepo,
		Videos:    videoRepo,
		Speakers:  speakerRepo,
		Topics:    topicRepo,
		Bus:       bus,
		Search:    cfg.Search,
		StatePath: cfg.Sync.StateFile,
		BatchSize: cfg.Sync.BatchSize,
		Logger:    logger,
	})

	if engine != nil {
		// Engine downtime at boot should not keep the API from serving;
		// the next sync run declares the indexes instead.
		if err := syncer.Init(ctx); err != nil {
			logger.Warn("search index init failed",
				slog.String("error", err.Error()))
		}
	}

	searcher := search.NewSearcher(engine, segmentRepo, cfg.Search, logger)
	orchestrator := ingest.NewOrchestrator(db, bus, logger)

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db.DB)
	if engine != nil {
		healthHandler = healthHandler.WithEngine(engine)
	}
	healthHandler.Register(server.API())

	searchHandler := handlers.NewSearchHandler(searcher)
	searchHandler.Register(server.API())

	suggestHandler := handlers.NewSuggestHandler(searcher)
	suggestHandler.Register(server.API())

	videoHandler := handlers.NewVideoHandler(videoRepo, segmentRepo)
	videoHandler.Register(server.API())

	// Ingest runs outlive the request that triggered them, so the handler
	// gets the server lifetime context rather than per-request ones.
	ingestHandler := handlers.NewIngestHandler(ctx, orchestrator, cfg.Ingest)
	ingestHandler.Register(server.API())

	progressHandler := handlers.NewProgressHandler(bus, logger)
	progressHandler.Register(server.API())
	progressHandler.RegisterSSE(server.Router())

	if cfg.Sync.Schedule != "" && engine != nil {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Sync.Schedule, func() {
			if _, err := syncer.Incremental(ctx); err != nil {
				logger.Error("scheduled sync failed",
					slog.String("error", err.Error()))
			}
		}); err != nil {
			return fmt.Errorf("%w: invalid sync schedule %q: %v", ErrConfig, cfg.Sync.Schedule, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Info("scheduled incremental sync",
			slog.String("schedule", cfg.Sync.Schedule))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting stenograf server",
		slog.String("address", cfg.Server.Address()),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stenograf/stenograf/internal/config"
	"github.com/stenograf/stenograf/internal/database"
	"github.com/stenograf/stenograf/internal/progress"
	"github.com/stenograf/stenograf/internal/repository"
	"github.com/stenograf/stenograf/internal/search"
)

var (
	syncInitOnly        bool
	syncSeedSuggestions bool
	syncBatchSize       int
	reindexEngine       string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Incrementally sync the content store into Meilisearch",
	Long: `Push rows changed since the last successful run into the search
engine. Index declarations and settings are applied first, so a fresh
engine can be brought up with this command alone.

The watermark only advances after every batch succeeds; a partial run is
retried in full on the next invocation.`,
	RunE: runSync,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search indexes from scratch",
	Long: `Push the entire content store into the search engine, ignoring the
sync watermark, and reseed the suggestion index. Use after changing index
settings or recovering a wiped engine.`,
	RunE: runReindex,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(reindexCmd)

	syncCmd.Flags().BoolVar(&syncInitOnly, "init", false, "only declare indexes and apply settings, push nothing")
	syncCmd.Flags().BoolVar(&syncSeedSuggestions, "seed-suggestions", false, "reseed the suggestion index after syncing")
	syncCmd.Flags().IntVar(&syncBatchSize, "batch-size", 0, "documents per upload batch (default from config)")
	reindexCmd.Flags().IntVar(&syncBatchSize, "batch-size", 0, "documents per upload batch (default from config)")
	reindexCmd.Flags().StringVar(&reindexEngine, "engine", "all", "index to rebuild: all, segments, or events")
}

// newSyncer builds a Syncer against a live database and engine. The
// returned cleanup closes both.
func newSyncer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*search.Syncer, func(), error) {
	if !cfg.Search.EngineConfigured() {
		return nil, nil, fmt.Errorf("%w: search.host is not configured", ErrConfig)
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	bus := progress.NewBus(logger)
	bus.Start()

	batch := cfg.Sync.BatchSize
	if syncBatchSize > 0 {
		batch = syncBatchSize
	}

	syncer := search.NewSyncer(search.SyncerOptions{
		Engine:    search.NewEngine(cfg.Search, logger),
		Segments:  repository.NewSegmentRepository(db.DB),
		Videos:    repository.NewVideoRepository(db.DB),
		Speakers:  repository.NewSpeakerRepository(db.DB),
		Topics:    repository.NewTopicRepository(db.DB),
		Bus:       bus,
		Search:    cfg.Search,
		StatePath: cfg.Sync.StateFile,
		BatchSize: batch,
		Logger:    logger,
	})
	cleanup := func() {
		bus.Stop()
		db.Close()
	}
	return syncer, cleanup, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, logger, err := initRuntime()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	syncer, cleanup, err := newSyncer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := syncer.Init(ctx); err != nil {
		return fmt.Errorf("initializing indexes: %w", err)
	}
	if syncInitOnly {
		fmt.Println("indexes declared and settings applied")
		return nil
	}

	report, err := syncer.Incremental(ctx)
	if err != nil {
		return fmt.Errorf("incremental sync: %w", err)
	}
	fmt.Printf("synced %d segments, %d events in %d batches (%d failed)\n",
		report.SegmentsUploaded, report.EventsUploaded, report.Batches, report.FailedBatches)

	if syncSeedSuggestions {
		seeded, err := syncer.SeedSuggestions(ctx, 0)
		if err != nil {
			return fmt.Errorf("seeding suggestions: %w", err)
		}
		fmt.Printf("seeded %d suggestion terms\n", seeded)
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, logger, err := initRuntime()
	if err != nil {
		return err
	}

	var scope search.ReindexScope
	switch reindexEngine {
	case "all":
		scope = search.ScopeAll
	case "segments":
		scope = search.ScopeSegments
	case "events":
		scope = search.ScopeEvents
	default:
		return fmt.Errorf("%w: unknown --engine %q (want all, segments, or events)", ErrConfig, reindexEngine)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	syncer, cleanup, err := newSyncer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := syncer.Init(ctx); err != nil {
		return fmt.Errorf("initializing indexes: %w", err)
	}

	report, err := syncer.Reindex(ctx, scope)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	fmt.Printf("reindexed %d segments, %d events in %d batches (%d failed)\n",
		report.SegmentsUploaded, report.EventsUploaded, report.Batches, report.FailedBatches)

	if scope == search.ScopeAll {
		seeded, err := syncer.SeedSuggestions(ctx, 0)
		if err != nil {
			return fmt.Errorf("seeding suggestions: %w", err)
		}
		fmt.Printf("seeded %d suggestion terms\n", seeded)
	}
	return nil
}

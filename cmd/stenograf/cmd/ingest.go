package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stenograf/stenograf/internal/database"
	"github.com/stenograf/stenograf/internal/ingest"
	"github.com/stenograf/stenograf/internal/models"
	"github.com/stenograf/stenograf/internal/progress"
)

var (
	ingestDataset     string
	ingestForce       bool
	ingestConcurrency int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <html|xml> [dir]",
	Short: "Ingest transcript files into the content store",
	Long: `Ingest transcript files from a directory tree into the content store.

The first argument selects the parser: "html" for annotated rally pages,
"xml" for parliamentary VLOS session reports. The directory defaults to
the configured data directory for that source type. Compressed files
(.br, .xz, .gz) are decompressed transparently.

Already imported files are skipped unless --force is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringVar(&ingestDataset, "dataset", "", "dataset tag (default: trump for html, tweede_kamer for xml)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "reprocess files whose video already exists")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 0, "worker pool size, 1-10 (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, logger, err := initRuntime()
	if err != nil {
		return err
	}

	var (
		sourceType models.SourceType
		dataset    models.Dataset
		dir        string
	)
	switch args[0] {
	case "html":
		sourceType = models.SourceTypeHTML
		dataset = models.DatasetTrump
		dir = cfg.Ingest.HTMLDataDir
	case "xml":
		sourceType = models.SourceTypeXML
		dataset = models.DatasetTweedeKamer
		dir = cfg.Ingest.XMLDataDir
	default:
		return fmt.Errorf("%w: unknown source type %q (want html or xml)", ErrConfig, args[0])
	}
	if len(args) > 1 {
		dir = args[1]
	}
	if dir == "" {
		return fmt.Errorf("%w: no ingest directory given and none configured for %s", ErrConfig, args[0])
	}
	if ingestDataset != "" {
		dataset = models.Dataset(ingestDataset)
	}
	concurrency := ingestConcurrency
	if concurrency == 0 {
		concurrency = cfg.Ingest.MaxConcurrent
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	bus := progress.NewBus(logger)
	bus.Start()
	defer bus.Stop()

	orchestrator := ingest.NewOrchestrator(db, bus, logger)
	summary, err := orchestrator.Run(ctx, ingest.Options{
		Dir:            dir,
		SourceType:     sourceType,
		Dataset:        dataset,
		ForceReimport:  ingestForce,
		MaxConcurrency: concurrency,
	})
	if err != nil {
		return fmt.Errorf("ingest run: %w", err)
	}

	logger.Info("ingest finished",
		slog.Int("total", summary.Total),
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
	)
	fmt.Printf("ingested %d/%d files (%d skipped, %d failed)\n",
		summary.Processed, summary.Total, summary.Skipped, summary.Failed)
	for _, msg := range summary.Errors {
		fmt.Fprintln(os.Stderr, " -", msg)
	}

	if summary.Cancelled {
		return fmt.Errorf("ingest cancelled")
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d files failed", summary.Failed)
	}
	return nil
}

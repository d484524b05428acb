package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meltforce/run5k/internal/config"
	"github.com/meltforce/run5k/internal/importer"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
	"github.com/meltforce/run5k/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("path", "", "localStorage export file or directory of exports (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing progress")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: run5k-import -config config.yaml -path export.json [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	catalog := plan.Default()
	if cfg.Plan.File != "" {
		if catalog, err = plan.LoadCatalog(cfg.Plan.File); err != nil {
			log.Error("failed to load plan", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	kv, closeKV, err := storage.OpenKV(ctx, cfg.Storage, "migrations", log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer closeKV()

	store := progress.New(kv, catalog.Len(), log)
	before := store.Load(ctx)
	log.Info("progress loaded", "completed", len(before), "total", catalog.Len())

	if *dryRun {
		log.Info("DRY RUN mode, no progress will be written")
	}

	imp := importer.New(store, log, *dryRun)
	stats, err := imp.Import(ctx, *exportPath)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		closeKV()
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete", "completed", store.Count(), "total", catalog.Len())
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"workouts_inserted", stats.WorkoutsInserted,
		"workouts_duplicated", stats.WorkoutsDuplicated,
		"workouts_rejected", stats.WorkoutsRejected,
		"runner_name_set", stats.RunnerNameSet,
		"preferences_flipped", stats.PreferencesFlipped,
	)
}

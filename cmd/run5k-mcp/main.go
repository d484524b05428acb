package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/run5k/internal/config"
	"github.com/meltforce/run5k/internal/mcp"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
	"github.com/meltforce/run5k/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (local mode)")
	serverURL := flag.String("server", "", "run5k base URL, e.g. http://run5k.tailnet.ts.net (remote mode)")
	flag.Parse()

	// stdout carries the MCP protocol
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var ds mcp.DataSource
	if *serverURL != "" {
		ds = mcp.NewHTTPClient(*serverURL)
		log.Info("mcp remote mode", "server", *serverURL)
	} else {
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
		store.Load(ctx)
		ds = mcp.Local{Catalog: catalog, Store: store}
		log.Info("mcp local mode", "driver", cfg.Storage.Driver)
	}

	s := mcp.New(ds, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}

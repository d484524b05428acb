package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	run5k "github.com/meltforce/run5k"
	"github.com/meltforce/run5k/internal/assetcache"
	"github.com/meltforce/run5k/internal/config"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
	"github.com/meltforce/run5k/internal/server"
	"github.com/meltforce/run5k/internal/storage"
	"github.com/meltforce/run5k/internal/timer"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("run5k starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Load plan
	catalog := plan.Default()
	if cfg.Plan.File != "" {
		catalog, err = plan.LoadCatalog(cfg.Plan.File)
		if err != nil {
			log.Error("failed to load plan", "path", cfg.Plan.File, "error", err)
			os.Exit(1)
		}
	}
	log.Info("plan loaded", "workouts", catalog.Len())

	// Open storage (applies migrations)
	ctx := context.Background()
	kv, closeKV, err := storage.OpenKV(ctx, cfg.Storage, "migrations", log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer closeKV()

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Progress store and timer
	events := server.NewEventLog(0)
	store := progress.New(kv, catalog.Len(), log)
	store.Subscribe(events.ProgressCounter)
	store.Load(ctx)

	finishDelay, err := cfg.Timer.FinishDelayDuration()
	if err != nil {
		log.Error("invalid timer config", "error", err)
		os.Exit(1)
	}
	cues := timer.NewAsyncCues(events, 16, log)
	defer cues.Close()

	ctrl := timer.NewController(timer.Config{
		Display:     events,
		Cues:        cues,
		WakeLock:    timer.NewWakeLock(events, log),
		Tracker:     store,
		FinishDelay: finishDelay,
		Log:         log,
	})
	defer ctrl.Stop(ctx)

	// Create server
	srv := server.New(catalog, store, ctrl, events, log)

	// Serve embedded frontend through the asset cache
	webDist, err := fs.Sub(run5k.WebFS, "web/dist")
	if err != nil {
		log.Error("failed to load embedded frontend", "error", err)
		os.Exit(1)
	}
	assets, closeAssets, err := newAssetManager(ctx, cfg.Assets, webDist, log)
	if err != nil {
		log.Error("failed to set up asset cache", "error", err)
		os.Exit(1)
	}
	defer closeAssets()
	srv.SetFrontend(webDist, assets)

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// newAssetManager installs and activates the current asset cache. A failed
// install is logged and the manager keeps passing requests through to the
// network.
func newAssetManager(ctx context.Context, cfg config.AssetsConfig, webDist fs.FS, log *slog.Logger) (*assetcache.Manager, func(), error) {
	var caches assetcache.Storage = assetcache.NewMemoryStorage()
	closeFn := func() {}
	if cfg.CachePath != "" {
		db, err := storage.OpenSQLite(cfg.CachePath, "assets.db")
		if err != nil {
			return nil, nil, err
		}
		caches = db.Caches()
		closeFn = func() { _ = db.Close() }
	}

	var fetcher assetcache.Fetcher = assetcache.HandlerFetcher{Handler: server.FrontendHandler(webDist)}
	if cfg.Origin != "" {
		fetcher = assetcache.NewHTTPFetcher(cfg.Origin)
	}

	version := cfg.Version
	if version == "" {
		if cfg.Origin != "" {
			version = Version
		} else {
			v, err := assetcache.DeriveVersion(webDist, cfg.Manifest)
			if err != nil {
				closeFn()
				return nil, nil, fmt.Errorf("deriving asset version: %w", err)
			}
			version = v
		}
	}

	mgr := assetcache.New(caches, fetcher,
		assetcache.Manifest{Name: cfg.Name, Version: version, Assets: cfg.Manifest},
		assetcache.Options{BestEffort: cfg.BestEffort, MaxRuntimeEntries: cfg.MaxRuntimeEntries}, log)

	if err := mgr.Install(ctx); err != nil {
		log.Warn("asset cache install failed, serving from network", "error", err)
		return mgr, closeFn, nil
	}
	deleted, err := mgr.Activate(ctx)
	if err != nil {
		log.Warn("asset cache activation failed", "error", err)
	}
	log.Info("asset cache ready", "cache", mgr.CacheName(), "evicted", len(deleted))
	return mgr, closeFn, nil
}

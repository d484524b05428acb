package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/meltforce/run5k/internal/config"
	"github.com/meltforce/run5k/internal/plan"
	"github.com/meltforce/run5k/internal/progress"
	"github.com/meltforce/run5k/internal/storage"
	"github.com/meltforce/run5k/internal/timer"
)

// console renders the timer to the terminal and logs cues.
type console struct {
	log  *slog.Logger
	done chan struct{}
}

func (c *console) Show(s timer.Snapshot) {
	fmt.Printf("\r%-8s %s  %s   ", s.PhaseLabel, s.Clock, s.RepLabel)
}

func (c *console) Completed(s timer.Snapshot) {
	fmt.Printf("\r%s\n", timer.LabelFinished)
}

func (c *console) Hide() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

func (c *console) ProgressCounter(completed, total int) {
	c.log.Info("progress", "completed", completed, "total", total)
}

func (c *console) SetEnergySaver(on bool) {
	c.log.Info("energy saver", "on", on)
}

func (c *console) Play(cue timer.Cue) {
	fmt.Print("\a")
	c.log.Debug("cue", "cue", cue)
}

func (c *console) Prime(cue timer.Cue) {}

func (c *console) Vibrate(pattern []time.Duration) {
	c.log.Debug("vibrate", "pattern", pattern)
}

var keys = map[string]timer.Command{
	"p": timer.CmdToggle,
	"r": timer.CmdReset,
	"m": timer.CmdToggleMute,
	"q": timer.CmdClose,
}

func main() {
	configPath := flag.String("config", "", "path to config file (progress is not saved without one)")
	index := flag.Int("index", 0, "workout index in the plan")
	text := flag.String("text", "", "workout text, e.g. \"Corra 5 min, caminhe 2 min, repita 3x\" (defaults to the plan entry)")
	debug := flag.Bool("debug", false, "log cues")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()
	catalog := plan.Default()
	storageCfg := config.StorageConfig{Driver: config.DriverMemory}
	finishDelay := timer.DefaultFinishDelay
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		if cfg.Plan.File != "" {
			if catalog, err = plan.LoadCatalog(cfg.Plan.File); err != nil {
				log.Error("failed to load plan", "error", err)
				os.Exit(1)
			}
		}
		if finishDelay, err = cfg.Timer.FinishDelayDuration(); err != nil {
			log.Error("invalid timer config", "error", err)
			os.Exit(1)
		}
		storageCfg = cfg.Storage
	}

	kv, closeKV, err := storage.OpenKV(ctx, storageCfg, "migrations", log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer closeKV()

	workoutText := *text
	if workoutText == "" {
		w, ok := catalog.Get(*index)
		if !ok {
			log.Error("unknown workout index", "index", *index, "workouts", catalog.Len())
			os.Exit(1)
		}
		workoutText = w.Text
	} else if err := plan.Validate(workoutText); err != nil {
		log.Error("invalid workout text", "text", workoutText, "error", err)
		os.Exit(1)
	}

	out := &console{log: log, done: make(chan struct{})}
	store := progress.New(kv, catalog.Len(), log)
	store.Subscribe(out.ProgressCounter)
	store.Load(ctx)

	cues := timer.NewAsyncCues(out, 8, log)
	defer cues.Close()

	ctrl := timer.NewController(timer.Config{
		Display:     out,
		Cues:        cues,
		Tracker:     store,
		FinishDelay: finishDelay,
		Log:         log,
	})
	defer ctrl.Stop(ctx)

	sel, err := ctrl.Select(ctx, *index, workoutText)
	if err != nil {
		log.Error("select failed", "error", err)
		os.Exit(1)
	}
	if sel.Completed {
		log.Info("distance workout marked completed", "text", workoutText)
		return
	}
	if _, err := ctrl.Toggle(ctx); err != nil {
		log.Error("start failed", "error", err)
		os.Exit(1)
	}
	log.Info("workout started", "text", workoutText, "keys", "p=pause r=reset m=mute q=quit")

	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			cmd, ok := keys[strings.TrimSpace(sc.Text())]
			if !ok {
				continue
			}
			if _, err := ctrl.Dispatch(ctx, cmd, timer.Args{}); err != nil && !errors.Is(err, timer.ErrNoSession) {
				log.Warn("command failed", "command", cmd, "error", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-out.done:
		fmt.Println()
	case sig := <-quit:
		fmt.Println()
		log.Info("interrupted", "signal", sig)
		ctrl.Close(ctx)
	}
}

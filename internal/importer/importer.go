// Package importer merges progress exported from the browser-only version
// of the tracker (a JSON dump of its localStorage) into a progress store.
package importer

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/meltforce/run5k/internal/progress"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	WorkoutsInserted   int
	WorkoutsDuplicated int
	WorkoutsRejected   int

	RunnerNameSet      bool
	PreferencesFlipped int
}

// Importer reads localStorage exports and merges them into a store.
// Imports only ever add completions; nothing is un-completed.
type Importer struct {
	store  *progress.Store
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer. The store must already be loaded.
func New(store *progress.Store, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, log: log, dryRun: dryRun}
}

// Import processes one export file or every *.json / *.json.gz file in a
// directory, in name order.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		return &imp.stats, fmt.Errorf("reading %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		files = nil
		for _, pattern := range []string{"*.json", "*.json.gz"} {
			matches, err := filepath.Glob(filepath.Join(path, pattern))
			if err != nil {
				return &imp.stats, err
			}
			files = append(files, matches...)
		}
		sort.Strings(files)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return &imp.stats, err
		}
		data, err := readExport(f)
		if err != nil {
			imp.log.Warn("read failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		exp, err := ParseExport(data)
		if err != nil {
			imp.log.Warn("parse failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		if exp.empty() {
			imp.stats.FilesSkipped++
			continue
		}
		imp.stats.FilesProcessed++
		imp.apply(ctx, f, exp)
	}

	return &imp.stats, nil
}

// readExport reads a file, gunzipping *.gz.
func readExport(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", path, err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// Export is the decoded content of one localStorage dump. Flags are nil
// when the key was absent.
type Export struct {
	Completed   []int
	RunnerName  string
	Muted       *bool
	EnergySaver *bool
}

func (e Export) empty() bool {
	return len(e.Completed) == 0 && e.RunnerName == "" && e.Muted == nil && e.EnergySaver == nil
}

// ParseExport decodes a JSON object of localStorage keys to string values,
// as produced by JSON.stringify(localStorage). Unknown keys are ignored.
func ParseExport(data []byte) (Export, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return Export{}, fmt.Errorf("decoding export: %w", err)
	}

	var exp Export
	if v, ok := raw[progress.KeyProgress]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &exp.Completed); err != nil {
			return Export{}, fmt.Errorf("decoding %s: %w", progress.KeyProgress, err)
		}
	}
	exp.RunnerName = strings.TrimSpace(raw[progress.KeyRunnerName])
	exp.Muted = flag(raw, progress.KeyMuted)
	exp.EnergySaver = flag(raw, progress.KeyEnergySaver)
	return exp, nil
}

func flag(raw map[string]string, key string) *bool {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	b := v == "true"
	return &b
}

func (imp *Importer) apply(ctx context.Context, file string, exp Export) {
	for _, i := range exp.Completed {
		if i < 0 || i >= imp.store.Total() {
			imp.log.Info("skipping workout (out of range)", "file", file, "index", i)
			imp.stats.WorkoutsRejected++
			continue
		}
		if imp.store.Progress().Has(i) {
			imp.stats.WorkoutsDuplicated++
			continue
		}
		imp.stats.WorkoutsInserted++
		if imp.dryRun {
			continue
		}
		if _, err := imp.store.MarkCompleted(ctx, i); err != nil {
			imp.log.Warn("mark completed failed", "index", i, "error", err)
		}
	}

	prefs := imp.store.Preferences()
	if exp.RunnerName != "" && prefs.RunnerName == "" {
		imp.stats.RunnerNameSet = true
		if !imp.dryRun {
			imp.store.SetRunnerName(ctx, exp.RunnerName)
		}
	}
	if exp.Muted != nil && *exp.Muted != prefs.Muted {
		imp.stats.PreferencesFlipped++
		if !imp.dryRun {
			imp.store.ToggleMute(ctx)
		}
	}
	if exp.EnergySaver != nil && *exp.EnergySaver != prefs.ScreenOff {
		imp.stats.PreferencesFlipped++
		if !imp.dryRun {
			imp.store.ToggleScreenOff(ctx)
		}
	}
}

package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/meltforce/run5k/internal/models"
)

// Storage keys.
const (
	KeyProgress    = "runningPlanProgress"
	KeyRunnerName  = "runnerName"
	KeyMuted       = "muteActive"
	KeyEnergySaver = "energySaverActive"
)

// ErrIndexOutOfRange is returned for a workout index outside the plan.
var ErrIndexOutOfRange = errors.New("workout index out of range")

// Store holds the progress record and preferences in memory and writes
// them through to a KV on every mutation. KV failures are logged and
// swallowed: the store keeps working in memory for the session.
type Store struct {
	kv    KV
	total int
	log   *slog.Logger

	mu          sync.Mutex
	progress    models.Progress
	prefs       models.Preferences
	subscribers []func(completed, total int)
}

// New creates a Store for a plan of total workouts. Call Load before use.
func New(kv KV, total int, log *slog.Logger) *Store {
	return &Store{
		kv:       kv,
		total:    total,
		log:      log,
		progress: models.Progress{},
	}
}

// Subscribe registers fn to be called with the completion count after
// every progress mutation and after Load.
func (s *Store) Subscribe(fn func(completed, total int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Load reads the whole record. Absent keys leave defaults in place.
func (s *Store) Load(ctx context.Context) models.Progress {
	s.mu.Lock()
	s.progress = s.loadProgress(ctx)
	s.prefs = models.Preferences{
		RunnerName: s.getString(ctx, KeyRunnerName),
		Muted:      s.getString(ctx, KeyMuted) == "true",
		ScreenOff:  s.getString(ctx, KeyEnergySaver) == "true",
	}
	p := s.progress.Clone()
	s.mu.Unlock()

	s.notify(len(p))
	return p
}

func (s *Store) loadProgress(ctx context.Context) models.Progress {
	raw := s.getString(ctx, KeyProgress)
	if raw == "" {
		return models.Progress{}
	}
	var indices []int
	if err := json.Unmarshal([]byte(raw), &indices); err != nil {
		s.log.Warn("discarding unreadable progress record", "error", err)
		return models.Progress{}
	}
	p := models.Progress{}
	for _, i := range indices {
		if i >= 0 && i < s.total {
			p[i] = struct{}{}
		}
	}
	return p
}

// Save overwrites the persisted record with p.
func (s *Store) Save(ctx context.Context, p models.Progress) {
	s.mu.Lock()
	s.progress = p.Clone()
	s.persistProgress(ctx)
	n := len(s.progress)
	s.mu.Unlock()
	s.notify(n)
}

// Progress returns a copy of the current record.
func (s *Store) Progress() models.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.Clone()
}

// Summary returns the API view of the record.
func (s *Store) Summary() models.ProgressSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ProgressSummary{
		Completed: s.progress.Sorted(),
		Count:     len(s.progress),
		Total:     s.total,
	}
}

// Count returns the number of completed workouts.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.progress)
}

// Total returns the plan size.
func (s *Store) Total() int {
	return s.total
}

// MarkCompleted adds index to the record. Marking an already completed
// workout is a no-op and does not write. It returns whether the record
// changed.
func (s *Store) MarkCompleted(ctx context.Context, index int) (bool, error) {
	if err := s.checkIndex(index); err != nil {
		return false, err
	}
	s.mu.Lock()
	if s.progress.Has(index) {
		s.mu.Unlock()
		return false, nil
	}
	s.progress[index] = struct{}{}
	s.persistProgress(ctx)
	n := len(s.progress)
	s.mu.Unlock()

	s.notify(n)
	return true, nil
}

// Toggle flips the completion of index and returns the new state.
func (s *Store) Toggle(ctx context.Context, index int) (bool, error) {
	if err := s.checkIndex(index); err != nil {
		return false, err
	}
	s.mu.Lock()
	completed := !s.progress.Has(index)
	if completed {
		s.progress[index] = struct{}{}
	} else {
		delete(s.progress, index)
	}
	s.persistProgress(ctx)
	n := len(s.progress)
	s.mu.Unlock()

	s.notify(n)
	return completed, nil
}

// Preferences returns the current preferences.
func (s *Store) Preferences() models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// SetRunnerName stores the display name. Blank names are ignored.
func (s *Store) SetRunnerName(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.RunnerName = name
	s.setString(ctx, KeyRunnerName, name)
}

// ToggleMute flips the mute flag and returns the new value.
func (s *Store) ToggleMute(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.Muted = !s.prefs.Muted
	s.setString(ctx, KeyMuted, strconv.FormatBool(s.prefs.Muted))
	return s.prefs.Muted
}

// ToggleScreenOff flips the screen-off (energy saver) flag and returns the
// new value.
func (s *Store) ToggleScreenOff(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.ScreenOff = !s.prefs.ScreenOff
	s.setString(ctx, KeyEnergySaver, strconv.FormatBool(s.prefs.ScreenOff))
	return s.prefs.ScreenOff
}

func (s *Store) checkIndex(index int) error {
	if index < 0 || index >= s.total {
		return fmt.Errorf("%w: %d (plan has %d)", ErrIndexOutOfRange, index, s.total)
	}
	return nil
}

// persistProgress must be called with s.mu held.
func (s *Store) persistProgress(ctx context.Context) {
	data, err := json.Marshal(s.progress.Sorted())
	if err != nil {
		s.log.Warn("encoding progress", "error", err)
		return
	}
	s.setString(ctx, KeyProgress, string(data))
}

func (s *Store) getString(ctx context.Context, key string) string {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("storage unavailable, using defaults", "key", key, "error", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (s *Store) setString(ctx context.Context, key, value string) {
	if err := s.kv.Set(ctx, key, value); err != nil {
		s.log.Warn("storage unavailable, keeping in memory", "key", key, "error", err)
	}
}

func (s *Store) notify(completed int) {
	s.mu.Lock()
	subs := append([]func(int, int){}, s.subscribers...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(completed, s.total)
	}
}

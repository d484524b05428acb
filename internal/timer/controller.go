package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meltforce/run5k/internal/models"
	"github.com/meltforce/run5k/internal/plan"
)

// DefaultFinishDelay is how long the completion banner stays up.
const DefaultFinishDelay = 2 * time.Second

var (
	ErrNoSession     = errors.New("no active workout")
	ErrSessionActive = errors.New("a workout is already open")
	ErrStaleSession  = errors.New("command targets a closed workout")
)

// Tracker is the slice of the progress store the controller needs.
type Tracker interface {
	MarkCompleted(ctx context.Context, index int) (bool, error)
	Preferences() models.Preferences
	ToggleMute(ctx context.Context) bool
	ToggleScreenOff(ctx context.Context) bool
	Total() int
}

// Config wires a Controller.
type Config struct {
	Clock       Clock
	Display     Display
	Cues        CuePlayer
	WakeLock    *WakeLock
	Tracker     Tracker
	FinishDelay time.Duration
	Log         *slog.Logger
}

// Controller owns the single active Session. All transitions run under one
// mutex; tick callbacks from a stopped tick source are discarded by
// generation.
type Controller struct {
	clock       Clock
	display     Display
	cues        CuePlayer
	wake        *WakeLock
	tracker     Tracker
	finishDelay time.Duration
	log         *slog.Logger

	mu       sync.Mutex
	session  *Session
	primed   bool
	stopTick func()
	stopHide func()
	gen      int
}

// NewController creates an idle Controller.
func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.FinishDelay <= 0 {
		cfg.FinishDelay = DefaultFinishDelay
	}
	if cfg.WakeLock == nil {
		cfg.WakeLock = NewWakeLock(nil, cfg.Log)
	}
	return &Controller{
		clock:       cfg.Clock,
		display:     cfg.Display,
		cues:        cfg.Cues,
		wake:        cfg.WakeLock,
		tracker:     cfg.Tracker,
		finishDelay: cfg.FinishDelay,
		log:         cfg.Log,
	}
}

// SelectResult describes what selecting a workout did.
type SelectResult struct {
	Kind      models.PlanKind `json:"kind"`
	Completed bool            `json:"completed"`
	Session   Snapshot        `json:"session"`
}

// Select opens a workout. Distance workouts are marked completed at once;
// interval workouts open a paused session. Selecting while another workout
// is open fails with ErrSessionActive.
func (c *Controller) Select(ctx context.Context, index int, text string) (SelectResult, error) {
	if index < 0 || index >= c.tracker.Total() {
		return SelectResult{}, fmt.Errorf("selecting workout %d: index out of range", index)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		if !c.session.Completed {
			return SelectResult{}, ErrSessionActive
		}
		c.discardLocked(ctx)
	}

	p := plan.Parse(text)
	switch p := p.(type) {
	case models.Distance:
		if _, err := c.tracker.MarkCompleted(ctx, index); err != nil {
			return SelectResult{}, fmt.Errorf("completing distance workout: %w", err)
		}
		c.log.Info("distance workout completed", "index", index, "description", p.Description)
		return SelectResult{Kind: models.KindDistance, Completed: true, Session: c.snapshotLocked()}, nil
	case models.Interval:
		c.session = NewSession(index, text, p)
		c.primed = false
		snap := c.snapshotLocked()
		c.display.Show(snap)
		c.log.Info("workout opened", "index", index, "session", snap.SessionID,
			"run", p.RunSeconds, "walk", p.WalkSeconds, "reps", p.TotalReps)
		return SelectResult{Kind: models.KindInterval, Session: snap}, nil
	}
	return SelectResult{}, fmt.Errorf("unsupported plan %T", p)
}

// Toggle starts, pauses or resumes the open workout.
func (c *Controller) Toggle(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.Completed {
		return Snapshot{}, ErrNoSession
	}

	if !s.Paused {
		s.Paused = true
		c.stopTickLocked()
		c.wake.Release(ctx)
		return c.snapshotLocked(), nil
	}

	s.Paused = false
	if !c.primed {
		c.primed = true
		c.playLocked(CueStart)
		for _, cue := range []Cue{CueRun, CueWalk, CueFinish} {
			c.cues.Prime(cue)
		}
	}
	c.wake.Request(ctx)

	if s.Plan.Degenerate() {
		s.Finish()
		c.finishLocked(ctx)
		return c.snapshotLocked(), nil
	}

	if c.stopTick == nil {
		c.gen++
		gen := c.gen
		c.stopTick = c.clock.Every(time.Second, func() { c.tick(gen) })
	}
	snap := c.snapshotLocked()
	c.display.Show(snap)
	return snap, nil
}

// Reset returns the open workout to its initial paused state.
func (c *Controller) Reset(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Completed {
		return Snapshot{}, ErrNoSession
	}
	c.stopTickLocked()
	c.wake.Release(ctx)
	c.session.Reset()
	c.primed = false
	snap := c.snapshotLocked()
	c.display.Show(snap)
	return snap, nil
}

// Close stops the timer and discards the session without marking it
// completed. Closing with nothing open is a no-op.
func (c *Controller) Close(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		c.log.Info("workout closed", "index", c.session.Index, "session", c.session.ID)
	}
	c.discardLocked(ctx)
	return c.snapshotLocked()
}

// Foreground renews the wake lock when the host regains visibility
// during a run. The host may have dropped it while in the background, so
// a held lock is released and acquired again.
func (c *Controller) Foreground(ctx context.Context) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.State() == StateRunning {
		c.wake.Renew(ctx)
	}
	return c.snapshotLocked()
}

// ToggleMute flips the mute preference and returns the new value.
func (c *Controller) ToggleMute(ctx context.Context) bool {
	return c.tracker.ToggleMute(ctx)
}

// ToggleScreenOff flips the energy saver preference and updates the display.
func (c *Controller) ToggleScreenOff(ctx context.Context) bool {
	on := c.tracker.ToggleScreenOff(ctx)
	c.display.SetEnergySaver(on)
	return on
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SessionID returns the open session's ID, or "" when idle.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.ID.String()
}

// Stop cancels every scheduled callback and releases the wake lock.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discardLocked(ctx)
}

func (c *Controller) tick(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.session == nil {
		return
	}

	switch c.session.Tick() {
	case TickIgnored:
		return
	case TickCountdown:
		c.display.Show(c.snapshotLocked())
	case TickWalk:
		c.playLocked(CueWalk)
		c.display.Show(c.snapshotLocked())
	case TickRun:
		c.playLocked(CueRun)
		c.display.Show(c.snapshotLocked())
	case TickFinished:
		c.finishLocked(context.Background())
	}
}

// finishLocked runs the completion side effects for an already completed
// session and schedules the display to hide.
func (c *Controller) finishLocked(ctx context.Context) {
	s := c.session
	c.stopTickLocked()
	c.wake.Release(ctx)
	c.playLocked(CueFinish)

	if _, err := c.tracker.MarkCompleted(ctx, s.Index); err != nil {
		c.log.Error("marking workout completed", "index", s.Index, "error", err)
	}
	c.display.Completed(c.snapshotLocked())
	c.log.Info("workout completed", "index", s.Index, "session", s.ID)

	id := s.ID
	c.stopHide = c.clock.AfterFunc(c.finishDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.session == nil || c.session.ID != id {
			return
		}
		c.stopHide = nil
		c.session = nil
		c.display.Hide()
	})
}

func (c *Controller) discardLocked(ctx context.Context) {
	c.stopTickLocked()
	if c.stopHide != nil {
		c.stopHide()
		c.stopHide = nil
	}
	c.wake.Release(ctx)
	if c.session != nil {
		c.session = nil
		c.display.Hide()
	}
	c.primed = false
}

func (c *Controller) stopTickLocked() {
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
		c.gen++
	}
}

func (c *Controller) playLocked(cue Cue) {
	if c.tracker.Preferences().Muted {
		c.cues.Vibrate(patternFor(cue))
		return
	}
	c.cues.Play(cue)
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := snapshotOf(c.session)
	snap.WakeLock = c.wake.Held()
	return snap
}

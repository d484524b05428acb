// Package timer drives interval workouts: a Session holds the run/walk/rep
// state for one workout and a Controller owns the single active session,
// its tick source, cues, wake lock and completion bookkeeping.
package timer

import (
	"github.com/google/uuid"
	"github.com/meltforce/run5k/internal/models"
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StatePaused    State = "paused"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// Phase is the sub-interval within a rep.
type Phase string

const (
	PhaseRun  Phase = "run"
	PhaseWalk Phase = "walk"
)

// TickResult is what one tick did.
type TickResult int

const (
	// TickIgnored: paused or already completed, nothing changed.
	TickIgnored TickResult = iota
	// TickCountdown: time decremented within the current phase.
	TickCountdown
	// TickWalk: run phase expired, walk phase started.
	TickWalk
	// TickRun: rep finished, next rep's run phase started.
	TickRun
	// TickFinished: all reps done.
	TickFinished
)

// Session is the mutable state of one interval workout.
type Session struct {
	ID         uuid.UUID
	Index      int
	Text       string
	Plan       models.Interval
	CurrentRep int
	RunPhase   bool
	TimeLeft   int
	Paused     bool
	Completed  bool
}

// NewSession creates a paused session at the start of the plan.
func NewSession(index int, text string, plan models.Interval) *Session {
	if plan.TotalReps < 1 {
		plan.TotalReps = 1
	}
	s := &Session{
		ID:    uuid.New(),
		Index: index,
		Text:  text,
		Plan:  plan,
	}
	s.Reset()
	return s
}

// Reset returns the session to its initial paused state.
func (s *Session) Reset() {
	s.CurrentRep = 1
	s.RunPhase = true
	s.TimeLeft = s.Plan.RunSeconds
	s.Paused = true
	s.Completed = false
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	if s.RunPhase {
		return PhaseRun
	}
	return PhaseWalk
}

// State maps the session flags to a lifecycle state.
func (s *Session) State() State {
	switch {
	case s.Completed:
		return StateCompleted
	case s.Paused:
		return StatePaused
	default:
		return StateRunning
	}
}

// Tick advances the session by one second. At most one phase transition
// happens per tick, so zero-length phases cost one tick each.
func (s *Session) Tick() TickResult {
	if s.Paused || s.Completed {
		return TickIgnored
	}
	s.TimeLeft--
	if s.TimeLeft >= 0 {
		return TickCountdown
	}

	if s.RunPhase && s.Plan.WalkSeconds > 0 {
		s.RunPhase = false
		s.TimeLeft = s.Plan.WalkSeconds
		return TickWalk
	}

	s.CurrentRep++
	if s.CurrentRep <= s.Plan.TotalReps {
		s.RunPhase = true
		s.TimeLeft = s.Plan.RunSeconds
		return TickRun
	}

	s.CurrentRep = s.Plan.TotalReps
	s.TimeLeft = 0
	s.Completed = true
	return TickFinished
}

// Finish marks the session completed without ticking.
func (s *Session) Finish() {
	s.TimeLeft = 0
	s.Completed = true
}

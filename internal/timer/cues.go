package timer

import (
	"log/slog"
	"sync"
	"time"
)

// Cue names one of the audio cues.
type Cue string

const (
	CueStart  Cue = "start"
	CueRun    Cue = "run"
	CueWalk   Cue = "walk"
	CueFinish Cue = "finish"
)

// Vibration patterns used instead of audio when muted.
var (
	PulsePhase  = []time.Duration{200 * time.Millisecond}
	PulseFinish = []time.Duration{200 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
)

// CuePlayer is the audio/vibration backend.
type CuePlayer interface {
	// Play plays a cue from the start.
	Play(cue Cue)
	// Prime plays and immediately stops a cue so that later programmatic
	// playback is allowed by the backend.
	Prime(cue Cue)
	// Vibrate runs an on/off pattern.
	Vibrate(pattern []time.Duration)
}

// patternFor maps a cue to its muted vibration pattern.
func patternFor(cue Cue) []time.Duration {
	if cue == CueFinish {
		return PulseFinish
	}
	return PulsePhase
}

// AsyncCues forwards cues to a player on its own goroutine so a slow
// backend never blocks a tick. Cues are dropped when the queue is full.
type AsyncCues struct {
	player CuePlayer
	log    *slog.Logger
	queue  chan func()
	done   chan struct{}
	once   sync.Once
}

// NewAsyncCues starts the forwarding goroutine.
func NewAsyncCues(player CuePlayer, size int, log *slog.Logger) *AsyncCues {
	a := &AsyncCues{
		player: player,
		log:    log,
		queue:  make(chan func(), size),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncCues) run() {
	defer close(a.done)
	for fn := range a.queue {
		fn()
	}
}

func (a *AsyncCues) enqueue(name string, fn func()) {
	select {
	case a.queue <- fn:
	default:
		a.log.Warn("cue queue full, dropping cue", "cue", name)
	}
}

// Play implements CuePlayer.
func (a *AsyncCues) Play(cue Cue) {
	a.enqueue(string(cue), func() { a.player.Play(cue) })
}

// Prime implements CuePlayer.
func (a *AsyncCues) Prime(cue Cue) {
	a.enqueue(string(cue), func() { a.player.Prime(cue) })
}

// Vibrate implements CuePlayer.
func (a *AsyncCues) Vibrate(pattern []time.Duration) {
	a.enqueue("vibrate", func() { a.player.Vibrate(pattern) })
}

// Close drains queued cues and stops the goroutine.
func (a *AsyncCues) Close() {
	a.once.Do(func() { close(a.queue) })
	<-a.done
}

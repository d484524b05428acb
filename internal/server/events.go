package server

import (
	"context"
	"sync"
	"time"

	"github.com/meltforce/run5k/internal/timer"
)

// Event kinds published to the frontend.
const (
	EventShow        = "show"
	EventCompleted   = "completed"
	EventHide        = "hide"
	EventProgress    = "progress"
	EventEnergySaver = "energy-saver"
	EventCue         = "cue"
	EventPrime       = "prime"
	EventVibrate     = "vibrate"
	EventWakeLock    = "wake-lock"
)

// defaultEventCapacity is how many events the log retains.
const defaultEventCapacity = 256

// Counter is the "completed N of M" payload.
type Counter struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Event is one display, cue or wake lock instruction for the frontend.
type Event struct {
	Seq       uint64          `json:"seq"`
	Kind      string          `json:"kind"`
	Time      time.Time       `json:"time"`
	Session   *timer.Snapshot `json:"session,omitempty"`
	Cue       timer.Cue       `json:"cue,omitempty"`
	PatternMS []int64         `json:"pattern_ms,omitempty"`
	Counter   *Counter        `json:"counter,omitempty"`
	On        *bool           `json:"on,omitempty"`
}

// EventLog is the server side of the display. It implements timer.Display,
// timer.CuePlayer and timer.WakeLockBackend by appending numbered events to
// a bounded log that the frontend polls.
type EventLog struct {
	mu     sync.Mutex
	seq    uint64
	events []Event
	cap    int
	now    func() time.Time
}

// NewEventLog creates a log retaining up to capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity <= 0 {
		capacity = defaultEventCapacity
	}
	return &EventLog{cap: capacity, now: time.Now}
}

func (l *EventLog) append(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	e.Seq = l.seq
	e.Time = l.now()
	l.events = append(l.events, e)
	if over := len(l.events) - l.cap; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}
}

// Since returns the events after seq and the sequence number to poll from
// next. truncated is set when events after seq were already evicted.
func (l *EventLog) Since(seq uint64) (events []Event, next uint64, truncated bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next = l.seq
	if seq > l.seq {
		seq = 0
	}
	if len(l.events) > 0 && l.events[0].Seq > seq+1 {
		truncated = true
	}
	for _, e := range l.events {
		if e.Seq > seq {
			events = append(events, e)
		}
	}
	return events, next, truncated
}

// Show implements timer.Display.
func (l *EventLog) Show(s timer.Snapshot) {
	l.append(Event{Kind: EventShow, Session: &s})
}

// Completed implements timer.Display.
func (l *EventLog) Completed(s timer.Snapshot) {
	l.append(Event{Kind: EventCompleted, Session: &s})
}

// Hide implements timer.Display.
func (l *EventLog) Hide() {
	l.append(Event{Kind: EventHide})
}

// ProgressCounter implements timer.Display.
func (l *EventLog) ProgressCounter(completed, total int) {
	l.append(Event{Kind: EventProgress, Counter: &Counter{Completed: completed, Total: total}})
}

// SetEnergySaver implements timer.Display.
func (l *EventLog) SetEnergySaver(on bool) {
	l.append(Event{Kind: EventEnergySaver, On: &on})
}

// Play implements timer.CuePlayer.
func (l *EventLog) Play(cue timer.Cue) {
	l.append(Event{Kind: EventCue, Cue: cue})
}

// Prime implements timer.CuePlayer.
func (l *EventLog) Prime(cue timer.Cue) {
	l.append(Event{Kind: EventPrime, Cue: cue})
}

// Vibrate implements timer.CuePlayer.
func (l *EventLog) Vibrate(pattern []time.Duration) {
	ms := make([]int64, len(pattern))
	for i, d := range pattern {
		ms[i] = d.Milliseconds()
	}
	l.append(Event{Kind: EventVibrate, PatternMS: ms})
}

// Acquire implements timer.WakeLockBackend. The browser holds the actual
// lock; the log tells it when to request and release one.
func (l *EventLog) Acquire(context.Context) (func(context.Context) error, error) {
	on := true
	l.append(Event{Kind: EventWakeLock, On: &on})
	return func(context.Context) error {
		off := false
		l.append(Event{Kind: EventWakeLock, On: &off})
		return nil
	}, nil
}

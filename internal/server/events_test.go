package server

import (
	"context"
	"testing"
	"time"

	"github.com/meltforce/run5k/internal/timer"
)

// TestEventLogSince verifies polling returns only newer events.
func TestEventLogSince(t *testing.T) {
	l := NewEventLog(10)
	l.Play(timer.CueStart)
	l.Hide()

	events, next, truncated := l.Since(0)
	if len(events) != 2 || next != 2 || truncated {
		t.Fatalf("Since(0) = %d events, next %d, truncated %v", len(events), next, truncated)
	}
	if events[0].Kind != EventCue || events[0].Cue != timer.CueStart {
		t.Errorf("first event = %+v", events[0])
	}

	events, _, _ = l.Since(1)
	if len(events) != 1 || events[0].Kind != EventHide {
		t.Errorf("Since(1) = %+v", events)
	}
}

// TestEventLogEviction verifies the log is bounded and reports truncation.
func TestEventLogEviction(t *testing.T) {
	l := NewEventLog(3)
	for i := 0; i < 5; i++ {
		l.Hide()
	}
	events, next, truncated := l.Since(0)
	if len(events) != 3 || events[0].Seq != 3 || next != 5 {
		t.Errorf("events = %+v, next = %d", events, next)
	}
	if !truncated {
		t.Error("truncated = false after eviction")
	}
	if _, _, truncated := l.Since(2); truncated {
		t.Error("Since(2) should not be truncated")
	}
}

// TestEventLogFutureSeq verifies a poll from a newer sequence (for example
// after a server restart) starts over.
func TestEventLogFutureSeq(t *testing.T) {
	l := NewEventLog(10)
	l.Hide()
	events, _, _ := l.Since(100)
	if len(events) != 1 {
		t.Errorf("events = %d, want 1", len(events))
	}
}

// TestEventLogVibrateAndWakeLock verifies payload encoding for patterns and
// wake lock transitions.
func TestEventLogVibrateAndWakeLock(t *testing.T) {
	l := NewEventLog(10)
	l.Vibrate([]time.Duration{200 * time.Millisecond, 100 * time.Millisecond})

	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	release(context.Background())

	events, _, _ := l.Since(0)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if p := events[0].PatternMS; len(p) != 2 || p[0] != 200 || p[1] != 100 {
		t.Errorf("pattern = %v", p)
	}
	if on := events[1].On; on == nil || !*on {
		t.Error("acquire event should be on")
	}
	if on := events[2].On; on == nil || *on {
		t.Error("release event should be off")
	}
}

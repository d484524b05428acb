package timer

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// TestManualClockOrdering verifies jobs fire in due order and periodic
// jobs repeat until stopped.
func TestManualClockOrdering(t *testing.T) {
	c := NewManualClock()
	var got []string
	stopEvery := c.Every(time.Second, func() { got = append(got, "tick") })
	c.AfterFunc(1500*time.Millisecond, func() { got = append(got, "once") })

	c.Advance(2 * time.Second)
	if want := []string{"tick", "once", "tick"}; !reflect.DeepEqual(got, want) {
		t.Errorf("fired = %v, want %v", got, want)
	}
	if c.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", c.Pending())
	}

	stopEvery()
	stopEvery()
	c.Tick(3)
	if len(got) != 3 {
		t.Errorf("stopped job fired again: %v", got)
	}
}

// TestManualClockStopFromCallback verifies a job can cancel itself.
func TestManualClockStopFromCallback(t *testing.T) {
	c := NewManualClock()
	n := 0
	var stop func()
	stop = c.Every(time.Second, func() {
		n++
		if n == 2 {
			stop()
		}
	})
	c.Tick(5)
	if n != 2 {
		t.Errorf("fired %d times, want 2", n)
	}
}

// TestRealClockStop verifies the ticker goroutine stops.
func TestRealClockStop(t *testing.T) {
	fired := make(chan struct{}, 16)
	stop := RealClock{}.Every(5*time.Millisecond, func() { fired <- struct{}{} })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
	stop()
	stop()
}

// TestWakeLockIdempotent verifies repeated requests hold one lock.
func TestWakeLockIdempotent(t *testing.T) {
	b := &fakeWakeBackend{}
	w := NewWakeLock(b, discardLogger())
	ctx := context.Background()

	w.Request(ctx)
	w.Request(ctx)
	if b.acquired != 1 || !w.Held() {
		t.Errorf("acquired = %d, held = %v", b.acquired, w.Held())
	}
	w.Release(ctx)
	w.Release(ctx)
	if b.released != 1 || w.Held() {
		t.Errorf("released = %d, held = %v", b.released, w.Held())
	}
}

// TestWakeLockUnsupported verifies a nil backend is a silent no-op.
func TestWakeLockUnsupported(t *testing.T) {
	w := NewWakeLock(nil, discardLogger())
	w.Request(context.Background())
	if w.Held() {
		t.Error("Held with no backend")
	}
	w.Release(context.Background())
}

// TestWakeLockRequestFailure verifies failures leave the lock free.
func TestWakeLockRequestFailure(t *testing.T) {
	b := &fakeWakeBackend{err: errors.New("denied")}
	w := NewWakeLock(b, discardLogger())
	w.Request(context.Background())
	if w.Held() {
		t.Error("Held after failed request")
	}
}

package timer

import (
	"context"
	"log/slog"
	"sync"
)

// WakeLockBackend acquires a screen-stays-on lock from the host.
type WakeLockBackend interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// WakeLock holds at most one lock. Request and Release are idempotent and
// failures are logged, never returned: the timer runs on without the
// guarantee.
type WakeLock struct {
	backend WakeLockBackend
	log     *slog.Logger

	mu      sync.Mutex
	release func(context.Context) error
}

// NewWakeLock wraps a backend. A nil backend means wake locks are not
// supported.
func NewWakeLock(backend WakeLockBackend, log *slog.Logger) *WakeLock {
	return &WakeLock{backend: backend, log: log}
}

// Request acquires the lock unless it is already held.
func (w *WakeLock) Request(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.release != nil {
		return
	}
	if w.backend == nil {
		w.log.Debug("wake lock not supported")
		return
	}
	release, err := w.backend.Acquire(ctx)
	if err != nil {
		w.log.Warn("wake lock request failed", "error", err)
		return
	}
	w.release = release
	w.log.Debug("wake lock acquired")
}

// Release frees the lock if held.
func (w *WakeLock) Release(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.release == nil {
		return
	}
	if err := w.release(ctx); err != nil {
		w.log.Warn("wake lock release failed", "error", err)
	}
	w.release = nil
	w.log.Debug("wake lock released")
}

// Renew releases a held lock and requests a fresh one. Hosts drop locks
// while hidden without telling the holder.
func (w *WakeLock) Renew(ctx context.Context) {
	w.Release(ctx)
	w.Request(ctx)
}

// Held reports whether the lock is held.
func (w *WakeLock) Held() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.release != nil
}

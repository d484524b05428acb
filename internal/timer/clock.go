package timer

import (
	"sort"
	"sync"
	"time"
)

// Clock schedules the tick source and the post-completion delay. The
// returned stop functions are idempotent.
type Clock interface {
	Every(d time.Duration, fn func()) (stop func())
	AfterFunc(d time.Duration, fn func()) (stop func())
}

// RealClock runs on wall-clock time.
type RealClock struct{}

// Every implements Clock with a time.Ticker.
func (RealClock) Every(d time.Duration, fn func()) func() {
	t := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}

// AfterFunc implements Clock with time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// ManualClock is driven by Advance. Callbacks run synchronously on the
// caller's goroutine, in due order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	jobs   map[int]*job
}

type job struct {
	id     int
	due    time.Duration
	period time.Duration
	fn     func()
}

// NewManualClock creates a ManualClock at time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{jobs: make(map[int]*job)}
}

// Every implements Clock.
func (c *ManualClock) Every(d time.Duration, fn func()) func() {
	return c.add(d, d, fn)
}

// AfterFunc implements Clock.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) func() {
	return c.add(d, 0, fn)
}

func (c *ManualClock) add(d, period time.Duration, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.jobs[id] = &job{id: id, due: c.now + d, period: period, fn: fn}
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.jobs, id)
	}
}

// Pending returns the number of scheduled jobs.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

// Advance moves time forward by d, firing every job that comes due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		j := c.nextDue(target)
		if j == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = j.due
		if j.period > 0 {
			j.due += j.period
		} else {
			delete(c.jobs, j.id)
		}
		fn := j.fn
		c.mu.Unlock()
		fn()
	}
}

// Tick advances by n seconds.
func (c *ManualClock) Tick(n int) {
	for i := 0; i < n; i++ {
		c.Advance(time.Second)
	}
}

// nextDue must be called with c.mu held.
func (c *ManualClock) nextDue(target time.Duration) *job {
	var due []*job
	for _, j := range c.jobs {
		if j.due <= target {
			due = append(due, j)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(a, b int) bool {
		if due[a].due != due[b].due {
			return due[a].due < due[b].due
		}
		return due[a].id < due[b].id
	})
	return due[0]
}

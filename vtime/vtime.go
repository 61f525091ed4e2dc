// Package vtime implements the deterministic virtual-time scheduler
// described by the engine's time-dependent steps. It is a process-wide
// singleton, mirroring the way the example publisher library reads a
// global scheduler factory, with an explicit Clock escape hatch for
// callers that want to avoid touching global state.
package vtime

import (
	"container/heap"
	"fmt"
	"sync"
	"time"
)

// ErrDisabled is returned by AdvanceTo/AdvanceBy when virtual time has
// not been enabled. Callers surface this as a usage error; it is never
// aggregated into the engine's failure list.
var ErrDisabled = fmt.Errorf("vtime: virtual time is not enabled")

type task struct {
	due time.Duration
	seq uint64
	fn  func()
}

// taskHeap orders tasks by due time, breaking ties by insertion order
// so that AdvanceTo's "stable" requirement holds.
type taskHeap []task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)        { *h = append(*h, x.(task)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Clock is the capability a test can inject into an engine instead of
// relying on the global toggle below.
type Clock interface {
	Now() time.Duration
	Schedule(d time.Duration, fn func())
}

// VirtualClock is a standalone, non-global deterministic clock. The
// package-level Enable/Disable/AdvanceTo/AdvanceBy functions operate on
// a shared instance of this type for compatibility with publisher
// libraries that read a global scheduler factory.
type VirtualClock struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks taskHeap
}

// NewClock creates a VirtualClock starting at the zero instant.
func NewClock() *VirtualClock {
	return &VirtualClock{}
}

func (c *VirtualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) Schedule(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	heap.Push(&c.tasks, task{due: c.now + d, seq: c.seq, fn: fn})
}

// NextDue reports the earliest due time among tasks not yet run, used
// to implement AdvanceTime() with no argument.
func (c *VirtualClock) NextDue() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tasks) == 0 {
		return 0, false
	}
	return c.tasks[0].due, true
}

// AdvanceTo runs every task due at or before t, in due-time order with
// stable tie-breaking, then sets now to max(now, t). Panics raised by a
// task are recovered and returned so the caller can attribute them to
// the script step that triggered the advance; the remaining tasks for
// the tick still run.
func (c *VirtualClock) AdvanceTo(t time.Duration) []error {
	var errs []error
	for {
		c.mu.Lock()
		if len(c.tasks) == 0 || c.tasks[0].due > t {
			if c.now < t {
				c.now = t
			}
			c.mu.Unlock()
			return errs
		}
		next := heap.Pop(&c.tasks).(task)
		c.now = next.due
		c.mu.Unlock()

		func() {
			defer func() {
				if r := recover(); r != nil {
					errs = append(errs, fmt.Errorf("vtime: scheduled task panicked: %v", r))
				}
			}()
			next.fn()
		}()
	}
}

// AdvanceBy is equivalent to AdvanceTo(Now() + d).
func (c *VirtualClock) AdvanceBy(d time.Duration) []error {
	return c.AdvanceTo(c.Now() + d)
}

var (
	globalMu      sync.Mutex
	globalEnabled bool
	global        *VirtualClock
)

// Enable installs the global virtual clock. If allSchedulers is true,
// the caller intends the publisher library's scheduler factories to
// also redirect to virtual time; this package has no scheduler
// factories of its own to redirect, so the flag has no effect and is
// not recorded: IsEnabled reports the same value either way.
// Idempotent.
func Enable(allSchedulers bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = NewClock()
	}
	globalEnabled = true
	_ = allSchedulers
}

// Disable uninstalls the global virtual clock and clears its queue.
func Disable() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalEnabled = false
	global = nil
}

// IsEnabled reports whether the global virtual clock is installed.
func IsEnabled() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalEnabled
}

func currentGlobal() (*VirtualClock, bool) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if !globalEnabled || global == nil {
		return nil, false
	}
	return global, true
}

// Now returns the global virtual clock's current instant, or zero when
// disabled.
func Now() time.Duration {
	c, ok := currentGlobal()
	if !ok {
		return 0
	}
	return c.Now()
}

// Schedule enqueues fn to run when the global virtual clock advances
// to or past Now()+d. Used by example publishers driven by virtual time.
func Schedule(d time.Duration, fn func()) {
	c, ok := currentGlobal()
	if !ok {
		return
	}
	c.Schedule(d, fn)
}

// NextDue reports the earliest scheduled future instant on the global
// clock.
func NextDue() (time.Duration, bool) {
	c, ok := currentGlobal()
	if !ok {
		return 0, false
	}
	return c.NextDue()
}

// AdvanceTo advances the global virtual clock, returning ErrDisabled if
// virtual time is not enabled.
func AdvanceTo(t time.Duration) ([]error, error) {
	c, ok := currentGlobal()
	if !ok {
		return nil, ErrDisabled
	}
	return c.AdvanceTo(t), nil
}

// AdvanceBy advances the global virtual clock by d, returning
// ErrDisabled if virtual time is not enabled.
func AdvanceBy(d time.Duration) ([]error, error) {
	c, ok := currentGlobal()
	if !ok {
		return nil, ErrDisabled
	}
	return c.AdvanceBy(d), nil
}

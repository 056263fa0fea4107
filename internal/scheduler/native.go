/*
 * lasercnc motioncore - Native pinned-thread scheduler.
 *
 * Copyright 2026, The lasercnc Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package scheduler

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Native pins its task's goroutine to a single OS thread, optionally
// sets CPU affinity and scheduling priority via golang.org/x/sys/unix,
// and drives Tick on a time.Ticker. Used for the step generator, per
// spec.md §4.4's "single periodic task of the highest non-interrupt
// priority on a pinned CPU".
type Native struct {
	CPU      int // negative disables affinity pinning
	Priority int // negative disables priority elevation

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// Run starts a dedicated goroutine locked to an OS thread, applies
// the configured affinity/priority, and calls task.Tick once per
// period until task.Tick returns false or Stop is called.
func (n *Native) Run(period time.Duration, task Task) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("scheduler: already running")
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	n.running = true
	n.mu.Unlock()

	go n.loop(period, task)
	return nil
}

func (n *Native) loop(period time.Duration, task Task) {
	defer close(n.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if n.CPU >= 0 {
		var set unix.CPUSet
		set.Zero()
		set.Set(n.CPU)
		_ = unix.SchedSetaffinity(0, &set) // best-effort: not every host grants this
	}
	if n.Priority >= 0 {
		_ = unix.Setpriority(unix.PRIO_PROCESS, 0, -n.Priority)
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-n.stop:
			return
		case <-ticker.C:
			if !task.Tick() {
				return
			}
		}
	}
}

// Stop signals the running task to halt and blocks until it has.
func (n *Native) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	stop, done := n.stop, n.done
	n.mu.Unlock()

	close(stop)
	<-done
}

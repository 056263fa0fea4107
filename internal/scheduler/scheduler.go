/*
 * lasercnc motioncore - Periodic task scheduler.
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

// Package scheduler re-expresses the source's dependency on an
// external real-time kernel's task API (spec.md §9 "Real-time tasks")
// as a small trait with two implementations: a native-thread
// scheduler carrying CPU affinity and priority hints, and a
// cooperative scheduler for deterministic tests that advances time
// explicitly. Its periodic-task shape is grounded on the teacher's
// telnet/listener.go accept-loop-plus-WaitGroup lifecycle, generalized
// from "accept a connection" to "run a tick".
package scheduler

import "time"

// Task is a unit of periodic or one-shot work the scheduler drives.
type Task interface {
	// Tick is called once per period (or once, for a one-shot task).
	// A false return asks the scheduler to stop calling it.
	Tick() bool
}

// Scheduler runs Tasks at a configured cadence with optional
// real-time hints. Implementations must keep Tick's caller path
// allocation-free; Run/Stop themselves may allocate freely.
type Scheduler interface {
	// Run starts invoking task.Tick every period until Stop is called
	// or Tick returns false.
	Run(period time.Duration, task Task) error
	// Stop halts the running task and waits for it to quiesce.
	Stop()
}

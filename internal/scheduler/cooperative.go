/*
 * lasercnc motioncore - Cooperative scheduler.
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

import "time"

// Cooperative is a test-only scheduler that advances time explicitly
// via Advance, rather than a real clock, per spec.md §9's "cooperative
// test-only scheduler that advances time explicitly". It never spawns
// a goroutine: Run just remembers the task, and every Advance call
// invokes Tick as many times as whole periods have elapsed.
type Cooperative struct {
	period  time.Duration
	task    Task
	elapsed time.Duration
	running bool
}

func (c *Cooperative) Run(period time.Duration, task Task) error {
	c.period = period
	c.task = task
	c.elapsed = 0
	c.running = true
	return nil
}

func (c *Cooperative) Stop() {
	c.running = false
}

// Advance simulates d worth of wall-clock time passing, calling
// task.Tick once per whole period elapsed. Stops early if Tick
// returns false.
func (c *Cooperative) Advance(d time.Duration) {
	if !c.running || c.period <= 0 {
		return
	}
	c.elapsed += d
	for c.elapsed >= c.period {
		c.elapsed -= c.period
		if !c.task.Tick() {
			c.running = false
			return
		}
	}
}

// Running reports whether the task is still being driven.
func (c *Cooperative) Running() bool { return c.running }

/*
 * lasercnc motioncore - Segment ring.
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

package segment

import "sync/atomic"

// ring holds the queued segments, per spec.md §4.3/§9: "preparer
// writes head, step generator writes tail, both read both" — the
// same release/acquire index-counter discipline as the planner ring,
// sized separately (settings.SegmentRingSize, 6 by default); Fill tops
// it up to capacity.
type ring struct {
	segs  []Segment
	cap   int32
	head  atomic.Int32
	tail  atomic.Int32
	count atomic.Int32
}

func newRing(capacity int) *ring {
	return &ring{segs: make([]Segment, capacity), cap: int32(capacity)}
}

func (r *ring) Full() bool  { return r.count.Load() == r.cap }
func (r *ring) Empty() bool { return r.count.Load() == 0 }
func (r *ring) Free() int   { return int(r.cap - r.count.Load()) }
func (r *ring) Count() int  { return int(r.count.Load()) }

func (r *ring) push(s Segment) {
	idx := r.head.Load()
	r.segs[idx] = s
	r.head.Store((idx + 1) % r.cap)
	r.count.Add(1)
}

// pop removes and returns the oldest segment, ok=false if empty.
func (r *ring) pop() (Segment, bool) {
	if r.Empty() {
		return Segment{}, false
	}
	idx := r.tail.Load()
	s := r.segs[idx]
	r.tail.Store((idx + 1) % r.cap)
	r.count.Add(-1)
	return s, true
}

// peek returns the oldest segment without retiring it.
func (r *ring) peek() (Segment, bool) {
	if r.Empty() {
		return Segment{}, false
	}
	return r.segs[r.tail.Load()], true
}

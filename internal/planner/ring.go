/*
 * lasercnc motioncore - Planner block ring.
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

package planner

import "sync/atomic"

// ring is a fixed-capacity array of blocks. head/tail are published
// with atomic.Int32 Store/Load, giving the release/acquire ordering
// called for by spec.md §9 ("publication between threads uses index
// counters with release/acquire ordering") without a mutex on the hot
// path: a single producer (PlanLine, called from the parser worker)
// advances head; a single consumer (the segment preparer) advances
// tail. tail <= head modulo capacity; it never wraps past tail, and
// no block is ever deleted out of order (spec.md §3). Block content
// mutation is partitioned by field: the planner thread owns every
// field except Millimetres (remaining distance), which only the
// preparer mutates as it consumes a block — mirroring the ownership
// split the S370 emulator's emu/sys_channel gives its device ring.
type ring struct {
	blocks []Block
	cap    int32
	head   atomic.Int32 // next free slot
	tail   atomic.Int32 // oldest in-use slot
	count  atomic.Int32
}

func newRing(capacity int) *ring {
	return &ring{blocks: make([]Block, capacity), cap: int32(capacity)}
}

func (r *ring) Full() bool  { return r.count.Load() == r.cap }
func (r *ring) Empty() bool { return r.count.Load() == 0 }
func (r *ring) Count() int  { return int(r.count.Load()) }
func (r *ring) Free() int   { return int(r.cap - r.count.Load()) }

// push appends a new block at head, returning its ring index. Caller
// must check Full() first.
func (r *ring) push(b Block) int {
	idx := r.head.Load()
	b.valid = true
	r.blocks[idx] = b
	r.head.Store((idx + 1) % r.cap)
	r.count.Add(1)
	return int(idx)
}

// at returns a pointer to the block at absolute ring index idx.
func (r *ring) at(idx int) *Block {
	return &r.blocks[idx]
}

// discardTail retires the oldest block, advancing tail. No-op if empty.
func (r *ring) discardTail() {
	if r.Empty() {
		return
	}
	t := r.tail.Load()
	r.blocks[t].valid = false
	r.tail.Store((t + 1) % r.cap)
	r.count.Add(-1)
}

// tailIndex is the ring index of the oldest (currently executing) block.
func (r *ring) tailIndex() int { return int(r.tail.Load()) }

// newestIndex returns the ring index most recently pushed, and
// ok=false if empty.
func (r *ring) newestIndex() (int, bool) {
	if r.Empty() {
		return 0, false
	}
	return int((r.head.Load() - 1 + r.cap) % r.cap), true
}

// forEachReverse walks indices from newest back to the tail, calling
// fn(idx) until fn returns false or the ring is exhausted.
func (r *ring) forEachReverse(fn func(idx int) bool) {
	if r.Empty() {
		return
	}
	idx, _ := r.newestIndex()
	n := r.Count()
	for i := 0; i < n; i++ {
		if !fn(idx) {
			return
		}
		idx = int((int32(idx) - 1 + r.cap) % r.cap)
	}
}

// forEachForward walks indices from tail to head (exclusive of head),
// calling fn(idx) until fn returns false.
func (r *ring) forEachForward(fn func(idx int) bool) {
	if r.Empty() {
		return
	}
	idx := int(r.tail.Load())
	n := r.Count()
	for i := 0; i < n; i++ {
		if !fn(idx) {
			return
		}
		idx = int((int32(idx) + 1) % r.cap)
	}
}

// next returns the ring index following idx, and ok=false if idx is
// the newest block in the ring.
func (r *ring) next(idx int) (int, bool) {
	newest, hasNewest := r.newestIndex()
	if !hasNewest || idx == newest {
		return 0, false
	}
	return int((int32(idx) + 1) % r.cap), true
}

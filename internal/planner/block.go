/*
 * lasercnc motioncore - Planner block type.
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

// Package planner maintains the ring of queued motion blocks, the
// junction-speed look-ahead pass, and the trapezoidal profile
// parameters each block carries into the segment preparer, per
// spec.md §4.2. Its ring-buffer shape (fixed capacity, head/tail
// counters partitioned between a single producer and a single
// consumer, never reordered) is grounded on the S370 emulator's
// emu/sys_channel channel-program queue and emu/event delta-queue,
// generalized from "pending channel programs" to "pending motion
// blocks".
package planner

import "github.com/lasercnc/motioncore/internal/gcode"

// Block is a planned straight-line motion, per spec.md §3.
type Block struct {
	StepCount      [3]uint32
	StepEventCount uint32
	DirectionBits  uint8
	Condition      gcode.ConditionBits

	EntrySpeedSqr   float64 // current planned entry-speed squared
	NominalSpeedSqr float64 // nominal max entry-speed squared
	Acceleration    float64 // line acceleration, mm/min^2
	Millimetres     float64 // remaining millimetres (mutated by the preparer)
	MaxJunctionSqr  float64 // junction-speed limit squared

	ProgrammedRate float64
	NominalRate    float64 // nominal rate at current override
	SpindleSpeed   float64 // spindle speed at block entry

	unitVec   [3]float64
	valid     bool // false once the tail has been retired
	recalc    bool // forward/reverse pass must revisit this block
}

// StepEventMax is the axis-maximum step count, per spec.md §3 (the
// invariant `step_event_count == max_i steps_i` tested in spec.md §8).
func (b *Block) StepEventMax() uint32 {
	max := b.StepCount[0]
	if b.StepCount[1] > max {
		max = b.StepCount[1]
	}
	if b.StepCount[2] > max {
		max = b.StepCount[2]
	}
	return max
}

// DirBit returns whether axis idx moves in its negative direction.
func (b *Block) DirBit(idx int) bool {
	return b.DirectionBits&(1<<uint(idx)) != 0
}

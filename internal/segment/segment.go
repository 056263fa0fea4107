/*
 * lasercnc motioncore - Segment type.
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

// Package segment draws from the planner's current block and
// produces short constant-rate segments consumable by the step
// generator, per spec.md §4.3. Its consumer-side draining loop is
// grounded on the S370 emulator's emu/sys_channel channel-program
// drain loop; the ramp/profile field naming follows amken3d-gopper's
// Move/trapezoid convention from the retrieval pack.
package segment

import "github.com/lasercnc/motioncore/internal/gcode"

// Ramp names the velocity-profile leg a segment was generated under,
// per spec.md §4.3's profile computation.
type Ramp int

const (
	RampAccelerate Ramp = iota
	RampCruise
	RampDecelerate
	RampDecelerateOverride // entry speed exceeded nominal; unwound on next block
	RampForcedDecelerate   // feed-hold in progress
)

// StepperBlockShadow is a copy of the per-axis step counts, event
// count, and direction bits of the planner block currently being
// prepared, per spec.md §3. It is copied because the planner may
// retire the block while a segment referencing it is still in
// flight.
type StepperBlockShadow struct {
	StepCount      [3]uint32
	StepEventCount uint32
	DirectionBits  uint8
	Condition      gcode.ConditionBits
}

// Segment is a constant-rate slice of a block, per spec.md §3.
type Segment struct {
	NStep        uint32 // step events to emit
	CyclesPerTick uint32 // integer step rate
	ShadowIndex  int    // index into the preparer's shadow slot
	SpindlePWM   float64
	EndMotion    bool // true if this segment ends the block (no remaining distance)
}

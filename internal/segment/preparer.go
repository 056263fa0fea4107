/*
 * lasercnc motioncore - Segment preparer.
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

import (
	"math"

	"github.com/lasercnc/motioncore/internal/planner"
	"github.com/lasercnc/motioncore/internal/settings"
)

// PreparerState is the cursor that survives across segment
// generations, per spec.md §4.3: ramp, steps remaining, residual
// sub-step time, and the ramp's computed transition points.
type PreparerState struct {
	Ramp Ramp

	StepsRemaining uint32
	StepsPerMM     float64
	MMPerStep      float64
	DtRemainder    float64 // minutes

	CurrentSpeed float64 // mm/min
	MaxSpeed     float64
	ExitSpeed    float64

	AccelerateUntilMM float64 // remaining-mm threshold: accel phase ends here
	DecelerateAfterMM float64 // remaining-mm threshold: decel phase begins here
	MMComplete        float64 // remaining-mm threshold: profile terminates here
}

const shadowSlots = 2

// Preparer draws from the planner's current block and tops up the
// segment ring, per spec.md §4.3.
type Preparer struct {
	cfg *settings.Machine
	pl  *planner.Planner
	r   *ring

	shadow     [shadowSlots]StepperBlockShadow
	shadowNext int

	state       PreparerState
	haveCurrent bool
	curIdx      int // planner ring index of the block being drawn from
	blockTotal  float64
	shadowIdx   int

	holdRequested bool
}

// New builds a Preparer sized from cfg.SegmentRingSize.
func New(cfg *settings.Machine, pl *planner.Planner) *Preparer {
	return &Preparer{cfg: cfg, pl: pl, r: newRing(cfg.SegmentRingSize)}
}

// RequestHold asks the synthesis loop to switch the current and every
// subsequent segment to a forced-deceleration ramp, per spec.md §4.3.
func (p *Preparer) RequestHold(active bool) {
	p.holdRequested = active
	if active && p.haveCurrent {
		if b, _, ok := p.pl.GetCurrentBlock(); ok {
			p.computeForcedDecelProfile(b.Millimetres)
		}
	}
}

// RingFree reports free segment-ring slots, for status reports.
func (p *Preparer) RingFree() int { return p.r.Free() }

// PopSegment is called by the step generator to draw the next
// segment, per spec.md §4.4.
func (p *Preparer) PopSegment() (Segment, bool) { return p.r.pop() }

// Shadow returns the stepper-block shadow a segment's ShadowIndex
// refers to.
func (p *Preparer) Shadow(idx int) StepperBlockShadow { return p.shadow[idx] }

// Fill idempotently tops up the segment ring from the planner's
// current block until the ring is full or the planner is empty, per
// spec.md §4.3's contract. It returns the number of segments added.
func (p *Preparer) Fill() int { return p.FillAndNotify(nil) }

// FillAndNotify behaves like Fill but additionally invokes notify for
// every segment pushed to the ring. internal/machine uses this to account
// each freshly-prepared segment's worth of tick-time toward the step
// generator's prime window (spec.md §4.4) without duplicating the
// synthesis loop at the wiring layer.
func (p *Preparer) FillAndNotify(notify func(Segment)) int {
	added := 0
	for !p.r.Full() {
		seg, ok := p.step()
		if !ok {
			break
		}
		p.r.push(seg)
		added++
		if notify != nil {
			notify(seg)
		}
		if seg.EndMotion {
			break
		}
	}
	return added
}

// step produces exactly one segment from the current (or next)
// planner block, or ok=false if there is nothing to prepare.
func (p *Preparer) step() (Segment, bool) {
	if !p.haveCurrent {
		if !p.beginNextBlock() {
			return Segment{}, false
		}
	}

	b, _, ok := p.pl.GetCurrentBlock()
	if !ok {
		p.haveCurrent = false
		return Segment{}, false
	}

	dtSegment := p.cfg.DTSegment()
	dtMax := dtSegment
	dt := 0.0
	mmChunk := 0.0
	// blockStart is the block's live remaining-mm as of the previous
	// segment (spec.md §3: "mutated by the segment preparer as work is
	// consumed"); b.Millimetres is written back below once this
	// segment's whole chunk is known, so every ramp-transition
	// threshold is compared against the position actually reached so
	// far in the block, not the block's original total length.
	blockStart := b.Millimetres

	// ramp transitions per segment are bounded by the number of
	// profile legs (accelerate/cruise/decelerate); cap iterations so a
	// degenerate zero-distance boundary can never spin this loop.
	for iter := 0; iter < 8; iter++ {
		budget := dtMax - dt
		mm, newSpeed, dtUsed := p.advanceRamp(blockStart-mmChunk, budget)
		mmChunk += mm
		dt += dtUsed
		p.state.CurrentSpeed = newSpeed

		if blockStart-mmChunk <= 1e-9 {
			break
		}
		if dtUsed < budget-1e-12 {
			// ramp transitioned (crossed accelerate_until,
			// decelerate_after or mm_complete) before consuming the
			// whole chunk: keep looping within the same segment.
			continue
		}
		if dt >= dtMax-1e-12 {
			break
		}
	}

	stepsInChunk := mmChunk * p.state.StepsPerMM
	nInt := math.Floor(stepsInChunk)

	if nInt < 1 && blockStart-mmChunk > 1e-9 {
		// less than one integer step: extend dt_max by another
		// segment-time to guarantee progress, per spec.md §4.3 step 3.
		dtMax += dtSegment
		extra, newSpeed, dtUsed := p.advanceRamp(blockStart-mmChunk, dtMax-dt)
		mmChunk += extra
		dt += dtUsed
		p.state.CurrentSpeed = newSpeed
		stepsInChunk = mmChunk * p.state.StepsPerMM
		nInt = math.Floor(stepsInChunk)
	}

	frac := stepsInChunk - nInt
	invRate := 0.0
	if p.state.CurrentSpeed > 1e-9 {
		invRate = 1.0 / (p.state.CurrentSpeed * p.state.StepsPerMM)
	}
	p.state.DtRemainder = frac * invRate

	cyclesPerTick := uint32(0)
	if invRate > 0 {
		cyclesPerTick = uint32(math.Ceil(float64(p.cfg.StepFrequencyHz) * 60.0 * invRate))
	}

	// steps are counted from the distance still left in the block, so
	// each chunk's fractional step carries into the next segment and
	// a block's segments sum to its step-event count.
	remainingAfter := math.Max(blockStart-mmChunk, 0)
	stepsLeft := uint32(math.Ceil(remainingAfter*p.state.StepsPerMM - 1e-9))
	if stepsLeft > p.state.StepsRemaining {
		stepsLeft = p.state.StepsRemaining
	}
	nStep := p.state.StepsRemaining - stepsLeft
	p.state.StepsRemaining = stepsLeft

	b.Millimetres = blockStart - mmChunk
	endMotion := b.Millimetres <= 1e-9 || p.state.StepsRemaining == 0

	seg := Segment{
		NStep:         nStep,
		CyclesPerTick: cyclesPerTick,
		ShadowIndex:   p.shadowIdx,
		EndMotion:     endMotion,
	}

	if endMotion {
		p.pl.DiscardCurrentBlock()
		p.haveCurrent = false
	}

	return seg, true
}

// advanceRamp walks the current ramp for up to dtBudget minutes from
// remaining millimetres left in the block, returning the millimetres
// consumed, the resulting instantaneous speed, and the minutes
// actually used (less than dtBudget if a ramp transition boundary was
// crossed first).
func (p *Preparer) advanceRamp(remaining, dtBudget float64) (mm, newSpeed, dtUsed float64) {
	b, _, ok := p.pl.GetCurrentBlock()
	if !ok {
		return 0, p.state.CurrentSpeed, dtBudget
	}

	v0 := p.state.CurrentSpeed
	a := b.Acceleration

	p.maybeTransition(remaining) // resync ramp to the current position first

	var target float64 // remaining-mm at phase boundary we must not cross
	var accelSign float64
	switch p.state.Ramp {
	case RampAccelerate:
		target = p.state.AccelerateUntilMM
		accelSign = 1
	case RampDecelerate, RampDecelerateOverride, RampForcedDecelerate:
		target = p.state.MMComplete
		accelSign = -1
	default: // cruise
		target = p.state.DecelerateAfterMM
		accelSign = 0
	}

	if accelSign == 0 {
		// cruise: constant speed until decelerate_after.
		mmToBoundary := remaining - target
		mmAtBudget := v0 * dtBudget
		if mmAtBudget <= mmToBoundary || mmToBoundary <= 0 {
			p.maybeTransition(remaining - mmAtBudget)
			return mmAtBudget, v0, dtBudget
		}
		dtUsed = mmToBoundary / v0
		p.maybeTransition(target)
		return mmToBoundary, v0, dtUsed
	}

	// accelerate or decelerate: v(t) = v0 + accelSign*a*t (a in mm/min^2).
	vAtBudget := v0 + accelSign*a*dtBudget
	if accelSign > 0 && vAtBudget > p.state.MaxSpeed {
		vAtBudget = p.state.MaxSpeed
	}
	if accelSign < 0 && vAtBudget < p.state.ExitSpeed {
		vAtBudget = p.state.ExitSpeed
	}
	dtToClamp := dtBudget
	if vAtBudget != v0+accelSign*a*dtBudget {
		dtToClamp = math.Abs((vAtBudget - v0) / (accelSign * a))
	}

	mmAtClamp := v0*dtToClamp + 0.5*accelSign*a*dtToClamp*dtToClamp
	mmToBoundary := remaining - target

	if mmAtClamp <= mmToBoundary || mmToBoundary <= 0 {
		p.maybeTransition(remaining - mmAtClamp)
		return mmAtClamp, vAtBudget, dtToClamp
	}

	// solve for dt where mm(dt) == mmToBoundary:
	// 0.5*accelSign*a*dt^2 + v0*dt - mmToBoundary = 0
	dtUsed = quadraticTimeSolve(0.5*accelSign*a, v0, -mmToBoundary)
	vBoundary := v0 + accelSign*a*dtUsed
	p.maybeTransition(target)
	return mmToBoundary, vBoundary, dtUsed
}

// quadraticTimeSolve returns the smallest positive root of
// A*t^2 + B*t + C = 0; falls back to the linear solution when A ~ 0.
func quadraticTimeSolve(A, B, C float64) float64 {
	if math.Abs(A) < 1e-12 {
		if B == 0 {
			return 0
		}
		return -C / B
	}
	disc := B*B - 4*A*C
	if disc < 0 {
		disc = 0
	}
	sq := math.Sqrt(disc)
	t1 := (-B + sq) / (2 * A)
	t2 := (-B - sq) / (2 * A)
	if t1 < 0 {
		return t2
	}
	if t2 < 0 {
		return t1
	}
	if t1 < t2 {
		return t1
	}
	return t2
}

// maybeTransition advances the ramp state machine once the block's
// remaining millimetres crosses a profile boundary, per spec.md §4.3
// "transition ramps when crossing accelerate_until, decelerate_after,
// mm_complete".
func (p *Preparer) maybeTransition(remainingAfter float64) {
	switch p.state.Ramp {
	case RampAccelerate:
		if remainingAfter <= p.state.AccelerateUntilMM+1e-9 {
			if p.state.DecelerateAfterMM >= p.state.AccelerateUntilMM-1e-9 {
				p.state.Ramp = RampDecelerate
			} else {
				p.state.Ramp = RampCruise
			}
		}
	case RampCruise:
		if remainingAfter <= p.state.DecelerateAfterMM+1e-9 {
			p.state.Ramp = RampDecelerate
		}
	}
}

// beginNextBlock pulls the planner's current block, classifies its
// velocity profile, and primes a fresh stepper-block shadow, per
// spec.md §4.3's "Profile computation". Returns false if the planner
// has no block to offer.
func (p *Preparer) beginNextBlock() bool {
	b, idx, ok := p.pl.GetCurrentBlock()
	if !ok {
		return false
	}

	shadowIdx := p.shadowNext
	p.shadowNext = (p.shadowNext + 1) % shadowSlots
	p.shadow[shadowIdx] = StepperBlockShadow{
		StepCount:      b.StepCount,
		StepEventCount: b.StepEventCount,
		DirectionBits:  b.DirectionBits,
		Condition:      b.Condition,
	}
	p.shadowIdx = shadowIdx
	p.curIdx = idx
	p.blockTotal = b.Millimetres
	p.haveCurrent = true

	if b.StepEventCount == 0 || b.Millimetres <= 0 {
		p.state.StepsRemaining = 0
		return true
	}

	p.state.StepsPerMM = float64(b.StepEventCount) / b.Millimetres
	p.state.StepsRemaining = b.StepEventCount
	p.state.DtRemainder = 0

	entrySqr := b.EntrySpeedSqr
	nominalSqr := b.NominalSpeedSqr
	exitSqr := p.pl.ExecBlockExitSpeedSqr(idx)
	if exitSqr > nominalSqr {
		exitSqr = nominalSqr
	}

	p.state.CurrentSpeed = math.Sqrt(entrySqr)
	p.state.ExitSpeed = math.Sqrt(exitSqr)
	nominal := p.pl.ComputeProfileNominalSpeed(b)

	if p.holdRequested {
		p.computeForcedDecelProfile(b.Millimetres)
		return true
	}

	if entrySqr > nominalSqr+1e-6 {
		// entry speed already exceeds nominal (override reduction):
		// pure deceleration ramp toward nominal/exit for the whole block.
		p.state.Ramp = RampDecelerateOverride
		p.state.MaxSpeed = p.state.CurrentSpeed
		p.state.AccelerateUntilMM = b.Millimetres
		p.state.DecelerateAfterMM = b.Millimetres
		p.state.MMComplete = 0
		return true
	}

	accel := b.Acceleration
	da := (nominalSqr - entrySqr) / (2 * accel)
	dd := (nominalSqr - exitSqr) / (2 * accel)

	if da < 0 {
		da = 0
	}
	if dd < 0 {
		dd = 0
	}

	if da+dd <= b.Millimetres {
		p.state.Ramp = RampAccelerate
		if da == 0 {
			if dd == 0 {
				p.state.Ramp = RampCruise
			} else if dd >= b.Millimetres {
				p.state.Ramp = RampDecelerate
			}
		}
		p.state.MaxSpeed = nominal
		p.state.AccelerateUntilMM = b.Millimetres - da
		p.state.DecelerateAfterMM = dd
		p.state.MMComplete = 0
		return true
	}

	// triangle: no room for a cruise phase, solve for the peak speed.
	peakSqr := (2*accel*b.Millimetres + entrySqr + exitSqr) / 2
	if peakSqr < entrySqr {
		peakSqr = entrySqr
	}
	daPrime := (peakSqr - entrySqr) / (2 * accel)
	if daPrime < 0 {
		daPrime = 0
	}
	if daPrime > b.Millimetres {
		daPrime = b.Millimetres
	}

	p.state.Ramp = RampAccelerate
	p.state.MaxSpeed = math.Sqrt(peakSqr)
	p.state.AccelerateUntilMM = b.Millimetres - daPrime
	p.state.DecelerateAfterMM = p.state.AccelerateUntilMM
	p.state.MMComplete = 0
	return true
}

// computeForcedDecelProfile builds the feed-hold ramp described in
// spec.md §4.3: velocity ramps linearly from current speed to zero
// over the remaining millimetres.
func (p *Preparer) computeForcedDecelProfile(remainingMM float64) {
	v0 := p.state.CurrentSpeed
	accel := p.currentBlockAccel()
	stopDist := v0 * v0 / (2 * accel)

	p.state.Ramp = RampForcedDecelerate
	p.state.MaxSpeed = v0
	p.state.ExitSpeed = 0
	p.state.AccelerateUntilMM = remainingMM
	p.state.DecelerateAfterMM = remainingMM

	if stopDist >= remainingMM {
		// cannot stop before the end of the block: ramp to reach zero
		// exactly at the end.
		p.state.MMComplete = 0
		return
	}
	p.state.MMComplete = remainingMM - stopDist
}

func (p *Preparer) currentBlockAccel() float64 {
	if b, _, ok := p.pl.GetCurrentBlock(); ok {
		return b.Acceleration
	}
	return 1
}

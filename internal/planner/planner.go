/*
 * lasercnc motioncore - Motion planner.
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

import (
	"math"

	"github.com/lasercnc/motioncore/internal/gcode"
	"github.com/lasercnc/motioncore/internal/settings"
)

// Planner implements gcode.MotionSink and owns the block ring, per
// spec.md §4.2. It is constructed once at startup and passed by
// borrow to the parser worker and segment preparer (spec.md §9
// "Global mutable state ... re-express as two explicitly-owned
// objects constructed at startup and passed by borrow").
type Planner struct {
	cfg *settings.Machine
	r   *ring

	previousTarget gcode.Position
	previousUnit   [3]float64
	havePrevious   bool

	systemMotion *Block // homing/park single-shot motion, bypasses the ring

	stateFn func() string
}

// New builds a Planner sized from cfg.PlannerRingSize.
func New(cfg *settings.Machine, stateFn func() string) *Planner {
	return &Planner{
		cfg:     cfg,
		r:       newRing(cfg.PlannerRingSize),
		stateFn: stateFn,
	}
}

// SystemState satisfies gcode.MotionSink, letting the parser's idle
// checks consult the FSM without an import cycle.
func (p *Planner) SystemState() string {
	if p.stateFn == nil {
		return "Idle"
	}
	return p.stateFn()
}

// RingFree reports free planner-ring slots, for status reports (§D).
func (p *Planner) RingFree() int { return p.r.Free() }

// PlanLine implements gcode.MotionSink, per spec.md §4.2
// plan_buffer_line. It computes the resulting block and either
// appends it (queued=true) or rejects it as a no-op zero-length move
// (queued=false, err=nil) — spindle synchronisation is still observed
// on a no-op, matching spec.md's wording, by leaving SpindleSpeed
// bookkeeping in previousTarget unaffected either way (there is no
// separate spindle state to hold here; the caller's modal state
// already carries it).
func (p *Planner) PlanLine(target gcode.Position, data gcode.LineData) (bool, error) {
	if !p.havePrevious {
		p.previousTarget = gcode.Position{}
		p.havePrevious = true
	}

	var deltaMM [3]float64
	var steps [3]uint32
	var dirBits uint8
	for i := 0; i < 3; i++ {
		deltaMM[i] = target[i] - p.previousTarget[i]
		stepsF := deltaMM[i] * p.cfg.Axes[i].StepsPerMM
		n := int64(math.Round(stepsF))
		if n < 0 {
			dirBits |= 1 << uint(i)
			n = -n
		}
		steps[i] = uint32(n)
	}

	eventMax := steps[0]
	if steps[1] > eventMax {
		eventMax = steps[1]
	}
	if steps[2] > eventMax {
		eventMax = steps[2]
	}

	if eventMax == 0 {
		// zero-length move: spindle sync observed via caller's modal
		// state, nothing to queue.
		return false, nil
	}

	distance := math.Sqrt(deltaMM[0]*deltaMM[0] + deltaMM[1]*deltaMM[1] + deltaMM[2]*deltaMM[2])
	var unit [3]float64
	for i := 0; i < 3; i++ {
		unit[i] = deltaMM[i] / distance
	}

	accel := p.limitByAxis(unit, func(a settings.Axis) float64 { return a.Acceleration * 3600 }) // mm/min^2
	rateLimit := p.limitByAxis(unit, func(a settings.Axis) float64 { return a.MaxRateMMPerMin })

	programmedRate := data.Feed
	if data.Condition&gcode.CondRapid != 0 {
		programmedRate = rateLimit
	} else if data.Condition&gcode.CondInverseTime != 0 {
		programmedRate = distance * data.Feed
	}
	nominalRate := programmedRate
	if rateLimit < nominalRate {
		nominalRate = rateLimit
	}
	if nominalRate <= 0 {
		nominalRate = rateLimit
	}

	b := Block{
		StepCount:       steps,
		StepEventCount:  eventMax,
		DirectionBits:   dirBits,
		Condition:       data.Condition,
		Acceleration:    accel,
		Millimetres:     distance,
		ProgrammedRate:  programmedRate,
		NominalRate:     nominalRate,
		NominalSpeedSqr: nominalRate * nominalRate,
		SpindleSpeed:    data.Spindle,
		unitVec:         unit,
	}

	b.MaxJunctionSqr = p.junctionSpeedSqr(unit, accel, b.NominalSpeedSqr)

	if p.r.Full() {
		return false, errRingFull
	}
	p.r.push(b)

	p.recalculate()

	p.previousTarget = target
	p.previousUnit = unit

	return true, nil
}

var errRingFull = planErr("planner ring full")

type planErr string

func (e planErr) Error() string { return string(e) }

// limitByAxis derives a rate/acceleration limited by the per-axis
// maximum (spec.md §4.2 "limited by the per-axis maximum acceleration
// and rate"): the unit vector's component on each moving axis cannot
// ask that axis to exceed its own limit.
func (p *Planner) limitByAxis(unit [3]float64, limitOf func(settings.Axis) float64) float64 {
	best := math.MaxFloat64
	for i := 0; i < 3; i++ {
		u := math.Abs(unit[i])
		if u < 1e-9 {
			continue
		}
		limit := limitOf(p.cfg.Axes[i]) / u
		if limit < best {
			best = limit
		}
	}
	if best == math.MaxFloat64 {
		return 0
	}
	return best
}

// junctionSpeedSqr computes the maximum squared junction speed between
// the previous block's unit vector and this one, per spec.md §4.2
// "Junction deviation": from cos(theta) between direction vectors,
// sin(theta/2) = sqrt((1-cos theta)/2), and the configured junction
// deviation distance d:
//
//	v^2 <= a*d*sin(theta/2) / (1 - sin(theta/2))
//
// raised to at least minJunctionSpeed^2 and capped at this block's
// nominal^2; the previous block's nominal caps the junction through the
// forward pass, which limits each entry speed to its predecessor's exit.
func (p *Planner) junctionSpeedSqr(unit [3]float64, accel, nominalSqr float64) float64 {
	minSqr := p.cfg.MinJunctionSpeedMMPerMin * p.cfg.MinJunctionSpeedMMPerMin

	if !p.havePrevNonZero() {
		return minSqr
	}

	cosTheta := -(p.previousUnit[0]*unit[0] + p.previousUnit[1]*unit[1] + p.previousUnit[2]*unit[2])
	if cosTheta > 0.999999 {
		// reversal (cos(theta) ~ +1 under this sign convention means
		// the path doubles back); treat as the minimum junction speed.
		return minSqr
	}
	if cosTheta < -0.999999 {
		// straight-through continuation, uncapped by geometry.
		vSqr := nominalSqr
		return vSqr
	}

	sinHalf := math.Sqrt(math.Max(0, (1-cosTheta)/2))
	if sinHalf > 0.999999 {
		return minSqr
	}

	vSqr := accel * p.cfg.JunctionDeviationMM * sinHalf / (1 - sinHalf)
	if vSqr < minSqr {
		vSqr = minSqr
	}
	if vSqr > nominalSqr {
		vSqr = nominalSqr
	}
	return vSqr
}

func (p *Planner) havePrevNonZero() bool {
	return p.previousUnit[0] != 0 || p.previousUnit[1] != 0 || p.previousUnit[2] != 0
}

// recalculate runs the forward-then-reverse look-ahead pass described
// in spec.md §4.2, after every insertion. The block at the ring's
// tail (currently executing, per spec.md §3/§4.2) is never overwritten
// here — only through UpdateExecBlockParameters.
func (p *Planner) recalculate() {
	tail := -1
	if !p.r.Empty() {
		tail = p.r.tailIndex()
	}

	// reverse pass: newest back toward the tail.
	var nextEntrySqr float64 = -1
	p.r.forEachReverse(func(idx int) bool {
		b := p.r.at(idx)
		if idx == tail {
			nextEntrySqr = b.EntrySpeedSqr
			return false
		}
		reachable := b.MaxJunctionSqr
		if nextEntrySqr >= 0 {
			candidate := nextEntrySqr + 2*b.Acceleration*b.Millimetres
			if candidate < reachable {
				reachable = candidate
			}
		}
		if reachable > b.NominalSpeedSqr {
			reachable = b.NominalSpeedSqr
		}
		changed := b.EntrySpeedSqr != reachable
		b.EntrySpeedSqr = reachable
		nextEntrySqr = reachable
		return changed || nextEntrySqr >= 0
	})

	// forward pass: tail forward, capping entry speed by the previous
	// block's reachable exit speed.
	var prevExitSqr float64 = -1
	p.r.forEachForward(func(idx int) bool {
		b := p.r.at(idx)
		if idx != tail {
			if prevExitSqr >= 0 && prevExitSqr < b.EntrySpeedSqr {
				b.EntrySpeedSqr = prevExitSqr
			}
		}
		exitSqr := b.EntrySpeedSqr + 2*b.Acceleration*b.Millimetres
		if exitSqr > b.NominalSpeedSqr {
			exitSqr = b.NominalSpeedSqr
		}
		prevExitSqr = exitSqr
		return true
	})
}

// GetCurrentBlock returns the block the preparer should be drawing
// from (the tail of the ring), and ok=false if the ring is empty.
func (p *Planner) GetCurrentBlock() (*Block, int, bool) {
	if p.systemMotion != nil {
		return p.systemMotion, -1, true
	}
	if p.r.Empty() {
		return nil, -1, false
	}
	idx := p.r.tailIndex()
	return p.r.at(idx), idx, true
}

// ExecBlockExitSpeedSqr returns the exit speed squared of the block
// at idx — the entry speed squared of the next block, or, if idx is
// the newest block, zero (motion terminates), per spec.md §4.2's
// "plan_get_exec_block_exit_speed_sqr".
func (p *Planner) ExecBlockExitSpeedSqr(idx int) float64 {
	next, ok := p.r.next(idx)
	if !ok {
		return 0
	}
	return p.r.at(next).EntrySpeedSqr
}

// ComputeProfileNominalSpeed returns sqrt(NominalSpeedSqr), per
// spec.md §4.2's plan_compute_profile_nominal_speed.
func (p *Planner) ComputeProfileNominalSpeed(b *Block) float64 {
	return math.Sqrt(b.NominalSpeedSqr)
}

// DiscardCurrentBlock retires the executing block, per spec.md §4.2
// plan_discard_current_block.
func (p *Planner) DiscardCurrentBlock() {
	if p.systemMotion != nil {
		p.systemMotion = nil
		return
	}
	p.r.discardTail()
}

// UpdateExecBlockParameters freezes the stepper's current speed as
// the executing block's new entry-speed squared and flags it for
// recalculation, per spec.md §4.2: "The block currently being
// executed by the segment preparer is only updated through
// st_update_plan_block_parameters".
func (p *Planner) UpdateExecBlockParameters(currentSpeed float64) {
	b, _, ok := p.GetCurrentBlock()
	if !ok {
		return
	}
	b.EntrySpeedSqr = currentSpeed * currentSpeed
	b.recalc = true
	p.recalculate()
}

// SetSystemMotionBlock installs a single-shot motion (homing/park)
// that bypasses the queue, per spec.md §4.2's "synonymous 'system
// motion block' accessor".
func (p *Planner) SetSystemMotionBlock(b Block) {
	b.EntrySpeedSqr = 0
	b.valid = true
	p.systemMotion = &b
}

// Reset empties the ring and clears the previous-target memory
// (used on alarm/fault recovery and at startup).
func (p *Planner) Reset() {
	p.r = newRing(p.cfg.PlannerRingSize)
	p.havePrevious = false
	p.previousUnit = [3]float64{}
	p.systemMotion = nil
}

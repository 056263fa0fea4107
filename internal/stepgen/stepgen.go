/*
 * lasercnc motioncore - Step generator.
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

// Package stepgen implements the hard-real-time step generator of
// spec.md §4.4: a single periodic task of the highest non-interrupt
// priority on a pinned CPU that advances a Bresenham line tracer and
// emits pulse bytes to the stepper hardware. Its periodic-task shape
// rides on internal/scheduler; the goroutine/channel wake-suspend
// discipline is grounded on the teacher's telnet/listener.go
// accept-loop lifecycle, generalized from "accept a connection" to
// "resume the tick loop".
package stepgen

import (
	"github.com/lasercnc/motioncore/internal/segment"
	"github.com/lasercnc/motioncore/internal/settings"
)

// PulseWriter is the hardware surface the step generator drives; a
// subset of pulsefifo.Device so this package can be tested without a
// real sysfs tree.
type PulseWriter interface {
	WritePulse(b byte) error
}

// SegmentSource is the subset of segment.Preparer the step generator
// needs: popping completed segments and asking for more.
type SegmentSource interface {
	PopSegment() (segment.Segment, bool)
	Shadow(idx int) segment.StepperBlockShadow
	Fill() int
}

// direction bit offset within the pulse byte: step bits occupy bits
// 0-2, direction bits bits 4-6, per spec.md §4.4 "pulse byte is
// emitted with direction bits OR'd in".
const dirBitShift = 4

// StepGenerator drives the Bresenham tracer per spec.md §4.4.
type StepGenerator struct {
	cfg  *settings.Machine
	prep SegmentSource
	dev  PulseWriter

	onIdle  func()
	onFault func(error)

	running bool

	haveSegment bool
	cur         segment.Segment
	shadow      segment.StepperBlockShadow
	accum       [3]uint32
	sysPos      [3]int64

	ticksUntilFire     uint32 // ticks remaining before the next Bresenham advance
	ticksLeftInSegment uint32 // total physical ticks remaining in the segment

	bufferedCycles int64
}

// New builds a StepGenerator. onIdle is called when the segment ring
// empties (request SYS_STATE_IDLE, per spec.md §4.4).
func New(cfg *settings.Machine, prep SegmentSource, dev PulseWriter, onIdle func()) *StepGenerator {
	return &StepGenerator{cfg: cfg, prep: prep, dev: dev, onIdle: onIdle}
}

// SetFaultHandler installs a callback invoked when a write to the
// hardware pulse surface fails. spec.md §7 classes a "pulse FIFO open
// failure" as a fault; a write failure mid-run is the same class of
// unrecoverable hardware failure, so it escalates the same way rather
// than being silently dropped. cmd/lasercnc wires this to the
// machine's ReportHardwareFault.
func (s *StepGenerator) SetFaultHandler(fn func(error)) { s.onFault = fn }

// ZeroAxis resets one axis's system position to zero, per spec.md §4
// ("Homing ... sets system position zero for homed axis") once a
// homing pass has driven that axis onto its limit switch.
func (s *StepGenerator) ZeroAxis(idx int) { s.sysPos[idx] = 0 }

// SystemPosition returns the signed step position of each axis, per
// spec.md §5: "System position is written only by the step generator
// and read without locking by status reporters." (Callers accept the
// torn-read risk the spec accepts; int64 reads are atomic-by-alignment
// on every architecture Go targets here.)
func (s *StepGenerator) SystemPosition() [3]int64 { return s.sysPos }

// NotifySegmentAdded accounts a freshly-prepared segment's worth of
// tick-time toward the prime window described in spec.md §4.4: "kept
// streaming only after at least one tick-second of data has been
// buffered or the system is already in the running state."
func (s *StepGenerator) NotifySegmentAdded(seg segment.Segment) {
	s.bufferedCycles += int64(seg.NStep) * int64(seg.CyclesPerTick)
}

// primed reports whether the prime window condition is satisfied.
func (s *StepGenerator) primed() bool {
	if s.running {
		return true
	}
	return s.bufferedCycles >= int64(s.cfg.StepFrequencyHz)
}

// WakeUp resumes the tick loop after the preparer has placed at least
// one segment in the ring, per spec.md §4.4's wake policy. Returns
// false if the prime window has not yet been satisfied (caller should
// keep filling and retry).
func (s *StepGenerator) WakeUp() bool {
	if !s.primed() {
		return false
	}
	s.running = true
	return true
}

// Suspend stops the tick loop voluntarily, per spec.md §5's
// suspension points.
func (s *StepGenerator) Suspend() {
	s.running = false
	s.bufferedCycles = 0
}

// Tick implements scheduler.Task: advances by one period. Returns
// false once the step generator has suspended (segment ring emptied
// with nothing current), asking the scheduler to stop driving it
// until the next WakeUp.
func (s *StepGenerator) Tick() bool {
	if !s.running {
		return false
	}

	if !s.haveSegment {
		seg, ok := s.prep.PopSegment()
		if !ok {
			s.Suspend()
			if s.onIdle != nil {
				s.onIdle()
			}
			return false
		}
		s.beginSegment(seg)
		if s.ticksLeftInSegment == 0 {
			// a zero-step segment (the end-motion marker, or a
			// forced-decel chunk that already reached zero speed)
			// carries no ticks to fire: retire it without emitting a
			// pulse or mutating sysPos.
			s.completeSegment()
			return true
		}
	}

	if s.ticksUntilFire == 0 {
		s.fireMajorCycle()
		if s.cur.CyclesPerTick > 1 {
			s.ticksUntilFire = s.cur.CyclesPerTick - 1
		}
	} else {
		s.writePulse(s.spacerPulse())
		s.ticksUntilFire--
	}

	s.ticksLeftInSegment--
	if s.ticksLeftInSegment == 0 {
		s.completeSegment()
	}

	return true
}

// beginSegment loads a new segment, reinitialising the Bresenham
// counters to step_event_count/2 when the segment indexes a new
// stepper-block shadow, per spec.md §4.4.
func (s *StepGenerator) beginSegment(seg segment.Segment) {
	shadow := s.prep.Shadow(seg.ShadowIndex)
	if shadow != s.shadow {
		s.shadow = shadow
		half := shadow.StepEventCount / 2
		s.accum = [3]uint32{half, half, half}
	}

	s.cur = seg
	s.haveSegment = true
	s.ticksUntilFire = 0

	cyclesPerTick := seg.CyclesPerTick
	if cyclesPerTick == 0 {
		cyclesPerTick = 1
	}
	s.ticksLeftInSegment = seg.NStep * cyclesPerTick
}

// fireMajorCycle performs one Bresenham advance and emits the
// resulting pulse byte, per spec.md §4.4's per-tick action.
func (s *StepGenerator) fireMajorCycle() {
	var pulse byte
	for i := 0; i < 3; i++ {
		s.accum[i] += s.shadow.StepCount[i]
		if s.accum[i] > s.shadow.StepEventCount && s.shadow.StepEventCount > 0 {
			pulse |= 1 << uint(i)
			s.accum[i] -= s.shadow.StepEventCount
			if s.shadow.DirectionBits&(1<<uint(i)) != 0 {
				s.sysPos[i]--
			} else {
				s.sysPos[i]++
			}
		}
	}
	pulse |= s.shadow.DirectionBits << dirBitShift
	s.writePulse(pulse)
}

// completeSegment advances past a fully-consumed segment and asks the
// preparer to refill, per spec.md §4.4's "Segment completion".
func (s *StepGenerator) completeSegment() {
	s.haveSegment = false
	s.prep.Fill()
}

// spacerPulse emits direction bits only, no step bits, per spec.md
// §4.4 ("otherwise it emits a spacer pulse").
func (s *StepGenerator) spacerPulse() byte {
	return s.shadow.DirectionBits << dirBitShift
}

func (s *StepGenerator) writePulse(b byte) {
	if err := s.dev.WritePulse(b); err != nil && s.onFault != nil {
		s.onFault(err)
	}
}

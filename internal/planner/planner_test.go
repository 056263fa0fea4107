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
	"testing"

	"github.com/lasercnc/motioncore/internal/gcode"
	"github.com/lasercnc/motioncore/internal/settings"
)

func testMachine() *settings.Machine {
	m := settings.Default()
	return m
}

// Scenario 1 from spec.md §8: G0 X100 Y0 F0. The scenario's figure of
// 10667 X steps assumes its own reference steps/mm; at this package's
// default of 80 steps/mm the move is 8000 steps, so the test derives
// the expected count from the configured StepsPerMM.
func TestPlanLineStepCounts(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	queued, err := p.PlanLine(gcode.Position{100, 0, 0}, gcode.LineData{Condition: gcode.CondRapid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !queued {
		t.Fatalf("expected block to be queued")
	}

	b, _, ok := p.GetCurrentBlock()
	if !ok {
		t.Fatalf("expected a current block")
	}

	wantX := uint32(math.Round(100 * cfg.Axes[settings.AxisX].StepsPerMM))
	if b.StepCount[settings.AxisX] != wantX {
		t.Fatalf("StepCount[X] = %d, want %d", b.StepCount[settings.AxisX], wantX)
	}
	if b.StepCount[settings.AxisY] != 0 || b.StepCount[settings.AxisZ] != 0 {
		t.Fatalf("expected Y and Z step counts of zero, got %+v", b.StepCount)
	}
	if b.StepEventCount != wantX {
		t.Fatalf("StepEventCount = %d, want %d (axis-max invariant)", b.StepEventCount, wantX)
	}
}

// Step-count invariance property from spec.md §8: StepEventCount must
// always equal the maximum of the three per-axis step counts.
func TestStepEventCountIsAxisMax(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	cases := []gcode.Position{
		{30, 10, 0},
		{30, 40, 5},
		{-10, 40, 5},
	}
	for _, target := range cases {
		_, err := p.PlanLine(target, gcode.LineData{Feed: 500})
		if err != nil {
			t.Fatalf("PlanLine(%v): %v", target, err)
		}
		b, _, ok := p.GetCurrentBlock()
		if !ok {
			t.Fatalf("expected current block after PlanLine(%v)", target)
		}
		if got := b.StepEventMax(); got != b.StepEventCount {
			t.Fatalf("StepEventCount = %d, axis-max = %d", b.StepEventCount, got)
		}
		p.DiscardCurrentBlock()
	}
}

func TestZeroLengthMoveIsNoOp(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	queued, err := p.PlanLine(gcode.Position{0, 0, 0}, gcode.LineData{Feed: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queued {
		t.Fatalf("zero-length move should not be queued")
	}
	if p.RingFree() != cfg.PlannerRingSize {
		t.Fatalf("ring should remain empty")
	}
}

func TestDirectionBitsSetForNegativeMove(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	_, err := p.PlanLine(gcode.Position{10, 10, 0}, gcode.LineData{Feed: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.DiscardCurrentBlock()

	_, err = p.PlanLine(gcode.Position{0, 20, 0}, gcode.LineData{Feed: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _, _ := p.GetCurrentBlock()
	if !b.DirBit(settings.AxisX) {
		t.Fatalf("expected X direction bit set for a decreasing X move")
	}
	if b.DirBit(settings.AxisY) {
		t.Fatalf("expected Y direction bit clear for an increasing Y move")
	}
}

// Velocity monotonicity at junctions, from spec.md §8: a sharp
// reversal must plan a junction speed no greater than the minimum
// junction speed, while a straight continuation is not penalized.
func TestJunctionSpeedMonotonicity(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	// Two collinear moves: second block's junction speed should reach
	// up to its nominal speed, unconstrained by geometry.
	if _, err := p.PlanLine(gcode.Position{10, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.PlanLine(gcode.Position{20, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	idx2, ok := p.r.newestIndex()
	if !ok {
		t.Fatalf("expected a newest block")
	}
	straight := p.r.at(idx2)

	p2 := New(cfg, nil)
	if _, err := p2.PlanLine(gcode.Position{10, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p2.PlanLine(gcode.Position{0, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idxR, ok := p2.r.newestIndex()
	if !ok {
		t.Fatalf("expected a newest block")
	}
	reversed := p2.r.at(idxR)

	if reversed.MaxJunctionSqr > straight.MaxJunctionSqr {
		t.Fatalf("a sharp corner must not permit a higher junction speed than a straight line: corner=%v straight=%v",
			reversed.MaxJunctionSqr, straight.MaxJunctionSqr)
	}

	minSqr := cfg.MinJunctionSpeedMMPerMin * cfg.MinJunctionSpeedMMPerMin
	if reversed.MaxJunctionSqr > minSqr+1e-6 {
		t.Fatalf("a reversal's junction speed %v should be near the minimum %v", reversed.MaxJunctionSqr, minSqr)
	}
}

func TestRecalculatePropagatesEntrySpeed(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	for _, target := range []gcode.Position{{10, 0, 0}, {20, 0, 0}, {30, 0, 0}} {
		if _, err := p.PlanLine(target, gcode.LineData{Feed: 600}); err != nil {
			t.Fatalf("PlanLine(%v): %v", target, err)
		}
	}

	var prevExitEstimate float64 = -1
	p.r.forEachForward(func(idx int) bool {
		b := p.r.at(idx)
		if prevExitEstimate >= 0 && b.EntrySpeedSqr > prevExitEstimate+1e-6 {
			t.Fatalf("entry speed squared %v exceeds predecessor's exit bound %v", b.EntrySpeedSqr, prevExitEstimate)
		}
		exit := b.EntrySpeedSqr + 2*b.Acceleration*b.Millimetres
		if exit > b.NominalSpeedSqr {
			exit = b.NominalSpeedSqr
		}
		prevExitEstimate = exit
		return true
	})
}

func TestExecBlockExitSpeedSqrOfNewestIsZero(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	if _, err := p.PlanLine(gcode.Position{10, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx, _ := p.r.newestIndex()
	if got := p.ExecBlockExitSpeedSqr(idx); got != 0 {
		t.Fatalf("newest block's exit speed should be zero (motion terminates), got %v", got)
	}
}

func TestUpdateExecBlockParametersFreezesEntrySpeed(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	if _, err := p.PlanLine(gcode.Position{10, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.UpdateExecBlockParameters(250)

	b, _, _ := p.GetCurrentBlock()
	want := 250.0 * 250.0
	if math.Abs(b.EntrySpeedSqr-want) > 1e-6 {
		t.Fatalf("EntrySpeedSqr = %v, want %v", b.EntrySpeedSqr, want)
	}
}

func TestSystemMotionBlockBypassesRing(t *testing.T) {
	cfg := testMachine()
	p := New(cfg, nil)

	if _, err := p.PlanLine(gcode.Position{10, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.SetSystemMotionBlock(Block{StepCount: [3]uint32{0, 0, 4000}, StepEventCount: 4000})

	b, idx, ok := p.GetCurrentBlock()
	if !ok {
		t.Fatalf("expected a current block")
	}
	if idx != -1 {
		t.Fatalf("system motion block should report index -1, not a ring index")
	}
	if b.StepEventCount != 4000 {
		t.Fatalf("expected system motion block, got %+v", b)
	}

	p.DiscardCurrentBlock()
	b2, _, ok := p.GetCurrentBlock()
	if !ok {
		t.Fatalf("expected ring's block to resurface after system motion discard")
	}
	if b2.StepEventCount == 4000 {
		t.Fatalf("system motion block should have been cleared")
	}
}

func TestRingFullRejectsPlanLine(t *testing.T) {
	cfg := testMachine()
	cfg.PlannerRingSize = 2
	p := New(cfg, nil)

	if _, err := p.PlanLine(gcode.Position{10, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.PlanLine(gcode.Position{20, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := p.PlanLine(gcode.Position{30, 0, 0}, gcode.LineData{Feed: 600})
	if err == nil {
		t.Fatalf("expected an error once the ring is full")
	}
}

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
	"testing"

	"github.com/lasercnc/motioncore/internal/gcode"
	"github.com/lasercnc/motioncore/internal/planner"
	"github.com/lasercnc/motioncore/internal/settings"
)

func testSetup(t *testing.T) (*settings.Machine, *planner.Planner, *Preparer) {
	t.Helper()
	cfg := settings.Default()
	pl := planner.New(cfg, nil)
	p := New(cfg, pl)
	return cfg, pl, p
}

// Segment-step exactness from spec.md §8: summing n_step over all
// segments of a block equals the block's step_event_count.
func TestSegmentStepExactness(t *testing.T) {
	_, pl, p := testSetup(t)

	if _, err := pl.PlanLine(gcode.Position{50, 0, 0}, gcode.LineData{Feed: 1200}); err != nil {
		t.Fatalf("PlanLine: %v", err)
	}
	b, _, ok := pl.GetCurrentBlock()
	if !ok {
		t.Fatalf("expected a current block")
	}
	want := b.StepEventCount

	var total uint32
	for i := 0; i < 10000; i++ {
		seg, ok := p.step()
		if !ok {
			break
		}
		total += seg.NStep
		if seg.EndMotion {
			break
		}
	}

	if total != want {
		t.Fatalf("sum of NStep = %d, want %d", total, want)
	}
}

func TestFillStopsAtRingCapacity(t *testing.T) {
	cfg, pl, p := testSetup(t)

	if _, err := pl.PlanLine(gcode.Position{200, 0, 0}, gcode.LineData{Feed: 1200}); err != nil {
		t.Fatalf("PlanLine: %v", err)
	}

	added := p.Fill()
	if added > cfg.SegmentRingSize {
		t.Fatalf("Fill() added %d segments, ring capacity is %d", added, cfg.SegmentRingSize)
	}
	if p.RingFree() < 0 {
		t.Fatalf("ring overfilled")
	}
}

func TestFillReturnsFalseWhenPlannerEmpty(t *testing.T) {
	_, _, p := testSetup(t)

	added := p.Fill()
	if added != 0 {
		t.Fatalf("expected no segments from an empty planner, got %d", added)
	}
}

func TestForcedDecelReachesZeroAtOrBeforeBlockEnd(t *testing.T) {
	_, pl, p := testSetup(t)

	if _, err := pl.PlanLine(gcode.Position{80, 0, 0}, gcode.LineData{Feed: 3000}); err != nil {
		t.Fatalf("PlanLine: %v", err)
	}

	// run a few segments at speed, then request a hold mid-block.
	for i := 0; i < 3; i++ {
		if _, ok := p.step(); !ok {
			t.Fatalf("expected a segment")
		}
	}
	p.RequestHold(true)

	var total uint32
	for i := 0; i < 10000; i++ {
		seg, ok := p.step()
		if !ok {
			break
		}
		total += seg.NStep
		if seg.EndMotion {
			break
		}
	}

	if p.state.Ramp != RampForcedDecelerate && p.haveCurrent {
		t.Fatalf("expected forced-decelerate ramp once a hold is requested, got %v", p.state.Ramp)
	}
}

func TestShadowSurvivesBlockRetirement(t *testing.T) {
	_, pl, p := testSetup(t)

	if _, err := pl.PlanLine(gcode.Position{10, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("PlanLine: %v", err)
	}
	if _, err := pl.PlanLine(gcode.Position{20, 0, 0}, gcode.LineData{Feed: 600}); err != nil {
		t.Fatalf("PlanLine: %v", err)
	}

	added := p.Fill()
	if added == 0 {
		t.Fatalf("expected at least one segment")
	}
	seg, ok := p.PopSegment()
	if !ok {
		t.Fatalf("expected a segment to pop")
	}
	shadow := p.Shadow(seg.ShadowIndex)
	if shadow.StepEventCount == 0 {
		t.Fatalf("shadow should carry the block's step-event count")
	}
}

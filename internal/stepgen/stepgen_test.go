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

package stepgen

import (
	"testing"

	"github.com/lasercnc/motioncore/internal/segment"
	"github.com/lasercnc/motioncore/internal/settings"
)

type fakeSource struct {
	segs    []segment.Segment
	shadows []segment.StepperBlockShadow
	fillCalls int
}

func (f *fakeSource) PopSegment() (segment.Segment, bool) {
	if len(f.segs) == 0 {
		return segment.Segment{}, false
	}
	s := f.segs[0]
	f.segs = f.segs[1:]
	return s, true
}

func (f *fakeSource) Shadow(idx int) segment.StepperBlockShadow { return f.shadows[idx] }

func (f *fakeSource) Fill() int {
	f.fillCalls++
	return 0
}

type fakePulseWriter struct {
	pulses []byte
}

func (f *fakePulseWriter) WritePulse(b byte) error {
	f.pulses = append(f.pulses, b)
	return nil
}

func testCfg() *settings.Machine {
	return settings.Default()
}

func TestWakeUpRequiresPrimeWindow(t *testing.T) {
	cfg := testCfg()
	cfg.StepFrequencyHz = 1000
	src := &fakeSource{}
	dev := &fakePulseWriter{}
	sg := New(cfg, src, dev, nil)

	if sg.WakeUp() {
		t.Fatalf("WakeUp should fail before any tick-second of data is buffered")
	}

	sg.NotifySegmentAdded(segment.Segment{NStep: 2000, CyclesPerTick: 1})
	if !sg.WakeUp() {
		t.Fatalf("WakeUp should succeed once >= one tick-second is buffered")
	}
}

func TestTickFiresStepsAndAdvancesSystemPosition(t *testing.T) {
	cfg := testCfg()
	cfg.StepFrequencyHz = 4 // the single 4-tick segment below is one tick-second
	shadow := segment.StepperBlockShadow{
		StepCount:      [3]uint32{4, 0, 0},
		StepEventCount: 4,
		DirectionBits:  0,
	}
	src := &fakeSource{
		segs:    []segment.Segment{{NStep: 4, CyclesPerTick: 1, ShadowIndex: 0}},
		shadows: []segment.StepperBlockShadow{shadow},
	}
	dev := &fakePulseWriter{}
	sg := New(cfg, src, dev, nil)
	sg.NotifySegmentAdded(src.segs[0])
	if !sg.WakeUp() {
		t.Fatalf("expected WakeUp to succeed")
	}

	for i := 0; i < 4; i++ {
		if !sg.Tick() {
			t.Fatalf("Tick() returned false unexpectedly at i=%d", i)
		}
	}

	pos := sg.SystemPosition()
	if pos[0] != 4 {
		t.Fatalf("expected X system position 4, got %d", pos[0])
	}
	if len(dev.pulses) != 4 {
		t.Fatalf("expected 4 pulses written, got %d", len(dev.pulses))
	}
	for i, p := range dev.pulses {
		if p&0x1 == 0 {
			t.Fatalf("pulse %d missing X step bit: %08b", i, p)
		}
	}
}

func TestTickSuspendsWhenRingEmpties(t *testing.T) {
	cfg := testCfg()
	src := &fakeSource{}
	dev := &fakePulseWriter{}
	idleCalled := false
	sg := New(cfg, src, dev, func() { idleCalled = true })
	sg.running = true // bypass prime window for this test

	if sg.Tick() {
		t.Fatalf("expected Tick() to return false when the segment ring is empty")
	}
	if !idleCalled {
		t.Fatalf("expected the idle callback to fire")
	}
}

func TestZeroAxisResetsSystemPosition(t *testing.T) {
	cfg := testCfg()
	src := &fakeSource{}
	dev := &fakePulseWriter{}
	sg := New(cfg, src, dev, nil)
	sg.sysPos = [3]int64{120, -45, 7}

	sg.ZeroAxis(1)

	pos := sg.SystemPosition()
	if pos != [3]int64{120, 0, 7} {
		t.Fatalf("ZeroAxis(1) left position %+v, want X/Z unchanged and Y zeroed", pos)
	}
}

func TestDirectionBitsCarriedOnSpacerPulses(t *testing.T) {
	cfg := testCfg()
	shadow := segment.StepperBlockShadow{
		StepCount:      [3]uint32{1, 0, 0},
		StepEventCount: 4,
		DirectionBits:  0b001,
	}
	src := &fakeSource{
		segs:    []segment.Segment{{NStep: 1, CyclesPerTick: 3, ShadowIndex: 0}},
		shadows: []segment.StepperBlockShadow{shadow},
	}
	dev := &fakePulseWriter{}
	sg := New(cfg, src, dev, nil)
	sg.running = true

	for i := 0; i < 3; i++ {
		sg.Tick()
	}

	if len(dev.pulses) != 3 {
		t.Fatalf("expected 3 pulses, got %d", len(dev.pulses))
	}
	for i, p := range dev.pulses {
		if p&(1<<dirBitShift) == 0 {
			t.Fatalf("pulse %d missing direction bit: %08b", i, p)
		}
	}
}

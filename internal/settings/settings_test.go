/*
 * lasercnc motioncore - Machine settings.
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

package settings

import "testing"

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadRingSize(t *testing.T) {
	m := Default()
	m.PlannerRingSize = 1
	if err := m.Validate(); err == nil {
		t.Fatalf("expected error for undersized planner ring")
	}
}

func TestValidateRejectsZeroAcceleration(t *testing.T) {
	m := Default()
	m.Axes[AxisX].Acceleration = 0
	if err := m.Validate(); err == nil {
		t.Fatalf("expected error for zero acceleration")
	}
}

func TestLoadWithoutPathReturnsDefault(t *testing.T) {
	m, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.StepFrequencyHz != Default().StepFrequencyHz {
		t.Fatalf("expected default step frequency, got %d", m.StepFrequencyHz)
	}
}

func TestDTSegment(t *testing.T) {
	m := Default()
	m.AccelerationTicksPerSec = 100
	got := m.DTSegment()
	want := 1.0 / (100.0 * 60.0)
	if got != want {
		t.Fatalf("DTSegment() = %v, want %v", got, want)
	}
}

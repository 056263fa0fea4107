/*
 * lasercnc motioncore - G-code parser.
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

package gcode

import (
	"math"
	"testing"
)

type fakeSink struct {
	lines []Position
	data  []LineData
}

func (f *fakeSink) PlanLine(target Position, data LineData) (bool, error) {
	f.lines = append(f.lines, target)
	f.data = append(f.data, data)
	return true, nil
}

func (f *fakeSink) SystemState() string { return "Idle" }

func TestGroomStripsCommentsAndWhitespace(t *testing.T) {
	got := Groom(" g0 x10 (comment) y20 ; trailing\n")
	want := "G0X10Y20"
	if got != want {
		t.Fatalf("Groom() = %q, want %q", got, want)
	}
}

func TestTokenizeLinearMove(t *testing.T) {
	words, st := Tokenize("G0X100Y0F0")
	if st != StatusOK {
		t.Fatalf("unexpected status %v", st)
	}
	if len(words) != 4 {
		t.Fatalf("expected 4 words, got %d: %+v", len(words), words)
	}
	if words[1].Letter != 'X' || words[1].IntPart != 100 {
		t.Fatalf("unexpected word: %+v", words[1])
	}
}

func TestTokenizeBadNumber(t *testing.T) {
	_, st := Tokenize("G0X1.2.3")
	if st != StatusBadNumberFormat {
		t.Fatalf("expected bad-number-format, got %v", st)
	}
}

// Scenario 1 from spec.md §8: Linear G0.
func TestLinearG0Scenario(t *testing.T) {
	st := NewState()
	sink := &fakeSink{}
	_, status := ParseLine(st, "G0 X100 Y0 F0", sink, nil, ArcConfig{ArcToleranceMM: 0.002})
	if status != StatusOK {
		t.Fatalf("unexpected status %v", status)
	}
	if len(sink.lines) != 1 {
		t.Fatalf("expected one planned line, got %d", len(sink.lines))
	}
	got := sink.lines[0]
	want := Position{100, 0, 0}
	if got != want {
		t.Fatalf("target = %v, want %v", got, want)
	}
}

// Scenario 3 from spec.md §8: modal violation.
func TestModalGroupViolation(t *testing.T) {
	st := NewState()
	sink := &fakeSink{}
	newSt, status := ParseLine(st, "G0 G1 X1", sink, nil, ArcConfig{})
	if status != StatusModalGroupViolation {
		t.Fatalf("expected modal-group-violation, got %v", status)
	}
	if newSt != st {
		t.Fatalf("state must be unchanged on rejection")
	}
	if len(sink.lines) != 0 {
		t.Fatalf("no block should be queued on rejection")
	}
}

func TestWordRepeated(t *testing.T) {
	st := NewState()
	_, status := ParseLine(st, "G1 X1 X2", &fakeSink{}, nil, ArcConfig{})
	if status != StatusWordRepeated {
		t.Fatalf("expected word-repeated, got %v", status)
	}
}

func TestNegativeFeedRejected(t *testing.T) {
	st := NewState()
	_, status := ParseLine(st, "G1 X1 F-10", &fakeSink{}, nil, ArcConfig{})
	if status != StatusNegativeValue {
		t.Fatalf("expected negative-value, got %v", status)
	}
}

func TestNoAxisWords(t *testing.T) {
	st := NewState()
	_, status := ParseLine(st, "G1 F100", &fakeSink{}, nil, ArcConfig{})
	if status != StatusNoAxisWords {
		t.Fatalf("expected no-axis-words, got %v", status)
	}
}

func TestInchConversion(t *testing.T) {
	st := NewState()
	sink := &fakeSink{}
	st2, status := ParseLine(st, "G20 G1 X1 F10", sink, nil, ArcConfig{})
	if status != StatusOK {
		t.Fatalf("unexpected status %v", status)
	}
	if st2.Units != UnitsInches {
		t.Fatalf("expected inches units")
	}
	got := sink.lines[0][0]
	want := 25.4
	if got != want {
		t.Fatalf("X = %v, want %v", got, want)
	}
}

// Parser round-trip property from spec.md §8.
func TestParserRoundTrip(t *testing.T) {
	st := NewState()
	sink := &fakeSink{}
	st1, status := ParseLine(st, "G21 G90 G1 X10 Y10 F100", sink, nil, ArcConfig{})
	if status != StatusOK {
		t.Fatalf("unexpected status %v", status)
	}
	st2, status := ParseLine(st1, "G21 G90 G1 X10 Y10 F100", sink, nil, ArcConfig{})
	if status != StatusOK {
		t.Fatalf("unexpected status %v", status)
	}
	if st1.Units != st2.Units || st1.Distance != st2.Distance || st1.FeedRate != st2.FeedRate {
		t.Fatalf("repeated identical line should yield identical modal state: %+v vs %+v", st1, st2)
	}
}

// Scenario 2 from spec.md §8: full-circle arc.
func TestArcFullCircle(t *testing.T) {
	st := NewState()
	st.Position = Position{200, 135, 0}
	sink := &fakeSink{}
	_, status := ParseLine(st, "G2 X200 Y135 I50 J0 F3000", sink, nil, ArcConfig{ArcToleranceMM: 0.002})
	if status != StatusOK {
		t.Fatalf("unexpected status %v", status)
	}
	if len(sink.lines) < 200 {
		t.Fatalf("expected at least 200 segments for r=50 tol=0.002, got %d", len(sink.lines))
	}

	// sum of chord lengths should approximate circumference within 1%.
	total := 0.0
	prev := [2]float64{200, 135}
	for _, p := range sink.lines {
		cur := [2]float64{p[0], p[1]}
		total += math.Hypot(cur[0]-prev[0], cur[1]-prev[1])
		prev = cur
	}
	circumference := 2 * math.Pi * 50
	if total < circumference*0.99 || total > circumference*1.01 {
		t.Fatalf("chord length sum %v not within 1%% of circumference %v", total, circumference)
	}
}

/*
 * lasercnc motioncore - Parser modal state.
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

// Modal groups, per spec.md §3 "Parser state". Each is a small closed
// enum so a duplicate-word / conflicting-group check is a plain
// comparison, matching the "canonical ordering" semantic pass in
// spec.md §4.1.
type MotionMode int

const (
	MotionNone MotionMode = iota
	MotionRapid
	MotionLinear
	MotionArcCW
	MotionArcCCW
	MotionProbe
	MotionCancel
)

type FeedRateMode int

const (
	FeedRateUnitsPerMinute FeedRateMode = iota
	FeedRateInverseTime
)

type Units int

const (
	UnitsMillimeters Units = iota
	UnitsInches
)

type DistanceMode int

const (
	DistanceAbsolute DistanceMode = iota
	DistanceIncremental
)

type Plane int

const (
	PlaneXY Plane = iota
	PlaneZX
	PlaneYZ
)

type ProgramFlow int

const (
	ProgramRunning ProgramFlow = iota
	ProgramPaused
	ProgramStopped
)

type CoolantState int

const (
	CoolantOff CoolantState = iota
	CoolantFlood
	CoolantMist
)

type SpindleState int

const (
	SpindleOff SpindleState = iota
	SpindleCW
	SpindleCCW
)

// Condition bits carried on a planner line-data record, per spec.md §3.
type ConditionBits uint8

const (
	CondRapid ConditionBits = 1 << iota
	CondInverseTime
	CondSystemMotion
	CondSpindleSense
	CondCoolantSense
)

// Position is a machine position in millimetres, per spec.md §3.
type Position [3]float64

// State is the persistent modal settings surviving between lines,
// per spec.md §3 "Parser state".
type State struct {
	Motion     MotionMode
	FeedMode   FeedRateMode
	Units      Units
	Distance   DistanceMode
	Plane      Plane
	WCSIndex   int
	Flow       ProgramFlow
	Coolant    CoolantState
	Spindle    SpindleState

	SpindleSpeed float64
	FeedRate     float64 // current feed rate, units/min or inverse-time depending on FeedMode
	LastLineNum  int
	Position     Position // interpreter's tool position, millimetres
}

// NewState returns the power-on modal defaults.
func NewState() *State {
	return &State{
		Motion:   MotionNone,
		FeedMode: FeedRateUnitsPerMinute,
		Units:    UnitsMillimeters,
		Distance: DistanceAbsolute,
		Plane:    PlaneXY,
	}
}

// Clone returns a deep copy suitable for a scratch parser block that
// is discarded if the line is rejected (spec.md §3).
func (s *State) Clone() *State {
	c := *s
	return &c
}

// LineData is the feed/spindle/condition descriptor handed to the
// planner alongside a target, per spec.md §4.2 plan_buffer_line.
type LineData struct {
	Feed          float64
	Spindle       float64
	Condition     ConditionBits
	LineNumber    int
}

// MotionSink is the planner/motion-control layer the parser dispatches
// accepted motion to. Kept as an interface in this package so the
// parser never imports internal/planner directly (the coupling runs
// the other way: cmd/lasercnc wires a *planner.Planner in as a
// gcode.MotionSink).
type MotionSink interface {
	PlanLine(target Position, data LineData) (queued bool, err error)
	SystemState() string
}

// Dwell is invoked for G4 dwells; kept distinct from motion so a
// system that wants to poll state during a dwell (spec.md §5
// "Dwells poll the system state every 50 ms") can do so without
// touching the planner ring.
type Dwell interface {
	DwellSeconds(seconds float64) error
}

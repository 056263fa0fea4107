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

import "math"

// ArcConfig carries the settings the parser needs for arc generation;
// internal/machine builds one from settings.Machine.
type ArcConfig struct {
	ArcToleranceMM float64
}

// modal group ids used only to detect duplicate-group violations
// within a single line, per spec.md §4.1 step 2.
type group int

const (
	groupNonModal group = iota
	groupMotion
	groupPlane
	groupDistance
	groupFeedMode
	groupUnits
	groupProgramFlow
	groupSpindle
	groupCoolant
)

// gWord classifies a G word into (group, semantic code).
func gWord(w Word) (group, int, Status) {
	switch w.IntPart {
	case 4, 10, 28, 30, 53, 92:
		return groupNonModal, w.IntPart, StatusOK
	case 0:
		return groupMotion, 0, StatusOK
	case 1:
		return groupMotion, 1, StatusOK
	case 2:
		return groupMotion, 2, StatusOK
	case 3:
		return groupMotion, 3, StatusOK
	case 38:
		switch w.Mantissa100 {
		case 20:
			return groupMotion, 382, StatusOK
		case 30:
			return groupMotion, 383, StatusOK
		}
		return 0, 0, StatusUnsupportedCommand
	case 80:
		return groupMotion, 80, StatusOK
	case 17:
		return groupPlane, int(PlaneXY), StatusOK
	case 18:
		return groupPlane, int(PlaneZX), StatusOK
	case 19:
		return groupPlane, int(PlaneYZ), StatusOK
	case 20:
		return groupUnits, int(UnitsInches), StatusOK
	case 21:
		return groupUnits, int(UnitsMillimeters), StatusOK
	case 90:
		return groupDistance, int(DistanceAbsolute), StatusOK
	case 91:
		return groupDistance, int(DistanceIncremental), StatusOK
	case 93:
		return groupFeedMode, int(FeedRateInverseTime), StatusOK
	case 94:
		return groupFeedMode, int(FeedRateUnitsPerMinute), StatusOK
	default:
		return 0, 0, StatusUnsupportedCommand
	}
}

func mWord(w Word) (group, int, Status) {
	switch w.IntPart {
	case 0, 1, 2, 30:
		return groupProgramFlow, w.IntPart, StatusOK
	case 3:
		return groupSpindle, int(SpindleCW), StatusOK
	case 4:
		return groupSpindle, int(SpindleCCW), StatusOK
	case 5:
		return groupSpindle, int(SpindleOff), StatusOK
	case 7:
		return groupCoolant, int(CoolantMist), StatusOK
	case 8:
		return groupCoolant, int(CoolantFlood), StatusOK
	case 9:
		return groupCoolant, int(CoolantOff), StatusOK
	default:
		return 0, 0, StatusUnsupportedCommand
	}
}

// wordSet tracks which value letters have already appeared on this
// line, for the duplicate-word check in spec.md §4.1 step 2.
type wordSet struct {
	seen [26]bool
}

func (ws *wordSet) mark(letter byte) bool {
	idx := letter - 'A'
	if ws.seen[idx] {
		return false
	}
	ws.seen[idx] = true
	return true
}

// Parse runs the full semantic pass over a tokenized, groomed line
// against the given modal state, per spec.md §4.1. On success it
// returns the updated state (a clone; the caller's state is never
// mutated in place so a rejected line cannot leave partial effects,
// per spec.md §8's parser round-trip property). On error the
// original state is returned unchanged.
func Parse(current *State, words []Word, sink MotionSink, dwell Dwell, cfg ArcConfig) (*State, Status) {
	if len(words) == 0 {
		return current, StatusOK
	}

	st := current.Clone()

	var ws wordSet
	var gWords, mWords []Word
	var nonModalCode int = -1
	var motionCode int = -1
	var lineNumber = -1
	axisVal := map[byte]float64{}
	var haveAxis [6]bool // X Y Z I J K
	var feedVal, spindleVal float64
	var haveFeed, haveSpindle, haveRadius bool
	var radiusVal float64
	var pVal float64
	var haveP bool

	axisIndex := func(l byte) int {
		switch l {
		case 'X':
			return 0
		case 'Y':
			return 1
		case 'Z':
			return 2
		case 'I':
			return 3
		case 'J':
			return 4
		case 'K':
			return 5
		}
		return -1
	}

	for _, w := range words {
		switch w.Letter {
		case 'G':
			g, code, st2 := gWord(w)
			if st2 != StatusOK {
				return current, st2
			}
			for _, prev := range gWords {
				pg, _, _ := gWord(prev)
				if pg == g && g != groupNonModal {
					return current, StatusModalGroupViolation
				}
			}
			gWords = append(gWords, w)
			switch g {
			case groupNonModal:
				nonModalCode = code
			case groupMotion:
				motionCode = code
			case groupPlane:
				st.Plane = Plane(code)
			case groupUnits:
				st.Units = Units(code)
			case groupDistance:
				st.Distance = DistanceMode(code)
			case groupFeedMode:
				st.FeedMode = FeedRateMode(code)
			}
		case 'M':
			g, code, st2 := mWord(w)
			if st2 != StatusOK {
				return current, st2
			}
			for _, prev := range mWords {
				pg, _, _ := mWord(prev)
				if pg == g {
					return current, StatusModalGroupViolation
				}
			}
			mWords = append(mWords, w)
			switch g {
			case groupProgramFlow:
				switch code {
				case 0:
					st.Flow = ProgramPaused
				case 1:
					st.Flow = ProgramPaused
				case 2, 30:
					st.Flow = ProgramStopped
				}
			case groupSpindle:
				st.Spindle = SpindleState(code)
			case groupCoolant:
				if code == int(CoolantOff) {
					st.Coolant = CoolantOff
				} else {
					st.Coolant = CoolantState(code)
				}
			}
		case 'X', 'Y', 'Z', 'I', 'J', 'K':
			if !ws.mark(w.Letter) {
				return current, StatusWordRepeated
			}
			haveAxis[axisIndex(w.Letter)] = true
			axisVal[w.Letter] = w.Value
		case 'R':
			if !ws.mark('R') {
				return current, StatusWordRepeated
			}
			haveRadius = true
			radiusVal = w.Value
		case 'F':
			if !ws.mark('F') {
				return current, StatusWordRepeated
			}
			if w.Value < 0 {
				return current, StatusNegativeValue
			}
			haveFeed = true
			feedVal = w.Value
		case 'S':
			if !ws.mark('S') {
				return current, StatusWordRepeated
			}
			if w.Value < 0 {
				return current, StatusNegativeValue
			}
			haveSpindle = true
			spindleVal = w.Value
		case 'P':
			if !ws.mark('P') {
				return current, StatusWordRepeated
			}
			if w.Value < 0 {
				return current, StatusNegativeValue
			}
			haveP = true
			pVal = w.Value
		case 'N':
			if !ws.mark('N') {
				return current, StatusWordRepeated
			}
			if w.Value < 0 {
				return current, StatusInvalidLineNumber
			}
			if w.Value != math.Trunc(w.Value) {
				return current, StatusCommandValueNotInteger
			}
			lineNumber = int(w.Value)
		default:
			return current, StatusUnusedWords
		}
	}

	if lineNumber >= 0 {
		st.LastLineNum = lineNumber
	}

	// Unit conversion: inch inputs convert to millimetres for X/Y/Z/R,
	// per spec.md §4.1 step 3.
	toMM := func(v float64) float64 {
		if st.Units == UnitsInches {
			return v * 25.4
		}
		return v
	}
	for _, l := range []byte{'X', 'Y', 'Z', 'I', 'J', 'K'} {
		if v, ok := axisVal[l]; ok {
			axisVal[l] = toMM(v)
		}
	}
	if haveRadius {
		radiusVal = toMM(radiusVal)
	}

	// Feed-rate propagation: feed carries over between G93/G94, but
	// never across an inverse-time line (spec.md §4.1 step 3).
	if haveFeed {
		if st.FeedMode == FeedRateUnitsPerMinute {
			st.FeedRate = toMM(feedVal)
		} else {
			st.FeedRate = feedVal // inverse-time units, not a length
		}
	} else if st.FeedMode == FeedRateInverseTime {
		// inverse-time feed never carries over; an inverse-time move
		// with no F word on this line is a hard error.
		if motionCode == 1 || motionCode == 2 || motionCode == 3 {
			return current, StatusUndefinedFeedRate
		}
	}
	if haveSpindle {
		st.SpindleSpeed = spindleVal
	}

	anyAxis := haveAxis[0] || haveAxis[1] || haveAxis[2]

	// Dwell, per spec.md §4.1 step 5.
	if nonModalCode == 4 {
		if !haveP {
			return current, StatusValueWordMissing
		}
		if dwell != nil {
			if err := dwell.DwellSeconds(pVal); err != nil {
				return current, StatusInvalidStatement
			}
		}
		return st, StatusOK
	}

	// G92/G10/G28/G30/G53 are accepted syntactically but their
	// machine-level effect (work-coordinate offsets, reference moves)
	// is out of scope per spec.md §1 Non-goals ("persisting
	// work-coordinate offsets"); treat as a state-only acknowledgement
	// so the line is not rejected outright.
	if nonModalCode == 92 || nonModalCode == 10 || nonModalCode == 28 ||
		nonModalCode == 30 || nonModalCode == 53 {
		return st, StatusOK
	}

	if motionCode == -1 {
		// no motion word: modal changes only (units, plane, feed
		// mode, spindle, coolant, program flow) with no target.
		return st, StatusOK
	}

	if motionCode == 80 {
		st.Motion = MotionCancel
		return st, StatusOK
	}

	if !anyAxis && motionCode != 382 && motionCode != 383 {
		return current, StatusNoAxisWords
	}

	target := st.Position
	setAxis := func(idx int, letter byte) {
		if !haveAxis[idx] {
			return
		}
		if st.Distance == DistanceAbsolute {
			target[idx] = axisVal[letter]
		} else {
			target[idx] = st.Position[idx] + axisVal[letter]
		}
	}
	setAxis(0, 'X')
	setAxis(1, 'Y')
	setAxis(2, 'Z')

	cond := ConditionBits(0)
	if st.FeedMode == FeedRateInverseTime {
		cond |= CondInverseTime
	}
	if st.Spindle != SpindleOff {
		cond |= CondSpindleSense
	}
	if st.Coolant != CoolantOff {
		cond |= CondCoolantSense
	}

	switch motionCode {
	case 0:
		st.Motion = MotionRapid
		data := LineData{Feed: st.FeedRate, Spindle: st.SpindleSpeed, Condition: cond | CondRapid, LineNumber: st.LastLineNum}
		if sink != nil {
			if _, err := sink.PlanLine(target, data); err != nil {
				return current, StatusInvalidTarget
			}
		}
		st.Position = target

	case 1:
		st.Motion = MotionLinear
		data := LineData{Feed: st.FeedRate, Spindle: st.SpindleSpeed, Condition: cond, LineNumber: st.LastLineNum}
		if sink != nil {
			if _, err := sink.PlanLine(target, data); err != nil {
				return current, StatusInvalidTarget
			}
		}
		st.Position = target

	case 2, 3:
		st.Motion = MotionArcCW
		if motionCode == 3 {
			st.Motion = MotionArcCCW
		}
		a0, a1, helix := arcAxes(st.Plane)
		start2 := [2]float64{st.Position[a0], st.Position[a1]}
		end2 := [2]float64{target[a0], target[a1]}

		var params arcParams
		var pstat Status
		if haveRadius {
			params, pstat = resolveArcR(start2, end2, radiusVal, motionCode == 2)
		} else {
			i, j := arcOffsetLetters(st.Plane)
			iv, jv := axisVal[i], axisVal[j]
			if _, ok := axisVal[i]; !ok {
				return current, StatusNoOffsetsInPlane
			}
			if _, ok := axisVal[j]; !ok {
				return current, StatusNoOffsetsInPlane
			}
			params, pstat = resolveArcIJK(start2, end2, iv, jv, motionCode == 2)
		}
		if pstat != StatusOK {
			return current, pstat
		}

		// an inverse-time F covers the whole arc, so each of its N
		// segments is planned at N*F to keep the arc's time at 1/F.
		nSeg := segmentCount(params.radius, sweepAngle(params.center, start2, end2, params.clockwise), cfg.ArcToleranceMM)
		lastPt := start2
		helixStart := st.Position[helix]
		helixEnd := target[helix]
		GenerateArc(params, start2, end2, helixStart, helixEnd, cfg.ArcToleranceMM, func(pt [2]float64, h float64) {
			var p Position
			p[a0], p[a1], p[helix] = pt[0], pt[1], h
			feed := st.FeedRate
			if st.FeedMode == FeedRateInverseTime {
				feed = st.FeedRate * float64(nSeg)
			}
			data := LineData{Feed: feed, Spindle: st.SpindleSpeed, Condition: cond, LineNumber: st.LastLineNum}
			if sink != nil {
				sink.PlanLine(p, data)
			}
			lastPt = pt
		})
		_ = lastPt
		st.Position = target

	case 382, 383:
		// probe moves: treated as ordinary linear moves at the
		// current feed, since the probe-trigger collaborator (an
		// input-event reader) lives outside this spec's scope.
		data := LineData{Feed: st.FeedRate, Spindle: st.SpindleSpeed, Condition: cond, LineNumber: st.LastLineNum}
		if sink != nil {
			if _, err := sink.PlanLine(target, data); err != nil {
				return current, StatusInvalidTarget
			}
		}
		st.Position = target
	}

	return st, StatusOK
}

func arcOffsetLetters(p Plane) (byte, byte) {
	switch p {
	case PlaneZX:
		return 'K', 'I'
	case PlaneYZ:
		return 'J', 'K'
	default:
		return 'I', 'J'
	}
}

// ParseLine grooms, tokenizes, and parses a raw line in one call,
// matching the external CLI's "one text line" contract in spec.md §6.
func ParseLine(current *State, raw string, sink MotionSink, dwell Dwell, cfg ArcConfig) (*State, Status) {
	groomed := Groom(raw)
	if groomed == "" {
		return current, StatusOK
	}
	words, st := Tokenize(groomed)
	if st != StatusOK {
		return current, st
	}
	return Parse(current, words, sink, dwell, cfg)
}

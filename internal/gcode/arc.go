/*
 * lasercnc motioncore - Arc expansion.
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

	"github.com/orsinium-labs/tinymath"
)

// nArcCorrection is the number of segments generated between exact
// trig refreshes, per spec.md §4.1 "Arc generation": the small-angle
// rotation is applied via tinymath for nArcCorrection steps, then the
// radius vector is recomputed exactly to bound accumulated error.
const nArcCorrection = 12

// arcAxes resolves the two in-plane axis indices and the helix axis
// for a plane selection, per spec.md §4.1 step 4 ("resolve plane axes
// XY / ZX / YZ").
func arcAxes(plane Plane) (a0, a1, helix int) {
	switch plane {
	case PlaneZX:
		return 2, 0, 1
	case PlaneYZ:
		return 1, 2, 0
	default:
		return 0, 1, 2
	}
}

// arcParams is the resolved geometry of an approved arc.
type arcParams struct {
	center   [2]float64 // in-plane centre, in the plane's (a0, a1) axes
	radius   float64
	clockwise bool
}

// resolveArcIJK verifies the two radii to start and end agree to
// within spec.md's tolerance (0.5mm or 0.1% of radius, whichever is
// tighter above 0.005mm), per spec.md §4.1 step 4.
func resolveArcIJK(start, end [2]float64, i, j float64, clockwise bool) (arcParams, Status) {
	center := [2]float64{start[0] + i, start[1] + j}
	r1 := math.Hypot(start[0]-center[0], start[1]-center[1])
	r2 := math.Hypot(end[0]-center[0], end[1]-center[1])

	delta := math.Abs(r1 - r2)
	tolerance := 0.001 * r1
	if tolerance > 0.5 {
		tolerance = 0.5
	}
	if tolerance < 0.005 {
		tolerance = 0.005
	}
	if delta > tolerance {
		return arcParams{}, StatusArcRadiusError
	}

	return arcParams{center: center, radius: (r1 + r2) / 2, clockwise: clockwise}, StatusOK
}

// resolveArcR resolves the arc centre from R-form, chord-solution with
// sign handled by direction and R sign, per spec.md §4.1 step 4.
func resolveArcR(start, end [2]float64, r float64, clockwise bool) (arcParams, Status) {
	if r == 0 {
		return arcParams{}, StatusArcRadiusError
	}
	dx := end[0] - start[0]
	dy := end[1] - start[1]
	d := math.Hypot(dx, dy)
	if d == 0 {
		return arcParams{}, StatusArcRadiusError
	}

	absR := math.Abs(r)
	if d/2 > absR {
		return arcParams{}, StatusArcRadiusError
	}

	h := math.Sqrt(absR*absR - (d/2)*(d/2))
	mx, my := (start[0]+end[0])/2, (start[1]+end[1])/2
	ux, uy := -dy/d, dx/d // unit perpendicular to chord

	// Negative R (grbl convention) selects the far-side centre; the
	// direction (CW/CCW) selects which perpendicular side.
	sign := 1.0
	if (r < 0) != clockwise {
		sign = -1.0
	}

	cx := mx + sign*h*ux
	cy := my + sign*h*uy

	return arcParams{center: [2]float64{cx, cy}, radius: absR, clockwise: clockwise}, StatusOK
}

// sweepAngle returns the angle traversed from start to end around
// center, in the requested rotational sense, always positive and in
// (0, 2*pi], with 2*pi meaning a full circle (start == end).
func sweepAngle(center, start, end [2]float64, clockwise bool) float64 {
	a0 := math.Atan2(start[1]-center[1], start[0]-center[0])
	a1 := math.Atan2(end[1]-center[1], end[0]-center[0])

	var theta float64
	if clockwise {
		theta = a0 - a1
	} else {
		theta = a1 - a0
	}
	for theta <= 0 {
		theta += 2 * math.Pi
	}
	if start == end {
		theta = 2 * math.Pi
	}
	return theta
}

// segmentCount chooses N so the chordal error stays below
// arcTolerance, per spec.md §4.1.
func segmentCount(radius, theta, arcTolerance float64) int {
	if arcTolerance <= 0 {
		arcTolerance = 0.002
	}
	// chordal error e = r * (1 - cos(theta_seg/2)) => theta_seg = 2*acos(1 - e/r)
	ratio := 1 - arcTolerance/radius
	if ratio < -1 {
		ratio = -1
	}
	if ratio > 1 {
		ratio = 1
	}
	thetaPerSeg := 2 * math.Acos(ratio)
	if thetaPerSeg <= 0 {
		thetaPerSeg = theta
	}
	n := int(math.Ceil(theta / thetaPerSeg))
	if n < 1 {
		n = 1
	}
	return n
}

// GenerateArc decomposes an approved arc into N straight segments and
// calls emit(point, helixZ) for each, in order, per spec.md §4.1. It
// returns the achieved segment count N and 1/N, the fraction of the
// arc each segment covers. For inverse-time feed the parser plans each
// segment at N times the programmed F, so the whole arc keeps its
// programmed duration.
func GenerateArc(p arcParams, start, end [2]float64, helixStart, helixEnd float64, arcTolerance float64, emit func(pt [2]float64, helix float64)) (n int, feedScale float64) {
	theta := sweepAngle(p.center, start, end, p.clockwise)
	n = segmentCount(p.radius, theta, arcTolerance)
	dTheta := theta / float64(n)
	if p.clockwise {
		dTheta = -dTheta
	}

	rx := start[0] - p.center[0]
	ry := start[1] - p.center[1]
	helixStep := (helixEnd - helixStart) / float64(n)

	// per-step rotation coefficients, computed once with tinymath's
	// cheap trig and applied incrementally between exact refreshes.
	cosT, sinT := tinymath.Cos(float32(dTheta)), tinymath.Sin(float32(dTheta))

	for i := 1; i < n; i++ {
		if i%nArcCorrection == 0 {
			// exact refresh using the real math package
			angle := dTheta * float64(i)
			ca, sa := math.Cos(angle), math.Sin(angle)
			rx0 := start[0] - p.center[0]
			ry0 := start[1] - p.center[1]
			rx = rx0*ca - ry0*sa
			ry = rx0*sa + ry0*ca
		} else {
			nrx := rx*float64(cosT) - ry*float64(sinT)
			nry := rx*float64(sinT) + ry*float64(cosT)
			rx, ry = nrx, nry
		}
		emit([2]float64{p.center[0] + rx, p.center[1] + ry}, helixStart+helixStep*float64(i))
	}
	emit(end, helixEnd)

	feedScale = 1.0
	if n > 0 {
		feedScale = 1.0 / float64(n)
	}
	return n, feedScale
}

/*
 * lasercnc motioncore - Line dispatch and status reporting.
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

// Package cli implements the line-oriented command dispatch and
// status-report formatting shared by every transport (serial, TCP),
// per spec.md §6. Neither transport in this repository contains any
// of this logic; they only frame lines. Grounded on the teacher's
// command/command package (a registered-verb dispatch table over a
// line reader) and command/reader (line framing), generalized from
// the S/370 console command set to G-code-plus-realtime-overrides.
package cli

import (
	"fmt"
	"strings"

	"github.com/lasercnc/motioncore/internal/fsm"
	"github.com/lasercnc/motioncore/internal/gcode"
)

// Machine is the subset of the wired system the dispatcher needs.
// cmd/lasercnc supplies the concrete implementation.
type Machine interface {
	// Line feeds one line of G-code through the parser/planner.
	Line(raw string) gcode.Status
	// CheckLine runs the parser-only "$C" dry pass: semantic validation
	// and arc generation, but no planner insertion.
	CheckLine(raw string) gcode.Status

	FeedHold()
	// CycleStart attempts a `~` cycle-start/resume. It returns an error
	// when the system state does not accept a run request (spec.md §8
	// scenario 4: `~` while homing is unsupported-command, not a
	// silent no-op).
	CycleStart() error
	Reset()
	Home() error
	Sleep()

	// StatusReport returns the formatted `<state,MPos:..>` snapshot,
	// including the buffer-occupancy extras from SPEC_FULL.md §D.
	StatusReport() string

	AdoptedState() fsm.State
}

// Dispatch interprets one input line per spec.md §6: a leading
// realtime character (`!`, `~`, `?`) acts immediately, as does a line
// that is exactly `X` (reset); `$`-words
// are system commands; anything else is G-code (or a check-mode pass
// under `$C`). Returns the line to write back to the transport.
func Dispatch(m Machine, line string) string {
	trimmed := strings.TrimRight(line, "\r\n")
	if trimmed == "" {
		return ""
	}

	// Reset (`X`) is matched against the whole token, not just its
	// leading byte: unlike `!`/`~`/`?`, which are never valid G-code
	// letters, `X` is also a legitimate axis word, so "X100" under an
	// active G1 must parse as a move, not a soft reset.
	if trimmed == "X" {
		m.Reset()
		return "ok"
	}

	switch trimmed[0] {
	case '!':
		m.FeedHold()
		return "ok"
	case '~':
		if err := m.CycleStart(); err != nil {
			return formatStatus(gcode.StatusUnsupportedCommand)
		}
		return "ok"
	case '?':
		return m.StatusReport()
	}

	if strings.HasPrefix(trimmed, "$") {
		return dispatchSystemCommand(m, trimmed)
	}

	st := m.Line(trimmed)
	return formatStatus(st)
}

func dispatchSystemCommand(m Machine, cmd string) string {
	switch strings.ToUpper(cmd) {
	case "$H":
		if err := m.Home(); err != nil {
			return fmt.Sprintf("[MSG:homing failed: %s]", err)
		}
		return "ok"
	case "$":
		return "[HLP:!~?$H$T$SLP$CX]"
	case "$T":
		return "[MSG:test]"
	case "$SLP":
		m.Sleep()
		return "ok"
	default:
		if strings.HasPrefix(strings.ToUpper(cmd), "$C") {
			return formatStatus(m.CheckLine(strings.TrimSpace(cmd[2:])))
		}
		return formatStatus(gcode.StatusUnsupportedCommand)
	}
}

// formatStatus renders a parser/planner Status as a wire message, per
// spec.md §6: "ok" on success, "error:<n>" otherwise.
func formatStatus(st gcode.Status) string {
	if st == gcode.StatusOK {
		return "ok"
	}
	return fmt.Sprintf("error:%d", int(st))
}

// FormatAlarm renders an FSM alarm transition as a wire message.
func FormatAlarm(code int) string {
	return fmt.Sprintf("ALARM:%d", code)
}

// Banner is the welcome banner sent at connection start, per spec.md
// §6.
func Banner(version string) string {
	return fmt.Sprintf("[MSG:lasercnc motioncore %s]", version)
}

// stateLabel maps an fsm.State to the status-report vocabulary from
// spec.md §6 (`Init/Idle/Run/Home/Hold/Fault/Sleep`), per spec.md §9's
// documented fix: Run and Alarm must not share a label.
func stateLabel(s fsm.State) string {
	switch s {
	case fsm.StateInit, fsm.StateUninitialized, fsm.StateNoRequest:
		return "Init"
	case fsm.StateIdle:
		return "Idle"
	case fsm.StateRun:
		return "Run"
	case fsm.StateHoming:
		return "Home"
	case fsm.StateHold:
		return "Hold"
	case fsm.StateAlarm:
		return "Alarm"
	case fsm.StateFault:
		return "Fault"
	case fsm.StateSleep:
		return "Sleep"
	default:
		return "Init"
	}
}

// FormatStatusReport builds `<state,MPos:x,y,z>` plus the
// buffer-occupancy extras from SPEC_FULL.md §D:
// `<state,MPos:x,y,z,Bf:plannerFree,segmentFree>`.
func FormatStatusReport(state fsm.State, pos [3]float64, plannerFree, segmentFree int) string {
	return fmt.Sprintf("<%s,MPos:%.3f,%.3f,%.3f,Bf:%d,%d>",
		stateLabel(state), pos[0], pos[1], pos[2], plannerFree, segmentFree)
}

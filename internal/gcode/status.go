/*
 * lasercnc motioncore - Parser status codes.
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

// Status is the closed set of diagnostic outcome kinds a parsed line
// can report, per spec.md §4.1. Zero value is StatusOK.
type Status int

const (
	StatusOK Status = iota
	StatusExpectedCommandLetter
	StatusBadNumberFormat
	StatusInvalidStatement
	StatusNegativeValue
	StatusIdleError
	StatusSoftLimitError
	StatusOverflow
	StatusMaxStepRateExceeded
	StatusLineLengthExceeded
	StatusTravelExceeded
	StatusUnsupportedCommand
	StatusModalGroupViolation
	StatusUndefinedFeedRate
	StatusCommandValueNotInteger
	StatusAxisCommandConflict
	StatusWordRepeated
	StatusNoAxisWords
	StatusInvalidLineNumber
	StatusValueWordMissing
	StatusAxisWordsExist
	StatusNoAxisWordsInPlane
	StatusInvalidTarget
	StatusArcRadiusError
	StatusNoOffsetsInPlane
	StatusUnusedWords
	StatusMaxValueExceeded
)

var statusNames = map[Status]string{
	StatusOK:                     "ok",
	StatusExpectedCommandLetter:  "expected-command-letter",
	StatusBadNumberFormat:        "bad-number-format",
	StatusInvalidStatement:       "invalid-statement",
	StatusNegativeValue:          "negative-value",
	StatusIdleError:              "idle-error",
	StatusSoftLimitError:         "soft-limit-error",
	StatusOverflow:               "overflow",
	StatusMaxStepRateExceeded:    "max-step-rate-exceeded",
	StatusLineLengthExceeded:     "line-length-exceeded",
	StatusTravelExceeded:         "travel-exceeded",
	StatusUnsupportedCommand:     "unsupported-command",
	StatusModalGroupViolation:    "modal-group-violation",
	StatusUndefinedFeedRate:      "undefined-feed-rate",
	StatusCommandValueNotInteger: "command-value-not-integer",
	StatusAxisCommandConflict:    "axis-command-conflict",
	StatusWordRepeated:           "word-repeated",
	StatusNoAxisWords:            "no-axis-words",
	StatusInvalidLineNumber:      "invalid-line-number",
	StatusValueWordMissing:       "value-word-missing",
	StatusAxisWordsExist:         "axis-words-exist",
	StatusNoAxisWordsInPlane:     "no-axis-words-in-plane",
	StatusInvalidTarget:          "invalid-target",
	StatusArcRadiusError:         "arc-radius-error",
	StatusNoOffsetsInPlane:       "no-offsets-in-plane",
	StatusUnusedWords:            "unused-words",
	StatusMaxValueExceeded:       "max-value-exceeded",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown-error"
}

// IsError reports whether s represents a rejected line.
func (s Status) IsError() bool { return s != StatusOK }

/*
 * lasercnc motioncore - G-code tokenizer.
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

import "strings"

// Word is a single (letter, value) pair extracted from a line, per
// spec.md §4.1 "Tokenisation". IntPart/Mantissa100 are recovered
// separately from Value so callers like the G-word classifier can
// discriminate G38.2 from G38.3 without floating point comparison.
type Word struct {
	Letter      byte
	Value       float64
	IntPart     int
	Mantissa100 int // fractional part * 100, rounded
}

const maxLineLength = 256

// Groom strips comments and whitespace and upper-cases the line, the
// way spec.md §4.1 "Grooming" describes. Block-delete ('/') is left
// in place here; the tokenizer skips it silently.
func Groom(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	inParen := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '(':
			inParen = true
		case c == ')':
			inParen = false
		case c == ';':
			// rest of line is a comment
			i = len(raw)
		case inParen:
			// drop
		case c <= 0x20:
			// C0 whitespace, drop
		default:
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// scanner walks a groomed line, extracting (letter, value) words. Its
// shape — a string plus a cursor, advanced word by word with small
// lookahead helpers — is grounded on command/parser/parser.go's
// cmdLine scanner, generalized from command names to G-code letters.
type scanner struct {
	line string
	pos  int
}

func (s *scanner) eol() bool { return s.pos >= len(s.line) }

func (s *scanner) peek() byte {
	if s.eol() {
		return 0
	}
	return s.line[s.pos]
}

// next extracts the next (letter, value) word. ok is false at EOL.
// st is non-OK if a malformed letter or number was encountered.
func (s *scanner) next() (w Word, ok bool, st Status) {
	if s.eol() {
		return Word{}, false, StatusOK
	}
	c := s.peek()
	if c == '/' {
		// block-delete, ignored silently
		s.pos++
		return s.next()
	}
	if c < 'A' || c > 'Z' {
		return Word{}, false, StatusExpectedCommandLetter
	}
	s.pos++

	val, st := s.readFloat()
	if st != StatusOK {
		return Word{}, false, st
	}

	ip := int(val)
	frac := val - float64(ip)
	if frac < 0 {
		frac = -frac
	}
	mant := int(frac*100 + 0.5)

	return Word{Letter: c, Value: val, IntPart: ip, Mantissa100: mant}, true, StatusOK
}

// readFloat is a fast hand-rolled reader supporting at most one
// decimal point and no scientific notation, per spec.md §4.1.
func (s *scanner) readFloat() (float64, Status) {
	start := s.pos
	neg := false
	if s.peek() == '-' {
		neg = true
		s.pos++
	} else if s.peek() == '+' {
		s.pos++
	}

	sawDigit := false
	var intPart int64
	for !s.eol() && s.line[s.pos] >= '0' && s.line[s.pos] <= '9' {
		intPart = intPart*10 + int64(s.line[s.pos]-'0')
		s.pos++
		sawDigit = true
	}

	var frac float64
	if !s.eol() && s.line[s.pos] == '.' {
		s.pos++
		div := 1.0
		for !s.eol() && s.line[s.pos] >= '0' && s.line[s.pos] <= '9' {
			div *= 10
			frac += float64(s.line[s.pos]-'0') / div
			s.pos++
			sawDigit = true
		}
		// a second decimal point is a malformed number
		if !s.eol() && s.line[s.pos] == '.' {
			return 0, StatusBadNumberFormat
		}
	}

	if !sawDigit {
		s.pos = start
		return 0, StatusBadNumberFormat
	}

	v := float64(intPart) + frac
	if neg {
		v = -v
	}
	return v, StatusOK
}

// Tokenize splits a groomed line into words, per spec.md §4.1.
func Tokenize(groomed string) ([]Word, Status) {
	if len(groomed) > maxLineLength {
		return nil, StatusLineLengthExceeded
	}
	sc := &scanner{line: groomed}
	var words []Word
	for {
		w, ok, st := sc.next()
		if st != StatusOK {
			return nil, st
		}
		if !ok {
			break
		}
		words = append(words, w)
	}
	return words, StatusOK
}

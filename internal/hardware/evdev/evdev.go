/*
 * lasercnc motioncore - Limit switch and e-stop input.
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

// Package evdev decodes typed code/value records from Linux
// input-event devices (type 5 = switch class, per spec.md §6) and
// maintains the limits' and switches' state vectors named in spec.md
// §5 ("one mutex protects the switches' state vector; one mutex
// protects the limits' state vector"). The record decoder's shape is
// grounded on the drivers pack's netlink/probe typed-event decoders;
// the goroutine-per-device read loop follows the teacher's
// telnet/listener.go goroutine-per-source pattern.
package evdev

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// EventType is the Linux input-event type field. Only the switch
// class is consumed here, per spec.md §6.
type EventType uint16

const EvSwitch EventType = 5

// Event is one decoded input-event record (the timestamp is dropped:
// nothing downstream of the vector needs it).
type Event struct {
	Type  EventType
	Code  uint16
	Value int32
}

// rawEvent mirrors struct input_event's on-the-wire layout on a
// 64-bit kernel: a 16-byte timeval followed by type, code, value.
type rawEvent struct {
	Sec, Usec  int64
	Type, Code uint16
	Value      int32
}

// Decoder reads successive Events from a Linux input-event device
// node.
type Decoder struct {
	r io.Reader
}

func NewDecoder(r io.Reader) *Decoder { return &Decoder{r: r} }

// Next blocks for the next record. Returns io.EOF when the device is
// closed out from under it (spec.md §7: "event device closure" is a
// fault).
func (d *Decoder) Next() (Event, error) {
	var raw rawEvent
	if err := binary.Read(d.r, binary.LittleEndian, &raw); err != nil {
		return Event{}, err
	}
	return Event{Type: EventType(raw.Type), Code: raw.Code, Value: raw.Value}, nil
}

// Vector is a bitset of named channels (limit switches or interlock
// switches), guarded by its own mutex per spec.md §5.
type Vector struct {
	mu      sync.Mutex
	state   []bool
	inverts []bool
}

// NewVector builds a Vector of n channels, with inverts[i] true if
// channel i's raw sense should be flipped before being reported set.
func NewVector(n int, inverts []bool) *Vector {
	v := &Vector{state: make([]bool, n), inverts: make([]bool, n)}
	copy(v.inverts, inverts)
	return v
}

// Update applies a decoded switch-class event to channel idx, per
// spec.md §9's documented fix: the invert check must index the
// channel the event is actually about (idx), not an enclosing loop
// counter, which was the source's bug.
func (v *Vector) Update(idx int, raw bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if idx < 0 || idx >= len(v.state) {
		return fmt.Errorf("evdev: channel index %d out of range [0,%d)", idx, len(v.state))
	}
	sense := raw
	if v.inverts[idx] {
		sense = !sense
	}
	v.state[idx] = sense
	return nil
}

// Get reads channel idx's current sense.
func (v *Vector) Get(idx int) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state[idx]
}

// Snapshot copies the whole vector out under lock.
func (v *Vector) Snapshot() []bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]bool, len(v.state))
	copy(out, v.state)
	return out
}

// AnySet reports whether any channel in the vector currently reads
// true.
func (v *Vector) AnySet() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range v.state {
		if s {
			return true
		}
	}
	return false
}

// Watcher runs a per-device read loop, decoding switch-class events
// and applying them to a Vector, per spec.md §6's "input-event
// devices delivering typed code/value records" and §5's per-device
// goroutine model.
type Watcher struct {
	dec    *Decoder
	vec    *Vector
	onFault func(error)
}

// NewWatcher builds a Watcher over an already-open device reader.
func NewWatcher(r io.Reader, vec *Vector, onFault func(error)) *Watcher {
	return &Watcher{dec: NewDecoder(r), vec: vec, onFault: onFault}
}

// Run reads events until the device closes or decoding fails, per
// spec.md §7 treating device closure as a fault. Intended to be
// launched with `go watcher.Run()`.
func (w *Watcher) Run() {
	for {
		ev, err := w.dec.Next()
		if err != nil {
			if w.onFault != nil {
				w.onFault(fmt.Errorf("evdev: device closed: %w", err))
			}
			return
		}
		if ev.Type != EvSwitch {
			continue
		}
		if err := w.vec.Update(int(ev.Code), ev.Value != 0); err != nil && w.onFault != nil {
			w.onFault(err)
		}
	}
}

/*
 * lasercnc motioncore - Pulse FIFO device surface.
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

// Package pulsefifo talks to the step generator's hardware surface
// named in spec.md §6: a byte-oriented pulse FIFO, a state attribute
// file, and enable/disable/run/stop/step-frequency attribute files.
// Its read/write-register framing is grounded on the drivers pack's
// tmc5160/tmc2209 uartcomm.go, adapted from an SPI/UART byte protocol
// to Linux sysfs-style attribute-file I/O, since the real collaborator
// here is a kernel attribute file rather than a wire protocol.
package pulsefifo

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// State mirrors the stepper's sysfs state attribute, per spec.md §6.
type State string

const (
	StateDisabled State = "disabled"
	StateIdle     State = "idle"
	StateRunning  State = "running"
)

// Device is the stepper hardware surface: a pulse FIFO plus its
// control attributes. The pulse FIFO handle is opened once at Open and
// held for the device's lifetime; the attribute files are opened on
// each access. The step generator's fast path only ever calls
// WritePulse.
type Device struct {
	pulse  *os.File
	state  string
	enable string
	disable string
	run    string
	stop   string
	freq   string
}

// Config names the attribute file paths making up one Device.
type Config struct {
	PulsePath   string
	StatePath   string
	EnablePath  string
	DisablePath string
	RunPath     string
	StopPath    string
	FreqPath    string
}

// Open opens the pulse FIFO for writing; the remaining paths are
// recorded and opened on demand by their respective methods, since
// they are written rarely (bring-up/shutdown), not per tick.
func Open(cfg Config) (*Device, error) {
	f, err := os.OpenFile(cfg.PulsePath, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("pulsefifo: open pulse FIFO %q: %w", cfg.PulsePath, err)
	}
	return &Device{
		pulse:   f,
		state:   cfg.StatePath,
		enable:  cfg.EnablePath,
		disable: cfg.DisablePath,
		run:     cfg.RunPath,
		stop:    cfg.StopPath,
		freq:    cfg.FreqPath,
	}, nil
}

// Close releases the pulse FIFO handle.
func (d *Device) Close() error { return d.pulse.Close() }

// WritePulse emits one pulse byte (axis step bits OR'd with direction
// bits), per spec.md §4.4. This is the step generator's fast path:
// a single Write syscall, no allocation.
func (d *Device) WritePulse(b byte) error {
	buf := [1]byte{b}
	_, err := d.pulse.Write(buf[:])
	return err
}

// State reads the stepper's current sysfs state.
func (d *Device) State() (State, error) {
	raw, err := readAttr(d.state)
	if err != nil {
		return "", err
	}
	switch State(raw) {
	case StateDisabled, StateIdle, StateRunning:
		return State(raw), nil
	default:
		return "", fmt.Errorf("pulsefifo: unexpected state attribute %q", raw)
	}
}

// Enable writes "1" to the enable attribute.
func (d *Device) Enable() error { return writeAttr(d.enable, "1") }

// Disable writes "1" to the disable attribute.
func (d *Device) Disable() error { return writeAttr(d.disable, "1") }

// Run writes "1" to the run attribute.
func (d *Device) Run() error { return writeAttr(d.run, "1") }

// Stop writes "1" to the stop attribute.
func (d *Device) Stop() error { return writeAttr(d.stop, "1") }

// SetStepFrequency writes a decimal step-frequency, per spec.md §6.
func (d *Device) SetStepFrequency(hz int) error {
	return writeAttr(d.freq, strconv.Itoa(hz))
}

func readAttr(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("pulsefifo: read %q: %w", path, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func writeAttr(path, value string) error {
	if err := os.WriteFile(path, []byte(value), 0); err != nil {
		return fmt.Errorf("pulsefifo: write %q to %q: %w", value, path, err)
	}
	return nil
}

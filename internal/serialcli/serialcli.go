/*
 * lasercnc motioncore - Serial-line CLI transport.
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

// Package serialcli is the serial-port CLI transport named in
// spec.md §6 ("listen ... for the serial transport"). Like tcpcli, it
// carries no G-code semantics: it frames newline-terminated lines over
// a github.com/tarm/serial port and hands them to internal/cli.Dispatch.
// Grounded on the teacher's telnet/listener.go accept/shutdown shape,
// adapted from "accept a socket connection" to "open one serial port",
// since a serial port has exactly one peer instead of many.
package serialcli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tarm/serial"

	"github.com/lasercnc/motioncore/internal/cli"
)

// Port is the subset of *serial.Port this package needs, so tests can
// substitute an in-memory io.ReadWriteCloser instead of a real port.
type Port interface {
	io.ReadWriteCloser
}

// Config mirrors the fields of serial.Config this package exposes.
type Config struct {
	Name     string
	Baud     int
	Machine  cli.Machine
	Version  string
	Log      *slog.Logger
}

// Session drives one serial port's line-dispatch loop.
type Session struct {
	log     *slog.Logger
	machine cli.Machine
	version string
	port    Port

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// Open opens the named serial port at the given baud rate and begins
// dispatching lines in the background.
func Open(cfg Config) (*Session, error) {
	sp, err := serial.OpenPort(&serial.Config{Name: cfg.Name, Baud: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("serialcli: open %s: %w", cfg.Name, err)
	}
	return start(sp, cfg)
}

// OpenWithPort wires an already-open Port (real or fake) into a
// Session, for testing without a physical serial device.
func OpenWithPort(port Port, cfg Config) (*Session, error) {
	return start(port, cfg)
}

func start(port Port, cfg Config) (*Session, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		log:     log,
		machine: cfg.Machine,
		version: cfg.Version,
		port:    port,
		running: true,
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *Session) run() {
	defer close(s.done)
	defer s.port.Close()

	fmt.Fprintln(s.port, cli.Banner(s.version))

	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		reply := cli.Dispatch(s.machine, scanner.Text())
		if reply == "" {
			continue
		}
		if _, err := fmt.Fprintln(s.port, reply); err != nil {
			s.log.Warn("serialcli: write failed", "err", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("serialcli: read failed", "err", err)
	}
}

// Close stops the session and closes the underlying port, blocking
// until the dispatch goroutine has exited.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.port.Close()
	<-s.done
}

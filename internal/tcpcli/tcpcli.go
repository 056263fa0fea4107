/*
 * lasercnc motioncore - TCP CLI transport.
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

// Package tcpcli is the socket CLI transport named in spec.md §6
// ("listen address/port for the socket transport"). It frames
// newline-terminated lines and hands them to internal/cli.Dispatch;
// it carries no G-code semantics of its own. Grounded directly on the
// teacher's telnet/listener.go: a net.Listener accept loop plus a
// sync.WaitGroup-backed shutdown, generalized from "accept a 3270
// session" to "accept a CLI session".
package tcpcli

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/lasercnc/motioncore/internal/cli"
)

// Server listens on one TCP address and dispatches every accepted
// connection's lines through cli.Dispatch.
type Server struct {
	log      *slog.Logger
	machine  cli.Machine
	version  string
	wg       sync.WaitGroup
	listener net.Listener
	shutdown chan struct{}
}

// Listen opens a TCP listener on addr and begins accepting
// connections in the background.
func Listen(addr string, machine cli.Machine, version string, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcpcli: listen on %s: %w", addr, err)
	}
	s := &Server{
		log:      log,
		machine:  machine,
		version:  version,
		listener: ln,
		shutdown: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.acceptLoop()
	return s, nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.shutdown:
			return
		default:
		}
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				s.log.Warn("tcpcli: accept failed", "err", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	fmt.Fprintln(conn, cli.Banner(s.version))

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		reply := cli.Dispatch(s.machine, scanner.Text())
		if reply == "" {
			continue
		}
		if _, err := fmt.Fprintln(conn, reply); err != nil {
			return
		}
	}
}

// Stop closes the listener and waits (up to one second) for every
// in-flight connection to finish, per the teacher's Stop shape.
func (s *Server) Stop() {
	close(s.shutdown)
	s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.log.Warn("tcpcli: timed out waiting for connections to close")
	}
}

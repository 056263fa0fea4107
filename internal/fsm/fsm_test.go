/*
 * lasercnc motioncore - State aggregator.
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

package fsm

import (
	"testing"
)

func TestFullConsensusAdopted(t *testing.T) {
	a := New(nil)
	a.Register("cli", []State{StateIdle, StateRun, StateAlarm}, nil)
	a.Register("motion", []State{StateIdle, StateRun, StateAlarm}, nil)

	a.Report("cli", StateRun)
	if a.Adopted() != StateUninitialized {
		t.Fatalf("should not adopt before every sub agrees, got %v", a.Adopted())
	}
	a.Report("motion", StateRun)
	if a.Adopted() != StateRun {
		t.Fatalf("expected full consensus to adopt Run, got %v", a.Adopted())
	}
}

func TestPriorityStatePreemptsConsensus(t *testing.T) {
	a := New(nil)
	a.Register("cli", []State{StateIdle, StateRun, StateAlarm}, nil)
	a.Register("limits", []State{StateIdle, StateRun, StateAlarm, StateFault}, nil)

	a.Report("cli", StateRun)
	a.Report("limits", StateRun)
	if a.Adopted() != StateRun {
		t.Fatalf("expected Run, got %v", a.Adopted())
	}

	a.Report("limits", StateAlarm)
	if a.Adopted() != StateAlarm {
		t.Fatalf("expected priority state Alarm to preempt consensus, got %v", a.Adopted())
	}
}

func TestFaultOutranksAlarm(t *testing.T) {
	a := New(nil)
	a.Register("cli", []State{StateAlarm}, nil)
	a.Register("hw", []State{StateFault}, nil)

	a.Report("cli", StateAlarm)
	if a.Adopted() != StateAlarm {
		t.Fatalf("expected Alarm, got %v", a.Adopted())
	}
	a.Report("hw", StateFault)
	if a.Adopted() != StateFault {
		t.Fatalf("expected Fault to outrank Alarm, got %v", a.Adopted())
	}
}

func TestUnregisteredSubDropped(t *testing.T) {
	a := New(nil)
	a.Register("cli", []State{StateRun}, nil)

	a.Report("ghost", StateAlarm)
	if a.Adopted() != StateUninitialized {
		t.Fatalf("an unregistered sub's report must not change the adopted state, got %v", a.Adopted())
	}
}

func TestQueueOverflowTreatedAsAlarm(t *testing.T) {
	a := New(nil)
	a.Register("hw", []State{StateIdle, StateAlarm}, nil)

	a.ReportOverflow("hw")
	if a.Adopted() != StateAlarm {
		t.Fatalf("expected overflow to adopt Alarm, got %v", a.Adopted())
	}
}

func TestNotificationsFireInRegistrationOrder(t *testing.T) {
	a := New(nil)
	var order []string

	a.Register("first", []State{StateRun}, HandlerFunc(func(State) { order = append(order, "first") }))
	a.Register("second", []State{StateRun}, HandlerFunc(func(State) { order = append(order, "second") }))

	a.Report("first", StateRun)
	a.Report("second", StateRun)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected callbacks in registration order, got %v", order)
	}
}

func TestNoChangeDoesNotRenotify(t *testing.T) {
	a := New(nil)
	calls := 0
	a.Register("cli", []State{StateRun}, HandlerFunc(func(State) { calls++ }))
	a.Register("motion", []State{StateRun}, nil)

	a.Report("cli", StateRun)
	a.Report("motion", StateRun)
	if calls != 1 {
		t.Fatalf("expected exactly one notification on the initial adoption, got %d", calls)
	}

	a.Report("cli", StateRun)
	if calls != 1 {
		t.Fatalf("reporting the same state again must not re-notify, got %d", calls)
	}
}

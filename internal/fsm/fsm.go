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

// Package fsm implements the hierarchical finite-state machine
// aggregator of spec.md §4.5: independent sub-FSMs each report a
// local state into a shared queue, and an aggregator collapses the
// reports into one system state under priority and consensus rules.
// Its registration/callback shape follows the teacher's
// command/command package, which keeps a table of registered handlers
// and invokes them on state change; per spec.md §9's "Sub-FSM
// callbacks" redesign note, a polymorphic Handler replaces the
// source's bare function pointer so each sub-FSM can carry private
// state into its own callback.
package fsm

import (
	"log/slog"
	"sync"
)

// State is one of the system states named in spec.md §4.5, plus the
// two pseudo-states used internally by the aggregation rule.
type State int

const (
	StateUninitialized State = iota
	StateNoRequest
	StateInit
	StateSleep
	StateIdle
	StateHoming
	StateRun
	StateHold
	StateAlarm
	StateFault
)

var stateNames = map[State]string{
	StateUninitialized: "Uninitialized",
	StateNoRequest:     "NoRequest",
	StateInit:          "Init",
	StateSleep:         "Sleep",
	StateIdle:          "Idle",
	StateHoming:        "Homing",
	StateRun:           "Run",
	StateHold:          "Hold",
	StateAlarm:         "Alarm",
	StateFault:         "Fault",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "Unknown"
}

// IsPriority reports whether s is one of the PRIORITY states from
// spec.md §4.5 rule 2 (alarm, fault, init); higher-numbered priority
// states win when more than one is accepted simultaneously.
func (s State) IsPriority() bool {
	return s == StateAlarm || s == StateFault || s == StateInit
}

// priorityRank orders the PRIORITY states for "adopt the highest such
// state" in spec.md §4.5 rule 2: fault outranks alarm outranks init.
func priorityRank(s State) int {
	switch s {
	case StateFault:
		return 3
	case StateAlarm:
		return 2
	case StateInit:
		return 1
	default:
		return 0
	}
}

// Handler is the polymorphic per-sub-FSM notification callback named
// in spec.md §9's redesign note, replacing the source's function
// pointer so a sub-FSM can close over private state.
type Handler interface {
	OnStateChange(adopted State)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(State)

func (f HandlerFunc) OnStateChange(s State) { f(s) }

// subFSM is a registered reporter, per spec.md §4.5's "Registration":
// a set of (system-state, acceptable) pairs and an optional callback.
type subFSM struct {
	name     string
	accepts  map[State]bool
	handler  Handler
	current  State
}

// Aggregator is the hierarchical FSM aggregator of spec.md §4.5. It is
// safe for concurrent use: Report and the accessors take an internal
// mutex, matching the "FSM aggregator blocks on its update queue"
// suspension point from spec.md §5 (modeled here as a synchronous
// call under lock rather than an explicit channel, since every report
// must be acknowledged before the next is accepted).
type Aggregator struct {
	log *slog.Logger

	mu      sync.Mutex
	subs    []*subFSM
	byName  map[string]*subFSM
	adopted State
}

// New builds an Aggregator starting in the uninitialized pseudo-state.
func New(log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		log:     log,
		byName:  make(map[string]*subFSM),
		adopted: StateUninitialized,
	}
}

// Register adds a sub-FSM accepting the given states, per spec.md
// §4.5's "Registration". handler may be nil.
func (a *Aggregator) Register(name string, accepts []State, handler Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()

	set := make(map[State]bool, len(accepts))
	for _, s := range accepts {
		set[s] = true
	}
	sub := &subFSM{name: name, accepts: set, handler: handler, current: StateNoRequest}
	a.subs = append(a.subs, sub)
	a.byName[name] = sub
}

// Adopted returns the current system state.
func (a *Aggregator) Adopted() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.adopted
}

// Report delivers a sub-FSM's local state update, per spec.md §4.5's
// "Aggregation rule", run fresh on every call. An update from an
// unregistered sub-FSM is dropped and logged, per the "Failure
// semantics" clause.
func (a *Aggregator) Report(name string, requested State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sub, ok := a.byName[name]
	if !ok {
		a.log.Warn("fsm: update from unregistered sub-FSM dropped", "name", name)
		return
	}
	sub.current = requested

	next, changed := a.recompute()
	if !changed {
		return
	}
	a.adopted = next
	a.notifyLocked(next)
}

// ReportOverflow treats a sub-FSM's queue overflow as an alarm-worthy
// event, per spec.md §4.5's failure semantics.
func (a *Aggregator) ReportOverflow(name string) {
	a.log.Error("fsm: sub-FSM queue overflow treated as alarm", "name", name)
	a.Report(name, StateAlarm)
}

// recompute applies spec.md §4.5 rules 1-5 against every sub-FSM's
// current request. Caller must hold a.mu.
func (a *Aggregator) recompute() (State, bool) {
	// rule 1: bitmap per system state of which subs currently accept it.
	acceptedBy := make(map[State]int)
	for _, sub := range a.subs {
		if sub.accepts[sub.current] {
			acceptedBy[sub.current]++
		}
	}

	// rule 2: highest PRIORITY state accepted by at least one sub.
	bestPriority := State(-1)
	for s, n := range acceptedBy {
		if n > 0 && s.IsPriority() {
			if bestPriority == -1 || priorityRank(s) > priorityRank(bestPriority) {
				bestPriority = s
			}
		}
	}
	if bestPriority != -1 {
		return bestPriority, bestPriority != a.adopted
	}

	total := len(a.subs)

	// rule 3: full consensus.
	for s, n := range acceptedBy {
		if !s.IsPriority() && n == total && total > 0 {
			return s, s != a.adopted
		}
	}

	// rule 4: exactly one non-priority state with full sub-consensus
	// among subs that registered interest in it at all — approximated
	// here as "every sub that lists s among its accepted states is
	// currently requesting it", matching spec.md's "full consensus"
	// wording scoped to the subs that care about that state.
	var consensusStates []State
	for _, sub := range a.subs {
		for s := range sub.accepts {
			if s.IsPriority() || contains(consensusStates, s) {
				continue
			}
			if stateHasFullConsensus(a.subs, s) {
				consensusStates = append(consensusStates, s)
			}
		}
	}
	if len(consensusStates) == 1 {
		return consensusStates[0], consensusStates[0] != a.adopted
	}
	if len(consensusStates) > 1 {
		a.log.Error("fsm: two simultaneous non-priority consensuses, design bug",
			"states", consensusStates)
	}

	// rule 5: keep current state.
	return a.adopted, false
}

// stateHasFullConsensus reports whether every sub-FSM that lists s as
// one of its acceptable states is currently requesting exactly s.
func stateHasFullConsensus(subs []*subFSM, s State) bool {
	interested := 0
	requesting := 0
	for _, sub := range subs {
		if !sub.accepts[s] {
			continue
		}
		interested++
		if sub.current == s {
			requesting++
		}
	}
	return interested > 0 && interested == requesting
}

func contains(states []State, s State) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

// notifyLocked calls every sub-FSM's handler synchronously, serially,
// in registration order, per spec.md §4.5's "Notifications". Caller
// must hold a.mu.
func (a *Aggregator) notifyLocked(adopted State) {
	for _, sub := range a.subs {
		if sub.handler != nil {
			sub.handler.OnStateChange(adopted)
		}
	}
}

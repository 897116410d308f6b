// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package supervisor

import (
	"errors"
	"testing"

	"preforkd/internal/netio"
)

const listenerFD = 100

func testWorker(pid, controlFD int) *Worker {
	return &Worker{PID: pid, ControlFD: controlFD, ConnFD: -1, Client: netio.NoClient}
}

// checkInvariants asserts the structural properties that must hold after
// every mutation: poll slot 0 is the listener and poll slot 1+i mirrors
// worker slot i.
func checkInvariants(t *testing.T, s *State) {
	t.Helper()

	pollfds := s.PollFDs()
	if int(pollfds[0].Fd) != listenerFD {
		t.Fatalf("poll slot 0: got %d, want listener %d", pollfds[0].Fd, listenerFD)
	}
	if s.NPollFDs() != s.NWorkers()+1 {
		t.Fatalf("npollfds=%d nworkers=%d", s.NPollFDs(), s.NWorkers())
	}
	if s.NWorkers() > s.MaxClients() {
		t.Fatalf("nworkers=%d exceeds max=%d", s.NWorkers(), s.MaxClients())
	}

	seenPID := make(map[int]bool)
	seenFD := make(map[int]bool)
	for i, w := range s.Workers() {
		if int(pollfds[1+i].Fd) != w.ControlFD {
			t.Fatalf("slot %d: poll fd %d, control fd %d", i, pollfds[1+i].Fd, w.ControlFD)
		}
		if w.ControlFD < 0 {
			t.Fatalf("slot %d: control fd %d", i, w.ControlFD)
		}
		if seenPID[w.PID] || seenFD[w.ControlFD] {
			t.Fatalf("slot %d: duplicate pid or control fd", i)
		}
		seenPID[w.PID] = true
		seenFD[w.ControlFD] = true
	}
}

func TestState_AddRemoveKeepsTablesParallel(t *testing.T) {
	s := NewState(listenerFD, 8)
	checkInvariants(t, s)

	workers := []*Worker{
		testWorker(101, 11),
		testWorker(102, 12),
		testWorker(103, 13),
		testWorker(104, 14),
	}
	for _, w := range workers {
		if err := s.AddWorker(w); err != nil {
			t.Fatalf("add pid %d: %v", w.PID, err)
		}
		checkInvariants(t, s)
	}

	// Remove from the middle: later slots shift down by one.
	removed := s.RemoveWorker(102)
	if removed == nil || removed.PID != 102 {
		t.Fatalf("removed: %+v", removed)
	}
	checkInvariants(t, s)
	if s.NWorkers() != 3 {
		t.Fatalf("nworkers: got %d, want 3", s.NWorkers())
	}
	if got := s.Workers()[1].PID; got != 103 {
		t.Fatalf("slot 1 after shift: pid %d, want 103", got)
	}

	// Remove head and tail.
	s.RemoveWorker(101)
	checkInvariants(t, s)
	s.RemoveWorker(104)
	checkInvariants(t, s)
	if s.NWorkers() != 1 || s.Workers()[0].PID != 103 {
		t.Fatalf("final table: %+v", s.Workers())
	}

	// Removing an unknown pid is a no-op.
	if s.RemoveWorker(999) != nil {
		t.Fatal("unknown pid removed something")
	}
	checkInvariants(t, s)
}

func TestState_CapacityEnforced(t *testing.T) {
	s := NewState(listenerFD, 2)
	if err := s.AddWorker(testWorker(1, 11)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddWorker(testWorker(2, 12)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddWorker(testWorker(3, 13)); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("over capacity: %v", err)
	}
	checkInvariants(t, s)
}

func TestState_FindAvailableWorker(t *testing.T) {
	s := NewState(listenerFD, 8)
	busy := testWorker(201, 21)
	busy.Client = netio.Client{FD: 55}
	idle := testWorker(202, 22)
	s.AddWorker(busy)
	s.AddWorker(idle)

	if got := s.FindAvailableWorker(); got != idle {
		t.Fatalf("available: got pid %d, want %d", got.PID, idle.PID)
	}

	idle.Client = netio.Client{FD: 56}
	if got := s.FindAvailableWorker(); got != nil {
		t.Fatalf("all busy, got pid %d", got.PID)
	}
}

func TestState_FindByFDs(t *testing.T) {
	s := NewState(listenerFD, 8)
	w := testWorker(301, 31)
	w.Client = netio.Client{FD: 77}
	s.AddWorker(w)

	if got := s.FindWorkerByControlFD(31); got != w {
		t.Fatalf("by control fd: %+v", got)
	}
	if got := s.FindWorkerByControlFD(32); got != nil {
		t.Fatalf("unknown control fd: %+v", got)
	}
	if got := s.FindWorkerByClientFD(77); got != w {
		t.Fatalf("by client fd: %+v", got)
	}
	if got := s.FindWorkerByClientFD(78); got != nil {
		t.Fatalf("unknown client fd: %+v", got)
	}
}

func TestWorker_Availability(t *testing.T) {
	w := testWorker(401, 41)
	if !w.Available() {
		t.Fatal("fresh worker not available")
	}

	w.Client = netio.Client{FD: 9}
	if w.Available() {
		t.Fatal("worker with client reported available")
	}

	w = &Worker{PID: 0, ControlFD: 41, Client: netio.NoClient}
	if w.Available() {
		t.Fatal("empty slot reported available")
	}

	w = &Worker{PID: 402, ControlFD: -1, Client: netio.NoClient}
	if w.Available() {
		t.Fatal("worker without control socket reported available")
	}
}

func TestWorker_AssignBusy(t *testing.T) {
	w := testWorker(501, 51)

	if err := w.Assign(netio.Client{FD: 10, Address: "127.0.0.1", Port: 4242}); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if w.Client.FD != 10 {
		t.Fatalf("client fd: %d", w.Client.FD)
	}

	err := w.Assign(netio.Client{FD: 11})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second assign: %v", err)
	}
	// The failed assignment must not disturb the held client.
	if w.Client.FD != 10 {
		t.Fatalf("client clobbered: %d", w.Client.FD)
	}

	w = testWorker(502, 52)
	if err := w.Assign(netio.NoClient); !errors.Is(err, ErrInvalidClient) {
		t.Fatalf("invalid client: %v", err)
	}
}

func TestSocketPath(t *testing.T) {
	if got := SocketPath(1234); got != "./1234.sock" {
		t.Fatalf("socket path: %q", got)
	}
}

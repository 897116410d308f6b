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

// Package supervisor implements the prefork worker pool: the supervisor
// state and event loop on one side, and the worker process entrypoint on
// the other. This file holds the pool state: two parallel ordered
// sequences, workers and poll descriptors, linked by position. Slot i of
// the worker table always corresponds to poll slot 1+i; poll slot 0 is
// the TCP listener. Removal shifts both sequences down to stay dense.
package supervisor

import (
	"errors"

	"golang.org/x/sys/unix"
)

// ErrPoolFull reports an AddWorker on a table at capacity.
var ErrPoolFull = errors.New("worker table full")

const pollEvents = unix.POLLIN | unix.POLLHUP | unix.POLLERR

// State tracks the worker pool and its poll set.
type State struct {
	maxClients int
	pollfds    []unix.PollFd
	workers    []*Worker
}

// NewState builds pool state around the listening descriptor, which
// permanently occupies poll slot 0. maxClients bounds the worker count.
func NewState(listenerFD, maxClients int) *State {
	s := &State{
		maxClients: maxClients,
		pollfds:    make([]unix.PollFd, 0, maxClients+1),
		workers:    make([]*Worker, 0, maxClients),
	}
	s.pollfds = append(s.pollfds, unix.PollFd{Fd: int32(listenerFD), Events: pollEvents})
	return s
}

// NWorkers returns the live worker count.
func (s *State) NWorkers() int { return len(s.workers) }

// NPollFDs returns the poll set size, always NWorkers plus one.
func (s *State) NPollFDs() int { return len(s.pollfds) }

// MaxClients returns the pool capacity.
func (s *State) MaxClients() int { return s.maxClients }

// PollFDs exposes the poll set for unix.Poll. Slot 0 is the listener.
func (s *State) PollFDs() []unix.PollFd { return s.pollfds }

// Workers returns a snapshot of the worker table, safe to iterate while
// the table is being mutated.
func (s *State) Workers() []*Worker {
	return append([]*Worker(nil), s.workers...)
}

// AddWorker appends w to the table and its control descriptor to the poll
// set, keeping the two sequences index-parallel.
func (s *State) AddWorker(w *Worker) error {
	if len(s.workers) >= s.maxClients {
		return ErrPoolFull
	}
	s.workers = append(s.workers, w)
	s.pollfds = append(s.pollfds, unix.PollFd{Fd: int32(w.ControlFD), Events: pollEvents})
	return nil
}

// RemoveWorker takes the worker with the given pid out of the table and
// its control descriptor out of the poll set, shifting later slots down.
// It returns the removed worker, or nil when the pid is not present.
func (s *State) RemoveWorker(pid int) *Worker {
	for i, w := range s.workers {
		if w.PID != pid {
			continue
		}
		copy(s.workers[i:], s.workers[i+1:])
		s.workers = s.workers[:len(s.workers)-1]

		copy(s.pollfds[1+i:], s.pollfds[1+i+1:])
		s.pollfds = s.pollfds[:len(s.pollfds)-1]
		return w
	}
	return nil
}

// FindAvailableWorker returns the first idle worker, or nil.
func (s *State) FindAvailableWorker() *Worker {
	for _, w := range s.workers {
		if w.Available() {
			return w
		}
	}
	return nil
}

// FindWorkerByControlFD returns the worker owning the given control
// descriptor.
func (s *State) FindWorkerByControlFD(fd int) *Worker {
	for _, w := range s.workers {
		if w.ControlFD == fd {
			return w
		}
	}
	return nil
}

// FindWorkerByClientFD returns the worker holding the given client
// descriptor.
func (s *State) FindWorkerByClientFD(fd int) *Worker {
	for _, w := range s.workers {
		if w.Client.FD == fd {
			return w
		}
	}
	return nil
}

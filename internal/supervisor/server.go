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

// Package supervisor implements the prefork worker pool. This file is the
// supervisor event loop: module watch, health check, elastic scaling and
// dispatch of listener and worker events off a single poll.
package supervisor

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"preforkd/internal/loader"
	"preforkd/internal/netio"
	"preforkd/internal/telemetry"
)

// Config carries everything the supervisor needs to run.
type Config struct {
	Address   string
	Port      uint16
	PublicDir string
	LibPath   string

	// Workers is the initial desired worker count.
	Workers int

	// MaxClients caps the worker table. Zero means DefaultMaxClients.
	MaxClients int

	// BinPath is the executable workers re-execute. Empty means the
	// current executable.
	BinPath string

	// WorkerArgs are passed to spawned workers so they parse the same
	// configuration the supervisor did.
	WorkerArgs []string
}

// DefaultMaxClients bounds the worker table when no cap is configured.
const DefaultMaxClients = 128

// Server owns the TCP listener, the worker pool and the processing
// module loader.
type Server struct {
	cfg      Config
	state    *State
	ld       *loader.Loader
	watcher  *loader.Watcher
	listenFD int
	desired  int
	running  atomic.Bool
}

// New creates the listener, the artifact watcher and the pool state. A
// failing initial module load is logged and tolerated; the watch rebinds
// the module once a good artifact appears.
func New(cfg Config, ld *loader.Loader) (*Server, error) {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.BinPath == "" {
		bin, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		cfg.BinPath = bin
	}

	listenFD, err := netio.TCPServer(cfg.Address, cfg.Port)
	if err != nil {
		return nil, err
	}
	// A connection can vanish between poll and accept; a blocking accept
	// would then wedge the whole loop.
	if err := unix.SetNonblock(listenFD, true); err != nil {
		unix.Close(listenFD)
		return nil, fmt.Errorf("listener nonblock: %w", err)
	}

	watcher, err := loader.NewWatcher(cfg.LibPath)
	if err != nil {
		unix.Close(listenFD)
		return nil, err
	}

	if err := ld.Reload(cfg.LibPath); err != nil {
		log.Errorf("initial module load: %v", err)
		telemetry.ObserveReload(false)
	} else {
		telemetry.ObserveReload(true)
	}

	return &Server{
		cfg:      cfg,
		state:    NewState(listenFD, cfg.MaxClients),
		ld:       ld,
		watcher:  watcher,
		listenFD: listenFD,
		desired:  cfg.Workers,
	}, nil
}

// Run executes the event loop until SIGINT, then tears the pool down.
func (s *Server) Run() error {
	s.running.Store(true)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT)
	go func() {
		<-sigCh
		s.running.Store(false)
		// A loopback connect nudges the blocked poll so shutdown is
		// prompt; the loop drops the connection unserved.
		s.nudge()
	}()

	log.Infof("listening on %s:%d with %d workers", s.cfg.Address, s.cfg.Port, s.desired)

	for s.running.Load() {
		before := s.ld.Handle()
		if err := s.ld.CheckLibraryUpdate(s.watcher); err != nil {
			telemetry.ObserveReload(false)
		} else if s.ld.Handle() != before && s.ld.Bound() {
			telemetry.ObserveReload(true)
		}

		s.healthCheck()
		s.scale()

		n, err := unix.Poll(s.state.PollFDs(), -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			log.Errorf("poll: %v", err)
			continue
		}
		if n == 0 {
			continue
		}
		if !s.running.Load() {
			break
		}

		pollfds := s.state.PollFDs()
		if pollfds[0].Revents&unix.POLLIN != 0 {
			s.handleClientConnect()
		}

		// Snapshot the worker slots before dispatch; handlers mutate the
		// table and shift the poll set.
		type event struct {
			fd      int
			revents int16
		}
		var events []event
		for i := 1; i < len(pollfds); i++ {
			if pollfds[i].Revents != 0 {
				events = append(events, event{fd: int(pollfds[i].Fd), revents: pollfds[i].Revents})
			}
		}
		for _, ev := range events {
			w := s.state.FindWorkerByControlFD(ev.fd)
			if w == nil {
				continue
			}
			if ev.revents&(unix.POLLHUP|unix.POLLERR) != 0 {
				s.handleWorkerDisconnect(w)
				continue
			}
			if ev.revents&unix.POLLIN != 0 {
				s.handleWorkerConnect(w)
			}
		}
	}

	s.shutdown()
	return nil
}

// Stop requests loop termination from another goroutine.
func (s *Server) Stop() {
	s.running.Store(false)
	s.nudge()
}

// nudge opens and closes a loopback connection so a blocked poll returns.
func (s *Server) nudge() {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return
	}
	sa := &unix.SockaddrInet4{Port: int(s.cfg.Port), Addr: [4]byte{127, 0, 0, 1}}
	unix.Connect(fd, sa)
	unix.Close(fd)
}

// healthCheck reaps workers whose process exited, was signaled or
// stopped, and removes them from the pool.
func (s *Server) healthCheck() {
	for _, w := range s.state.Workers() {
		if w.PID <= 0 {
			continue
		}
		var status unix.WaitStatus
		wpid, err := unix.Wait4(w.PID, &status, unix.WNOHANG|unix.WUNTRACED, nil)
		if err == unix.ECHILD {
			// Already reaped elsewhere; the slot is stale either way.
			s.removeWorker(w)
			continue
		}
		if err != nil || wpid != w.PID {
			continue
		}
		if status.Exited() || status.Signaled() || status.Stopped() {
			log.Debugf("worker[pid:%d] left the pool (status %d)", w.PID, status)
			s.removeWorker(w)
		}
	}
}

// scale drives the pool toward the desired count: spawn while short,
// retire idle workers while over. Workers holding a client are never
// scaled down.
func (s *Server) scale() {
	for s.state.NWorkers() < s.desired {
		w, err := SpawnWorker(s.cfg.BinPath, s.cfg.WorkerArgs)
		if err != nil {
			log.Errorf("scale up: %v", err)
			break
		}
		if err := s.state.AddWorker(w); err != nil {
			log.Errorf("scale up: %v", err)
			StopWorker(w)
			os.Remove(SocketPath(w.PID))
			break
		}
		telemetry.ObserveSpawn()
		telemetry.SetWorkersLive(s.state.NWorkers())
	}

	for s.state.NWorkers() > s.desired {
		w := s.state.FindAvailableWorker()
		if w == nil {
			break
		}
		log.Debugf("scaling down worker[pid:%d]", w.PID)
		// Retiring toward the target must not lower the target itself,
		// or the loop would chase its own decrements.
		s.retireWorker(w, false)
	}
}

// handleClientConnect accepts one TCP connection and assigns it to an
// idle worker. The accept also raises the desired count by one so a
// replacement for the consumed worker is spawned.
func (s *Server) handleClientConnect() {
	client, err := netio.TCPAccept(s.listenFD)
	if err != nil {
		if err != unix.EINTR && err != unix.EAGAIN {
			log.Errorf("accept: %v", err)
		}
		return
	}

	if !s.running.Load() {
		unix.Close(client.FD)
		return
	}

	log.Infof("[fd:%d] %q:%d connect", client.FD, client.Address, client.Port)
	telemetry.ObserveAccept()
	s.desired++

	w := s.state.FindAvailableWorker()
	if w == nil {
		log.Errorf("[fd:%d] no idle worker, dropping client", client.FD)
		unix.Close(client.FD)
		telemetry.ObserveReject()
		s.desired--
		return
	}

	if err := w.Assign(client); err != nil {
		log.Errorf("[fd:%d] assign to worker[pid:%d]: %v", client.FD, w.PID, err)
		unix.Close(client.FD)
		telemetry.ObserveReject()
		s.desired--
		return
	}

	// The worker's domain connection is usually already accepted by the
	// time a client lands on it; hand the descriptor over right away.
	if w.ConnFD >= 0 {
		s.transferClient(w)
	}
}

// handleWorkerConnect runs when a worker's control descriptor is
// readable, meaning the worker's domain connection is waiting in the
// backlog. The connection is accepted once and held on the slot; leaving
// it in the backlog would keep the listening descriptor readable and turn
// every poll into a spin. The handoff itself happens as soon as the
// worker has a client.
func (s *Server) handleWorkerConnect(w *Worker) {
	if w.ConnFD < 0 {
		conn, _, err := unix.Accept(w.ControlFD)
		if err == unix.EAGAIN || err == unix.EINTR {
			return
		}
		if err != nil {
			log.Errorf("worker[pid:%d] control accept: %v", w.PID, err)
			return
		}
		w.ConnFD = conn
	}

	if w.Client.FD >= 0 {
		s.transferClient(w)
	}
}

// transferClient sends the assigned client descriptor over the worker's
// accepted domain stream and closes the stream.
func (s *Server) transferClient(w *Worker) {
	err := netio.SendFD(w.ConnFD, w.Client.FD)
	unix.Close(w.ConnFD)
	w.ConnFD = -1
	if err != nil {
		log.Errorf("worker[pid:%d] send client fd: %v", w.PID, err)
		s.removeWorker(w)
		return
	}

	log.Debugf("client [fd:%d] handed to worker[pid:%d]", w.Client.FD, w.PID)
	telemetry.ObserveFDTransfer()
}

// handleWorkerDisconnect tears down a worker whose control descriptor
// reported hangup or error.
func (s *Server) handleWorkerDisconnect(w *Worker) {
	log.Infof("worker[pid:%d] disconnect", w.PID)
	s.removeWorker(w)
}

// removeWorker removes a worker from the table and poll set, unlinks its
// domain socket, terminates the process if needed and lowers the desired
// count.
func (s *Server) removeWorker(w *Worker) {
	s.retireWorker(w, true)
}

func (s *Server) retireWorker(w *Worker, lowerDesired bool) {
	pid := w.PID
	if removed := s.state.RemoveWorker(pid); removed == nil {
		return
	}

	StopWorker(w)
	os.Remove(SocketPath(pid))

	if lowerDesired && s.desired > 0 {
		s.desired--
	}
	telemetry.ObserveReap()
	telemetry.SetWorkersLive(s.state.NWorkers())
}

// shutdown tears down every worker, the listener and the module.
func (s *Server) shutdown() {
	log.Infof("shutting down")

	for _, w := range s.state.Workers() {
		pid := w.PID
		s.state.RemoveWorker(pid)
		StopWorker(w)
		os.Remove(SocketPath(pid))
	}
	telemetry.SetWorkersLive(0)

	unix.Close(s.listenFD)
	s.watcher.Close()
	s.ld.Release()
}

// Desired exposes the current scaling target.
func (s *Server) Desired() int { return s.desired }

// State exposes the pool state.
func (s *Server) State() *State { return s.state }

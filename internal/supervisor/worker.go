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

// Package supervisor implements the prefork worker pool. This file
// implements the worker lifecycle: spawning a worker process, assigning
// it a client and tearing it down.
package supervisor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sys/unix"

	"preforkd/internal/netio"
)

var log = commonlog.GetLogger("preforkd.supervisor")

var (
	// ErrBusy reports an assignment to a worker that already holds a
	// client.
	ErrBusy = errors.New("worker already has a client")

	// ErrInvalidClient reports an assignment of a client without a
	// descriptor.
	ErrInvalidClient = errors.New("client has no descriptor")
)

// WorkerEnv marks a process as a worker when set to "1" in its
// environment. The supervisor sets it on every child it spawns.
const WorkerEnv = "PREFORKD_WORKER"

// readyFDNum is where the ready-pipe read end lands in the child: the
// first entry of ExtraFiles, directly after stderr.
const readyFDNum = 3

// Worker is one pool slot. PID of 0 means the slot is empty; ControlFD of
// -1 means no domain socket; Client.FD of -1 means idle. ConnFD is the
// accepted domain stream the client descriptor travels over; it exists
// from the worker's connect until the handoff.
type Worker struct {
	PID       int
	ControlFD int
	ConnFD    int
	Client    netio.Client
}

// Available reports whether the worker is alive, connected and idle.
func (w *Worker) Available() bool {
	return w.PID > 0 && w.ControlFD >= 0 && w.Client.FD == -1
}

// Assign hands a client to the worker. Assigning over an existing client
// fails with ErrBusy and mutates nothing.
func (w *Worker) Assign(client netio.Client) error {
	if w.Client.FD > -1 {
		return ErrBusy
	}
	if client.FD < 0 {
		return ErrInvalidClient
	}
	w.Client = client
	return nil
}

// SocketPath returns the per-worker domain socket path for a pid.
func SocketPath(pid int) string {
	return fmt.Sprintf("./%d.sock", pid)
}

// SpawnWorker starts a worker process and creates its domain socket.
//
// The child re-executes binPath with the same arguments plus WorkerEnv.
// A pipe closes the startup race: the child blocks reading one byte until
// the parent has the domain socket listening, so the child's connect can
// never precede the listener. The read end rides into the child on
// descriptor 3.
func SpawnWorker(binPath string, args []string) (*Worker, error) {
	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("spawn_worker pipe: %w", err)
	}

	cmd := exec.Command(binPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), WorkerEnv+"=1")
	cmd.ExtraFiles = []*os.File{readEnd}

	if err := cmd.Start(); err != nil {
		readEnd.Close()
		writeEnd.Close()
		return nil, fmt.Errorf("spawn_worker start: %w", err)
	}
	pid := cmd.Process.Pid

	// The parent's copy of the read end is the child's now.
	readEnd.Close()

	socketPath := SocketPath(pid)
	controlFD, err := netio.DmnServer(socketPath)
	if err == nil {
		// The loop must never block in accept on a control socket.
		if err = unix.SetNonblock(controlFD, true); err != nil {
			unix.Close(controlFD)
			os.Remove(socketPath)
		}
	}
	if err != nil {
		// The child is still blocked on the pipe; closing the write end
		// unblocks its read with EOF and it exits on the missing socket.
		writeEnd.Close()
		unix.Kill(pid, unix.SIGKILL)
		unix.Wait4(pid, nil, 0, nil)
		return nil, fmt.Errorf("spawn_worker: %w", err)
	}

	log.Debugf("worker[pid:%d/fd:%d] spawned", pid, controlFD)

	// Listener exists, release the child.
	writeEnd.Write([]byte{1})
	writeEnd.Close()

	return &Worker{PID: pid, ControlFD: controlFD, ConnFD: -1, Client: netio.NoClient}, nil
}

// StopWorker terminates the worker process and closes its descriptors.
// The child gets SIGINT and a short grace period, then SIGKILL. Already
// reaped children are tolerated.
func StopWorker(w *Worker) {
	if w == nil {
		return
	}

	if w.PID > 0 {
		unix.Kill(w.PID, unix.SIGINT)

		reaped := false
		for i := 0; i < 10; i++ {
			wpid, err := unix.Wait4(w.PID, nil, unix.WNOHANG, nil)
			if err != nil || wpid == w.PID {
				reaped = true
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		if !reaped {
			unix.Kill(w.PID, unix.SIGKILL)
			unix.Wait4(w.PID, nil, 0, nil)
		}
	}

	if w.ControlFD > -1 {
		unix.Close(w.ControlFD)
	}
	if w.ConnFD > -1 {
		unix.Close(w.ConnFD)
	}
	if w.Client.FD > -1 {
		unix.Close(w.Client.FD)
	}

	w.PID = 0
	w.ControlFD = -1
	w.ConnFD = -1
	w.Client = netio.NoClient
}

// IsWorkerProcess reports whether this process was spawned as a worker.
func IsWorkerProcess() bool {
	return os.Getenv(WorkerEnv) == "1"
}

// WaitReady blocks on the inherited ready pipe until the supervisor has
// the domain socket listening. Must be called exactly once, first thing,
// in a worker process.
func WaitReady() error {
	pipe := os.NewFile(readyFDNum, "ready-pipe")
	if pipe == nil {
		return errors.New("ready pipe descriptor missing")
	}
	defer pipe.Close()

	buf := make([]byte, 1)
	if _, err := pipe.Read(buf); err != nil {
		return fmt.Errorf("ready pipe read: %w", err)
	}
	return nil
}

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
// worker side: the entrypoint a spawned process runs, the single-client
// poll loop and request serving through the processing module.
package supervisor

import (
	"errors"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"preforkd/internal/httpd"
	"preforkd/internal/loader"
	"preforkd/internal/netio"
	"preforkd/internal/telemetry"
)

// fallbackResponse is emitted when response synthesis itself fails.
const fallbackResponse = "HTTP/1.1 500 Internal Server Error\r\nContent-Length: 0\r\n\r\n"

// readBufLen is the read chunk size for client requests.
const readBufLen = 1024

// WorkerMain runs the worker process: connect to this pid's domain
// socket, receive the one client descriptor, serve the request, exit.
// The return value is the process exit code.
func WorkerMain(ld *loader.Loader, publicDir string) int {
	var interrupted atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGINT)
	go func() {
		<-sigCh
		interrupted.Store(true)
	}()

	pid := os.Getpid()
	socketPath := SocketPath(pid)

	sock, err := netio.DmnClient(socketPath)
	if err != nil {
		log.Errorf("worker[%d] domain connect: %v", pid, err)
		return 1
	}

	clientFD, err := netio.RecvFD(sock)
	unix.Close(sock)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0
		}
		log.Errorf("worker[%d] recv_fd: %v", pid, err)
		return 1
	}
	defer unix.Close(clientFD)

	pollfds := []unix.PollFd{{Fd: int32(clientFD), Events: pollEvents}}

	for !interrupted.Load() {
		_, err := unix.Poll(pollfds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			log.Errorf("worker[%d] poll: %v", pid, err)
			continue
		}

		if pollfds[0].Revents&unix.POLLIN != 0 {
			data, err := readClientData(clientFD)
			if err != nil {
				log.Errorf("worker[%d] read: %v", pid, err)
				return 1
			}
			if len(data) == 0 {
				// Zero bytes on a readable descriptor: the client closed
				// before sending anything.
				pollfds[0].Revents |= unix.POLLHUP
			} else {
				response := ServeRequest(ld, publicDir, data)
				if err := writeClientData(clientFD, response); err != nil {
					log.Errorf("worker[%d] write: %v", pid, err)
				}
			}
		}

		if pollfds[0].Revents&unix.POLLERR != 0 {
			return 1
		}
		if pollfds[0].Revents&unix.POLLHUP != 0 {
			return 0
		}
	}

	return 1
}

// readClientData switches the descriptor to non-blocking and reads until
// EAGAIN, returning everything accumulated. The client is assumed to send
// the whole request at once; having to wait for more data means the
// request is complete.
func readClientData(fd int) ([]byte, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, err
	}

	var data []byte
	buf := make([]byte, readBufLen)
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return data, nil
		}
		data = append(data, buf[:n]...)
	}
}

// writeClientData writes the whole buffer to a descriptor that may be in
// non-blocking mode, waiting for writability on short writes.
func writeClientData(fd int, data []byte) error {
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			pollfds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
			unix.Poll(pollfds, -1)
			continue
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// ServeRequest drives the processing module over raw request bytes and
// returns the wire response. Malformed input and handler failures still
// produce a well-formed error response; if response synthesis itself
// fails the constant 500 literal goes out instead.
func ServeRequest(ld *loader.Loader, publicDir string, data []byte) []byte {
	req, err := ld.RequestInit(publicDir)
	if err != nil {
		log.Errorf("request init: %v", err)
		return []byte(fallbackResponse)
	}
	defer ld.RequestDestroy(req)

	var resp httpd.Response
	defer ld.ResponseDestroy(&resp)

	if err := ld.RequestParse(req, data); err != nil {
		log.Errorf("request parse: %v", err)
		resp.Version = httpd.Version11
		resp.Status = httpd.StatusInternalServerError
		resp.Headers.Set("Content-Length", "0")
	} else if err := ld.RequestProcess(req, &resp); err != nil {
		log.Errorf("request process: %v", err)
		if resp.Status == httpd.StatusUnknown {
			resp.Version = httpd.Version11
			resp.Status = httpd.StatusInternalServerError
			resp.Headers.Set("Content-Length", "0")
		}
	}

	wire, err := ld.ResponseWrite(&resp, req)
	if err != nil {
		log.Errorf("response write: %v", err)
		return []byte(fallbackResponse)
	}

	telemetry.ObserveResponse(int(resp.Status))
	return wire
}

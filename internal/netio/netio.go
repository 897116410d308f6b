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

// Package netio wraps the raw socket operations the server is built on:
// the TCP listener, the per-worker UNIX domain sockets and descriptor
// transfer over them. Descriptors stay plain ints end to end so they can
// be handed between processes and placed in poll sets.
package netio

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Client describes an accepted TCP connection. FD of -1 means no client.
type Client struct {
	FD      int
	Address string
	Port    uint16
}

// NoClient is the empty client slot value.
var NoClient = Client{FD: -1}

// IsIPv6 classifies address by the presence of ';'. Real IPv6 literals
// written with ':' take the IPv4 path; see DESIGN.md before changing
// this.
func IsIPv6(address string) bool {
	return strings.ContainsRune(address, ';')
}

// ConvertPort parses a decimal port in 1..65535.
func ConvertPort(s string) (uint16, error) {
	value, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a decimal number", s)
	}
	if value < 1 || value > 65535 {
		return 0, fmt.Errorf("port %d out of range 1..65535", value)
	}
	return uint16(value), nil
}

// TCPServer creates a listening TCP socket bound to address:port with
// SO_REUSEADDR set and a SOMAXCONN backlog. It returns the raw descriptor.
func TCPServer(address string, port uint16) (int, error) {
	family := unix.AF_INET
	if IsIPv6(address) {
		family = unix.AF_INET6
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("tcp socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tcp setsockopt: %w", err)
	}

	var sa unix.Sockaddr
	if family == unix.AF_INET6 {
		ip := net.ParseIP(strings.ReplaceAll(address, ";", ":"))
		if ip == nil || ip.To16() == nil {
			unix.Close(fd)
			return -1, fmt.Errorf("address %q is not a valid IPv6 literal", address)
		}
		sa6 := &unix.SockaddrInet6{Port: int(port)}
		copy(sa6.Addr[:], ip.To16())
		sa = sa6
	} else {
		ip := net.ParseIP(address)
		if ip == nil || ip.To4() == nil {
			unix.Close(fd)
			return -1, fmt.Errorf("address %q is not a valid IPv4 literal", address)
		}
		sa4 := &unix.SockaddrInet4{Port: int(port)}
		copy(sa4.Addr[:], ip.To4())
		sa = sa4
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tcp bind %s:%d: %w", address, port, err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("tcp listen: %w", err)
	}

	return fd, nil
}

// TCPAccept accepts one connection from the listening descriptor.
func TCPAccept(sockfd int) (Client, error) {
	connfd, sa, err := unix.Accept(sockfd)
	if err != nil {
		return NoClient, err
	}

	client := Client{FD: connfd}
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		client.Address = net.IP(addr.Addr[:]).String()
		client.Port = uint16(addr.Port)
	case *unix.SockaddrInet6:
		client.Address = net.IP(addr.Addr[:]).String()
		client.Port = uint16(addr.Port)
	}
	return client, nil
}

// DmnServer creates a UNIX stream socket listening at socketPath with a
// backlog of one. The single expected client is the owning worker.
func DmnServer(socketPath string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("domain socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: socketPath}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("domain bind %s: %w", socketPath, err)
	}
	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("domain listen %s: %w", socketPath, err)
	}

	return fd, nil
}

// DmnClient connects to the UNIX stream socket at socketPath.
func DmnClient(socketPath string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("domain socket: %w", err)
	}

	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: socketPath}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("domain connect %s: %w", socketPath, err)
	}

	return fd, nil
}

// SendFD transfers fd over the connected socket as SCM_RIGHTS ancillary
// data alongside a single payload byte.
func SendFD(sock, fd int) error {
	rights := unix.UnixRights(fd)
	if err := unix.Sendmsg(sock, []byte{0}, rights, nil, 0); err != nil {
		return fmt.Errorf("sendmsg rights: %w", err)
	}
	return nil
}

// RecvFD receives one descriptor sent with SendFD. The first control
// header must be SOL_SOCKET/SCM_RIGHTS, anything else is rejected. An
// EINTR from the kernel is returned to the caller undecorated so shutdown
// signals can be told apart from real failures.
func RecvFD(sock int) (int, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	_, oobn, _, _, err := unix.Recvmsg(sock, buf, oob, 0)
	if err != nil {
		return -1, err
	}

	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, fmt.Errorf("parse control message: %w", err)
	}
	if len(msgs) == 0 {
		return -1, errors.New("no control message received")
	}
	if msgs[0].Header.Level != unix.SOL_SOCKET || msgs[0].Header.Type != unix.SCM_RIGHTS {
		return -1, fmt.Errorf("unexpected control message %d/%d", msgs[0].Header.Level, msgs[0].Header.Type)
	}

	fds, err := unix.ParseUnixRights(&msgs[0])
	if err != nil {
		return -1, fmt.Errorf("parse rights: %w", err)
	}
	if len(fds) == 0 {
		return -1, errors.New("control message carried no descriptor")
	}
	return fds[0], nil
}

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

// Command http-loadgen drives a single-shot HTTP origin: one TCP
// connection per request, no keep-alive, read until the server closes.
// It dials raw sockets on purpose; the server under test closes every
// connection after one response, which pooled clients handle poorly.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:8080", "host:port of the server under test")
		path    = flag.String("path", "/", "request path")
		method  = flag.String("method", "GET", "request method: GET, HEAD or POST")
		body    = flag.String("body", "", "request body for POST")
		n       = flag.Int("n", 1000, "total requests to send")
		conc    = flag.Int("c", 4, "concurrent workers")
		timeout = flag.Duration("timeout", 5*time.Second, "per-request dial/read timeout")
	)
	flag.Parse()

	m := strings.ToUpper(*method)
	if m != "GET" && m != "HEAD" && m != "POST" {
		fmt.Fprintf(os.Stderr, "unknown -method=%s (want GET|HEAD|POST)\n", *method)
		os.Exit(2)
	}
	if *n <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	request := buildRequest(m, *path, *addr, *body)

	var okCount, errCount int64
	statuses := newStatusTally()

	worker := func(count int) {
		for i := 0; i < count; i++ {
			status, err := shoot(*addr, request, *timeout)
			if err != nil {
				atomic.AddInt64(&errCount, 1)
				continue
			}
			atomic.AddInt64(&okCount, 1)
			statuses.record(status)
		}
	}

	start := time.Now()

	// Split N across conc workers
	per := *n / *conc
	rem := *n - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(c int) {
			defer wg.Done()
			worker(c)
		}(count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(*n) / elapsed.Seconds()
	fmt.Printf("LoadGen: %s %s N=%d c=%d go=%d ok=%d err=%d Duration=%s Throughput=%.0f req/s\n",
		m, *path, *n, *conc, runtime.GOMAXPROCS(0), okCount, errCount,
		elapsed.Truncate(time.Millisecond), ops)
	statuses.print()
}

// buildRequest assembles the raw request bytes once; every connection
// sends the same payload.
func buildRequest(method, path, addr, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", method, path)
	fmt.Fprintf(&b, "Host: %s\r\n", addr)
	if method == "POST" && body != "" {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	if method == "POST" {
		b.WriteString(body)
	}
	return []byte(b.String())
}

// shoot performs one request over a fresh connection and returns the
// status line.
func shoot(addr string, request []byte, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(request); err != nil {
		return "", err
	}

	// The server closes after one response; read everything.
	response, err := io.ReadAll(conn)
	if err != nil {
		return "", err
	}

	line, _, _ := strings.Cut(string(response), "\r\n")
	return line, nil
}

// statusTally counts responses per status line.
type statusTally struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newStatusTally() *statusTally {
	return &statusTally{counts: make(map[string]int64)}
}

func (t *statusTally) record(status string) {
	t.mu.Lock()
	t.counts[status]++
	t.mu.Unlock()
}

func (t *statusTally) print() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for status, count := range t.counts {
		fmt.Printf("  %6d  %s\n", count, status)
	}
}

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

// Package main is the preforkd entry point. The same binary runs in two
// modes: as the supervisor owning the TCP listener and the worker pool,
// and, when re-executed by the supervisor with the worker environment
// mark, as a worker serving exactly one connection.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"preforkd/internal/httpd"
	"preforkd/internal/loader"
	"preforkd/internal/netio"
	"preforkd/internal/store"
	"preforkd/internal/supervisor"
	"preforkd/internal/telemetry"
)

type arguments struct {
	address      string
	port         uint16
	debug        bool
	libPath      string
	workers      int
	publicDir    string
	metricsAddr  string
	storeBackend string
	redisAddr    string
	storeFile    string
}

func main() {
	args, err := getArguments(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		usage(os.Stderr)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n", err)
		usage(os.Stderr)
		os.Exit(1)
	}

	configureLogging(args.debug)

	kv, err := store.Build(args.storeBackend, store.Options{
		FilePath:  args.storeFile,
		RedisAddr: args.redisAddr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "store init: %v\n", err)
		os.Exit(1)
	}

	ld := loader.New()
	ld.Register(httpd.NewProcessor(kv).Symbols())

	if supervisor.IsWorkerProcess() {
		os.Exit(runWorker(args, ld))
	}
	os.Exit(runSupervisor(args, ld))
}

// getArguments parses and validates the command line.
func getArguments(argv []string) (arguments, error) {
	var args arguments
	var portStr string

	fs := flag.NewFlagSet("preforkd", flag.ContinueOnError)
	fs.Usage = func() {}
	fs.SetOutput(discard{})

	fs.StringVar(&args.address, "a", "", "address of the web server")
	fs.StringVar(&portStr, "p", "", "port to bind to")
	fs.BoolVar(&args.debug, "d", false, "enable debug logging")
	fs.StringVar(&args.libPath, "l", "./libhttp.so", "path to the processing module")
	fs.IntVar(&args.workers, "w", 3, "worker count")
	fs.StringVar(&args.publicDir, "s", "./public/", "public directory")
	fs.StringVar(&args.metricsAddr, "m", "", "metrics listen address")
	fs.StringVar(&args.storeBackend, "b", "file", "store backend")
	fs.StringVar(&args.redisAddr, "r", "", "redis address")
	fs.StringVar(&args.storeFile, "f", store.DefaultFilePath, "store journal file")

	if err := fs.Parse(argv); err != nil {
		return args, err
	}

	if args.address == "" {
		return args, errors.New("an address is required")
	}
	if portStr == "" {
		return args, errors.New("a port is required")
	}
	port, err := netio.ConvertPort(portStr)
	if err != nil {
		return args, errors.New("port must be between 1 and 65535")
	}
	args.port = port

	if args.workers < 1 {
		return args, errors.New("worker count must be at least 1")
	}

	return args, nil
}

// discard silences the flag package's own error printing; main owns the
// usage output.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func usage(w *os.File) {
	fmt.Fprintln(w, "Usage: preforkd [-h] [-d] -a <address> -p <port> [-l <module-path>] [-w <workers>] [-s <public-dir>] [-m <metrics-addr>] [-b <store-backend>] [-r <redis-addr>] [-f <store-file>]")
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -a <address>       Address of the web server")
	fmt.Fprintln(w, "  -p <port>          Port to bind to")
	fmt.Fprintln(w, "  -d                 Enables the debug mode")
	fmt.Fprintln(w, "  -l <module-path>   Hot-reloadable processing module (default ./libhttp.so)")
	fmt.Fprintln(w, "  -w <workers>       Steady-state worker count (default 3)")
	fmt.Fprintln(w, "  -s <public-dir>    Public directory (default ./public/)")
	fmt.Fprintln(w, "  -m <metrics-addr>  Serve Prometheus /metrics on this address")
	fmt.Fprintln(w, "  -b <backend>       Store backend: file, redis, logging (default file)")
	fmt.Fprintln(w, "  -r <redis-addr>    Redis address for the redis backend")
	fmt.Fprintln(w, "  -f <store-file>    Journal file for the file backend (default ./db_records)")
	fmt.Fprintln(w, "  -h                 Display this help message")
}

func configureLogging(debug bool) {
	// commonlog verbosity: 1=Error, 2=Warning, 3=Notice, 4=Info, 5=Debug
	verbosity := 4
	if debug {
		verbosity = 5
	}
	commonlog.Configure(verbosity, nil)
}

// runWorker is the child path: wait for the supervisor's ready byte, bind
// the processing module, then serve the one transferred connection.
func runWorker(args arguments, ld *loader.Loader) int {
	if err := supervisor.WaitReady(); err != nil {
		fmt.Fprintf(os.Stderr, "worker ready barrier: %v\n", err)
		return 1
	}

	// The module is bound before the worker blocks waiting for its
	// client, so a mid-request reload in the supervisor never tears code
	// out from under this process.
	if err := ld.Reload(args.libPath); err != nil {
		commonlog.GetLogger("preforkd").Errorf("worker module load: %v", err)
	}

	return supervisor.WorkerMain(ld, args.publicDir)
}

// runSupervisor is the parent path: build the server and run the event
// loop until SIGINT.
func runSupervisor(args arguments, ld *loader.Loader) int {
	if args.metricsAddr != "" {
		telemetry.StartMetricsEndpoint(args.metricsAddr)
	}

	srv, err := supervisor.New(supervisor.Config{
		Address:    args.address,
		Port:       args.port,
		PublicDir:  args.publicDir,
		LibPath:    args.libPath,
		Workers:    args.workers,
		WorkerArgs: os.Args[1:],
	}, ld)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}

	if err := srv.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 1
	}
	return 0
}

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

package main

import (
	"errors"
	"flag"
	"testing"
)

func TestGetArguments_Defaults(t *testing.T) {
	args, err := getArguments([]string{"-a", "127.0.0.1", "-p", "8080"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if args.address != "127.0.0.1" || args.port != 8080 {
		t.Fatalf("address/port: %+v", args)
	}
	if args.libPath != "./libhttp.so" {
		t.Fatalf("lib default: %q", args.libPath)
	}
	if args.workers != 3 {
		t.Fatalf("workers default: %d", args.workers)
	}
	if args.publicDir != "./public/" {
		t.Fatalf("public dir default: %q", args.publicDir)
	}
	if args.storeBackend != "file" || args.storeFile != "./db_records" {
		t.Fatalf("store defaults: %+v", args)
	}
	if args.debug {
		t.Fatal("debug on by default")
	}
}

func TestGetArguments_Overrides(t *testing.T) {
	args, err := getArguments([]string{
		"-a", "0.0.0.0", "-p", "80", "-d",
		"-l", "./custom.so", "-w", "8", "-s", "./www/",
		"-m", ":9090", "-b", "redis", "-r", "127.0.0.1:6379",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !args.debug || args.workers != 8 || args.libPath != "./custom.so" {
		t.Fatalf("overrides: %+v", args)
	}
	if args.metricsAddr != ":9090" || args.storeBackend != "redis" || args.redisAddr != "127.0.0.1:6379" {
		t.Fatalf("expansion flags: %+v", args)
	}
}

func TestGetArguments_Validation(t *testing.T) {
	cases := [][]string{
		{},                                   // nothing
		{"-p", "8080"},                       // missing address
		{"-a", "127.0.0.1"},                  // missing port
		{"-a", "127.0.0.1", "-p", "0"},       // port below range
		{"-a", "127.0.0.1", "-p", "65536"},   // port above range
		{"-a", "127.0.0.1", "-p", "http"},    // not a number
		{"-a", "x", "-p", "80", "-w", "0"},   // no workers
		{"-a", "x", "-p", "80", "-w", "-2"},  // negative workers
		{"-a", "x", "-p", "80", "-q", "huh"}, // unknown option
	}
	for _, argv := range cases {
		if _, err := getArguments(argv); err == nil {
			t.Errorf("getArguments(%v): expected error", argv)
		}
	}
}

func TestGetArguments_Help(t *testing.T) {
	_, err := getArguments([]string{"-h"})
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("got %v, want flag.ErrHelp", err)
	}
}

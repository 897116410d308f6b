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

// Package main is recordsctl, a small explorer for the records database
// the server writes POST bodies into. It lists keys or dumps the value
// recorded for one key.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"preforkd/internal/store"
)

func main() {
	var (
		file = flag.String("f", store.DefaultFilePath, "records journal file")
		key  = flag.String("k", "", "print the value stored for this key")
		list = flag.Bool("l", false, "list all stored keys")
	)
	flag.Parse()

	if *key == "" && !*list {
		fmt.Fprintln(os.Stderr, "Usage: recordsctl [-f <store-file>] (-l | -k <key>)")
		os.Exit(1)
	}

	s, err := store.OpenFileStore(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recordsctl: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if *list {
		keys := s.Keys()
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Println(k)
		}
		return
	}

	value, found, err := s.Get(context.Background(), *key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recordsctl: %v\n", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "recordsctl: no record for %q\n", *key)
		os.Exit(1)
	}
	os.Stdout.Write(value)
}

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

package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_PutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_records")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, "/k", []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}

	value, found, err := s.Get(ctx, "/k")
	if err != nil || !found {
		t.Fatalf("get: value=%q found=%v err=%v", value, found, err)
	}
	if !bytes.Equal(value, []byte("hello")) {
		t.Fatalf("get: got %q, want %q", value, "hello")
	}

	if _, found, _ := s.Get(ctx, "/missing"); found {
		t.Fatal("missing key reported as found")
	}
}

func TestFileStore_LastWriterWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_records")
	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, "/k", []byte("one")); err != nil {
		t.Fatalf("put one: %v", err)
	}
	if err := s.Put(ctx, "/k", []byte("two")); err != nil {
		t.Fatalf("put two: %v", err)
	}

	value, _, err := s.Get(ctx, "/k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != "two" {
		t.Fatalf("got %q, want %q", value, "two")
	}
}

// TestFileStore_Replay reopens the journal in a second store, simulating a
// fresh worker process picking up records written by an earlier one.
func TestFileStore_Replay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_records")
	ctx := context.Background()

	first, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Put(ctx, "/a", []byte("1")); err != nil {
		t.Fatalf("put /a: %v", err)
	}
	if err := first.Put(ctx, "/b", []byte{0x00, 0xff, 0x7f}); err != nil {
		t.Fatalf("put /b: %v", err)
	}
	if err := first.Put(ctx, "/a", []byte("2")); err != nil {
		t.Fatalf("overwrite /a: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	value, found, err := second.Get(ctx, "/a")
	if err != nil || !found || string(value) != "2" {
		t.Fatalf("replayed /a: value=%q found=%v err=%v", value, found, err)
	}
	value, found, err = second.Get(ctx, "/b")
	if err != nil || !found || !bytes.Equal(value, []byte{0x00, 0xff, 0x7f}) {
		t.Fatalf("replayed /b: value=%q found=%v err=%v", value, found, err)
	}
	if got := len(second.Keys()); got != 2 {
		t.Fatalf("keys: got %d, want 2", got)
	}
}

// TestFileStore_TornTail checks that a truncated trailing record does not
// prevent the journal from opening.
func TestFileStore_TornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db_records")
	ctx := context.Background()

	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Put(ctx, "/k", []byte("keep")); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.Close()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	f.WriteString(`{"key":"/torn","val`)
	f.Close()

	reopened, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reopen with torn tail: %v", err)
	}
	defer reopened.Close()

	if _, found, _ := reopened.Get(ctx, "/k"); !found {
		t.Fatal("intact record lost")
	}
	if _, found, _ := reopened.Get(ctx, "/torn"); found {
		t.Fatal("torn record surfaced")
	}
}

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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// record is one journal line. Value round-trips through base64 inside the
// JSON encoding, so arbitrary body bytes are safe.
type record struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// FileStore is a key/value store backed by an append-only JSONL journal.
// The full journal is replayed into an in-memory index on open; later
// records for a key shadow earlier ones. Appends are written with O_APPEND
// and flushed per Put, so short-lived worker processes sharing the journal
// interleave whole records.
type FileStore struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	path  string
	index map[string][]byte
}

// OpenFileStore opens (creating if needed) the journal at path and replays
// it into memory.
func OpenFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	s := &FileStore{
		f:     f,
		w:     bufio.NewWriter(f),
		path:  path,
		index: make(map[string][]byte),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn tail record from an interrupted writer is dropped
			// rather than poisoning the whole journal.
			continue
		}
		s.index[rec.Key] = rec.Value
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("replay journal %s: %w", path, err)
	}

	return s, nil
}

// Put appends a record to the journal and updates the index. The previous
// value for the key, if any, is shadowed.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	enc := json.NewEncoder(s.w)
	if err := enc.Encode(record{Key: key, Value: value}); err != nil {
		return fmt.Errorf("append record %q: %w", key, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush journal: %w", err)
	}

	s.index[key] = append([]byte(nil), value...)
	return nil
}

// Get returns the latest value recorded for key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.index[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Keys returns every key currently in the index.
func (s *FileStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	return keys
}

// Close flushes and closes the journal.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

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
	"context"
	"errors"
	"testing"
)

// fakeRedisClient records operations in memory.
type fakeRedisClient struct {
	data      map[string][]byte
	returnErr error
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{data: make(map[string][]byte)}
}

func (f *fakeRedisClient) Set(ctx context.Context, key string, value []byte) error {
	if f.returnErr != nil {
		return f.returnErr
	}
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.returnErr != nil {
		return nil, false, f.returnErr
	}
	value, ok := f.data[key]
	return value, ok, nil
}

func TestRecordKey(t *testing.T) {
	if got, want := RecordKey("/k"), "record:/k"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRedisStore_PutGet(t *testing.T) {
	fake := newFakeRedisClient()
	s := NewRedisStore(fake)
	ctx := context.Background()

	if err := s.Put(ctx, "/k", []byte("hello")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok := fake.data["record:/k"]; !ok {
		t.Fatal("record not stored under prefixed key")
	}

	value, found, err := s.Get(ctx, "/k")
	if err != nil || !found || string(value) != "hello" {
		t.Fatalf("get: value=%q found=%v err=%v", value, found, err)
	}

	if _, found, err := s.Get(ctx, "/missing"); err != nil || found {
		t.Fatalf("missing key: found=%v err=%v", found, err)
	}
}

func TestRedisStore_ErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	s := NewRedisStore(&fakeRedisClient{returnErr: boom})
	ctx := context.Background()

	if err := s.Put(ctx, "/k", nil); !errors.Is(err, boom) {
		t.Fatalf("put error: %v", err)
	}
	if _, _, err := s.Get(ctx, "/k"); !errors.Is(err, boom) {
		t.Fatalf("get error: %v", err)
	}
}

func TestLoggingRedisClient_AlwaysMisses(t *testing.T) {
	s := NewRedisStore(LoggingRedisClient{})
	ctx := context.Background()

	if err := s.Put(ctx, "/k", []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, found, err := s.Get(ctx, "/k"); err != nil || found {
		t.Fatalf("logging client get: found=%v err=%v", found, err)
	}
}

func TestBuild(t *testing.T) {
	if _, err := Build("bogus", Options{}); err == nil {
		t.Fatal("unknown backend accepted")
	}

	s, err := Build("redis", Options{})
	if err != nil {
		t.Fatalf("redis fallback: %v", err)
	}
	if _, ok := s.(*RedisStore); !ok {
		t.Fatalf("redis backend type: %T", s)
	}

	s, err = Build("logging", Options{})
	if err != nil {
		t.Fatalf("logging: %v", err)
	}
	if _, ok := s.(*RedisStore); !ok {
		t.Fatalf("logging backend type: %T", s)
	}
}

func TestBuild_File(t *testing.T) {
	path := t.TempDir() + "/db_records"
	s, err := Build("file", Options{FilePath: path})
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	fs, ok := s.(*FileStore)
	if !ok {
		t.Fatalf("file backend type: %T", s)
	}
	fs.Close()
}

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

package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"preforkd/internal/httpd"
)

// artifact drops a placeholder module file and returns its path.
func artifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libhttp.so")
	if err := os.WriteFile(path, []byte("module-v1"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func TestLoader_UnboundDelegatesFail(t *testing.T) {
	l := New()

	if _, err := l.RequestInit("./public/"); !errors.Is(err, ErrNotBound) {
		t.Fatalf("request init: %v", err)
	}
	if err := l.RequestParse(nil, nil); !errors.Is(err, ErrNotBound) {
		t.Fatalf("request parse: %v", err)
	}
	if err := l.RequestProcess(nil, nil); !errors.Is(err, ErrNotBound) {
		t.Fatalf("request process: %v", err)
	}
	if _, err := l.ResponseWrite(nil, nil); !errors.Is(err, ErrNotBound) {
		t.Fatalf("response write: %v", err)
	}
	if err := l.RequestDestroy(nil); !errors.Is(err, ErrNotBound) {
		t.Fatalf("request destroy: %v", err)
	}
	if err := l.ResponseDestroy(nil); !errors.Is(err, ErrNotBound) {
		t.Fatalf("response destroy: %v", err)
	}
}

func TestLoader_ReloadBindsAllSix(t *testing.T) {
	path := artifact(t)

	l := New()
	l.Register(httpd.NewProcessor(nil).Symbols())

	if err := l.Reload(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !l.Bound() {
		t.Fatal("loader not bound after reload")
	}
	if l.Handle().Inode == 0 || l.Handle().Size != int64(len("module-v1")) {
		t.Fatalf("handle: %+v", l.Handle())
	}

	req, err := l.RequestInit("./public/")
	if err != nil {
		t.Fatalf("delegated init: %v", err)
	}
	if err := l.RequestParse(req, []byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("delegated parse: %v", err)
	}
	if req.URI != "/index.html" {
		t.Fatalf("delegated parse result: %q", req.URI)
	}
}

func TestLoader_MissingSymbolClearsAll(t *testing.T) {
	path := artifact(t)

	l := New()
	symbols := httpd.NewProcessor(nil).Symbols()
	delete(symbols, httpd.SymbolResponseWrite)
	l.Register(symbols)

	if err := l.Reload(path); !errors.Is(err, ErrModuleLoad) {
		t.Fatalf("reload with missing symbol: %v", err)
	}
	if l.Bound() {
		t.Fatal("partial module left bound")
	}
	if _, err := l.RequestInit("./public/"); !errors.Is(err, ErrNotBound) {
		t.Fatalf("partial module delegates: %v", err)
	}
}

func TestLoader_MistypedSymbolClearsAll(t *testing.T) {
	path := artifact(t)

	l := New()
	symbols := httpd.NewProcessor(nil).Symbols()
	symbols[httpd.SymbolRequestProcess] = func() {}
	l.Register(symbols)

	if err := l.Reload(path); !errors.Is(err, ErrModuleLoad) {
		t.Fatalf("reload with mistyped symbol: %v", err)
	}
	if l.Bound() {
		t.Fatal("mistyped module left bound")
	}
}

func TestLoader_MissingArtifact(t *testing.T) {
	l := New()
	l.Register(httpd.NewProcessor(nil).Symbols())

	err := l.Reload(filepath.Join(t.TempDir(), "absent.so"))
	if !errors.Is(err, ErrModuleLoad) {
		t.Fatalf("reload of absent artifact: %v", err)
	}
	if l.Bound() {
		t.Fatal("loader bound to absent artifact")
	}
}

// TestLoader_ReloadReplacesPrior checks a second reload rebinds against the
// new artifact version.
func TestLoader_ReloadReplacesPrior(t *testing.T) {
	path := artifact(t)

	l := New()
	l.Register(httpd.NewProcessor(nil).Symbols())
	if err := l.Reload(path); err != nil {
		t.Fatalf("first reload: %v", err)
	}
	first := l.Handle()

	if err := os.WriteFile(path, []byte("module-v2-longer"), 0o644); err != nil {
		t.Fatalf("rewrite artifact: %v", err)
	}
	if err := l.Reload(path); err != nil {
		t.Fatalf("second reload: %v", err)
	}
	if l.Handle().Size == first.Size {
		t.Fatalf("handle did not change: %+v", l.Handle())
	}
}

func TestWatcher_ObservesArtifactLifecycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libhttp.so")

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()

	// Quiet directory, nothing pending.
	kinds, err := w.Pending()
	if err != nil || len(kinds) != 0 {
		t.Fatalf("initial pending: %v %v", kinds, err)
	}

	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("create artifact: %v", err)
	}
	kinds, err = w.Pending()
	if err != nil || len(kinds) == 0 {
		t.Fatalf("pending after create: %v %v", kinds, err)
	}
	if kinds[0] != Created {
		t.Fatalf("first event: got %v, want Created", kinds[0])
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	kinds, err = w.Pending()
	if err != nil || len(kinds) == 0 {
		t.Fatalf("pending after remove: %v %v", kinds, err)
	}
	if kinds[len(kinds)-1] != Removed {
		t.Fatalf("last event: got %v, want Removed", kinds[len(kinds)-1])
	}

	// Events on unrelated names are filtered out.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("create unrelated: %v", err)
	}
	kinds, err = w.Pending()
	if err != nil || len(kinds) != 0 {
		t.Fatalf("unrelated events surfaced: %v %v", kinds, err)
	}
}

func TestCheckLibraryUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "libhttp.so")

	l := New()
	l.Register(httpd.NewProcessor(nil).Symbols())

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()

	// Artifact appears: module binds.
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("create artifact: %v", err)
	}
	if err := l.CheckLibraryUpdate(w); err != nil {
		t.Fatalf("check after create: %v", err)
	}
	if !l.Bound() {
		t.Fatal("module not bound after create event")
	}

	// Artifact disappears: module releases.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}
	if err := l.CheckLibraryUpdate(w); err != nil {
		t.Fatalf("check after remove: %v", err)
	}
	if l.Bound() {
		t.Fatal("module still bound after delete event")
	}

	// A later create rebinds.
	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatalf("recreate artifact: %v", err)
	}
	if err := l.CheckLibraryUpdate(w); err != nil {
		t.Fatalf("check after recreate: %v", err)
	}
	if !l.Bound() {
		t.Fatal("module not rebound after recreate")
	}
}

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

// Package loader holds exactly one processing module at a time and
// delegates the six HTTP entry points to it. Reloading opens the artifact
// file backing the module, derives a version handle from it and resolves
// the six named symbols from the registry. Resolution is all-or-nothing:
// a partial module leaves the loader unbound and the error surfaced.
package loader

import (
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sys/unix"

	"preforkd/internal/httpd"
)

var log = commonlog.GetLogger("preforkd.loader")

var (
	// ErrNotBound reports a delegated call while no module is bound.
	ErrNotBound = errors.New("no processing module bound")

	// ErrModuleLoad reports a reload that could not open the artifact or
	// resolve all six symbols.
	ErrModuleLoad = errors.New("module load failed")
)

// Handle identifies the version of the artifact a module was bound from.
type Handle struct {
	Inode   uint64
	Size    int64
	ModTime time.Time
}

// Loader binds the six processing entry points resolved from a symbol
// registry. The supervisor is single-threaded, so a successful Reload is
// atomic from its point of view.
type Loader struct {
	registry map[string]any

	requestInit     func(string) (*httpd.Request, error)
	requestParse    func(*httpd.Request, []byte) error
	requestProcess  func(*httpd.Request, *httpd.Response) error
	responseWrite   func(*httpd.Response, *httpd.Request) ([]byte, error)
	requestDestroy  func(*httpd.Request) error
	responseDestroy func(*httpd.Response) error

	handle Handle
	bound  bool
}

// New returns an unbound loader with an empty registry.
func New() *Loader {
	return &Loader{registry: make(map[string]any)}
}

// Register merges entry-point implementations into the registry. Keys are
// the artifact symbol names.
func (l *Loader) Register(symbols map[string]any) {
	for name, fn := range symbols {
		l.registry[name] = fn
	}
}

// Bound reports whether a module is currently bound.
func (l *Loader) Bound() bool { return l.bound }

// Handle returns the version handle of the bound module. Only meaningful
// while Bound reports true.
func (l *Loader) Handle() Handle { return l.handle }

// Release drops the current module, zeroing every binding.
func (l *Loader) Release() {
	l.requestInit = nil
	l.requestParse = nil
	l.requestProcess = nil
	l.responseWrite = nil
	l.requestDestroy = nil
	l.responseDestroy = nil
	l.handle = Handle{}
	l.bound = false
}

// Reload replaces the current module with one loaded from path. The prior
// module is released first; on any failure the bindings stay cleared.
func (l *Loader) Reload(path string) error {
	l.Release()

	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrModuleLoad, path, err)
	}

	resolve := func(name string) any {
		fn, ok := l.registry[name]
		if !ok {
			return nil
		}
		return fn
	}

	requestInit, ok1 := resolve(httpd.SymbolRequestInit).(func(string) (*httpd.Request, error))
	requestParse, ok2 := resolve(httpd.SymbolRequestParse).(func(*httpd.Request, []byte) error)
	requestProcess, ok3 := resolve(httpd.SymbolRequestProcess).(func(*httpd.Request, *httpd.Response) error)
	responseWrite, ok4 := resolve(httpd.SymbolResponseWrite).(func(*httpd.Response, *httpd.Request) ([]byte, error))
	requestDestroy, ok5 := resolve(httpd.SymbolRequestDestroy).(func(*httpd.Request) error)
	responseDestroy, ok6 := resolve(httpd.SymbolResponseDestroy).(func(*httpd.Response) error)

	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return fmt.Errorf("%w: %s does not resolve all six entry points", ErrModuleLoad, path)
	}

	l.requestInit = requestInit
	l.requestParse = requestParse
	l.requestProcess = requestProcess
	l.responseWrite = responseWrite
	l.requestDestroy = requestDestroy
	l.responseDestroy = responseDestroy
	l.handle = Handle{
		Inode:   stat.Ino,
		Size:    stat.Size,
		ModTime: time.Unix(stat.Mtim.Sec, stat.Mtim.Nsec),
	}
	l.bound = true

	log.Infof("processing module bound from %s (inode %d, %d bytes)", path, l.handle.Inode, l.handle.Size)
	return nil
}

// RequestInit delegates to the bound module.
func (l *Loader) RequestInit(publicDir string) (*httpd.Request, error) {
	if l.requestInit == nil {
		return nil, ErrNotBound
	}
	return l.requestInit(publicDir)
}

// RequestParse delegates to the bound module.
func (l *Loader) RequestParse(req *httpd.Request, data []byte) error {
	if l.requestParse == nil {
		return ErrNotBound
	}
	return l.requestParse(req, data)
}

// RequestProcess delegates to the bound module.
func (l *Loader) RequestProcess(req *httpd.Request, resp *httpd.Response) error {
	if l.requestProcess == nil {
		return ErrNotBound
	}
	return l.requestProcess(req, resp)
}

// ResponseWrite delegates to the bound module.
func (l *Loader) ResponseWrite(resp *httpd.Response, req *httpd.Request) ([]byte, error) {
	if l.responseWrite == nil {
		return nil, ErrNotBound
	}
	return l.responseWrite(resp, req)
}

// RequestDestroy delegates to the bound module.
func (l *Loader) RequestDestroy(req *httpd.Request) error {
	if l.requestDestroy == nil {
		return ErrNotBound
	}
	return l.requestDestroy(req)
}

// ResponseDestroy delegates to the bound module.
func (l *Loader) ResponseDestroy(resp *httpd.Response) error {
	if l.responseDestroy == nil {
		return ErrNotBound
	}
	return l.responseDestroy(resp)
}

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
	"fmt"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

// EventKind classifies a filesystem event on the watched artifact.
type EventKind int

const (
	// Created is a create or move-in of the artifact file.
	Created EventKind = iota
	// Modified is a write or close-after-write of the artifact file.
	Modified
	// Removed is a delete or move-out of the artifact file.
	Removed
)

// Watcher observes the directory containing the module artifact through a
// non-blocking inotify descriptor. Watching the directory rather than the
// file keeps delete-then-create sequences observable.
type Watcher struct {
	fd   int
	path string
	base string
}

// NewWatcher sets up an inotify watch covering the artifact at path.
func NewWatcher(path string) (*Watcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("inotify init: %w", err)
	}

	dir := filepath.Dir(path)
	mask := uint32(unix.IN_CREATE | unix.IN_MODIFY | unix.IN_CLOSE_WRITE |
		unix.IN_DELETE | unix.IN_MOVED_TO | unix.IN_MOVED_FROM)
	if _, err := unix.InotifyAddWatch(fd, dir, mask); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inotify watch %s: %w", dir, err)
	}

	return &Watcher{fd: fd, path: path, base: filepath.Base(path)}, nil
}

// FD exposes the inotify descriptor, usable in a poll set.
func (w *Watcher) FD() int { return w.fd }

// Path returns the watched artifact path.
func (w *Watcher) Path() string { return w.path }

// Close releases the inotify descriptor.
func (w *Watcher) Close() {
	if w.fd >= 0 {
		unix.Close(w.fd)
		w.fd = -1
	}
}

// Pending drains queued events without blocking and returns, in order, the
// kinds of events that mention the artifact. Events for other names in the
// directory are discarded.
func (w *Watcher) Pending() ([]EventKind, error) {
	var kinds []EventKind
	buf := make([]byte, 4096)

	for {
		n, err := unix.Read(w.fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN {
			return kinds, nil
		}
		if err != nil {
			return kinds, fmt.Errorf("inotify read: %w", err)
		}

		offset := 0
		for offset+unix.SizeofInotifyEvent <= n {
			event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := int(event.Len)
			name := ""
			if nameLen > 0 {
				raw := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
				name = strings.TrimRight(string(raw), "\x00")
			}
			offset += unix.SizeofInotifyEvent + nameLen

			if name != w.base {
				continue
			}
			switch {
			case event.Mask&(unix.IN_DELETE|unix.IN_MOVED_FROM) != 0:
				kinds = append(kinds, Removed)
			case event.Mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0:
				kinds = append(kinds, Created)
			case event.Mask&(unix.IN_MODIFY|unix.IN_CLOSE_WRITE) != 0:
				kinds = append(kinds, Modified)
			}
		}
	}
}

// CheckLibraryUpdate drains the watcher and reacts to events touching the
// artifact: deletion releases the module, creation or modification reloads
// it. The previous module stays bound when nothing relevant happened.
func (l *Loader) CheckLibraryUpdate(w *Watcher) error {
	kinds, err := w.Pending()
	if err != nil {
		return err
	}

	var reloadErr error
	for _, kind := range kinds {
		switch kind {
		case Removed:
			log.Noticef("module artifact %s removed, releasing", w.Path())
			l.Release()
			reloadErr = nil
		case Created, Modified:
			log.Noticef("module artifact %s changed, reloading", w.Path())
			reloadErr = l.Reload(w.Path())
			if reloadErr != nil {
				log.Errorf("reload %s: %v", w.Path(), reloadErr)
			}
		}
	}
	return reloadErr
}

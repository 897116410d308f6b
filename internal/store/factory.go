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

import "fmt"

// DefaultFilePath is where the journal backend keeps its records.
const DefaultFilePath = "./db_records"

// Options carries backend-specific settings for Build.
type Options struct {
	// FilePath is the journal location for the file backend. Empty means
	// DefaultFilePath.
	FilePath string

	// RedisAddr selects a real Redis server for the redis backend. Empty
	// falls back to the logging client.
	RedisAddr string
}

// Build constructs a KeyValueStore for the named backend:
//   - "file" (default): append-only journal at Options.FilePath
//   - "redis": go-redis client at Options.RedisAddr, or the logging client
//     when no address is given
//   - "logging": logging client only, nothing is stored
func Build(backend string, opts Options) (KeyValueStore, error) {
	switch backend {
	case "", "file":
		path := opts.FilePath
		if path == "" {
			path = DefaultFilePath
		}
		return OpenFileStore(path)
	case "redis":
		if opts.RedisAddr != "" {
			return NewRedisStore(NewGoRedisClient(opts.RedisAddr)), nil
		}
		return NewRedisStore(LoggingRedisClient{}), nil
	case "logging":
		return NewRedisStore(LoggingRedisClient{}), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}

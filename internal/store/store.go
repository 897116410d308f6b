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

// Package store provides the persistent key/value store that backs POST
// persistence: a map from request URI to raw body bytes, with no defined
// key order. Adapters
// exist for a local journal file and for Redis; writes to the same key are
// last-writer-wins on every backend.
package store

import "context"

// KeyValueStore is the minimal persistence surface the handlers need.
// Put overwrites any prior value for the key. Get reports whether the key
// exists; a missing key is not an error.
type KeyValueStore interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

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
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("preforkd.store")

// RedisClient abstracts the minimal surface needed from a Redis client.
// Implementations may wrap github.com/redis/go-redis/v9 or any equivalent.
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// RecordKey returns the Redis key under which a request URI's record is
// stored.
func RecordKey(key string) string { return fmt.Sprintf("record:%s", key) }

// RedisStore adapts a RedisClient to the KeyValueStore interface.
type RedisStore struct {
	client RedisClient
}

// NewRedisStore returns a store backed by the given client.
func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

// Put overwrites the record for key. SET without expiry gives the same
// last-writer-wins semantics as the journal backend.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, RecordKey(key), value); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Get fetches the record for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, found, err := s.client.Get(ctx, RecordKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return value, found, nil
}

// GoRedisClient wraps a real go-redis client.
type GoRedisClient struct {
	c *redis.Client
}

// NewGoRedisClient connects to the Redis server at addr.
func NewGoRedisClient(addr string) *GoRedisClient {
	return &GoRedisClient{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisClient) Set(ctx context.Context, key string, value []byte) error {
	return g.c.Set(ctx, key, value, 0).Err()
}

func (g *GoRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := g.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// LoggingRedisClient is a tiny stand-in client that just logs operations.
// It lets the redis backend be selected without a reachable server. Reads
// always miss. Not for production use.
type LoggingRedisClient struct{}

func (LoggingRedisClient) Set(ctx context.Context, key string, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	log.Infof("[redis-demo] SET %s (%d bytes)", key, len(value))
	return nil
}

func (LoggingRedisClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}
	log.Infof("[redis-demo] GET %s", key)
	return nil, false, nil
}

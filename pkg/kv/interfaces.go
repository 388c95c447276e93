/*
 * Copyright 2026 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package kv provides the key-value store interface backing the robot
// state cache.
package kv

import (
	"context"
)

// KVStore is a minimal key-value interface with last-write-wins
// per-key semantics. The store outlives broker restarts but offers no
// transactional guarantees across keys.
type KVStore interface {
	// Get retrieves the value associated with the given key.
	// Returns the value, a boolean indicating if the key was found,
	// and an error if the operation fails.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores a value under the given key, overwriting any prior value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the key and its associated value from the store.
	Delete(ctx context.Context, key string) error

	// Close shuts down the KV store, releasing any resources.
	Close() error
}

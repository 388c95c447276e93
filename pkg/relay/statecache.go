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

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carverauto/fleetrelay/pkg/kv"
	"github.com/carverauto/fleetrelay/pkg/logger"
	"github.com/carverauto/fleetrelay/pkg/models"
)

const (
	stateKeyPrefix = "state."

	setStateAttempts = 3
	setStateBackoff  = 100 * time.Millisecond
)

// StateCache is the read/write path for last-known robot state. The
// external store, not this process, is the source of truth; the cache
// survives broker restarts but not store restarts.
type StateCache struct {
	store  kv.KVStore
	logger logger.Logger
}

// NewStateCache wraps a KVStore with JSON serialization and write retry.
func NewStateCache(store kv.KVStore, log logger.Logger) *StateCache {
	return &StateCache{
		store:  store,
		logger: log,
	}
}

// GetState returns the most recent stored state for robotID, or
// found=false if never set or evicted by the store. A store failure is
// returned as an error so callers can decide whether to degrade.
func (c *StateCache) GetState(ctx context.Context, robotID string) (models.RobotState, bool, error) {
	data, found, err := c.store.Get(ctx, stateKey(robotID))
	if err != nil {
		return nil, false, fmt.Errorf("state read for %s failed: %w", robotID, err)
	}

	if !found {
		return nil, false, nil
	}

	var state models.RobotState
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt entry is treated as absent; the next write replaces it.
		c.logger.Warn().
			Err(err).
			Str("robot_id", robotID).
			Msg("Discarding undecodable cached state")

		return nil, false, nil
	}

	// A literal null decodes to a nil map; callers mutate the result,
	// so treat it as absent too.
	if state == nil {
		return nil, false, nil
	}

	return state, true, nil
}

// SetState serializes and stores the state, overwriting any prior
// value. Writes carry the connectivity flag, so a failed write is
// retried with bounded backoff rather than silently dropped.
func (c *StateCache) SetState(ctx context.Context, robotID string, state models.RobotState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("state for %s is not serializable: %w", robotID, err)
	}

	key := stateKey(robotID)

	var lastErr error

	for attempt := 1; attempt <= setStateAttempts; attempt++ {
		lastErr = c.store.Put(ctx, key, data)
		if lastErr == nil {
			return nil
		}

		c.logger.Warn().
			Err(lastErr).
			Str("robot_id", robotID).
			Int("attempt", attempt).
			Msg("State cache write failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * setStateBackoff):
		}
	}

	return fmt.Errorf("state write for %s failed after %d attempts: %w", robotID, setStateAttempts, lastErr)
}

func stateKey(robotID string) string {
	return stateKeyPrefix + robotID
}

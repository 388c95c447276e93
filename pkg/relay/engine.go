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
	"sync"

	"github.com/carverauto/fleetrelay/pkg/logger"
	"github.com/carverauto/fleetrelay/pkg/models"
	"github.com/carverauto/fleetrelay/pkg/registry"
)

// Engine orchestrates the registry, the state cache, and outbound
// sends. Events from a single connection arrive sequentially from that
// connection's read loop; events from different connections run
// concurrently, so shared state goes through the lock-guarded registry
// and the store's per-key write semantics.
//
// Known accepted race: a disconnect for a robot may interleave with a
// status update from its replacement connection. Each handler restores
// the connection-matches-registry invariant independently and the last
// completed cache write wins.
type Engine struct {
	scope   models.BroadcastScope
	reg     *registry.Registry[Handle]
	cache   *StateCache
	bcast   Broadcaster
	logger  logger.Logger
	metrics *Metrics

	// opMu serializes operator registration so a forced logout always
	// completes before the superseding session is bound and hydrated.
	opMu sync.Mutex
}

// NewEngine builds a relay engine. The broadcaster is attached
// afterwards via SetBroadcaster because the transport layer needs the
// engine first.
func NewEngine(scope models.BroadcastScope, reg *registry.Registry[Handle], cache *StateCache, log logger.Logger, metrics *Metrics) *Engine {
	return &Engine{
		scope:   scope,
		reg:     reg,
		cache:   cache,
		logger:  log,
		metrics: metrics,
	}
}

// SetBroadcaster wires the transport's fan-out primitive. Must be
// called before the transport starts accepting connections.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.bcast = b
}

// Registry exposes the connection registry for observability handlers.
func (e *Engine) Registry() *registry.Registry[Handle] {
	return e.reg
}

// HandleEvent dispatches one inbound event. Unrecognized or malformed
// events are logged and dropped; relay errors never terminate the
// sending connection.
func (e *Engine) HandleEvent(ctx context.Context, h Handle, env models.Envelope) {
	switch env.Event {
	case models.EventRegisterRobot:
		e.handleRegisterRobot(ctx, h, env.Data)
	case models.EventRegisterUI:
		e.handleRegisterUI(ctx, h, env.Data)
	case models.EventCommandToRobot:
		e.handleCommand(h, env.Data)
	case models.EventStatusUpdate:
		e.handleStatusUpdate(ctx, env.Data)
	case models.EventRobotImage:
		e.handleRobotImage(env.Data)
	default:
		e.drop("unknown_event", "conn", h.ID())
	}
}

// HandleDisconnect cleans up every identity bound to a dead handle.
// Calling it again for the same handle is a no-op.
func (e *Engine) HandleDisconnect(ctx context.Context, h Handle) {
	removed := e.reg.RemoveByHandle(h)

	for _, binding := range removed {
		switch binding.Kind {
		case registry.KindRobot:
			e.logger.Info().
				Str("robot_id", binding.ID).
				Str("conn", h.ID()).
				Msg("Robot disconnected")
			e.markDisconnected(ctx, binding.ID)
		case registry.KindOperator:
			// Session dropped; the transport is already gone, so no
			// notification is owed.
			e.logger.Info().
				Str("operator_id", binding.ID).
				Str("conn", h.ID()).
				Msg("Operator disconnected")
		}
	}
}

func (e *Engine) handleRegisterRobot(ctx context.Context, h Handle, data json.RawMessage) {
	var ev models.RegisterRobot
	if err := json.Unmarshal(data, &ev); err != nil || ev.RobotID == "" {
		e.drop("malformed_register_robot", "conn", h.ID())
		return
	}

	// A new registration silently supersedes any prior handle for this
	// robot; takeover, not error.
	e.reg.Put(registry.KindRobot, ev.RobotID, h)

	e.logger.Info().
		Str("robot_id", ev.RobotID).
		Str("conn", h.ID()).
		Msg("Robot registered")

	state := e.readState(ctx, ev.RobotID)
	state.MarkConnected()
	e.writeState(ctx, ev.RobotID, state)
	e.broadcastState(ev.RobotID, state)
}

func (e *Engine) handleRegisterUI(ctx context.Context, h Handle, data json.RawMessage) {
	var ev models.RegisterUI
	if err := json.Unmarshal(data, &ev); err != nil || ev.OperatorID == "" {
		e.drop("malformed_register_ui", "conn", h.ID())
		return
	}

	e.opMu.Lock()

	if old, ok := e.reg.Get(registry.KindOperator, ev.OperatorID); ok && old.ID() != h.ID() {
		e.evict(ev.OperatorID, old)
	}

	e.reg.Put(registry.KindOperator, ev.OperatorID, h)

	e.opMu.Unlock()

	h.Subscribe(TopicOperators)

	for _, robotID := range ev.RobotIDs {
		h.Subscribe(StatusTopic(robotID))
		h.Subscribe(ImageTopic(robotID))
	}

	e.logger.Info().
		Str("operator_id", ev.OperatorID).
		Str("conn", h.ID()).
		Int("robots", len(ev.RobotIDs)).
		Msg("Operator registered")

	e.hydrate(ctx, h, ev.RobotIDs)
}

// evict runs the single-session protocol: notify the superseded
// handle, then terminate its transport, strictly before the new
// binding goes in. Send and close failures are logged only; the old
// transport may already be half-dead.
func (e *Engine) evict(operatorID string, old Handle) {
	e.logger.Info().
		Str("operator_id", operatorID).
		Str("old_conn", old.ID()).
		Msg("Evicting superseded operator session")

	if err := old.Send(models.EventForceLogout, models.ForceLogoutPayload{
		Reason: "signed in from another session",
	}); err != nil {
		e.logger.Warn().Err(err).Str("old_conn", old.ID()).Msg("Force-logout notice not delivered")
	}

	if err := old.Close(); err != nil {
		e.logger.Warn().Err(err).Str("old_conn", old.ID()).Msg("Failed to close superseded session")
	}

	e.metrics.Evictions.Inc()
}

// hydrate sends the newly registered operator the last cached state
// for each robot it asked about, to this handle only. A cache read
// failure degrades to "no last-known state".
func (e *Engine) hydrate(ctx context.Context, h Handle, robotIDs []string) {
	for _, robotID := range robotIDs {
		state, found, err := e.cache.GetState(ctx, robotID)
		if err != nil {
			e.logger.Warn().Err(err).Str("robot_id", robotID).Msg("Hydration read failed, skipping")
			continue
		}

		if !found {
			continue
		}

		if err := h.Send(models.EventStatus, models.StatusPayload{RobotID: robotID, Status: state}); err != nil {
			e.logger.Warn().Err(err).Str("conn", h.ID()).Msg("Hydration send failed")
		}
	}
}

func (e *Engine) handleCommand(h Handle, data json.RawMessage) {
	var ev models.CommandToRobot
	if err := json.Unmarshal(data, &ev); err != nil || ev.RobotID == "" || ev.Command == "" {
		e.drop("malformed_command", "conn", h.ID())
		return
	}

	target, ok := e.reg.Get(registry.KindRobot, ev.RobotID)
	if !ok {
		e.logger.Info().
			Str("robot_id", ev.RobotID).
			Str("command", ev.Command).
			Msg("Command for offline robot")
		e.metrics.CommandsUndeliverable.Inc()

		// Tell the operator instead of failing silently.
		if err := h.Send(models.EventCommandError, models.CommandErrorPayload{
			RobotID: ev.RobotID,
			Error:   "robot is not connected",
		}); err != nil {
			e.logger.Warn().Err(err).Str("conn", h.ID()).Msg("Command-error send failed")
		}

		return
	}

	if err := target.Send(models.EventCommand, models.CommandPayload{Command: ev.Command}); err != nil {
		e.logger.Warn().
			Err(err).
			Str("robot_id", ev.RobotID).
			Msg("Command delivery failed")

		return
	}

	e.metrics.CommandsRelayed.Inc()
	e.logger.Debug().
		Str("robot_id", ev.RobotID).
		Str("command", ev.Command).
		Msg("Command relayed")
}

func (e *Engine) handleStatusUpdate(ctx context.Context, data json.RawMessage) {
	var ev models.StatusUpdate
	if err := json.Unmarshal(data, &ev); err != nil || ev.RobotID == "" {
		e.drop("malformed_status_update", "robot_id", ev.RobotID)
		return
	}

	// The reported map replaces the cached one; the connection field is
	// never trusted from the robot.
	state := models.RobotState(ev.Status)
	if state == nil {
		state = models.RobotState{}
	}

	state.MarkConnected()
	e.writeState(ctx, ev.RobotID, state)
	e.broadcastState(ev.RobotID, state)
}

func (e *Engine) handleRobotImage(data json.RawMessage) {
	var ev models.RobotImage
	if err := json.Unmarshal(data, &ev); err != nil || ev.RobotID == "" || ev.Image == "" {
		e.drop("malformed_robot_image", "robot_id", ev.RobotID)
		return
	}

	// No state mutation; frames only reach operators watching this robot.
	e.bcast.Broadcast(models.EventImage, models.ImagePayload{
		RobotID: ev.RobotID,
		Image:   ev.Image,
	}, ImageTopic(ev.RobotID))
}

// markDisconnected restores the cache invariant after transport loss.
func (e *Engine) markDisconnected(ctx context.Context, robotID string) {
	state := e.readState(ctx, robotID)
	state.MarkDisconnected()
	e.writeState(ctx, robotID, state)
	e.broadcastState(robotID, state)
}

// readState degrades a cache failure to an empty state so connected
// clients never see a cache outage.
func (e *Engine) readState(ctx context.Context, robotID string) models.RobotState {
	state, found, err := e.cache.GetState(ctx, robotID)
	if err != nil {
		e.logger.Warn().Err(err).Str("robot_id", robotID).Msg("State read degraded to empty")
		return models.RobotState{}
	}

	if !found {
		return models.RobotState{}
	}

	return state
}

func (e *Engine) writeState(ctx context.Context, robotID string, state models.RobotState) {
	if err := e.cache.SetState(ctx, robotID, state); err != nil {
		e.logger.Error().Err(err).Str("robot_id", robotID).Msg("State cache write lost")
		e.metrics.CacheWriteFailures.Inc()
	}
}

func (e *Engine) broadcastState(robotID string, state models.RobotState) {
	topic := StatusTopic(robotID)
	if e.scope == models.ScopeGlobal {
		topic = TopicOperators
	}

	e.bcast.Broadcast(models.EventStatus, models.StatusPayload{
		RobotID: robotID,
		Status:  state.Clone(),
	}, topic)
	e.metrics.StateBroadcasts.Inc()
}

func (e *Engine) drop(reason, key, value string) {
	e.logger.Warn().Str(key, value).Str("reason", reason).Msg("Dropping event")
	e.metrics.EventsDropped.WithLabelValues(reason).Inc()
}

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

// Package relay implements the presence and relay engine: it keeps the
// connection registry and the robot state cache in sync and decides
// which outbound messages each inbound event produces.
package relay

import (
	"github.com/carverauto/fleetrelay/pkg/registry"
)

// Handle is one live duplex connection as seen by the relay engine.
// Send must not block event handling; implementations queue the
// message and deliver it from their own writer.
type Handle interface {
	registry.Handle

	// Send queues one event for delivery to this connection only.
	Send(event string, payload interface{}) error

	// Subscribe adds this connection to a broadcast topic.
	Subscribe(topic string)

	// Close terminates the underlying transport.
	Close() error
}

// Broadcaster fans an event out to every connection subscribed to a
// topic. The transport layer implements it.
type Broadcaster interface {
	Broadcast(event string, payload interface{}, topic string)
}

// Broadcast topics. Operators join TopicOperators on registration;
// per-robot topics scope status and image traffic to interested
// operators.
const TopicOperators = "operators"

// StatusTopic names the per-robot status topic.
func StatusTopic(robotID string) string {
	return "status:" + robotID
}

// ImageTopic names the per-robot image-frame topic.
func ImageTopic(robotID string) string {
	return "images:" + robotID
}

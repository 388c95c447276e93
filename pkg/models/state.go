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

package models

// Connection values for the derived "connection" field the relay
// injects into every cached state. Robots never set this themselves.
const (
	ConnectionConnected    = "connected"
	ConnectionDisconnected = "disconnected"
)

// State field names owned by the relay engine.
const (
	FieldConnection = "connection"
	FieldOnline     = "online"
)

// RobotState is the open, schema-less last-known state of one robot.
// The cache, not process memory, is the source of truth for it.
type RobotState map[string]interface{}

// Connection returns the derived connection field, or "" if the relay
// has never written this state.
func (s RobotState) Connection() string {
	v, _ := s[FieldConnection].(string)
	return v
}

// MarkConnected overwrites the relay-owned fields for a live robot.
func (s RobotState) MarkConnected() {
	s[FieldConnection] = ConnectionConnected
	s[FieldOnline] = 1
}

// MarkDisconnected overwrites the relay-owned fields after transport loss.
func (s RobotState) MarkDisconnected() {
	s[FieldConnection] = ConnectionDisconnected
	s[FieldOnline] = 0
}

// Clone returns a shallow copy so broadcast payloads do not alias the
// map a handler is still mutating.
func (s RobotState) Clone() RobotState {
	out := make(RobotState, len(s))
	for k, v := range s {
		out[k] = v
	}

	return out
}

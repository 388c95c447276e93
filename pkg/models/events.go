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

import "encoding/json"

// Inbound event names. Anything outside this set is dropped by the relay.
const (
	EventRegisterRobot  = "register_robot"
	EventRegisterUI     = "register_ui"
	EventCommandToRobot = "command_to_robot"
	EventStatusUpdate   = "status_update"
	EventRobotImage     = "robot_image"
)

// Outbound event names.
const (
	EventStatus       = "status"
	EventCommand      = "command"
	EventCommandError = "command_error"
	EventImage        = "image"
	EventForceLogout  = "force_logout"
)

// Envelope is the wire frame exchanged over a relay connection. Data is
// left raw so each event variant decodes its own required fields.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RegisterRobot binds a robot identity to the sending connection.
type RegisterRobot struct {
	RobotID string `json:"robot_id"`
}

// RegisterUI binds an operator identity to the sending connection and
// names the robots it wants hydrated.
type RegisterUI struct {
	OperatorID string   `json:"operator_id"`
	RobotIDs   []string `json:"robot_ids"`
}

// CommandToRobot asks the relay to forward a command to one robot.
type CommandToRobot struct {
	RobotID string `json:"robot_id"`
	Command string `json:"command"`
}

// StatusUpdate carries a schema-less status report from a robot.
type StatusUpdate struct {
	RobotID string                 `json:"robot_id"`
	Status  map[string]interface{} `json:"status"`
}

// RobotImage carries one base64-encoded camera frame.
type RobotImage struct {
	RobotID string `json:"robot_id"`
	Image   string `json:"image"`
}

// StatusPayload is the outbound shape for status broadcasts and
// hydration sends.
type StatusPayload struct {
	RobotID string     `json:"robot_id"`
	Status  RobotState `json:"status"`
}

// CommandPayload is the outbound shape delivered to a robot.
type CommandPayload struct {
	Command string `json:"command"`
}

// CommandErrorPayload tells an operator its command had no reachable target.
type CommandErrorPayload struct {
	RobotID string `json:"robot_id"`
	Error   string `json:"error"`
}

// ImagePayload is the outbound shape for relayed camera frames.
type ImagePayload struct {
	RobotID string `json:"robot_id"`
	Image   string `json:"image"`
}

// ForceLogoutPayload is sent to a superseded operator session just
// before its transport is closed.
type ForceLogoutPayload struct {
	Reason string `json:"reason"`
}

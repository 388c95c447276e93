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

// Robot is an ownership record in the document store.
type Robot struct {
	RobotID string `json:"robot_id" dynamodbav:"robot_id"`
	Owner   string `json:"owner" dynamodbav:"owner"`
	Name    string `json:"name,omitempty" dynamodbav:"name,omitempty"`
}

// MissionDocument is the mission list stored per robot. Mission entries
// are schema-less; waypoint coordinates and similar numeric fields pass
// through the fixed-point conversion at the document-store boundary.
type MissionDocument struct {
	RobotID   string                   `json:"robot_id" dynamodbav:"robot_id"`
	Missions  []map[string]interface{} `json:"missions" dynamodbav:"missions"`
	UpdatedAt int64                    `json:"updated_at,omitempty" dynamodbav:"updated_at"`
}

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

// Package docstore is the durable document collaborator: robot
// ownership lookups and mission-document CRUD. Only the boundary REST
// layer consumes it, never the relay engine.
package docstore

import (
	"context"
	"errors"

	"github.com/carverauto/fleetrelay/pkg/models"
)

// ErrNotFound is returned when no document exists for the given key.
var ErrNotFound = errors.New("document not found")

// Service is the document-store interface the REST layer depends on.
type Service interface {
	// RobotsForOwner lists the robots owned by the given identity.
	RobotsForOwner(ctx context.Context, owner string) ([]models.Robot, error)

	// SaveMissions overwrites the mission document for a robot.
	SaveMissions(ctx context.Context, doc *models.MissionDocument) error

	// GetMissions returns the mission document for a robot, or
	// ErrNotFound.
	GetMissions(ctx context.Context, robotID string) (*models.MissionDocument, error)
}

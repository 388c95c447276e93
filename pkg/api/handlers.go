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

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/fleetrelay/pkg/docstore"
	"github.com/carverauto/fleetrelay/pkg/models"
)

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.encodeJSONResponse(w, map[string]string{"status": "ok"})
}

func (s *APIServer) handleMyRobots(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFrom(r.Context())
	if !ok {
		s.writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	robots, err := s.docs.RobotsForOwner(r.Context(), claims.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("owner", claims.Email).Msg("Ownership lookup failed")
		s.writeError(w, "document store unavailable", http.StatusInternalServerError)

		return
	}

	s.encodeJSONResponse(w, robots)
}

func (s *APIServer) handleRobotState(w http.ResponseWriter, r *http.Request) {
	robotID := mux.Vars(r)["id"]

	state, found, err := s.states.GetState(r.Context(), robotID)
	if err != nil {
		s.logger.Error().Err(err).Str("robot_id", robotID).Msg("State read failed")
		s.writeError(w, "state cache unavailable", http.StatusInternalServerError)

		return
	}

	if !found {
		s.writeError(w, "no state for robot", http.StatusNotFound)
		return
	}

	s.encodeJSONResponse(w, state)
}

func (s *APIServer) handleSaveMissions(w http.ResponseWriter, r *http.Request) {
	var doc models.MissionDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc.RobotID == "" {
		s.writeError(w, "malformed mission document", http.StatusBadRequest)
		return
	}

	if err := s.docs.SaveMissions(r.Context(), &doc); err != nil {
		s.logger.Error().Err(err).Str("robot_id", doc.RobotID).Msg("Mission write failed")
		s.writeError(w, "document store unavailable", http.StatusInternalServerError)

		return
	}

	s.encodeJSONResponse(w, map[string]string{"status": "saved"})
}

func (s *APIServer) handleGetMissions(w http.ResponseWriter, r *http.Request) {
	robotID := mux.Vars(r)["id"]

	doc, err := s.docs.GetMissions(r.Context(), robotID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			s.writeError(w, "no missions for robot", http.StatusNotFound)
			return
		}

		s.logger.Error().Err(err).Str("robot_id", robotID).Msg("Mission read failed")
		s.writeError(w, "document store unavailable", http.StatusInternalServerError)

		return
	}

	s.encodeJSONResponse(w, doc)
}

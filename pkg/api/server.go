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

// Package api provides the boundary REST surface: stateless wrappers
// around the identity, document-store, and state-cache collaborators.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/carverauto/fleetrelay/pkg/docstore"
	srHTTP "github.com/carverauto/fleetrelay/pkg/http"
	"github.com/carverauto/fleetrelay/pkg/identity"
	"github.com/carverauto/fleetrelay/pkg/logger"
	"github.com/carverauto/fleetrelay/pkg/models"
)

// StateReader is the slice of the state cache the REST layer needs.
type StateReader interface {
	GetState(ctx context.Context, robotID string) (models.RobotState, bool, error)
}

// APIServer routes REST requests to the external collaborators. It
// holds no relay state of its own.
type APIServer struct {
	router     *mux.Router
	corsConfig models.CORSConfig
	logger     logger.Logger

	verifier       identity.TokenVerifier
	docs           docstore.Service
	states         StateReader
	wsHandler      http.HandlerFunc
	metricsHandler http.Handler
}

// NewAPIServer creates the REST server with the given configuration.
func NewAPIServer(cors models.CORSConfig, log logger.Logger, options ...func(*APIServer)) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		corsConfig: cors,
		logger:     log,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithVerifier attaches the identity collaborator.
func WithVerifier(v identity.TokenVerifier) func(*APIServer) {
	return func(s *APIServer) {
		s.verifier = v
	}
}

// WithDocStore attaches the document-store collaborator.
func WithDocStore(d docstore.Service) func(*APIServer) {
	return func(s *APIServer) {
		s.docs = d
	}
}

// WithStateReader attaches the robot state cache read path.
func WithStateReader(r StateReader) func(*APIServer) {
	return func(s *APIServer) {
		s.states = r
	}
}

// WithWSHandler mounts the WebSocket upgrade endpoint.
func WithWSHandler(h http.HandlerFunc) func(*APIServer) {
	return func(s *APIServer) {
		s.wsHandler = h
	}
}

// WithMetricsHandler mounts the Prometheus scrape endpoint.
func WithMetricsHandler(h http.Handler) func(*APIServer) {
	return func(s *APIServer) {
		s.metricsHandler = h
	}
}

func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)

	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}

	if s.wsHandler != nil {
		s.router.HandleFunc("/ws", s.wsHandler)
	}

	protected := s.router.NewRoute().Subrouter()
	protected.Use(s.authenticationMiddleware)
	protected.HandleFunc("/myrobots", s.handleMyRobots).Methods(http.MethodGet)
	protected.HandleFunc("/robot_state/{id}", s.handleRobotState).Methods(http.MethodGet)
	protected.HandleFunc("/save_missions", s.handleSaveMissions).Methods(http.MethodPost)
	protected.HandleFunc("/get_missions/{id}", s.handleGetMissions).Methods(http.MethodGet)
}

// ServeHTTP makes APIServer usable as the http.Server handler. The
// common middleware wraps the whole router so CORS preflights and
// unmatched routes still get logged and answered.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	srHTTP.CommonMiddleware(s.router, s.corsConfig, s.logger).ServeHTTP(w, r)
}

type contextKey string

const claimsKey contextKey = "claims"

// authenticationMiddleware requires a verifiable bearer token and puts
// its claims on the request context. Failures get a minimal error
// body, never a stack trace.
func (s *APIServer) authenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || s.verifier == nil {
			s.writeError(w, "authentication required", http.StatusUnauthorized)
			return
		}

		claims, err := s.verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Bearer token rejected")
			s.writeError(w, "invalid credential", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(ctx context.Context) (*identity.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*identity.Claims)
	return claims, ok
}

func (s *APIServer) writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}

func (s *APIServer) encodeJSONResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

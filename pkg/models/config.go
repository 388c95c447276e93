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

// Package models holds the shared configuration and wire types for FleetRelay.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var errInvalidDuration = errors.New("invalid duration")

// Duration wraps time.Duration so config files can use either
// "30s"-style strings or raw nanosecond numbers.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// BroadcastScope selects who receives robot status broadcasts.
type BroadcastScope string

const (
	// ScopeRobot targets only operators that registered interest in the robot.
	ScopeRobot BroadcastScope = "robot"
	// ScopeGlobal sends every status update to every connected operator.
	ScopeGlobal BroadcastScope = "global"
)

// CORSConfig controls allowed origins for the REST surface and the
// WebSocket upgrade origin check.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// TLSConfig holds certificate paths for mTLS connections.
type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file"`
}

// SecurityConfig describes how to secure the connection to the state
// cache store.
type SecurityConfig struct {
	Mode       string    `json:"mode"` // "none" or "mtls"
	CertDir    string    `json:"cert_dir,omitempty"`
	ServerName string    `json:"server_name,omitempty"`
	TLS        TLSConfig `json:"tls"`
}

// AuthConfig holds the shared secret used by the identity collaborator
// to verify operator bearer tokens.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// DocStoreConfig points the boundary layer at the DynamoDB tables that
// hold robot ownership and mission documents.
type DocStoreConfig struct {
	Region        string `json:"region"`
	Endpoint      string `json:"endpoint,omitempty"` // override for local testing
	RobotsTable   string `json:"robots_table"`
	MissionsTable string `json:"missions_table"`
	OwnerIndex    string `json:"owner_index,omitempty"`
}

// BrokerConfig is the top-level configuration for the relay broker.
type BrokerConfig struct {
	ListenAddr     string          `json:"listen_addr"`
	NATSURL        string          `json:"nats_url"`
	Bucket         string          `json:"bucket,omitempty"`
	BucketTTL      Duration        `json:"bucket_ttl,omitempty"`
	ConnectTimeout Duration        `json:"connect_timeout,omitempty"`
	BroadcastScope BroadcastScope  `json:"broadcast_scope,omitempty"`
	Security       *SecurityConfig `json:"security,omitempty"`
	CORS           CORSConfig      `json:"cors,omitempty"`
	Auth           AuthConfig      `json:"auth"`
	DocStore       DocStoreConfig  `json:"docstore"`
	LogLevel       string          `json:"log_level,omitempty"`
	Debug          bool            `json:"debug,omitempty"`
}

const defaultConnectTimeout = 5 * time.Second

// Normalize fills in defaults for optional fields.
func (c *BrokerConfig) Normalize() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}

	if c.Bucket == "" {
		c.Bucket = "robot-state"
	}

	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = Duration(defaultConnectTimeout)
	}

	if c.BroadcastScope == "" {
		c.BroadcastScope = ScopeRobot
	}
}

var (
	errMissingNATSURL = errors.New("nats_url is required")
	errInvalidScope   = errors.New("broadcast_scope must be \"robot\" or \"global\"")
)

// Validate checks the configuration for required fields.
func (c *BrokerConfig) Validate() error {
	if c.NATSURL == "" {
		return errMissingNATSURL
	}

	if c.BroadcastScope != ScopeRobot && c.BroadcastScope != ScopeGlobal {
		return errInvalidScope
	}

	return nil
}

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

// Package config loads broker configuration from a JSON file with
// environment variable overrides.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/carverauto/fleetrelay/pkg/logger"
)

var errInvalidConfigPtr = errors.New("config must be a non-nil pointer")

// fileConfigLoader reads a JSON config file into dst.
type fileConfigLoader struct{}

func (*fileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return nil
}

// ConfigLoader loads configuration from a single source.
type ConfigLoader interface {
	Load(ctx context.Context, path string, dst interface{}) error
}

// Config holds the configuration loading dependencies.
type Config struct {
	fileLoader ConfigLoader
	envLoader  ConfigLoader
	logger     logger.Logger
}

// NewConfig initializes a Config with a file loader and an env
// override loader. A nil logger gets a no-op one.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{
		fileLoader: &fileConfigLoader{},
		envLoader:  NewEnvConfigLoader(log, "FLEETRELAY_"),
		logger:     log,
	}
}

// Load reads the JSON file at path into dst, then applies any
// environment overrides on top. A missing file is only an error when
// no CONFIG_JSON override is present either.
func (c *Config) Load(ctx context.Context, path string, dst interface{}) error {
	if dst == nil {
		return errInvalidConfigPtr
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := c.fileLoader.Load(ctx, path, dst); err != nil {
				return fmt.Errorf("failed to load config file: %w", err)
			}
		} else {
			c.logger.Warn().Str("path", path).Msg("Config file not found, relying on environment")
		}
	}

	if err := c.envLoader.Load(ctx, "", dst); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return nil
}

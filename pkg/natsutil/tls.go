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

// Package natsutil holds helpers for securing the NATS connection that
// backs the state cache.
package natsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carverauto/fleetrelay/pkg/models"
)

var (
	// ErrMTLSRequired is returned when mTLS security is required but not configured.
	ErrMTLSRequired = errors.New("mtls security required")
	// ErrCAParsingFailed is returned when the CA certificate cannot be parsed.
	ErrCAParsingFailed = errors.New("failed to parse CA certificate")
)

// TLSConfig builds a tls.Config for connecting to NATS using mTLS.
func TLSConfig(sec *models.SecurityConfig) (*tls.Config, error) {
	if sec == nil || sec.Mode != "mtls" {
		return nil, ErrMTLSRequired
	}

	tlsPaths := sec.TLS
	normalizeTLSPaths(&tlsPaths, sec.CertDir)

	cert, err := tls.LoadX509KeyPair(tlsPaths.CertFile, tlsPaths.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(tlsPaths.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, ErrCAParsingFailed
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		ServerName:   sec.ServerName,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// normalizeTLSPaths resolves relative certificate paths against the
// configured cert directory.
func normalizeTLSPaths(tlsConf *models.TLSConfig, certDir string) {
	if certDir == "" {
		return
	}

	if tlsConf.CertFile != "" && !filepath.IsAbs(tlsConf.CertFile) {
		tlsConf.CertFile = filepath.Join(certDir, tlsConf.CertFile)
	}

	if tlsConf.KeyFile != "" && !filepath.IsAbs(tlsConf.KeyFile) {
		tlsConf.KeyFile = filepath.Join(certDir, tlsConf.KeyFile)
	}

	if tlsConf.CAFile != "" && !filepath.IsAbs(tlsConf.CAFile) {
		tlsConf.CAFile = filepath.Join(certDir, tlsConf.CAFile)
	}
}

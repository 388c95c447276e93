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

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carverauto/fleetrelay/pkg/api"
	"github.com/carverauto/fleetrelay/pkg/config"
	"github.com/carverauto/fleetrelay/pkg/docstore"
	"github.com/carverauto/fleetrelay/pkg/identity"
	"github.com/carverauto/fleetrelay/pkg/kv"
	"github.com/carverauto/fleetrelay/pkg/logger"
	"github.com/carverauto/fleetrelay/pkg/models"
	"github.com/carverauto/fleetrelay/pkg/registry"
	"github.com/carverauto/fleetrelay/pkg/relay"
	"github.com/carverauto/fleetrelay/pkg/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "/etc/fleetrelay/broker.json", "Path to config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cfg models.BrokerConfig

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.Load(ctx, *configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(logger.Config{Level: cfg.LogLevel, Debug: cfg.Debug})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// The cache holds all last-known state across broker restarts, so
	// an unreachable cache at startup is fatal rather than degraded.
	store, err := kv.NewNatsStore(ctx, kv.Options{
		URL:            cfg.NATSURL,
		Bucket:         cfg.Bucket,
		TTL:            time.Duration(cfg.BucketTTL),
		ConnectTimeout: time.Duration(cfg.ConnectTimeout),
		Security:       cfg.Security,
	})
	if err != nil {
		log.Fatalf("Failed to connect state cache: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			zlog.Warn().Err(err).Msg("State cache close failed")
		}
	}()

	docs, err := docstore.NewDynamoStore(ctx, cfg.DocStore)
	if err != nil {
		log.Fatalf("Failed to configure document store: %v", err)
	}

	reg := registry.New[relay.Handle]()
	metrics := relay.NewMetrics(prometheus.DefaultRegisterer)
	cache := relay.NewStateCache(store, zlog.WithComponent("statecache"))
	engine := relay.NewEngine(cfg.BroadcastScope, reg, cache, zlog.WithComponent("relay"), metrics)
	transport := ws.NewServer(engine, cfg.CORS, zlog.WithComponent("ws"))
	engine.SetBroadcaster(transport)

	apiServer := api.NewAPIServer(cfg.CORS, zlog.WithComponent("api"),
		api.WithVerifier(identity.NewHMACVerifier(cfg.Auth.JWTSecret)),
		api.WithDocStore(docs),
		api.WithStateReader(cache),
		api.WithWSHandler(transport.HandleWS),
		api.WithMetricsHandler(promhttp.Handler()),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		zlog.Info().
			Str("listen_addr", cfg.ListenAddr).
			Str("broadcast_scope", string(cfg.BroadcastScope)).
			Msg("Broker listening")

		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		zlog.Info().Msg("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error().Err(err).Msg("Server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn().Err(err).Msg("Shutdown incomplete")
	}
}

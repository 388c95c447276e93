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

package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetrelay/pkg/models"
	"github.com/carverauto/fleetrelay/pkg/natsutil"
)

// NatsStore implements KVStore on a NATS JetStream key-value bucket.
type NatsStore struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// Options configures the connection to the NATS-backed cache.
type Options struct {
	URL            string
	Bucket         string
	TTL            time.Duration
	ConnectTimeout time.Duration
	Security       *models.SecurityConfig
}

// NewNatsStore connects to NATS with a bounded timeout and binds (or
// creates) the state bucket.
func NewNatsStore(ctx context.Context, opts Options) (*NatsStore, error) {
	natsOpts := []nats.Option{
		nats.Timeout(opts.ConnectTimeout),
	}

	if opts.Security != nil && opts.Security.Mode == "mtls" {
		tlsConf, err := natsutil.TLSConfig(opts.Security)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		natsOpts = append(natsOpts, nats.Secure(tlsConf))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	config := jetstream.KeyValueConfig{
		Bucket: opts.Bucket,
	}

	if opts.TTL > 0 {
		config.TTL = opts.TTL // TTL is bucket-level
	}

	kv, err := js.CreateKeyValue(ctx, config)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}

	return &NatsStore{
		nc: nc,
		kv: kv,
	}, nil
}

func (n *NatsStore) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	var entry jetstream.KeyValueEntry

	entry, err = n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return entry.Value(), true, nil
}

func (n *NatsStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := n.kv.Put(ctx, key, value)
	if err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (n *NatsStore) Close() error {
	n.nc.Close()

	return nil
}

var _ KVStore = (*NatsStore)(nil)

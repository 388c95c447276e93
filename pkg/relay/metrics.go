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

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts relay engine outcomes. Malformed or unroutable events
// are only observable here and in logs, never as client errors.
type Metrics struct {
	EventsDropped         *prometheus.CounterVec
	CommandsRelayed       prometheus.Counter
	CommandsUndeliverable prometheus.Counter
	Evictions             prometheus.Counter
	CacheWriteFailures    prometheus.Counter
	StateBroadcasts       prometheus.Counter
}

// NewMetrics registers the relay counters with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetrelay_events_dropped_total",
			Help: "Inbound events dropped, by reason.",
		}, []string{"reason"}),
		CommandsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetrelay_commands_relayed_total",
			Help: "Commands forwarded to a registered robot.",
		}),
		CommandsUndeliverable: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetrelay_commands_undeliverable_total",
			Help: "Commands addressed to a robot with no live handle.",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetrelay_operator_evictions_total",
			Help: "Operator sessions terminated by a newer login.",
		}),
		CacheWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetrelay_cache_write_failures_total",
			Help: "State cache writes that failed after retries.",
		}),
		StateBroadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "fleetrelay_state_broadcasts_total",
			Help: "Robot state updates broadcast to operators.",
		}),
	}
}

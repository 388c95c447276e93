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

// Package registry maps robot and operator identities to their single
// live transport handle. It is authoritative only for the current
// process and is rebuilt from live registrations after a restart.
package registry

import "sync"

// Kind distinguishes the two identity namespaces.
type Kind string

const (
	KindRobot    Kind = "robot"
	KindOperator Kind = "operator"
)

// Handle is the minimal view of a transport connection the registry
// needs: a stable identifier for equality checks.
type Handle interface {
	ID() string
}

// Binding names one (kind, id) pair a handle was registered as.
type Binding struct {
	Kind Kind
	ID   string
}

// Registry holds at most one live handle per robot id and per operator
// id. All methods are safe for concurrent use.
type Registry[H Handle] struct {
	mu        sync.RWMutex
	robots    map[string]H
	operators map[string]H
}

// New creates an empty registry.
func New[H Handle]() *Registry[H] {
	return &Registry[H]{
		robots:    make(map[string]H),
		operators: make(map[string]H),
	}
}

// Put associates id with handle, replacing any prior handle for that
// id. For operators the caller is expected to run the eviction
// protocol before replacing; the registry itself only swaps bindings.
func (r *Registry[H]) Put(kind Kind, id string, handle H) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.bindings(kind)[id] = handle
}

// Get returns the live handle for id, if any.
func (r *Registry[H]) Get(kind Kind, id string) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.bindings(kind)[id]

	return h, ok
}

// RemoveByHandle removes every (kind, id) bound to the given handle
// and reports what was removed. Both maps are scanned so a transport
// serving overlapping roles is cleaned up conservatively. Removing an
// unknown handle returns nil, which makes repeated disconnects no-ops.
func (r *Registry[H]) RemoveByHandle(handle Handle) []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []Binding

	for id, h := range r.robots {
		if h.ID() == handle.ID() {
			delete(r.robots, id)

			removed = append(removed, Binding{Kind: KindRobot, ID: id})
		}
	}

	for id, h := range r.operators {
		if h.ID() == handle.ID() {
			delete(r.operators, id)

			removed = append(removed, Binding{Kind: KindOperator, ID: id})
		}
	}

	return removed
}

// Len reports the number of bindings of the given kind.
func (r *Registry[H]) Len(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.bindings(kind))
}

// bindings must be called with the lock held.
func (r *Registry[H]) bindings(kind Kind) map[string]H {
	if kind == KindRobot {
		return r.robots
	}

	return r.operators
}

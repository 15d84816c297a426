// Copyright (C) 2024 modspace contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Description: The Registry is the resolver's home for live modules,
// their resolved state, and in-use capability bookkeeping. It is grounded
// on the teacher's internal/modules.ModuleResolver: a single mutex
// ("the factory lock", §5) serializes every mutation, while listener
// delivery goes through a second, copy-on-write snapshot never taken
// while the factory lock is held, mirroring stencil's use of
// sync.Once/sync.Mutex-guarded caches plus a separately-locked listener
// list in internal/modules/resolver.

package registry

import (
	"sync"

	"go.modspace.dev/modspace/internal/slicesext"
	"go.modspace.dev/modspace/pkg/capability"
	"go.modspace.dev/modspace/pkg/slogext"
)

// Listener is notified of module resolution state changes. Implementations
// must not call back into the Registry; the Registry never holds its
// factory lock while invoking a listener (§5).
type Listener interface {
	ModuleResolved(m *Module)
	ModuleUnresolved(m *Module)
}

// Registry holds every module known to the resolver plus each module's
// resolved/unresolved state, wires, and currently in-use capabilities.
type Registry struct {
	log slogext.Logger

	// mu is the factory lock: the resolver holds it for the duration of
	// an entire resolve operation (populate, search, and commit phases
	// all run with mu held), per §5.
	mu sync.Mutex

	modules map[int64]*Module // keyed by ModuleID

	// inUse tracks, per module, the capabilities currently relied upon by
	// some other module's live wire. A capability leaves in_use only when
	// the last wire referencing it is torn down (§4.7 Edge case: a module
	// export remains "in use" until the last consumer is refreshed).
	inUse map[int64][]*capability.Capability

	listenersMu sync.Mutex
	listeners   []Listener // copy-on-write; snapshotListeners takes listenersMu only to read the slice
}

// New constructs an empty Registry.
func New(log slogext.Logger) *Registry {
	if log == nil {
		log = slogext.NewTestLogger()
	}
	return &Registry{
		log:     log,
		modules: make(map[int64]*Module),
		inUse:   make(map[int64][]*capability.Capability),
	}
}

// Lock acquires the factory lock. The resolver calls this once at the
// start of Resolve and holds it across all three phases; Registry's own
// helper methods below assume the caller already holds it unless noted.
func (r *Registry) Lock() { r.mu.Lock() }

// Unlock releases the factory lock.
func (r *Registry) Unlock() { r.mu.Unlock() }

// AddModule registers m as an installed-but-unresolved module. Requires
// the factory lock.
func (r *Registry) AddModule(m *Module) {
	m.setUnresolved()
	r.modules[m.ModuleID] = m
}

// RemoveModule deregisters m, drops its in-use entry, and clears its
// wires. Requires the factory lock. It fires no listener event;
// FireUnresolved is a separate call, made without the factory lock held.
func (r *Registry) RemoveModule(m *Module) {
	delete(r.modules, m.ModuleID)
	delete(r.inUse, m.ModuleID)
	m.setUnresolved()
}

// Modules returns a snapshot slice of every registered module. Requires
// the factory lock.
func (r *Registry) Modules() []*Module {
	return slicesext.FromMap(r.modules)
}

// Commit installs wires for every module in the map and marks each
// resolved. Requires the factory lock. Returns the list of modules that
// transitioned from unresolved to resolved, for event firing.
func (r *Registry) Commit(wires map[*Module][]*Wire) []*Module {
	var newlyResolved []*Module
	for m, ws := range wires {
		wasResolved := m.Resolved()
		m.setWires(ws)
		if !wasResolved {
			newlyResolved = append(newlyResolved, m)
		}
	}
	r.recomputeInUse()
	return newlyResolved
}

// recomputeInUse rebuilds the in-use capability index per Invariant 2:
// in_use_caps[m] holds every capability of m that appears in some live
// wire's exporter slot, plus every package-namespace capability of m that
// none of m's own requirements matches (the "export-only" case — a module
// that only exports a package, and never imports it back from itself,
// has that capability treated as committed the moment m resolves).
func (r *Registry) recomputeInUse() {
	inUse := make(map[int64][]*capability.Capability)
	add := func(moduleID int64, c *capability.Capability) {
		caps := inUse[moduleID]
		if !containsCapability(caps, c) {
			inUse[moduleID] = append(caps, c)
		}
	}

	for _, m := range r.modules {
		for _, w := range m.Wires() {
			add(w.Exporter.ModuleID, w.Capability)
		}
	}

	for _, m := range r.modules {
		if !m.Resolved() {
			continue
		}
		for _, c := range m.Definition.Capabilities {
			if c.Namespace != capability.NamespacePackage {
				continue
			}
			if matchedByOwnRequirement(m, c) {
				continue
			}
			add(m.ModuleID, c)
		}
	}

	r.inUse = inUse
}

// matchedByOwnRequirement reports whether any requirement declared by m
// itself would be satisfied by c, meaning c is not purely "export-only".
func matchedByOwnRequirement(m *Module, c *capability.Capability) bool {
	for _, req := range m.Definition.Requirements {
		if req.Matches(c) {
			return true
		}
	}
	return false
}

func containsCapability(caps []*capability.Capability, c *capability.Capability) bool {
	for _, existing := range caps {
		if existing == c {
			return true
		}
	}
	return false
}

// InUseCapabilities returns the capabilities of m that some live wire
// currently depends on, plus m's export-only package capabilities once m
// is resolved (see recomputeInUse). Requires the factory lock for a
// consistent snapshot, though the returned slice is a copy safe to use
// after unlocking.
func (r *Registry) InUseCapabilities(m *Module) []*capability.Capability {
	caps := r.inUse[m.ModuleID]
	out := make([]*capability.Capability, len(caps))
	copy(out, caps)
	return out
}

// UnusedCapabilities returns m's capabilities that are not currently
// in_use, i.e. free to be rewired without a refresh.
func (r *Registry) UnusedCapabilities(m *Module) []*capability.Capability {
	inUse := r.inUse[m.ModuleID]
	var out []*capability.Capability
	for _, c := range m.Definition.Capabilities {
		if !containsCapability(inUse, c) {
			out = append(out, c)
		}
	}
	return out
}

// AddListener registers l to be notified of future resolution events. Safe
// to call at any time; does not require the factory lock.
func (r *Registry) AddListener(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	next := make([]Listener, len(r.listeners)+1)
	copy(next, r.listeners)
	next[len(r.listeners)] = l
	r.listeners = next
}

// RemoveListener deregisters l.
func (r *Registry) RemoveListener(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	next := make([]Listener, 0, len(r.listeners))
	for _, existing := range r.listeners {
		if existing != l {
			next = append(next, existing)
		}
	}
	r.listeners = next
}

// snapshotListeners returns the current listener slice without holding the
// factory lock, for the resolver to iterate after Unlock.
func (r *Registry) snapshotListeners() []Listener {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	return r.listeners
}

// FireResolved notifies every listener that m resolved. Must be called
// without the factory lock held.
func (r *Registry) FireResolved(m *Module) {
	for _, l := range r.snapshotListeners() {
		l.ModuleResolved(m)
	}
}

// FireUnresolved notifies every listener that m became unresolved. Must be
// called without the factory lock held. Nothing in this repository calls
// it: neither RemoveModule nor the resolver fires it (SPEC_FULL.md §12,
// resolving spec.md Open Question (c)).
func (r *Registry) FireUnresolved(m *Module) {
	for _, l := range r.snapshotListeners() {
		l.ModuleUnresolved(m)
	}
}

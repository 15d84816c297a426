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

// Description: attemptDynamicImport (§4.5), invoked by the search policy
// on a class-load miss for a package the importer has no static wire for.

package resolve

import (
	"fmt"
	"strings"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
)

// AttemptDynamicImport tries to satisfy importer's need for pkg via one of
// its declared dynamic-requirement patterns. If importer already has a
// wire covering pkg, it returns nil without adding another. Returns the
// newly-created wire, or nil if no pattern matched or none of its
// candidates could be resolved. Individual candidate failures are
// swallowed (logged), per §4.5.
func (r *Resolver) AttemptDynamicImport(importer *registry.Module, pkg string) *registry.Wire {
	r.Registry.Lock()
	for _, w := range importer.Wires() {
		if (w.Kind == registry.WireKindPackage && w.Capability.PackageName() == pkg) ||
			(w.Kind == registry.WireKindModule && w.FlattenedPackages[pkg].Len() > 0) {
			r.Registry.Unlock()
			return nil
		}
	}
	r.pendingEvents = nil
	var wire *registry.Wire

	for _, dyn := range importer.Definition.DynamicRequirements {
		if !dyn.Matches(pkg) {
			continue
		}

		req, err := conjoinPackage(dyn.Requirement, pkg)
		if err != nil {
			r.Log.Warnf("dynamic import: building requirement for %q: %v", pkg, err)
			continue
		}

		if w := r.tryDynamicCandidate(importer, req); w != nil {
			wire = w
			break
		}
	}

	events := r.pendingEvents
	r.pendingEvents = nil
	r.Registry.Unlock()

	// Events fire after releasing the factory lock (§5).
	for _, m := range events {
		r.Registry.FireResolved(m)
	}
	return wire
}

// tryDynamicCandidate implements step 2-3 of §4.5: prefer an in-use
// candidate; otherwise try each unused candidate in order, attempting to
// resolve its module, and take the first that succeeds.
func (r *Resolver) tryDynamicCandidate(importer *registry.Module, req *capability.Requirement) *registry.Wire {
	inUse := r.Selector.InUse(req)
	if len(inUse) > 0 {
		return r.commitDynamicWire(importer, inUse[0], req)
	}

	for _, cand := range r.Selector.Unused(req) {
		if err := r.resolveCandidateLocked(cand.Module); err != nil {
			r.Log.Debugf("dynamic import: candidate module %d failed to resolve: %v", cand.Module.BundleID, err)
			continue
		}
		return r.commitDynamicWire(importer, cand, req)
	}
	return nil
}

// resolveCandidateLocked resolves a candidate module for a dynamic import
// while the factory lock is already held by the caller. The factory lock
// is not reentrant, so this repeats resolveLocked's populate/search/commit
// sequence directly instead of calling Resolve (which would deadlock
// attempting to re-acquire the lock).
func (r *Resolver) resolveCandidateLocked(m *registry.Module) error {
	if m.Resolved() {
		return nil
	}
	newlyResolved, err := r.resolveLocked(m)
	if err != nil {
		return err
	}
	// Listener events for a candidate resolved as a side effect of
	// dynamic import still fire, but only once the outer AttemptDynamicImport
	// call releases the factory lock; stash them for that purpose.
	r.pendingEvents = append(r.pendingEvents, newlyResolved...)
	return nil
}

// commitDynamicWire appends a new package wire to importer for req,
// satisfied by src, and folds the exporter capability into in_use_caps.
func (r *Resolver) commitDynamicWire(importer *registry.Module, src registry.PackageSource, req *capability.Requirement) *registry.Wire {
	wire := &registry.Wire{
		Kind: registry.WireKindPackage, Importer: importer, Exporter: src.Module,
		Capability: src.Capability, Requirement: req,
	}
	existing := importer.Wires()
	updated := make([]*registry.Wire, len(existing), len(existing)+1)
	copy(updated, existing)
	updated = append(updated, wire)
	r.Registry.Commit(map[*registry.Module][]*registry.Wire{importer: updated})
	return wire
}

// conjoinPackage builds a requirement whose filter is the AND of
// "(package=pkg)" and base's own filter (§4.5 step 1). When base's package
// term is a wildcard such as "(package=p.*)", that term is replaced by
// "(package=pkg)" instead, so the stem package "p", which the pattern
// "p.*" covers, is not excluded by the wildcard.
func conjoinPackage(base *capability.Requirement, pkg string) (*capability.Requirement, error) {
	expr := fmt.Sprintf("(&(package=%s)%s)", pkg, base.FilterString())
	if term := base.PackageName(); strings.HasSuffix(term, "*") {
		expr = strings.Replace(base.FilterString(), "(package="+term+")", "(package="+pkg+")", 1)
	}
	return capability.NewRequirement(capability.NamespacePackage, expr, base.Optional, false)
}

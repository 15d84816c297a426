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

// Description: The resolver (§4.2): populates a candidate-set graph for
// an unresolved root, searches the odometer of candidate configurations
// for one that passes the class-space consistency checker, and commits
// the chosen wires. Grounded on the teacher's internal/modules resolve
// loop shape (a depth-first dependency walk under a single mutex, errors
// bubbling as a wrapped *Error) generalized from stencil's git-version
// resolution to the spec's candidate/odometer/consistency search.
package resolve

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"go.modspace.dev/modspace/internal/candidate"
	"go.modspace.dev/modspace/internal/classspace"
	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
	"go.modspace.dev/modspace/pkg/slogext"
)

// Resolver resolves modules against a Registry using a Selector for
// candidate queries.
type Resolver struct {
	Registry *registry.Registry
	Selector *candidate.Selector
	Log      slogext.Logger

	// pendingEvents accumulates modules newly resolved as a side effect
	// of a dynamic import's candidate resolution, so AttemptDynamicImport
	// can fire their events after releasing the factory lock.
	pendingEvents []*registry.Module
}

// New constructs a Resolver.
func New(reg *registry.Registry, sel *candidate.Selector, log slogext.Logger) *Resolver {
	if log == nil {
		log = slogext.NewTestLogger()
	}
	return &Resolver{Registry: reg, Selector: sel, Log: log}
}

// mapGraph adapts the populate phase's resolverMap to classspace.Graph.
type mapGraph map[*registry.Module][]*candidate.Set

func (g mapGraph) CandidateSets(m *registry.Module) []*candidate.Set { return g[m] }

// Resolve resolves root transitively, or returns a non-nil error. It
// fails fast (returns nil) if root is already resolved (§4.2).
func (r *Resolver) Resolve(root *registry.Module) error {
	if root.Resolved() {
		return nil
	}

	r.Registry.Lock()
	newlyResolved, err := r.resolveLocked(root)
	r.Registry.Unlock()
	if err != nil {
		return err
	}

	// Events fire after releasing the factory lock, in the order modules
	// were newly resolved (§5 Ordering guarantees).
	for _, m := range newlyResolved {
		r.Registry.FireResolved(m)
	}
	return nil
}

func (r *Resolver) resolveLocked(root *registry.Module) ([]*registry.Module, error) {
	resolverMap := make(map[*registry.Module][]*candidate.Set)
	var order []*candidate.Set

	if err := r.populate(root, resolverMap, &order); err != nil {
		return nil, err
	}

	graph := mapGraph(resolverMap)
	result, err := r.search(graph, root, order)
	if err != nil {
		return nil, err
	}

	return r.commit(root, resolverMap, result), nil
}

// populate performs Phase A: a depth-first traversal rooted at m,
// building resolverMap : module -> []CandidateSet.
func (r *Resolver) populate(m *registry.Module, resolverMap map[*registry.Module][]*candidate.Set, order *[]*candidate.Set) error {
	if _, seen := resolverMap[m]; seen {
		return nil // cycle guard: presence as a key in resolverMap
	}

	if m.Resolved() {
		// Already resolved by an earlier Resolve call: nothing to do. Felix's
		// populateResolverMap short-circuits the same way ("nothing to do if
		// already resolved") rather than re-running candidate selection for
		// m — doing so would build a fresh CandidateSet from today's in-use/
		// unused state and let commit silently replace m's already-committed
		// wire list (§5's "once setResolved returns... stable wire list"
		// guarantee), out from under anything already holding a reference
		// into it (e.g. search.Policy.wireCache). m is left out of
		// resolverMap entirely; classspace reads its resolved package view
		// straight from its existing Wires() instead.
		return nil
	}

	resolverMap[m] = nil

	for _, req := range m.Definition.Requirements {
		if req.Dynamic {
			// Dynamic requirements are never populated statically; they
			// are only satisfied lazily via attemptDynamicImport (§4.5).
			continue
		}

		candidates := r.Selector.Candidates(req)
		kept := make([]registry.PackageSource, 0, len(candidates))
		var failures *multierror.Error
		for _, cand := range candidates {
			if err := r.populate(cand.Module, resolverMap, order); err != nil {
				// Null out this candidate, record the exception (§4.2 Phase A),
				// aggregating every candidate's failure rather than keeping
				// only the last, so a caller can see why each one was
				// rejected.
				failures = multierror.Append(failures, err)
				continue
			}
			kept = append(kept, cand)
		}

		if len(kept) == 0 {
			if req.Optional {
				continue
			}
			if failures.ErrorOrNil() != nil {
				return &Error{Module: m, Requirement: req, Reason: "all candidates failed to populate", Cause: failures.ErrorOrNil()}
			}
			return &Error{Module: m, Requirement: req, Reason: "unable to resolve requirement: no candidates"}
		}

		set := &candidate.Set{Importer: m, Requirement: req, Sources: kept, Index: 0}
		resolverMap[m] = append(resolverMap[m], set)
		*order = append(*order, set)
	}
	return nil
}

// search performs Phase B: loop testing class-space consistency at root,
// advancing the odometer on failure, until a consistent configuration is
// found or the odometer is exhausted.
func (r *Resolver) search(graph mapGraph, root *registry.Module, order []*candidate.Set) (*classspace.Result, error) {
	for {
		result, ok, err := classspace.Check(graph, root)
		if err != nil {
			return nil, errors.Wrap(err, "consistency check")
		}
		if ok {
			return result, nil
		}

		if !advanceOdometer(order) {
			return nil, &Error{Module: root, Reason: "constraint violation: no consistent candidate configuration"}
		}
	}
}

// advanceOdometer finds the first CandidateSet (in flattened insertion
// order) whose index can be incremented without overflow, increments it,
// and resets every earlier set to 0 (§4.2 Phase B).
func advanceOdometer(order []*candidate.Set) bool {
	for _, set := range order {
		if set.Advance() {
			return true
		}
		set.Reset()
	}
	return false
}

// commit performs Phase C: builds wires for the chosen configuration and
// installs them into the registry, returning modules newly transitioned
// to resolved.
func (r *Resolver) commit(root *registry.Module, resolverMap map[*registry.Module][]*candidate.Set, result *classspace.Result) []*registry.Module {
	wiresByModule := make(map[*registry.Module][]*registry.Wire)
	visited := make(map[*registry.Module]bool)

	var build func(m *registry.Module)
	build = func(m *registry.Module) {
		if visited[m] {
			return
		}
		visited[m] = true

		if m.Resolved() {
			// Already resolved by an earlier Resolve call and therefore
			// absent from resolverMap (populate's short-circuit above):
			// leave it out of wiresByModule entirely so Registry.Commit
			// never touches its already-committed wire list.
			return
		}

		var pkgWires, modWires []*registry.Wire
		for _, set := range resolverMap[m] {
			sel := set.Selected()
			build(sel.Module)

			switch set.Requirement.Namespace {
			case capability.NamespacePackage:
				pkgWires = append(pkgWires, &registry.Wire{
					Kind: registry.WireKindPackage, Importer: m, Exporter: sel.Module,
					Capability: sel.Capability, Requirement: set.Requirement,
				})
			case capability.NamespaceModule:
				flattened := result.Resolved[sel.Module]
				flatCopy := make(map[string]registry.PackageSourceSet, len(flattened))
				for k, v := range flattened {
					flatCopy[k] = v
				}
				modWires = append(modWires, &registry.Wire{
					Kind: registry.WireKindModule, Importer: m, Exporter: sel.Module,
					Capability: sel.Capability, Requirement: set.Requirement,
					FlattenedPackages: flatCopy,
				})
			}
		}

		// Module wires appended after package wires (§4.6), so package
		// lookups see direct imports first.
		wiresByModule[m] = append(pkgWires, modWires...)
	}

	build(root)

	return r.Registry.Commit(wiresByModule)
}

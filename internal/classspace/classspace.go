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

// Description: The class-space consistency checker (§4.3): computes each
// reachable module's ResolvedPackage map for the odometer's current
// configuration, then the root's uses map, and flags "uses" conflicts. No
// analogous subsystem exists in the teacher; this is built directly from
// the spec's merge-order algorithm, using the same memoize-to-cut-cycles
// idiom the teacher's resolver.go VersionMatch caching uses (sync-free
// here since the whole check runs under the registry's factory lock).
package classspace

import (
	"github.com/mitchellh/hashstructure/v2"
	"github.com/pkg/errors"

	"go.modspace.dev/modspace/internal/candidate"
	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
)

// Graph exposes the candidate sets a populate pass built for each module,
// so the checker can read the odometer's current selections without
// depending on the resolver package (which depends on this one).
type Graph interface {
	CandidateSets(m *registry.Module) []*candidate.Set
}

// ErrIncompatibleSources is the InternalConsistencyError of §7: two uses
// paths proposed incompatible source sets for the same package name. The
// resolver treats this as "current configuration is inconsistent" and
// advances the odometer; it is never returned to an external caller.
var ErrIncompatibleSources = errors.New("incompatible package sources")

// checker holds the memoization state for one consistency test. A fresh
// checker is created per odometer position, per §4.2 Phase B's "clear
// memoization caches and retest".
type checker struct {
	graph Graph

	// resolvedMemo caches ResolvedPackages per module; a module appearing
	// as its own ancestor (cyclic module graph) returns the in-progress
	// partial result rather than recursing forever.
	resolvedMemo map[*registry.Module]map[string]registry.PackageSourceSet
	inProgress   map[*registry.Module]bool

	// usesMemo caches the uses-closure contribution of one PackageSource,
	// keyed by a hashstructure digest of (module, package, version) per
	// §4.3's "memoised on the PackageSource to cut cycles" — hashed rather
	// than keyed on the PackageSource struct directly so two equal sources
	// reached via different *Capability instances (e.g. re-parsed
	// manifests) still share one memo slot.
	usesMemo map[uint64]map[string]registry.PackageSourceSet
}

// sourceDigestKey is the plain, fully-exported shape hashstructure hashes
// for usesMemo; it deliberately excludes capability.Version's internal
// *semver.Version (unexported fields hashstructure cannot reflect into),
// stringifying the version instead.
type sourceDigestKey struct {
	ModuleID int64
	Package  string
	Version  string
}

func sourceDigest(src registry.PackageSource) (uint64, error) {
	key := sourceDigestKey{
		ModuleID: src.Module.ModuleID,
		Package:  src.Capability.PackageName(),
		Version:  src.Capability.Version().String(),
	}
	return hashstructure.Hash(key, hashstructure.FormatV2, nil)
}

// Result is the output of a successful Check: the per-module resolved
// package maps computed along the way (reused by wire commit to build
// flattened module-wire package maps) and the root's uses map.
type Result struct {
	Resolved map[*registry.Module]map[string]registry.PackageSourceSet
	Uses     map[string]registry.PackageSourceSet
}

// Check computes consistency for root under the current odometer
// configuration exposed by graph. It returns (result, true, nil) if
// consistent, and (nil, false, nil) if the uses-constraint predicate fails
// or two uses paths are incompatible (ErrIncompatibleSources) — the
// ordinary "advance the odometer" case. A non-nil error is returned only
// when hashing a package source for the uses memo fails; the resolver
// reports that error instead of advancing.
func Check(graph Graph, root *registry.Module) (*Result, bool, error) {
	c := &checker{
		graph:        graph,
		resolvedMemo: make(map[*registry.Module]map[string]registry.PackageSourceSet),
		inProgress:   make(map[*registry.Module]bool),
		usesMemo:     make(map[uint64]map[string]registry.PackageSourceSet),
	}

	rootResolved := c.resolvedPackages(root)

	uses, err := c.usesMap(root, rootResolved)
	if err != nil {
		if errors.Is(err, ErrIncompatibleSources) {
			return nil, false, nil
		}
		return nil, false, err
	}

	for name, usesSources := range uses {
		ownSources, ok := rootResolved[name]
		if !ok {
			continue
		}
		if !subsetComparable(usesSources, ownSources) {
			return nil, false, nil
		}
	}

	return &Result{Resolved: c.resolvedMemo, Uses: uses}, true, nil
}

// resolvedPackages computes and memoizes m's ResolvedPackage map per the
// three-step merge of §4.3.
func (c *checker) resolvedPackages(m *registry.Module) map[string]registry.PackageSourceSet {
	if cached, ok := c.resolvedMemo[m]; ok {
		return cached
	}

	if m.Resolved() {
		// m was resolved by an earlier Resolve call, so the populate pass
		// that built graph never visited it (internal/resolve.populate's
		// already-resolved short-circuit, §5) — there is no CandidateSet
		// for m to read here. Read its already-committed Wires instead,
		// rather than treating it as exporting nothing beyond its own
		// capabilities.
		result := resolvedPackagesFromWires(m)
		c.resolvedMemo[m] = result
		return result
	}

	if c.inProgress[m] {
		// Cyclic module graph: return an empty map for this recursion so
		// the cycle bottoms out instead of looping forever. The caller
		// one level up already has the real (possibly partial) value.
		return map[string]registry.PackageSourceSet{}
	}
	c.inProgress[m] = true
	defer delete(c.inProgress, m)

	result := make(map[string]registry.PackageSourceSet)

	// Step 1: required packages, flattened transitively through each
	// module-namespace CandidateSet selection, assuming full re-export.
	for _, set := range c.graph.CandidateSets(m) {
		if set.Requirement.Namespace != capability.NamespaceModule {
			continue
		}
		selected := set.Selected()
		exporterResolved := c.resolvedPackages(selected.Module)
		for name, sources := range exporterResolved {
			mergeUnion(result, name, sources)
		}
	}

	// Step 2: exported packages, union-merged into the required map.
	for _, pcap := range m.Definition.Capabilities {
		if pcap.Namespace != capability.NamespacePackage {
			continue
		}
		name := pcap.PackageName()
		if name == "" {
			continue
		}
		mergeUnion(result, name, registry.NewPackageSourceSet(registry.PackageSource{Module: m, Capability: pcap}))
	}

	// Step 3: imported packages overwrite any required/exported entry.
	for _, set := range c.graph.CandidateSets(m) {
		if set.Requirement.Namespace != capability.NamespacePackage {
			continue
		}
		selected := set.Selected()
		name := selected.Capability.PackageName()
		if name == "" {
			continue
		}
		result[name] = registry.NewPackageSourceSet(selected)
	}

	c.resolvedMemo[m] = result
	return result
}

// usesMap accumulates the root's uses closure per §4.3: starting from
// every PackageSource in rootResolved, recursively visit each source's own
// ResolvedPackage map restricted to its capability's Uses list.
func (c *checker) usesMap(root *registry.Module, rootResolved map[string]registry.PackageSourceSet) (map[string]registry.PackageSourceSet, error) {
	result := make(map[string]registry.PackageSourceSet)
	for _, sources := range rootResolved {
		for _, src := range sources.Items() {
			contribution, err := c.usesContribution(src)
			if err != nil {
				return nil, err
			}
			for name, set := range contribution {
				if err := mergeCompatible(result, name, set); err != nil {
					return nil, err
				}
			}
		}
	}
	return result, nil
}

// usesContribution computes and memoizes the uses-closure contribution of
// a single PackageSource: its capability's Uses packages, restricted keys
// from its own module's ResolvedPackage map, recursively expanded.
func (c *checker) usesContribution(src registry.PackageSource) (map[string]registry.PackageSourceSet, error) {
	digest, err := sourceDigest(src)
	if err != nil {
		return nil, errors.Wrap(err, "hash package source")
	}
	if cached, ok := c.usesMemo[digest]; ok {
		return cached, nil
	}
	// Seed the memo with an empty map before recursing so a cycle back to
	// this same source returns "no further contribution" rather than
	// looping.
	c.usesMemo[digest] = map[string]registry.PackageSourceSet{}

	ownResolved := c.resolvedPackages(src.Module)
	result := make(map[string]registry.PackageSourceSet)
	for _, name := range src.Capability.Uses {
		sources, ok := ownResolved[name]
		if !ok {
			continue
		}
		if err := mergeCompatible(result, name, sources); err != nil {
			return nil, err
		}
		for _, nested := range sources.Items() {
			nestedContribution, err := c.usesContribution(nested)
			if err != nil {
				return nil, err
			}
			for n, s := range nestedContribution {
				if err := mergeCompatible(result, n, s); err != nil {
					return nil, err
				}
			}
		}
	}

	c.usesMemo[digest] = result
	return result, nil
}

// resolvedPackagesFromWires rebuilds m's ResolvedPackage map from its
// already-committed Wires, applying the same three-step merge as
// resolvedPackages but reading prior wiring decisions instead of the
// current odometer position: module wires contribute their already-
// flattened FlattenedPackages (step 1), m's own exported capabilities
// union in (step 2), and package wires overwrite (step 3).
func resolvedPackagesFromWires(m *registry.Module) map[string]registry.PackageSourceSet {
	result := make(map[string]registry.PackageSourceSet)

	for _, w := range m.Wires() {
		if w.Kind != registry.WireKindModule {
			continue
		}
		for name, sources := range w.FlattenedPackages {
			mergeUnion(result, name, sources)
		}
	}

	for _, pcap := range m.Definition.Capabilities {
		if pcap.Namespace != capability.NamespacePackage {
			continue
		}
		name := pcap.PackageName()
		if name == "" {
			continue
		}
		mergeUnion(result, name, registry.NewPackageSourceSet(registry.PackageSource{Module: m, Capability: pcap}))
	}

	for _, w := range m.Wires() {
		if w.Kind != registry.WireKindPackage {
			continue
		}
		name := w.Capability.PackageName()
		if name == "" {
			continue
		}
		result[name] = registry.NewPackageSourceSet(registry.PackageSource{Module: w.Exporter, Capability: w.Capability})
	}

	return result
}

// mergeUnion merges sources into m[name] by set union, the rule for
// combining required+exported package sources.
func mergeUnion(m map[string]registry.PackageSourceSet, name string, sources registry.PackageSourceSet) {
	if existing, ok := m[name]; ok {
		m[name] = existing.Union(sources)
		return
	}
	m[name] = sources
}

// mergeCompatible merges sources into m[name], requiring the two sets be
// subset-comparable (§4.3: "compatible iff one source set is a subset of
// the other"); on conflict it returns ErrIncompatibleSources and widens to
// their union only when compatible.
func mergeCompatible(m map[string]registry.PackageSourceSet, name string, sources registry.PackageSourceSet) error {
	existing, ok := m[name]
	if !ok {
		m[name] = sources
		return nil
	}
	if !subsetComparable(existing, sources) {
		return ErrIncompatibleSources
	}
	m[name] = existing.Union(sources)
	return nil
}

// subsetComparable reports whether a and b are subset-comparable: one is
// a subset of the other (§3 Invariant 5, §4.3).
func subsetComparable(a, b registry.PackageSourceSet) bool {
	return a.IsSubsetOf(b) || b.IsSubsetOf(a)
}

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

// Description: PackageSource, the ordered (module, capability) pair the
// whole resolver is built around, plus Wire, the committed outcome of a
// satisfied Requirement, and the package-source-set helpers both the
// candidate selector and the class-space checker need.

package registry

import (
	"sort"

	"go.modspace.dev/modspace/pkg/capability"
)

// PackageSource pairs a package Capability with the Module that declares
// it. Two PackageSources are equal iff they share both the module and the
// capability pointer (§3).
type PackageSource struct {
	Module     *Module
	Capability *capability.Capability
}

// Equal reports whether p and o name the same (module, capability) pair.
func (p PackageSource) Equal(o PackageSource) bool {
	return p.Module == o.Module && p.Capability == o.Capability
}

// Less orders p before o by descending capability version, then ascending
// BundleID, the standard candidate preference order (§4.1).
func (p PackageSource) Less(o PackageSource) bool {
	if c := o.Capability.Version().Compare(p.Capability.Version()); c != 0 {
		return c < 0
	}
	return p.Module.BundleID < o.Module.BundleID
}

// PackageSourceSet is an ordered, de-duplicated collection of
// PackageSources: the value a ResolvedPackage carries, and the value the
// class-space checker compares for consistency (§4.4).
type PackageSourceSet struct {
	items []PackageSource
}

// NewPackageSourceSet builds a set from the given sources, de-duplicating
// and sorting by PackageSource.Less.
func NewPackageSourceSet(sources ...PackageSource) PackageSourceSet {
	var s PackageSourceSet
	for _, src := range sources {
		s.Add(src)
	}
	return s
}

// Add inserts src if not already present, keeping the set sorted.
func (s *PackageSourceSet) Add(src PackageSource) {
	for _, existing := range s.items {
		if existing.Equal(src) {
			return
		}
	}
	s.items = append(s.items, src)
	sort.Slice(s.items, func(i, j int) bool { return s.items[i].Less(s.items[j]) })
}

// Items returns the set's members in preference order. The returned slice
// must not be mutated by the caller.
func (s PackageSourceSet) Items() []PackageSource {
	return s.items
}

// Len reports the number of distinct sources in the set.
func (s PackageSourceSet) Len() int {
	return len(s.items)
}

// Contains reports whether src is a member of the set.
func (s PackageSourceSet) Contains(src PackageSource) bool {
	for _, existing := range s.items {
		if existing.Equal(src) {
			return true
		}
	}
	return false
}

// Union returns a new set containing the members of both s and o.
func (s PackageSourceSet) Union(o PackageSourceSet) PackageSourceSet {
	out := NewPackageSourceSet(s.items...)
	for _, src := range o.items {
		out.Add(src)
	}
	return out
}

// IsSubsetOf reports whether every member of s is also a member of o. Used
// by the class-space checker's "no splits" rule (Invariant 3): a visible
// package's source set at one wiring point must be a subset of its source
// set everywhere else it's visible.
func (s PackageSourceSet) IsSubsetOf(o PackageSourceSet) bool {
	for _, src := range s.items {
		if !o.Contains(src) {
			return false
		}
	}
	return true
}

// Equal reports whether s and o contain exactly the same members.
func (s PackageSourceSet) Equal(o PackageSourceSet) bool {
	return len(s.items) == len(o.items) && s.IsSubsetOf(o)
}

// ResolvedPackage names a package and the set of sources visible for it
// from some point in the module graph.
type ResolvedPackage struct {
	Name    string
	Sources PackageSourceSet
}

// WireKind distinguishes a package import wire from a whole-module wire.
type WireKind int

const (
	// WireKindPackage wires a single package requirement to its source.
	WireKindPackage WireKind = iota

	// WireKindModule wires a require-module requirement to the exporting
	// module, importing every package that module re-exports (§4.3,
	// §4.6 Edge case 1 — flattened transitively through the exporter's
	// own module wires).
	WireKindModule
)

// String implements fmt.Stringer for diagnostic output.
func (k WireKind) String() string {
	switch k {
	case WireKindPackage:
		return "package"
	case WireKindModule:
		return "module"
	default:
		return "unknown"
	}
}

// Wire is the committed outcome of satisfying a Requirement: importer now
// sees exporter's capability.
type Wire struct {
	// Kind distinguishes package wires from module wires.
	Kind WireKind

	// Importer is the module that declared the requirement.
	Importer *Module

	// Exporter is the module providing the matched capability.
	Exporter *Module

	// Capability is the matched capability on Exporter.
	Capability *capability.Capability

	// Requirement is the requirement this wire satisfies. Dynamic-import
	// wires carry the requirement built for the concrete package from the
	// DynamicRequirement (see resolve.conjoinPackage), not the
	// DynamicRequirement's own Requirement.
	Requirement *capability.Requirement

	// FlattenedPackages holds, for a WireKindModule wire only, every
	// package name re-exported by Exporter mapped to its source set, per
	// the "flatten all re-exported packages" decision (SPEC_FULL.md §12,
	// resolving spec.md Open Question (b)).
	FlattenedPackages map[string]PackageSourceSet
}

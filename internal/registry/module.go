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

// Description: This file implements module specific code: the Module
// value the resolver and search policy operate on, and the external
// collaborator interfaces it is built from (§6 of SPEC_FULL.md).

// Package registry holds the live modules known to the resolver, their
// resolved/unresolved state and wires, and the in-use capability tracking
// the resolver and search policy both depend on.
package registry

import (
	"sync"

	"go.modspace.dev/modspace/pkg/capability"
)

// Definition is the immutable list of capabilities and requirements a
// module declares, plus dynamic-requirement patterns and native-library
// descriptors. Definitions never change after a Module is constructed.
type Definition struct {
	// Name is a human-readable identifier for the module, used in
	// diagnostics and logging. It need not be unique.
	Name string

	// Capabilities are the things this module offers.
	Capabilities []*capability.Capability

	// Requirements are the things this module needs, resolved eagerly
	// during Resolve.
	Requirements []*capability.Requirement

	// DynamicRequirements may only be satisfied lazily, triggered by a
	// class-load miss (§4.5).
	DynamicRequirements []*capability.DynamicRequirement

	// NativeLibraries are native library descriptors exposed via
	// findLibrary.
	NativeLibraries []*capability.NativeLibrary
}

// ClassRef is an opaque handle to a loaded class. The core never inspects
// its contents; it only ever passes it back to the caller of findClass.
type ClassRef struct {
	Name   string
	Module int64
}

// ContentLoader fetches a class or resource from a module's own content,
// without delegating to any other module. All three methods report
// "absent" via found=false rather than an error when the name simply isn't
// present in this module's content.
type ContentLoader interface {
	GetClass(name string) (ref ClassRef, found bool, err error)
	GetResource(name string) (url string, found bool, err error)
	GetResources(name string) (urls []string, found bool, err error)
}

// SecurityContext gates whether a module is permitted to export a given
// package to other modules. A nil SecurityContext imposes no restriction.
type SecurityContext interface {
	// Implies reports whether this context grants the export of pkg.
	Implies(pkg string) bool
}

// ModuleFactory produces a Module from an on-disk manifest and content
// location (§6). It is the abstraction pkg/manifest + pkg/content satisfy
// together for cmd/modspace, kept here only as an interface — the
// concrete implementation lives outside this package to avoid an import
// cycle (pkg/manifest and pkg/content both import registry for Definition/
// ContentLoader/ClassRef).
type ModuleFactory interface {
	// NewModule builds a Module with the given stable id, reading its
	// Definition from manifestPath and rooting its ContentLoader at
	// contentURI.
	NewModule(id int64, manifestPath, contentURI string) (*Module, error)
}

// State is a Module's resolution state.
type State int

const (
	// StateUnresolved is the initial state of every module: §3 Invariant
	// 1 holds that a module is resolved iff every non-optional
	// requirement in its definition has a wire.
	StateUnresolved State = iota
	StateResolved
)

// Module is a uniquely-identified unit of code with declared capabilities
// and requirements (§3). All mutation of a Module's state/wires must occur
// while the owning Registry's factory lock is held (§5); Module itself
// does not lock, matching the teacher's IModule collaborator shape where
// setWires/setResolved are only ever called from inside the resolver's
// critical section.
type Module struct {
	// BundleID is the stable numeric handle for this module across
	// revisions; PackageSource ordering breaks version ties on it. Wires
	// and the resolver's cycle guards refer to modules by *Module pointer,
	// not by this id, so a cyclic module graph (A imports from B and B
	// imports from A) is a cycle of pointers.
	BundleID int64

	// ModuleID is the per-revision id. Distinct revisions of the same
	// bundle have distinct ModuleIDs but the same BundleID.
	ModuleID int64

	// Definition is this module's immutable capability/requirement list.
	Definition *Definition

	// Content is this module's own class/resource loader.
	Content ContentLoader

	// Security is this module's export-gating hook, or nil.
	Security SecurityContext

	state  State
	wires  []*Wire
	noCopy noCopy
}

// Resolved reports whether this module currently has a wire for every
// non-optional requirement (Invariant 1). Callers must hold the owning
// Registry's lock, or accept that the result may be stale the instant
// after it's read for anything but a registry-serialized caller.
func (m *Module) Resolved() bool {
	return m.state == StateResolved
}

// Wires returns this module's current wire list. Resolved modules carry
// wires; unresolved modules have none.
func (m *Module) Wires() []*Wire {
	return m.wires
}

// setWires installs a new wire list and marks the module resolved. Only
// ever called from Registry.Commit, under the factory lock (§4.2 Phase
// C), per the "once setResolved returns inside the lock" ordering
// guarantee of §5.
func (m *Module) setWires(wires []*Wire) {
	m.wires = wires
	m.state = StateResolved
}

// setUnresolved reverts a module to the unresolved state and clears its
// wires, used when a module is removed from the registry.
func (m *Module) setUnresolved() {
	m.wires = nil
	m.state = StateUnresolved
}

// NonOptionalRequirements returns this module's requirements excluding
// optional ones, the set Invariant 1 is defined over.
func (m *Module) NonOptionalRequirements() []*capability.Requirement {
	out := make([]*capability.Requirement, 0, len(m.Definition.Requirements))
	for _, r := range m.Definition.Requirements {
		if !r.Optional {
			out = append(out, r)
		}
	}
	return out
}

// WireFor returns the first live wire of this module that resolves
// requirement req, or nil.
func (m *Module) WireFor(req *capability.Requirement) *Wire {
	for _, w := range m.wires {
		if w.Requirement == req {
			return w
		}
	}
	return nil
}

// noCopy guards nothing by itself; it documents that Module's mutators
// above are intentionally unsynchronized and rely on the Registry's
// factory lock. Module carries it as a zero-size field so
// `go vet -copylocks` flags accidental Module copies, which would silently
// fork wire state.
var _ sync.Locker = (*noCopy)(nil)

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

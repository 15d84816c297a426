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

// Description: Diagnostics (§4.8): on class-not-found, synthesize a
// human-readable reason by case analysis over the wiring state.

package search

import (
	"fmt"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
)

// diagnose implements the §4.8 case analysis, returning the first
// matching case's explanation.
func (p *Policy) diagnose(m *registry.Module, pkg, name string) string {
	// (a) module imports the package but that exporter lacks the class.
	for _, w := range m.Wires() {
		if wireCoversPackage(w, pkg) {
			return fmt.Sprintf(
				"module %d imports package %q from module %d, but %q was not found there (case a: re-check the exporter's content)",
				m.BundleID, pkg, w.Exporter.BundleID, name)
		}
	}

	// (b) package is optionally imported.
	for _, req := range m.Definition.Requirements {
		if !req.Optional || req.Namespace != capability.NamespacePackage {
			continue
		}
		if req.PackageName() != pkg {
			continue
		}
		if exp := p.findExporter(pkg); exp != nil {
			return fmt.Sprintf(
				"module %d optionally requires package %q; module %d exports it but was never wired (case b: the optional requirement went unsatisfied)",
				m.BundleID, pkg, exp.BundleID)
		}
		return fmt.Sprintf(
			"module %d optionally requires package %q but no module currently exports it (case b)",
			m.BundleID, pkg)
	}

	// (c) package is dynamically importable.
	for _, dyn := range m.Definition.DynamicRequirements {
		if dyn.Matches(pkg) {
			return fmt.Sprintf(
				"module %d can dynamically import package %q but no candidate resolved successfully (case c)",
				m.BundleID, pkg)
		}
	}

	// (d) package is exported by some module but importer lacks an import.
	if exp := p.findExporter(pkg); exp != nil {
		return fmt.Sprintf(
			"package %q is exported by module %d, but module %d declares no requirement for it (case d: add an import)",
			pkg, exp.BundleID, m.BundleID)
	}

	// (e) class exists only on the host class path.
	if p.Boot != nil && p.Boot.Matches(pkg) {
		return fmt.Sprintf("class %q is only visible via the host class path (case e)", name)
	}

	// (f) no exporter at all.
	return fmt.Sprintf("no module exports package %q (case f)", pkg)
}

// findExporter returns the first module (by registry iteration order)
// that exports pkg, or nil.
func (p *Policy) findExporter(pkg string) *registry.Module {
	p.Registry.Lock()
	defer p.Registry.Unlock()
	for _, m := range p.Registry.Modules() {
		for _, c := range m.Definition.Capabilities {
			if c.Namespace == capability.NamespacePackage && c.PackageName() == pkg {
				return m
			}
		}
	}
	return nil
}

// wireCoversPackage reports whether wire makes pkg visible, either
// directly (package wire) or via a module wire's flattened package map.
func wireCoversPackage(w *registry.Wire, pkg string) bool {
	switch w.Kind {
	case registry.WireKindPackage:
		return w.Capability.PackageName() == pkg
	case registry.WireKindModule:
		_, ok := w.FlattenedPackages[pkg]
		return ok
	}
	return false
}

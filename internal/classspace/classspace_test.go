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

package classspace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.modspace.dev/modspace/internal/candidate"
	"go.modspace.dev/modspace/internal/classspace"
	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
)

type fakeGraph struct {
	sets map[*registry.Module][]*candidate.Set
}

func (g *fakeGraph) CandidateSets(m *registry.Module) []*candidate.Set { return g.sets[m] }

func pkgCap(name, version string, uses ...string) *capability.Capability {
	return &capability.Capability{
		Namespace: capability.NamespacePackage,
		Properties: map[string]any{
			capability.PackageAttr: name,
			capability.VersionAttr: capability.MustParseVersion(version),
		},
		Uses: uses,
	}
}

func req(t *testing.T, expr string) *capability.Requirement {
	t.Helper()
	r, err := capability.NewRequirement(capability.NamespacePackage, expr, false, false)
	require.NoError(t, err)
	return r
}

// TestConsistentSimpleImport models S1: B imports p from A, no uses
// constraints, trivially consistent.
func TestConsistentSimpleImport(t *testing.T) {
	a := &registry.Module{BundleID: 1, ModuleID: 1, Definition: &registry.Definition{
		Capabilities: []*capability.Capability{pkgCap("p", "1.0.0")},
	}}
	b := &registry.Module{BundleID: 2, ModuleID: 2, Definition: &registry.Definition{}}

	r := req(t, "(package=p)")
	set := &candidate.Set{
		Importer: b, Requirement: r,
		Sources: []registry.PackageSource{{Module: a, Capability: a.Definition.Capabilities[0]}},
	}
	graph := &fakeGraph{sets: map[*registry.Module][]*candidate.Set{b: {set}}}

	result, ok, err := classspace.Check(graph, b)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, result.Resolved[b], "p")
}

// TestUsesConflictIsInconsistent models S3's conflicting case: B wires to
// A.p (uses q) and directly to E.q v2, while A.p's own resolved map only
// sees D.q v1 - two disjoint, non-subset-comparable sources for "q".
func TestUsesConflictIsInconsistent(t *testing.T) {
	d := &registry.Module{BundleID: 1, ModuleID: 1, Definition: &registry.Definition{
		Capabilities: []*capability.Capability{pkgCap("q", "1.0.0")},
	}}
	e := &registry.Module{BundleID: 2, ModuleID: 2, Definition: &registry.Definition{
		Capabilities: []*capability.Capability{pkgCap("q", "2.0.0")},
	}}
	a := &registry.Module{BundleID: 3, ModuleID: 3, Definition: &registry.Definition{
		Capabilities: []*capability.Capability{pkgCap("p", "1.0.0", "q")},
	}}
	b := &registry.Module{BundleID: 4, ModuleID: 4, Definition: &registry.Definition{}}

	// a imports q from d.
	aQReq := req(t, "(package=q)")
	aSet := &candidate.Set{
		Importer: a, Requirement: aQReq,
		Sources: []registry.PackageSource{{Module: d, Capability: d.Definition.Capabilities[0]}},
	}

	// b imports p from a, and q from e directly.
	bPReq := req(t, "(package=p)")
	bQReq := req(t, "(package=q)")
	bPSet := &candidate.Set{
		Importer: b, Requirement: bPReq,
		Sources: []registry.PackageSource{{Module: a, Capability: a.Definition.Capabilities[0]}},
	}
	bQSet := &candidate.Set{
		Importer: b, Requirement: bQReq,
		Sources: []registry.PackageSource{{Module: e, Capability: e.Definition.Capabilities[0]}},
	}

	graph := &fakeGraph{sets: map[*registry.Module][]*candidate.Set{
		a: {aSet},
		b: {bPSet, bQSet},
	}}

	_, ok, err := classspace.Check(graph, b)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestRequireModuleFlattensReExports models S4: N requires-module M, which
// re-exports p and r; N's resolved map should carry both with M as source.
func TestRequireModuleFlattensReExports(t *testing.T) {
	m := &registry.Module{BundleID: 1, ModuleID: 1, Definition: &registry.Definition{
		Capabilities: []*capability.Capability{pkgCap("p", "1.0.0"), pkgCap("r", "1.0.0")},
	}}
	n := &registry.Module{BundleID: 2, ModuleID: 2, Definition: &registry.Definition{}}

	moduleCap := &capability.Capability{Namespace: capability.NamespaceModule, Properties: map[string]any{"module": "lib"}}
	moduleReq, err := capability.NewRequirement(capability.NamespaceModule, "(module=lib)", false, false)
	require.NoError(t, err)
	set := &candidate.Set{
		Importer: n, Requirement: moduleReq,
		Sources: []registry.PackageSource{{Module: m, Capability: moduleCap}},
	}
	graph := &fakeGraph{sets: map[*registry.Module][]*candidate.Set{n: {set}}}

	result, ok, err := classspace.Check(graph, n)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, result.Resolved[n], "p")
	assert.Contains(t, result.Resolved[n], "r")
}

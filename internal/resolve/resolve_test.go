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

package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.modspace.dev/modspace/internal/candidate"
	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/internal/resolve"
	"go.modspace.dev/modspace/pkg/capability"
)

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

func module(id int64, name string, def *registry.Definition) *registry.Module {
	if def == nil {
		def = &registry.Definition{}
	}
	def.Name = name
	return &registry.Module{BundleID: id, ModuleID: id, Definition: def}
}

func newHarness() (*registry.Registry, *resolve.Resolver) {
	reg := registry.New(nil)
	sel := candidate.New(reg, nil, nil)
	return reg, resolve.New(reg, sel, nil)
}

func requireReq(t *testing.T, ns capability.Namespace, expr string, optional, dynamic bool) *capability.Requirement {
	t.Helper()
	r, err := capability.NewRequirement(ns, expr, optional, dynamic)
	require.NoError(t, err)
	return r
}

// TestS1BasicWiring: A exports p v1.0, B requires p>=1.0. resolve(B) wires
// B -> A.p; both resolved.
func TestS1BasicWiring(t *testing.T) {
	reg, r := newHarness()
	a := module(1, "A", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("p", "1.0.0")}})
	b := module(2, "B", &registry.Definition{
		Requirements: []*capability.Requirement{requireReq(t, capability.NamespacePackage, "(&(package=p)(version>=1.0.0))", false, false)},
	})

	reg.Lock()
	reg.AddModule(a)
	reg.AddModule(b)
	reg.Unlock()

	require.NoError(t, r.Resolve(b))
	assert.True(t, b.Resolved())
	assert.True(t, a.Resolved())
	require.Len(t, b.Wires(), 1)
	assert.Same(t, a, b.Wires()[0].Exporter)
}

// TestS2HigherVersionWins: C exports p v1.1 in addition to A's v1.0.
// resolve(B) wires B -> C; A stays unused.
func TestS2HigherVersionWins(t *testing.T) {
	reg, r := newHarness()
	a := module(1, "A", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("p", "1.0.0")}})
	c := module(3, "C", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("p", "1.1.0")}})
	b := module(2, "B", &registry.Definition{
		Requirements: []*capability.Requirement{requireReq(t, capability.NamespacePackage, "(&(package=p)(version>=1.0.0))", false, false)},
	})

	reg.Lock()
	reg.AddModule(a)
	reg.AddModule(c)
	reg.AddModule(b)
	reg.Unlock()

	require.NoError(t, r.Resolve(b))
	require.Len(t, b.Wires(), 1)
	assert.Same(t, c, b.Wires()[0].Exporter)
	assert.False(t, a.Resolved())
}

// TestS4RequiredModuleFlattening: M provides-module lib re-exporting p, r.
// N requires-module lib. resolve(N) produces a module wire to M whose
// flattened package map contains p and r.
func TestS4RequiredModuleFlattening(t *testing.T) {
	reg, r := newHarness()
	moduleCap := &capability.Capability{Namespace: capability.NamespaceModule, Properties: map[string]any{"module": "lib"}}
	m := module(1, "M", &registry.Definition{
		Capabilities: []*capability.Capability{moduleCap, pkgCap("p", "1.0.0"), pkgCap("r", "1.0.0")},
	})
	n := module(2, "N", &registry.Definition{
		Requirements: []*capability.Requirement{requireReq(t, capability.NamespaceModule, "(module=lib)", false, false)},
	})

	reg.Lock()
	reg.AddModule(m)
	reg.AddModule(n)
	reg.Unlock()

	require.NoError(t, r.Resolve(n))
	require.Len(t, n.Wires(), 1)
	wire := n.Wires()[0]
	assert.Equal(t, registry.WireKindModule, wire.Kind)
	assert.Contains(t, wire.FlattenedPackages, "p")
	assert.Contains(t, wire.FlattenedPackages, "r")
}

// TestS6OptionalRequirementAbsent: B has an optional requirement on q with
// no provider. resolve(B) succeeds with no q wire.
func TestS6OptionalRequirementAbsent(t *testing.T) {
	reg, r := newHarness()
	b := module(1, "B", &registry.Definition{
		Requirements: []*capability.Requirement{requireReq(t, capability.NamespacePackage, "(package=q)", true, false)},
	})

	reg.Lock()
	reg.AddModule(b)
	reg.Unlock()

	require.NoError(t, r.Resolve(b))
	assert.True(t, b.Resolved())
	assert.Empty(t, b.Wires())
}

// TestIdempotence: resolving an already-resolved module is a no-op that
// leaves its wire set unchanged (Testable Property 1).
func TestIdempotence(t *testing.T) {
	reg, r := newHarness()
	a := module(1, "A", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("p", "1.0.0")}})
	b := module(2, "B", &registry.Definition{
		Requirements: []*capability.Requirement{requireReq(t, capability.NamespacePackage, "(package=p)", false, false)},
	})
	reg.Lock()
	reg.AddModule(a)
	reg.AddModule(b)
	reg.Unlock()

	require.NoError(t, r.Resolve(b))
	firstWires := b.Wires()
	require.NoError(t, r.Resolve(b))
	assert.Equal(t, firstWires, b.Wires())
}

// TestRequiredWithNoProviderFails: a non-optional requirement with no
// provider fails resolve with a *resolve.Error.
func TestRequiredWithNoProviderFails(t *testing.T) {
	reg, r := newHarness()
	b := module(1, "B", &registry.Definition{
		Requirements: []*capability.Requirement{requireReq(t, capability.NamespacePackage, "(package=q)", false, false)},
	})
	reg.Lock()
	reg.AddModule(b)
	reg.Unlock()

	err := r.Resolve(b)
	require.Error(t, err)
	var resolveErr *resolve.Error
	require.ErrorAs(t, err, &resolveErr)
	assert.False(t, b.Resolved())
}

// TestS3UsesConflictBacktracksToConsistentWiring drives spec.md's literal
// S3 scenario end to end through Resolver.Resolve: A exports p (uses q)
// and itself imports q restricted to D's v1.0.0; D exports q v1.0.0, E
// exports q v2.0.0; B requires p and requires q unrestricted, so B's own
// q candidates are [E, D] in that preference order (descending version).
// The initial odometer position wires B -> E.q directly while A's own
// q-import (forced to D, its only candidate) disagrees, which is
// inconsistent with p's uses-q constraint; the odometer must advance B's
// q-set to D before Resolve succeeds.
func TestS3UsesConflictBacktracksToConsistentWiring(t *testing.T) {
	reg, r := newHarness()
	d := module(1, "D", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("q", "1.0.0")}})
	e := module(2, "E", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("q", "2.0.0")}})
	a := module(3, "A", &registry.Definition{
		Capabilities: []*capability.Capability{pkgCap("p", "1.0.0", "q")},
		Requirements: []*capability.Requirement{
			requireReq(t, capability.NamespacePackage, "(&(package=q)(version=1.0.0))", false, false),
		},
	})
	b := module(4, "B", &registry.Definition{
		Requirements: []*capability.Requirement{
			requireReq(t, capability.NamespacePackage, "(package=p)", false, false),
			requireReq(t, capability.NamespacePackage, "(package=q)", false, false),
		},
	})

	reg.Lock()
	reg.AddModule(d)
	reg.AddModule(e)
	reg.AddModule(a)
	reg.AddModule(b)
	reg.Unlock()

	require.NoError(t, r.Resolve(b))
	assert.True(t, b.Resolved())
	assert.True(t, a.Resolved())

	var pWire, qWire *registry.Wire
	for _, w := range b.Wires() {
		switch w.Capability.PackageName() {
		case "p":
			pWire = w
		case "q":
			qWire = w
		}
	}
	require.NotNil(t, pWire)
	require.NotNil(t, qWire)
	assert.Same(t, a, pWire.Exporter)
	assert.Same(t, d, qWire.Exporter, "odometer must backtrack B's q wire off E onto D to agree with A's own uses-q import")
}

// TestS3UsesConflictWithNoConsistentConfigurationFails: A's own q-import
// is forced to E (version=2.0.0 exactly) while B's own q-requirement is
// forced to D (version=1.0.0 exactly) — both single-candidate sets, so
// neither can be advanced. The uses-conflict between p's uses-q (E) and
// B's direct q wire (D) can never be resolved; Resolve must fail with a
// constraint-violation *resolve.Error rather than silently committing an
// inconsistent configuration.
func TestS3UsesConflictWithNoConsistentConfigurationFails(t *testing.T) {
	reg, r := newHarness()
	d := module(1, "D", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("q", "1.0.0")}})
	e := module(2, "E", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("q", "2.0.0")}})
	a := module(3, "A", &registry.Definition{
		Capabilities: []*capability.Capability{pkgCap("p", "1.0.0", "q")},
		Requirements: []*capability.Requirement{
			requireReq(t, capability.NamespacePackage, "(&(package=q)(version=2.0.0))", false, false),
		},
	})
	b := module(4, "B", &registry.Definition{
		Requirements: []*capability.Requirement{
			requireReq(t, capability.NamespacePackage, "(package=p)", false, false),
			requireReq(t, capability.NamespacePackage, "(&(package=q)(version=1.0.0))", false, false),
		},
	})

	reg.Lock()
	reg.AddModule(d)
	reg.AddModule(e)
	reg.AddModule(a)
	reg.AddModule(b)
	reg.Unlock()

	err := r.Resolve(b)
	require.Error(t, err)
	var resolveErr *resolve.Error
	require.ErrorAs(t, err, &resolveErr)
	assert.False(t, b.Resolved())
	assert.False(t, a.Resolved())
}

// TestInUseInvariant: after resolve(B) succeeds, every wire's exporter
// capability is in in_use_caps[exporter] (Testable Property 7).
func TestInUseInvariant(t *testing.T) {
	reg, r := newHarness()
	a := module(1, "A", &registry.Definition{Capabilities: []*capability.Capability{pkgCap("p", "1.0.0")}})
	b := module(2, "B", &registry.Definition{
		Requirements: []*capability.Requirement{requireReq(t, capability.NamespacePackage, "(package=p)", false, false)},
	})
	reg.Lock()
	reg.AddModule(a)
	reg.AddModule(b)
	reg.Unlock()

	require.NoError(t, r.Resolve(b))
	wire := b.Wires()[0]
	assert.Contains(t, reg.InUseCapabilities(wire.Exporter), wire.Capability)
}

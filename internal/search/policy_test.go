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

package search_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.modspace.dev/modspace/internal/candidate"
	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/internal/resolve"
	"go.modspace.dev/modspace/internal/search"
	"go.modspace.dev/modspace/pkg/capability"
)

type fakeContent struct {
	classes map[string]registry.ClassRef
}

func (f *fakeContent) GetClass(name string) (registry.ClassRef, bool, error) {
	ref, ok := f.classes[name]
	return ref, ok, nil
}
func (f *fakeContent) GetResource(name string) (string, bool, error)    { return "", false, nil }
func (f *fakeContent) GetResources(name string) ([]string, bool, error) { return nil, false, nil }

type fakeHost struct {
	loaded []string
}

func (h *fakeHost) LoadClass(name string) (registry.ClassRef, bool, error) {
	h.loaded = append(h.loaded, name)
	return registry.ClassRef{Name: name}, true, nil
}
func (h *fakeHost) LoadResource(name string) (string, bool, error)    { return "", false, nil }
func (h *fakeHost) LoadResources(name string) ([]string, bool, error) { return nil, false, nil }

func pkgCap(name, version string) *capability.Capability {
	return &capability.Capability{
		Namespace: capability.NamespacePackage,
		Properties: map[string]any{
			capability.PackageAttr: name,
			capability.VersionAttr: capability.MustParseVersion(version),
		},
	}
}

func newPolicy(reg *registry.Registry) (*resolve.Resolver, *search.Policy, *fakeHost) {
	sel := candidate.New(reg, nil, nil)
	resolver := resolve.New(reg, sel, nil)
	host := &fakeHost{}
	policy := search.New(reg, resolver, search.NewBootDelegation([]string{"com.host.*"}), host, nil)
	return resolver, policy, host
}

// TestBootPrefixSoundness: Testable Property 5 — loading any name in
// package java.util delegates to the host loader exactly once and
// bypasses wires.
func TestBootPrefixSoundness(t *testing.T) {
	reg := registry.New(nil)
	b := &registry.Module{BundleID: 1, ModuleID: 1, Definition: &registry.Definition{}, Content: &fakeContent{}}
	reg.Lock()
	reg.AddModule(b)
	reg.Unlock()

	_, policy, host := newPolicy(reg)
	ref, err := policy.FindClass(b, "java.util.List", search.CallerModule)
	require.NoError(t, err)
	assert.Equal(t, "java.util.List", ref.Name)
	assert.Equal(t, []string{"java.util.List"}, host.loaded)
}

// TestS5DynamicImport: B declares dynamic p.*. findClass(B, "p.C")
// attaches a dynamic wire B->A.p; a subsequent findClass(B, "p.D") goes
// through the same static wire without another dynamic-import attempt.
func TestS5DynamicImport(t *testing.T) {
	reg := registry.New(nil)
	aClasses := map[string]registry.ClassRef{
		"p.C": {Name: "p.C", Module: 1},
		"p.D": {Name: "p.D", Module: 1},
	}
	a := &registry.Module{BundleID: 1, ModuleID: 1, Definition: &registry.Definition{
		Capabilities: []*capability.Capability{pkgCap("p", "1.0.0")},
	}, Content: &fakeContent{classes: aClasses}}

	dynReq, err := capability.NewRequirement(capability.NamespacePackage, "(package=p.*)", false, true)
	require.NoError(t, err)
	b := &registry.Module{BundleID: 2, ModuleID: 2, Definition: &registry.Definition{
		DynamicRequirements: []*capability.DynamicRequirement{{Pattern: "p.*", Requirement: dynReq}},
	}, Content: &fakeContent{}}

	reg.Lock()
	reg.AddModule(a)
	reg.AddModule(b)
	reg.Unlock()

	_, policy, _ := newPolicy(reg)

	ref, err := policy.FindClass(b, "p.C", search.CallerModule)
	require.NoError(t, err)
	assert.Equal(t, "p.C", ref.Name)
	require.Len(t, b.Wires(), 1)

	ref2, err := policy.FindClass(b, "p.D", search.CallerModule)
	require.NoError(t, err)
	assert.Equal(t, "p.D", ref2.Name)
	assert.Len(t, b.Wires(), 1, "second lookup must reuse the existing dynamic wire, not add another")
}

// TestLocalContentFallback exercises local content when no wire covers
// the package.
func TestLocalContentFallback(t *testing.T) {
	reg := registry.New(nil)
	b := &registry.Module{BundleID: 1, ModuleID: 1, Definition: &registry.Definition{},
		Content: &fakeContent{classes: map[string]registry.ClassRef{"local.Thing": {Name: "local.Thing", Module: 1}}},
	}
	reg.Lock()
	reg.AddModule(b)
	reg.Unlock()

	_, policy, _ := newPolicy(reg)
	ref, err := policy.FindClass(b, "local.Thing", search.CallerModule)
	require.NoError(t, err)
	assert.Equal(t, "local.Thing", ref.Name)
}

// TestClassNotFoundFallsBackToHostForHostCaller exercises §4.4 step 7:
// a host-path caller concedes to the host loader on failure.
func TestClassNotFoundFallsBackToHostForHostCaller(t *testing.T) {
	reg := registry.New(nil)
	b := &registry.Module{BundleID: 1, ModuleID: 1, Definition: &registry.Definition{}, Content: &fakeContent{}}
	reg.Lock()
	reg.AddModule(b)
	reg.Unlock()

	_, policy, host := newPolicy(reg)
	ref, err := policy.FindClass(b, "missing.Thing", search.CallerHost)
	require.NoError(t, err)
	assert.Equal(t, "missing.Thing", ref.Name)
	assert.Equal(t, []string{"missing.Thing"}, host.loaded)
}

// TestClassNotFoundForModuleCallerReportsDiagnosis: a module-path caller
// gets a diagnosed ClassNotFoundError instead of host fallback.
func TestClassNotFoundForModuleCallerReportsDiagnosis(t *testing.T) {
	reg := registry.New(nil)
	b := &registry.Module{BundleID: 1, ModuleID: 1, Definition: &registry.Definition{}, Content: &fakeContent{}}
	reg.Lock()
	reg.AddModule(b)
	reg.Unlock()

	_, policy, _ := newPolicy(reg)
	_, err := policy.FindClass(b, "missing.Thing", search.CallerModule)
	require.Error(t, err)
	var cnf *search.ClassNotFoundError
	require.ErrorAs(t, err, &cnf)
	assert.NotEmpty(t, cnf.Diagnosis)
}

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

// Description: Candidate selection (§4.1): given a requirement, returns
// ordered candidate PackageSources partitioned into in-use and unused
// pools. Grounded on the teacher's internal/modules/resolver Criteria/Check
// pattern (a predicate scanned across a registry's known set), generalized
// here to the two-pool in-use/unused scan the spec requires.
package candidate

import (
	"sort"

	"github.com/samber/lo"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
	"go.modspace.dev/modspace/pkg/slogext"
)

// ExportGate is the injected security-check hook (§9 Design Notes: "kept
// as a policy hook the core invokes through an injected predicate"). A nil
// ExportGate imposes no restriction.
type ExportGate func(exporter *registry.Module, pkg string) bool

// Selector performs candidate selection against a Registry. Callers must
// already hold the registry's factory lock for the duration of any call,
// since selection reads modules/in_use_caps.
type Selector struct {
	Registry *registry.Registry
	Gate     ExportGate
	Log      slogext.Logger
}

// New builds a Selector. gate may be nil for "no restriction"; log may be
// nil for a discarding logger.
func New(reg *registry.Registry, gate ExportGate, log slogext.Logger) *Selector {
	if log == nil {
		log = slogext.NewTestLogger()
	}
	return &Selector{Registry: reg, Gate: gate, Log: log}
}

// InUse implements in_use(req): scans in_use_caps for capabilities
// satisfying req, dropping any the export gate denies (§4.1).
func (s *Selector) InUse(req *capability.Requirement) []registry.PackageSource {
	var out []registry.PackageSource
	for _, m := range s.Registry.Modules() {
		matching := lo.Filter(s.Registry.InUseCapabilities(m), func(c *capability.Capability, _ int) bool {
			return req.Matches(c) && !s.denied(m, c)
		})
		out = append(out, lo.Map(matching, func(c *capability.Capability, _ int) registry.PackageSource {
			return registry.PackageSource{Module: m, Capability: c}
		})...)
	}
	sortSources(out)
	return out
}

// Unused implements unused(req): scans every module's capabilities for
// ones satisfying req that are not already in_use_caps[module] (§4.1).
//
// Per SPEC_FULL.md §12 (resolving spec.md Open Question (a)), this scans
// all modules including those already contributing in-use entries for
// some *other* capability; the duplicates this can produce relative to
// InUse's output are intentional, not deduplicated here.
func (s *Selector) Unused(req *capability.Requirement) []registry.PackageSource {
	var out []registry.PackageSource
	for _, m := range s.Registry.Modules() {
		inUse := s.Registry.InUseCapabilities(m)
		matching := lo.Filter(m.Definition.Capabilities, func(c *capability.Capability, _ int) bool {
			return req.Matches(c) && !containsCap(inUse, c) && !s.denied(m, c)
		})
		out = append(out, lo.Map(matching, func(c *capability.Capability, _ int) registry.PackageSource {
			return registry.PackageSource{Module: m, Capability: c}
		})...)
	}
	sortSources(out)
	return out
}

// Candidates concatenates InUse followed by Unused, the ordering Phase A
// populate uses for each requirement (§4.2 step 1).
func (s *Selector) Candidates(req *capability.Requirement) []registry.PackageSource {
	inUse := s.InUse(req)
	unused := s.Unused(req)
	out := make([]registry.PackageSource, 0, len(inUse)+len(unused))
	out = append(out, inUse...)
	out = append(out, unused...)
	return out
}

func (s *Selector) denied(m *registry.Module, c *capability.Capability) bool {
	if s.Gate == nil {
		return false
	}
	pkg := c.PackageName()
	if pkg == "" {
		return false
	}
	allowed := s.Gate(m, pkg)
	if !allowed {
		s.Log.Debugf("candidate selection: export of %q by module %d denied by security context", pkg, m.BundleID)
	}
	return !allowed
}

func containsCap(caps []*capability.Capability, c *capability.Capability) bool {
	for _, existing := range caps {
		if existing == c {
			return true
		}
	}
	return false
}

func sortSources(sources []registry.PackageSource) {
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Less(sources[j]) })
}

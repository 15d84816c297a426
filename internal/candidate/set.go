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

// Description: Set is the CandidateSet value from §3: for one requirement
// of one importer module, the ordered candidates and the index of the
// tentatively selected one. It's the odometer's unit of advancement.

package candidate

import (
	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
)

// Set is one requirement's candidate list plus the currently-selected
// index, the unit the resolver's Phase B odometer advances over.
type Set struct {
	// Importer is the module that owns Requirement.
	Importer *registry.Module

	// Requirement is the requirement this set resolves.
	Requirement *capability.Requirement

	// Sources is the ordered candidate list (in_use then unused).
	Sources []registry.PackageSource

	// Index is the currently tentatively-selected candidate.
	Index int
}

// Selected returns the currently tentatively-selected source.
func (s *Set) Selected() registry.PackageSource {
	return s.Sources[s.Index]
}

// Advance increments Index if possible, reporting whether it did. The
// odometer calls this on the first set (in flattened order) that isn't
// already at its last position.
func (s *Set) Advance() bool {
	if s.Index+1 >= len(s.Sources) {
		return false
	}
	s.Index++
	return true
}

// Reset returns Index to 0, the odometer's "carry" behavior for every set
// before the one that was just advanced.
func (s *Set) Reset() {
	s.Index = 0
}

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

// Description: Error kinds for §7: ResolveError and the odometer's
// constraint-violation terminal case, both attached to the offending
// (module, requirement) pair where one exists.

package resolve

import (
	"fmt"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
)

// Error is the ResolveError of §7: attached to a specific
// (module, requirement) pair, optionally wrapping a lower-level cause.
type Error struct {
	Module      *registry.Module
	Requirement *capability.Requirement
	Reason      string
	Cause       error
}

func (e *Error) Error() string {
	name := ""
	if e.Module != nil && e.Module.Definition != nil {
		name = e.Module.Definition.Name
	}
	if e.Requirement != nil {
		if e.Cause != nil {
			return fmt.Sprintf("resolve %s: %s: %s: %v", name, e.Requirement, e.Reason, e.Cause)
		}
		return fmt.Sprintf("resolve %s: %s: %s", name, e.Requirement, e.Reason)
	}
	if e.Cause != nil {
		return fmt.Sprintf("resolve %s: %s: %v", name, e.Reason, e.Cause)
	}
	return fmt.Sprintf("resolve %s: %s", name, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

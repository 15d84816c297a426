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

// Description: Boot delegation (§4.4 step 3, §6 framework.bootdelegation):
// a configurable list of package prefixes, always augmented by "java.*",
// that bypass the modular search entirely in favor of the host loader.

package search

import "strings"

// BootDelegation is the configured set of boot-delegated package
// prefixes.
type BootDelegation struct {
	prefixes []string
}

// NewBootDelegation builds a BootDelegation from the configured prefix
// list, always appending "java.*" whether or not the caller included it.
func NewBootDelegation(prefixes []string) *BootDelegation {
	b := &BootDelegation{prefixes: append([]string{}, prefixes...)}
	if !containsString(b.prefixes, "java.*") {
		b.prefixes = append(b.prefixes, "java.*")
	}
	return b
}

// Matches reports whether pkg is boot-delegated. A trailing-'*' prefix
// "p.*" matches pkg == "p" (the dot-less prefix itself) or anything
// starting with "p.". A non-wildcarded prefix matches exactly.
func (b *BootDelegation) Matches(pkg string) bool {
	for _, prefix := range b.prefixes {
		if !strings.HasSuffix(prefix, "*") {
			if pkg == prefix {
				return true
			}
			continue
		}
		stem := strings.TrimSuffix(prefix, "*")
		stem = strings.TrimSuffix(stem, ".")
		if pkg == stem || strings.HasPrefix(pkg, stem+".") {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

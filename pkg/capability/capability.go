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

// Description: Value types describing what a module provides (Capability)
// and needs (Requirement). See the package resolver and classspace packages
// for the consumers of these types.

// Package capability implements the capability/requirement data model: the
// abstract offers and demands that the resolver wires together.
package capability

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
	"go.modspace.dev/modspace/pkg/filter"
)

// Namespace identifies what kind of thing a Capability provides or a
// Requirement demands. The core only understands these two; additional
// namespaces would be added as new tags here, not new subclasses.
type Namespace string

const (
	// NamespacePackage is the namespace for Java/Go-style importable
	// packages.
	NamespacePackage Namespace = "package"

	// NamespaceModule is the namespace for whole-module (require-module)
	// dependencies.
	NamespaceModule Namespace = "module"
)

// PackageAttr and VersionAttr are the mandatory property keys on a
// package-namespace Capability.
const (
	PackageAttr = "package"
	VersionAttr = "version"
)

// Version is a capability's exported version, an ordered
// major.minor.micro triple with an optional qualifier, as required by §3.
type Version struct {
	sv *semver.Version
}

// ParseVersion parses a version string of the form major.minor.micro or
// major.minor.micro-qualifier. An empty string parses as version 0.0.0.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		s = "0.0.0"
	}
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid version %q", s)
	}
	return Version{sv: sv}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version as major.minor.micro[-qualifier].
func (v Version) String() string {
	if v.sv == nil {
		return "0.0.0"
	}
	return v.sv.String()
}

// Compare returns <0, 0, or >0 if v is less than, equal to, or greater
// than other.
func (v Version) Compare(other Version) int {
	if v.sv == nil && other.sv == nil {
		return 0
	}
	if v.sv == nil {
		return -1
	}
	if other.sv == nil {
		return 1
	}
	return v.sv.Compare(other.sv)
}

// CompareTo implements filter.Comparable so version-valued properties can
// participate in (version>=x) / (version<=x) filter terms.
func (v Version) CompareTo(other string) (int, error) {
	ov, err := ParseVersion(other)
	if err != nil {
		return 0, err
	}
	return v.Compare(ov), nil
}

// Capability is an abstract offer made by a module: "I export package p
// v1.2 with uses {q,r}", or "I provide module lib".
type Capability struct {
	// Namespace is package or module.
	Namespace Namespace

	// Properties is the attribute bag describing this capability. For a
	// package capability, PackageAttr and VersionAttr are mandatory keys.
	Properties map[string]any

	// Uses is the ordered sequence of package names this capability's
	// class space depends on and wishes to constrain.
	Uses []string
}

// PackageName returns the "package" property for a package-namespace
// capability, or "" if not set / not applicable.
func (c *Capability) PackageName() string {
	if c.Namespace != NamespacePackage {
		return ""
	}
	if v, ok := c.Properties[PackageAttr].(string); ok {
		return v
	}
	return ""
}

// Version returns the "version" property, defaulting to 0.0.0 if absent.
func (c *Capability) Version() Version {
	switch v := c.Properties[VersionAttr].(type) {
	case Version:
		return v
	case string:
		if pv, err := ParseVersion(v); err == nil {
			return pv
		}
	}
	return Version{}
}

// ModuleName returns the "module" property for a module-namespace
// capability, or "" if not set.
func (c *Capability) ModuleName() string {
	if c.Namespace != NamespaceModule {
		return ""
	}
	if v, ok := c.Properties["module"].(string); ok {
		return v
	}
	return ""
}

// Attrs copies Properties into filter.Attrs so a Requirement's Filter can
// be evaluated against this capability. The namespace is not included;
// Requirement.Matches compares it separately.
func (c *Capability) Attrs() filter.Attrs {
	attrs := make(filter.Attrs, len(c.Properties))
	for k, v := range c.Properties {
		attrs[k] = v
	}
	return attrs
}

// Requirement is an abstract demand expressed as a filter over capability
// properties.
type Requirement struct {
	// Namespace is package or module.
	Namespace Namespace

	// Filter is the boolean expression a satisfying Capability's
	// properties must match.
	Filter *filter.Filter

	// Optional tolerates resolution failure for this requirement.
	Optional bool

	// Dynamic means a wire may be added lazily after resolution,
	// triggered by a class-load miss rather than by the resolver.
	Dynamic bool

	// raw is the filter's source text, kept for diagnostics.
	raw string
}

// NewRequirement parses filterExpr and returns a Requirement. namespace
// should be NamespacePackage or NamespaceModule.
func NewRequirement(namespace Namespace, filterExpr string, optional, dynamic bool) (*Requirement, error) {
	f, err := filter.Parse(filterExpr)
	if err != nil {
		return nil, err
	}
	return &Requirement{
		Namespace: namespace,
		Filter:    f,
		Optional:  optional,
		Dynamic:   dynamic,
		raw:       filterExpr,
	}, nil
}

// Matches reports whether cap satisfies this requirement: the namespaces
// must agree and the filter must match the capability's properties.
func (r *Requirement) Matches(cap *Capability) bool {
	if cap.Namespace != r.Namespace {
		return false
	}
	return r.Filter.Match(cap.Attrs())
}

// String returns a human-readable rendering of the requirement, used in
// diagnostics and resolve errors.
func (r *Requirement) String() string {
	kind := string(r.Namespace)
	flags := []string{}
	if r.Optional {
		flags = append(flags, "optional")
	}
	if r.Dynamic {
		flags = append(flags, "dynamic")
	}
	if len(flags) == 0 {
		return fmt.Sprintf("%s requirement %s", kind, r.raw)
	}
	return fmt.Sprintf("%s requirement %s (%s)", kind, r.raw, strings.Join(flags, ", "))
}

// FilterString returns the requirement's filter source text, used by
// dynamic-import to conjoin a concrete package name onto a pattern
// requirement's filter (§4.5).
func (r *Requirement) FilterString() string {
	return r.raw
}

// PackageName extracts the package name a package-namespace requirement is
// looking for, by inspecting its filter for a "(package=NAME)" or
// "(package=PREFIX.*)" term. Returns "" if the requirement is not a
// package requirement or no such term is present (e.g. a wildcard-only
// dynamic requirement uses Pattern instead; see DynamicRequirement).
func (r *Requirement) PackageName() string {
	if r.Namespace != NamespacePackage {
		return ""
	}
	return extractEqualityTerm(r.raw, "package")
}

// extractEqualityTerm is a small best-effort scan for "(attr=value)"
// inside a filter string, used only for diagnostics and dynamic-pattern
// derivation — not for actual matching, which always goes through
// filter.Filter.Match.
func extractEqualityTerm(expr, attr string) string {
	needle := "(" + attr + "="
	idx := strings.Index(expr, needle)
	if idx < 0 {
		return ""
	}
	rest := expr[idx+len(needle):]
	end := strings.IndexByte(rest, ')')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// DynamicRequirement is a dynamic-import pattern declared by a module,
// matched against a package name at class-load time (§4.5).
type DynamicRequirement struct {
	// Pattern is "*", an exact package name, or a wildcard prefix "p.*".
	Pattern string

	// Requirement is the underlying requirement (its filter is conjoined
	// with "(package=pkg)" at match time).
	Requirement *Requirement
}

// Matches reports whether pkg is covered by this dynamic requirement's
// pattern, per §4.5: "*" matches anything, an exact pattern matches
// exactly, and a wildcard prefix "p.*" matches "p" or anything starting
// with "p.".
func (d *DynamicRequirement) Matches(pkg string) bool {
	p := d.Pattern
	switch {
	case p == "*":
		return true
	case p == pkg:
		return true
	case strings.HasSuffix(p, ".*"):
		prefix := strings.TrimSuffix(p, "*")
		return pkg == strings.TrimSuffix(prefix, ".") || strings.HasPrefix(pkg, prefix)
	default:
		return false
	}
}

// NativeLibrary describes a native library a module bundles, used by
// findLibrary (§6).
type NativeLibrary struct {
	Name      string
	Path      string
	OSName    string
	Processor string
}

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

// Description: The search policy (§4.4): given (module, name), walks boot
// delegation -> static imports -> local content -> dynamic import to
// locate a class or resource, lazily triggering resolution and dynamic
// import as needed.
package search

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/internal/resolve"
	"go.modspace.dev/modspace/pkg/slogext"
)

// wireCacheKey identifies one (module, package) static-wire lookup.
// Caching is safe without invalidation because a module's static wires
// are only ever appended to (by dynamic import), never replaced or
// removed, so a cached hit remains valid for the module's lifetime.
type wireCacheKey struct {
	ModuleID int64
	Package  string
}

// HostLoader is the ambient class-loader delegation to the host
// runtime's built-in loader for boot-delegated packages (§1 Out of
// scope), and the fallback path for host-path callers (§4.4 step 7).
type HostLoader interface {
	LoadClass(name string) (registry.ClassRef, bool, error)
	LoadResource(name string) (string, bool, error)
	LoadResources(name string) ([]string, bool, error)
}

// CallerKind distinguishes a caller running inside one of this runtime's
// own module content loaders from a host-path caller. The teacher's
// runtime has no call-stack inspection API available to Go in the way
// the original stack-walking shim implies, so per §9 Design Notes this is
// an explicit argument instead of a reflective lookup.
type CallerKind int

const (
	// CallerModule is a call originating from one of this runtime's own
	// module content loaders.
	CallerModule CallerKind = iota

	// CallerHost is a call originating outside this runtime's module
	// graph, conceding visibility of host classes on lookup failure.
	CallerHost
)

// Policy implements findClass/findResource/findResources/findLibrary.
type Policy struct {
	Registry *registry.Registry
	Resolver *resolve.Resolver
	Boot     *BootDelegation
	Host     HostLoader
	Log      slogext.Logger

	// wireCache memoizes which static wire satisfies a (module, package)
	// lookup, read far more often than it's written, so it uses
	// xsync.Map's lock-free reads rather than the registry's factory lock.
	wireCache *xsync.Map[wireCacheKey, *registry.Wire]
}

// New constructs a Policy. boot may be nil, meaning no configured
// prefixes beyond the implicit "java.*".
func New(reg *registry.Registry, resolver *resolve.Resolver, boot *BootDelegation, host HostLoader, log slogext.Logger) *Policy {
	if boot == nil {
		boot = NewBootDelegation(nil)
	}
	if log == nil {
		log = slogext.NewTestLogger()
	}
	return &Policy{Registry: reg, Resolver: resolver, Boot: boot, Host: host, Log: log, wireCache: xsync.NewMap[wireCacheKey, *registry.Wire]()}
}

// classPackage returns the package portion of a dotted class name, "" for
// the default package.
func classPackage(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// FindClass resolves module if needed, then locates name via boot
// delegation, static imports, local content, or dynamic import, in that
// order (§4.4).
func (p *Policy) FindClass(m *registry.Module, name string, caller CallerKind) (registry.ClassRef, error) {
	if !m.Resolved() {
		if err := p.Resolver.Resolve(m); err != nil {
			return registry.ClassRef{}, &ClassNotFoundError{Name: name, Cause: err}
		}
	}

	pkg := classPackage(name)

	if p.Boot.Matches(pkg) {
		ref, found, err := p.Host.LoadClass(name)
		if err != nil {
			return registry.ClassRef{}, err
		}
		if found {
			return ref, nil
		}
		return registry.ClassRef{}, &ClassNotFoundError{Name: name, Diagnosis: "boot-delegated package not found on host class path"}
	}

	if ref, ok := p.lookupClassInWires(m, pkg, name); ok {
		return ref, nil
	}

	if ref, found, err := m.Content.GetClass(name); err == nil && found {
		return ref, nil
	} else if err != nil {
		return registry.ClassRef{}, err
	}

	if wire := p.Resolver.AttemptDynamicImport(m, pkg); wire != nil {
		if ref, ok := p.lookupClassInWire(wire, name); ok {
			p.wireCache.Store(wireCacheKey{ModuleID: m.ModuleID, Package: pkg}, wire)
			return ref, nil
		}
	}

	if caller == CallerHost {
		if ref, found, err := p.Host.LoadClass(name); err == nil && found {
			return ref, nil
		}
	}

	return registry.ClassRef{}, &ClassNotFoundError{Name: name, Diagnosis: p.diagnose(m, pkg, name)}
}

// lookupClassInWires walks m's static wires in order, returning the
// first successful lookup (§4.4 step 4), consulting wireCache first so
// a repeated lookup for the same package skips the scan entirely.
func (p *Policy) lookupClassInWires(m *registry.Module, pkg, name string) (registry.ClassRef, bool) {
	key := wireCacheKey{ModuleID: m.ModuleID, Package: pkg}
	if w, ok := p.wireCache.Load(key); ok {
		return p.lookupClassInWire(w, name)
	}

	for _, w := range m.Wires() {
		if !wireCoversPackage(w, pkg) {
			continue
		}
		if ref, ok := p.lookupClassInWire(w, name); ok {
			p.wireCache.Store(key, w)
			return ref, true
		}
	}
	return registry.ClassRef{}, false
}

// lookupClassInWire resolves name through a single wire: a package wire
// queries its exporter's content loader directly; a module wire queries
// the content loader of pkg's first flattened source, which walks the
// exporter's own required-module transitive exports per §4.4's "a wire
// encapsulates walking the exporter's own class space" note.
func (p *Policy) lookupClassInWire(w *registry.Wire, name string) (registry.ClassRef, bool) {
	switch w.Kind {
	case registry.WireKindPackage:
		ref, found, err := w.Exporter.Content.GetClass(name)
		return ref, err == nil && found
	case registry.WireKindModule:
		pkg := classPackage(name)
		sources, ok := w.FlattenedPackages[pkg]
		if !ok || sources.Len() == 0 {
			return registry.ClassRef{}, false
		}
		src := sources.Items()[0]
		ref, found, err := src.Module.Content.GetClass(name)
		return ref, err == nil && found
	}
	return registry.ClassRef{}, false
}

// FindResource behaves like FindClass but for a single resource: if
// resolution fails, it falls through directly to local content only
// (§4.4 step 1).
func (p *Policy) FindResource(m *registry.Module, name string) (string, error) {
	if !m.Resolved() {
		if err := p.Resolver.Resolve(m); err != nil {
			url, found, cerr := m.Content.GetResource(name)
			if cerr == nil && found {
				return url, nil
			}
			return "", &ResourceNotFoundError{Name: name, Cause: err}
		}
	}

	pkg := classPackage(strings.ReplaceAll(name, "/", "."))

	if p.Boot.Matches(pkg) {
		url, found, err := p.Host.LoadResource(name)
		if err != nil {
			return "", err
		}
		if found {
			return url, nil
		}
		return "", &ResourceNotFoundError{Name: name}
	}

	for _, w := range m.Wires() {
		if !wireCoversPackage(w, pkg) {
			continue
		}
		if url, ok := p.lookupResourceInWire(w, name); ok {
			return url, nil
		}
	}

	if url, found, err := m.Content.GetResource(name); err == nil && found {
		return url, nil
	} else if err != nil {
		return "", err
	}

	if wire := p.Resolver.AttemptDynamicImport(m, pkg); wire != nil {
		if url, ok := p.lookupResourceInWire(wire, name); ok {
			return url, nil
		}
	}

	return "", &ResourceNotFoundError{Name: name}
}

func (p *Policy) lookupResourceInWire(w *registry.Wire, name string) (string, bool) {
	switch w.Kind {
	case registry.WireKindPackage:
		url, found, err := w.Exporter.Content.GetResource(name)
		return url, err == nil && found
	case registry.WireKindModule:
		pkg := classPackage(strings.ReplaceAll(name, "/", "."))
		sources, ok := w.FlattenedPackages[pkg]
		if !ok || sources.Len() == 0 {
			return "", false
		}
		src := sources.Items()[0]
		url, found, err := src.Module.Content.GetResource(name)
		return url, err == nil && found
	}
	return "", false
}

// FindResources is the multi-valued form: the same search order is used,
// but the first wire to return a non-empty enumeration wins outright (no
// merging across wires — single-source assumption, §4.4).
func (p *Policy) FindResources(m *registry.Module, name string) ([]string, error) {
	if !m.Resolved() {
		if err := p.Resolver.Resolve(m); err != nil {
			urls, found, cerr := m.Content.GetResources(name)
			if cerr == nil && found && len(urls) > 0 {
				return urls, nil
			}
			return nil, &ResourceNotFoundError{Name: name, Cause: err}
		}
	}

	pkg := classPackage(strings.ReplaceAll(name, "/", "."))

	if p.Boot.Matches(pkg) {
		urls, found, err := p.Host.LoadResources(name)
		if err != nil {
			return nil, err
		}
		if found && len(urls) > 0 {
			return urls, nil
		}
		return nil, &ResourceNotFoundError{Name: name}
	}

	for _, w := range m.Wires() {
		if !wireCoversPackage(w, pkg) {
			continue
		}
		if urls, ok := p.lookupResourcesInWire(w, name); ok {
			return urls, nil
		}
	}

	if urls, found, err := m.Content.GetResources(name); err == nil && found && len(urls) > 0 {
		return urls, nil
	} else if err != nil {
		return nil, err
	}

	if wire := p.Resolver.AttemptDynamicImport(m, pkg); wire != nil {
		if urls, ok := p.lookupResourcesInWire(wire, name); ok {
			return urls, nil
		}
	}

	return nil, &ResourceNotFoundError{Name: name}
}

func (p *Policy) lookupResourcesInWire(w *registry.Wire, name string) ([]string, bool) {
	switch w.Kind {
	case registry.WireKindPackage:
		urls, found, err := w.Exporter.Content.GetResources(name)
		return urls, err == nil && found && len(urls) > 0
	case registry.WireKindModule:
		pkg := classPackage(strings.ReplaceAll(name, "/", "."))
		sources, ok := w.FlattenedPackages[pkg]
		if !ok || sources.Len() == 0 {
			return nil, false
		}
		src := sources.Items()[0]
		urls, found, err := src.Module.Content.GetResources(name)
		return urls, err == nil && found && len(urls) > 0
	}
	return nil, false
}

// FindLibrary returns the filesystem path of m's native library libName,
// or "" if m declares none by that name.
func (p *Policy) FindLibrary(m *registry.Module, libName string) (string, bool) {
	for _, lib := range m.Definition.NativeLibraries {
		if lib.Name == libName {
			return lib.Path, true
		}
	}
	return "", false
}

// PackageAttributes is the "sealed attributes tuple" definePackage
// returns (§6): whether pkg is sealed, and by which module, derived from
// the exporting capability's properties.
type PackageAttributes struct {
	Sealed       bool
	SourceModule *registry.Module
}

// DefinePackage inspects m's resolved view of pkg and reports its sealing
// attributes, sourced from the exporting module's capability properties.
func (p *Policy) DefinePackage(m *registry.Module, pkg string) PackageAttributes {
	for _, w := range m.Wires() {
		if !wireCoversPackage(w, pkg) {
			continue
		}
		switch w.Kind {
		case registry.WireKindPackage:
			sealed, _ := w.Capability.Properties["sealed"].(bool)
			return PackageAttributes{Sealed: sealed, SourceModule: w.Exporter}
		case registry.WireKindModule:
			sources := w.FlattenedPackages[pkg]
			if sources.Len() == 0 {
				continue
			}
			src := sources.Items()[0]
			sealed, _ := src.Capability.Properties["sealed"].(bool)
			return PackageAttributes{Sealed: sealed, SourceModule: src.Module}
		}
	}
	return PackageAttributes{}
}

// AddResolverListener registers l with the underlying registry.
func (p *Policy) AddResolverListener(l registry.Listener) { p.Registry.AddListener(l) }

// RemoveResolverListener deregisters l.
func (p *Policy) RemoveResolverListener(l registry.Listener) { p.Registry.RemoveListener(l) }

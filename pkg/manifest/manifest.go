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

// Description: ModuleDefinition manifest loading (SPEC_FULL.md §10.2):
// the out-of-scope collaborator that turns a YAML file on disk into the
// registry.Definition the resolver consumes. Grounded on the teacher's
// pkg/configuration.LoadTemplateRepositoryManifest/
// LoadDefaultTemplateRepositoryManifest (os.Open + yaml.v3 decode, with a
// well-known default filename), generalized from a template-repository
// manifest to a module capability/requirement manifest. Capability
// property schemas are validated with santhosh-tekuri/jsonschema/v6,
// which the teacher's invopop/jsonschema-generated schemas are checked
// against elsewhere in the pack.
package manifest

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/capability"
)

// DefaultFilenames are searched, in order, by LoadDefault.
var DefaultFilenames = []string{"module.yaml", "module.yml"}

// Manifest is the on-disk YAML representation of a registry.Definition.
//
//	name: com.example.util
//	capabilities:
//	  - namespace: package
//	    properties:
//	      package: com.example.util
//	      version: 1.2.0
//	    uses: [com.example.base]
//	requirements:
//	  - namespace: package
//	    filter: "(&(package=com.example.base)(version>=1.0.0))"
//	dynamicRequirements:
//	  - pattern: "com.example.plugins.*"
//	    filter: "(package=com.example.plugins.*)"
//	nativeLibraries:
//	  - name: fastmath
//	    path: lib/libfastmath.so
//	    os: linux
//	    processor: amd64
type Manifest struct {
	Name                string              `yaml:"name"`
	Capabilities        []CapabilitySpec    `yaml:"capabilities,omitempty"`
	Requirements        []RequirementSpec   `yaml:"requirements,omitempty"`
	DynamicRequirements []DynamicReqSpec    `yaml:"dynamicRequirements,omitempty"`
	NativeLibraries     []NativeLibrarySpec `yaml:"nativeLibraries,omitempty"`
}

// CapabilitySpec is one manifest-declared capability.
type CapabilitySpec struct {
	Namespace      string         `yaml:"namespace"`
	Properties     map[string]any `yaml:"properties"`
	Uses           []string       `yaml:"uses,omitempty"`
	PropertySchema map[string]any `yaml:"propertySchema,omitempty"`
}

// RequirementSpec is one manifest-declared requirement.
type RequirementSpec struct {
	Namespace string `yaml:"namespace"`
	Filter    string `yaml:"filter"`
	Optional  bool   `yaml:"optional,omitempty"`
	Dynamic   bool   `yaml:"dynamic,omitempty"`
}

// DynamicReqSpec is one manifest-declared dynamic-import pattern.
type DynamicReqSpec struct {
	Pattern string `yaml:"pattern"`
	Filter  string `yaml:"filter"`
}

// NativeLibrarySpec is one manifest-declared native library.
type NativeLibrarySpec struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	OS        string `yaml:"os,omitempty"`
	Processor string `yaml:"processor,omitempty"`
}

// Load reads and validates a Manifest from path, then converts it into a
// registry.Definition.
func Load(path string) (*registry.Definition, error) {
	//nolint:gosec // Why: caller-supplied manifest path, not web input.
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open manifest %q", path)
	}
	defer f.Close()

	var m Manifest
	if err := yaml.NewDecoder(f).Decode(&m); err != nil {
		return nil, errors.Wrapf(err, "decode manifest %q", path)
	}

	return m.toDefinition()
}

// LoadDefault searches DefaultFilenames in the current directory and
// loads the first one found.
func LoadDefault() (*registry.Definition, error) {
	for _, name := range DefaultFilenames {
		if _, err := os.Stat(name); err == nil {
			return Load(name)
		}
	}
	return nil, fmt.Errorf("no module manifest found (searched %v)", DefaultFilenames)
}

// toDefinition converts the YAML shape into the resolver's value types,
// validating each capability's properties against its propertySchema (if
// any) and each filter expression via pkg/filter's parser.
func (m *Manifest) toDefinition() (*registry.Definition, error) {
	def := &registry.Definition{Name: m.Name}

	for i, cs := range m.Capabilities {
		if len(cs.PropertySchema) > 0 {
			if err := validateProperties(cs.PropertySchema, cs.Properties); err != nil {
				return nil, errors.Wrapf(err, "capability %d of %q", i, m.Name)
			}
		}
		cap := &capability.Capability{
			Namespace:  capability.Namespace(cs.Namespace),
			Properties: convertProperties(cs.Properties),
			Uses:       cs.Uses,
		}
		def.Capabilities = append(def.Capabilities, cap)
	}

	for i, rs := range m.Requirements {
		req, err := capability.NewRequirement(capability.Namespace(rs.Namespace), rs.Filter, rs.Optional, rs.Dynamic)
		if err != nil {
			return nil, errors.Wrapf(err, "requirement %d of %q", i, m.Name)
		}
		def.Requirements = append(def.Requirements, req)
	}

	for i, ds := range m.DynamicRequirements {
		req, err := capability.NewRequirement(capability.NamespacePackage, ds.Filter, false, true)
		if err != nil {
			return nil, errors.Wrapf(err, "dynamic requirement %d of %q", i, m.Name)
		}
		def.DynamicRequirements = append(def.DynamicRequirements, &capability.DynamicRequirement{
			Pattern: ds.Pattern, Requirement: req,
		})
	}

	for _, ns := range m.NativeLibraries {
		def.NativeLibraries = append(def.NativeLibraries, &capability.NativeLibrary{
			Name: ns.Name, Path: ns.Path, OSName: ns.OS, Processor: ns.Processor,
		})
	}

	return def, nil
}

// convertProperties turns a "version" string property into a parsed
// capability.Version so filter comparisons (version>=x) work without the
// caller having to know the wire representation.
func convertProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == capability.VersionAttr {
			if s, ok := v.(string); ok {
				if parsed, err := capability.ParseVersion(s); err == nil {
					out[k] = parsed
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}

// validateProperties compiles schema as an inline JSON Schema and
// validates props against it.
func validateProperties(schema map[string]any, props map[string]any) error {
	compiler := jsonschema.NewCompiler()
	const resourceName = "propertySchema.json"
	if err := compiler.AddResource(resourceName, schema); err != nil {
		return errors.Wrap(err, "compile propertySchema")
	}
	sch, err := compiler.Compile(resourceName)
	if err != nil {
		return errors.Wrap(err, "compile propertySchema")
	}
	if err := sch.Validate(props); err != nil {
		return errors.Wrap(err, "propertySchema validation")
	}
	return nil
}

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

package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.modspace.dev/modspace/pkg/capability"
)

func TestVersionOrdering(t *testing.T) {
	v1 := capability.MustParseVersion("1.0.0")
	v2 := capability.MustParseVersion("1.1.0")
	assert.Negative(t, v1.Compare(v2))
	assert.Positive(t, v2.Compare(v1))
	assert.Zero(t, v1.Compare(capability.MustParseVersion("1.0.0")))
}

func TestRequirementMatchesVersionRange(t *testing.T) {
	req, err := capability.NewRequirement(capability.NamespacePackage,
		"(&(package=com.example.util)(version>=1.0.0))", false, false)
	require.NoError(t, err)

	cap := &capability.Capability{
		Namespace: capability.NamespacePackage,
		Properties: map[string]any{
			"package": "com.example.util",
			"version": capability.MustParseVersion("1.2.0"),
		},
	}
	assert.True(t, req.Matches(cap))

	cap.Properties["version"] = capability.MustParseVersion("0.9.0")
	assert.False(t, req.Matches(cap))
}

func TestRequirementNamespaceMismatch(t *testing.T) {
	req, err := capability.NewRequirement(capability.NamespaceModule, "(module=lib)", false, false)
	require.NoError(t, err)

	cap := &capability.Capability{
		Namespace:  capability.NamespacePackage,
		Properties: map[string]any{"package": "p"},
	}
	assert.False(t, req.Matches(cap))
}

func TestDynamicRequirementMatches(t *testing.T) {
	req, err := capability.NewRequirement(capability.NamespacePackage, "(package=p.plugins.*)", false, true)
	require.NoError(t, err)
	d := &capability.DynamicRequirement{Pattern: "p.plugins.*", Requirement: req}

	assert.True(t, d.Matches("p.plugins"))
	assert.True(t, d.Matches("p.plugins.foo"))
	assert.False(t, d.Matches("p.other"))

	star := &capability.DynamicRequirement{Pattern: "*"}
	assert.True(t, star.Matches("anything.at.all"))
}

func TestPackageNameExtraction(t *testing.T) {
	req, err := capability.NewRequirement(capability.NamespacePackage, "(&(package=com.example.base)(version>=1.0.0))", false, false)
	require.NoError(t, err)
	assert.Equal(t, "com.example.base", req.PackageName())
}

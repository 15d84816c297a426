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

package hostloader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/hostloader"
)

func TestInProcessLoadClass(t *testing.T) {
	h := hostloader.NewInProcess()
	h.Classes["java.util.List"] = registry.ClassRef{Name: "java.util.List"}

	ref, found, err := h.LoadClass("java.util.List")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "java.util.List", ref.Name)

	_, found, err = h.LoadClass("java.util.Missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInProcessLoadResources(t *testing.T) {
	h := hostloader.NewInProcess()
	h.Resources["META-INF/services/x"] = []string{"jar:a!/x", "jar:b!/x"}

	urls, found, err := h.LoadResources("META-INF/services/x")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"jar:a!/x", "jar:b!/x"}, urls)

	url, found, err := h.LoadResource("META-INF/services/x")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "jar:a!/x", url)
}

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

package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.modspace.dev/modspace/pkg/filter"
)

func TestParseAndMatch(t *testing.T) {
	cases := []struct {
		name   string
		expr   string
		attrs  filter.Attrs
		expect bool
	}{
		{"simple equal", "(package=com.example.util)", filter.Attrs{"package": "com.example.util"}, true},
		{"simple mismatch", "(package=com.example.util)", filter.Attrs{"package": "com.example.other"}, false},
		{"present", "(package=*)", filter.Attrs{"package": "anything"}, true},
		{"present missing", "(package=*)", filter.Attrs{}, false},
		{"and", "(&(package=p)(version>=1))", filter.Attrs{"package": "p", "version": "1"}, true},
		{"and short circuit", "(&(package=p)(package=q))", filter.Attrs{"package": "p"}, false},
		{"or", "(|(package=p)(package=q))", filter.Attrs{"package": "q"}, true},
		{"not", "(!(package=p))", filter.Attrs{"package": "q"}, true},
		{"wildcard prefix", "(package=com.example.*)", filter.Attrs{"package": "com.example.util"}, true},
		{"wildcard no match", "(package=com.example.*)", filter.Attrs{"package": "org.other.util"}, false},
		{"nested", "(&(package=p)(|(env=dev)(env=stage)))", filter.Attrs{"package": "p", "env": "stage"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := filter.Parse(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.expect, f.Match(tc.attrs))
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{"", "(", "package=p)", "(&)", "(package)"} {
		_, err := filter.Parse(expr)
		require.Error(t, err, expr)

		var invalid *filter.InvalidFilterError
		require.ErrorAsf(t, err, &invalid, "expr %q", expr)
		assert.Equal(t, expr, invalid.Filter)
	}
}

func TestNilFilterMatchesEverything(t *testing.T) {
	var f *filter.Filter
	assert.True(t, f.Match(filter.Attrs{"anything": "goes"}))
}

type fakeVersion struct{ major int }

func (v fakeVersion) CompareTo(other string) (int, error) {
	var o int
	if other == "2" {
		o = 2
	} else {
		o = 1
	}
	return v.major - o, nil
}

func TestComparableOperators(t *testing.T) {
	f := filter.MustParse("(version>=2)")
	assert.True(t, f.Match(filter.Attrs{"version": fakeVersion{major: 3}}))
	assert.False(t, f.Match(filter.Attrs{"version": fakeVersion{major: 1}}))

	f = filter.MustParse("(version<=2)")
	assert.True(t, f.Match(filter.Attrs{"version": fakeVersion{major: 1}}))
	assert.False(t, f.Match(filter.Attrs{"version": fakeVersion{major: 3}}))
}

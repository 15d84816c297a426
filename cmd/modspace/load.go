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

package main

import (
	"path/filepath"

	"github.com/pkg/errors"

	"go.modspace.dev/modspace/internal/factory"
	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/manifest"
)

// loadRegistry reads one module manifest per directory in dirs (trying
// each of manifest.DefaultFilenames in turn) through a factory.Disk, and
// returns a populated registry plus the modules in dirs order, ready for
// Resolve.
func loadRegistry(dirs []string) (*registry.Registry, []*registry.Module, error) {
	reg := registry.New(nil)
	modules := make([]*registry.Module, 0, len(dirs))
	fac := &factory.Disk{}

	reg.Lock()
	defer reg.Unlock()

	for i, dir := range dirs {
		manifestPath, err := findManifest(dir)
		if err != nil {
			return nil, nil, err
		}

		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "resolve path %q", dir)
		}

		m, err := fac.NewModule(int64(i+1), manifestPath, "file://"+abs)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "module %q", dir)
		}

		reg.AddModule(m)
		modules = append(modules, m)
	}

	return reg, modules, nil
}

func findManifest(dir string) (string, error) {
	for _, name := range manifest.DefaultFilenames {
		path := filepath.Join(dir, name)
		if _, err := manifest.Load(path); err == nil {
			return path, nil
		}
	}
	return "", errors.Errorf("no module manifest found under %q", dir)
}

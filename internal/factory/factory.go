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

// Package factory provides the one concrete registry.ModuleFactory this
// repository ships: manifests read via pkg/manifest, content loaded via
// pkg/content. It lives outside internal/registry (and outside either of
// those two packages) purely to avoid an import cycle, since both already
// depend on internal/registry for Definition/ContentLoader/ClassRef.
package factory

import (
	"context"

	"github.com/pkg/errors"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/content"
	"go.modspace.dev/modspace/pkg/manifest"
)

// Disk is the registry.ModuleFactory backing cmd/modspace: manifestPath is
// a YAML file readable by pkg/manifest.Load, and contentURI is anything
// pkg/content.Fetch accepts (a "file://" path or a git remote).
type Disk struct {
	// CacheDir roots git-cloned content; ignored for "file://" URIs.
	CacheDir string
}

var _ registry.ModuleFactory = (*Disk)(nil)

// NewModule implements registry.ModuleFactory.
func (d *Disk) NewModule(id int64, manifestPath, contentURI string) (*registry.Module, error) {
	def, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, errors.Wrapf(err, "load manifest %q", manifestPath)
	}

	loader, err := content.Fetch(context.Background(), contentURI, d.CacheDir)
	if err != nil {
		return nil, errors.Wrapf(err, "load content %q", contentURI)
	}

	return &registry.Module{
		BundleID:   id,
		ModuleID:   id,
		Definition: def,
		Content:    loader,
	}, nil
}

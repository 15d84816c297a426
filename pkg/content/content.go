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

// Description: Content loading (SPEC_FULL.md §10.3): a registry.
// ContentLoader backed by a module's own on-disk content, fetched over
// git when the module lives at a remote URI. Grounded on the teacher's
// internal/modules.Module.GetFS (git-urls to parse the URI, a billy
// filesystem as the uniform content surface, a local "file://" fast
// path) and nativeext.Host's lockedfile-guarded cache directory, but
// clones directly through go-git/go-git rather than the teacher's
// jaredallard/vcs/git.Clone wrapper (dropped per DESIGN.md — no
// component needs its archive-mode shallow-clone optimization, and
// go-git/go-git is already wired for this loader).
package content

import (
	"context"
	"os"
	"path"
	"strings"

	giturls "github.com/chainguard-dev/git-urls"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"go.modspace.dev/modspace/internal/registry"
)

// Loader is a registry.ContentLoader backed by a billy.Filesystem rooted
// at a module's own content.
type Loader struct {
	fs billy.Filesystem
}

// NewFromFS wraps an already-open filesystem, used directly by tests and
// by callers that manage their own checkout (e.g. an in-process memfs).
func NewFromFS(fs billy.Filesystem) *Loader {
	return &Loader{fs: fs}
}

// Fetch materializes uri's content under cacheDir and returns a Loader
// over it. A "file://" URI is used as-is (already on disk); anything
// else is cloned with go-git. cacheDir is guarded with a lock file so
// concurrent fetches of the same module don't race each other's clone,
// mirroring nativeext.Host's cache-directory locking.
func Fetch(ctx context.Context, uri, cacheDir string) (*Loader, error) {
	u, err := giturls.Parse(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "parse module uri %q", uri)
	}

	if u.Scheme == "file" {
		return &Loader{fs: osfs.New(strings.TrimPrefix(uri, "file://"))}, nil
	}

	unlock, err := lockedfile.MutexAt(cacheDir + ".lock").Lock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock cache dir for %q", uri)
	}
	defer unlock()

	if _, err := os.Stat(path.Join(cacheDir, ".git")); err == nil {
		return &Loader{fs: osfs.New(cacheDir)}, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache dir for %q", uri)
	}

	if _, err := gogit.PlainCloneContext(ctx, cacheDir, false, &gogit.CloneOptions{
		URL:   uri,
		Depth: 1,
	}); err != nil {
		return nil, errors.Wrapf(err, "clone module %q", uri)
	}

	return &Loader{fs: osfs.New(cacheDir)}, nil
}

// classPath converts a dotted class name to its content path, e.g.
// "com.example.Thing" -> "com/example/Thing.class".
func classPath(name string) string {
	return strings.ReplaceAll(name, ".", "/") + ".class"
}

// GetClass implements registry.ContentLoader.
func (l *Loader) GetClass(name string) (registry.ClassRef, bool, error) {
	f, err := l.fs.Open(classPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return registry.ClassRef{}, false, nil
		}
		return registry.ClassRef{}, false, errors.Wrapf(err, "open class %q", name)
	}
	defer f.Close()
	return registry.ClassRef{Name: name}, true, nil
}

// GetResource implements registry.ContentLoader.
func (l *Loader) GetResource(name string) (string, bool, error) {
	if _, err := l.fs.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrapf(err, "stat resource %q", name)
	}
	return "module://" + path.Join(l.fs.Root(), name), true, nil
}

// GetResources implements registry.ContentLoader. The billy abstraction
// doesn't expose classpath-style layered search, so this returns at most
// the single local match, consistent with a module's content loader
// never delegating to any other module.
func (l *Loader) GetResources(name string) ([]string, bool, error) {
	url, found, err := l.GetResource(name)
	if err != nil || !found {
		return nil, found, err
	}
	return []string{url}, true, nil
}

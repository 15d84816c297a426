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

package hostloader

import "go.modspace.dev/modspace/internal/registry"

// InProcess is a host loader backed directly by an in-memory set of
// names, for embedding a runtime with no external plugin binary and for
// tests — mirroring nativeext.Host.RegisterInprocExtension's "skip the
// subprocess" escape hatch.
type InProcess struct {
	Classes   map[string]registry.ClassRef
	Resources map[string][]string
}

// NewInProcess constructs an empty InProcess host loader.
func NewInProcess() *InProcess {
	return &InProcess{
		Classes:   make(map[string]registry.ClassRef),
		Resources: make(map[string][]string),
	}
}

func (h *InProcess) LoadClass(name string) (registry.ClassRef, bool, error) {
	ref, ok := h.Classes[name]
	return ref, ok, nil
}

func (h *InProcess) LoadResource(name string) (string, bool, error) {
	urls, ok := h.Resources[name]
	if !ok || len(urls) == 0 {
		return "", false, nil
	}
	return urls[0], true, nil
}

func (h *InProcess) LoadResources(name string) ([]string, bool, error) {
	urls, ok := h.Resources[name]
	return urls, ok && len(urls) > 0, nil
}

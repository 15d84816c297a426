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

// Description: The host class loader (§1 Out of scope boundary, §4.4 step
// 7 / boot delegation): the runtime outside the module graph that boot
// delegation and host-path callers fall back to. Grounded on the
// teacher's internal/modules/nativeext.Host, generalized from "spawn a
// template-function plugin and call it" to "spawn a host-loader plugin
// and ask it to resolve a class/resource name" over the same
// hashicorp/go-plugin net/rpc transport. Plugin start-up is serialized by
// a lockedfile mutex; no binary is cached.
package hostloader

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"go.modspace.dev/modspace/internal/registry"
	"go.modspace.dev/modspace/pkg/slogext"
)

// Host manages the lifecycle of a single external host-loader plugin
// process. Connect holds a lock file while it starts the plugin, so
// concurrent start attempts don't race each other; the binary path is not
// cached.
type Host struct {
	mu  *lockedfile.Mutex
	log slogext.Logger
}

// NewHost constructs a Host whose start-up lock file lives under cacheDir.
func NewHost(cacheDir string, log slogext.Logger) *Host {
	if log == nil {
		log = slogext.NewTestLogger()
	}
	return &Host{
		mu:  &lockedfile.Mutex{Path: filepath.Join(cacheDir, "hostloader.lock")},
		log: log,
	}
}

// Connect starts binPath as a host-loader plugin and returns a
// search.HostLoader backed by it, plus a closer to terminate the
// subprocess.
func (h *Host) Connect(ctx context.Context, binPath string) (*Client, func(), error) {
	if unlock, err := h.mu.Lock(); err != nil {
		h.log.WithError(err).Warn("failed to lock host-loader cache")
	} else {
		defer unlock()
	}

	if _, err := os.Stat(binPath); err != nil {
		return nil, func() {}, errors.Wrapf(err, "host-loader binary %q", binPath)
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		Logger: hclog.New(&hclog.LoggerOptions{
			Level: hclog.Trace,
			Output: &hclogWriter{fn: func(args ...any) {
				h.log.Debug(fmt.Sprint(args...))
			}},
			DisableTime: true,
		}),
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			PluginName: &LoaderPlugin{},
		},
		Cmd: exec.CommandContext(ctx, binPath),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, func() {}, errors.Wrap(err, "connect to host-loader")
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, func() {}, errors.Wrap(err, "dispense host-loader")
	}

	impl, ok := raw.(Implementation)
	if !ok {
		client.Kill()
		return nil, func() {}, fmt.Errorf("unexpected host-loader implementation type %T", raw)
	}

	return &Client{impl: impl}, client.Kill, nil
}

// Client adapts an Implementation to search.HostLoader.
type Client struct {
	impl Implementation
}

func (c *Client) LoadClass(name string) (registry.ClassRef, bool, error) {
	return c.impl.LoadClass(name)
}

func (c *Client) LoadResource(name string) (string, bool, error) {
	return c.impl.LoadResource(name)
}

func (c *Client) LoadResources(name string) ([]string, bool, error) {
	return c.impl.LoadResources(name)
}

// hclogWriter is the io.Writer hclog writes to; it forwards each write to
// a slogext.Logger Debug call, mirroring nativeext's equivalent shim.
type hclogWriter struct {
	fn func(args ...any)
}

func (w *hclogWriter) Write(p []byte) (int, error) {
	w.fn(string(p))
	return len(p), nil
}

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

// Description: The net/rpc wire format for the host-loader plugin,
// grounded directly on the teacher's apiv1 rpc/rpc_transport_client/
// rpc_transport_server trio, generalized from template-function dispatch
// to class/resource name lookups.
package hostloader

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"

	"go.modspace.dev/modspace/internal/registry"
)

// PluginName is the go-plugin dispense key for the host-loader service.
const PluginName = "hostloader"

// HandshakeConfig is the magic-cookie handshake every host-loader plugin
// binary must answer to be accepted.
var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MODSPACE_HOSTLOADER",
	MagicCookieValue: "on",
}

// Implementation is what a host-loader plugin provides, on either side of
// the wire.
type Implementation interface {
	LoadClass(name string) (registry.ClassRef, bool, error)
	LoadResource(name string) (string, bool, error)
	LoadResources(name string) ([]string, bool, error)
}

// LoaderPlugin is the go-plugin Plugin that stores and dispenses both
// sides of Implementation over net/rpc.
type LoaderPlugin struct {
	Impl Implementation
}

func (p *LoaderPlugin) Server(*plugin.MuxBroker) (any, error) {
	return &rpcServer{p.Impl}, nil
}

func (p *LoaderPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (any, error) {
	return &rpcClient{c}, nil
}

// nameArgs is the argument type shared by every net/rpc call;
// loadClassReply and the types below are the per-call replies.
type nameArgs struct{ Name string }

type loadClassReply struct {
	Ref   registry.ClassRef
	Found bool
}

type loadResourceReply struct {
	URL   string
	Found bool
}

type loadResourcesReply struct {
	URLs  []string
	Found bool
}

// rpcClient implements Implementation over an *rpc.Client.
type rpcClient struct{ client *rpc.Client }

func (c *rpcClient) LoadClass(name string) (registry.ClassRef, bool, error) {
	var reply loadClassReply
	err := c.client.Call("Plugin.LoadClass", &nameArgs{name}, &reply)
	return reply.Ref, reply.Found, err
}

func (c *rpcClient) LoadResource(name string) (string, bool, error) {
	var reply loadResourceReply
	err := c.client.Call("Plugin.LoadResource", &nameArgs{name}, &reply)
	return reply.URL, reply.Found, err
}

func (c *rpcClient) LoadResources(name string) ([]string, bool, error) {
	var reply loadResourcesReply
	err := c.client.Call("Plugin.LoadResources", &nameArgs{name}, &reply)
	return reply.URLs, reply.Found, err
}

// rpcServer implements the net/rpc server side, dispatching to impl.
type rpcServer struct{ impl Implementation }

func (s *rpcServer) LoadClass(args *nameArgs, reply *loadClassReply) error {
	ref, found, err := s.impl.LoadClass(args.Name)
	reply.Ref, reply.Found = ref, found
	return err
}

func (s *rpcServer) LoadResource(args *nameArgs, reply *loadResourceReply) error {
	url, found, err := s.impl.LoadResource(args.Name)
	reply.URL, reply.Found = url, found
	return err
}

func (s *rpcServer) LoadResources(args *nameArgs, reply *loadResourcesReply) error {
	urls, found, err := s.impl.LoadResources(args.Name)
	reply.URLs, reply.Found = urls, found
	return err
}

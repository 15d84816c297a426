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
	"context"

	"github.com/urfave/cli/v3"

	"go.modspace.dev/modspace/internal/version"
	"go.modspace.dev/modspace/pkg/slogext"
)

// NewApp builds the root CLI command.
func NewApp(log slogext.Logger) *cli.Command {
	return &cli.Command{
		Version:     version.Version,
		Name:        "modspace",
		Usage:       "resolve and inspect a module class-space graph",
		Description: "modspace loads module manifests from disk and runs the capability resolver against them",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(_ context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(slogext.DebugLevel)
			}
			return nil, nil
		},
		Commands: []*cli.Command{
			newResolveCmd(log),
			newExplainCmd(log),
		},
	}
}

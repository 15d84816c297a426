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
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"go.modspace.dev/modspace/internal/candidate"
	"go.modspace.dev/modspace/internal/resolve"
	"go.modspace.dev/modspace/pkg/slogext"
)

func newResolveCmd(log slogext.Logger) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "resolve every module found under the given directories and print the resulting wires",
		ArgsUsage: "<module-dir>...",
		Action: func(_ context.Context, cmd *cli.Command) error {
			dirs := cmd.Args().Slice()
			if len(dirs) == 0 {
				return errors.New("at least one module directory is required")
			}

			reg, modules, err := loadRegistry(dirs)
			if err != nil {
				return errors.Wrap(err, "load modules")
			}

			sel := candidate.New(reg, nil, log)
			resolver := resolve.New(reg, sel, log)

			for _, m := range modules {
				if err := resolver.Resolve(m); err != nil {
					fmt.Printf("%s: FAILED: %v\n", m.Definition.Name, err)
					continue
				}
				fmt.Printf("%s: resolved\n", m.Definition.Name)
				for _, w := range m.Wires() {
					fmt.Printf("  -> %s (%s)\n", w.Exporter.Definition.Name, w.Kind)
				}
			}

			return nil
		},
	}
}

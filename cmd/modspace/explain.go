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
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"go.modspace.dev/modspace/internal/candidate"
	"go.modspace.dev/modspace/internal/resolve"
	"go.modspace.dev/modspace/internal/search"
	"go.modspace.dev/modspace/pkg/hostloader"
	"go.modspace.dev/modspace/pkg/slogext"
)

func newExplainCmd(log slogext.Logger) *cli.Command {
	return &cli.Command{
		Name:      "explain",
		Usage:     "explain why a named class would or wouldn't be found from one of the given modules",
		ArgsUsage: "<module-index> <class-name> <module-dir>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "boot-prefix",
				Usage: "comma-separated list of boot-delegated package prefixes, in addition to java.*",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 3 {
				return errors.New("usage: explain <module-index> <class-name> <module-dir>...")
			}
			idxArg, className, dirs := args[0], args[1], args[2:]

			reg, modules, err := loadRegistry(dirs)
			if err != nil {
				return errors.Wrap(err, "load modules")
			}

			var idx int
			if _, err := fmt.Sscanf(idxArg, "%d", &idx); err != nil || idx < 0 || idx >= len(modules) {
				return errors.Errorf("module-index must be between 0 and %d", len(modules)-1)
			}
			target := modules[idx]

			sel := candidate.New(reg, nil, log)
			resolver := resolve.New(reg, sel, log)
			var prefixes []string
			for _, p := range strings.Split(cmd.String("boot-prefix"), ",") {
				if p = strings.TrimSpace(p); p != "" {
					prefixes = append(prefixes, p)
				}
			}
			policy := search.New(reg, resolver, search.NewBootDelegation(prefixes), hostloader.NewInProcess(), log)

			ref, err := policy.FindClass(target, className, search.CallerModule)
			if err != nil {
				fmt.Printf("%s not found from %s:\n  %v\n", className, target.Definition.Name, err)
				return nil
			}
			fmt.Printf("%s found from %s (module %d)\n", className, target.Definition.Name, ref.Module)
			return nil
		},
	}
}

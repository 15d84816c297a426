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

// Package main contains the implementation for the modspace CLI: a
// developer-facing driver for the resolver in internal/resolve, loading
// module manifests off disk and reporting how they wire together.
package main

import (
	"context"
	"os"

	"go.modspace.dev/modspace/pkg/slogext"
)

// entrypoint is separated from main to let defers run before main exits
// on error.
func entrypoint(log slogext.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := NewApp(log)
	return app.Run(ctx, os.Args)
}

// main calls entrypoint, logs errors, and exits non-zero on failure.
// Logic should live in entrypoint.
func main() {
	log := slogext.New()

	if err := entrypoint(log); err != nil {
		log.WithError(err).Error("failed to run")
		os.Exit(1)
	}
}

// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/otaswap/cmd/otaswap/opts"
	"github.com/walteh/otaswap/pkg/config"
	"gitlab.com/tozd/go/errors"
)

// newRootOpts creates the shared options with a lazy app builder
func newRootOpts() *opts.RootOpts {
	return &opts.RootOpts{
		Build: buildApp,
	}
}

func buildApp(ctx context.Context, o *opts.RootOpts) (*opts.App, error) {
	cfg, err := config.Load(ctx, config.LoadOptions{Path: o.ConfigFile})
	if err != nil {
		return nil, errors.Errorf("loading config: %w", err)
	}

	app, err := opts.NewApp(ctx, cfg, opts.AppOptions{Console: o.Console})
	if err != nil {
		return nil, errors.Errorf("creating app: %w", err)
	}
	return app, nil
}

// addRootFlags adds shared flags to the root command
func addRootFlags(cmd *cobra.Command, o *opts.RootOpts) {
	cmd.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", os.Getenv("OTASWAP_CONFIG"), "config file path (.yaml, .hcl or .json)")
	cmd.PersistentFlags().BoolVarP(&o.Debug, "debug", "d", false, "enable debug logging")
}

// setupLogging builds the console logger
func setupLogging(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

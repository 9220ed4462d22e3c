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
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/otaswap/cmd/otaswap/commands"
	"github.com/walteh/otaswap/pkg/log"

	// transports register themselves
	_ "github.com/walteh/otaswap/pkg/transport/git"
	_ "github.com/walteh/otaswap/pkg/transport/github"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootOpts := newRootOpts()

	rootCmd := &cobra.Command{
		Use:   "otaswap",
		Short: "Keep an app's executable bundle current from a git release branch",
		Long: `otaswap fetches the bundle for the configured platform from a release
branch, installs it under a unique path when its content changed, clears
the caches that would keep the old code alive and offers a restart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := setupLogging(rootOpts.Debug)
			rootOpts.Console = log.New(os.Stdout, logger)
			cmd.SetContext(logger.WithContext(cmd.Context()))
		},
	}

	addRootFlags(rootCmd, rootOpts)

	rootCmd.AddCommand(
		commands.NewCheckCmd(rootOpts),
		commands.NewClearCmd(rootOpts),
		commands.NewApplyCmd(rootOpts),
		commands.NewStatusCmd(rootOpts),
		commands.NewWatchCmd(rootOpts),
		commands.NewHistoryCmd(rootOpts),
		commands.NewVersionCmd(),
	)

	err := rootCmd.ExecuteContext(ctx)
	if cerr := rootOpts.Close(); cerr != nil {
		zerolog.Ctx(ctx).Warn().Err(cerr).Msg("closing app")
	}
	if err != nil {
		if rootOpts.Console != nil {
			rootOpts.Console.Error(err.Error())
		} else {
			os.Stderr.WriteString(err.Error() + "\n")
		}
		os.Exit(1)
	}
}

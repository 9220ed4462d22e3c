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

package commands

import (
	"github.com/spf13/cobra"
	"github.com/walteh/otaswap/cmd/otaswap/opts"
	"github.com/walteh/otaswap/pkg/fingerprint"
	"gitlab.com/tozd/go/errors"
)

// NewApplyCmd creates the restart command
func NewApplyCmd(root *opts.RootOpts) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Restart the app into the installed bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := root.App(ctx)
			if err != nil {
				return err
			}

			rec := app.Orchestrator.Current(ctx)
			if rec == nil {
				app.Console.Warning("no bundle installed, nothing to apply")
				return nil
			}

			if !yes {
				ok, err := app.Console.ConfirmRestart(ctx, resultFor(rec.Fingerprint))
				if err != nil {
					return errors.Errorf("asking for confirmation: %w", err)
				}
				if !ok {
					app.Console.Info("restart cancelled")
					return nil
				}
			}

			if err := app.Orchestrator.Restart(ctx); err != nil {
				return err
			}
			app.Console.Successf("restarted into bundle %s", fingerprint.Short(rec.Fingerprint))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "restart without asking")

	return cmd
}

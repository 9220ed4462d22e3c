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
	"github.com/walteh/otaswap/pkg/operation"
)

// NewStatusCmd creates the status command
func NewStatusCmd(root *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, the installed bundle and pending restarts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := root.App(ctx)
			if err != nil {
				return err
			}

			cfg := app.Config
			status := app.Scheduler.Status()
			c := app.Console

			c.Header("status")
			c.Field("environment", cfg.Environment)
			c.Field("enabled", status.Enabled)
			c.Field("platform", cfg.Platform)
			c.Field("repository", cfg.RepoURL)
			c.Field("branch", cfg.BranchForPlatform())
			c.Field("transport", cfg.Transport)
			c.Field("interval", status.Interval)
			c.Field("on foreground", cfg.CheckOnForeground)
			c.Field("auto restart", cfg.AutoRestart)
			c.Field("state dir", cfg.StateDir)

			rec := app.Orchestrator.Current(ctx)
			if rec == nil {
				c.Field("installed", "")
				return nil
			}
			c.Field("installed", fingerprint.Short(rec.Fingerprint))
			c.Field("installed at", rec.InstalledAt)

			pending, err := app.Orchestrator.Pending(ctx)
			if err != nil {
				c.Warningf("could not read loader version: %v", err)
				return nil
			}
			c.Field("restart pending", pending)
			return nil
		},
	}

	return cmd
}

// resultFor describes an installed fingerprint for the restart prompt.
func resultFor(fp string) *operation.Result {
	return &operation.Result{Outcome: operation.OutcomeInstalled, Fingerprint: fp, RestartAvailable: true}
}

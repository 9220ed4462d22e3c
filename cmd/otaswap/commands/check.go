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
	"github.com/walteh/otaswap/pkg/operation"
	"gitlab.com/tozd/go/errors"
)

// NewCheckCmd creates the manual check command
func NewCheckCmd(root *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check for a new bundle and install it",
		Long: `Check runs one interactive update check. It always runs, ignoring the
automatic check throttle, reports the outcome and offers a restart after a
new bundle was installed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := root.App(ctx)
			if err != nil {
				return err
			}

			app.Console.Header("checking for updates")
			res := app.Scheduler.Manual(ctx)
			return resultError(res)
		},
	}

	return cmd
}

// resultError turns failed outcomes into a non-zero exit.
func resultError(res *operation.Result) error {
	switch res.Outcome {
	case operation.OutcomeTransportFailed, operation.OutcomeInstallFailed:
		return errors.Errorf("update check %s", res.Outcome)
	default:
		return nil
	}
}

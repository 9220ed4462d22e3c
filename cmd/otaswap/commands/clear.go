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
	"gitlab.com/tozd/go/errors"
)

// NewClearCmd creates the clear cache command
func NewClearCmd(root *opts.RootOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the installed bundle and the local transport folder",
		Long: `Clear deletes the installed bundle record and the local transport
folder. The next check treats whatever the branch holds as a new bundle.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := root.App(ctx)
			if err != nil {
				return err
			}

			if err := app.Orchestrator.ClearCache(ctx); err != nil {
				return errors.Errorf("clearing cache: %w", err)
			}

			app.Console.Success("update cache cleared")
			return nil
		},
	}

	return cmd
}

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
	"time"

	"github.com/spf13/cobra"
	"github.com/walteh/otaswap/cmd/otaswap/opts"
	"github.com/walteh/otaswap/pkg/fingerprint"
	"gitlab.com/tozd/go/errors"
)

// NewHistoryCmd creates the run history command
func NewHistoryCmd(root *opts.RootOpts) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent update checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := root.App(ctx)
			if err != nil {
				return err
			}
			if app.History == nil {
				return errors.New("history is not available")
			}

			entries, err := app.History.Recent(ctx, limit)
			if err != nil {
				return errors.Errorf("reading history: %w", err)
			}
			if len(entries) == 0 {
				app.Console.Info("no update checks recorded yet")
				return nil
			}

			app.Console.Header("recent update checks")
			for _, e := range entries {
				line := e.Outcome + " " + e.Trigger + "/" + e.Mode + " " + e.Duration.Round(time.Millisecond).String()
				if e.Fingerprint != "" {
					line += " " + fingerprint.Short(e.Fingerprint)
				}
				if e.Message != "" {
					line += " (" + e.Message + ")"
				}
				app.Console.Field(e.StartedAt.Local().Format(time.DateTime), line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")

	return cmd
}

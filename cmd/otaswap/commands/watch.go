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
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/otaswap/cmd/otaswap/opts"
	"github.com/walteh/otaswap/pkg/lifecycle"
	"github.com/walteh/otaswap/pkg/metrics"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// NewWatchCmd creates the daemon command
func NewWatchCmd(root *opts.RootOpts) *cobra.Command {
	var (
		lifecycleFile string
		metricsAddr   string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the scheduler until interrupted",
		Long: `Watch runs the startup check, then keeps checking on the configured
interval while the app is in the foreground. The app reports lifecycle
transitions by writing active, inactive or background to the lifecycle
file. Metrics are served on /metrics when an address is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx)

			app, err := root.App(ctx)
			if err != nil {
				return err
			}

			if lifecycleFile == "" {
				lifecycleFile = filepath.Join(app.Config.StateDir, "lifecycle")
			}
			if metricsAddr == "" {
				metricsAddr = app.Config.MetricsAddr
			}

			sched := app.Scheduler
			sched.Start(ctx)

			if pending, err := app.Orchestrator.Pending(ctx); err != nil {
				logger.Warn().Err(err).Msg("checking for pending restart")
			} else if pending {
				logger.Info().Msg("an installed bundle is waiting for a restart")
			}

			watcher, err := lifecycle.NewWatcher(lifecycleFile, func(ctx context.Context, s lifecycle.State) {
				// a shutdown must not cut a foreground check short
				sched.SetLifecycle(context.WithoutCancel(ctx), s)
			})
			if err != nil {
				sched.Stop()
				return errors.Errorf("creating lifecycle watcher: %w", err)
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return watcher.Start(gctx)
			})

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				srv := &http.Server{
					Addr:         metricsAddr,
					Handler:      mux,
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 5 * time.Second,
					IdleTimeout:  60 * time.Second,
				}

				g.Go(func() error {
					logger.Info().Str("addr", metricsAddr).Msg("serving metrics")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return errors.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			g.Go(func() error {
				<-gctx.Done()
				logger.Info().Msg("stopping scheduler")
				sched.Stop()
				return watcher.Stop()
			})

			app.Console.Infof("watching for updates (%s)", app.Config.String())
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&lifecycleFile, "lifecycle-file", "", "file the app writes its lifecycle state to (default <state dir>/lifecycle)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on")

	return cmd
}

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

package opts

import (
	"context"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/config"
	"github.com/walteh/otaswap/pkg/history"
	"github.com/walteh/otaswap/pkg/invalidate"
	"github.com/walteh/otaswap/pkg/loader"
	"github.com/walteh/otaswap/pkg/log"
	"github.com/walteh/otaswap/pkg/metrics"
	"github.com/walteh/otaswap/pkg/operation"
	"github.com/walteh/otaswap/pkg/scheduler"
	"github.com/walteh/otaswap/pkg/store"
	"github.com/walteh/otaswap/pkg/transport"
	"gitlab.com/tozd/go/errors"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "otaswap"

// AppOptions are the process-level collaborators for NewApp.
type AppOptions struct {
	Console *log.Console
	// Registerer receives the engine metrics, nil for the default registry
	Registerer prometheus.Registerer
	// DisableHistory skips opening the history database
	DisableHistory bool
}

// 🏭 NewApp wires every engine component for cfg.
func NewApp(ctx context.Context, cfg *config.Config, opts AppOptions) (*App, error) {
	logger := zerolog.Ctx(ctx)

	tr, err := transport.New(ctx, cfg.Transport, transport.Options{Token: cfg.Token})
	if err != nil {
		return nil, errors.Errorf("creating transport: %w", err)
	}

	prom := metrics.NewProm(MetricsNamespace, opts.Registerer)

	inv := invalidate.New(Steps(cfg),
		invalidate.WithSettleDelay(cfg.SettleDelay()),
		invalidate.WithWarningHook(prom.IncInvalidationWarning),
	)

	app := &App{
		Config:  cfg,
		Console: opts.Console,
		Metrics: prom,
	}

	if !opts.DisableHistory {
		app.History, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, errors.Errorf("opening history: %w", err)
		}
	}

	state := scheduler.NewState(scheduler.WithLockFile(cfg.LockPath()))

	orchOpts := operation.Options{
		Config:      cfg,
		Transport:   tr,
		Loader:      loader.NewFileLoader(cfg.StateDir, loader.WithRestartCommand(cfg.RestartCommand)),
		Store:       store.New(cfg.RecordPath()),
		Invalidator: inv,
		Metrics:     prom,
		Gate:        state,
	}
	if app.History != nil {
		orchOpts.History = app.History
	}
	if opts.Console != nil {
		orchOpts.Prompter = opts.Console
		orchOpts.OnProgress = opts.Console.Progress
	}

	app.Orchestrator, err = operation.New(orchOpts)
	if err != nil {
		app.Close()
		return nil, errors.Errorf("creating orchestrator: %w", err)
	}

	app.Scheduler = scheduler.New(app.Orchestrator, scheduler.PolicyFromConfig(cfg), scheduler.WithState(state))

	logger.Debug().
		Str("config", cfg.String()).
		Strs("invalidation_steps", inv.Steps()).
		Msg("update engine ready")

	return app, nil
}

// 🧹 Steps builds the cache invalidation steps configured for cfg.
func Steps(cfg *config.Config) []invalidate.Step {
	inv := cfg.Invalidation
	if inv == nil {
		inv = &config.Invalidation{}
	}

	steps := []invalidate.Step{
		invalidate.PrefixStep{Path: cfg.PrefixFilePath()},
	}

	for _, dir := range inv.CacheDirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cfg.StateDir, dir)
		}
		steps = append(steps, invalidate.DirStep{Label: "cache-dir:" + filepath.Base(dir), Dir: dir})
	}

	if len(inv.BytecodeGlobs) > 0 {
		// the checkout and installed copies are owned by the transport and pruning
		steps = append(steps, invalidate.GlobStep{
			Label:    "bytecode",
			Root:     cfg.StateDir,
			Patterns: inv.BytecodeGlobs,
			Exclude:  []string{cfg.LocalFolder(), cfg.BundlesDir()},
		})
	}

	keep := config.DefaultKeepBundles
	if inv.Keep != nil {
		keep = *inv.Keep
	}
	steps = append(steps, invalidate.PruneStep{Keep: keep})

	return steps
}

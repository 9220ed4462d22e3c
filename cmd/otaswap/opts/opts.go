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
	"sync"

	"github.com/walteh/otaswap/pkg/config"
	"github.com/walteh/otaswap/pkg/history"
	"github.com/walteh/otaswap/pkg/log"
	"github.com/walteh/otaswap/pkg/metrics"
	"github.com/walteh/otaswap/pkg/operation"
	"github.com/walteh/otaswap/pkg/scheduler"
	"gitlab.com/tozd/go/errors"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	ConfigFile string
	Debug      bool
	Console    *log.Console

	// Build creates the app the first time a command needs it
	Build func(ctx context.Context, o *RootOpts) (*App, error)

	once sync.Once
	app  *App
	err  error
}

// App loads configuration and wires the engine once per process.
func (o *RootOpts) App(ctx context.Context) (*App, error) {
	o.once.Do(func() {
		if o.Build == nil {
			o.err = errors.New("no app builder configured")
			return
		}
		o.app, o.err = o.Build(ctx, o)
	})
	return o.app, o.err
}

// Close releases the app if it was built.
func (o *RootOpts) Close() error {
	if o.app == nil {
		return nil
	}
	return o.app.Close()
}

// 🧩 App is the wired update engine.
type App struct {
	Config       *config.Config
	Console      *log.Console
	Orchestrator *operation.Orchestrator
	Scheduler    *scheduler.Scheduler
	History      *history.Store
	Metrics      metrics.Metrics
}

// Close releases the history database.
func (a *App) Close() error {
	if a.History == nil {
		return nil
	}
	return a.History.Close()
}

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

package operation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/walteh/otaswap/pkg/config"
	"github.com/walteh/otaswap/pkg/history"
	"github.com/walteh/otaswap/pkg/invalidate"
	"github.com/walteh/otaswap/pkg/loader"
	"github.com/walteh/otaswap/pkg/metrics"
	"github.com/walteh/otaswap/pkg/store"
	"github.com/walteh/otaswap/pkg/transport"
	"gitlab.com/tozd/go/errors"
)

// ErrBusy is returned by operations refused while a check is in flight.
var ErrBusy = errors.Base("an update check is in progress")

// 🏁 Outcome is the terminal result of one run.
type Outcome int

const (
	OutcomeUpToDate Outcome = iota
	OutcomeInstalled
	OutcomeTransportFailed
	OutcomeInstallFailed
	OutcomeSkippedPolicy
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpToDate:
		return "upToDate"
	case OutcomeInstalled:
		return "installed"
	case OutcomeTransportFailed:
		return "transportFailed"
	case OutcomeInstallFailed:
		return "installFailed"
	case OutcomeSkippedPolicy:
		return "skippedPolicy"
	default:
		return "unknown"
	}
}

// Phase is a state of the orchestration state machine.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhasePolicyGate   Phase = "policyGate"
	PhaseTransporting Phase = "transporting"
	PhaseComparing    Phase = "comparing"
	PhaseInstalling   Phase = "installing"
	PhaseInvalidating Phase = "invalidating"
	PhaseReporting    Phase = "reporting"
)

// Mode decides whether a run may interrupt the user.
type Mode int

const (
	ModeSilent Mode = iota
	ModeInteractive
)

func (m Mode) String() string {
	if m == ModeInteractive {
		return "interactive"
	}
	return "silent"
}

// Trigger is what asked for a run.
type Trigger string

const (
	TriggerStartup    Trigger = "startup"
	TriggerForeground Trigger = "foreground"
	TriggerInterval   Trigger = "interval"
	TriggerManual     Trigger = "manual"
)

// 📥 Request asks the orchestrator for one run.
type Request struct {
	Mode    Mode
	Trigger Trigger
}

// 📊 Result is the ephemeral outcome of one run.
type Result struct {
	RunID   string
	Outcome Outcome
	// Fingerprint is set when a bundle was installed or found up to date
	Fingerprint string
	Message     string
	// BundlePath is the installed copy handed to the loader
	BundlePath string
	Kind       transport.Kind
	Revision   string
	Trace      []Phase
	// RestartAvailable is set after an install that has not been restarted into
	RestartAvailable bool
	Restarted        bool
	Warnings         []invalidate.Warning
	StartedAt        time.Time
	Duration         time.Duration
}

// 🚦 Gate is the single-flight guard. TryBegin never blocks.
type Gate interface {
	TryBegin() bool
	End()
}

// Prompter surfaces interactive results to the user.
type Prompter interface {
	Report(ctx context.Context, res *Result)
	ConfirmRestart(ctx context.Context, res *Result) (bool, error)
}

// Store persists the installed bundle identity.
type Store interface {
	ReadCurrent(ctx context.Context) *store.BundleRecord
	WriteCurrent(ctx context.Context, fingerprint string, platform store.Platform) (*store.BundleRecord, error)
	Clear(ctx context.Context) error
}

// Invalidator clears caches for a freshly installed bundle.
type Invalidator interface {
	Invalidate(ctx context.Context, target invalidate.Target) invalidate.Report
	Reset()
}

// History records finished runs.
type History interface {
	Record(ctx context.Context, e history.Entry) error
}

// 🔧 Options wires the orchestrator.
type Options struct {
	Config      *config.Config
	Transport   transport.Transport
	Loader      loader.Loader
	Store       Store
	Invalidator Invalidator
	// optional
	Metrics    metrics.Metrics
	History    History
	Prompter   Prompter
	Gate       Gate
	Clock      func() time.Time
	OnProgress func(transport.Progress)
}

// 🎮 Orchestrator drives update runs.
type Orchestrator struct {
	cfg         *config.Config
	transport   transport.Transport
	loader      loader.Loader
	store       Store
	invalidator Invalidator
	metrics     metrics.Metrics
	history     History
	prompter    Prompter
	gate        Gate
	now         func() time.Time
	onProgress  func(transport.Progress)

	mu          sync.Mutex
	fingerprint string
	lastToken   int64
	last        *Result
}

// 🏭 New creates an orchestrator with the given options
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, errors.Errorf("config is required")
	}
	if opts.Transport == nil {
		return nil, errors.Errorf("transport is required")
	}
	if opts.Loader == nil {
		return nil, errors.Errorf("loader is required")
	}
	if opts.Store == nil {
		return nil, errors.Errorf("store is required")
	}
	if opts.Invalidator == nil {
		return nil, errors.Errorf("invalidator is required")
	}

	o := &Orchestrator{
		cfg:         opts.Config,
		transport:   opts.Transport,
		loader:      opts.Loader,
		store:       opts.Store,
		invalidator: opts.Invalidator,
		metrics:     opts.Metrics,
		history:     opts.History,
		prompter:    opts.Prompter,
		gate:        opts.Gate,
		now:         opts.Clock,
		onProgress:  opts.OnProgress,
	}
	if o.metrics == nil {
		o.metrics = metrics.Noop{}
	}
	if o.gate == nil {
		o.gate = &flightGate{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Gate returns the single-flight guard in use.
func (o *Orchestrator) Gate() Gate {
	return o.gate
}

// LastResult returns the most recent finished run, nil before the first.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Fingerprint returns the in-memory fingerprint of the last installed or
// confirmed bundle. It is empty after ClearCache.
func (o *Orchestrator) Fingerprint() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fingerprint
}

// flightGate is the guard used when no scheduler supplies one.
type flightGate struct {
	busy atomic.Bool
}

func (g *flightGate) TryBegin() bool { return g.busy.CompareAndSwap(false, true) }
func (g *flightGate) End()           { g.busy.Store(false) }

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

package invalidate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrUnsupported is returned by a step whose hook does not exist on the
// current runtime. It is logged at debug level and never counted as a warning.
var ErrUnsupported = errors.Base("invalidation hook unsupported")

// 🎯 Target describes the freshly installed bundle caches are cleared for.
type Target struct {
	// BundlePath is the exact, uniquely named path handed to the loader
	BundlePath string
	// Token is the uniqueness token embedded in BundlePath
	Token string
	// Fingerprint is the content digest of the bundle
	Fingerprint string
}

// 🧹 Step is one independent, individually failable invalidation hook.
// Steps must be safe to run more than once for the same target.
type Step interface {
	Name() string
	Invalidate(ctx context.Context, target Target) error
}

// Warning is a step failure that did not stop invalidation.
type Warning struct {
	Step string
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Step, w.Err)
}

// 📊 Report summarises one invalidation pass.
type Report struct {
	Ran         []string
	Unsupported []string
	Warnings    []Warning
	// Repeat is set when the target was already invalidated and nothing ran
	Repeat bool
}

// WarningHook is told about every step warning, for metrics.
type WarningHook func(step string)

// 🔧 Invalidator runs every step in order, tolerating failures.
type Invalidator struct {
	steps  []Step
	settle time.Duration
	onWarn WarningHook

	mu   sync.Mutex
	last Target
	done bool
}

// Option configures an Invalidator.
type Option func(*Invalidator)

// WithSettleDelay waits d after the steps ran, before Invalidate returns.
func WithSettleDelay(d time.Duration) Option {
	return func(i *Invalidator) { i.settle = d }
}

// WithWarningHook registers a callback for step warnings.
func WithWarningHook(h WarningHook) Option {
	return func(i *Invalidator) { i.onWarn = h }
}

// 🏭 New creates an Invalidator over steps.
func New(steps []Step, opts ...Option) *Invalidator {
	i := &Invalidator{steps: steps}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Steps returns the configured step names.
func (i *Invalidator) Steps() []string {
	names := make([]string, 0, len(i.steps))
	for _, s := range i.steps {
		names = append(names, s.Name())
	}
	return names
}

// 🚿 Invalidate runs every step for target and then waits the settle delay.
// A second call for the same target is a no-op.
func (i *Invalidator) Invalidate(ctx context.Context, target Target) Report {
	logger := zerolog.Ctx(ctx)

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.done && i.last == target {
		logger.Debug().Str("token", target.Token).Msg("caches already invalidated for target")
		return Report{Repeat: true}
	}

	var report Report
	for _, step := range i.steps {
		err := runStep(ctx, step, target)
		switch {
		case err == nil:
			report.Ran = append(report.Ran, step.Name())
			logger.Debug().Str("step", step.Name()).Msg("invalidated cache")
		case errors.Is(err, ErrUnsupported):
			report.Unsupported = append(report.Unsupported, step.Name())
			logger.Debug().Str("step", step.Name()).Msg("invalidation hook not available")
		default:
			report.Warnings = append(report.Warnings, Warning{Step: step.Name(), Err: err})
			logger.Warn().Err(err).Str("step", step.Name()).Msg("invalidation step failed")
			if i.onWarn != nil {
				i.onWarn(step.Name())
			}
		}
	}

	i.last = target
	i.done = true

	if i.settle > 0 {
		timer := time.NewTimer(i.settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			logger.Debug().Msg("settle delay cut short by context")
		}
	}

	logger.Info().
		Int("ran", len(report.Ran)).
		Int("unsupported", len(report.Unsupported)).
		Int("warnings", len(report.Warnings)).
		Msg("cache invalidation complete")

	return report
}

// Reset forgets the last target so the next Invalidate runs every step.
func (i *Invalidator) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.last = Target{}
	i.done = false
}

func runStep(ctx context.Context, step Step, target Target) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("step panicked: %v", r)
		}
	}()
	return step.Invalidate(ctx, target)
}

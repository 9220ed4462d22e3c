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

package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/config"
	"github.com/walteh/otaswap/pkg/fsutil"
	"github.com/walteh/otaswap/pkg/lifecycle"
	"github.com/walteh/otaswap/pkg/operation"
)

// 🧭 State is the process-wide scheduler state. It doubles as the
// orchestrator's single-flight gate so the same flag guards every run.
// With a lock file the gate also holds across processes sharing it.
type State struct {
	mu          sync.Mutex
	inProgress  bool
	lastCheckAt time.Time
	timerActive bool
	lifecycle   lifecycle.State

	lockPath string
	held     *fsutil.Lock
}

// StateOption configures a State.
type StateOption func(*State)

// WithLockFile makes every run also hold an exclusive lock on path.
func WithLockFile(path string) StateOption {
	return func(s *State) { s.lockPath = path }
}

// NewState returns state for an app that starts in the foreground.
func NewState(opts ...StateOption) *State {
	s := &State{lifecycle: lifecycle.Active}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryBegin claims the single-flight flag without blocking. A lock file that
// cannot be taken, held elsewhere or not, refuses the run.
func (s *State) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress {
		return false
	}
	if s.lockPath != "" {
		held, err := fsutil.TryLock(s.lockPath)
		if err != nil {
			return false
		}
		s.held = held
	}
	s.inProgress = true
	return true
}

// End releases the single-flight flag and the lock file.
func (s *State) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held != nil {
		_ = s.held.Unlock()
		s.held = nil
	}
	s.inProgress = false
}

func (s *State) lastCheck() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheckAt
}

func (s *State) markChecked(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheckAt = at
}

func (s *State) swapLifecycle(next lifecycle.State) lifecycle.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.lifecycle
	s.lifecycle = next
	return prev
}

// Policy holds the scheduling knobs.
type Policy struct {
	Enabled           bool
	Interval          time.Duration
	CheckOnForeground bool
	// Throttle suppresses automatic checks this soon after the last one
	Throttle time.Duration
}

// PolicyFromConfig derives the policy from configuration.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Enabled:           cfg.Enabled,
		Interval:          cfg.CheckInterval(),
		CheckOnForeground: cfg.CheckOnForeground,
		Throttle:          cfg.CheckThrottle(),
	}
}

// Checker runs one orchestration.
type Checker interface {
	Check(ctx context.Context, req operation.Request) *operation.Result
}

// 📋 Status is a snapshot of the scheduler.
type Status struct {
	Enabled     bool
	Interval    time.Duration
	LastCheckAt time.Time
	InProgress  bool
	Lifecycle   lifecycle.State
	TimerActive bool
}

// ⏰ Scheduler decides when the orchestrator runs.
type Scheduler struct {
	checker Checker
	policy  Policy
	state   *State
	now     func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	base context.Context
	wg   sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithState shares state with the orchestrator's gate.
func WithState(st *State) Option {
	return func(s *Scheduler) { s.state = st }
}

// WithClock overrides the clock used for throttling.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// 🏭 New creates a scheduler driving checker.
func New(checker Checker, policy Policy, opts ...Option) *Scheduler {
	s := &Scheduler{
		checker: checker,
		policy:  policy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.state == nil {
		s.state = NewState()
	}
	return s
}

// State returns the shared scheduler state.
func (s *Scheduler) State() *State {
	return s.state
}

// 🚀 Start runs the silent startup check and arms the periodic timer.
func (s *Scheduler) Start(ctx context.Context) *operation.Result {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	res := s.run(ctx, operation.ModeSilent, operation.TriggerStartup)
	s.startTimer()
	return res
}

// 👆 Manual runs an interactive check. It is never throttled.
func (s *Scheduler) Manual(ctx context.Context) *operation.Result {
	return s.run(ctx, operation.ModeInteractive, operation.TriggerManual)
}

// 📱 SetLifecycle applies an app lifecycle transition. Leaving the
// foreground cancels future timer runs without touching one in flight;
// returning to it checks when the policy allows and re-arms the timer.
func (s *Scheduler) SetLifecycle(ctx context.Context, next lifecycle.State) *operation.Result {
	logger := zerolog.Ctx(ctx)

	prev := s.state.swapLifecycle(next)
	if prev == next {
		return nil
	}
	logger.Debug().Str("from", string(prev)).Str("to", string(next)).Msg("lifecycle transition")

	if !next.Foreground() {
		s.stopTimer()
		return nil
	}

	var res *operation.Result
	if s.policy.CheckOnForeground {
		res = s.automatic(ctx, operation.TriggerForeground)
	}
	s.startTimer()
	return res
}

// Stop disarms the timer and waits for a timer run in flight.
func (s *Scheduler) Stop() {
	s.stopTimer()
	s.wg.Wait()
}

// Status snapshots the scheduler.
func (s *Scheduler) Status() Status {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return Status{
		Enabled:     s.policy.Enabled,
		Interval:    s.policy.Interval,
		LastCheckAt: s.state.lastCheckAt,
		InProgress:  s.state.inProgress,
		Lifecycle:   s.state.lifecycle,
		TimerActive: s.state.timerActive,
	}
}

func (s *Scheduler) automatic(ctx context.Context, trigger operation.Trigger) *operation.Result {
	if s.policy.Throttle > 0 {
		last := s.state.lastCheck()
		if !last.IsZero() && s.now().Sub(last) < s.policy.Throttle {
			zerolog.Ctx(ctx).Debug().
				Str("trigger", string(trigger)).
				Time("last_check", last).
				Msg("automatic check throttled")
			return &operation.Result{
				Outcome:   operation.OutcomeSkippedPolicy,
				Message:   "checked recently",
				StartedAt: s.now(),
			}
		}
	}
	return s.run(ctx, operation.ModeSilent, trigger)
}

func (s *Scheduler) run(ctx context.Context, mode operation.Mode, trigger operation.Trigger) *operation.Result {
	res := s.checker.Check(ctx, operation.Request{Mode: mode, Trigger: trigger})
	if res != nil && res.Outcome != operation.OutcomeSkippedPolicy {
		s.state.markChecked(s.now())
	}
	return res
}

func (s *Scheduler) startTimer() {
	if !s.policy.Enabled || s.policy.Interval <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil || s.base == nil {
		return
	}
	if err := s.base.Err(); err != nil {
		return
	}

	stop := make(chan struct{})
	s.stop = stop
	s.setTimerActive(true)

	// runs survive shutdown so an in-flight check still reports
	ctx := context.WithoutCancel(s.base)
	done := s.base.Done()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.policy.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.automatic(ctx, operation.TriggerInterval)
			case <-stop:
				return
			case <-done:
				s.mu.Lock()
				if s.stop == stop {
					s.stop = nil
					s.setTimerActive(false)
				}
				s.mu.Unlock()
				return
			}
		}
	}()
}

func (s *Scheduler) stopTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	s.setTimerActive(false)
}

func (s *Scheduler) setTimerActive(active bool) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	s.state.timerActive = active
}

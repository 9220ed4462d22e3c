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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/fingerprint"
	"github.com/walteh/otaswap/pkg/fsutil"
	"github.com/walteh/otaswap/pkg/history"
	"github.com/walteh/otaswap/pkg/invalidate"
	"github.com/walteh/otaswap/pkg/loader"
	"github.com/walteh/otaswap/pkg/transport"
	"gitlab.com/tozd/go/errors"
)

// run carries one orchestration through its phases.
type run struct {
	req    Request
	res    *Result
	logger zerolog.Logger
}

func (r *run) enter(p Phase) {
	r.res.Trace = append(r.res.Trace, p)
	r.logger.Debug().Str("phase", string(p)).Msg("entering phase")
}

func (r *run) finish(outcome Outcome, format string, args ...any) *Result {
	r.res.Outcome = outcome
	r.res.Message = fmt.Sprintf(format, args...)
	return r.res
}

// 🔄 Check runs one update attempt. It always returns a Result and never
// panics; every failure is reported through the outcome.
func (o *Orchestrator) Check(ctx context.Context, req Request) *Result {
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}

	r := &run{
		req: req,
		res: &Result{RunID: uuid.NewString(), StartedAt: o.now()},
	}
	r.logger = zerolog.Ctx(ctx).With().
		Str("run_id", r.res.RunID).
		Str("trigger", string(req.Trigger)).
		Str("mode", req.Mode.String()).
		Logger()
	ctx = r.logger.WithContext(ctx)

	r.enter(PhaseIdle)
	r.enter(PhasePolicyGate)

	if !o.cfg.Enabled {
		r.finish(OutcomeSkippedPolicy, "updates are disabled by configuration")
	} else if !o.gate.TryBegin() {
		r.finish(OutcomeSkippedPolicy, "an update check is already in progress")
	} else {
		func() {
			defer o.gate.End()
			o.execute(ctx, r)
		}()
	}

	r.enter(PhaseReporting)
	r.res.Duration = o.now().Sub(r.res.StartedAt)
	o.report(ctx, r)
	r.enter(PhaseIdle)

	return r.res
}

// execute runs Transporting through Invalidating while holding the gate.
func (o *Orchestrator) execute(ctx context.Context, r *run) {
	r.enter(PhaseTransporting)
	treq := transport.Request{
		URL:         o.cfg.RepoURL,
		Branch:      o.cfg.BranchForPlatform(),
		LocalFolder: o.cfg.LocalFolder(),
		BundlePath:  o.cfg.BundlePath(),
	}
	tres, err := o.fetch(ctx, treq, r.req.Mode == ModeInteractive)
	if err != nil {
		r.logger.Error().Err(err).Str("branch", treq.Branch).Msg("bundle transport failed")
		r.finish(OutcomeTransportFailed, "fetching bundle: %v", err)
		return
	}
	r.res.Kind = tres.Kind
	r.res.Revision = tres.Revision

	// cloned and pulled results both go through the comparison
	r.enter(PhaseComparing)
	fp, err := fingerprint.OfFile(ctx, tres.BundlePath)
	if err != nil {
		if errors.Is(err, fingerprint.ErrUnreadableBundle) {
			r.logger.Info().Err(err).Msg("no candidate bundle available")
			r.finish(OutcomeUpToDate, "no candidate bundle available")
			return
		}
		r.finish(OutcomeInstallFailed, "fingerprinting bundle: %v", err)
		return
	}
	if current := o.store.ReadCurrent(ctx); current != nil && current.Fingerprint == fp {
		o.setFingerprint(fp)
		r.res.Fingerprint = fp
		r.logger.Info().Str("fingerprint", fingerprint.Short(fp)).Str("kind", string(tres.Kind)).Msg("bundle is up to date")
		r.finish(OutcomeUpToDate, "bundle %s is already installed", fingerprint.Short(fp))
		return
	}

	o.install(ctx, r, tres.BundlePath, fp)
}

// fetch forwards progress only for interactive runs.
func (o *Orchestrator) fetch(ctx context.Context, req transport.Request, interactive bool) (*transport.Result, error) {
	if o.onProgress == nil || !interactive {
		return o.transport.Fetch(ctx, req, nil)
	}

	ch := make(chan transport.Progress, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range ch {
			o.onProgress(p)
		}
	}()

	res, err := o.transport.Fetch(ctx, req, ch)
	close(ch)
	<-done
	return res, err
}

// install covers Installing and Invalidating. A panic anywhere in here
// becomes installFailed.
func (o *Orchestrator) install(ctx context.Context, r *run, candidate, fp string) {
	var installPath string
	var pointed, recorded bool
	var previous string
	restorer, canRestore := o.loader.(loader.Restorer)

	// an unrecorded bundle must not be what the host boots next
	rollback := func() {
		if installPath == "" || recorded {
			return
		}
		if pointed {
			if !canRestore {
				return
			}
			if err := restorer.RestoreBundlePath(ctx, previous); err != nil {
				r.logger.Warn().Err(err).Str("bundle_path", previous).Msg("restoring loader pointer")
				return
			}
		}
		_ = os.Remove(installPath)
		r.res.BundlePath = ""
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().Interface("panic", p).Msg("install panicked")
			rollback()
			r.res.RestartAvailable = false
			r.finish(OutcomeInstallFailed, "install panicked: %v", p)
		}
	}()

	r.enter(PhaseInstalling)
	token := o.nextToken()
	installPath = filepath.Join(o.cfg.BundlesDir(), VersionedName(filepath.Base(o.cfg.BundlePath()), token))

	if err := fsutil.CopyFile(candidate, installPath); err != nil {
		r.logger.Error().Err(err).Msg("copying bundle into place")
		installPath = ""
		r.finish(OutcomeInstallFailed, "copying bundle: %v", err)
		return
	}

	if canRestore {
		var err error
		if previous, err = restorer.BundlePath(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("reading current loader pointer")
			canRestore = false
		}
	}

	ok, err := o.loader.SetupExactBundlePath(ctx, installPath)
	if err != nil || !ok {
		rollback()
		if err == nil {
			err = errors.New("loader refused the bundle path")
		}
		r.logger.Error().Err(err).Str("bundle_path", installPath).Msg("loader rejected bundle")
		r.finish(OutcomeInstallFailed, "loader rejected bundle: %v", err)
		return
	}
	pointed = true
	r.res.BundlePath = installPath

	r.enter(PhaseInvalidating)
	report := o.invalidator.Invalidate(ctx, invalidate.Target{
		BundlePath:  installPath,
		Token:       token,
		Fingerprint: fp,
	})
	r.res.Warnings = report.Warnings

	if _, err := o.store.WriteCurrent(ctx, fp, o.cfg.PlatformName()); err != nil {
		r.logger.Error().Err(err).Msg("recording installed bundle")
		rollback()
		r.finish(OutcomeInstallFailed, "recording installed bundle: %v", err)
		return
	}
	recorded = true
	if err := o.loader.SetCurrentVersion(ctx, fp); err != nil {
		r.logger.Warn().Err(err).Msg("setting loader version")
	}

	o.setFingerprint(fp)
	r.res.Fingerprint = fp
	r.res.RestartAvailable = true

	r.logger.Info().
		Str("fingerprint", fingerprint.Short(fp)).
		Str("bundle_path", installPath).
		Int("warnings", len(report.Warnings)).
		Msg("installed new bundle")
	r.finish(OutcomeInstalled, "installed bundle %s", fingerprint.Short(fp))
}

// nextToken returns a fixed-width, strictly increasing install token.
func (o *Orchestrator) nextToken() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.now().UnixNano()
	if t <= o.lastToken {
		t = o.lastToken + 1
	}
	o.lastToken = t
	return strconv.FormatInt(t, 10)
}

// VersionedName inserts token before the last extension of name, so
// index.android.bundle becomes index.android.<token>.bundle.
func VersionedName(name, token string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == name {
		return name + "." + token
	}
	return strings.TrimSuffix(name, ext) + "." + token + ext
}

func (o *Orchestrator) setFingerprint(fp string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fingerprint = fp
}

// report is the Reporting phase: bookkeeping, then the user-facing side.
func (o *Orchestrator) report(ctx context.Context, r *run) {
	res := r.res
	outcome := res.Outcome.String()

	o.metrics.IncChecks(string(r.req.Trigger), outcome)
	o.metrics.ObserveCheckDuration(outcome, res.Duration.Seconds())

	if o.history != nil {
		err := o.history.Record(ctx, history.Entry{
			ID:          res.RunID,
			Trigger:     string(r.req.Trigger),
			Mode:        r.req.Mode.String(),
			Outcome:     outcome,
			Kind:        string(res.Kind),
			Fingerprint: res.Fingerprint,
			Message:     res.Message,
			StartedAt:   res.StartedAt,
			Duration:    res.Duration,
		})
		if err != nil {
			r.logger.Warn().Err(err).Msg("recording run history")
		}
	}

	event := r.logger.Info()
	if res.Outcome == OutcomeTransportFailed || res.Outcome == OutcomeInstallFailed {
		event = r.logger.Error()
	}
	event.Str("outcome", outcome).Dur("duration", res.Duration).Msg(res.Message)

	interactive := r.req.Mode == ModeInteractive && o.prompter != nil
	if interactive {
		o.prompter.Report(ctx, res)
	}

	o.mu.Lock()
	o.last = res
	o.mu.Unlock()

	if res.Outcome != OutcomeInstalled {
		return
	}

	switch {
	case o.cfg.AutoRestart:
		r.logger.Info().Msg("auto restart enabled, restarting into new bundle")
	case interactive:
		ok, err := o.prompter.ConfirmRestart(ctx, res)
		if err != nil {
			r.logger.Warn().Err(err).Msg("restart confirmation failed")
			return
		}
		if !ok {
			r.logger.Info().Msg("restart postponed by user")
			return
		}
	default:
		r.logger.Info().Msg("new bundle installed, restart available")
		return
	}

	if err := o.Restart(ctx); err != nil {
		r.logger.Error().Err(err).Msg("restarting into new bundle")
		return
	}
	res.Restarted = true
	res.RestartAvailable = false
}

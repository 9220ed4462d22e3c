package operation

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/walteh/otaswap/pkg/config"
	"github.com/walteh/otaswap/pkg/fingerprint"
	"github.com/walteh/otaswap/pkg/history"
	"github.com/walteh/otaswap/pkg/invalidate"
	"github.com/walteh/otaswap/pkg/loader"
	"github.com/walteh/otaswap/pkg/store"
	"github.com/walteh/otaswap/pkg/transport"
	"gitlab.com/tozd/go/errors"
)

// 🔧 MockTransport is a mock implementation of transport.Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Fetch(ctx context.Context, req transport.Request, progress chan<- transport.Progress) (*transport.Result, error) {
	args := m.Called(ctx, req, progress)
	res, _ := args.Get(0).(*transport.Result)
	return res, args.Error(1)
}

// 🔧 MockLoader is a mock implementation of loader.Loader
type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) SetupExactBundlePath(ctx context.Context, path string) (bool, error) {
	args := m.Called(ctx, path)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoader) SetCurrentVersion(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockLoader) GetCurrentVersion(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockLoader) ResetApp(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// 🔧 MockPrompter is a mock implementation of Prompter
type MockPrompter struct {
	mock.Mock
}

func (m *MockPrompter) Report(ctx context.Context, res *Result) {
	m.Called(ctx, res)
}

func (m *MockPrompter) ConfirmRestart(ctx context.Context, res *Result) (bool, error) {
	args := m.Called(ctx, res)
	return args.Bool(0), args.Error(1)
}

type recordingMetrics struct {
	mu       sync.Mutex
	checks   []string
	warnings []string
}

func (r *recordingMetrics) IncChecks(trigger, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks = append(r.checks, trigger+"/"+outcome)
}

func (r *recordingMetrics) ObserveCheckDuration(string, float64) {}

func (r *recordingMetrics) IncInvalidationWarning(step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, step)
}

type harness struct {
	t             *testing.T
	ctx           context.Context
	cfg           *config.Config
	transport     *MockTransport
	loader        *MockLoader
	store         *store.Store
	invalidations atomic.Int32
	metrics       *recordingMetrics
	opts          Options
}

func newHarness(t *testing.T) *harness {
	cfg := &config.Config{
		Enabled:  true,
		RepoURL:  "https://github.com/acme/bundles.git",
		Branch:   "development",
		StateDir: t.TempDir(),
	}
	require.NoError(t, cfg.Validate())

	h := &harness{
		t:         t,
		ctx:       zerolog.New(zerolog.TestWriter{T: t}).WithContext(context.Background()),
		cfg:       cfg,
		transport: &MockTransport{},
		loader:    &MockLoader{},
		store:     store.New(cfg.RecordPath()),
		metrics:   &recordingMetrics{},
	}
	t.Cleanup(func() {
		h.transport.AssertExpectations(t)
		h.loader.AssertExpectations(t)
	})

	counting := invalidate.Func{Label: "count", Fn: func(ctx context.Context, target invalidate.Target) error {
		h.invalidations.Add(1)
		return nil
	}}
	h.opts = Options{
		Config:    cfg,
		Transport: h.transport,
		Loader:    h.loader,
		Store:     h.store,
		Invalidator: invalidate.New(
			[]invalidate.Step{counting, invalidate.PrefixStep{Path: cfg.PrefixFilePath()}},
			invalidate.WithWarningHook(h.metrics.IncInvalidationWarning),
		),
		Metrics: h.metrics,
	}
	return h
}

func (h *harness) orchestrator() *Orchestrator {
	o, err := New(h.opts)
	require.NoError(h.t, err)
	return o
}

func (h *harness) candidatePath() string {
	return filepath.Join(h.cfg.LocalFolder(), h.cfg.BundlePath())
}

// serve makes the next Fetch leave content at the candidate path.
func (h *harness) serve(kind transport.Kind, content string) *mock.Call {
	path := h.candidatePath()
	return h.transport.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		req := args.Get(1).(transport.Request)
		require.Equal(h.t, path, req.CandidatePath())
		require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	}).Return(&transport.Result{Kind: kind, BundlePath: path}, nil).Once()
}

func (h *harness) acceptInstalls() {
	h.loader.On("SetupExactBundlePath", mock.Anything, mock.Anything).Return(true, nil).Maybe()
	h.loader.On("SetCurrentVersion", mock.Anything, mock.Anything).Return(nil).Maybe()
}

func (h *harness) storedFingerprint() string {
	rec := h.store.ReadCurrent(h.ctx)
	if rec == nil {
		return ""
	}
	return rec.Fingerprint
}

func TestCheck_InstallThenNoOpPull(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	first := o.Check(h.ctx, Request{Trigger: TriggerStartup})
	require.Equal(t, OutcomeInstalled, first.Outcome, first.Message)
	assert.Equal(t, fingerprint.OfBytes([]byte("v1")), first.Fingerprint)
	assert.Equal(t, first.Fingerprint, h.storedFingerprint())
	assert.True(t, first.RestartAvailable)
	assert.False(t, first.Restarted, "silent installs never restart")
	assert.Equal(t, []Phase{
		PhaseIdle, PhasePolicyGate, PhaseTransporting, PhaseComparing,
		PhaseInstalling, PhaseInvalidating, PhaseReporting, PhaseIdle,
	}, first.Trace)
	assert.Equal(t, int32(1), h.invalidations.Load())

	installed, err := os.ReadFile(first.BundlePath)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(installed))
	assert.NotEqual(t, h.candidatePath(), first.BundlePath, "the loader gets a copy, never the transport file")

	before := h.store.ReadCurrent(h.ctx)

	h.serve(transport.KindPulled, "v1")
	second := o.Check(h.ctx, Request{Trigger: TriggerInterval})
	assert.Equal(t, OutcomeUpToDate, second.Outcome)
	assert.NotContains(t, second.Trace, PhaseInstalling)
	assert.Equal(t, int32(1), h.invalidations.Load(), "an unchanged bundle must not be invalidated again")
	assert.Equal(t, before, h.store.ReadCurrent(h.ctx), "store should be unchanged")
	h.loader.AssertNumberOfCalls(t, "SetupExactBundlePath", 1)

	assert.Equal(t, []string{"startup/installed", "interval/upToDate"}, h.metrics.checks)
}

func TestCheck_SequentialUpdates(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	first := o.Check(h.ctx, Request{})
	h.serve(transport.KindPulled, "v2")
	second := o.Check(h.ctx, Request{})
	h.serve(transport.KindPulled, "v3")
	third := o.Check(h.ctx, Request{})

	for _, res := range []*Result{first, second, third} {
		require.Equal(t, OutcomeInstalled, res.Outcome, res.Message)
	}
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)
	assert.NotEqual(t, first.BundlePath, second.BundlePath, "every install gets a unique path")
	assert.NotEqual(t, second.BundlePath, third.BundlePath)
	assert.Equal(t, fingerprint.OfBytes([]byte("v3")), h.storedFingerprint())
	assert.Equal(t, int32(3), h.invalidations.Load())
	assert.Equal(t, third.Fingerprint, o.Fingerprint())
}

func TestCheck_ClearCacheBetweenChecks(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	require.Equal(t, OutcomeInstalled, o.Check(h.ctx, Request{}).Outcome)

	require.NoError(t, o.ClearCache(h.ctx))
	assert.Nil(t, h.store.ReadCurrent(h.ctx))
	assert.Empty(t, o.Fingerprint())
	_, err := os.Stat(h.cfg.LocalFolder())
	assert.True(t, os.IsNotExist(err), "clear cache removes the transport folder")

	h.serve(transport.KindCloned, "v1")
	again := o.Check(h.ctx, Request{})
	assert.Equal(t, OutcomeInstalled, again.Outcome, "after a clear the same content is treated as new")
	assert.Equal(t, int32(2), h.invalidations.Load())
}

func TestCheck_DisabledNeverTransports(t *testing.T) {
	h := newHarness(t)
	h.cfg.Enabled = false
	o := h.orchestrator()

	for _, trigger := range []Trigger{TriggerStartup, TriggerForeground, TriggerInterval, TriggerManual} {
		res := o.Check(h.ctx, Request{Trigger: trigger, Mode: ModeInteractive})
		assert.Equal(t, OutcomeSkippedPolicy, res.Outcome)
		assert.NotContains(t, res.Trace, PhaseTransporting)
	}
	h.transport.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheck_SingleFlight(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()
	o := h.orchestrator()

	started := make(chan struct{})
	release := make(chan struct{})
	path := h.candidatePath()
	h.transport.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
		close(started)
		<-release
	}).Return(&transport.Result{Kind: transport.KindCloned, BundlePath: path}, nil).Once()

	done := make(chan *Result, 1)
	go func() { done <- o.Check(h.ctx, Request{Trigger: TriggerStartup}) }()
	<-started

	second := o.Check(h.ctx, Request{Trigger: TriggerManual, Mode: ModeInteractive})
	assert.Equal(t, OutcomeSkippedPolicy, second.Outcome)
	assert.NotContains(t, second.Trace, PhaseInstalling)
	assert.True(t, errors.Is(o.ClearCache(h.ctx), ErrBusy), "clear cache must wait for the in-flight run")

	close(release)
	first := <-done
	assert.Equal(t, OutcomeInstalled, first.Outcome)
	h.loader.AssertNumberOfCalls(t, "SetupExactBundlePath", 1)

	assert.True(t, o.Gate().TryBegin(), "the guard is released after the run")
	o.Gate().End()
}

func TestCheck_CloneStillCompares(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()

	_, err := h.store.WriteCurrent(h.ctx, fingerprint.OfBytes([]byte("v1")), store.PlatformAndroid)
	require.NoError(t, err)

	h.serve(transport.KindCloned, "v1")
	res := o.Check(h.ctx, Request{})
	assert.Equal(t, OutcomeUpToDate, res.Outcome, "a fresh clone of unchanged content is not an update")
	assert.Equal(t, transport.KindCloned, res.Kind)
	assert.Zero(t, h.invalidations.Load())
}

func TestCheck_MissingOrEmptyCandidate(t *testing.T) {
	for _, content := range []string{"", "<missing>"} {
		h := newHarness(t)
		o := h.orchestrator()

		path := h.candidatePath()
		h.transport.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			if content == "<missing>" {
				return
			}
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, nil, 0o644))
		}).Return(&transport.Result{Kind: transport.KindPulled, BundlePath: path}, nil).Once()

		res := o.Check(h.ctx, Request{})
		assert.Equal(t, OutcomeUpToDate, res.Outcome)
		assert.Nil(t, h.store.ReadCurrent(h.ctx))
	}
}

func TestCheck_LoaderRejects(t *testing.T) {
	h := newHarness(t)
	h.loader.On("SetupExactBundlePath", mock.Anything, mock.Anything).Return(false, nil).Once()
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	res := o.Check(h.ctx, Request{})
	assert.Equal(t, OutcomeInstallFailed, res.Outcome)
	assert.False(t, res.RestartAvailable)
	assert.Nil(t, h.store.ReadCurrent(h.ctx), "a rejected install must not be recorded")
	assert.Zero(t, h.invalidations.Load())

	entries, err := os.ReadDir(h.cfg.BundlesDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "the rejected copy is removed")
}

func TestCheck_LoaderPanics(t *testing.T) {
	h := newHarness(t)
	h.loader.On("SetupExactBundlePath", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		panic("native module missing")
	}).Return(true, nil).Once()
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	var res *Result
	require.NotPanics(t, func() { res = o.Check(h.ctx, Request{}) })
	assert.Equal(t, OutcomeInstallFailed, res.Outcome)
	assert.Contains(t, res.Message, "native module missing")
	assert.Nil(t, h.store.ReadCurrent(h.ctx))
	assert.True(t, o.Gate().TryBegin(), "a panic must still release the guard")
	o.Gate().End()
}

func TestCheck_UnrecordedInstallRestoresPointer(t *testing.T) {
	h := newHarness(t)
	fl := loader.NewFileLoader(h.cfg.StateDir)
	h.opts.Loader = fl
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	first := o.Check(h.ctx, Request{})
	require.Equal(t, OutcomeInstalled, first.Outcome, first.Message)

	// a directory in place of the record makes the next write fail
	require.NoError(t, os.Remove(h.cfg.RecordPath()))
	require.NoError(t, os.MkdirAll(filepath.Join(h.cfg.RecordPath(), "blocked"), 0o755))

	h.serve(transport.KindPulled, "v2")
	second := o.Check(h.ctx, Request{})
	require.Equal(t, OutcomeInstallFailed, second.Outcome)
	assert.Contains(t, second.Message, "recording installed bundle")
	assert.Empty(t, second.BundlePath)
	assert.False(t, second.RestartAvailable)

	pointer, err := fl.BundlePath(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, first.BundlePath, pointer, "the host keeps booting the recorded bundle")

	entries, err := os.ReadDir(h.cfg.BundlesDir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "the unrecorded copy is removed")
	assert.Equal(t, filepath.Base(first.BundlePath), entries[0].Name())
}

func TestCheck_TransportFailure(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()

	h.transport.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.Errorf("%w: pull failed: authentication required", transport.ErrTransport)).Once()

	res := o.Check(h.ctx, Request{Trigger: TriggerInterval})
	assert.Equal(t, OutcomeTransportFailed, res.Outcome)
	assert.Contains(t, res.Message, "authentication required")
	assert.Nil(t, h.store.ReadCurrent(h.ctx))
	h.transport.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestCheck_InvalidationWarningsDoNotFail(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()
	h.opts.Invalidator = invalidate.New([]invalidate.Step{
		invalidate.Func{Label: "bytecode", Fn: func(ctx context.Context, target invalidate.Target) error {
			return errors.New("permission denied")
		}},
		invalidate.Func{Label: "module-registry", Fn: func(ctx context.Context, target invalidate.Target) error {
			panic("registry gone")
		}},
	}, invalidate.WithWarningHook(h.metrics.IncInvalidationWarning))
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	res := o.Check(h.ctx, Request{})
	assert.Equal(t, OutcomeInstalled, res.Outcome)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, []string{"bytecode", "module-registry"}, h.metrics.warnings)
	assert.NotEmpty(t, h.storedFingerprint())
}

func TestCheck_GateReleasedBeforePrompt(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()

	var o *Orchestrator
	var freeDuringPrompt bool
	prompter := &MockPrompter{}
	prompter.On("Report", mock.Anything, mock.Anything).Once()
	prompter.On("ConfirmRestart", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		freeDuringPrompt = o.Gate().TryBegin()
		if freeDuringPrompt {
			o.Gate().End()
		}
	}).Return(false, nil).Once()
	h.opts.Prompter = prompter
	o = h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	res := o.Check(h.ctx, Request{Mode: ModeInteractive, Trigger: TriggerManual})
	require.Equal(t, OutcomeInstalled, res.Outcome, res.Message)
	assert.True(t, freeDuringPrompt, "the gate covers transport through invalidation only")
	prompter.AssertExpectations(t)
}

func TestCheck_Reporting(t *testing.T) {
	t.Run("interactive_confirmed", func(t *testing.T) {
		h := newHarness(t)
		h.acceptInstalls()
		prompter := &MockPrompter{}
		prompter.On("Report", mock.Anything, mock.Anything).Once()
		prompter.On("ConfirmRestart", mock.Anything, mock.Anything).Return(true, nil).Once()
		h.loader.On("ResetApp", mock.Anything).Return(nil).Once()
		h.opts.Prompter = prompter
		o := h.orchestrator()

		h.serve(transport.KindCloned, "v1")
		res := o.Check(h.ctx, Request{Mode: ModeInteractive, Trigger: TriggerManual})
		assert.True(t, res.Restarted)
		assert.False(t, res.RestartAvailable)
		prompter.AssertExpectations(t)
	})

	t.Run("interactive_declined", func(t *testing.T) {
		h := newHarness(t)
		h.acceptInstalls()
		prompter := &MockPrompter{}
		prompter.On("Report", mock.Anything, mock.Anything).Once()
		prompter.On("ConfirmRestart", mock.Anything, mock.Anything).Return(false, nil).Once()
		h.opts.Prompter = prompter
		o := h.orchestrator()

		h.serve(transport.KindCloned, "v1")
		res := o.Check(h.ctx, Request{Mode: ModeInteractive, Trigger: TriggerManual})
		assert.False(t, res.Restarted)
		assert.True(t, res.RestartAvailable)
		h.loader.AssertNotCalled(t, "ResetApp", mock.Anything)
	})

	t.Run("interactive_up_to_date_is_reported", func(t *testing.T) {
		h := newHarness(t)
		h.acceptInstalls()
		prompter := &MockPrompter{}
		prompter.On("Report", mock.Anything, mock.MatchedBy(func(r *Result) bool {
			return r.Outcome == OutcomeUpToDate
		})).Once()
		h.opts.Prompter = prompter
		o := h.orchestrator()

		h.serve(transport.KindPulled, "")
		o.Check(h.ctx, Request{Mode: ModeInteractive, Trigger: TriggerManual})
		prompter.AssertExpectations(t)
		prompter.AssertNotCalled(t, "ConfirmRestart", mock.Anything, mock.Anything)
	})

	t.Run("silent_never_prompts", func(t *testing.T) {
		h := newHarness(t)
		h.acceptInstalls()
		prompter := &MockPrompter{}
		h.opts.Prompter = prompter
		o := h.orchestrator()

		h.serve(transport.KindCloned, "v1")
		res := o.Check(h.ctx, Request{Mode: ModeSilent, Trigger: TriggerForeground})
		assert.Equal(t, OutcomeInstalled, res.Outcome)
		assert.True(t, res.RestartAvailable)
		prompter.AssertNotCalled(t, "Report", mock.Anything, mock.Anything)
		h.loader.AssertNotCalled(t, "ResetApp", mock.Anything)
	})

	t.Run("auto_restart", func(t *testing.T) {
		h := newHarness(t)
		h.acceptInstalls()
		h.cfg.AutoRestart = true
		h.loader.On("ResetApp", mock.Anything).Return(nil).Once()
		o := h.orchestrator()

		h.serve(transport.KindCloned, "v1")
		res := o.Check(h.ctx, Request{Mode: ModeSilent, Trigger: TriggerInterval})
		assert.True(t, res.Restarted)
	})
}

func TestCheck_RecordsHistory(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()
	hist, err := history.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { hist.Close() })
	h.opts.History = hist
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1")
	res := o.Check(h.ctx, Request{Trigger: TriggerStartup})

	entries, err := hist.Recent(h.ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.RunID, entries[0].ID)
	assert.Equal(t, "installed", entries[0].Outcome)
	assert.Equal(t, "startup", entries[0].Trigger)
	assert.Equal(t, "cloned", entries[0].Kind)
	assert.Equal(t, res.Fingerprint, entries[0].Fingerprint)
	assert.Same(t, res, o.LastResult())
}

func TestCheck_ForwardsProgress(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()

	var got []transport.Progress
	h.opts.OnProgress = func(p transport.Progress) { got = append(got, p) }
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1").Run(func(args mock.Arguments) {
		ch := args.Get(2).(chan<- transport.Progress)
		ch <- transport.Progress{Received: 1, Total: 2}
		ch <- transport.Progress{Received: 2, Total: 2}
		path := h.candidatePath()
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	})

	res := o.Check(h.ctx, Request{Mode: ModeInteractive})
	assert.Equal(t, OutcomeInstalled, res.Outcome)
	assert.Equal(t, []transport.Progress{{Received: 1, Total: 2}, {Received: 2, Total: 2}}, got)
}

func TestCheck_SilentRunsHideProgress(t *testing.T) {
	h := newHarness(t)
	h.acceptInstalls()

	called := false
	h.opts.OnProgress = func(p transport.Progress) { called = true }
	o := h.orchestrator()

	h.serve(transport.KindCloned, "v1").Run(func(args mock.Arguments) {
		ch := args.Get(2).(chan<- transport.Progress)
		assert.Nil(t, ch, "silent runs get no progress channel")
		path := h.candidatePath()
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	})

	res := o.Check(h.ctx, Request{Mode: ModeSilent, Trigger: TriggerInterval})
	assert.Equal(t, OutcomeInstalled, res.Outcome)
	assert.False(t, called)
}

func TestPending(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()

	pending, err := o.Pending(h.ctx)
	require.NoError(t, err)
	assert.False(t, pending, "nothing installed means nothing pending")

	fp := fingerprint.OfBytes([]byte("v1"))
	_, err = h.store.WriteCurrent(h.ctx, fp, store.PlatformAndroid)
	require.NoError(t, err)

	h.loader.On("GetCurrentVersion", mock.Anything).Return("", nil).Once()
	pending, err = o.Pending(h.ctx)
	require.NoError(t, err)
	assert.True(t, pending)

	h.loader.On("GetCurrentVersion", mock.Anything).Return(fp, nil).Once()
	pending, err = o.Pending(h.ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	h.loader.AssertNotCalled(t, "ResetApp", mock.Anything)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	h := newHarness(t)

	for name, mutate := range map[string]func(*Options){
		"config":      func(o *Options) { o.Config = nil },
		"transport":   func(o *Options) { o.Transport = nil },
		"loader":      func(o *Options) { o.Loader = nil },
		"store":       func(o *Options) { o.Store = nil },
		"invalidator": func(o *Options) { o.Invalidator = nil },
	} {
		t.Run(name, func(t *testing.T) {
			opts := h.opts
			mutate(&opts)
			_, err := New(opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name+" is required")
		})
	}
}

func TestVersionedName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "index.android.bundle", want: "index.android.1700.bundle"},
		{name: "main.jsbundle", want: "main.1700.jsbundle"},
		{name: "bundle", want: "bundle.1700"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VersionedName(tt.name, "1700"))
	}
}

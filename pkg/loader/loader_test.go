package loader

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func testContext(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t})
	return logger.WithContext(context.Background())
}

func TestFileLoader_SetupExactBundlePath(t *testing.T) {
	ctx := testContext(t)
	dir := t.TempDir()
	l := NewFileLoader(dir)

	bundle := filepath.Join(dir, "bundles", "main.1.jsbundle")
	require.NoError(t, os.MkdirAll(filepath.Dir(bundle), 0o755))
	require.NoError(t, os.WriteFile(bundle, []byte("code"), 0o644))

	ok, err := l.SetupExactBundlePath(ctx, bundle)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := l.BundlePath(ctx)
	require.NoError(t, err)
	assert.Equal(t, bundle, got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.jsbundle"), nil, 0o644))

	tests := []struct {
		name string
		path string
	}{
		{name: "missing", path: filepath.Join(dir, "nope.jsbundle")},
		{name: "empty", path: filepath.Join(dir, "empty.jsbundle")},
		{name: "directory", path: filepath.Join(dir, "bundles")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := l.SetupExactBundlePath(ctx, tt.path)
			assert.False(t, ok)
			assert.True(t, errors.Is(err, ErrRejected))

			got, err := l.BundlePath(ctx)
			require.NoError(t, err)
			assert.Equal(t, bundle, got, "a rejected path must not replace the pointer")
		})
	}
}

func TestFileLoader_Version(t *testing.T) {
	ctx := testContext(t)
	l := NewFileLoader(t.TempDir())

	v, err := l.GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, l.SetCurrentVersion(ctx, "abc"))
	v, err = NewFileLoader(filepath.Dir(l.Path())).GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", v, "version should persist across instances")
}

func TestFileLoader_ResetApp(t *testing.T) {
	ctx := testContext(t)

	err := NewFileLoader(t.TempDir()).ResetApp(ctx)
	assert.True(t, errors.Is(err, ErrNoRestart))

	if runtime.GOOS == "windows" {
		t.Skip("restart command test uses a posix shell")
	}

	dir := t.TempDir()
	marker := filepath.Join(dir, "restarted")
	script := filepath.Join(dir, "restart.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$OTASWAP_LOADER_POINTER\" > "+marker+"\n"), 0o755))

	l := NewFileLoader(dir, WithRestartCommand(script))
	require.NoError(t, l.ResetApp(ctx))

	content, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, l.Path()+"\n", string(content))

	failing := NewFileLoader(dir, WithRestartCommand("/bin/sh -c false"))
	assert.Error(t, failing.ResetApp(ctx))
}

func TestFileLoader_RestoreBundlePath(t *testing.T) {
	ctx := testContext(t)
	dir := t.TempDir()
	l := NewFileLoader(dir)

	require.NoError(t, l.SetCurrentVersion(ctx, "abc"))
	require.NoError(t, l.RestoreBundlePath(ctx, filepath.Join(dir, "gone.jsbundle")))

	got, err := l.BundlePath(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gone.jsbundle"), got, "restore skips the bundle checks")

	require.NoError(t, l.RestoreBundlePath(ctx, ""))
	got, err = l.BundlePath(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	version, err := l.GetCurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", version, "restoring the path keeps the version")
}

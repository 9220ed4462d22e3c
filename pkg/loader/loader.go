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

package loader

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/fsutil"
	"gitlab.com/tozd/go/errors"
)

// ErrRejected is returned when the loader refuses a bundle path.
var ErrRejected = errors.Base("bundle path rejected")

// ErrNoRestart is returned by ResetApp when no restart primitive is available.
var ErrNoRestart = errors.Base("no restart command configured")

// PointerFileName is the file the host reads at boot to find its bundle.
const PointerFileName = "loader.json"

// 🧭 Loader points the host runtime at a bundle and restarts it.
type Loader interface {
	// SetupExactBundlePath points the next launch at path
	SetupExactBundlePath(ctx context.Context, path string) (bool, error)
	// SetCurrentVersion records the token of the adopted bundle
	SetCurrentVersion(ctx context.Context, token string) error
	// GetCurrentVersion returns the recorded token, empty when unset
	GetCurrentVersion(ctx context.Context) (string, error)
	// ResetApp hard restarts the host onto the configured bundle
	ResetApp(ctx context.Context) error
}

// 🔙 Restorer is implemented by loaders that can report the current bundle
// pointer and put an earlier one back.
type Restorer interface {
	// BundlePath returns the bundle the host will load next, empty when unset
	BundlePath(ctx context.Context) (string, error)
	// RestoreBundlePath points the next launch back at path, empty clears it
	RestoreBundlePath(ctx context.Context, path string) error
}

type pointer struct {
	BundlePath string `json:"bundle_path"`
	Version    string `json:"version,omitempty"`
}

// 📌 FileLoader keeps the bundle pointer in a json file the host reads at
// boot, and restarts the host by running an external command.
type FileLoader struct {
	path    string
	restart []string

	mu sync.Mutex
}

var (
	_ Loader   = (*FileLoader)(nil)
	_ Restorer = (*FileLoader)(nil)
)

// Option configures a FileLoader.
type Option func(*FileLoader)

// WithRestartCommand sets the command ResetApp runs, split on whitespace.
func WithRestartCommand(cmd string) Option {
	return func(l *FileLoader) { l.restart = strings.Fields(cmd) }
}

// 🏭 NewFileLoader creates a loader whose pointer lives in stateDir.
func NewFileLoader(stateDir string, opts ...Option) *FileLoader {
	l := &FileLoader{path: filepath.Join(stateDir, PointerFileName)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the pointer file location.
func (l *FileLoader) Path() string {
	return l.path
}

// BundlePath returns the bundle the host will load next, empty when unset.
func (l *FileLoader) BundlePath(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, err := l.read()
	if err != nil {
		return "", err
	}
	return p.BundlePath, nil
}

func (l *FileLoader) SetupExactBundlePath(ctx context.Context, path string) (bool, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(path)
	switch {
	case err != nil:
		logger.Warn().Err(err).Str("path", path).Msg("loader rejected missing bundle")
		return false, errors.Errorf("%w: %w", ErrRejected, err)
	case !info.Mode().IsRegular():
		return false, errors.Errorf("%w: %s is not a regular file", ErrRejected, path)
	case info.Size() == 0:
		return false, errors.Errorf("%w: %s is empty", ErrRejected, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false, errors.Errorf("resolving bundle path: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.read()
	if err != nil {
		return false, err
	}
	p.BundlePath = abs
	if err := l.write(p); err != nil {
		return false, err
	}

	logger.Debug().Str("bundle_path", abs).Msg("pointed loader at bundle")
	return true, nil
}

// RestoreBundlePath writes path back without the checks
// SetupExactBundlePath makes, since it was accepted once already.
func (l *FileLoader) RestoreBundlePath(ctx context.Context, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.read()
	if err != nil {
		return err
	}
	p.BundlePath = path
	if err := l.write(p); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Str("bundle_path", path).Msg("restored loader pointer")
	return nil
}

func (l *FileLoader) SetCurrentVersion(ctx context.Context, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.read()
	if err != nil {
		return err
	}
	p.Version = token
	return l.write(p)
}

func (l *FileLoader) GetCurrentVersion(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := l.read()
	if err != nil {
		return "", err
	}
	return p.Version, nil
}

// 🔄 ResetApp runs the restart command. The command is expected to replace
// the running host; its output is forwarded to the log.
func (l *FileLoader) ResetApp(ctx context.Context) error {
	if len(l.restart) == 0 {
		return ErrNoRestart
	}

	logger := zerolog.Ctx(ctx)
	logger.Info().Strs("command", l.restart).Msg("restarting host")

	cmd := exec.CommandContext(ctx, l.restart[0], l.restart[1:]...)
	cmd.Env = append(os.Environ(), "OTASWAP_LOADER_POINTER="+l.path)
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		logger.Debug().Str("output", strings.TrimSpace(string(out))).Msg("restart command output")
	}
	if err != nil {
		return errors.Errorf("running restart command: %w", err)
	}
	return nil
}

func (l *FileLoader) read() (pointer, error) {
	var p pointer
	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, errors.Errorf("reading loader pointer: %w", err)
	}
	if err := json.Unmarshal(content, &p); err != nil {
		return pointer{}, errors.Errorf("decoding loader pointer: %w", err)
	}
	return p, nil
}

func (l *FileLoader) write(p pointer) error {
	content, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Errorf("encoding loader pointer: %w", err)
	}
	if err := fsutil.WriteFileAtomic(l.path, append(content, '\n'), 0o644); err != nil {
		return errors.Errorf("writing loader pointer: %w", err)
	}
	return nil
}

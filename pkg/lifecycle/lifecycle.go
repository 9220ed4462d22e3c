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

package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 📱 State is the host application's lifecycle state.
type State string

const (
	Active     State = "active"
	Inactive   State = "inactive"
	Background State = "background"
)

// Foreground reports whether the app is in front of the user.
func (s State) Foreground() bool {
	return s == Active
}

// Parse validates a lifecycle state name.
func Parse(s string) (State, error) {
	switch State(strings.ToLower(strings.TrimSpace(s))) {
	case Active:
		return Active, nil
	case Inactive:
		return Inactive, nil
	case Background:
		return Background, nil
	default:
		return "", errors.Errorf("unknown lifecycle state %q", s)
	}
}

// Read parses the state stored in the file at path.
func Read(path string) (State, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Errorf("reading lifecycle file: %w", err)
	}
	return Parse(string(content))
}

// 👀 Watcher reports lifecycle transitions the host writes to a file.
// The containing directory is watched so atomic replaces are seen.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	callback func(ctx context.Context, s State)
}

// NewWatcher creates a watcher for the lifecycle file at path. callback is
// invoked with every successfully parsed state.
func NewWatcher(path string, callback func(ctx context.Context, s State)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Errorf("creating file watcher: %w", err)
	}
	return &Watcher{
		path:     filepath.Clean(path),
		watcher:  w,
		callback: callback,
	}, nil
}

// Start watches until ctx is cancelled or the watcher is closed. The
// current state, if the file exists, is reported first.
func (w *Watcher) Start(ctx context.Context) error {
	logger := zerolog.Ctx(ctx).With().Str("lifecycle_file", w.path).Logger()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Errorf("creating lifecycle directory: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		return errors.Errorf("watching %s: %w", dir, err)
	}

	if s, err := Read(w.path); err == nil {
		w.callback(ctx, s)
	}

	logger.Debug().Msg("watching lifecycle transitions")
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("lifecycle watcher error")

		case <-ctx.Done():
			logger.Debug().Msg("lifecycle watcher stopping")
			return nil
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	s, err := Read(w.path)
	if err != nil {
		// writes may land in several events, the last one is complete
		zerolog.Ctx(ctx).Debug().Err(err).Msg("ignoring unreadable lifecycle state")
		return
	}
	w.callback(ctx, s)
}

// Stop releases the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

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
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/fsutil"
	"gitlab.com/tozd/go/errors"
)

// 🏷️ PrefixStep writes a cache-prefix token file the host reads at boot to
// namespace its bundler module cache. A new token means a cold cache.
type PrefixStep struct {
	Path string
}

func (s PrefixStep) Name() string { return "bundler-prefix" }

type prefixFile struct {
	Prefix      string `json:"prefix"`
	Fingerprint string `json:"fingerprint"`
	BundlePath  string `json:"bundle_path"`
}

func (s PrefixStep) Invalidate(ctx context.Context, target Target) error {
	if s.Path == "" {
		return ErrUnsupported
	}
	content, err := json.MarshalIndent(prefixFile{
		Prefix:      "ota_" + target.Token,
		Fingerprint: target.Fingerprint,
		BundlePath:  target.BundlePath,
	}, "", "  ")
	if err != nil {
		return errors.Errorf("encoding prefix file: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.Path, content, 0o644); err != nil {
		return errors.Errorf("writing prefix file: %w", err)
	}
	return nil
}

// 📂 DirStep removes a cache directory such as the module registry cache.
// A missing directory means the hook does not exist here.
type DirStep struct {
	Label string
	Dir   string
}

func (s DirStep) Name() string { return s.Label }

func (s DirStep) Invalidate(ctx context.Context, target Target) error {
	if s.Dir == "" {
		return ErrUnsupported
	}
	ok, err := fsutil.Exists(s.Dir)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnsupported
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return errors.Errorf("removing %s: %w", s.Dir, err)
	}
	zerolog.Ctx(ctx).Debug().Str("dir", s.Dir).Msg("removed cache directory")
	return nil
}

// 🔎 GlobStep deletes files under Root matching doublestar Patterns, e.g.
// precompiled bytecode left next to an older bundle. Files under an Exclude
// directory are never touched.
type GlobStep struct {
	Label    string
	Root     string
	Patterns []string
	Exclude  []string
}

func (s GlobStep) Name() string { return s.Label }

func (s GlobStep) Invalidate(ctx context.Context, target Target) error {
	if s.Root == "" || len(s.Patterns) == 0 {
		return ErrUnsupported
	}
	ok, err := fsutil.Exists(s.Root)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnsupported
	}

	fsys := os.DirFS(s.Root)
	for _, pattern := range s.Patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return errors.Errorf("matching %s: %w", pattern, err)
		}
		for _, m := range matches {
			path := filepath.Join(s.Root, filepath.FromSlash(m))
			if path == target.BundlePath || s.excluded(path) {
				continue
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.Errorf("removing %s: %w", path, err)
			}
			zerolog.Ctx(ctx).Debug().Str("path", path).Str("pattern", pattern).Msg("removed cached file")
		}
	}
	return nil
}

func (s GlobStep) excluded(path string) bool {
	for _, dir := range s.Exclude {
		if dir == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(dir), path)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

// ✂️ PruneStep removes old versioned bundle copies living next to the target,
// keeping the target and the Keep most recent others.
type PruneStep struct {
	Keep int
}

func (s PruneStep) Name() string { return "prune-bundles" }

func (s PruneStep) Invalidate(ctx context.Context, target Target) error {
	if target.BundlePath == "" || target.Token == "" {
		return ErrUnsupported
	}
	dir := filepath.Dir(target.BundlePath)
	base := filepath.Base(target.BundlePath)

	// index.android.<token>.bundle -> index.android.*.bundle
	marker := "." + target.Token + "."
	idx := strings.Index(base, marker)
	if idx < 0 {
		return ErrUnsupported
	}
	prefix := base[:idx] + "."
	suffix := "." + base[idx+len(marker):]

	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Errorf("listing versioned bundles: %w", err)
	}

	var others []string
	for _, entry := range entries {
		name := entry.Name()
		if name == base || !entry.Type().IsRegular() {
			continue
		}
		if len(name) <= len(prefix)+len(suffix) {
			continue
		}
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
			continue
		}
		others = append(others, name)
	}

	// tokens are fixed-width, so name order is install order
	sort.Sort(sort.Reverse(sort.StringSlice(others)))

	keep := s.Keep
	if keep < 0 {
		keep = 0
	}
	for idx, name := range others {
		if idx < keep {
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Errorf("removing %s: %w", path, err)
		}
		zerolog.Ctx(ctx).Debug().Str("path", path).Msg("pruned versioned bundle")
	}
	return nil
}

// Func adapts a function into a Step.
type Func struct {
	Label string
	Fn    func(ctx context.Context, target Target) error
}

func (f Func) Name() string { return f.Label }

func (f Func) Invalidate(ctx context.Context, target Target) error {
	if f.Fn == nil {
		return ErrUnsupported
	}
	return f.Fn(ctx, target)
}

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

package git

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/fsutil"
	"github.com/walteh/otaswap/pkg/transport"
	"gitlab.com/tozd/go/errors"
)

func init() {
	transport.Register("git", New)
}

// 🎯 Transport clones the release branch on first use and pulls it after.
type Transport struct {
	auth *githttp.BasicAuth
}

// 🏭 New creates a git transport. A token, when set, is sent as http basic
// auth the way hosted git providers expect it.
func New(ctx context.Context, opts transport.Options) (transport.Transport, error) {
	t := &Transport{}
	if opts.Token != "" {
		t.auth = &githttp.BasicAuth{Username: "otaswap", Password: opts.Token}
	}
	return t, nil
}

// 🚚 Fetch implements transport.Transport.
func (t *Transport) Fetch(ctx context.Context, req transport.Request, progress chan<- transport.Progress) (*transport.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().
		Str("transport", "git").
		Str("branch", req.Branch).
		Str("folder", req.LocalFolder).
		Logger()
	ctx = logger.WithContext(ctx)

	exists, err := fsutil.Exists(filepath.Join(req.LocalFolder, ".git"))
	if err != nil {
		return nil, errors.Errorf("%w: %w", transport.ErrTransport, err)
	}

	sink := &progressWriter{ch: progress}

	var (
		repo *gogit.Repository
		kind transport.Kind
	)
	if !exists {
		repo, err = t.clone(ctx, req, sink)
		kind = transport.KindCloned
	} else {
		repo, err = t.pull(ctx, req, sink)
		kind = transport.KindPulled
	}
	if err != nil {
		return nil, err
	}

	res := &transport.Result{Kind: kind, BundlePath: req.CandidatePath()}
	if head, err := repo.Head(); err == nil {
		res.Revision = head.Hash().String()
	}

	logger.Info().Str("kind", string(kind)).Str("revision", res.Revision).Msg("fetched release branch")
	return res, nil
}

func (t *Transport) clone(ctx context.Context, req transport.Request, sink *progressWriter) (*gogit.Repository, error) {
	zerolog.Ctx(ctx).Debug().Str("url", req.URL).Msg("cloning release branch")

	if err := os.MkdirAll(filepath.Dir(req.LocalFolder), 0o755); err != nil {
		return nil, errors.Errorf("%w: creating parent folder: %w", transport.ErrTransport, err)
	}

	opts := &gogit.CloneOptions{
		URL:           req.URL,
		RemoteName:    gogit.DefaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(req.Branch),
		SingleBranch:  true,
		Progress:      sink,
	}
	if t.auth != nil {
		opts.Auth = t.auth
	}

	repo, err := gogit.PlainCloneContext(ctx, req.LocalFolder, false, opts)
	if err != nil {
		// a half-written clone would turn every later fetch into a failing pull
		_ = os.RemoveAll(req.LocalFolder)
		return nil, errors.Errorf("%w: clone failed: %w", transport.ErrTransport, err)
	}
	return repo, nil
}

func (t *Transport) pull(ctx context.Context, req transport.Request, sink *progressWriter) (*gogit.Repository, error) {
	zerolog.Ctx(ctx).Debug().Msg("pulling release branch")

	repo, err := gogit.PlainOpen(req.LocalFolder)
	if err != nil {
		return nil, errors.Errorf("%w: opening local repository: %w", transport.ErrTransport, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Errorf("%w: opening worktree: %w", transport.ErrTransport, err)
	}

	opts := &gogit.PullOptions{
		RemoteName:    gogit.DefaultRemoteName,
		ReferenceName: plumbing.NewBranchReferenceName(req.Branch),
		SingleBranch:  true,
		Progress:      sink,
		Force:         true,
	}
	if t.auth != nil {
		opts.Auth = t.auth
	}

	err = wt.PullContext(ctx, opts)
	switch {
	case err == nil:
	case errors.Is(err, gogit.NoErrAlreadyUpToDate):
		zerolog.Ctx(ctx).Debug().Msg("release branch already up to date")
	default:
		return nil, errors.Errorf("%w: pull failed: %w", transport.ErrTransport, err)
	}
	return repo, nil
}

// objectProgress matches the "(received/total)" counters git prints on the
// sideband, e.g. "Receiving objects:  42% (21/50)".
var objectProgress = regexp.MustCompile(`\((\d+)/(\d+)\)`)

// 📶 progressWriter turns sideband progress text into transport.Progress.
type progressWriter struct {
	ch chan<- transport.Progress

	mu   sync.Mutex
	last transport.Progress
}

func (w *progressWriter) Write(p []byte) (int, error) {
	if w.ch == nil {
		return len(p), nil
	}
	matches := objectProgress.FindAllSubmatch(p, -1)
	if len(matches) == 0 {
		return len(p), nil
	}
	m := matches[len(matches)-1]
	received, err1 := strconv.ParseInt(string(m[1]), 10, 64)
	total, err2 := strconv.ParseInt(string(m[2]), 10, 64)
	if err1 != nil || err2 != nil {
		return len(p), nil
	}

	next := transport.Progress{Received: received, Total: total}
	w.mu.Lock()
	changed := next != w.last
	w.last = next
	w.mu.Unlock()

	if changed {
		transport.Notify(w.ch, next)
	}
	return len(p), nil
}

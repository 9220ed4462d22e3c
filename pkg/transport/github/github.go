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

package github

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/fsutil"
	"github.com/walteh/otaswap/pkg/transport"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"
)

func init() {
	transport.Register("github", New)
}

// revisionFile remembers which commit the local bundle came from.
const revisionFile = ".otaswap-revision"

// 🎯 Transport downloads the bundle file straight from the GitHub contents
// api instead of keeping a full clone.
type Transport struct {
	client *github.Client
}

// 🏭 New creates a GitHub transport. Without a token requests are anonymous.
func New(ctx context.Context, opts transport.Options) (transport.Transport, error) {
	var hc *http.Client
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		hc = oauth2.NewClient(ctx, ts)
	}
	return &Transport{client: github.NewClient(hc)}, nil
}

// 🔍 parseRepo accepts https, ssh and bare owner/repo forms.
func parseRepo(repo string) (owner, name string, err error) {
	trimmed := strings.TrimSpace(repo)
	trimmed = strings.TrimSuffix(trimmed, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")
	if strings.Contains(trimmed, "@") && !strings.Contains(trimmed, "://") {
		// git@github.com:owner/repo
		if _, after, ok := strings.Cut(trimmed, ":"); ok {
			trimmed = after
		}
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", errors.Errorf("invalid GitHub repository URL: %s", repo)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// 🚚 Fetch implements transport.Transport.
func (t *Transport) Fetch(ctx context.Context, req transport.Request, progress chan<- transport.Progress) (*transport.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	owner, name, err := parseRepo(req.URL)
	if err != nil {
		return nil, errors.Errorf("%w: %w", transport.ErrTransport, err)
	}

	logger := zerolog.Ctx(ctx).With().
		Str("transport", "github").
		Str("repo", owner+"/"+name).
		Str("branch", req.Branch).
		Logger()

	existed, err := fsutil.Exists(req.LocalFolder)
	if err != nil {
		return nil, errors.Errorf("%w: %w", transport.ErrTransport, err)
	}
	kind := transport.KindPulled
	if !existed {
		kind = transport.KindCloned
	}

	ref, _, err := t.client.Git.GetRef(ctx, owner, name, "refs/heads/"+req.Branch)
	if err != nil {
		return nil, errors.Errorf("%w: getting branch reference: %w", transport.ErrTransport, err)
	}
	revision := ref.GetObject().GetSHA()

	res := &transport.Result{Kind: kind, BundlePath: req.CandidatePath(), Revision: revision}

	if existed && t.unchanged(req, revision) {
		logger.Debug().Str("revision", revision).Msg("release branch already up to date")
		return res, nil
	}

	content, err := t.download(ctx, owner, name, req)
	if err != nil {
		return nil, err
	}
	transport.Notify(progress, transport.Progress{Received: int64(len(content)), Total: int64(len(content))})

	if err := fsutil.WriteFileAtomic(res.BundlePath, content, 0o644); err != nil {
		return nil, errors.Errorf("%w: writing bundle: %w", transport.ErrTransport, err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(req.LocalFolder, revisionFile), []byte(revision+"\n"), 0o644); err != nil {
		return nil, errors.Errorf("%w: writing revision: %w", transport.ErrTransport, err)
	}

	logger.Info().Str("kind", string(kind)).Str("revision", revision).Int("bytes", len(content)).Msg("fetched release bundle")
	return res, nil
}

func (t *Transport) unchanged(req transport.Request, revision string) bool {
	prev, err := os.ReadFile(filepath.Join(req.LocalFolder, revisionFile))
	if err != nil || strings.TrimSpace(string(prev)) != revision {
		return false
	}
	ok, err := fsutil.Exists(req.CandidatePath())
	return err == nil && ok
}

func (t *Transport) download(ctx context.Context, owner, name string, req transport.Request) ([]byte, error) {
	file, _, _, err := t.client.Repositories.GetContents(ctx, owner, name, path.Clean(req.BundlePath), &github.RepositoryContentGetOptions{
		Ref: req.Branch,
	})
	if err != nil {
		return nil, errors.Errorf("%w: getting bundle content: %w", transport.ErrTransport, err)
	}
	if file == nil {
		return nil, errors.Errorf("%w: %s is a directory", transport.ErrTransport, req.BundlePath)
	}

	// files above the api inline limit only carry a download url
	if file.GetEncoding() == "none" && file.GetDownloadURL() != "" {
		return t.downloadURL(ctx, file.GetDownloadURL())
	}

	data, err := file.GetContent()
	if err != nil {
		return nil, errors.Errorf("%w: decoding content: %w", transport.ErrTransport, err)
	}
	return []byte(data), nil
}

func (t *Transport) downloadURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Errorf("%w: creating request: %w", transport.ErrTransport, err)
	}

	resp, err := t.client.Client().Do(req)
	if err != nil {
		return nil, errors.Errorf("%w: downloading bundle: %w", transport.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("%w: unexpected status code: %d", transport.ErrTransport, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Errorf("%w: reading bundle: %w", transport.ErrTransport, err)
	}
	return data, nil
}

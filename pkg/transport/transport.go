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

package transport

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// ErrTransport wraps every clone or pull failure.
var ErrTransport = errors.Base("bundle transport failed")

// 🏷️ Kind tags a successful fetch.
type Kind string

const (
	// KindCloned is the first fetch into a new local folder
	KindCloned Kind = "cloned"
	// KindPulled is an incremental refresh, including "already up to date"
	KindPulled Kind = "pulled"
)

// 📥 Request describes what to fetch and where to put it.
type Request struct {
	URL    string
	Branch string
	// LocalFolder is the absolute working folder owned by the transport
	LocalFolder string
	// BundlePath is the platform bundle path relative to LocalFolder
	BundlePath string
}

// CandidatePath is the absolute path the bundle ends up at.
func (r Request) CandidatePath() string {
	return filepath.Join(r.LocalFolder, filepath.FromSlash(r.BundlePath))
}

// Validate checks the request is complete.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.URL) == "":
		return errors.Errorf("%w: repository url is required", ErrTransport)
	case strings.TrimSpace(r.Branch) == "":
		return errors.Errorf("%w: branch is required", ErrTransport)
	case r.LocalFolder == "":
		return errors.Errorf("%w: local folder is required", ErrTransport)
	case r.BundlePath == "":
		return errors.Errorf("%w: bundle path is required", ErrTransport)
	}
	return nil
}

// ✅ Result is the outcome of a successful fetch.
type Result struct {
	Kind Kind
	// BundlePath is the absolute candidate bundle path
	BundlePath string
	// Revision identifies what was fetched, when the transport knows it
	Revision string
}

// 📶 Progress is a received/total notification. Total may be zero when the
// transport cannot know it yet.
type Progress struct {
	Received int64
	Total    int64
}

// Percent returns the completion in [0, 100], or -1 when unknown.
func (p Progress) Percent() int {
	if p.Total <= 0 {
		return -1
	}
	pct := int(p.Received * 100 / p.Total)
	if pct > 100 {
		return 100
	}
	return pct
}

// 🚚 Transport performs clone-or-pull semantics for one repository.
type Transport interface {
	// Fetch clones or pulls req. Progress is sent without blocking when
	// progress is non-nil; Fetch never closes the channel.
	Fetch(ctx context.Context, req Request, progress chan<- Progress) (*Result, error)
}

// Options are passed to every Factory.
type Options struct {
	Token string
}

// 🏭 Factory creates a transport.
type Factory func(ctx context.Context, opts Options) (Transport, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// 📝 Register registers a transport factory under name.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// 🎯 New creates the transport registered under name.
func New(ctx context.Context, name string, opts Options) (Transport, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("transport %q not found, options: %s", name, strings.Join(Names(), ", "))
	}
	return factory(ctx, opts)
}

// Names lists registered transports.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Notify sends p on ch unless ch is nil or full.
func Notify(ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	default:
	}
}

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

	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// Current returns the installed bundle record, nil when none.
func (o *Orchestrator) Current(ctx context.Context) *store.BundleRecord {
	return o.store.ReadCurrent(ctx)
}

// 🔍 Pending reports whether the recorded bundle differs from the version
// the loader last adopted. It never restarts anything.
func (o *Orchestrator) Pending(ctx context.Context) (bool, error) {
	logger := zerolog.Ctx(ctx)

	rec := o.store.ReadCurrent(ctx)
	if rec == nil {
		logger.Debug().Msg("no installed bundle, nothing pending")
		return false, nil
	}

	version, err := o.loader.GetCurrentVersion(ctx)
	if err != nil {
		return false, errors.Errorf("reading loader version: %w", err)
	}

	if version != rec.Fingerprint {
		logger.Info().
			Str("recorded", rec.Fingerprint).
			Str("loader_version", version).
			Msg("installed bundle not yet adopted by loader")
		return true, nil
	}

	logger.Debug().Msg("loader is on the installed bundle")
	return false, nil
}

// 🔄 Restart reloads the host through the loader's restart primitive. It is
// only ever called on an explicit request or with auto restart enabled.
func (o *Orchestrator) Restart(ctx context.Context) error {
	zerolog.Ctx(ctx).Info().Msg("restarting host into installed bundle")
	if err := o.loader.ResetApp(ctx); err != nil {
		return errors.Errorf("resetting app: %w", err)
	}
	return nil
}

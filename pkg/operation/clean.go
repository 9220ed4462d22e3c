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
	"os"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🧹 ClearCache deletes the installed bundle record and the local transport
// folder, and forgets the in-memory fingerprint. The next check treats any
// candidate as new. It is refused with ErrBusy while a check is in flight
// and is never run by automatic checks.
func (o *Orchestrator) ClearCache(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	if !o.gate.TryBegin() {
		return ErrBusy
	}
	defer o.gate.End()

	if err := o.store.Clear(ctx); err != nil {
		return errors.Errorf("clearing bundle record: %w", err)
	}

	folder := o.cfg.LocalFolder()
	if err := os.RemoveAll(folder); err != nil {
		return errors.Errorf("removing transport folder: %w", err)
	}

	o.mu.Lock()
	o.fingerprint = ""
	o.mu.Unlock()
	o.invalidator.Reset()

	logger.Info().Str("folder", folder).Msg("cleared update cache")
	return nil
}

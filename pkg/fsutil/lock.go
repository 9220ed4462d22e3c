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

package fsutil

import (
	"os"
	"path/filepath"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// ErrLocked is returned by TryLock when the lock is already held.
var ErrLocked = errors.Base("lock is held elsewhere")

// 🔒 Lock is an exclusive advisory lock on a file, shared by every process
// pointed at the same state directory.
type Lock struct {
	path string
	file *os.File

	once sync.Once
	err  error
}

// TryLock takes the lock at path without blocking. It returns ErrLocked when
// another holder has it.
func TryLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Errorf("creating lock directory: %w", err)
	}
	f, err := acquire(path)
	if err != nil {
		return nil, err
	}
	return &Lock{path: path, file: f}, nil
}

// Path is the lock file location.
func (l *Lock) Path() string { return l.path }

// Unlock releases the lock. Calling it again is a no-op.
func (l *Lock) Unlock() error {
	l.once.Do(func() {
		l.err = release(l.file, l.path)
	})
	return l.err
}

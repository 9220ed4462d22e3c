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

//go:build !unix

package fsutil

import (
	"os"
	"strconv"

	"gitlab.com/tozd/go/errors"
)

// Without flock the lock is the exclusive creation of the file itself. A
// crashed holder leaves it behind and it must be removed by hand.
func acquire(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, errors.Errorf("creating lock file: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	return f, nil
}

func release(f *os.File, path string) error {
	closeErr := f.Close()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing lock file: %w", err)
	}
	if closeErr != nil {
		return errors.Errorf("closing lock file: %w", closeErr)
	}
	return nil
}

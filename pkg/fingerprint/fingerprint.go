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

// Package fingerprint computes content-derived identities for bundle files.
//
// The fingerprint depends only on the bytes of the bundle. Paths, mtimes and
// commit metadata never influence it, so a pull that rewrites a file with the
// same content is recognised as a no-op.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrUnreadableBundle means there is no usable candidate: the file is
// missing, empty, or not a regular file. Callers treat it as "nothing to
// install", not as a failure.
var ErrUnreadableBundle = errors.Base("unreadable bundle")

// 🔍 OfBytes returns the hex sha256 of content.
func OfBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// 🔍 OfReader streams r into the digest.
func OfReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, errors.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// 📦 OfFile fingerprints the bundle at path.
func OfFile(ctx context.Context, path string) (string, error) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.Errorf("%w: %s does not exist", ErrUnreadableBundle, path)
		}
		return "", errors.Errorf("%w: stat %s: %v", ErrUnreadableBundle, path, err)
	}
	if !info.Mode().IsRegular() {
		return "", errors.Errorf("%w: %s is not a regular file", ErrUnreadableBundle, path)
	}
	if info.Size() == 0 {
		return "", errors.Errorf("%w: %s is empty", ErrUnreadableBundle, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Errorf("%w: opening %s: %v", ErrUnreadableBundle, path, err)
	}
	defer f.Close()

	sum, n, err := OfReader(f)
	if err != nil {
		return "", errors.Errorf("%w: %v", ErrUnreadableBundle, err)
	}
	// the file may have been truncated between stat and read
	if n == 0 {
		return "", errors.Errorf("%w: %s is empty", ErrUnreadableBundle, path)
	}

	logger.Debug().Str("path", path).Int64("size", n).Str("fingerprint", sum).Msg("fingerprinted bundle")
	return sum, nil
}

// Short returns the first 12 characters of a fingerprint for display.
func Short(fp string) string {
	if len(fp) <= 12 {
		return fp
	}
	return fp[:12]
}

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

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/walteh/otaswap/pkg/fsutil"
	"gitlab.com/tozd/go/errors"
)

// RecordFileName is the default name of the persisted record.
const RecordFileName = "ota_bundle_hash.json"

// 📱 Platform is the host platform a bundle targets.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformIOS:
		return PlatformIOS, nil
	case PlatformAndroid:
		return PlatformAndroid, nil
	default:
		return "", errors.Errorf("unknown platform %q", s)
	}
}

// 📄 BundleRecord is the persisted identity of the installed bundle.
type BundleRecord struct {
	Fingerprint   string
	InstalledAt   time.Time
	Platform      Platform
	FormatVersion int
}

// Store persists the current BundleRecord in a single file.
type Store struct {
	path string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for InstalledAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// 🏭 New creates a store backed by the file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path: filepath.Clean(path),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the record file location.
func (s *Store) Path() string {
	return s.path
}

// 📖 ReadCurrent returns the current record, or nil when there is none or it
// cannot be interpreted. Records written by older versions that hold only
// the raw fingerprint string are accepted.
func (s *Store) ReadCurrent(ctx context.Context) *BundleRecord {
	logger := zerolog.Ctx(ctx)

	content, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("path", s.path).Msg("reading bundle record")
		} else {
			logger.Debug().Str("path", s.path).Msg("no bundle record")
		}
		return nil
	}

	rec, err := decodeRecord(content)
	if err != nil {
		logger.Warn().Err(err).Str("path", s.path).Msg("ignoring unparseable bundle record")
		return nil
	}

	logger.Debug().
		Str("fingerprint", rec.Fingerprint).
		Int("format_version", rec.FormatVersion).
		Msg("read bundle record")
	return rec
}

// 💾 WriteCurrent atomically replaces the record with a new one for
// fingerprint. A failed write leaves the previous record untouched.
func (s *Store) WriteCurrent(ctx context.Context, fingerprint string, platform Platform) (*BundleRecord, error) {
	if fingerprint == "" {
		return nil, errors.New("fingerprint is required")
	}

	rec := &BundleRecord{
		Fingerprint:   fingerprint,
		InstalledAt:   s.now().UTC(),
		Platform:      platform,
		FormatVersion: FormatVersion,
	}

	content, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	if err := fsutil.WriteFileAtomic(s.path, content, 0o644); err != nil {
		return nil, errors.Errorf("writing bundle record: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("path", s.path).
		Str("fingerprint", fingerprint).
		Msg("stored bundle record")
	return rec, nil
}

// 🗑️ Clear deletes the record. Clearing an absent record is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing bundle record: %w", err)
	}
	zerolog.Ctx(ctx).Debug().Str("path", s.path).Msg("cleared bundle record")
	return nil
}

// FormatVersion is the shape version written by this package.
const FormatVersion = 4

type recordFile struct {
	Fingerprint   string        `json:"fingerprint,omitempty"`
	Hash          string        `json:"hash,omitempty"`
	Timestamp     int64         `json:"timestamp"`
	Platform      string        `json:"platform,omitempty"`
	FormatVersion formatVersion `json:"formatVersion,omitempty"`
	Version       formatVersion `json:"version,omitempty"`
}

// formatVersion is written as a string and read from either a string such as
// "3.0-critical" or a bare number.
type formatVersion int

func (v formatVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(v)))
}

func (v *formatVersion) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case float64:
		*v = formatVersion(x)
	case string:
		*v = formatVersion(leadingInt(x))
	default:
		*v = 0
	}
	return nil
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func encodeRecord(rec *BundleRecord) ([]byte, error) {
	content, err := json.MarshalIndent(recordFile{
		Fingerprint:   rec.Fingerprint,
		Timestamp:     rec.InstalledAt.UnixMilli(),
		Platform:      string(rec.Platform),
		FormatVersion: formatVersion(rec.FormatVersion),
	}, "", "  ")
	if err != nil {
		return nil, errors.Errorf("encoding bundle record: %w", err)
	}
	return append(content, '\n'), nil
}

func decodeRecord(content []byte) (*BundleRecord, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, errors.New("empty record")
	}

	// legacy records are the bare fingerprint
	if trimmed[0] != '{' {
		return &BundleRecord{Fingerprint: string(trimmed)}, nil
	}

	var file recordFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, errors.Errorf("decoding bundle record: %w", err)
	}

	fp := file.Fingerprint
	if fp == "" {
		fp = file.Hash
	}
	if fp == "" {
		return nil, errors.New("record has no fingerprint")
	}

	version := int(file.FormatVersion)
	if version == 0 {
		version = int(file.Version)
	}

	rec := &BundleRecord{
		Fingerprint:   fp,
		Platform:      Platform(file.Platform),
		FormatVersion: version,
	}
	if file.Timestamp > 0 {
		rec.InstalledAt = time.UnixMilli(file.Timestamp).UTC()
	}
	return rec, nil
}

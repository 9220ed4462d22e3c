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

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/walteh/otaswap/pkg/store"
	"gitlab.com/tozd/go/errors"
)

// ErrInvalid is returned for configuration that fails validation.
var ErrInvalid = errors.Base("invalid configuration")

const (
	DefaultFolder            = "src"
	DefaultBundlePathIOS     = "ios/output/main.jsbundle"
	DefaultBundlePathAndroid = "android/output/index.android.bundle"
	DefaultSettleDelayMS     = 500
	DefaultTransport         = "git"
	DefaultKeepBundles       = 1
)

// 🧹 Invalidation configures the cache invalidation steps.
type Invalidation struct {
	// PrefixFile is the bundler cache-prefix token file, relative to the state dir
	PrefixFile string `json:"prefix_file,omitempty" yaml:"prefix_file,omitempty" hcl:"prefix_file,optional" env:"PREFIX_FILE"`
	// CacheDirs are module registry cache directories to remove
	CacheDirs []string `json:"cache_dirs,omitempty" yaml:"cache_dirs,omitempty" hcl:"cache_dirs,optional" env:"CACHE_DIRS" envSeparator:","`
	// BytecodeGlobs are doublestar patterns under the state dir for stale bytecode
	BytecodeGlobs []string `json:"bytecode_globs,omitempty" yaml:"bytecode_globs,omitempty" hcl:"bytecode_globs,optional" env:"BYTECODE_GLOBS" envSeparator:","`
	// Keep is how many older versioned bundles survive pruning
	Keep *int `json:"keep,omitempty" yaml:"keep,omitempty" hcl:"keep,optional" env:"KEEP"`
}

// 📚 Config is the complete update engine configuration.
type Config struct {
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty" hcl:"environment,optional" env:"OTA_ENVIRONMENT"`

	Enabled         bool   `json:"enabled" yaml:"enabled" hcl:"enabled,optional" env:"OTA_ENABLED"`
	Branch          string `json:"branch,omitempty" yaml:"branch,omitempty" hcl:"branch,optional" env:"OTA_BRANCH"`
	IOSBranch       string `json:"ios_branch,omitempty" yaml:"ios_branch,omitempty" hcl:"ios_branch,optional" env:"OTA_IOS_BRANCH"`
	RepoURL         string `json:"repo_url,omitempty" yaml:"repo_url,omitempty" hcl:"repo_url,optional" env:"OTA_REPO_URL"`
	CheckIntervalMS int64  `json:"check_interval_ms,omitempty" yaml:"check_interval_ms,omitempty" hcl:"check_interval_ms,optional" env:"OTA_CHECK_INTERVAL"`
	AutoRestart     bool   `json:"auto_restart,omitempty" yaml:"auto_restart,omitempty" hcl:"auto_restart,optional" env:"OTA_AUTO_RESTART"`

	Platform  string `json:"platform,omitempty" yaml:"platform,omitempty" hcl:"platform,optional" env:"OTA_PLATFORM"`
	Transport string `json:"transport,omitempty" yaml:"transport,omitempty" hcl:"transport,optional" env:"OTA_TRANSPORT"`
	// Token is never read from files
	Token string `json:"-" yaml:"-" env:"OTA_TOKEN"`

	StateDir          string `json:"state_dir,omitempty" yaml:"state_dir,omitempty" hcl:"state_dir,optional" env:"OTA_STATE_DIR"`
	Folder            string `json:"folder,omitempty" yaml:"folder,omitempty" hcl:"folder,optional" env:"OTA_FOLDER"`
	BundlePathIOS     string `json:"bundle_path_ios,omitempty" yaml:"bundle_path_ios,omitempty" hcl:"bundle_path_ios,optional" env:"OTA_BUNDLE_PATH_IOS"`
	BundlePathAndroid string `json:"bundle_path_android,omitempty" yaml:"bundle_path_android,omitempty" hcl:"bundle_path_android,optional" env:"OTA_BUNDLE_PATH_ANDROID"`

	CheckOnForeground bool  `json:"check_on_foreground" yaml:"check_on_foreground" hcl:"check_on_foreground,optional" env:"OTA_CHECK_ON_FOREGROUND"`
	CheckThrottleMS   int64 `json:"check_throttle_ms,omitempty" yaml:"check_throttle_ms,omitempty" hcl:"check_throttle_ms,optional" env:"OTA_CHECK_THROTTLE"`
	SettleDelayMS     int64 `json:"settle_delay_ms,omitempty" yaml:"settle_delay_ms,omitempty" hcl:"settle_delay_ms,optional" env:"OTA_SETTLE_DELAY"`

	RestartCommand string `json:"restart_command,omitempty" yaml:"restart_command,omitempty" hcl:"restart_command,optional" env:"OTA_RESTART_COMMAND"`
	HistoryDB      string `json:"history_db,omitempty" yaml:"history_db,omitempty" hcl:"history_db,optional" env:"OTA_HISTORY_DB"`
	MetricsAddr    string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty" hcl:"metrics_addr,optional" env:"OTA_METRICS_ADDR"`

	Invalidation *Invalidation `json:"invalidation,omitempty" yaml:"invalidation,omitempty" hcl:"invalidation,block" envPrefix:"OTA_INVALIDATION_"`
}

// 🔍 Validate checks the configuration and fills defaults for paths.
func (cfg *Config) Validate() error {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.RepoURL) == "" {
			return errors.Errorf("%w: repo_url is required when updates are enabled", ErrInvalid)
		}
		if strings.TrimSpace(cfg.Branch) == "" {
			return errors.Errorf("%w: branch is required when updates are enabled", ErrInvalid)
		}
	}

	if cfg.Platform == "" {
		cfg.Platform = string(store.PlatformAndroid)
	}
	p, err := store.ParsePlatform(cfg.Platform)
	if err != nil {
		return errors.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg.Platform = string(p)

	if cfg.Transport == "" {
		cfg.Transport = DefaultTransport
	}
	switch cfg.Transport {
	case "git", "github":
	default:
		return errors.Errorf("%w: unknown transport %q", ErrInvalid, cfg.Transport)
	}

	for name, v := range map[string]int64{
		"check_interval_ms": cfg.CheckIntervalMS,
		"check_throttle_ms": cfg.CheckThrottleMS,
		"settle_delay_ms":   cfg.SettleDelayMS,
	} {
		if v < 0 {
			return errors.Errorf("%w: %s must not be negative", ErrInvalid, name)
		}
	}

	if cfg.IOSBranch == "" {
		cfg.IOSBranch = DefaultIOSBranch(cfg.Branch)
	}
	if cfg.StateDir == "" {
		cfg.StateDir = DefaultStateDir()
	}
	cfg.StateDir = filepath.Clean(cfg.StateDir)
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.BundlePathIOS == "" {
		cfg.BundlePathIOS = DefaultBundlePathIOS
	}
	if cfg.BundlePathAndroid == "" {
		cfg.BundlePathAndroid = DefaultBundlePathAndroid
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(cfg.StateDir, "history.db")
	}

	if cfg.Invalidation == nil {
		cfg.Invalidation = &Invalidation{}
	}
	if cfg.Invalidation.PrefixFile == "" {
		cfg.Invalidation.PrefixFile = "bundler-prefix.json"
	}
	if cfg.Invalidation.Keep == nil {
		keep := DefaultKeepBundles
		cfg.Invalidation.Keep = &keep
	}
	if *cfg.Invalidation.Keep < 0 {
		return errors.Errorf("%w: invalidation.keep must not be negative", ErrInvalid)
	}

	return nil
}

// DefaultIOSBranch picks the iOS release branch paired with branch.
func DefaultIOSBranch(branch string) string {
	if branch == "development" {
		return "iOS-dev"
	}
	return "iOS"
}

// PlatformName returns the validated platform.
func (cfg *Config) PlatformName() store.Platform {
	return store.Platform(cfg.Platform)
}

// BranchForPlatform is the branch the transport fetches.
func (cfg *Config) BranchForPlatform() string {
	if cfg.PlatformName() == store.PlatformIOS {
		return cfg.IOSBranch
	}
	return cfg.Branch
}

// BundlePath is the platform bundle path relative to the transport folder.
func (cfg *Config) BundlePath() string {
	if cfg.PlatformName() == store.PlatformIOS {
		return cfg.BundlePathIOS
	}
	return cfg.BundlePathAndroid
}

// LocalFolder is the absolute transport working folder.
func (cfg *Config) LocalFolder() string {
	if filepath.IsAbs(cfg.Folder) {
		return cfg.Folder
	}
	return filepath.Join(cfg.StateDir, cfg.Folder)
}

// RecordPath is where the installed bundle record lives.
func (cfg *Config) RecordPath() string {
	return filepath.Join(cfg.StateDir, store.RecordFileName)
}

// BundlesDir receives uniquely named installed bundle copies.
func (cfg *Config) BundlesDir() string {
	return filepath.Join(cfg.StateDir, "bundles")
}

// LockPath is the lock file that serializes runs across processes sharing
// the state directory.
func (cfg *Config) LockPath() string {
	return filepath.Join(cfg.StateDir, "otaswap.lock")
}

// PrefixFilePath is the absolute bundler-prefix file location.
func (cfg *Config) PrefixFilePath() string {
	if cfg.Invalidation == nil || cfg.Invalidation.PrefixFile == "" {
		return ""
	}
	if filepath.IsAbs(cfg.Invalidation.PrefixFile) {
		return cfg.Invalidation.PrefixFile
	}
	return filepath.Join(cfg.StateDir, cfg.Invalidation.PrefixFile)
}

// CheckInterval is the periodic check interval, zero when disabled.
func (cfg *Config) CheckInterval() time.Duration {
	return time.Duration(cfg.CheckIntervalMS) * time.Millisecond
}

// CheckThrottle suppresses automatic checks this soon after the last one.
func (cfg *Config) CheckThrottle() time.Duration {
	return time.Duration(cfg.CheckThrottleMS) * time.Millisecond
}

// SettleDelay is the wait after cache invalidation.
func (cfg *Config) SettleDelay() time.Duration {
	return time.Duration(cfg.SettleDelayMS) * time.Millisecond
}

// 📝 String returns a one-line summary safe to log.
func (cfg *Config) String() string {
	state := "disabled"
	if cfg.Enabled {
		state = "enabled"
	}
	return fmt.Sprintf("%s %s@%s (%s, %s via %s)", state, cfg.RepoURL, cfg.BranchForPlatform(), cfg.Environment, cfg.Platform, cfg.Transport)
}

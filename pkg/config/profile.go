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
	"strings"

	"gitlab.com/tozd/go/errors"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"
)

// 🌍 Profile returns the built-in configuration for an environment. An
// empty name selects development. Every profile starts with periodic
// checks and auto restart off.
func Profile(name string) (*Config, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = EnvironmentDevelopment
	}

	cfg := &Config{
		Environment:       name,
		Branch:            name,
		CheckOnForeground: true,
		SettleDelayMS:     DefaultSettleDelayMS,
		Transport:         DefaultTransport,
		Invalidation:      &Invalidation{},
	}

	switch name {
	case EnvironmentDevelopment, EnvironmentProduction:
		cfg.Enabled = true
	case EnvironmentStaging:
		// staging builds are tested without updates
		cfg.Enabled = false
	default:
		return nil, errors.Errorf("%w: unknown environment %q", ErrInvalid, name)
	}
	return cfg, nil
}

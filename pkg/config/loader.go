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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// LoadOptions control where configuration comes from.
type LoadOptions struct {
	// Path is an optional config file (.yaml, .yml, .hcl or .json)
	Path string
	// Environ overrides the process environment, for tests
	Environ map[string]string
}

// 🎯 Load builds the configuration: profile, then file, then environment.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	logger := zerolog.Ctx(ctx)

	environ := opts.Environ
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}

	// the profile only decides the starting point, so resolve it from the
	// file and environment before layering anything
	var fileCfg *Config
	if opts.Path != "" {
		logger.Debug().Str("path", opts.Path).Msg("loading configuration file")
		var err error
		fileCfg, err = LoadFile(opts.Path, &Config{})
		if err != nil {
			return nil, err
		}
	}

	name := environ["OTA_ENVIRONMENT"]
	if name == "" && fileCfg != nil {
		name = fileCfg.Environment
	}
	cfg, err := Profile(name)
	if err != nil {
		return nil, err
	}

	if opts.Path != "" {
		if _, err := LoadFile(opts.Path, cfg); err != nil {
			return nil, err
		}
		if cfg.Invalidation == nil {
			cfg.Invalidation = &Invalidation{}
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, errors.Errorf("%w: parsing environment: %w", ErrInvalid, err)
	}
	if cfg.Token == "" {
		cfg.Token = environ["GITHUB_TOKEN"]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Debug().Str("config", cfg.String()).Msg("loaded configuration")
	return cfg, nil
}

// LoadFile decodes the file at path onto base, which keeps every field the
// file leaves out. The format is chosen by extension.
func LoadFile(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = loadJSON(data, base)
	case ".yaml", ".yml":
		err = loadYAML(data, base)
	case ".hcl":
		err = loadHCL(data, path, base)
	default:
		return nil, errors.Errorf("%w: unsupported file extension %q", ErrInvalid, ext)
	}
	if err != nil {
		return nil, errors.Errorf("%w: %w", ErrInvalid, err)
	}
	return base, nil
}

// loadJSON loads a configuration from JSON data
func loadJSON(data []byte, cfg *Config) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return errors.Errorf("parsing JSON: %w", err)
	}
	return nil
}

// loadYAML loads a configuration from YAML data
func loadYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return errors.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// loadHCL loads a configuration from HCL data
func loadHCL(data []byte, filename string, cfg *Config) error {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"home": cty.StringVal(homeDir()),
		},
	}

	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, cfg)
	if diags.HasErrors() {
		return errors.Errorf("decoding HCL: %s", diags.Error())
	}
	return nil
}

// DefaultStateDir is where state lives when OTA_STATE_DIR is unset.
func DefaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "otaswap")
	}
	return ".otaswap"
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

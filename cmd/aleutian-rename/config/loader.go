// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the tool looks for its configuration when no
// --config flag is given.
const DefaultPath = "/etc/aleutian/rename.yaml"

// EnvPrefix is prepended to every env override, e.g.
// ALEUTIAN_RENAME_SERVER_CLIENT_SECRET.
const EnvPrefix = "ALEUTIAN_RENAME_"

// Load reads, overrides, and validates the configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML file,
// environment variables. A missing file is not an error (management
// deployments often configure entirely through the environment); a
// present but unreadable or invalid file is.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults + environment only
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteDefault writes the default configuration file, creating parent
// directories. Used by the init subcommand on first setup.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	// 0600: the file may carry the API client secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// validate runs struct validation and rewrites the first violation
// into a readable message.
func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return fmt.Errorf("invalid configuration: field %s fails %q", first.Namespace(), first.Tag())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

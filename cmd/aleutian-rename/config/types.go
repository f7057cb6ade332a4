// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the rename tool configuration:
// a YAML file with environment-variable overrides, validated before
// anything touches the network or the identity store.
package config

// Config is the full tool configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Rename  RenameConfig  `yaml:"rename" envPrefix:"RENAME_"`
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOG_"`
}

// ServerConfig is the management server connection.
type ServerConfig struct {
	// BaseURL is the management server root URL.
	BaseURL string `yaml:"base_url" env:"BASE_URL" validate:"required,url"`

	// ClientID and ClientSecret are API client credentials for the
	// token grant. The secret is normally supplied via environment,
	// not the config file.
	ClientID     string `yaml:"client_id" env:"CLIENT_ID" validate:"required"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET" validate:"required"`
}

// RenameConfig controls the rename transaction's environment.
type RenameConfig struct {
	// HomeRoot is the parent directory under which home directories
	// live, named after the login name.
	HomeRoot string `yaml:"home_root" env:"HOME_ROOT" validate:"required,startswith=/"`

	// JournalDir is where per-run recovery journals are written.
	JournalDir string `yaml:"journal_dir" env:"JOURNAL_DIR" validate:"required,startswith=/"`

	// RestartDelayMinutes is the delay before the post-rename restart.
	RestartDelayMinutes int `yaml:"restart_delay_minutes" env:"RESTART_DELAY_MINUTES" validate:"min=1,max=60"`
}

// LoggingConfig mirrors pkg/logging options.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string `yaml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn error"`

	// Dir enables JSON file logging when set.
	Dir string `yaml:"dir" env:"DIR"`
}

// DefaultConfig returns the configuration written on first run.
// Server credentials have no defaults; they must come from the file
// or the environment.
func DefaultConfig() Config {
	return Config{
		Rename: RenameConfig{
			HomeRoot:            "/Users",
			JournalDir:          "/var/log/aleutian",
			RestartDelayMinutes: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "/var/log/aleutian",
		},
	}
}

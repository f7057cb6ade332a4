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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rename.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const validYAML = `
server:
  base_url: https://mdm.example.com
  client_id: rename-tool
  client_secret: s3cret
rename:
  home_root: /Users
  journal_dir: /var/log/aleutian
  restart_delay_minutes: 2
logging:
  level: debug
`

func TestLoad_ValidFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://mdm.example.com", cfg.Server.BaseURL)
	assert.Equal(t, "rename-tool", cfg.Server.ClientID)
	assert.Equal(t, 2, cfg.Rename.RestartDelayMinutes)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DefaultsFillUnsetFields(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  base_url: https://mdm.example.com
  client_id: rename-tool
  client_secret: s3cret
`))
	require.NoError(t, err)

	assert.Equal(t, "/Users", cfg.Rename.HomeRoot)
	assert.Equal(t, "/var/log/aleutian", cfg.Rename.JournalDir)
	assert.Equal(t, 1, cfg.Rename.RestartDelayMinutes)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ALEUTIAN_RENAME_SERVER_CLIENT_SECRET", "from-env")
	t.Setenv("ALEUTIAN_RENAME_RENAME_HOME_ROOT", "/home")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Server.ClientSecret)
	assert.Equal(t, "/home", cfg.Rename.HomeRoot)
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("ALEUTIAN_RENAME_SERVER_BASE_URL", "https://mdm.example.com")
	t.Setenv("ALEUTIAN_RENAME_SERVER_CLIENT_ID", "rename-tool")
	t.Setenv("ALEUTIAN_RENAME_SERVER_CLIENT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "rename-tool", cfg.Server.ClientID)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing credentials",
			yaml: `
server:
  base_url: https://mdm.example.com
`,
		},
		{
			name: "bad url",
			yaml: `
server:
  base_url: not a url
  client_id: rename-tool
  client_secret: s3cret
`,
		},
		{
			name: "relative home root",
			yaml: `
server:
  base_url: https://mdm.example.com
  client_id: rename-tool
  client_secret: s3cret
rename:
  home_root: Users
`,
		},
		{
			name: "bad log level",
			yaml: `
server:
  base_url: https://mdm.example.com
  client_id: rename-tool
  client_secret: s3cret
logging:
  level: loud
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "rename.yaml")
	require.NoError(t, WriteDefault(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// The written defaults lack credentials, so a plain Load fails
	// validation until credentials are supplied.
	t.Setenv("ALEUTIAN_RENAME_SERVER_BASE_URL", "https://mdm.example.com")
	t.Setenv("ALEUTIAN_RENAME_SERVER_CLIENT_ID", "rename-tool")
	t.Setenv("ALEUTIAN_RENAME_SERVER_CLIENT_SECRET", "s3cret")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Rename, cfg.Rename)
}
